package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scampagna/ftsearch/schema"
)

func newStatsCmd() *cobra.Command {
	var fieldsPath string
	cmd := &cobra.Command{
		Use:   "stats NAME",
		Short: "Print an index's registered fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := loadFieldSpecs(fieldsPath)
			if err != nil {
				return err
			}
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			defer reg.CloseAll()

			idx, err := reg.Open(cmd.Context(), args[0], specs)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "index %q\n", idx.Name)
			for _, def := range idx.Schema().Fields() {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-20s type=%-10s indexed=%-5t stored=%t\n",
					def.Name, def.Type, def.Flags.Has(schema.Indexed), def.Flags.Has(schema.Stored))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fieldsPath, "fields", "", "Path to the index's JSON field-spec file")
	return cmd
}
