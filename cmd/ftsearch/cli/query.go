package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scampagna/ftsearch/index"
)

func newQueryCmd() *cobra.Command {
	var fieldsPath, q string
	var size int
	cmd := &cobra.Command{
		Use:   "query NAME",
		Short: "Run a JSON DSL query against an index",
		Example: `  ftsearch query articles --fields fields.json \
    --query '{"match":{"title":"vector database"}}' --size 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if q == "" {
				return fmt.Errorf("%w: --query is required", index.ErrParse)
			}
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

			resp, err := idx.Query(cmd.Context(), json.RawMessage(q), size)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("%w: encode response: %v", index.ErrStorage, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&fieldsPath, "fields", "", "Path to the index's JSON field-spec file")
	cmd.Flags().StringVar(&q, "query", "", "Query DSL body as a JSON object")
	cmd.Flags().IntVar(&size, "size", 10, "Maximum number of hits to return")
	return cmd
}
