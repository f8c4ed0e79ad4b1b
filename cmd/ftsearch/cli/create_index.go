package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scampagna/ftsearch/index"
	"github.com/scampagna/ftsearch/schema"
)

// fieldConfig is the on-disk JSON shape of one --fields entry; it decodes
// into an index.FieldSpec once its Type string is resolved.
type fieldConfig struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Indexed       bool   `json:"indexed"`
	Stored        bool   `json:"stored"`
	IndexAnalyzer string `json:"index_analyzer"`
	QueryAnalyzer string `json:"query_analyzer"`
	PositionGap   uint32 `json:"position_gap"`
}

func loadFieldSpecs(path string) ([]index.FieldSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read field config: %v", index.ErrSchema, err)
	}
	var configs []fieldConfig
	if err := json.Unmarshal(data, &configs); err != nil {
		return nil, fmt.Errorf("%w: decode field config: %v", index.ErrSchema, err)
	}
	specs := make([]index.FieldSpec, 0, len(configs))
	for _, c := range configs {
		typ, err := schema.ParseFieldType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", c.Name, err)
		}
		specs = append(specs, index.FieldSpec{
			Name:          c.Name,
			Type:          typ,
			Indexed:       c.Indexed,
			Stored:        c.Stored,
			IndexAnalyzer: c.IndexAnalyzer,
			QueryAnalyzer: c.QueryAnalyzer,
			PositionGap:   c.PositionGap,
		})
	}
	return specs, nil
}

func newCreateIndexCmd() *cobra.Command {
	var fieldsPath string
	cmd := &cobra.Command{
		Use:   "create-index NAME",
		Short: "Create a new index with a field schema",
		Example: `  ftsearch create-index articles --fields fields.json

fields.json:
  [
    {"name": "title", "type": "text", "indexed": true, "stored": true},
    {"name": "tags", "type": "keyword", "indexed": true, "stored": true}
  ]`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if fieldsPath == "" {
				return fmt.Errorf("%w: --fields is required", index.ErrSchema)
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

			idx, err := reg.Create(cmd.Context(), args[0], specs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created index %q with %d field(s)\n", idx.Name, len(specs))
			return nil
		},
	}
	cmd.Flags().StringVar(&fieldsPath, "fields", "", "Path to a JSON field-spec file")
	return cmd
}

func newDeleteIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-index NAME",
		Short: "Delete an index and its on-disk data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := openRegistry()
			if err != nil {
				return err
			}
			defer reg.CloseAll()

			if err := reg.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted index %q\n", args[0])
			return nil
		},
	}
}
