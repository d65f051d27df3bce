package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"lake-ingest/internal/domain"
	"lake-ingest/internal/lakeconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect lake configuration documents",
	}
	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

func newConfigValidateCmd() *cobra.Command {
	var policy string
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a lake config document and list its tables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := parseLakeConfig(args[0], policy)
			if err != nil {
				return err
			}
			tables := cfg.Tables()
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), map[string]any{"valid": true, "tables": tableSummaries(tables)})
			}
			rows := make([][]string, 0, len(tables))
			for _, t := range tables {
				rows = append(rows, []string{
					t.Database, t.Name, strconv.Quote(t.Delimiter), strconv.FormatBool(t.Append),
					strings.Join(t.Partitions, ","), strconv.Itoa(len(t.Schema)),
				})
			}
			PrintTable(cmd.OutOrStdout(), []string{"database", "table", "delimiter", "append", "partitions", "columns"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&policy, "duplicates", "reject", "Duplicate entry policy (reject, first)")
	return cmd
}

func parseLakeConfig(path, policy string) (*lakeconfig.Config, error) {
	p, err := lakeconfig.ParsePolicy(policy)
	if err != nil {
		return nil, domain.ErrValidation("%v", err)
	}
	return lakeconfig.ParseFile(path, p)
}

type tableSummary struct {
	Database   string          `json:"database"`
	Table      string          `json:"table"`
	Delimiter  string          `json:"delimiter"`
	Append     bool            `json:"append"`
	Partitions []string        `json:"partitions"`
	Schema     []domain.Column `json:"schema"`
}

func tableSummaries(tables []domain.TableConfig) []tableSummary {
	out := make([]tableSummary, 0, len(tables))
	for _, t := range tables {
		out = append(out, tableSummary{
			Database:   t.Database,
			Table:      t.Name,
			Delimiter:  t.Delimiter,
			Append:     t.Append,
			Partitions: append([]string{}, t.Partitions...),
			Schema:     append([]domain.Column{}, t.Schema...),
		})
	}
	return out
}
