package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lake-ingest/internal/domain"
	"lake-ingest/internal/routing"
)

type routeResult struct {
	Database      string   `json:"database"`
	Table         string   `json:"table"`
	Format        string   `json:"format"`
	Delimiter     string   `json:"delimiter"`
	Append        bool     `json:"append"`
	PartitionKeys []string `json:"partition_keys"`
	CatalogTable  string   `json:"catalog_table"`
	Suite         string   `json:"suite"`
	Partition     string   `json:"partition"`
}

func newRouteCmd() *cobra.Command {
	var (
		configPath string
		policy     string
		date       string
	)
	cmd := &cobra.Command{
		Use:   "route KEY",
		Short: "Show how a landed key would be routed and partitioned",
		Long:  "Classifies KEY against a local lake config and plans its partition path without touching storage.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return domain.ErrValidation("--config is required")
			}
			now := time.Now().UTC()
			if date != "" {
				d, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return domain.ErrValidation("--date must be YYYY-MM-DD, got %q", date)
				}
				now = d
			}

			cfg, err := parseLakeConfig(configPath, policy)
			if err != nil {
				return err
			}
			rt, err := routing.NewClassifier(cfg).Resolve(args[0])
			if err != nil {
				return err
			}
			partition, err := routing.Plan(rt, args[0], now)
			if err != nil {
				return err
			}

			res := routeResult{
				Database:      rt.Database,
				Table:         rt.Table,
				Format:        string(rt.Format),
				Delimiter:     rt.Delimiter,
				Append:        rt.Append,
				PartitionKeys: append([]string{}, rt.PartitionKeys...),
				CatalogTable:  rt.CatalogTableName(),
				Suite:         rt.SuiteName(),
				Partition:     string(partition),
			}
			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), res)
			}
			mode := "replace"
			if res.Append {
				mode = "append"
			}
			PrintDetail(cmd.OutOrStdout(), [][2]string{
				{"database", res.Database},
				{"table", res.Table},
				{"format", res.Format},
				{"delimiter", res.Delimiter},
				{"mode", mode},
				{"partition keys", strings.Join(res.PartitionKeys, ",")},
				{"catalog table", res.CatalogTable},
				{"suite", res.Suite},
				{"partition", res.Partition},
			})
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Local lake config document (JSON or YAML)")
	cmd.Flags().StringVar(&policy, "duplicates", "reject", "Duplicate entry policy (reject, first)")
	cmd.Flags().StringVar(&date, "date", "", "Ingestion date used for year/month/day (default today, UTC)")
	return cmd
}
