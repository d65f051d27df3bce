package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lake-ingest/internal/api"
	"lake-ingest/internal/config"
	internaldb "lake-ingest/internal/db"
	"lake-ingest/internal/db/repository"
	"lake-ingest/internal/domain"
)

func newHistoryCmd() *cobra.Command {
	var (
		stage   string
		outcome string
		since   time.Duration
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent pipeline runs from the audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.AuditDBPath == "" {
				return domain.ErrValidation("AUDIT_DB_PATH is not set")
			}
			pool, err := internaldb.OpenAudit(cmd.Context(), cfg.AuditDBPath)
			if err != nil {
				return err
			}
			defer pool.Close() //nolint:errcheck

			filter := domain.AuditFilter{Limit: limit}
			if stage != "" {
				filter.Stage = &stage
			}
			if outcome != "" {
				filter.Outcome = &outcome
			}
			if since > 0 {
				t := time.Now().Add(-since)
				filter.Since = &t
			}

			entries, err := repository.NewAuditRepo(pool.Write, pool.Read).List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				out := make([]api.AuditEntry, 0, len(entries))
				for _, e := range entries {
					out = append(out, api.AuditEntryToAPI(e))
				}
				return PrintJSON(cmd.OutOrStdout(), map[string]any{"data": out})
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.CreatedAt.Format(time.RFC3339), e.Stage, e.Outcome, e.Bucket + "/" + e.Key,
					deref(e.ObjectKey), rowsString(e.Rows), deref(e.ErrorMessage),
				})
			}
			PrintTable(cmd.OutOrStdout(), []string{"time", "stage", "outcome", "object", "output", "rows", "error"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "Filter by stage (INGEST, CATALOG)")
	cmd.Flags().StringVar(&outcome, "outcome", "", "Filter by outcome (Success, Failure, NoOp)")
	cmd.Flags().DurationVar(&since, "since", 0, "Only entries newer than this duration, e.g. 24h")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to list")
	return cmd
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func rowsString(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}
