package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"lake-ingest/internal/domain"
	"lake-ingest/internal/service/auditutil"
	"lake-ingest/internal/storage"
)

// readEvent loads a storage event from path, or from stdin when path is "-".
func readEvent(cmd *cobra.Command, path string) (*domain.StorageEvent, error) {
	var (
		body []byte
		err  error
	)
	if path == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(path) //nolint:gosec // path is caller-controlled
	}
	if err != nil {
		return nil, fmt.Errorf("read event: %w", err)
	}
	return domain.ParseStorageEvent(body)
}

// eventFlags names the file a command handles.
type eventFlags struct {
	path   string
	bucket string
	key    string
	object string
}

func (f *eventFlags) register(cmd *cobra.Command, what string) {
	cmd.Flags().StringVar(&f.path, "event", "", "Storage event JSON file, or - for stdin")
	cmd.Flags().StringVar(&f.bucket, "bucket", "", "Bucket of the "+what+" file")
	cmd.Flags().StringVar(&f.key, "key", "", "Key of the "+what+" file")
	cmd.Flags().StringVar(&f.object, "object", "", "URL of the "+what+" file, such as s3://bucket/key")
}

// event builds the event from --event, --object, or --bucket/--key.
func (f *eventFlags) event(cmd *cobra.Command) (*domain.StorageEvent, error) {
	switch {
	case f.path != "":
		return readEvent(cmd, f.path)
	case f.object != "":
		bucket, key, err := storage.ParsePath(f.object)
		if err != nil {
			return nil, err
		}
		if key == "" {
			return nil, domain.ErrValidation("invalid object path %q: missing key", f.object)
		}
		return domain.NewStorageEvent(bucket, key), nil
	case f.bucket != "" && f.key != "":
		return domain.NewStorageEvent(f.bucket, f.key), nil
	default:
		return nil, domain.ErrValidation("one of --event, --object, or both --bucket and --key is required")
	}
}

func printOutcome(cmd *cobra.Command, eventID string, outcome domain.Outcome) error {
	if getOutputFormat(cmd) == "json" {
		if err := PrintJSON(cmd.OutOrStdout(), map[string]any{"outcome": outcome, "event_id": eventID}); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), outcome.String())
	}
	if outcome == domain.OutcomeFailure {
		return errRejected
	}
	return nil
}

func newIngestCmd() *cobra.Command {
	var flags eventFlags
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Validate and convert one landed file",
		Example: strings.Join([]string{
			"  lakeingest ingest --event event.json",
			"  lakeingest ingest --bucket raw --key sales/orders/csv/orders.us.20240101120000.csv",
			"  lakeingest ingest --object s3://raw/sales/orders/csv/orders.us.20240101120000.csv",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ev, err := flags.event(cmd)
			if err != nil {
				return err
			}
			rt, closeFn, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			eventID := auditutil.EventID(cmd.Context())
			outcome, err := rt.app.Ingestion.Handle(auditutil.WithEventID(cmd.Context(), eventID), ev)
			if err != nil {
				return err
			}
			return printOutcome(cmd, eventID, outcome)
		},
	}
	flags.register(cmd, "landed")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	var (
		flags eventFlags
		table string
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Register a trusted table and refresh its partitions",
		Example: strings.Join([]string{
			"  lakeingest catalog --event event.json",
			"  lakeingest catalog --table sales.orders",
		}, "\n"),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var ev *domain.StorageEvent
			if table == "" {
				var err error
				if ev, err = flags.event(cmd); err != nil {
					return err
				}
			}
			rt, closeFn, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer closeFn()
			if rt.app.CatalogSync == nil {
				return domain.ErrValidation("TRUSTED_DATABASE is required for catalog sync")
			}

			eventID := auditutil.EventID(cmd.Context())
			if table != "" {
				database, name, ok := strings.Cut(table, ".")
				if !ok {
					return domain.ErrValidation("--table must be database.table, got %q", table)
				}
				if err := rt.app.CatalogSync.EnsureTableFor(cmd.Context(), database, name); err != nil {
					return err
				}
				return printOutcome(cmd, eventID, domain.OutcomeSuccess)
			}

			outcome, err := rt.app.CatalogSync.Handle(auditutil.WithEventID(cmd.Context(), eventID), ev)
			if err != nil {
				return err
			}
			return printOutcome(cmd, eventID, outcome)
		},
	}
	flags.register(cmd, "written")
	cmd.Flags().StringVar(&table, "table", "", "Register database.table directly, without an event")
	return cmd
}
