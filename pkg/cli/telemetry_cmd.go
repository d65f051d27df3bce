package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newTelemetryCmd() *cobra.Command {
	var (
		count    int
		schedule string
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Send mock UPS readings to QUEUE_NAME",
		Long:  "Sends one synthetic UPS reading per tick of the cron schedule until interrupted or --count readings were sent.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 0 {
				return fmt.Errorf("--count must not be negative")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, closeFn, err := loadRuntime(cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			producer, err := rt.app.NewProducer(ctx)
			if err != nil {
				return err
			}
			if once {
				id, err := producer.SendOne(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			}
			if schedule == "" {
				schedule = rt.cfg.TelemetrySchedule
			}
			return producer.Run(ctx, schedule, count)
		},
	}
	cmd.Flags().IntVar(&count, "count", 0, "Stop after this many readings (0 runs until interrupted)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule, overrides TELEMETRY_SCHEDULE")
	cmd.Flags().BoolVar(&once, "once", false, "Send a single reading and print its message ID")
	return cmd
}
