package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classboard/classboard/internal/app"
)

func newJobsCmd(newJobs jobsFactory) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	withJobs := func(cmd *cobra.Command, fn func(*JobsCLI) error) error {
		cfg, err := app.LoadConfig()
		if err != nil {
			return err
		}
		helper := newJobs(cfg)
		defer func() { _ = helper.Close() }()
		return fn(helper)
	}

	var opts TriggerOptions
	triggerCmd := &cobra.Command{
		Use:   "trigger <task-type>",
		Short: "Enqueue audit:purge or idempotency:cleanup immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(cmd, func(helper *JobsCLI) error {
				info, err := helper.Trigger(cmd.Context(), args[0], opts)
				if err != nil {
					return err
				}
				if outputFormat(cmd) == "json" {
					return printJSON(cmd.OutOrStdout(), map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue})
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	}
	triggerCmd.Flags().IntVar(&opts.RetentionDays, "retention-days", 0, "audit retention window in days")
	triggerCmd.Flags().IntVar(&opts.MaxAgeHours, "max-age-hours", 0, "idempotency key age in hours")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(cmd, func(helper *JobsCLI) error {
				stats, err := helper.InspectQueue()
				if err != nil {
					return err
				}
				if outputFormat(cmd) == "json" {
					return printJSON(cmd.OutOrStdout(), stats)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
					stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
				return nil
			})
		},
	}

	var size int
	scheduledCmd := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(cmd, func(helper *JobsCLI) error {
				tasks, err := helper.ListScheduled(size)
				if err != nil {
					return err
				}
				for _, t := range tasks {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.UTC().Format("2006-01-02T15:04:05Z"))
				}
				return nil
			})
		},
	}
	scheduledCmd.Flags().IntVar(&size, "size", 10, "page size")

	jobsCmd.AddCommand(triggerCmd, statsCmd, scheduledCmd)
	return jobsCmd
}
