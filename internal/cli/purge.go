package cli

import (
	"context"
	"fmt"

	"github.com/kiranshivaraju/contentpilot/internal/recovery"
	"github.com/spf13/cobra"
)

func newPurgeCmd(env Env, opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Fail every stuck in-flight job",
		Long: `purge runs the recovery sweep: queued and in-progress tasks, unfinished
preview jobs and generating schedule items are all marked failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("purge fails every in-flight job; re-run with --yes to confirm")
			}
			return withBackend(cmd, env, opts, func(ctx context.Context, b Backend) error {
				res, err := recovery.New(b).Sweep(ctx)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "tasks:          %d\n", res.Tasks)
				fmt.Fprintf(out, "preview jobs:   %d\n", res.PreviewJobs)
				fmt.Fprintf(out, "schedule items: %d\n", res.ScheduleItems)
				if err != nil {
					return fmt.Errorf("sweep incomplete: %w", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the purge")
	return cmd
}
