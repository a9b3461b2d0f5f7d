package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/internal/config"
	"github.com/kiranshivaraju/contentpilot/internal/pushlive"
	"github.com/spf13/cobra"
)

func newPushLiveCmd(env Env, opts *rootOptions) *cobra.Command {
	cfg := config.PublishConfig{Timeout: 30 * time.Second}

	cmd := &cobra.Command{
		Use:   "push-live <plan-id>",
		Short: "Set a draft plan live and schedule its posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid plan id %q: %w", args[0], err)
			}
			if cfg.BaseURL == "" {
				return fmt.Errorf("--publish-url or PUBLISH_BASE_URL is required")
			}

			return withBackend(cmd, env, opts, func(ctx context.Context, b Backend) error {
				svc := pushlive.New(b, env.Publisher(cfg), pushlive.WithDefaultTimezone(cfg.DefaultTimezone))
				res, err := svc.PushLive(ctx, planID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "plan %s is live\n", res.PlanID)
				if res.CalendarError != "" {
					fmt.Fprintf(out, "calendar entries: failed (%s)\n", res.CalendarError)
				} else {
					fmt.Fprintf(out, "calendar entries: %d\n", res.CalendarEntries)
				}
				fmt.Fprintf(out, "posts scheduled:  %d\n", res.PostsScheduled)
				fmt.Fprintf(out, "posts failed:     %d\n", res.PostsFailed)
				for _, f := range res.Failures {
					fmt.Fprintf(out, "  %s: %s\n", f.ItemID, f.Reason)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&cfg.BaseURL, "publish-url", os.Getenv("PUBLISH_BASE_URL"), "Publishing provider base URL")
	cmd.Flags().StringVar(&cfg.APIKey, "publish-key", os.Getenv("PUBLISH_API_KEY"), "Publishing provider API key")
	cmd.Flags().StringVar(&cfg.DefaultTimezone, "timezone", "UTC", "Timezone used when the profile has none")
	return cmd
}
