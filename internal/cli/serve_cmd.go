package cli

import (
	"github.com/spf13/cobra"

	"pdxevents/internal/scheduler"
	"pdxevents/internal/web"
)

func newServeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the daily rollover scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			sched, err := scheduler.New(app.Events, app.Config.RolloverCron, app.location(), app.Now)
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}
			return web.Serve(ctx, app.Config, app.Events)
		},
	}
}
