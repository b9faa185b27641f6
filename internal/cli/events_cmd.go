package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/mo"
	"github.com/spf13/cobra"

	"pdxevents/internal/events"
	"pdxevents/internal/ics"
	"pdxevents/internal/model"
)

func newListCmd(app *App) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := mo.None[model.Status]()
			if status != "" {
				st := model.Status(status)
				if !st.Valid() {
					return fmt.Errorf("invalid status %q", status)
				}
				filter = mo.Some(st)
			}

			evs, err := app.Events.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if len(evs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events.")
				return nil
			}

			rows := make([][]string, 0, len(evs))
			for _, e := range evs {
				rows = append(rows, []string{
					e.ID,
					e.Title,
					e.StartDate.String(),
					patternLabel(e),
					string(e.Status),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable([]string{"ID", "TITLE", "DATE", "REPEATS", "STATUS"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, approved, rejected)")
	return cmd
}

// patternLabel summarizes an event's recurrence for table output.
func patternLabel(e *model.Event) string {
	p, ok := e.Series()
	if !ok {
		return "-"
	}
	if end, ok := e.RecurrenceEndDate.Get(); ok {
		return fmt.Sprintf("%s until %s", p, end)
	}
	return p.String()
}

func newApproveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "approve ID",
		Short: "Approve a pending event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.Events.Approve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Approved %s (%s)\n", e.ID, e.Title)
			return nil
		},
	}
}

func newRejectCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reject ID",
		Short: "Reject an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := app.Events.Reject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s (%s)\n", e.ID, e.Title)
			return nil
		},
	}
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Events.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newImportCmd(app *App) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import FILE|URL",
		Short: "Import events from an iCalendar file or URL as pending submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := app.readCalendar(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			drafts, err := ics.ParseDrafts(body, app.location())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if dryRun {
				staged := events.Stage(drafts)
				fmt.Fprintf(out, "%d accepted, %d rejected (dry run)\n", len(staged.Accepted), len(staged.Rejected))
				writeRejections(out, staged.Rejected)
				return nil
			}

			res, err := app.Events.Import(cmd.Context(), drafts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d created, %d rejected\n", len(res.Created), len(res.Rejected))
			writeRejections(out, res.Rejected)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only report which rows would be accepted")
	return cmd
}

func writeRejections(w io.Writer, rejected []events.Rejection) {
	for _, r := range rejected {
		fmt.Fprintf(w, "  #%d %q: %s\n", r.Index, r.Title, r.Reason)
	}
}

// readCalendar loads src from disk, or through the caching fetcher when it
// looks like a URL.
func (a *App) readCalendar(ctx context.Context, src string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if a.Fetcher == nil {
			return nil, fmt.Errorf("no fetcher configured for %s", src)
		}
		res, err := a.Fetcher.Fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		return res.Body, nil
	}
	return os.ReadFile(src)
}

func newExportCmd(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write approved events as an iCalendar feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			approved, err := app.Events.List(cmd.Context(), mo.Some(model.StatusApproved))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			opts := ics.FeedOptions{
				Location: app.location(),
				Now:      app.Now(),
			}
			if app.Config != nil {
				opts.Name = app.Config.Feed.Name
				opts.ProductID = app.Config.Feed.ProductID
			}
			return ics.WriteFeed(w, approved, opts)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file (- for stdout)")
	return cmd
}

func newRolloverCmd(app *App) *cobra.Command {
	var today string

	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Move past recurring events onto their next occurrence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := app.dateFlag(today)
			if err != nil {
				return fmt.Errorf("--today: %w", err)
			}
			moved, err := app.Events.RollForward(cmd.Context(), d)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d event(s) moved\n", moved)
			return nil
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "Treat this date as today (YYYY-MM-DD)")
	return cmd
}
