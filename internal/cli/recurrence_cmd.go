package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"pdxevents/internal/events"
	"pdxevents/internal/recurrence"
)

func newNextCmd(app *App) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "next PATTERN",
		Short: "Print the next date matching a recurrence pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := app.dateFlag(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			next, err := recurrence.Resolve(start, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), next)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Reference date (YYYY-MM-DD, default today)")
	return offline(cmd)
}

func newNthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nth YEAR MONTH SELECTOR WEEKDAY",
		Short: "Print the Nth weekday of a month, e.g. nth 2024 2 fifth thursday",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			month, err := strconv.Atoi(args[1])
			if err != nil || month < 1 || month > 12 {
				return fmt.Errorf("invalid month %q", args[1])
			}
			sel, err := recurrence.ParseSelector(args[2])
			if err != nil {
				return err
			}
			if sel == recurrence.Every {
				return fmt.Errorf("selector %q has no single date in a month", args[2])
			}
			wd, err := recurrence.ParseWeekday(args[3])
			if err != nil {
				return err
			}

			d, ok := recurrence.FindNthWeekdayOfMonth(year, time.Month(month), sel, wd)
			if !ok {
				fmt.Fprintf(cmd.OutOrStdout(), "no %s %s in %04d-%02d\n", sel, recurrence.WeekdayName(wd), year, month)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), d)
			return nil
		},
	}
	return offline(cmd)
}

func newOptionsCmd(app *App) *cobra.Command {
	var existing string

	cmd := &cobra.Command{
		Use:   "options [DATE]",
		Short: "List the recurrence patterns offered for a selected date",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw string
			if len(args) == 1 {
				raw = args[0]
			}
			selected, err := app.dateFlag(raw)
			if err != nil {
				return err
			}
			for _, p := range events.OptionsFor(selected, existing) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p, p.Type())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&existing, "existing", "", "Pattern currently stored on the event")
	return offline(cmd)
}

func newTypeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "type PATTERN",
		Short: "Classify a pattern as weekly, monthly or unknown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := recurrence.TypeFromPattern(args[0])
			if t == recurrence.Unknown {
				fmt.Fprintln(cmd.OutOrStdout(), "unknown")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
	return offline(cmd)
}
