package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pdxevents/internal/config"
	"pdxevents/internal/events"
	"pdxevents/internal/ics"
	appLog "pdxevents/internal/log"
	"pdxevents/internal/recurrence"
	"pdxevents/internal/store"
)

// offlineAnnotation marks commands that only compute dates and never touch
// configuration or the database.
const offlineAnnotation = "offline"

// App holds what CLI commands operate on. Fields left nil are filled from
// the config file on first use; tests set them directly.
type App struct {
	Config  *config.Config
	Events  *events.Service
	Fetcher *ics.Fetcher
	Now     func() time.Time

	closers []func() error
}

// NewRootCmd creates the top-level "pdxevents" command and registers all
// subcommands against the provided App.
func NewRootCmd(app *App) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "pdxevents",
		Short:         "Portland.Events recurring event service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[offlineAnnotation] == "true" {
				return nil
			}
			return app.open(configPath)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return app.Close()
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "./config.yaml", "Path to config file")

	root.AddCommand(
		newServeCmd(app),
		newNextCmd(app),
		newNthCmd(),
		newOptionsCmd(app),
		newTypeCmd(),
		newListCmd(app),
		newApproveCmd(app),
		newRejectCmd(app),
		newDeleteCmd(app),
		newImportCmd(app),
		newExportCmd(app),
		newRolloverCmd(app),
	)
	return root
}

func offline(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[offlineAnnotation] = "true"
	return cmd
}

// open loads configuration and wires the database-backed services.
func (a *App) open(configPath string) error {
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.Events != nil {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config %s: %w", configPath, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.Debug("effective config",
		"config_path", configPath,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"database_path", cfg.DatabasePath,
		"rollover_cron", cfg.RolloverCron,
		"persist_fifth", cfg.Recurrence.PersistFifth,
	)

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, db.Close)

	a.Config = cfg
	a.Events = events.NewService(store.NewEventStore(db), events.Options{
		SearchMonths:           cfg.Recurrence.SearchMonths,
		PersistFifth:           cfg.Recurrence.PersistFifth,
		MaxOccurrencesPerEvent: cfg.MaxOccurrencesPerEvent,
	})
	if a.Fetcher == nil {
		cacheDir := "./var/ics-cache"
		if cfg.DatabasePath != ":memory:" {
			cacheDir = filepath.Join(filepath.Dir(cfg.DatabasePath), "ics-cache")
		}
		a.Fetcher = ics.NewFetcher(cacheDir, nil)
	}
	return nil
}

// Close releases resources acquired by open.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) location() *time.Location {
	if a.Config != nil {
		return a.Config.Location()
	}
	return config.DefaultConfig().Location()
}

// today is the current date in the configured zone.
func (a *App) today() recurrence.Date {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return recurrence.DateOf(now().In(a.location()))
}

// dateFlag parses a YYYY-MM-DD flag value, defaulting to today.
func (a *App) dateFlag(v string) (recurrence.Date, error) {
	if v == "" {
		return a.today(), nil
	}
	return recurrence.ParseDate(v)
}
