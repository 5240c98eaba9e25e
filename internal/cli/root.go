// Package cli implements racectl, the maintenance command line of the race series.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	service "github.com/okian/raceseries/internal/app"
	"github.com/okian/raceseries/internal/config"
	"github.com/okian/raceseries/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	Store   string // overrides store_backend
	DB      string // overrides sqlite_path
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command of racectl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "racectl",
		Short: "racectl - race series maintenance",
		Long:  "Maintenance commands for the race series store: rescoring, standings, arrival chains and cleanup.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return initLogger(opts, cmd.ErrOrStderr())
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.Store, "store", "", "store backend (memory|sqlite|neo4j), overrides configuration")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "sqlite database path, overrides configuration")

	cmd.AddCommand(NewRecalcCommand(opts))
	cmd.AddCommand(NewStandingsCommand(opts))
	cmd.AddCommand(NewChainCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// initLogger sends logs to stderr so structured output on stdout stays clean.
func initLogger(opts *RootOptions, w io.Writer) error {
	if err := logger.InitWithFormat("text", w); err != nil {
		return WrapExitError(ExitCommandError, "init logger", err)
	}
	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	return logger.SetLevelString(level)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openService loads configuration, applies flag overrides and starts a
// service on the configured store. The caller stops it.
func openService(ctx context.Context, opts *RootOptions, f *OutputFormatter) (*service.Service, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load configuration", err)
	}
	if opts.Store != "" {
		cfg.StoreBackend = strings.ToLower(opts.Store)
	}
	if opts.DB != "" {
		cfg.SQLitePath = opts.DB
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	f.VerboseLog("opening %s store", cfg.StoreBackend)

	store, err := service.OpenStore(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	svc := service.New(
		service.WithStore(store),
		service.WithLogger(logger.Named("racectl")),
		service.WithSeasonRule(cfg.BestRaces, cfg.ExtraRaceBonus),
		service.WithParticipationPoints(cfg.ParticipationPoints),
		service.WithMaxStandingsLimit(cfg.MaxStandingsLimit),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, WrapExitError(ExitCommandError, "start service", err)
	}
	return svc, nil
}
