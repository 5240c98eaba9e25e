package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/okian/raceseries/internal/domain/chain"
	"github.com/okian/raceseries/internal/domain/model"
	"github.com/okian/raceseries/internal/domain/series"
	"github.com/okian/raceseries/internal/domain/types"
)

// Error codes of structured output.
const (
	ErrCodeGeneric   = "E001"
	ErrCodeArgs      = "E002"
	ErrCodeNotFound  = "E003"
	ErrCodeIntegrity = "E004"
)

// RecalcResult is the output of recalc.
type RecalcResult struct {
	Races int `json:"races" yaml:"races"`
}

func (r RecalcResult) PrintText(w io.Writer) {
	fmt.Fprintf(w, "rescored %d race(s)\n", r.Races)
}

// SweepResult is the output of sweep.
type SweepResult struct {
	Removed int `json:"removed" yaml:"removed"`
}

func (r SweepResult) PrintText(w io.Writer) {
	fmt.Fprintf(w, "removed %d orphan node(s)\n", r.Removed)
}

// SeedResult is the output of seed.
type SeedResult struct {
	Seeded bool `json:"seeded" yaml:"seeded"`
}

func (r SeedResult) PrintText(w io.Writer) {
	fmt.Fprintln(w, "reference nodes present")
}

// StandingsResult is the output of standings.
type StandingsResult struct {
	Sex     model.Sex     `json:"sex" yaml:"sex"`
	Entries []types.Entry `json:"entries" yaml:"entries"`
}

func (r StandingsResult) PrintText(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "#\t%s\tRACES\tPOINTS\n", r.Sex)
	for _, e := range r.Entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", e.Rank, e.Name, e.Races, e.Points)
	}
	_ = tw.Flush()
}

// ChainResult is the output of chain.
type ChainResult struct {
	RaceID   string              `json:"race_id" yaml:"race_id"`
	Race     string              `json:"race" yaml:"race"`
	Arrivals []model.Participant `json:"arrivals" yaml:"arrivals"`
}

func (r ChainResult) PrintText(w io.Writer) {
	fmt.Fprintln(w, r.Race)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, p := range r.Arrivals {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", i+1, p.PersonName, p.Sex, p.Points, p.Remark)
	}
	_ = tw.Flush()
}

// NewRecalcCommand creates the recalc command.
func NewRecalcCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc",
		Short: "Rescore every race",
		Long: `Rescore every race in the store. Main races are scored first so that
secondary races see the final per-sex main race counts, participation races last.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			svc, err := openService(cmd.Context(), rootOpts, f)
			if err != nil {
				return fail(f, err)
			}
			defer svc.Stop()

			n, err := svc.Recalculate(cmd.Context())
			if err != nil {
				return fail(f, err)
			}
			return f.Success(RecalcResult{Races: n})
		},
	}
}

// NewStandingsCommand creates the standings command.
func NewStandingsCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:           "standings <Heren|Dames>",
		Short:         "Print the season standings of one sex",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			sex, err := model.ParseSex(args[0])
			if err != nil {
				return fail(f, WrapExitError(ExitCommandError, "invalid sex", err))
			}
			svc, err := openService(cmd.Context(), rootOpts, f)
			if err != nil {
				return fail(f, err)
			}
			defer svc.Stop()

			entries, err := svc.Standings(cmd.Context(), sex, limit)
			if err != nil {
				return fail(f, err)
			}
			return f.Success(StandingsResult{Sex: sex, Entries: entries})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of entries (0 = configured maximum)")
	return cmd
}

// NewChainCommand creates the chain command.
func NewChainCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chain <race-id>",
		Short: "Print the arrival order of a race",
		Long: `Walk the arrival chain of a race from the first arrival to the last.
Exits with code 1 when the chain is broken (branching, cycle or disconnected arrivals).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			svc, err := openService(cmd.Context(), rootOpts, f)
			if err != nil {
				return fail(f, err)
			}
			defer svc.Stop()

			label, err := svc.RaceLabel(cmd.Context(), args[0])
			if err != nil {
				return fail(f, err)
			}
			arrivals, err := svc.Arrivals(cmd.Context(), args[0])
			if err != nil {
				return fail(f, err)
			}
			return f.Success(ChainResult{RaceID: args[0], Race: label, Arrivals: arrivals})
		},
	}
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "sweep",
		Short:         "Remove locations and days no organization refers to",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			svc, err := openService(cmd.Context(), rootOpts, f)
			if err != nil {
				return fail(f, err)
			}
			defer svc.Stop()

			n, err := svc.Sweep(cmd.Context())
			if err != nil {
				return fail(f, err)
			}
			return f.Success(SweepResult{Removed: n})
		},
	}
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "seed",
		Short:         "Create the classification reference nodes",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			svc, err := openService(cmd.Context(), rootOpts, f)
			if err != nil {
				return fail(f, err)
			}
			defer svc.Stop()

			if err := svc.Seed(cmd.Context()); err != nil {
				return fail(f, err)
			}
			return f.Success(SeedResult{Seeded: true})
		},
	}
}

// fail reports err through the formatter and returns it as an ExitError.
func fail(f *OutputFormatter, err error) error {
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		exitErr = WrapExitError(ExitFailure, "command failed", err)
	}
	code := ErrCodeGeneric
	switch {
	case errors.Is(err, series.ErrNotFound):
		code = ErrCodeNotFound
	case errors.Is(err, chain.ErrIntegrity):
		code = ErrCodeIntegrity
	case exitErr.Code == ExitCommandError:
		code = ErrCodeArgs
	}
	_ = f.Error(code, exitErr.Error())
	return exitErr
}
