package archsetup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/archsetup/pkg/catalog"
	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/hardware"
	"github.com/arthur-debert/archsetup/pkg/paths"
	"github.com/arthur-debert/archsetup/pkg/report"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/selection"
	"github.com/arthur-debert/archsetup/pkg/ui"
)

func (a *app) newPlanCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: MsgPlanShort,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			f, err := outputFormat(format, out)
			if err != nil {
				return err
			}
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			sel, err := a.loadSelection(cmd.Context(), a.probeRunner(), cfg)
			if err != nil {
				return err
			}
			reg, err := catalog.Registry()
			if err != nil {
				return err
			}
			return ui.RenderPlan(out, reg.Plan(sel), f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "auto", MsgFlagFormat)
	return cmd
}

func (a *app) newGenConfigCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "genconfig",
		Short: MsgGenConfigShort,
		Long:  MsgGenConfigLong,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			example := config.SelectionFile{
				CPU:   string(selection.CPUAMD),
				GPU:   string(selection.GPUAMD),
				Steps: selection.StepNames(),
			}
			if output != "" {
				if err := config.WriteSelection(output, example); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), MsgSelectionWritten, output)
				return nil
			}
			b, err := config.MarshalSelection(example)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", MsgFlagOutput)
	return cmd
}

func (a *app) newReportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: MsgReportShort,
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			f, err := outputFormat(format, out)
			if err != nil {
				return err
			}
			if f == ui.FormatJSON {
				return usageError(fmt.Errorf("the report has no json format"))
			}
			rep := report.Generate(cmd.Context(), report.NewSystemFacts(a.probeRunner()), report.Input{Now: a.env.Now()})
			if output != "" {
				if err := rep.WriteFile(output, -1, -1); err != nil {
					return err
				}
				fmt.Fprintf(out, MsgReportWritten, output)
				return nil
			}
			return rep.Render(out, f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "auto", MsgFlagFormat)
	cmd.Flags().StringVarP(&output, "output", "o", "", MsgFlagOutput)
	return cmd
}

func (a *app) loadConfig() (*config.Config, error) {
	u, err := paths.ResolveUser(a.env.Getenv, a.env.Lookup)
	if err != nil {
		return nil, err
	}
	return config.Load(config.LoadOptions{PolicyFile: paths.New(u, a.env.Getenv).PolicyConfigPath()})
}

// probeRunner runs read-only commands. It ignores --dry-run so hardware
// detection and facts still see the real system.
func (a *app) probeRunner() runner.Runner {
	if a.env.Runner != nil {
		return a.env.Runner
	}
	return runner.New(runner.Options{Logger: a.logger})
}

// execRunner runs the commands tasks issue.
func (a *app) execRunner(logger zerolog.Logger) runner.Runner {
	if a.env.Runner != nil {
		return a.env.Runner
	}
	opts := runner.Options{Logger: logger, DryRun: a.flags.dryRun}
	if a.flags.verbosity > 0 {
		opts.Stream = a.env.Stdout
	}
	return runner.New(opts)
}

// loadSelection reads --config when given, otherwise asks.
func (a *app) loadSelection(ctx context.Context, r runner.Runner, cfg *config.Config) (selection.Selection, error) {
	probe := hardware.NewProbe(r)
	src := selection.Sources{
		Lister:   probe,
		Detector: probe,
		FSType:   cfg.Storage.FSType,
		Logger:   a.logger,
	}
	if a.flags.configPath != "" {
		return selection.FromFile(ctx, a.flags.configPath, src)
	}
	if !ui.IsInteractive(a.env.Stdin) {
		return selection.Selection{}, errors.New(errors.ErrNotInteractive, "no terminal to prompt on; pass --config with a selection file")
	}
	return selection.Elicit(ctx, a.env.Prompter, src)
}
