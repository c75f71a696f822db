package archsetup

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/archsetup/pkg/backup"
	"github.com/arthur-debert/archsetup/pkg/catalog"
	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/install"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/arthur-debert/archsetup/pkg/paths"
	"github.com/arthur-debert/archsetup/pkg/pipeline"
	"github.com/arthur-debert/archsetup/pkg/preflight"
	"github.com/arthur-debert/archsetup/pkg/report"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/system"
	"github.com/arthur-debert/archsetup/pkg/ui"
	"github.com/arthur-debert/archsetup/pkg/ui/prompt"
)

// runSetup is the provisioning run: validate, select, execute, report.
func (a *app) runSetup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env := a.env

	u, err := paths.ResolveUser(env.Getenv, env.Lookup)
	if err != nil {
		return err
	}
	p := paths.New(u, env.Getenv)
	cfg, err := config.Load(config.LoadOptions{PolicyFile: p.PolicyConfigPath()})
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	result := pipeline.NewRunResult(runID, env.Now)
	sink := logging.Setup(logging.Options{
		Verbosity: a.flags.verbosity,
		FilePath:  p.LogFilePath(),
		Console:   env.Stderr,
		NoColor:   !isTerminal(env.Stderr),
		UID:       u.UID,
		GID:       u.GID,
		Fields:    map[string]string{"run": runID},
		Hooks:     []zerolog.Hook{result},
	})
	defer func() { _ = sink.Close() }()
	logger := sink.Logger()
	a.logger = logger

	logger.Info().
		Str("user", u.Name).
		Str("config", a.flags.configPath).
		Bool("dryRun", a.flags.dryRun).
		Msg("archsetup starting")
	logger.Debug().Stringer("paths", p).Stringer("policy", cfg).Msg("Resolved environment")

	probe := a.probeRunner()
	exec := a.execRunner(logger)

	done := logging.LogOperationStart(logger, "preflight")
	err = preflight.Run(ctx, logger, a.preflightChecks(u, cfg, probe)...)
	done()
	if err != nil {
		return interrupted(ctx, logger, err)
	}

	sel, err := a.loadSelection(ctx, probe, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return interrupted(ctx, logger, err)
		}
		logger.Error().Err(err).Msg("Invalid selection")
		return err
	}
	logger.Info().Stringer("selection", sel).Msg("Selection ready")

	if a.flags.saveConfig != "" {
		if err := config.WriteSelection(a.flags.saveConfig, sel.File()); err != nil {
			logger.Warn().Err(err).Str("path", a.flags.saveConfig).Msg("Failed to save selection")
		} else {
			fmt.Fprintf(env.Stdout, MsgSelectionWritten, a.flags.saveConfig)
		}
	}

	reg, err := catalog.Registry()
	if err != nil {
		return err
	}
	resolved := reg.Resolve(sel)

	format, _ := outputFormat("auto", env.Stdout)

	orch := pipeline.New(pipeline.Options{
		Runner:    exec,
		Logger:    logger,
		Result:    result,
		Selection: sel,
		Paths:     p,
		Config:    cfg,
		Backups:   backup.New(backup.Options{Root: p.BackupDir(), Logger: logger, Now: env.Now, DryRun: a.flags.dryRun}),
		Install: install.Options{
			Logger:     logger,
			MaxRetries: cfg.Install.MaxRetries,
			Backoff:    cfg.Install.Backoff,
		},
		DryRun:   a.flags.dryRun,
		Observer: newProgress(env.Stdout, format),
		Now:      env.Now,
	})
	state := orch.Run(ctx, resolved)

	// The report is written even after an interrupt.
	done = logging.LogOperationStart(logger, "report")
	rep := report.Generate(context.WithoutCancel(ctx), report.NewSystemFacts(probe), report.Input{
		Result:    result,
		Selection: sel.String(),
		LogPath:   sink.Path(),
		Now:       env.Now(),
	})
	if err := rep.WriteFile(p.ReportPath(), u.UID, u.GID); err != nil {
		logger.Warn().Err(err).Msg("Failed to write report")
	} else {
		fmt.Fprintf(env.Stdout, MsgReportWritten, p.ReportPath())
	}
	done()
	if err := rep.Render(env.Stdout, format); err != nil {
		logger.Debug().Err(err).Msg("Failed to print report")
	}

	switch state {
	case pipeline.Interrupted:
		return errors.New(errors.ErrInterrupted, MsgErrInterrupted)
	case pipeline.Aborted:
		return errors.Newf(errors.ErrTaskExecute, MsgErrAborted, result.AbortedTask()).
			WithDetail("task", result.AbortedTask())
	}

	if a.flags.dryRun {
		fmt.Fprintln(env.Stdout, MsgDryRunNotice)
		return nil
	}
	return a.maybeReboot(ctx, exec, cfg, logger)
}

// interrupted turns err into ErrInterrupted when ctx was cancelled, since
// a signal kills in-flight commands and their failure is not the cause.
func interrupted(ctx context.Context, logger zerolog.Logger, err error) error {
	if ctx.Err() == nil {
		return err
	}
	logger.Error().Err(err).Msg("Run interrupted")
	return errors.Wrap(ctx.Err(), errors.ErrInterrupted, MsgErrInterrupted)
}

func (a *app) preflightChecks(u paths.User, cfg *config.Config, r runner.Runner) []preflight.Check {
	var checks []preflight.Check
	if !a.flags.dryRun {
		checks = append(checks, preflight.Privilege(a.env.Geteuid))
	}
	checks = append(checks,
		preflight.TargetUser(u),
		preflight.Platform(cfg.Files.OSRelease),
		preflight.Network(r, cfg.Network.CheckHost),
	)
	if a.flags.configPath == "" {
		checks = append(checks, preflight.Interactive(ui.IsInteractive(a.env.Stdin)))
	}
	return checks
}

// maybeReboot offers a reboot once a run has completed. --yes reboots
// without asking; with no terminal the question is not asked.
func (a *app) maybeReboot(ctx context.Context, r runner.Runner, cfg *config.Config, logger zerolog.Logger) error {
	reboot := a.flags.yes
	if !reboot && ui.IsInteractive(a.env.Stdin) {
		var err error
		reboot, err = prompt.TimedConfirm(ctx, a.env.Stdin, a.env.Stdout, MsgRebootQuestion, cfg.Prompt.ConfirmTimeout, false)
		if err != nil {
			return interrupted(ctx, logger, err)
		}
	}
	if !reboot {
		return nil
	}
	logger.Info().Msg("Rebooting")
	cmd := system.Reboot()
	if err := r.Run(ctx, cmd).Err(cmd); err != nil {
		logger.Error().Err(err).Msg("Failed to reboot")
	}
	return nil
}
