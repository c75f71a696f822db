// Package pipeline runs a resolved task list phase by phase and applies each
// task's failure policy.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/archsetup/pkg/backup"
	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/install"
	"github.com/arthur-debert/archsetup/pkg/paths"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/selection"
	"github.com/arthur-debert/archsetup/pkg/tasks"
)

// Observer is told about progress. Every method is called synchronously.
type Observer interface {
	PhaseStarted(phase tasks.Phase, taskCount int)
	TaskStarted(task tasks.Task)
	TaskFinished(outcome Outcome)
}

// Options contains everything tasks get access to.
type Options struct {
	Runner    runner.Runner
	Logger    zerolog.Logger
	Result    *RunResult
	Selection selection.Selection
	Paths     *paths.Paths
	Config    *config.Config
	Backups   *backup.Store
	Install   install.Options
	DryRun    bool
	Observer  Observer
	Now       func() time.Time
}

// Orchestrator executes tasks in order.
type Orchestrator struct {
	opts   Options
	logger zerolog.Logger
	result *RunResult
	now    func() time.Time
}

// New creates an Orchestrator. The logger should carry opts.Result as a
// hook so the counters see every event.
func New(opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	result := opts.Result
	if result == nil {
		result = NewRunResult("", now)
	}
	return &Orchestrator{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "pipeline").Logger(),
		result: result,
		now:    now,
	}
}

// Result returns the run result.
func (o *Orchestrator) Result() *RunResult {
	return o.result
}

// Run executes ts, which must be in phase order. It returns the final
// state; details are in Result.
func (o *Orchestrator) Run(ctx context.Context, ts []tasks.Task) State {
	o.result.start()
	o.logger.Info().Int("tasks", len(ts)).Bool("dry_run", o.opts.DryRun).Msg("Run started")

	current := tasks.Phase(-1)
	for i, t := range ts {
		if ctx.Err() != nil {
			return o.interrupt(t.ID)
		}

		if t.Phase != current {
			current = t.Phase
			o.result.enter(current)
			count := phaseSize(ts[i:], current)
			o.logger.Info().Str("phase", current.String()).Int("tasks", count).Msg("Phase started")
			if o.opts.Observer != nil {
				o.opts.Observer.PhaseStarted(current, count)
			}
		}

		outcome := o.execute(ctx, t)
		o.result.record(outcome)
		if o.opts.Observer != nil {
			o.opts.Observer.TaskFinished(outcome)
		}

		if ctx.Err() != nil && outcome.Status != Succeeded {
			return o.interrupt(t.ID)
		}
		if outcome.Status == Failed && t.Policy == tasks.Fatal {
			o.logger.Error().Str("task", t.ID).Str("phase", t.Phase.String()).
				Msg("Aborting run: fatal task failed")
			o.result.finish(Aborted, t.ID)
			return Aborted
		}
	}

	o.result.finish(Completed, "")
	o.logger.Info().
		Int("errors", o.result.Errors()).
		Int("warnings", o.result.Warnings()).
		Dur("elapsed", o.result.Elapsed()).
		Msg("Run completed")
	return Completed
}

func (o *Orchestrator) execute(ctx context.Context, t tasks.Task) Outcome {
	start := o.now()
	logger := o.opts.Logger.With().Str("task", t.ID).Str("phase", t.Phase.String()).Logger()
	journal := tasks.NewJournal(o.opts.Backups)

	if o.opts.Observer != nil {
		o.opts.Observer.TaskStarted(t)
	}
	logger.Info().Str("policy", t.Policy.String()).Msg(describe(t))

	tc := &tasks.Context{
		Ctx:            ctx,
		Task:           t,
		Selection:      o.opts.Selection,
		Runner:         o.opts.Runner,
		Logger:         logger,
		Paths:          o.opts.Paths,
		Config:         o.opts.Config,
		Journal:        journal,
		Backups:        o.opts.Backups,
		InstallOptions: o.opts.Install,
		DryRun:         o.opts.DryRun,
	}

	err := safeRun(t, tc)
	outcome := Outcome{
		TaskID: t.ID,
		Phase:  t.Phase,
		Policy: t.Policy,
		Err:    err,
	}

	switch {
	case err == nil:
		outcome.Status = Succeeded
		logger.Info().Dur("duration", o.now().Sub(start)).Msg("Task completed")
	case tasks.IsSkip(err):
		outcome.Status = Skipped
		logger.Warn().Str("reason", errors.GetErrorMessage(err)).Msg("Task skipped")
	default:
		outcome.Status = Failed
		failure(logger.Error(), t, err).Msg("Task failed")
		if t.Policy == tasks.Recoverable && journal.Len() > 0 {
			if restoreErr := journal.RestoreAll(logger); restoreErr == nil {
				outcome.Status = Restored
			}
		}
	}

	outcome.Duration = o.now().Sub(start)
	return outcome
}

func (o *Orchestrator) interrupt(taskID string) State {
	o.logger.Error().Str("task", taskID).Msg("Run interrupted")
	o.result.finish(Interrupted, "")
	return Interrupted
}

// safeRun turns a panicking action into a failure.
func safeRun(t tasks.Task, tc *tasks.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrInternal, "task %s panicked: %v", t.ID, r)
		}
	}()
	return t.Action(tc)
}

func failure(e *zerolog.Event, t tasks.Task, err error) *zerolog.Event {
	e = e.Err(err).Str("policy", t.Policy.String())
	details := errors.GetErrorDetails(err)
	if cmd, ok := details["command"]; ok {
		e = e.Interface("command", cmd)
	}
	if code, ok := details["exit_code"]; ok {
		e = e.Interface("exit_code", code)
	}
	if targets, ok := details["targets"]; ok {
		e = e.Interface("targets", targets)
	}
	return e
}

func describe(t tasks.Task) string {
	if t.Description == "" {
		return fmt.Sprintf("Running %s", t.ID)
	}
	return t.Description
}

func phaseSize(ts []tasks.Task, p tasks.Phase) int {
	n := 0
	for _, t := range ts {
		if t.Phase != p {
			break
		}
		n++
	}
	return n
}
