// Package install installs batches of discrete targets (packages, flatpak
// apps) with bounded retries. A failing target never stops the batch; the
// caller receives the full set of targets that failed every attempt and
// decides whether that matters.
package install

import (
	"context"
	"sort"
	"time"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/rs/zerolog"
)

// Policy defaults.
const (
	DefaultMaxRetries = 3
	DefaultBackoff    = 5 * time.Second
)

// CommandFunc builds the install command for one target.
type CommandFunc func(target string) runner.Command

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures an Installer.
type Options struct {
	Logger zerolog.Logger
	// MaxRetries is the number of attempts per target. Values below 1 mean 1.
	MaxRetries int
	// Backoff is the fixed delay between two attempts of the same target.
	Backoff time.Duration
	// Sleep replaces the real delay in tests.
	Sleep SleepFunc
}

// Installer runs install commands with retries.
type Installer struct {
	runner     runner.Runner
	command    CommandFunc
	logger     zerolog.Logger
	maxRetries int
	backoff    time.Duration
	sleep      SleepFunc
}

// New creates an Installer for one backend.
func New(r runner.Runner, command CommandFunc, opts Options) *Installer {
	maxRetries := opts.MaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Installer{
		runner:     r,
		command:    command,
		logger:     logging.Component(opts.Logger, "installer"),
		maxRetries: maxRetries,
		backoff:    opts.Backoff,
		sleep:      sleep,
	}
}

// Outcome reports a batch.
type Outcome struct {
	// Failed lists permanently failed targets in input order.
	Failed []string
	// Attempts counts attempts per target.
	Attempts map[string]int
}

// FailedSet returns the failed targets as a set.
func (o Outcome) FailedSet() map[string]struct{} {
	set := make(map[string]struct{}, len(o.Failed))
	for _, t := range o.Failed {
		set[t] = struct{}{}
	}
	return set
}

// OK reports whether every target was installed.
func (o Outcome) OK() bool {
	return len(o.Failed) == 0
}

// Err escalates failed targets into an error, or returns nil.
func (o Outcome) Err() error {
	if o.OK() {
		return nil
	}
	failed := append([]string(nil), o.Failed...)
	sort.Strings(failed)
	return errors.Newf(errors.ErrInstallFailed, "%d target(s) failed to install", len(failed)).
		WithDetail("targets", failed)
}

// InstallAll installs every target independently. Duplicate targets are
// installed once.
func (i *Installer) InstallAll(ctx context.Context, targets []string) Outcome {
	out := Outcome{Attempts: make(map[string]int, len(targets))}
	seen := make(map[string]bool, len(targets))

	for _, target := range targets {
		if seen[target] {
			continue
		}
		seen[target] = true

		if ctx.Err() != nil {
			out.Failed = append(out.Failed, target)
			continue
		}
		if !i.installOne(ctx, target, &out) {
			out.Failed = append(out.Failed, target)
		}
	}

	i.logger.Debug().
		Int("targets", len(seen)).
		Int("failed", len(out.Failed)).
		Msg("Install batch finished")
	return out
}

func (i *Installer) installOne(ctx context.Context, target string, out *Outcome) bool {
	cmd := i.command(target)

	for attempt := 1; attempt <= i.maxRetries; attempt++ {
		out.Attempts[target] = attempt
		res := i.runner.Run(ctx, cmd)
		if res.Succeeded {
			i.logger.Info().
				Str("target", target).
				Int("attempt", attempt).
				Msg("Installed")
			return true
		}

		if ctx.Err() != nil {
			break
		}

		if attempt < i.maxRetries {
			i.logger.Warn().
				Err(errors.New(errors.ErrInstallTransient, "install attempt failed")).
				Str("target", target).
				Str("command", cmd.Line()).
				Int("exit_code", res.ExitCode).
				Int("attempt", attempt).
				Int("max_retries", i.maxRetries).
				Dur("backoff", i.backoff).
				Msg("Install attempt failed, retrying")
			if err := i.sleep(ctx, i.backoff); err != nil {
				break
			}
			continue
		}

		i.logger.Error().
			Str("target", target).
			Str("command", cmd.Line()).
			Int("exit_code", res.ExitCode).
			Int("attempts", attempt).
			Msg("Install failed after all retries")
		return false
	}

	i.logger.Error().
		Str("target", target).
		Msg("Install interrupted")
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
