package tasks

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/archsetup/pkg/backup"
	"github.com/arthur-debert/archsetup/pkg/config"
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/install"
	"github.com/arthur-debert/archsetup/pkg/paths"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/selection"
)

// Context is everything an action may touch.
type Context struct {
	Ctx            context.Context
	Task           Task
	Selection      selection.Selection
	Runner         runner.Runner
	Logger         zerolog.Logger
	Paths          *paths.Paths
	Config         *config.Config
	Journal        *Journal
	Backups        *backup.Store
	InstallOptions install.Options
	DryRun         bool
}

// Run runs cmd and returns its result without judging it.
func (tc *Context) Run(cmd runner.Command) runner.Result {
	return tc.Runner.Run(tc.Ctx, cmd)
}

// Exec runs cmd and turns a non-zero exit into an error.
func (tc *Context) Exec(cmd runner.Command) error {
	res := tc.Run(cmd)
	if !res.Succeeded {
		return res.Err(cmd)
	}
	return nil
}

// ExecAll runs commands in order and stops at the first failure.
func (tc *Context) ExecAll(cmds ...runner.Command) error {
	for _, cmd := range cmds {
		if err := tc.Exec(cmd); err != nil {
			return err
		}
	}
	return nil
}

// Install installs targets with the run's retry policy. Targets that still
// fail after all retries make the returned error.
func (tc *Context) Install(command install.CommandFunc, targets ...string) error {
	opts := tc.InstallOptions
	opts.Logger = tc.Logger
	outcome := install.New(tc.Runner, command, opts).InstallAll(tc.Ctx, targets)
	return outcome.Err()
}

// Protect backs up path before the task changes it. In dry-run mode
// nothing is written to the backup store.
func (tc *Context) Protect(path string) error {
	if tc.DryRun {
		tc.Logger.Debug().Str("path", path).Msg("Dry run, not backing up")
		return nil
	}
	if tc.Journal == nil {
		return errors.New(errors.ErrBackupIntegrity, "no backup journal for this task").
			WithDetail("path", path)
	}
	rec, err := tc.Journal.Protect(path)
	if err != nil {
		return err
	}
	tc.Logger.Debug().Str("path", path).Str("backup", rec.Backup).Bool("absent", rec.Absent).Msg("Backed up")
	return nil
}

// EditFile protects path and replaces its content with edit's result. A
// missing file is edited as empty. Nothing is written in dry-run mode or
// when the content does not change.
func (tc *Context) EditFile(path string, edit func(current []byte) ([]byte, error)) error {
	if err := tc.Protect(path); err != nil {
		return err
	}

	current, err := os.ReadFile(path)
	mode := os.FileMode(0644)
	switch {
	case err == nil:
		if info, statErr := os.Stat(path); statErr == nil {
			mode = info.Mode().Perm()
		}
	case os.IsNotExist(err):
		current = nil
	default:
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", path)
	}

	updated, err := edit(current)
	if err != nil {
		return err
	}
	if string(updated) == string(current) {
		tc.Logger.Debug().Str("path", path).Msg("File already up to date")
		return nil
	}
	if tc.DryRun {
		tc.Logger.Info().Str("path", path).Msg("Dry run, not writing file")
		return nil
	}
	if err := os.WriteFile(path, updated, mode); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot write %s", path)
	}
	tc.Logger.Debug().Str("path", path).Msg("File updated")
	return nil
}

// Skip ends the task early without failing it.
func Skip(reason string) error {
	return errors.New(errors.ErrTaskSkipped, reason)
}

// IsSkip reports whether err came from Skip.
func IsSkip(err error) bool {
	return errors.IsErrorCode(err, errors.ErrTaskSkipped)
}
