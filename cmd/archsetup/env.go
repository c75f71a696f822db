package archsetup

import (
	"io"
	"os"
	"time"

	"github.com/arthur-debert/archsetup/pkg/paths"
	"github.com/arthur-debert/archsetup/pkg/runner"
	"github.com/arthur-debert/archsetup/pkg/selection"
	"github.com/arthur-debert/archsetup/pkg/ui/prompt"
)

// Env is the process environment commands run against. Tests replace
// parts of it.
type Env struct {
	Getenv  func(string) string
	Lookup  paths.Lookup
	Geteuid func() int
	Stdin   *os.File
	Stdout  io.Writer
	Stderr  io.Writer
	Now     func() time.Time

	// Prompter asks the interactive questions.
	Prompter selection.Prompter
	// Runner, when set, replaces the process runner for every command.
	Runner runner.Runner
}

// DefaultEnv is the real process environment.
func DefaultEnv() Env {
	return Env{
		Getenv:   os.Getenv,
		Geteuid:  os.Geteuid,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Now:      time.Now,
		Prompter: prompt.NewTerminal(),
	}
}

func (e Env) withDefaults() Env {
	d := DefaultEnv()
	if e.Getenv == nil {
		e.Getenv = d.Getenv
	}
	if e.Geteuid == nil {
		e.Geteuid = d.Geteuid
	}
	if e.Stdout == nil {
		e.Stdout = d.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = d.Stderr
	}
	if e.Now == nil {
		e.Now = d.Now
	}
	if e.Prompter == nil {
		e.Prompter = d.Prompter
	}
	return e
}
