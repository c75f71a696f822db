// Package runner executes external commands for the rest of archsetup.
//
// It is the only place that spawns processes. A Runner never returns an error
// for a non-zero exit: it reports a Result and lets the caller decide what a
// failure means. Output of every invocation is appended to the run log unless
// the command is marked Silent.
package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"time"

	apperrors "github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/logging"
	"github.com/rs/zerolog"
)

// ExitNotFound is reported when a command cannot be found or spawned.
const ExitNotFound = 127

// ExitInterrupted is reported when the run context is cancelled while the
// command is running.
const ExitInterrupted = 130

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// Stdin feeds the process. Nil means no input.
	Stdin io.Reader
	// Silent keeps the output out of the log. Used for read-only queries.
	Silent bool
}

// Cmd is a shorthand constructor.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Line renders the command as a single shell-like line for logs and matching.
func (c Command) Line() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Quiet returns a copy of c marked Silent.
func (c Command) Quiet() Command {
	c.Silent = true
	return c
}

// Result is the structured outcome of one invocation.
type Result struct {
	ExitCode  int
	Succeeded bool
	Output    string
	Duration  time.Duration
}

// Success builds a successful result.
func Success(output string) Result {
	return Result{ExitCode: 0, Succeeded: true, Output: output}
}

// Failure builds a failed result.
func Failure(exitCode int, output string) Result {
	return Result{ExitCode: exitCode, Succeeded: false, Output: output}
}

// Err converts a failed result into a task execution error naming the
// command and its exit code. It returns nil for successful results.
func (r Result) Err(cmd Command) error {
	if r.Succeeded {
		return nil
	}
	return apperrors.Newf(apperrors.ErrTaskExecute, "%s exited with %d", cmd.Name, r.ExitCode).
		WithDetail("command", cmd.Line()).
		WithDetail("exit_code", r.ExitCode)
}

// Lines splits the output into trimmed, non-empty lines.
func (r Result) Lines() []string {
	var lines []string
	for _, line := range strings.Split(r.Output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}

// Options configures an Exec runner.
type Options struct {
	Logger zerolog.Logger
	// DryRun logs commands without executing them.
	DryRun bool
	// Stream, when set, also receives the live output of non-silent commands.
	Stream io.Writer
}

// Exec runs commands with os/exec.
type Exec struct {
	logger zerolog.Logger
	dryRun bool
	stream io.Writer
}

// New creates an Exec runner.
func New(opts Options) *Exec {
	return &Exec{
		logger: logging.Component(opts.Logger, "runner"),
		dryRun: opts.DryRun,
		stream: opts.Stream,
	}
}

// Run executes cmd and waits for it to exit.
func (e *Exec) Run(ctx context.Context, cmd Command) Result {
	logging.LogCommand(e.logger, cmd.Name, cmd.Args)

	if e.dryRun {
		e.logger.Info().Str("command", cmd.Line()).Msg("Dry run - command not executed")
		return Success("")
	}

	start := time.Now()
	var out bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), cmd.Env...)
	}
	c.Stdin = cmd.Stdin
	var w io.Writer = &out
	if e.stream != nil && !cmd.Silent {
		w = io.MultiWriter(&out, e.stream)
	}
	c.Stdout = w
	c.Stderr = w

	err := c.Run()
	res := Result{Output: out.String(), Duration: time.Since(start)}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Succeeded = true
	case ctx.Err() != nil:
		res.ExitCode = ExitInterrupted
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		// Not found, permission denied on the binary, bad working dir.
		res.ExitCode = ExitNotFound
		res.Output += err.Error()
	}

	e.record(cmd, res)
	return res
}

func (e *Exec) record(cmd Command, res Result) {
	if cmd.Silent {
		e.logger.Trace().
			Str("command", cmd.Line()).
			Int("exit_code", res.ExitCode).
			Msg("Query finished")
		return
	}
	e.logger.Debug().
		Str("command", cmd.Line()).
		Int("exit_code", res.ExitCode).
		Dur("duration", res.Duration).
		Str("output", strings.TrimSpace(res.Output)).
		Msg("Command finished")
}
