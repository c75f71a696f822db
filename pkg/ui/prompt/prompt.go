// Package prompt asks the user questions on the terminal.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

// Terminal prompts with pterm's interactive widgets.
type Terminal struct{}

// NewTerminal creates a Terminal prompter.
func NewTerminal() *Terminal {
	return &Terminal{}
}

// Select asks for one of options.
func (Terminal) Select(question string, options []string, def string) (string, error) {
	sel := pterm.DefaultInteractiveSelect.WithOptions(options)
	if def != "" {
		sel = sel.WithDefaultOption(def)
	}
	return sel.Show(question)
}

// MultiSelect asks for any subset of options. No answer is an empty slice.
func (Terminal) MultiSelect(question string, options []string) ([]string, error) {
	answers, err := pterm.DefaultInteractiveMultiselect.
		WithOptions(options).
		WithMaxHeight(len(options)).
		Show(question)
	if err != nil {
		return nil, err
	}
	if answers == nil {
		answers = []string{}
	}
	return answers, nil
}

// Confirm asks a yes/no question.
func (Terminal) Confirm(question string, def bool) (bool, error) {
	return pterm.DefaultInteractiveConfirm.WithDefaultValue(def).Show(question)
}

// TimedConfirm asks a yes/no question on out and reads the answer from in.
// With no answer within timeout, or an unreadable one, def is returned.
// A cancelled ctx ends the wait with ctx's error.
func TimedConfirm(ctx context.Context, in io.Reader, out io.Writer, question string, timeout time.Duration, def bool) (bool, error) {
	marker := "[y/N]"
	if def {
		marker = "[Y/n]"
	}
	fmt.Fprintf(out, "%s %s (%s): ", question, marker, timeout)

	answers := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && line == "" {
			close(answers)
			return
		}
		answers <- line
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case line, ok := <-answers:
		if !ok {
			fmt.Fprintln(out)
			return def, nil
		}
		return parseYesNo(line, def), nil
	case <-timer.C:
		fmt.Fprintln(out)
		unblock(in)
		return def, nil
	case <-ctx.Done():
		fmt.Fprintln(out)
		unblock(in)
		return def, ctx.Err()
	}
}

// unblock wakes the pending read on in when in supports deadlines, so the
// reader goroutine returns instead of waiting for a line nobody reads.
func unblock(in io.Reader) {
	if d, ok := in.(interface{ SetReadDeadline(time.Time) error }); ok {
		_ = d.SetReadDeadline(time.Now())
	}
}

func parseYesNo(line string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	case "n", "no":
		return false
	default:
		return def
	}
}
