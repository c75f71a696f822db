package archsetup

import (
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"

	"github.com/arthur-debert/archsetup/pkg/pipeline"
	"github.com/arthur-debert/archsetup/pkg/tasks"
	"github.com/arthur-debert/archsetup/pkg/ui"
)

// progress prints one header per phase and one line per finished task.
type progress struct {
	w      io.Writer
	styled bool
}

func newProgress(w io.Writer, format ui.Format) *progress {
	return &progress{w: w, styled: format == ui.FormatTerminal}
}

func (p *progress) PhaseStarted(phase tasks.Phase, taskCount int) {
	header := fmt.Sprintf(MsgPhaseHeader, phase, taskCount)
	if p.styled {
		fmt.Fprint(p.w, pterm.DefaultSection.Sprint(header))
		return
	}
	fmt.Fprintf(p.w, "\n== %s\n", header)
}

func (p *progress) TaskStarted(task tasks.Task) {}

func (p *progress) TaskFinished(o pipeline.Outcome) {
	line := fmt.Sprintf("%s (%s)", o.TaskID, o.Duration.Round(time.Millisecond))
	if !p.styled {
		fmt.Fprintf(p.w, MsgTaskLine, "["+o.Status.String()+"]", line)
		return
	}
	switch o.Status {
	case pipeline.Succeeded:
		fmt.Fprint(p.w, pterm.Success.Sprintln(line))
	case pipeline.Skipped, pipeline.Restored:
		fmt.Fprint(p.w, pterm.Warning.Sprintln(line+" "+o.Status.String()))
	default:
		fmt.Fprint(p.w, pterm.Error.Sprintln(line))
	}
}
