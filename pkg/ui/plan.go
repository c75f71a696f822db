package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/arthur-debert/archsetup/pkg/tasks"
)

var (
	phaseStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	taskStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	policyStyle = map[tasks.Policy]lipgloss.Style{
		tasks.Fatal:       lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		tasks.Degrading:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		tasks.Recoverable: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	}
	mutedStyle = lipgloss.NewStyle().Faint(true)
)

type planTask struct {
	ID          string `json:"id"`
	Policy      string `json:"policy"`
	Gate        string `json:"gate"`
	Description string `json:"description"`
}

type planPhase struct {
	Phase string     `json:"phase"`
	Tasks []planTask `json:"tasks"`
}

// RenderPlan prints a resolved plan in format. FormatAuto is treated as
// text.
func RenderPlan(w io.Writer, plan []tasks.PhasePlan, format Format) error {
	switch format {
	case FormatJSON:
		out := make([]planPhase, 0, len(plan))
		for _, pp := range plan {
			phase := planPhase{Phase: pp.Phase.String(), Tasks: []planTask{}}
			for _, t := range pp.Tasks {
				phase.Tasks = append(phase.Tasks, planTask{
					ID:          t.ID,
					Policy:      t.Policy.String(),
					Gate:        t.Gate.String(),
					Description: t.Description,
				})
			}
			out = append(out, phase)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case FormatTerminal:
		return writePlan(w, plan, true)
	default:
		return writePlan(w, plan, false)
	}
}

func writePlan(w io.Writer, plan []tasks.PhasePlan, styled bool) error {
	style := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	total := 0
	for i, pp := range plan {
		fmt.Fprintf(&b, "%d. %s\n", i+1, style(phaseStyle, pp.Phase.String()))
		if len(pp.Tasks) == 0 {
			fmt.Fprintf(&b, "   %s\n", style(mutedStyle, "(nothing to do)"))
			continue
		}
		for _, t := range pp.Tasks {
			total++
			fmt.Fprintf(&b, "   - %s %s %s\n",
				style(taskStyle, fmt.Sprintf("%-22s", t.ID)),
				style(policyStyle[t.Policy], fmt.Sprintf("%-12s", t.Policy)),
				style(mutedStyle, t.Description))
		}
	}
	fmt.Fprintf(&b, "\n%d tasks\n", total)
	_, err := io.WriteString(w, b.String())
	return err
}
