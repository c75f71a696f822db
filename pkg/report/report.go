// Package report assembles the end-of-run summary: run counters, per-task
// outcomes and a snapshot of system facts. Generating a report only reads.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/pipeline"
	"github.com/arthur-debert/archsetup/pkg/ui"
)

// Input is what a report is built from.
type Input struct {
	Result    *pipeline.RunResult
	Selection string
	LogPath   string
	Now       time.Time
}

// Report is a rendered markdown summary.
type Report struct {
	Markdown string
}

// Generate builds the report. Facts that cannot be read show as
// Unavailable; generation itself does not fail.
func Generate(ctx context.Context, facts FactSource, in Input) *Report {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	result := in.Result
	if result == nil {
		result = pipeline.NewRunResult("", nil)
	}

	var b strings.Builder
	b.WriteString("# archsetup report\n\n")
	fmt.Fprintf(&b, "Generated %s", now.Format(time.RFC1123))
	if result.RunID() != "" {
		fmt.Fprintf(&b, " for run `%s`", result.RunID())
	}
	b.WriteString(".\n\n")

	b.WriteString("## Run\n\n")
	b.WriteString("| | |\n|---|---|\n")
	row(&b, "State", result.State().String())
	if task := result.AbortedTask(); task != "" {
		row(&b, "Aborted by", "`"+task+"`")
	}
	row(&b, "Errors", fmt.Sprint(result.Errors()))
	row(&b, "Warnings", fmt.Sprint(result.Warnings()))
	if started := result.StartedAt(); !started.IsZero() {
		row(&b, "Started", started.Format(time.RFC3339))
		row(&b, "Elapsed", result.Elapsed().Round(time.Second).String())
	}
	if in.Selection != "" {
		row(&b, "Selection", "`"+in.Selection+"`")
	}
	if in.LogPath != "" {
		row(&b, "Log", "`"+in.LogPath+"`")
	}

	b.WriteString("\n## Tasks\n\n")
	outcomes := result.Outcomes()
	if len(outcomes) == 0 {
		b.WriteString("No tasks were run.\n")
	} else {
		fmt.Fprintf(&b, "%d succeeded, %d skipped, %d failed, %d restored.\n\n",
			result.Count(pipeline.Succeeded), result.Count(pipeline.Skipped),
			result.Count(pipeline.Failed), result.Count(pipeline.Restored))
		b.WriteString("| Task | Phase | Policy | Result | Duration |\n|---|---|---|---|---|\n")
		for _, o := range outcomes {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				o.TaskID, o.Phase, o.Policy, o.Status, o.Duration.Round(time.Millisecond))
		}

		var problems []string
		for _, o := range outcomes {
			if o.Err != nil {
				problems = append(problems, fmt.Sprintf("- **%s** (%s): %s", o.TaskID, o.Status, errors.GetErrorMessage(o.Err)))
			}
		}
		if len(problems) > 0 {
			b.WriteString("\n### Problems\n\n")
			b.WriteString(strings.Join(problems, "\n"))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n## System\n\n")
	b.WriteString("| Fact | Value |\n|---|---|\n")
	if facts != nil {
		for _, f := range facts.Facts(ctx) {
			row(&b, f.Name, f.Value)
		}
	}

	return &Report{Markdown: b.String()}
}

func row(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", name, strings.ReplaceAll(value, "|", "\\|"))
}

// WriteFile writes the markdown to path, creating parent directories. The
// file is handed to uid:gid when they are not negative.
func (r *Report) WriteFile(path string, uid, gid int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot create report directory for %s", path)
	}
	if err := os.WriteFile(path, []byte(r.Markdown), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot write report %s", path)
	}
	if uid >= 0 && gid >= 0 {
		_ = os.Chown(path, uid, gid)
	}
	return nil
}

// Render prints the report. Terminal output goes through glamour; any
// other format prints the markdown as is.
func (r *Report) Render(w io.Writer, format ui.Format) error {
	out := r.Markdown
	if format == ui.FormatTerminal {
		out = ui.NewMarkdownRenderer().Render(r.Markdown)
	}
	_, err := io.WriteString(w, out)
	return err
}
