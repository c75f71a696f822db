package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/archsetup/pkg/tasks"
)

// State is where a run is in its lifecycle.
type State int

const (
	NotStarted State = iota
	Running
	Completed
	Aborted
	Interrupted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	case Interrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is how one task ended.
type Status int

const (
	Succeeded Status = iota
	Skipped
	Failed
	// Restored means the task failed and its backups were put back.
	Restored
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	case Restored:
		return "restored"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome records one executed task.
type Outcome struct {
	TaskID   string
	Phase    tasks.Phase
	Policy   tasks.Policy
	Status   Status
	Err      error
	Duration time.Duration
}

// RunResult accumulates what happened during a run. Its error and warning
// counters only move when a logger carrying it as a hook emits an event.
type RunResult struct {
	mu sync.Mutex

	runID      string
	errors     int
	warnings   int
	startedAt  time.Time
	finishedAt time.Time
	state      State
	phase      tasks.Phase
	aborted    string
	outcomes   []Outcome
	now        func() time.Time
}

// NewRunResult creates an empty result for runID.
func NewRunResult(runID string, now func() time.Time) *RunResult {
	if now == nil {
		now = time.Now
	}
	return &RunResult{runID: runID, now: now}
}

// Run implements zerolog.Hook.
func (r *RunResult) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	switch level {
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		r.mu.Lock()
		r.errors++
		r.mu.Unlock()
	case zerolog.WarnLevel:
		r.mu.Lock()
		r.warnings++
		r.mu.Unlock()
	}
}

// RunID identifies the run in logs and the report.
func (r *RunResult) RunID() string { return r.runID }

// Errors returns how many ERROR events were logged.
func (r *RunResult) Errors() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors
}

// Warnings returns how many WARN events were logged.
func (r *RunResult) Warnings() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.warnings
}

// StartedAt returns when the run started, or the zero time.
func (r *RunResult) StartedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startedAt
}

// Elapsed returns the run duration so far, or the final duration once the
// run reached a terminal state.
func (r *RunResult) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.startedAt.IsZero():
		return 0
	case r.finishedAt.IsZero():
		return r.now().Sub(r.startedAt)
	default:
		return r.finishedAt.Sub(r.startedAt)
	}
}

// State returns the current state.
func (r *RunResult) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Phase returns the phase being run, or the last one run.
func (r *RunResult) Phase() tasks.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// AbortedTask names the fatal task that aborted the run.
func (r *RunResult) AbortedTask() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aborted
}

// Outcomes returns every executed task in order.
func (r *RunResult) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Count returns how many tasks ended with status.
func (r *RunResult) Count(status Status) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, o := range r.outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func (r *RunResult) start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startedAt = r.now()
	r.state = Running
}

func (r *RunResult) enter(p tasks.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = p
}

func (r *RunResult) record(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *RunResult) finish(s State, aborted string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
	r.aborted = aborted
	r.finishedAt = r.now()
}
