package tasks

import (
	"fmt"
	"strings"

	"github.com/arthur-debert/archsetup/pkg/selection"
)

// Phase is an ordered group of tasks. It is only a label.
type Phase int

const (
	Preparation Phase = iota
	Hardware
	CoreServices
	Storage
	Applications
	SystemConfiguration
	Cleanup
	Finalization
)

// Phases lists every phase in execution order.
var Phases = []Phase{
	Preparation,
	Hardware,
	CoreServices,
	Storage,
	Applications,
	SystemConfiguration,
	Cleanup,
	Finalization,
}

var phaseNames = map[Phase]string{
	Preparation:         "preparation",
	Hardware:            "hardware",
	CoreServices:        "core-services",
	Storage:             "storage",
	Applications:        "applications",
	SystemConfiguration: "system-configuration",
	Cleanup:             "cleanup",
	Finalization:        "finalization",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Valid reports whether p is a declared phase.
func (p Phase) Valid() bool {
	_, ok := phaseNames[p]
	return ok
}

// Policy decides what a task failure does to the run.
type Policy int

const (
	// Fatal aborts the run.
	Fatal Policy = iota
	// Degrading logs the failure and continues.
	Degrading
	// Recoverable restores the files the task backed up, then continues.
	Recoverable
)

func (p Policy) String() string {
	switch p {
	case Fatal:
		return "fatal"
	case Degrading:
		return "degrading"
	case Recoverable:
		return "recoverable"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Gate is a task's enablement predicate. Every set field must match; the
// zero Gate always allows.
type Gate struct {
	Step   selection.Step
	CPU    selection.CPUVendor
	GPU    selection.GPUVendor
	Laptop bool
}

// Always is the unconditional gate.
func Always() Gate { return Gate{} }

// RequireStep gates on a chosen step.
func RequireStep(s selection.Step) Gate { return Gate{Step: s} }

// RequireCPU gates on the CPU vendor.
func RequireCPU(v selection.CPUVendor) Gate { return Gate{CPU: v} }

// RequireGPU gates on the GPU vendor.
func RequireGPU(v selection.GPUVendor) Gate { return Gate{GPU: v} }

// RequireLaptop gates on the laptop flag.
func RequireLaptop() Gate { return Gate{Laptop: true} }

// All combines gates. Later gates win on the same field.
func All(gates ...Gate) Gate {
	var out Gate
	for _, g := range gates {
		if g.Step != "" {
			out.Step = g.Step
		}
		if g.CPU != "" {
			out.CPU = g.CPU
		}
		if g.GPU != "" {
			out.GPU = g.GPU
		}
		out.Laptop = out.Laptop || g.Laptop
	}
	return out
}

// Unconditional reports whether the gate allows every selection.
func (g Gate) Unconditional() bool {
	return g == Gate{}
}

// Allows reports whether sel enables the gated task.
func (g Gate) Allows(sel selection.Selection) bool {
	if g.Step != "" && !sel.Has(g.Step) {
		return false
	}
	if g.CPU != "" && sel.CPU() != g.CPU {
		return false
	}
	if g.GPU != "" && sel.GPU() != g.GPU {
		return false
	}
	if g.Laptop && !sel.Laptop() {
		return false
	}
	return true
}

func (g Gate) String() string {
	if g.Unconditional() {
		return "always"
	}
	var parts []string
	if g.Step != "" {
		parts = append(parts, "step="+string(g.Step))
	}
	if g.CPU != "" {
		parts = append(parts, "cpu="+string(g.CPU))
	}
	if g.GPU != "" {
		parts = append(parts, "gpu="+string(g.GPU))
	}
	if g.Laptop {
		parts = append(parts, "laptop")
	}
	return strings.Join(parts, " ")
}

// Action is the body of a task.
type Action func(tc *Context) error

// Task is a named unit of work.
type Task struct {
	ID          string
	Phase       Phase
	Policy      Policy
	Description string
	Gate        Gate
	Action      Action
}

func (t Task) String() string {
	return fmt.Sprintf("%s/%s", t.Phase, t.ID)
}
