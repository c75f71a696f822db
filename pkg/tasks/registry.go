package tasks

import (
	"github.com/arthur-debert/archsetup/pkg/errors"
	"github.com/arthur-debert/archsetup/pkg/selection"
)

// Registry is the static, validated task catalog.
type Registry struct {
	tasks []Task
	byID  map[string]int
}

// NewRegistry validates tasks and keeps them in the given order. Tasks must
// be declared phase by phase, with unique IDs and an action.
func NewRegistry(tasks ...Task) (*Registry, error) {
	r := &Registry{
		tasks: make([]Task, 0, len(tasks)),
		byID:  make(map[string]int, len(tasks)),
	}

	last := Phase(-1)
	for _, t := range tasks {
		switch {
		case t.ID == "":
			return nil, errors.New(errors.ErrInternal, "task without an ID")
		case !t.Phase.Valid():
			return nil, errors.Newf(errors.ErrInternal, "task %s has unknown phase %d", t.ID, int(t.Phase))
		case t.Phase < last:
			return nil, errors.Newf(errors.ErrInternal, "task %s in phase %s is declared after phase %s", t.ID, t.Phase, last)
		case t.Policy < Fatal || t.Policy > Recoverable:
			return nil, errors.Newf(errors.ErrInternal, "task %s has unknown policy %d", t.ID, int(t.Policy))
		case t.Action == nil:
			return nil, errors.Newf(errors.ErrInternal, "task %s has no action", t.ID)
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, errors.Newf(errors.ErrInternal, "duplicate task %s", t.ID)
		}
		last = t.Phase
		r.byID[t.ID] = len(r.tasks)
		r.tasks = append(r.tasks, t)
	}
	return r, nil
}

// Tasks returns the full catalog.
func (r *Registry) Tasks() []Task {
	out := make([]Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Lookup finds a task by ID.
func (r *Registry) Lookup(id string) (Task, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Task{}, false
	}
	return r.tasks[i], true
}

// Resolve returns the tasks sel enables, in catalog order.
func (r *Registry) Resolve(sel selection.Selection) []Task {
	var out []Task
	for _, t := range r.tasks {
		if t.Gate.Allows(sel) {
			out = append(out, t)
		}
	}
	return out
}

// PhasePlan is one phase of a resolved plan.
type PhasePlan struct {
	Phase Phase
	Tasks []Task
}

// Plan groups the resolved tasks by phase. Empty phases are included so a
// plan always lists every phase.
func (r *Registry) Plan(sel selection.Selection) []PhasePlan {
	resolved := r.Resolve(sel)
	plan := make([]PhasePlan, 0, len(Phases))
	for _, p := range Phases {
		pp := PhasePlan{Phase: p}
		for _, t := range resolved {
			if t.Phase == p {
				pp.Tasks = append(pp.Tasks, t)
			}
		}
		plan = append(plan, pp)
	}
	return plan
}
