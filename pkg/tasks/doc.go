// Package tasks defines the unit of orchestrated work and the registry that
// turns a selection into an ordered task list.
//
// A Task belongs to exactly one Phase, carries a failure Policy and an
// optional Gate. Tasks are declared once, statically, in pkg/catalog; a run
// only filters them:
//
//	reg, err := tasks.NewRegistry(catalog.Tasks(...)...)
//	for _, t := range reg.Resolve(sel) {
//	    ...
//	}
//
// Resolve never reorders. Phases run in declaration order and tasks within
// a phase keep catalog order.
//
// Actions receive a *Context giving them the runner, installer policy,
// backup journal and logger for the run. Recoverable tasks must call
// Protect (or EditFile, which does it for them) before mutating a shared
// file so the orchestrator can undo the change if the task fails.
package tasks
