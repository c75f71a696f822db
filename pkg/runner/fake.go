package runner

import (
	"context"
	"strings"
	"sync"
)

// Fake is a scripted Runner for tests. Commands are matched by prefix of
// their rendered line; the first matching rule wins. Unmatched commands
// return Default.
type Fake struct {
	mu      sync.Mutex
	rules   []*rule
	calls   []Command
	Default Result
}

type rule struct {
	prefix  string
	results []Result
	do      func(Command) Result
	hits    int
}

// NewFake returns a Fake whose unmatched commands succeed.
func NewFake() *Fake {
	return &Fake{Default: Success("")}
}

// On scripts the results for commands starting with prefix. Successive
// calls consume results in order; the last result repeats.
func (f *Fake) On(prefix string, results ...Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(results) == 0 {
		results = []Result{Success("")}
	}
	f.rules = append(f.rules, &rule{prefix: prefix, results: results})
	return f
}

// OnFunc scripts commands starting with prefix with a callback.
func (f *Fake) OnFunc(prefix string, do func(Command) Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, &rule{prefix: prefix, do: do})
	return f
}

// Run records cmd and returns the scripted result.
func (f *Fake) Run(ctx context.Context, cmd Command) Result {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	var matched *rule
	for _, r := range f.rules {
		if strings.HasPrefix(cmd.Line(), r.prefix) {
			matched = r
			break
		}
	}
	if matched == nil {
		f.mu.Unlock()
		return f.Default
	}
	idx := matched.hits
	matched.hits++
	do := matched.do
	f.mu.Unlock()

	if do != nil {
		return do(cmd)
	}
	if idx >= len(matched.results) {
		idx = len(matched.results) - 1
	}
	return matched.results[idx]
}

// Calls returns every command run so far.
func (f *Fake) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// Lines returns the rendered lines of every command run so far.
func (f *Fake) Lines() []string {
	var lines []string
	for _, c := range f.Calls() {
		lines = append(lines, c.Line())
	}
	return lines
}

// Count returns how many commands started with prefix.
func (f *Fake) Count(prefix string) int {
	n := 0
	for _, line := range f.Lines() {
		if strings.HasPrefix(line, prefix) {
			n++
		}
	}
	return n
}
