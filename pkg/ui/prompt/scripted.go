package prompt

import (
	"fmt"
	"sync"
)

// Scripted answers prompts from queues. It is meant for tests and for
// replaying answers; an exhausted queue is an error.
type Scripted struct {
	mu           sync.Mutex
	Selects      []string
	MultiSelects [][]string
	Confirms     []bool
	Asked        []string
}

// Select pops the next select answer.
func (s *Scripted) Select(question string, options []string, def string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, question)
	if len(s.Selects) == 0 {
		return "", fmt.Errorf("no scripted answer for %q", question)
	}
	answer := s.Selects[0]
	s.Selects = s.Selects[1:]
	return answer, nil
}

// MultiSelect pops the next checklist answer. An empty queue means no
// boxes were ticked.
func (s *Scripted) MultiSelect(question string, options []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, question)
	if len(s.MultiSelects) == 0 {
		return []string{}, nil
	}
	answer := s.MultiSelects[0]
	s.MultiSelects = s.MultiSelects[1:]
	return answer, nil
}

// Confirm pops the next confirmation, or returns def.
func (s *Scripted) Confirm(question string, def bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, question)
	if len(s.Confirms) == 0 {
		return def, nil
	}
	answer := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return answer, nil
}
