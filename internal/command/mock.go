package command

import (
	"context"
	"strings"
	"sync"
)

// MockRunner is a mock implementation of Runner for testing.
type MockRunner struct {
	mu    sync.Mutex
	calls []Call

	// RunFunc, if set, handles every call. When nil the mock returns
	// empty output and no error.
	RunFunc func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// Call records the parameters of a single Run invocation.
type Call struct {
	Dir  string
	Name string
	Args []string
}

// String renders the call as the command line it represents.
func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// NewMockRunner creates a MockRunner with an empty call history.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// Run implements the Runner interface. It records the call, then delegates
// to RunFunc when set.
func (m *MockRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Dir: dir, Name: name, Args: append([]string(nil), args...)})
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, dir, name, args...)
	}
	return nil, nil
}

// Calls returns a copy of the recorded call history.
func (m *MockRunner) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// CommandLines returns the recorded calls rendered as command lines,
// in invocation order. Convenient for order assertions.
func (m *MockRunner) CommandLines() []string {
	calls := m.Calls()
	lines := make([]string, len(calls))
	for i, c := range calls {
		lines[i] = c.String()
	}
	return lines
}

// Reset clears the call history.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
