// Package commandtest provides a scripted command.Runner for tests.
package commandtest

import (
	"context"
	"strings"
	"sync"

	"autosync/internal/command"
)

// Call records one invocation of the fake runner
type Call struct {
	Dir  string
	Line string
}

type rule struct {
	prefix string
	result command.Result
	err    error
	// times limits how often the rule matches; zero means unlimited
	times int
	used  int
}

// Fake answers commands from rules matched by command-line prefix.
// Later rules take precedence over earlier ones. Unmatched commands succeed
// with empty output.
type Fake struct {
	mu    sync.Mutex
	rules []*rule
	calls []Call
}

// On scripts a successful result with stdout for commands starting with prefix
func (f *Fake) On(prefix, stdout string) *Fake {
	return f.add(&rule{prefix: prefix, result: command.Result{Stdout: stdout}})
}

// OnceOn is like On but matches only the next invocation
func (f *Fake) OnceOn(prefix, stdout string) *Fake {
	return f.add(&rule{prefix: prefix, result: command.Result{Stdout: stdout}, times: 1})
}

// Fail scripts a non-zero exit for commands starting with prefix
func (f *Fake) Fail(prefix, stderr string) *Fake {
	res := command.Result{Stderr: stderr, ExitCode: 1}
	return f.add(&rule{prefix: prefix, result: res, err: &command.ExitError{Cmd: prefix, Result: res}})
}

// Error scripts an arbitrary error for commands starting with prefix
func (f *Fake) Error(prefix string, err error) *Fake {
	return f.add(&rule{prefix: prefix, err: err})
}

func (f *Fake) add(r *rule) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, r)
	return f
}

// Run implements command.Runner
func (f *Fake) Run(_ context.Context, dir, name string, args ...string) (command.Result, error) {
	line := command.Line(name, args...)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Dir: dir, Line: line})

	for i := len(f.rules) - 1; i >= 0; i-- {
		r := f.rules[i]
		if !strings.HasPrefix(line, r.prefix) {
			continue
		}
		if r.times > 0 && r.used >= r.times {
			continue
		}
		r.used++
		return r.result, r.err
	}
	return command.Result{}, nil
}

// Calls returns every recorded command line in order
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.calls))
	for i, c := range f.calls {
		lines[i] = c.Line
	}
	return lines
}

// Count returns how many recorded commands start with prefix
func (f *Fake) Count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c.Line, prefix) {
			n++
		}
	}
	return n
}

// Called reports whether any recorded command starts with prefix
func (f *Fake) Called(prefix string) bool {
	return f.Count(prefix) > 0
}

// Reset forgets recorded calls but keeps the rules
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

var _ command.Runner = (*Fake)(nil)
