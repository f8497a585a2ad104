// Package dialecttest provides a scripted dialect.Driver for tests.
//
// Expectations are consumed in the order they were declared, the same way
// sqlmock handles database/sql calls:
//
//	mock := dialecttest.New()
//	mock.ExpectExec(`MATCH \(n:Task\)`).
//	    WithParams(map[string]any{"a": "B"}).
//	    WillReturnRows(dialect.Row{"n": map[string]any{"guid": "1", "title": "Buy beer"}})
//	g := velograph.NewGraph(mock)
//	...
//	require.NoError(t, mock.ExpectationsWereMet())
package dialecttest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/stretchr/testify/assert"

	"github.com/syssam/velograph/dialect"
)

// Matcher reports whether an actual statement satisfies an expected one.
type Matcher func(expected, actual string) error

// MatchRegexp treats the expected statement as a regular expression. It is
// the default matcher.
func MatchRegexp(expected, actual string) error {
	re, err := regexp.Compile(expected)
	if err != nil {
		return err
	}
	if !re.MatchString(actual) {
		return fmt.Errorf("statement %q does not match %q", actual, expected)
	}
	return nil
}

// MatchExact compares statements after collapsing whitespace.
func MatchExact(expected, actual string) error {
	if collapse(expected) != collapse(actual) {
		return fmt.Errorf("statement %q is not equal to %q", actual, expected)
	}
	return nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Option configures a Mock.
type Option func(*Mock)

// WithMatcher sets the statement matcher.
func WithMatcher(m Matcher) Option {
	return func(mock *Mock) {
		mock.matcher = m
	}
}

// Call records one statement received by the mock.
type Call struct {
	Stmt   string
	Params map[string]any
}

// Mock is a dialect.Driver that replays scripted results.
type Mock struct {
	mu       sync.Mutex
	matcher  Matcher
	expected []*Expectation
	calls    []Call
	closed   bool
}

// New returns a Mock with no expectations.
func New(opts ...Option) *Mock {
	m := &Mock{matcher: MatchRegexp}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Expectation describes one expected statement and its scripted outcome.
type Expectation struct {
	stmt      string
	params    map[string]any
	checkArgs bool
	result    dialect.Result
	err       error
	fn        func(map[string]any) (*dialect.Result, error)
	done      bool
}

// ExpectExec appends an expectation for the next statement.
func (m *Mock) ExpectExec(stmt string) *Expectation {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &Expectation{stmt: stmt}
	m.expected = append(m.expected, e)
	return e
}

// WithParams sets the exact parameters the statement must be called with.
// Use AnyValue for values that cannot be known in advance.
func (e *Expectation) WithParams(params map[string]any) *Expectation {
	e.params = params
	e.checkArgs = true
	return e
}

// WillReturnRows sets the returned rows.
func (e *Expectation) WillReturnRows(rows ...dialect.Row) *Expectation {
	e.result.Rows = rows
	return e
}

// WillReturnStats sets the returned mutation counters.
func (e *Expectation) WillReturnStats(s dialect.Stats) *Expectation {
	e.result.Stats = s
	return e
}

// WillReturnError makes the statement fail with err.
func (e *Expectation) WillReturnError(err error) *Expectation {
	e.err = err
	return e
}

// WillRespond computes the result from the actual parameters. It is useful
// when the statement echoes generated values such as guids.
func (e *Expectation) WillRespond(fn func(params map[string]any) (*dialect.Result, error)) *Expectation {
	e.fn = fn
	return e
}

// Exec implements dialect.Driver.
func (m *Mock) Exec(_ context.Context, stmt string, params map[string]any) (*dialect.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Stmt: stmt, Params: params})
	var next *Expectation
	for _, e := range m.expected {
		if !e.done {
			next = e
			break
		}
	}
	if next == nil {
		return nil, fmt.Errorf("dialecttest: unexpected statement %q with params %v", stmt, params)
	}
	if err := m.matcher(next.stmt, stmt); err != nil {
		return nil, fmt.Errorf("dialecttest: %w", err)
	}
	if next.checkArgs && !matchValue(next.params, params) {
		return nil, fmt.Errorf("dialecttest: statement %q called with params %v, want %v", stmt, params, next.params)
	}
	next.done = true
	if next.fn != nil {
		return next.fn(params)
	}
	if next.err != nil {
		return nil, next.err
	}
	res := next.result
	return &res, nil
}

// Close implements dialect.Driver.
func (m *Mock) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Calls returns the statements received so far.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// ExpectationsWereMet returns an error naming every expectation that was
// not consumed.
func (m *Mock) ExpectationsWereMet() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, e := range m.expected {
		if !e.done {
			errs = append(errs, fmt.Errorf("dialecttest: expected statement %q was not executed", e.stmt))
		}
	}
	return errors.Join(errs...)
}

type anyValue struct{}

// AnyValue matches any parameter value.
var AnyValue any = anyValue{}

func matchValue(expected, actual any) bool {
	if _, ok := expected.(anyValue); ok {
		return true
	}
	em, ok1 := expected.(map[string]any)
	am, ok2 := actual.(map[string]any)
	if ok1 && ok2 {
		if len(em) != len(am) {
			return false
		}
		for k, ev := range em {
			av, ok := am[k]
			if !ok || !matchValue(ev, av) {
				return false
			}
		}
		return true
	}
	if ok1 && len(em) == 0 && actual == nil {
		return true
	}
	return assert.ObjectsAreEqual(expected, actual)
}

var _ dialect.Driver = (*Mock)(nil)
