package velograph

import (
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Standard sentinel errors for common operations.
var (
	// ErrConfig is matched by every ConfigError.
	ErrConfig = errors.New("velograph: invalid configuration")

	// ErrUnresolved is returned when a relation is used before both of its
	// endpoints are registered.
	ErrUnresolved = errors.New("velograph: relation not resolved")

	// ErrCardinality is returned when a "one" relation has more than one
	// relationship in the graph.
	ErrCardinality = errors.New("velograph: cardinality violation")

	// ErrNotSingular is returned when a lookup by identity matches more than
	// one node.
	ErrNotSingular = errors.New("velograph: entity not singular")
)

// ConfigError represents a declaration-time failure, such as a relation
// declared on a model that is not registered yet.
type ConfigError struct {
	Msg string
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	return "velograph: " + e.Msg
}

// Is reports whether the target error matches ConfigError.
func (e *ConfigError) Is(err error) bool {
	return err == ErrConfig
}

// NewConfigError returns a new ConfigError.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e) || errors.Is(err, ErrConfig)
}

// UnresolvedError is returned by relation accessors whose far endpoint is
// still missing.
type UnresolvedError struct {
	Relation string // accessor name
	Label    string // declaring model
	Missing  string // label of the missing endpoint, "" when deferred
}

// Error returns the error string.
func (e *UnresolvedError) Error() string {
	missing := e.Missing
	if missing == "" {
		missing = "<deferred>"
	}
	return fmt.Sprintf("velograph: relation %s.%s is not resolved (missing model %s)", e.Label, e.Relation, missing)
}

// Is reports whether the target error matches UnresolvedError.
func (e *UnresolvedError) Is(err error) bool {
	return err == ErrUnresolved
}

// IsUnresolved returns true if the error is an UnresolvedError.
func IsUnresolved(err error) bool {
	if err == nil {
		return false
	}
	var e *UnresolvedError
	return errors.As(err, &e) || errors.Is(err, ErrUnresolved)
}

// CardinalityError is returned when a relation declared as "one" finds more
// than one relationship.
type CardinalityError struct {
	Relation string
	Label    string
	GUID     string
	Count    int
}

// Error returns the error string.
func (e *CardinalityError) Error() string {
	return fmt.Sprintf("velograph: relation %s.%s of %q has %d relationships, expected at most 1", e.Label, e.Relation, e.GUID, e.Count)
}

// Is reports whether the target error matches CardinalityError.
func (e *CardinalityError) Is(err error) bool {
	return err == ErrCardinality
}

// IsCardinality returns true if the error is a CardinalityError.
func IsCardinality(err error) bool {
	if err == nil {
		return false
	}
	var e *CardinalityError
	return errors.As(err, &e) || errors.Is(err, ErrCardinality)
}

// NotSingularError represents an error when a query expects a singular result
// but receives multiple results.
type NotSingularError struct {
	label string
	count int // Number of results returned (-1 if unknown)
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("velograph: %s not singular (got %d results, expected 1)", e.label, e.count)
	}
	return fmt.Sprintf("velograph: %s not singular", e.label)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// Label returns the entity label.
func (e *NotSingularError) Label() string {
	return e.label
}

// Count returns the number of results, or -1 if unknown.
func (e *NotSingularError) Count() int {
	return e.count
}

// NewNotSingularError returns a new NotSingularError for the given entity type.
func NewNotSingularError(label string) *NotSingularError {
	return &NotSingularError{label: label, count: -1}
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the result count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// NotLoadedError represents an error when reading a relation that was not
// loaded by an include query.
type NotLoadedError struct {
	edge string
}

// Error returns the error string.
func (e *NotLoadedError) Error() string {
	return fmt.Sprintf("velograph: relation %q was not loaded", e.edge)
}

// NewNotLoadedError returns a new NotLoadedError for the given relation name.
func NewNotLoadedError(edge string) *NotLoadedError {
	return &NotLoadedError{edge: edge}
}

// IsNotLoaded returns true if the error is a NotLoadedError.
func IsNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	var e *NotLoadedError
	return errors.As(err, &e)
}

// ValidationError represents a usage error detected before any statement is
// sent.
type ValidationError struct {
	Name string // Model, relation or property name
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("velograph: invalid %s: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// StatementError is returned when a statement succeeds but its result does
// not have the expected shape, e.g. a create that returns no row.
type StatementError struct {
	Stmt   string
	Params map[string]any
	Msg    string
}

// Error returns the error string, including the statement and its
// parameters.
func (e *StatementError) Error() string {
	params, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalToString(e.Params)
	if err != nil {
		params = fmt.Sprint(e.Params)
	}
	return fmt.Sprintf("velograph: %s\n  statement: %s\n  params: %s", e.Msg, e.Stmt, params)
}

// NewStatementError returns a new StatementError.
func NewStatementError(stmt string, params map[string]any, format string, args ...any) *StatementError {
	return &StatementError{Stmt: stmt, Params: params, Msg: fmt.Sprintf(format, args...)}
}

// IsStatementError returns true if the error is a StatementError.
func IsStatementError(err error) bool {
	if err == nil {
		return false
	}
	var e *StatementError
	return errors.As(err, &e)
}

// LinkError is returned when a relation creation stops part-way: the
// destination node was created but could not be linked to the source.
// Earlier destinations of the same call stay created and linked.
type LinkError struct {
	Relation string
	Instance *Instance // created but not linked
	Err      error
}

// Error returns the error string.
func (e *LinkError) Error() string {
	guid := ""
	if e.Instance != nil {
		guid = e.Instance.GUID()
	}
	return fmt.Sprintf("velograph: node %q was created but not linked through %s: %v", guid, e.Relation, e.Err)
}

// Unwrap returns the underlying error.
func (e *LinkError) Unwrap() error {
	return e.Err
}

// IsLinkError returns true if the error is a LinkError.
func IsLinkError(err error) bool {
	if err == nil {
		return false
	}
	var e *LinkError
	return errors.As(err, &e)
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "velograph: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("velograph: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}

// PrivacyError represents a privacy policy violation.
type PrivacyError struct {
	Entity string // Entity label
	Op     string // Operation (query or mutation)
	Err    error  // Decision returned by the policy
}

// Error returns the error string.
func (e *PrivacyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("velograph: privacy denied %s on %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("velograph: privacy denied %s on %s", e.Op, e.Entity)
}

// Unwrap returns the policy decision.
func (e *PrivacyError) Unwrap() error {
	return e.Err
}

// NewPrivacyError returns a new PrivacyError.
func NewPrivacyError(entity, op string, err error) *PrivacyError {
	return &PrivacyError{Entity: entity, Op: op, Err: err}
}

// IsPrivacyError returns true if the error is a PrivacyError.
func IsPrivacyError(err error) bool {
	if err == nil {
		return false
	}
	var e *PrivacyError
	return errors.As(err, &e)
}
