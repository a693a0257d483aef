package augment

import "fmt"

// ConfigError reports an invalid request: unknown engine tag, empty function
// list, bad window bounds, and similar. All ConfigErrors are raised before
// any computation starts.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "augment: invalid config: " + e.Reason
}

func configErrorf(format string, args ...any) *ConfigError {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

// ColumnNotFoundError reports a date, value, or group column missing from
// the input schema.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("augment: column %q not found in input schema", e.Column)
}

// NamingConflictError reports two resolved output column names colliding
// with each other or with an existing column.
type NamingConflictError struct {
	Name string
}

func (e *NamingConflictError) Error() string {
	return fmt.Sprintf("augment: output column %q collides with an existing or earlier output column", e.Name)
}

// ComputationError reports a user-supplied window function failing during
// evaluation. It carries enough context to locate the failing window.
type ComputationError struct {
	Column string // output column being computed
	Group  string // group key of the partition, "" when ungrouped
	Row    int    // original row index of the failing window's anchor row
	Window Window
	Err    error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("augment: computing %q (group %q, row %d, window %d..%d back): %v",
		e.Column, e.Group, e.Row, e.Window.Lower, e.Window.Upper, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }
