// Package apierr defines the replication engine's error taxonomy.
//
// These are kinds, not a single sentinel type: callers use errors.As to
// recover the concrete struct and its payload. Propagation policy lives
// with the callers (internal/webhook, internal/scanner) — this package
// only defines the shapes.
package apierr

import (
	"fmt"
	"time"
)

// MissingDataError indicates a required primary-key or url field was
// absent from a payload.
type MissingDataError struct {
	Field   string
	Payload any
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("missing required field %q in payload", e.Field)
}

// StaleDataError indicates the stored row is already at or ahead of the
// incoming fetch instant. Not a user-visible error; swallowed by the
// outer pipeline.
type StaleDataError struct {
	Stored  time.Time
	Fetched time.Time
}

func (e *StaleDataError) Error() string {
	return fmt.Sprintf("stale data: stored %s >= fetched %s", e.Stored.Format(time.RFC3339), e.Fetched.Format(time.RFC3339))
}

// NothingToDoError is a documented "skip" (e.g. a PR file entry with no sha).
type NothingToDoError struct {
	Reason string
}

func (e *NothingToDoError) Error() string { return "nothing to do: " + e.Reason }

// NotFoundError indicates an upstream 404, or a repository lookup that
// matched zero rows.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.URL) }

// RateLimitedError carries the upstream-declared reset instant.
type RateLimitedError struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited until %s", e.Reset.Format(time.RFC3339))
}

// WaitSeconds returns how long until the rate-limit window resets,
// floored at zero.
func (e *RateLimitedError) WaitSeconds() int {
	d := int(time.Until(e.Reset).Seconds())
	if d < 0 {
		return 0
	}
	return d
}

// DatabaseError indicates multiple rows matched a supposedly-unique
// lookup — a fatal integrity bug reported to the operator.
type DatabaseError struct {
	Query string
	Err   error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error (%s): %v", e.Query, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// IntegrityError indicates a concurrent-insertion unique-constraint race.
// Retried at the task level with linearly backed-off attempts; the
// scheduler abandons the job after its MaxAttempts-th attempt.
type IntegrityError struct {
	Table string
	Err   error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity error on %s: %v", e.Table, e.Err)
}
func (e *IntegrityError) Unwrap() error { return e.Err }

// UpstreamError is a non-success HTTP response that is not 404 or
// rate-limit. Treated as task failure; retried per the queue's policy.
type UpstreamError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d for %s: %s", e.StatusCode, e.URL, e.Body)
}
