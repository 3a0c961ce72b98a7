// Package process implements the per-entity idempotent upsert functions
// shared by webhook intake and REST scans. Each processor takes a
// google/go-github typed payload: the nil-safe GetX() accessors give
// per-field "missing field means leave unchanged" semantics, and each
// processor writes out the explicit list of fields it copies rather
// than reflecting over the payload.
package process

import (
	"time"

	"github.com/webhookdb/webhookdb/internal/freshness"
)

// Options carries the per-call parameters common to every processor:
// the fetch instant and provenance channel consumed by the Freshness
// Clock, whether to actually flush the write, and which optional
// reference fields the caller observed as an explicit JSON null (as
// opposed to simply absent) on the raw webhook payload — the one place
// the typed-struct reading of the payload needs help, since go-github
// unmarshals both "absent" and "null" to the same nil pointer.
type Options struct {
	FetchedAt time.Time
	Via       freshness.Via
	Commit    bool
	// NullFields lists optional reference fields the caller has
	// determined were sent as an explicit JSON null. Keys are per
	// processor: "user", "milestone", "assignee", "closed_by",
	// "merged_by", "creator", "organization".
	// A field both absent from NullFields and nil in the typed payload
	// is treated as "not present in payload" (leave unchanged); a field
	// present in NullFields is treated as "present but null" (clear).
	NullFields map[string]bool
}

func (o Options) fetchedAt() time.Time {
	if o.FetchedAt.IsZero() {
		return time.Now().UTC()
	}
	return o.FetchedAt
}

func (o Options) isNull(field string) bool {
	return o.NullFields[field]
}

// Result is what a processor reports back about the write it staged.
// StaleData/NothingToDo are constructed as apierr values and returned
// as the function's plain error — callers match on them with errors.As
// — while the zero-value Result returned alongside keeps the call site
// from having to special-case a "did nothing" return another way.
type Result struct {
	// Wrote is true when a row was inserted or updated.
	Wrote bool
	// Key is the primary key of the row located or written: an int64
	// for single-column keys, or a small composite-key struct for
	// entities with one (Milestone, IssueLabel, PullRequestFile).
	Key any
}
