// Package freshness implements the per-entity provenance clock that makes
// replication upserts idempotent: the strict-greater ordering described in
// the replication engine's design as the Freshness Clock.
package freshness

import (
	"time"

	"github.com/webhookdb/webhookdb/internal/apierr"
)

// Via is the provenance channel a write arrived through.
type Via string

const (
	ViaWebhook Via = "webhook"
	ViaAPI     Via = "api"
)

// Provenance holds the two per-entity "last replicated" timestamps. A nil
// pointer means "never replicated via this channel" and sorts before any
// real timestamp (minimum-time sentinel).
type Provenance struct {
	WebhookAt *time.Time
	APIAt     *time.Time
}

// At returns the provenance instant for the given channel, or the zero
// time if that channel has never written this entity.
func (p Provenance) At(via Via) time.Time {
	var t *time.Time
	switch via {
	case ViaWebhook:
		t = p.WebhookAt
	case ViaAPI:
		t = p.APIAt
	}
	if t == nil {
		return time.Time{}
	}
	return *t
}

// LastReplicatedAt is the greater of the two channel instants, treating
// absence as the minimum time.
func (p Provenance) LastReplicatedAt() time.Time {
	w, a := p.At(ViaWebhook), p.At(ViaAPI)
	if w.After(a) {
		return w
	}
	return a
}

// Check enforces the strict-greater freshness guard: a write lands only
// when fetchedAt is strictly after every prior write to this entity.
// Equal-or-earlier fetches are rejected as stale so that two updates
// stamped with the same fetched_at — most commonly a duplicate delivery —
// collapse to a no-op on the second one.
func Check(p Provenance, fetchedAt time.Time) error {
	last := p.LastReplicatedAt()
	if !fetchedAt.After(last) {
		return &apierr.StaleDataError{Stored: last, Fetched: fetchedAt}
	}
	return nil
}

// Stamp records fetchedAt against the given channel.
func Stamp(p *Provenance, via Via, fetchedAt time.Time) {
	switch via {
	case ViaWebhook:
		p.WebhookAt = &fetchedAt
	case ViaAPI:
		p.APIAt = &fetchedAt
	}
}
