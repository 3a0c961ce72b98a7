package freshness

import (
	"errors"
	"testing"
	"time"

	"github.com/webhookdb/webhookdb/internal/apierr"
)

func TestCheck_FirstWriteAlwaysWins(t *testing.T) {
	var p Provenance
	if err := Check(p, time.Now()); err != nil {
		t.Fatalf("first write on an empty provenance should never be stale: %v", err)
	}
}

func TestCheck_StrictGreaterRejectsEqualFetch(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := Provenance{APIAt: &t0}

	err := Check(p, t0)
	var stale *apierr.StaleDataError
	if !errors.As(err, &stale) {
		t.Fatalf("equal fetchedAt must be rejected as stale (strict >), got %v", err)
	}
}

func TestCheck_RejectsEarlierFetch(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	earlier := t0.Add(-time.Hour)
	p := Provenance{WebhookAt: &t0}

	if err := Check(p, earlier); err == nil {
		t.Fatal("expected StaleData for a fetch earlier than the stored instant")
	}
}

func TestCheck_AcceptsStrictlyLaterFetch(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := t0.Add(time.Second)
	p := Provenance{APIAt: &t0}

	if err := Check(p, later); err != nil {
		t.Fatalf("expected success for a strictly later fetch, got %v", err)
	}
}

func TestLastReplicatedAt_GreaterOfTwoChannels(t *testing.T) {
	webhookAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	apiAt := webhookAt.Add(time.Hour)
	p := Provenance{WebhookAt: &webhookAt, APIAt: &apiAt}

	if got := p.LastReplicatedAt(); !got.Equal(apiAt) {
		t.Fatalf("expected the later (api) instant, got %v", got)
	}
}

func TestLastReplicatedAt_AbsentChannelIsMinimumTime(t *testing.T) {
	var p Provenance
	if got := p.LastReplicatedAt(); !got.IsZero() {
		t.Fatalf("expected the zero-time sentinel for an entity never replicated, got %v", got)
	}
}

func TestStamp_RecordsOnlyTheGivenChannel(t *testing.T) {
	var p Provenance
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	Stamp(&p, ViaWebhook, t0)
	if p.WebhookAt == nil || !p.WebhookAt.Equal(t0) {
		t.Fatalf("expected WebhookAt stamped to %v, got %v", t0, p.WebhookAt)
	}
	if p.APIAt != nil {
		t.Fatalf("expected APIAt to remain nil, got %v", p.APIAt)
	}
}

// Processing the same fetchedAt twice in a row is a no-op on the second
// attempt, the guard that makes duplicate deliveries idempotent.
func TestIdempotence_SameFetchedAtTwiceIsStaleOnSecond(t *testing.T) {
	var p Provenance
	t0 := time.Now()

	if err := Check(p, t0); err != nil {
		t.Fatalf("first application should succeed: %v", err)
	}
	Stamp(&p, ViaAPI, t0)

	if err := Check(p, t0); err == nil {
		t.Fatal("reprocessing the identical fetchedAt must be rejected as stale")
	}
}
