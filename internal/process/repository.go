package process

import (
	"context"
	"fmt"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/freshness"
	"github.com/webhookdb/webhookdb/internal/model"
)

// ProcessRepository upserts a repository row. Field map: name,
// owner (id+login, recursed via ProcessUser), organization (id+login,
// optional — recursed via ProcessUser when present).
//
// org is the webhook event's top-level Organization payload (nil for
// REST-sourced scans and for personal repositories); it is the only
// channel that carries organization context, since github.Repository
// itself has no "organization" field distinct from Owner.
func ProcessRepository(ctx context.Context, db database.DB, payload *github.Repository, org *github.Organization, opts Options) (Result, error) {
	if payload == nil || payload.GetID() == 0 {
		return Result{}, &apierr.MissingDataError{Field: "id", Payload: payload}
	}
	id := payload.GetID()
	fetchedAt := opts.fetchedAt()

	existing, err := model.RepositoryStore{DB: db}.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("loading repository %d: %w", id, err)
	}

	row := model.Repository{ID: id}
	if existing != nil {
		row = *existing
	}
	if payload.Name != nil {
		row.Name = payload.GetName()
	}

	if err := freshness.Check(freshness.Provenance{WebhookAt: row.LastReplicatedViaWebhookAt, APIAt: row.LastReplicatedViaAPIAt}, fetchedAt); err != nil {
		return Result{}, err
	}

	// Owner: upsert first, then set the FK regardless of whether that
	// recursive upsert landed or was rejected as stale. A stale
	// referenced subobject still leaves its foreign key recorded on
	// the parent, since the subobject is known to already exist.
	if owner := payload.GetOwner(); owner != nil {
		if _, err := ProcessUser(ctx, db, owner, Options{FetchedAt: fetchedAt, Via: opts.Via, Commit: opts.Commit}); err != nil && !isStale(err) {
			return Result{}, fmt.Errorf("upserting repository owner: %w", err)
		}
		row.OwnerID = owner.GetID()
		row.OwnerLogin = owner.GetLogin()
	}

	// Organization: present (recurse, then set FK), absent (leave
	// unchanged), or explicit null (clear).
	switch {
	case org != nil:
		userLike := &github.User{ID: org.ID, Login: org.Login}
		if _, err := ProcessUser(ctx, db, userLike, Options{FetchedAt: fetchedAt, Via: opts.Via, Commit: opts.Commit}); err != nil && !isStale(err) {
			return Result{}, fmt.Errorf("upserting repository organization: %w", err)
		}
		oid := org.GetID()
		olog := org.GetLogin()
		row.OrganizationID = &oid
		row.OrganizationLogin = &olog
	case opts.isNull("organization"):
		row.OrganizationID = nil
		row.OrganizationLogin = nil
	}

	stampProvenance(&row.Provenance, opts.Via, fetchedAt)

	if !opts.Commit {
		return Result{Wrote: true, Key: id}, nil
	}
	if err := db.Upsert(ctx, "repositories", row, []string{"id"}); err != nil {
		return Result{}, translateWriteErr(db, "repositories", err)
	}
	return Result{Wrote: true, Key: id}, nil
}
