package process

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/freshness"
	"github.com/webhookdb/webhookdb/internal/model"
)

// ProcessUser upserts a user row. Field map: login, public_repos →
// public_repos_count. Identity is the upstream id: a payload with an
// unexpected id is a distinct entity, never a rewrite of an existing
// row's id.
func ProcessUser(ctx context.Context, db database.DB, payload *github.User, opts Options) (Result, error) {
	if payload == nil || payload.GetID() == 0 {
		return Result{}, &apierr.MissingDataError{Field: "id", Payload: payload}
	}
	id := payload.GetID()
	fetchedAt := opts.fetchedAt()

	existing, err := model.UserStore{DB: db}.Get(ctx, id)
	if err != nil {
		return Result{}, fmt.Errorf("loading user %d: %w", id, err)
	}

	prov := model.Provenance{}
	row := model.User{ID: id}
	if existing != nil {
		prov = existing.Provenance
		row.Login = existing.Login
		row.PublicReposCount = existing.PublicReposCount
		row.ReposLastScanned = existing.ReposLastScanned
	}
	if payload.Login != nil {
		row.Login = payload.GetLogin()
	}

	if err := freshness.Check(freshness.Provenance{WebhookAt: prov.LastReplicatedViaWebhookAt, APIAt: prov.LastReplicatedViaAPIAt}, fetchedAt); err != nil {
		return Result{}, err
	}

	if payload.PublicRepos != nil {
		n := payload.GetPublicRepos()
		row.PublicReposCount = &n
	}

	stampProvenance(&prov, opts.Via, fetchedAt)
	row.Provenance = prov

	if !opts.Commit {
		return Result{Wrote: true, Key: id}, nil
	}
	if err := db.Upsert(ctx, "users", row, []string{"id"}); err != nil {
		return Result{}, translateWriteErr(db, "users", err)
	}
	return Result{Wrote: true, Key: id}, nil
}

func stampProvenance(p *model.Provenance, via freshness.Via, fetchedAt time.Time) {
	fp := freshness.Provenance{WebhookAt: p.LastReplicatedViaWebhookAt, APIAt: p.LastReplicatedViaAPIAt}
	freshness.Stamp(&fp, via, fetchedAt)
	p.LastReplicatedViaWebhookAt = fp.WebhookAt
	p.LastReplicatedViaAPIAt = fp.APIAt
}

func translateWriteErr(db database.DB, table string, err error) error {
	if db.IsUniqueViolation(err) {
		return &apierr.IntegrityError{Table: table, Err: err}
	}
	return fmt.Errorf("writing %s: %w", table, err)
}
