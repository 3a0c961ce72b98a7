package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/model"
	"github.com/webhookdb/webhookdb/internal/mutex"
	"github.com/webhookdb/webhookdb/internal/process"
)

// UserRepos runs a full scan of a user's repository list via GET
// /users/{username}/repos; the authenticated-only GET /user/repos
// listing is not used, also not when login is the token owner's. Each listed repo carries its own permissions map,
// which supplements the canonical Repository row with a
// UserRepoAssociation row.
func (e *Engine) UserRepos(ctx context.Context, login string) error {
	userID, err := e.resolveUserID(ctx, login)
	if err != nil {
		return err
	}
	scope := mutex.UserScope(login, "repos")
	headPath := fmt.Sprintf("users/%s/repos", login)

	fetch := func(ctx context.Context, page, perPage int) (int, error) {
		repos, _, err := e.Upstream.GH().Repositories.ListByUser(ctx, login, &github.RepositoryListByUserOptions{
			ListOptions: github.ListOptions{Page: page, PerPage: perPage},
		})
		if err != nil {
			return 0, err
		}
		fetchedAt := time.Now().UTC()
		for _, r := range repos {
			res, err := process.ProcessRepository(ctx, e.DB, r, nil, process.Options{FetchedAt: fetchedAt, Via: "api", Commit: true})
			if err != nil && !isRecoverable(err) {
				return 0, err
			}
			if err == nil && res.Wrote && r.Permissions != nil {
				if err := process.ProcessUserRepoAssociation(ctx, e.DB, userID, r.GetID(), r.Permissions); err != nil {
					return 0, err
				}
			}
		}
		return len(repos), nil
	}

	finalize := func(ctx context.Context, startedAt time.Time) error {
		return finalizeParent(ctx, startedAt,
			func(ctx context.Context) (*time.Time, error) { return getScannedAt(ctx, e.DB, "users", "repos_last_scanned_at", userID) },
			func(ctx context.Context, t time.Time) error { return setScannedAt(ctx, e.DB, "users", "repos_last_scanned_at", userID, t) },
			func(ctx context.Context, previous time.Time) error { return reapRepositories(ctx, e.DB, userID, previous) },
		)
	}

	return e.Run(ctx, scope, headPath, 0, fetch, finalize)
}

// AuthenticatedUserRepos looks up the token's own login (GET /user) and
// runs UserRepos for it, so the listing still comes from GET
// /users/{username}/repos.
func (e *Engine) AuthenticatedUserRepos(ctx context.Context) error {
	u, _, err := e.Upstream.GH().Users.Get(ctx, "")
	if err != nil {
		return translateGitHubErr("user", err)
	}
	return e.UserRepos(ctx, u.GetLogin())
}

// resolveUserID finds the stored id for login, upserting a fresh user
// row from a direct lookup when none exists yet. Resolved once before
// fan-out starts, since page workers run concurrently and must not race
// on learning the id from whichever repo happens to list first.
func (e *Engine) resolveUserID(ctx context.Context, login string) (int64, error) {
	if row, err := (model.UserStore{DB: e.DB}).ByLogin(ctx, login); err != nil {
		return 0, err
	} else if row != nil {
		return row.ID, nil
	}
	u, _, err := e.Upstream.GH().Users.Get(ctx, login)
	if err != nil {
		return 0, translateGitHubErr(fmt.Sprintf("users/%s", login), err)
	}
	res, err := process.ProcessUser(ctx, e.DB, u, process.Options{FetchedAt: time.Now().UTC(), Via: "api", Commit: true})
	if err != nil {
		return 0, err
	}
	id, _ := res.Key.(int64)
	return id, nil
}
