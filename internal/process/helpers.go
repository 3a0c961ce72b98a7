package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/go-github/v68/github"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/freshness"
)

// isStale reports whether err is (or wraps) a StaleDataError — the
// recovered-locally case that never blocks a parent's foreign-key
// assignment.
func isStale(err error) bool {
	var stale *apierr.StaleDataError
	return errors.As(err, &stale)
}

// isNothingToDo reports whether err is (or wraps) a NothingToDoError.
func isNothingToDo(err error) bool {
	var skip *apierr.NothingToDoError
	return errors.As(err, &skip)
}

// recurseUserRef implements the present/absent/null reference policy
// for a single optional *github.User field shared by the Issue and
// PullRequest processors: recurse-then-set when present, leave
// *idPtr/*loginPtr untouched when absent, clear them when the caller
// observed an explicit JSON null.
func recurseUserRef(ctx context.Context, db database.DB, u *github.User, explicitNull bool, fetchedAt time.Time, via freshness.Via, commit bool, idPtr **int64, loginPtr **string) error {
	switch {
	case u != nil:
		if _, err := ProcessUser(ctx, db, u, Options{FetchedAt: fetchedAt, Via: via, Commit: commit}); err != nil && !isStale(err) {
			return fmt.Errorf("upserting referenced user: %w", err)
		}
		id := u.GetID()
		login := u.GetLogin()
		*idPtr, *loginPtr = &id, &login
	case explicitNull:
		*idPtr, *loginPtr = nil, nil
	}
	return nil
}
