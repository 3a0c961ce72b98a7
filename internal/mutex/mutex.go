// Package mutex implements database-backed mutual exclusion for scans:
// a uniquely-named row whose insertion races decide which scan spawn
// proceeds, with no lease or expiry (an accepted trade-off — see
// DESIGN.md).
package mutex

import (
	"context"
	"fmt"
	"time"

	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/model"
)

// Scope names the keyspace a scan's mutex lives under, e.g.
// "Repository|octocat/Hello-World|pulls" or
// "PullRequest|octocat/Hello-World#1|files".
type Scope struct {
	Kind   string // "User", "Repository", "PullRequest"
	Target string // "octocat" or "octocat/Hello-World" or "octocat/Hello-World#1"
	Scan   string // "repos", "pulls", "issues", "labels", "milestones", "hooks", "files"
}

// Name renders the scope into the mutex row's primary key.
func (s Scope) Name() string {
	return fmt.Sprintf("%s|%s|%s", s.Kind, s.Target, s.Scan)
}

// RepoScope builds the scope for a repository-owned scan.
func RepoScope(owner, repo, scan string) Scope {
	return Scope{Kind: "Repository", Target: owner + "/" + repo, Scan: scan}
}

// UserScope builds the scope for a user-owned scan.
func UserScope(login, scan string) Scope {
	return Scope{Kind: "User", Target: login, Scan: scan}
}

// PullRequestScope builds the scope for a pull-request-owned scan.
func PullRequestScope(owner, repo string, number int, scan string) Scope {
	return Scope{Kind: "PullRequest", Target: fmt.Sprintf("%s/%s#%d", owner, repo, number), Scan: scan}
}

// ErrAlreadyHeld is returned by Acquire when the mutex row already exists
// — another scan of the same scope is in progress and this spawn must be
// a no-op.
var ErrAlreadyHeld = fmt.Errorf("mutex already held")

// Acquire attempts to insert the mutex row for scope. A unique-constraint
// violation on the primary key is translated to ErrAlreadyHeld rather
// than propagated as a hard error; any other database error is returned
// as-is.
func Acquire(ctx context.Context, db database.DB, scope Scope, holderUserID *int64) error {
	row := model.Mutex{
		Name:         scope.Name(),
		CreatedAt:    time.Now().UTC(),
		HolderUserID: holderUserID,
	}
	_, err := db.Insert(ctx, "mutexes", row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrAlreadyHeld
		}
		return fmt.Errorf("acquiring mutex %s: %w", scope.Name(), err)
	}
	return nil
}

// Release unconditionally deletes the mutex row. Called only by the scan
// finalizer, or by administrative cleanup.
func Release(ctx context.Context, db database.DB, scope Scope) error {
	if err := db.Exec(ctx, `DELETE FROM mutexes WHERE name = ?`, scope.Name()); err != nil {
		return fmt.Errorf("releasing mutex %s: %w", scope.Name(), err)
	}
	return nil
}

// Held reports whether a mutex row currently exists for scope.
func Held(ctx context.Context, db database.DB, scope Scope) (bool, error) {
	var rows []model.Mutex
	err := db.Select(ctx, &rows, `SELECT name, created_at, holder_user_id FROM mutexes WHERE name = ?`, scope.Name())
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// ClearStale deletes mutex rows older than maxAge: the administrative
// sweep backing `webhookdb mutex clear`. There is no automatic TTL,
// since an in-progress scan has no way to renew a lease under the
// current single-row design.
func ClearStale(ctx context.Context, db database.DB, maxAge time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-maxAge)
	var rows []model.Mutex
	if err := db.Select(ctx, &rows, `SELECT name, created_at, holder_user_id FROM mutexes WHERE created_at < ?`, cutoff); err != nil {
		return 0, err
	}
	for _, r := range rows {
		if err := db.Exec(ctx, `DELETE FROM mutexes WHERE name = ?`, r.Name); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}
