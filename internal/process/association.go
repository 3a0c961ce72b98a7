package process

import (
	"context"
	"fmt"

	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/model"
)

// ProcessUserRepoAssociation upserts the (user, repo) permission row
// populated when a user's repo list is scanned with permissions embedded
// — GET /user/repos returns a `permissions` map per repo.
// This table carries no provenance columns: the
// permission snapshot is simply overwritten by whatever scan observed it
// last, since there is no webhook channel that reports permission
// changes independently of a repo-list scan.
func ProcessUserRepoAssociation(ctx context.Context, db database.DB, userID, repoID int64, perms map[string]bool) error {
	row := model.UserRepoAssociation{
		UserID:   userID,
		RepoID:   repoID,
		CanPull:  perms["pull"],
		CanPush:  perms["push"],
		CanAdmin: perms["admin"],
	}
	if err := db.Upsert(ctx, "user_repo_associations", row, []string{"user_id", "repo_id"}); err != nil {
		return fmt.Errorf("upserting user/repo association %d/%d: %w", userID, repoID, err)
	}
	return nil
}
