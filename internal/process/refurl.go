package process

import (
	"context"
	"fmt"
	"strings"

	"github.com/webhookdb/webhookdb/internal/database"
	"github.com/webhookdb/webhookdb/internal/model"
)

// RepoFromURL segments a payload's reference URL of the form
// ".../repos/{owner}/{name}/..." and looks up the repository uniquely
// by (owner, name). This is the resolution path for hooks, labels, and
// milestones whose payload carries only a URL. Returns
// apierr.NotFoundError when the owner/name segment doesn't resolve to a
// known repository, or apierr.DatabaseError on an integrity violation
// (duplicate repo rows for the same owner/name).
func RepoFromURL(ctx context.Context, db database.DB, url string) (*model.Repository, error) {
	owner, name, err := segmentRepoURL(url)
	if err != nil {
		return nil, err
	}
	return model.RepositoryStore{DB: db}.ByOwnerName(ctx, owner, name)
}

// segmentRepoURL extracts the (owner, name) pair from a GitHub API URL
// such as "https://api.github.com/repos/octocat/Hello-World/labels/bug".
func segmentRepoURL(url string) (owner, name string, err error) {
	idx := strings.Index(url, "/repos/")
	if idx < 0 {
		return "", "", fmt.Errorf("url %q does not contain a /repos/ segment", url)
	}
	rest := url[idx+len("/repos/"):]
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("url %q is missing owner/name segments", url)
	}
	return parts[0], parts[1], nil
}
