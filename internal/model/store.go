package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/webhookdb/webhookdb/internal/apierr"
	"github.com/webhookdb/webhookdb/internal/database"
)

// UserStore provides the lookups processors need beyond the generic
// database.DB verbs: by-id and by-login reads used when a payload only
// carries a login or when a recursive processor needs the stored
// provenance before applying the freshness guard.
type UserStore struct{ DB database.DB }

func (s UserStore) Get(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.DB.Get(ctx, &u, `SELECT id, login, public_repos_count, repos_last_scanned_at,
		last_replicated_via_webhook_at, last_replicated_via_api_at FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &u, err
}

func (s UserStore) ByLogin(ctx context.Context, login string) (*User, error) {
	var users []User
	err := s.DB.Select(ctx, &users, `SELECT id, login, public_repos_count, repos_last_scanned_at,
		last_replicated_via_webhook_at, last_replicated_via_api_at FROM users WHERE login = ?`, login)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	if len(users) > 1 {
		return nil, &apierr.DatabaseError{Query: "users by login", Err: fmt.Errorf("%d rows for login %q", len(users), login)}
	}
	return &users[0], nil
}

// RepositoryStore mirrors UserStore for repositories, adding the
// owner/name lookup that URL-reference payloads (hooks, labels,
// milestones) resolve through.
type RepositoryStore struct{ DB database.DB }

func (s RepositoryStore) Get(ctx context.Context, id int64) (*Repository, error) {
	var r Repository
	err := s.DB.Get(ctx, &r, repoSelect+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &r, err
}

// ByOwnerName looks up a repository uniquely by (owner_login, name), the
// shape a webhook URL reference segments into. NotFound when no row
// matches; DatabaseError when more than one does (an integrity bug,
// since (owner_login, name) is a unique index).
func (s RepositoryStore) ByOwnerName(ctx context.Context, owner, name string) (*Repository, error) {
	var repos []Repository
	err := s.DB.Select(ctx, &repos, repoSelect+` WHERE owner_login = ? AND name = ?`, owner, name)
	if err != nil {
		return nil, err
	}
	if len(repos) == 0 {
		return nil, &apierr.NotFoundError{URL: fmt.Sprintf("/repos/%s/%s", owner, name)}
	}
	if len(repos) > 1 {
		return nil, &apierr.DatabaseError{Query: "repositories by owner/name", Err: fmt.Errorf("%d rows for %s/%s", len(repos), owner, name)}
	}
	return &repos[0], nil
}

const repoSelect = `SELECT id, name, owner_id, owner_login, organization_id, organization_login,
	issues_last_scanned_at, labels_last_scanned_at, milestones_last_scanned_at,
	pull_requests_last_scanned_at, hooks_last_scanned_at,
	last_replicated_via_webhook_at, last_replicated_via_api_at FROM repositories`

// MilestoneStore looks up milestones by composite key.
type MilestoneStore struct{ DB database.DB }

func (s MilestoneStore) Get(ctx context.Context, repoID int64, number int) (*Milestone, error) {
	var m Milestone
	err := s.DB.Get(ctx, &m, `SELECT repo_id, number, title, state, description, creator_id, creator_login,
		open_issues_count, closed_issues_count, created_at, updated_at, closed_at, due_at,
		last_replicated_via_webhook_at, last_replicated_via_api_at
		FROM milestones WHERE repo_id = ? AND number = ?`, repoID, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &m, err
}

// LabelStore looks up issue labels by composite key.
type LabelStore struct{ DB database.DB }

func (s LabelStore) Get(ctx context.Context, repoID int64, name string) (*IssueLabel, error) {
	var l IssueLabel
	err := s.DB.Get(ctx, &l, `SELECT repo_id, name, color,
		last_replicated_via_webhook_at, last_replicated_via_api_at
		FROM issue_labels WHERE repo_id = ? AND name = ?`, repoID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &l, err
}

// IssueStore looks up issues by (repo_id, number) as well as by id.
type IssueStore struct{ DB database.DB }

const issueSelect = `SELECT id, repo_id, number, state, title, body, user_id, user_login,
	assignee_id, assignee_login, closed_by_id, closed_by_login,
	milestone_repo_id, milestone_number, created_at, updated_at, closed_at,
	last_replicated_via_webhook_at, last_replicated_via_api_at FROM issues`

func (s IssueStore) Get(ctx context.Context, id int64) (*Issue, error) {
	var i Issue
	err := s.DB.Get(ctx, &i, issueSelect+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &i, err
}

func (s IssueStore) ByRepoNumber(ctx context.Context, repoID int64, number int) (*Issue, error) {
	var i Issue
	err := s.DB.Get(ctx, &i, issueSelect+` WHERE repo_id = ? AND number = ?`, repoID, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &i, err
}

// ReplaceLabels atomically sets the complete label set for an issue: an
// empty list clears all links, a non-empty list replaces them.
func (s IssueStore) ReplaceLabels(ctx context.Context, issueID, repoID int64, names []string) error {
	if err := s.DB.Exec(ctx, `DELETE FROM issue_labels_issues WHERE issue_id = ?`, issueID); err != nil {
		return fmt.Errorf("clearing labels for issue %d: %w", issueID, err)
	}
	for _, name := range names {
		if err := s.DB.Exec(ctx,
			`INSERT INTO issue_labels_issues (issue_id, repo_id, name) VALUES (?, ?, ?)`,
			issueID, repoID, name); err != nil {
			return fmt.Errorf("linking label %q to issue %d: %w", name, issueID, err)
		}
	}
	return nil
}

// PullRequestStore looks up pull requests by (repo_id, number) as well
// as by id.
type PullRequestStore struct{ DB database.DB }

const pullRequestSelect = `SELECT id, repo_id, number, state, locked, title, body, user_id, user_login,
	assignee_id, assignee_login, merged_by_id, merged_by_login,
	base_repo_id, base_ref, head_repo_id, head_ref, milestone_repo_id, milestone_number,
	merged, mergeable, mergeable_state, comments_count, review_comments_count, commits_count,
	additions, deletions, changed_files, files_last_scanned_at,
	created_at, updated_at, closed_at, merged_at,
	last_replicated_via_webhook_at, last_replicated_via_api_at FROM pull_requests`

func (s PullRequestStore) Get(ctx context.Context, id int64) (*PullRequest, error) {
	var pr PullRequest
	err := s.DB.Get(ctx, &pr, pullRequestSelect+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &pr, err
}

func (s PullRequestStore) ByRepoNumber(ctx context.Context, repoID int64, number int) (*PullRequest, error) {
	var pr PullRequest
	err := s.DB.Get(ctx, &pr, pullRequestSelect+` WHERE repo_id = ? AND number = ?`, repoID, number)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &pr, err
}

// PullRequestFileStore looks up files by composite key.
type PullRequestFileStore struct{ DB database.DB }

func (s PullRequestFileStore) Get(ctx context.Context, pullRequestID int64, sha string) (*PullRequestFile, error) {
	var f PullRequestFile
	err := s.DB.Get(ctx, &f, `SELECT pull_request_id, sha, filename, status, additions, deletions, changes, patch,
		last_replicated_via_webhook_at, last_replicated_via_api_at
		FROM pull_request_files WHERE pull_request_id = ? AND sha = ?`, pullRequestID, sha)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &f, err
}

// ByRepo lists every issue belonging to repoID, for the scan finalizer's
// reaping pass.
func (s IssueStore) ByRepo(ctx context.Context, repoID int64) ([]Issue, error) {
	var rows []Issue
	err := s.DB.Select(ctx, &rows, issueSelect+` WHERE repo_id = ?`, repoID)
	return rows, err
}

// Delete removes a single issue row by id.
func (s IssueStore) Delete(ctx context.Context, id int64) error {
	return s.DB.Exec(ctx, `DELETE FROM issues WHERE id = ?`, id)
}

// ByRepo lists every label belonging to repoID.
func (s LabelStore) ByRepo(ctx context.Context, repoID int64) ([]IssueLabel, error) {
	var rows []IssueLabel
	err := s.DB.Select(ctx, &rows, `SELECT repo_id, name, color,
		last_replicated_via_webhook_at, last_replicated_via_api_at
		FROM issue_labels WHERE repo_id = ?`, repoID)
	return rows, err
}

func (s LabelStore) Delete(ctx context.Context, repoID int64, name string) error {
	return s.DB.Exec(ctx, `DELETE FROM issue_labels WHERE repo_id = ? AND name = ?`, repoID, name)
}

// ByRepo lists every milestone belonging to repoID.
func (s MilestoneStore) ByRepo(ctx context.Context, repoID int64) ([]Milestone, error) {
	var rows []Milestone
	err := s.DB.Select(ctx, &rows, `SELECT repo_id, number, title, state, description, creator_id, creator_login,
		open_issues_count, closed_issues_count, created_at, updated_at, closed_at, due_at,
		last_replicated_via_webhook_at, last_replicated_via_api_at
		FROM milestones WHERE repo_id = ?`, repoID)
	return rows, err
}

func (s MilestoneStore) Delete(ctx context.Context, repoID int64, number int) error {
	return s.DB.Exec(ctx, `DELETE FROM milestones WHERE repo_id = ? AND number = ?`, repoID, number)
}

// ByRepo lists every pull request belonging to repoID.
func (s PullRequestStore) ByRepo(ctx context.Context, repoID int64) ([]PullRequest, error) {
	var rows []PullRequest
	err := s.DB.Select(ctx, &rows, pullRequestSelect+` WHERE repo_id = ?`, repoID)
	return rows, err
}

func (s PullRequestStore) Delete(ctx context.Context, id int64) error {
	return s.DB.Exec(ctx, `DELETE FROM pull_requests WHERE id = ?`, id)
}

// ByRepo lists every hook belonging to repoID.
func (s HookStore) ByRepo(ctx context.Context, repoID int64) ([]RepositoryHook, error) {
	var rows []RepositoryHook
	err := s.DB.Select(ctx, &rows, `SELECT id, repo_id, name, target_url, config_json, events_json, active, last_response_json,
		last_replicated_via_webhook_at, last_replicated_via_api_at
		FROM repository_hooks WHERE repo_id = ?`, repoID)
	return rows, err
}

func (s HookStore) Delete(ctx context.Context, id int64) error {
	return s.DB.Exec(ctx, `DELETE FROM repository_hooks WHERE id = ?`, id)
}

// ByPullRequest lists every file belonging to a pull request.
func (s PullRequestFileStore) ByPullRequest(ctx context.Context, pullRequestID int64) ([]PullRequestFile, error) {
	var rows []PullRequestFile
	err := s.DB.Select(ctx, &rows, `SELECT pull_request_id, sha, filename, status, additions, deletions, changes, patch,
		last_replicated_via_webhook_at, last_replicated_via_api_at
		FROM pull_request_files WHERE pull_request_id = ?`, pullRequestID)
	return rows, err
}

func (s PullRequestFileStore) Delete(ctx context.Context, pullRequestID int64, sha string) error {
	return s.DB.Exec(ctx, `DELETE FROM pull_request_files WHERE pull_request_id = ? AND sha = ?`, pullRequestID, sha)
}

// ByOwner lists every repository owned by userID, for the user's
// repos_last_scanned_at reaping pass.
func (s RepositoryStore) ByOwner(ctx context.Context, ownerID int64) ([]Repository, error) {
	var rows []Repository
	err := s.DB.Select(ctx, &rows, repoSelect+` WHERE owner_id = ?`, ownerID)
	return rows, err
}

func (s RepositoryStore) Delete(ctx context.Context, id int64) error {
	return s.DB.Exec(ctx, `DELETE FROM repositories WHERE id = ?`, id)
}

// HookStore looks up repository hooks by id.
type HookStore struct{ DB database.DB }

func (s HookStore) Get(ctx context.Context, id int64) (*RepositoryHook, error) {
	var h RepositoryHook
	err := s.DB.Get(ctx, &h, `SELECT id, repo_id, name, target_url, config_json, events_json, active, last_response_json,
		last_replicated_via_webhook_at, last_replicated_via_api_at
		FROM repository_hooks WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return &h, err
}
