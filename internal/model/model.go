// Package model defines the canonical entities of the replicated object
// graph — users, repositories, hooks, milestones, labels, issues, pull
// requests, pull-request files, and the associations between them — as
// plain `db:`-tagged structs consumed by internal/database's reflection
// helpers.
//
// Cross-entity references are stored as (id, denormalized_login) pairs:
// a processor upserts the referenced entity before it writes the
// parent's foreign-key columns, so the foreign key is always backed by
// a real row.
package model

import "time"

// Provenance columns shared by every replicated row. Embedded by value
// (not by pointer) so `db:` reflection sees the flattened field set.
type Provenance struct {
	LastReplicatedViaWebhookAt *time.Time `db:"last_replicated_via_webhook_at"`
	LastReplicatedViaAPIAt     *time.Time `db:"last_replicated_via_api_at"`
}

// LastReplicatedAt is the greater of the two provenance instants,
// treating absence as the minimum time. This is the ordering the scan
// finalizer's reaping pass compares against.
func (p Provenance) LastReplicatedAt() time.Time {
	var w, a time.Time
	if p.LastReplicatedViaWebhookAt != nil {
		w = *p.LastReplicatedViaWebhookAt
	}
	if p.LastReplicatedViaAPIAt != nil {
		a = *p.LastReplicatedViaAPIAt
	}
	if w.After(a) {
		return w
	}
	return a
}

// User mirrors an upstream account.
type User struct {
	ID               int64      `db:"id"`
	Login            string     `db:"login"`
	PublicReposCount *int       `db:"public_repos_count"`
	ReposLastScanned *time.Time `db:"repos_last_scanned_at"`
	Provenance
}

// Repository mirrors an upstream repository, with owner and optional
// organization denormalized as (id, login) pairs.
type Repository struct {
	ID                         int64      `db:"id"`
	Name                       string     `db:"name"`
	OwnerID                    int64      `db:"owner_id"`
	OwnerLogin                 string     `db:"owner_login"`
	OrganizationID             *int64     `db:"organization_id"`
	OrganizationLogin          *string    `db:"organization_login"`
	IssuesLastScanned          *time.Time `db:"issues_last_scanned_at"`
	LabelsLastScanned          *time.Time `db:"labels_last_scanned_at"`
	MilestonesLastScanned      *time.Time `db:"milestones_last_scanned_at"`
	PullRequestsLastScanned    *time.Time `db:"pull_requests_last_scanned_at"`
	HooksLastScanned           *time.Time `db:"hooks_last_scanned_at"`
	Provenance
}

// RepositoryHook mirrors a configured webhook on a repository.
type RepositoryHook struct {
	ID               int64  `db:"id"`
	RepoID           int64  `db:"repo_id"`
	Name             string `db:"name"`
	TargetURL        string `db:"target_url"`
	ConfigJSON       string `db:"config_json"`
	EventsJSON       string `db:"events_json"`
	Active           bool   `db:"active"`
	LastResponseJSON string `db:"last_response_json"`
	Provenance
}

// Milestone has a composite primary key (repo_id, number).
type Milestone struct {
	RepoID            int64      `db:"repo_id"`
	Number            int        `db:"number"`
	Title             string     `db:"title"`
	State             string     `db:"state"`
	Description       string     `db:"description"`
	CreatorID         *int64     `db:"creator_id"`
	CreatorLogin      *string    `db:"creator_login"`
	OpenIssuesCount   int        `db:"open_issues_count"`
	ClosedIssuesCount int        `db:"closed_issues_count"`
	CreatedAt         *time.Time `db:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at"`
	ClosedAt          *time.Time `db:"closed_at"`
	DueAt             *time.Time `db:"due_at"`
	Provenance
}

// IssueLabel has a composite primary key (repo_id, name).
type IssueLabel struct {
	RepoID int64  `db:"repo_id"`
	Name   string `db:"name"`
	Color  string `db:"color"`
	Provenance
}

// Issue mirrors an upstream issue.
type Issue struct {
	ID               int64      `db:"id"`
	RepoID           int64      `db:"repo_id"`
	Number           int        `db:"number"`
	State            string     `db:"state"`
	Title            string     `db:"title"`
	Body             string     `db:"body"`
	UserID           *int64     `db:"user_id"`
	UserLogin        *string    `db:"user_login"`
	AssigneeID       *int64     `db:"assignee_id"`
	AssigneeLogin    *string    `db:"assignee_login"`
	ClosedByID       *int64     `db:"closed_by_id"`
	ClosedByLogin    *string    `db:"closed_by_login"`
	MilestoneRepoID  *int64     `db:"milestone_repo_id"`
	MilestoneNumber  *int       `db:"milestone_number"`
	CreatedAt        *time.Time `db:"created_at"`
	UpdatedAt        *time.Time `db:"updated_at"`
	ClosedAt         *time.Time `db:"closed_at"`
	Provenance
}

// IssueLabelLink is a row of the issues<->labels join table.
type IssueLabelLink struct {
	IssueID int64  `db:"issue_id"`
	RepoID  int64  `db:"repo_id"`
	Name    string `db:"name"`
}

// PullRequest mirrors an upstream pull request.
type PullRequest struct {
	ID                  int64      `db:"id"`
	RepoID              int64      `db:"repo_id"`
	Number              int        `db:"number"`
	State               string     `db:"state"`
	Locked              bool       `db:"locked"`
	Title               string     `db:"title"`
	Body                string     `db:"body"`
	UserID              *int64     `db:"user_id"`
	UserLogin           *string    `db:"user_login"`
	AssigneeID          *int64     `db:"assignee_id"`
	AssigneeLogin       *string    `db:"assignee_login"`
	MergedByID          *int64     `db:"merged_by_id"`
	MergedByLogin       *string    `db:"merged_by_login"`
	BaseRepoID          *int64     `db:"base_repo_id"`
	BaseRef             string     `db:"base_ref"`
	HeadRepoID          *int64     `db:"head_repo_id"`
	HeadRef             string     `db:"head_ref"`
	MilestoneRepoID     *int64     `db:"milestone_repo_id"`
	MilestoneNumber     *int       `db:"milestone_number"`
	Merged              bool       `db:"merged"`
	Mergeable           *bool      `db:"mergeable"`
	MergeableState      string     `db:"mergeable_state"`
	CommentsCount       int        `db:"comments_count"`
	ReviewCommentsCount int        `db:"review_comments_count"`
	CommitsCount        int        `db:"commits_count"`
	Additions           int        `db:"additions"`
	Deletions           int        `db:"deletions"`
	ChangedFiles        int        `db:"changed_files"`
	FilesLastScanned    *time.Time `db:"files_last_scanned_at"`
	CreatedAt           *time.Time `db:"created_at"`
	UpdatedAt           *time.Time `db:"updated_at"`
	ClosedAt            *time.Time `db:"closed_at"`
	MergedAt            *time.Time `db:"merged_at"`
	Provenance
}

// PullRequestFile has a composite primary key (pull_request_id, sha).
type PullRequestFile struct {
	PullRequestID int64  `db:"pull_request_id"`
	SHA           string `db:"sha"`
	Filename      string `db:"filename"`
	Status        string `db:"status"`
	Additions     int    `db:"additions"`
	Deletions     int    `db:"deletions"`
	Changes       int    `db:"changes"`
	Patch         string `db:"patch"`
	Provenance
}

// UserRepoAssociation has a composite primary key (user_id, repo_id).
type UserRepoAssociation struct {
	UserID   int64 `db:"user_id"`
	RepoID   int64 `db:"repo_id"`
	CanPull  bool  `db:"can_pull"`
	CanPush  bool  `db:"can_push"`
	CanAdmin bool  `db:"can_admin"`
}

// Mutex is a named, database-backed mutual-exclusion lock row.
type Mutex struct {
	Name         string    `db:"name"`
	CreatedAt    time.Time `db:"created_at"`
	HolderUserID *int64    `db:"holder_user_id"`
}
