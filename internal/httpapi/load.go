package httpapi

import (
	"context"
	"net/http"
)

func (s *Server) handleRepo(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	s.runLoad(w, r, "repo", func(ctx context.Context) error {
		if err := s.Engine.Repository(ctx, owner, repo); err != nil {
			return err
		}
		s.cascadeAfter(r, owner, repo)
		return nil
	})
}

func (s *Server) handlePulls(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	state := r.URL.Query().Get("state")
	s.runLoad(w, r, "pulls", func(ctx context.Context) error { return s.Engine.PullRequests(ctx, owner, repo, state) })
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	number, err := pathInt(r, "number")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pull request number")
		return
	}
	s.runLoad(w, r, "pull", func(ctx context.Context) error {
		if err := s.Engine.PullRequest(ctx, owner, repo, number); err != nil {
			return err
		}
		if r.URL.Query().Get("children") == "true" {
			_ = s.Engine.PullRequestCascade(ctx, owner, repo, number)
		}
		return nil
	})
}

func (s *Server) handlePullFiles(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	number, err := pathInt(r, "number")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pull request number")
		return
	}
	s.runLoad(w, r, "pull_files", func(ctx context.Context) error { return s.Engine.PullRequestFiles(ctx, owner, repo, number) })
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	state := r.URL.Query().Get("state")
	s.runLoad(w, r, "issues", func(ctx context.Context) error { return s.Engine.Issues(ctx, owner, repo, state) })
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	number, err := pathInt(r, "number")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid issue number")
		return
	}
	s.runLoad(w, r, "issue", func(ctx context.Context) error { return s.Engine.Issue(ctx, owner, repo, number) })
}

func (s *Server) handleLabels(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	s.runLoad(w, r, "labels", func(ctx context.Context) error { return s.Engine.Labels(ctx, owner, repo) })
}

func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	owner, repo, name := r.PathValue("owner"), r.PathValue("repo"), r.PathValue("name")
	s.runLoad(w, r, "label", func(ctx context.Context) error { return s.Engine.Label(ctx, owner, repo, name) })
}

func (s *Server) handleMilestones(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	s.runLoad(w, r, "milestones", func(ctx context.Context) error { return s.Engine.Milestones(ctx, owner, repo) })
}

func (s *Server) handleMilestone(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	number, err := pathInt(r, "number")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid milestone number")
		return
	}
	s.runLoad(w, r, "milestone", func(ctx context.Context) error { return s.Engine.Milestone(ctx, owner, repo, number) })
}

func (s *Server) handleHooks(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	s.runLoad(w, r, "hooks", func(ctx context.Context) error { return s.Engine.Hooks(ctx, owner, repo) })
}

func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	owner, repo := r.PathValue("owner"), r.PathValue("repo")
	hookID, err := pathInt64(r, "hook_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid hook id")
		return
	}
	s.runLoad(w, r, "hook", func(ctx context.Context) error { return s.Engine.Hook(ctx, owner, repo, hookID) })
}

func (s *Server) handleAuthenticatedUserRepos(w http.ResponseWriter, r *http.Request) {
	s.runLoad(w, r, "user_repos", func(ctx context.Context) error { return s.Engine.AuthenticatedUserRepos(ctx) })
}

func (s *Server) handleUserRepos(w http.ResponseWriter, r *http.Request) {
	login := r.PathValue("username")
	s.runLoad(w, r, "user_repos", func(ctx context.Context) error { return s.Engine.UserRepos(ctx, login) })
}
