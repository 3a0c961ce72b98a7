package mutex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/webhookdb/webhookdb/internal/config"
	"github.com/webhookdb/webhookdb/internal/database"
)

func newTestDB(t *testing.T) database.DB {
	t.Helper()
	db, err := database.NewSQLite(config.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("opening in-memory sqlite: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestScope_Name(t *testing.T) {
	cases := []struct {
		scope Scope
		want  string
	}{
		{RepoScope("octocat", "Hello-World", "pulls"), "Repository|octocat/Hello-World|pulls"},
		{UserScope("octocat", "repos"), "User|octocat|repos"},
		{PullRequestScope("octocat", "Hello-World", 1, "files"), "PullRequest|octocat/Hello-World#1|files"},
	}
	for _, c := range cases {
		if got := c.scope.Name(); got != c.want {
			t.Errorf("Name() = %q, want %q", got, c.want)
		}
	}
}

// Given two acquire attempts for the same scope, exactly one succeeds.
func TestAcquire_CollisionIsExclusive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	scope := RepoScope("octocat", "Hello-World", "pulls")

	if err := Acquire(ctx, db, scope, nil); err != nil {
		t.Fatalf("first acquire should succeed: %v", err)
	}

	err := Acquire(ctx, db, scope, nil)
	if !errors.Is(err, ErrAlreadyHeld) {
		t.Fatalf("second acquire of the same scope should return ErrAlreadyHeld, got %v", err)
	}

	held, err := Held(ctx, db, scope)
	if err != nil {
		t.Fatalf("Held: %v", err)
	}
	if !held {
		t.Fatal("expected the mutex row to still exist after the collision")
	}
}

func TestAcquireRelease_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	scope := UserScope("octocat", "repos")

	if err := Acquire(ctx, db, scope, nil); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := Release(ctx, db, scope); err != nil {
		t.Fatalf("release: %v", err)
	}

	held, err := Held(ctx, db, scope)
	if err != nil {
		t.Fatalf("Held: %v", err)
	}
	if held {
		t.Fatal("expected the mutex row to be gone after Release")
	}

	// A scan scope released by the finalizer can be re-acquired
	// immediately by the next spawn.
	if err := Acquire(ctx, db, scope, nil); err != nil {
		t.Fatalf("re-acquire after release should succeed: %v", err)
	}
}

func TestClearStale_OnlySweepsOldEnoughRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old := RepoScope("octocat", "stuck-repo", "issues")
	fresh := RepoScope("octocat", "active-repo", "issues")

	if _, err := db.Insert(ctx, "mutexes", struct {
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
	}{old.Name(), time.Now().UTC().Add(-2 * time.Hour)}); err != nil {
		t.Fatalf("seeding old mutex: %v", err)
	}
	if err := Acquire(ctx, db, fresh, nil); err != nil {
		t.Fatalf("acquiring fresh mutex: %v", err)
	}

	n, err := ClearStale(ctx, db, time.Hour)
	if err != nil {
		t.Fatalf("ClearStale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 stale mutex cleared, got %d", n)
	}

	heldOld, _ := Held(ctx, db, old)
	heldFresh, _ := Held(ctx, db, fresh)
	if heldOld {
		t.Error("expected the stale mutex to be cleared")
	}
	if !heldFresh {
		t.Error("expected the fresh mutex to survive the sweep")
	}
}
