package monitoring

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/isdelr/feedwall-be/internal/database"
	"github.com/isdelr/feedwall-be/internal/services"
	"github.com/isdelr/feedwall-be/internal/storage"
)

func newTestEnv(t *testing.T) (*Reconciler, *sql.DB, *storage.LocalStore) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	store, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create image store: %v", err)
	}

	rec, err := NewReconciler(db, store, services.NewEventService(db), "@hourly")
	if err != nil {
		t.Fatalf("NewReconciler returned error: %v", err)
	}
	return rec, db, store
}

func insertUserAndPost(t *testing.T, db *sql.DB, userID, postID, imageRef string) {
	t.Helper()
	if _, err := db.Exec("INSERT OR IGNORE INTO users (id, email, name, password_hash) VALUES (?, ?, ?, ?)",
		userID, userID+"@example.com", "Test", "hash"); err != nil {
		t.Fatalf("failed to insert user: %v", err)
	}
	if _, err := db.Exec("INSERT INTO posts (id, title, content, image_ref, creator) VALUES (?, ?, ?, ?, ?)",
		postID, "Title here", "Content here", imageRef, userID); err != nil {
		t.Fatalf("failed to insert post: %v", err)
	}
}

func TestNewReconcilerRejectsBadCron(t *testing.T) {
	_, db, store := newTestEnv(t)
	if _, err := NewReconciler(db, store, services.NewEventService(db), "not a cron"); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestRepairBackReferences(t *testing.T) {
	rec, db, _ := newTestEnv(t)
	insertUserAndPost(t, db, "u1", "p1", "ref1")

	// A stale row for a deleted post, and no row for the live one.
	if _, err := db.Exec("INSERT INTO user_posts (user_id, post_id) VALUES ('u1', 'gone')"); err != nil {
		t.Fatalf("failed to insert stale back-reference: %v", err)
	}

	if err := rec.repairBackReferences(); err != nil {
		t.Fatalf("repairBackReferences returned error: %v", err)
	}

	rows, err := db.Query("SELECT post_id FROM user_posts WHERE user_id = 'u1' ORDER BY post_id")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()
	var got []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		got = append(got, id)
	}
	if len(got) != 1 || got[0] != "p1" {
		t.Errorf("expected back-references [p1], got %v", got)
	}
}

func TestSweepOrphanArtifacts(t *testing.T) {
	rec, db, store := newTestEnv(t)

	referenced, err := store.Store("kept.png", []byte("kept"))
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	orphan, err := store.Store("orphan.png", []byte("orphan"))
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	fresh, err := store.Store("fresh.png", []byte("fresh"))
	if err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	insertUserAndPost(t, db, "u1", "p1", referenced)

	// Age the referenced and orphaned artifacts past the grace period; the
	// fresh orphan stays inside it.
	old := time.Now().Add(-2 * artifactGracePeriod)
	for _, ref := range []string{referenced, orphan} {
		if err := os.Chtimes(filepath.Join(store.BasePath(), ref), old, old); err != nil {
			t.Fatalf("failed to age artifact: %v", err)
		}
	}

	if err := rec.sweepOrphanArtifacts(); err != nil {
		t.Fatalf("sweepOrphanArtifacts returned error: %v", err)
	}

	refs, err := store.Refs()
	if err != nil {
		t.Fatalf("Refs returned error: %v", err)
	}
	remaining := map[string]bool{}
	for _, r := range refs {
		remaining[r.Ref] = true
	}
	if !remaining[referenced] {
		t.Error("referenced artifact must survive the sweep")
	}
	if remaining[orphan] {
		t.Error("aged orphan artifact must be removed")
	}
	if !remaining[fresh] {
		t.Error("artifact inside the grace period must survive")
	}
}

func TestRunAndStop(t *testing.T) {
	rec, _, _ := newTestEnv(t)

	done := make(chan struct{})
	go func() {
		rec.Run()
		close(done)
	}()

	rec.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
