package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MJE43/photohunt/internal/highscore"
)

func openTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "photohunt.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestSaveAndLoadKeepsOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []highscore.Entry{
		{Name: "NEW", Score: 1000, Timestamp: at.Add(time.Minute)},
		{Name: "OLD", Score: 1000, Timestamp: at},
		{Name: "LOW", Score: 10, Timestamp: at},
	}
	if err := db.Save(ctx, "photohunt", entries); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := db.Save(ctx, "other", entries[:1]); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := db.Load(ctx, "photohunt")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i := range entries {
		if got[i].Name != entries[i].Name || got[i].Score != entries[i].Score {
			t.Errorf("entry %d: expected %+v, got %+v", i, entries[i], got[i])
		}
	}
	if !got[0].Timestamp.Equal(entries[0].Timestamp) {
		t.Errorf("expected timestamp %v, got %v", entries[0].Timestamp, got[0].Timestamp)
	}

	if err := db.Save(ctx, "photohunt", nil); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	got, _ = db.Load(ctx, "photohunt")
	if len(got) != 0 {
		t.Errorf("expected empty table after clear, got %d", len(got))
	}
	other, _ := db.Load(ctx, "other")
	if len(other) != 1 {
		t.Errorf("expected other game untouched, got %d", len(other))
	}
}

func TestBacksHighScoreStore(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	hs := highscore.Open(ctx, highscore.Options{GameID: "photohunt", Capacity: 8, Backend: db})
	hs.AddScore(ctx, "ann", 500)
	hs.AddScore(ctx, "bob", 700)

	reopened := highscore.Open(ctx, highscore.Options{GameID: "photohunt", Capacity: 8, Backend: db})
	got := reopened.Scores()
	if len(got) != 2 || got[0].Name != "BOB" || got[1].Name != "ANN" {
		t.Errorf("unexpected persisted table: %+v", got)
	}
	if !reopened.Persistent() {
		t.Error("expected persistent store")
	}
}

func TestResults(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := db.RecordResult(ctx, Result{GameID: "photohunt", Score: i * 100, RoundsCleared: i, Outcome: "game_over", FinishedAt: base.Add(time.Duration(i) * time.Hour)})
		if err != nil {
			t.Fatalf("RecordResult failed: %v", err)
		}
	}
	got, err := db.RecentResults(ctx, "photohunt", 2)
	if err != nil {
		t.Fatalf("RecentResults failed: %v", err)
	}
	if len(got) != 2 || got[0].Score != 200 || got[1].Score != 100 {
		t.Errorf("unexpected results: %+v", got)
	}
	if got[0].ID == "" {
		t.Error("expected generated id")
	}
}
