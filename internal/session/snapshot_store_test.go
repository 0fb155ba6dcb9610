package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*SnapshotStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewSnapshotStore(client, time.Hour), mr
}

func TestSnapshotStore_SaveLoad(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	snap := &ProgressSnapshot{
		ExamID:               42,
		StudentID:            "student-1",
		CurrentIndex:         3,
		Answers:              map[uint]interface{}{10: "B", 11: "true"},
		FlaggedQuestions:     []uint{11},
		TimeRemainingSeconds: 1800,
	}

	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "student-1", 42)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.CurrentIndex != 3 {
		t.Errorf("CurrentIndex = %d, want 3", loaded.CurrentIndex)
	}
	if loaded.TimeRemainingSeconds != 1800 {
		t.Errorf("TimeRemainingSeconds = %d, want 1800", loaded.TimeRemainingSeconds)
	}
	if !loaded.IsFlagged(11) {
		t.Error("question 11 should survive the roundtrip flagged")
	}
	if loaded.LastSaved.IsZero() {
		t.Error("Save should stamp LastSaved")
	}
}

func TestSnapshotStore_SaveReplacesWholeDocument(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := &ProgressSnapshot{
		ExamID:           1,
		StudentID:        "student-1",
		Answers:          map[uint]interface{}{5: "A"},
		FlaggedQuestions: []uint{5},
	}
	if err := store.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	second := &ProgressSnapshot{
		ExamID:    1,
		StudentID: "student-1",
		Answers:   map[uint]interface{}{6: "C"},
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	loaded, err := store.Load(ctx, "student-1", 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := loaded.Answers[5]; ok {
		t.Error("old answer leaked through a full-replace write")
	}
	if loaded.IsFlagged(5) {
		t.Error("old flag leaked through a full-replace write")
	}
}

func TestSnapshotStore_LoadMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Load(context.Background(), "nobody", 99)
	if !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestSnapshotStore_MarkFinalized(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	snap := &ProgressSnapshot{ExamID: 7, StudentID: "student-2", TimeRemainingSeconds: 30}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if err := store.MarkFinalized(ctx, "student-2", 7); err != nil {
		t.Fatalf("MarkFinalized failed: %v", err)
	}

	if _, err := store.Load(ctx, "student-2", 7); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Load after finalize: err = %v, want ErrSnapshotNotFound", err)
	}

	// A late autosave racing the finalize must be rejected
	if err := store.Save(ctx, snap); !errors.Is(err, ErrSessionFinalized) {
		t.Errorf("Save after finalize: err = %v, want ErrSessionFinalized", err)
	}
}

func TestSnapshotStore_ClearAllowsFreshAttempt(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	snap := &ProgressSnapshot{ExamID: 8, StudentID: "student-3"}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.MarkFinalized(ctx, "student-3", 8); err != nil {
		t.Fatalf("MarkFinalized failed: %v", err)
	}

	if err := store.Clear(ctx, "student-3", 8); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	// Clear removes the finalize marker too, so the next attempt can write
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save after Clear failed: %v", err)
	}
}

func TestSnapshotStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	store := NewSnapshotStore(client, time.Minute)
	ctx := context.Background()

	snap := &ProgressSnapshot{ExamID: 9, StudentID: "student-4"}
	if err := store.Save(ctx, snap); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Load(ctx, "student-4", 9); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("Load after TTL: err = %v, want ErrSnapshotNotFound", err)
	}
}

func TestSnapshotStore_NilClient(t *testing.T) {
	store := NewSnapshotStore(nil, time.Hour)
	ctx := context.Background()

	if err := store.Save(ctx, &ProgressSnapshot{}); !errors.Is(err, ErrStoreNotAvailable) {
		t.Errorf("Save: err = %v, want ErrStoreNotAvailable", err)
	}
	if _, err := store.Load(ctx, "x", 1); !errors.Is(err, ErrStoreNotAvailable) {
		t.Errorf("Load: err = %v, want ErrStoreNotAvailable", err)
	}
	if _, err := store.HasProgress(ctx, "x", 1); !errors.Is(err, ErrStoreNotAvailable) {
		t.Errorf("HasProgress: err = %v, want ErrStoreNotAvailable", err)
	}
	// Clear and MarkFinalized degrade to no-ops without a client
	if err := store.Clear(ctx, "x", 1); err != nil {
		t.Errorf("Clear: err = %v, want nil", err)
	}
	if err := store.MarkFinalized(ctx, "x", 1); err != nil {
		t.Errorf("MarkFinalized: err = %v, want nil", err)
	}
}

func TestSnapshotStore_HasProgress(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.HasProgress(ctx, "student-5", 10)
	if err != nil {
		t.Fatalf("HasProgress failed: %v", err)
	}
	if ok {
		t.Error("HasProgress = true before any Save")
	}

	if err := store.Save(ctx, &ProgressSnapshot{ExamID: 10, StudentID: "student-5"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ok, err = store.HasProgress(ctx, "student-5", 10)
	if err != nil {
		t.Fatalf("HasProgress failed: %v", err)
	}
	if !ok {
		t.Error("HasProgress = false after Save")
	}
}
