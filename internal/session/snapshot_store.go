package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const snapshotKeyPrefix = "exam_progress:"

var (
	ErrSnapshotNotFound  = errors.New("session snapshot not found")
	ErrStoreNotAvailable = errors.New("session store not available")
	ErrSessionFinalized  = errors.New("session already finalized")
)

// SnapshotStore persists progress snapshots in redis, one key per (student,
// exam), full-replace on every write. A finalize marker suppresses any write
// that arrives after the submission was finalized, so a late autosave cannot
// resurrect answers.
type SnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSnapshotStore(client *redis.Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{
		client: client,
		ttl:    ttl,
	}
}

func snapshotKey(studentID string, examID uint) string {
	return fmt.Sprintf("%s%s:%d", snapshotKeyPrefix, studentID, examID)
}

func finalizedKey(studentID string, examID uint) string {
	return snapshotKey(studentID, examID) + ":finalized"
}

// Save replaces the stored snapshot. Rejected once MarkFinalized was called
// for the same (student, exam).
func (s *SnapshotStore) Save(ctx context.Context, snapshot *ProgressSnapshot) error {
	if s.client == nil {
		return ErrStoreNotAvailable
	}

	finalized, err := s.client.Exists(ctx, finalizedKey(snapshot.StudentID, snapshot.ExamID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check finalize marker: %w", err)
	}
	if finalized > 0 {
		return ErrSessionFinalized
	}

	snapshot.LastSaved = time.Now()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	key := snapshotKey(snapshot.StudentID, snapshot.ExamID)
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or ErrSnapshotNotFound.
func (s *SnapshotStore) Load(ctx context.Context, studentID string, examID uint) (*ProgressSnapshot, error) {
	if s.client == nil {
		return nil, ErrStoreNotAvailable
	}

	data, err := s.client.Get(ctx, snapshotKey(studentID, examID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snapshot ProgressSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snapshot, nil
}

// Clear removes the snapshot and any finalize marker, used when a finalized
// submission's stale state must not leak into a new attempt.
func (s *SnapshotStore) Clear(ctx context.Context, studentID string, examID uint) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx,
		snapshotKey(studentID, examID),
		finalizedKey(studentID, examID)).Err()
}

// MarkFinalized drops the snapshot and plants a short-lived marker that
// rejects subsequent writes for this (student, exam).
func (s *SnapshotStore) MarkFinalized(ctx context.Context, studentID string, examID uint) error {
	if s.client == nil {
		return nil
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, snapshotKey(studentID, examID))
	pipe.Set(ctx, finalizedKey(studentID, examID), "1", s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// HasProgress reports whether a snapshot exists.
func (s *SnapshotStore) HasProgress(ctx context.Context, studentID string, examID uint) (bool, error) {
	if s.client == nil {
		return false, ErrStoreNotAvailable
	}

	count, err := s.client.Exists(ctx, snapshotKey(studentID, examID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
