package session

import (
	"context"
	"time"

	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"github.com/ngbao12/GoPass-sub000/internal/utils"
)

const overdueBatchSize = 100

// Finalizer is the submission-service surface the worker drives. Expired
// submissions go through the same finalize path as a manual submit.
type Finalizer interface {
	FinalizeExpired(ctx context.Context, submissionID uint) error
}

// TimeoutWorker periodically sweeps in_progress submissions whose assignment
// window has closed and finalizes them with whatever answers are stored.
type TimeoutWorker struct {
	submissions repositories.SubmissionRepository
	finalizer   Finalizer
	logger      utils.Logger
	interval    time.Duration
}

func NewTimeoutWorker(submissions repositories.SubmissionRepository, finalizer Finalizer, logger utils.Logger, interval time.Duration) *TimeoutWorker {
	return &TimeoutWorker{
		submissions: submissions,
		finalizer:   finalizer,
		logger:      logger.With("component", "timeout_worker"),
		interval:    interval,
	}
}

// Start runs the sweep loop until the context is cancelled. Call in a
// goroutine.
func (w *TimeoutWorker) Start(ctx context.Context) {
	w.logger.Info("Timeout worker started", "interval", w.interval.String())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Timeout worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *TimeoutWorker) sweep(ctx context.Context) {
	overdue, err := w.submissions.ListOverdue(ctx, time.Now(), overdueBatchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to list overdue submissions", "error", err)
		return
	}

	for _, submission := range overdue {
		if err := w.finalizer.FinalizeExpired(ctx, submission.ID); err != nil {
			// A concurrent manual submit may have won the race; that is fine
			w.logger.WarnContext(ctx, "Failed to finalize overdue submission",
				"submission_id", submission.ID,
				"student_id", submission.StudentID,
				"error", err)
			continue
		}
		w.logger.InfoContext(ctx, "Auto-finalized overdue submission",
			"submission_id", submission.ID,
			"student_id", submission.StudentID)
	}
}
