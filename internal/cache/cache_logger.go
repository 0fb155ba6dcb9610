package cache

import (
	"context"
	"fmt"
	"log/slog"
)

// SafeInvalidatePattern safely invalidates cache pattern with logging
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// SafeDelete safely deletes cache keys with logging
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// InvalidateSubmissionCache drops all cached reads of a submission after any
// write to it or its answers.
func InvalidateSubmissionCache(ctx context.Context, cm *CacheManager, submissionID uint, assignmentID uint, studentID string) {
	SafeDelete(ctx, cm.Submission,
		fmt.Sprintf("id:%d", submissionID),
		fmt.Sprintf("detail:%d", submissionID))
	SafeDelete(ctx, cm.Fast,
		fmt.Sprintf("submission:id:%d", submissionID),
		fmt.Sprintf("submission:in_progress:%d:%s", assignmentID, studentID))
	SafeInvalidatePattern(ctx, cm.Submission, fmt.Sprintf("list:%d:*", assignmentID))
}

// InvalidateExamCache drops cached exam reference data.
func InvalidateExamCache(ctx context.Context, cm *CacheManager, examID uint) {
	SafeDelete(ctx, cm.Exam,
		fmt.Sprintf("id:%d", examID),
		fmt.Sprintf("questions:%d", examID))
}
