package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ngbao12/GoPass-sub000/internal/events"
	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"github.com/ngbao12/GoPass-sub000/internal/session"
	"github.com/ngbao12/GoPass-sub000/internal/validator"
	"gorm.io/gorm"
)

type submissionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	resolver  *questionResolver
	snapshots *session.SnapshotStore
	contest   ContestService
	publisher events.EventPublisher
}

func NewSubmissionService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	snapshots *session.SnapshotStore,
	contest ContestService,
	publisher events.EventPublisher,
) SubmissionService {
	return &submissionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		resolver:  newQuestionResolver(repo),
		snapshots: snapshots,
		contest:   contest,
		publisher: publisher,
	}
}

// StartExam creates a new submission, or returns the existing in_progress one
// unchanged. All preconditions are evaluated before any write.
func (s *submissionService) StartExam(ctx context.Context, assignmentID uint, studentID string) (*SubmissionResponse, error) {
	assignment, err := s.repo.Assignment().GetWithExam(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	now := time.Now()
	if now.Before(assignment.StartTime) {
		return nil, ErrAssignmentNotStarted
	}
	if now.After(assignment.EndTime) && !assignment.AllowLateSubmission {
		return nil, ErrAssignmentEnded
	}

	isMember, err := s.repo.Membership().IsMember(ctx, assignment.GroupID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !isMember {
		return nil, ErrNotAMember
	}

	// Idempotent resume: an in-flight submission is returned as-is
	existing, err := s.repo.Submission().GetInProgress(ctx, assignmentID, studentID)
	if err == nil && existing != nil {
		s.logger.InfoContext(ctx, "Resuming in-progress submission",
			"submission_id", existing.ID,
			"student_id", studentID)
		return s.buildSubmissionResponse(ctx, existing, assignment, true), nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check in-progress submission: %w", err)
	}

	count, err := s.repo.Submission().CountByStudent(ctx, assignmentID, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to count attempts: %w", err)
	}
	if count >= int64(assignment.MaxAttempts) {
		return nil, ErrAttemptsExhausted
	}

	// Freeze the exam's per-question weights into the submission
	weights, maxScore, err := encodeWeights(questionPointers(assignment.Exam.Questions))
	if err != nil {
		return nil, err
	}

	submission := &models.ExamSubmission{
		AssignmentID:    assignmentID,
		ExamID:          assignment.ExamID,
		StudentID:       studentID,
		Status:          models.SubmissionInProgress,
		AttemptNumber:   int(count) + 1,
		StartedAt:       now,
		MaxScore:        maxScore,
		QuestionWeights: weights,
	}

	if err := s.repo.Submission().Create(ctx, nil, submission); err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}

	// A fresh attempt must not inherit a previous attempt's snapshot
	if err := s.snapshots.Clear(ctx, studentID, assignment.ExamID); err != nil {
		s.logger.WarnContext(ctx, "Failed to clear stale session snapshot",
			"student_id", studentID, "exam_id", assignment.ExamID, "error", err)
	}

	s.logger.InfoContext(ctx, "Started exam submission",
		"submission_id", submission.ID,
		"assignment_id", assignmentID,
		"student_id", studentID,
		"attempt_number", submission.AttemptNumber)

	return s.buildSubmissionResponse(ctx, submission, assignment, false), nil
}

// SaveAnswer upserts a single answer while the submission is in_progress.
func (s *submissionService) SaveAnswer(ctx context.Context, submissionID uint, studentID string, req *SaveAnswerRequest) (*models.ExamAnswer, error) {
	submission, err := s.getOwnedSubmission(ctx, submissionID, studentID)
	if err != nil {
		return nil, err
	}
	if submission.Status.IsFinalized() {
		return nil, ErrSubmissionFinalized
	}

	answer, err := s.buildAnswerRecord(submission, req)
	if err != nil {
		return nil, err
	}

	stored, err := s.repo.Answer().Upsert(ctx, nil, answer)
	if err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}
	return stored, nil
}

// AutoSave persists a batch of answers and refreshes the session snapshot.
func (s *submissionService) AutoSave(ctx context.Context, submissionID uint, studentID string, req *AutoSaveRequest) error {
	submission, err := s.getOwnedSubmission(ctx, submissionID, studentID)
	if err != nil {
		return err
	}
	if submission.Status.IsFinalized() {
		return ErrSubmissionFinalized
	}

	for i := range req.Answers {
		answer, err := s.buildAnswerRecord(submission, &req.Answers[i])
		if err != nil {
			return err
		}
		if _, err := s.repo.Answer().Upsert(ctx, nil, answer); err != nil {
			return fmt.Errorf("failed to autosave answer for question %d: %w", req.Answers[i].QuestionID, err)
		}
	}

	s.refreshSnapshot(ctx, submission, req)
	return nil
}

// SubmitExam finalizes the submission: persists final answers, grades every
// stored answer, aggregates the total and performs the atomic conditional
// status transition. Exactly one of two racing calls succeeds.
func (s *submissionService) SubmitExam(ctx context.Context, submissionID uint, studentID string, req *SubmitExamRequest) (*FinalizeResult, error) {
	submission, err := s.getOwnedSubmission(ctx, submissionID, studentID)
	if err != nil {
		return nil, err
	}
	if submission.Status.IsFinalized() {
		return nil, ErrAlreadyFinalized
	}

	return s.finalize(ctx, submission, req.Answers, req.TimeSpentSeconds)
}

// FinalizeExpired is the timeout path. An already-finalized submission is a
// safe no-op so the sweeper can race a manual submit harmlessly.
func (s *submissionService) FinalizeExpired(ctx context.Context, submissionID uint) error {
	submission, err := s.repo.Submission().GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return fmt.Errorf("failed to load submission: %w", err)
	}
	if submission.Status.IsFinalized() {
		return nil
	}

	timeSpent := int(time.Since(submission.StartedAt).Seconds())
	_, err = s.finalize(ctx, submission, nil, timeSpent)
	if errors.Is(err, ErrAlreadyFinalized) {
		return nil
	}
	return err
}

// finalize is the sole state-changing path out of in_progress.
func (s *submissionService) finalize(ctx context.Context, submission *models.ExamSubmission, finalAnswers []SaveAnswerRequest, timeSpentSeconds int) (*FinalizeResult, error) {
	assignment, err := s.repo.Assignment().GetByID(ctx, submission.AssignmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	weights, err := decodeWeights(submission.QuestionWeights)
	if err != nil {
		return nil, err
	}

	refs, err := s.resolver.Resolve(ctx, submission.ExamID, weights)
	if err != nil {
		return nil, err
	}

	// Merge the final answers over the stored ones in memory so grading sees
	// the complete last-write-wins answer set.
	stored, err := s.repo.Answer().GetBySubmission(ctx, submission.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stored answers: %w", err)
	}
	merged, toUpsert, err := s.mergeFinalAnswers(submission, stored, finalAnswers)
	if err != nil {
		return nil, err
	}

	// Grade outside the transaction: the engine is pure
	results := make([]GradeResult, 0, len(merged))
	for _, answer := range merged {
		ref, ok := refs[answer.QuestionID]
		if !ok {
			return nil, fmt.Errorf("%w: question %d", ErrQuestionNotInExam, answer.QuestionID)
		}

		payload, err := payloadFromStored(answer)
		if err != nil {
			return nil, err
		}

		result, err := Grade(ref.Type, payload, ref.CorrectAnswer, ref.MaxScore)
		if err != nil {
			return nil, fmt.Errorf("failed to grade question %d: %w", answer.QuestionID, err)
		}

		answer.Score = result.Score
		answer.IsAutoGraded = result.IsAutoGraded
		feedback := result.Feedback
		answer.Feedback = &feedback
		results = append(results, result)
	}

	aggregate := Aggregate(results)

	now := time.Now()
	isLate := now.After(assignment.EndTime)
	status := models.SubmissionSubmitted
	if aggregate.PendingManualGrading == 0 {
		status = models.SubmissionGraded
	}

	final := repositories.SubmissionFinal{
		Status:           status,
		TotalScore:       aggregate.TotalScore,
		SubmittedAt:      now,
		IsLate:           isLate,
		TimeSpentSeconds: timeSpentSeconds,
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, answer := range toUpsert {
			if _, err := s.repo.Answer().Upsert(ctx, tx, answer); err != nil {
				return fmt.Errorf("failed to persist final answer: %w", err)
			}
		}

		// Conditional transition decides the winner before grades land
		ok, err := s.repo.Submission().FinalizeInProgress(ctx, tx, submission.ID, final)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyFinalized
		}

		return s.repo.Answer().UpdateGrades(ctx, tx, merged)
	})
	if err != nil {
		return nil, err
	}

	result := &FinalizeResult{
		SubmissionID:         submission.ID,
		Status:               status,
		TotalScore:           aggregate.TotalScore,
		MaxScore:             submission.MaxScore,
		GradedCount:          len(results) - aggregate.PendingManualGrading,
		PendingManualGrading: aggregate.PendingManualGrading,
		IsLate:               isLate,
	}

	s.logger.InfoContext(ctx, "Finalized submission",
		"submission_id", submission.ID,
		"status", status,
		"total_score", aggregate.TotalScore,
		"pending_manual", aggregate.PendingManualGrading,
		"is_late", isLate)

	s.afterFinalize(ctx, submission, assignment, result)
	return result, nil
}

// afterFinalize runs the best-effort secondary effects. Failures surface as
// warnings on the result, never as an error that undoes the transition.
func (s *submissionService) afterFinalize(ctx context.Context, submission *models.ExamSubmission, assignment *models.ExamAssignment, result *FinalizeResult) {
	if err := s.snapshots.MarkFinalized(ctx, submission.StudentID, submission.ExamID); err != nil {
		s.logger.WarnContext(ctx, "Failed to mark session snapshot finalized",
			"submission_id", submission.ID, "error", err)
	}

	if assignment.ContestID != nil {
		err := s.contest.AddExamScore(ctx, *assignment.ContestID, submission.StudentID, submission.ExamID, result.TotalScore)
		if err != nil {
			s.logger.ErrorContext(ctx, "Contest score accumulation failed",
				"submission_id", submission.ID,
				"contest_id", *assignment.ContestID,
				"error", err)
			result.Warnings = append(result.Warnings,
				(&DependencyWarning{Dependency: "contest", Message: err.Error()}).Error())
		}
	}

	event := events.NewSubmissionEvent(events.EventSubmissionFinalized)
	event.SubmissionID = submission.ID
	event.AssignmentID = submission.AssignmentID
	event.ExamID = submission.ExamID
	event.StudentID = submission.StudentID
	event.Status = string(result.Status)
	event.TotalScore = result.TotalScore
	event.MaxScore = result.MaxScore
	event.PendingManual = result.PendingManualGrading
	event.ContestID = assignment.ContestID

	if err := s.publisher.PublishSubmissionEvent(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish finalize event",
			"submission_id", submission.ID, "error", err)
		result.Warnings = append(result.Warnings,
			(&DependencyWarning{Dependency: "events", Message: err.Error()}).Error())
	}
}

// GetSubmissionDetail returns the submission with its per-question review
// payload. Correct answers are withheld until the submission is finalized.
func (s *submissionService) GetSubmissionDetail(ctx context.Context, submissionID uint, studentID string) (*SubmissionDetail, error) {
	submission, err := s.repo.Submission().GetWithAnswers(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if submission.StudentID != studentID {
		return nil, NewPermissionError(studentID, submissionID, "submission", "read", "not the owner")
	}

	weights, err := decodeWeights(submission.QuestionWeights)
	if err != nil {
		return nil, err
	}
	refs, err := s.resolver.Resolve(ctx, submission.ExamID, weights)
	if err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().GetByExam(ctx, submission.ExamID)
	if err != nil {
		return nil, err
	}

	answersByQuestion := make(map[uint]*models.ExamAnswer, len(submission.Answers))
	for i := range submission.Answers {
		answersByQuestion[submission.Answers[i].QuestionID] = &submission.Answers[i]
	}

	finalized := submission.Status.IsFinalized()
	reviews := make([]QuestionReview, 0, len(questions))
	for _, q := range questions {
		ref := refs[q.ID]
		review := QuestionReview{
			QuestionID: q.ID,
			Type:       q.Type,
			Text:       q.Text,
			Content:    sanitizeQuestionContent(q.Type, q.Content, finalized),
			MaxScore:   ref.MaxScore,
			Answer:     answersByQuestion[q.ID],
		}
		if finalized {
			review.CorrectAnswer = q.CorrectAnswer
		}
		reviews = append(reviews, review)
	}

	return &SubmissionDetail{
		Submission: submission,
		Questions:  reviews,
	}, nil
}

// GetMySubmissions lists the student's attempt history for an assignment.
func (s *submissionService) GetMySubmissions(ctx context.Context, assignmentID uint, studentID string) ([]*models.ExamSubmission, error) {
	filters := repositories.SubmissionFilters{
		StudentID: &studentID,
		SortBy:    "attempt_number",
		SortOrder: "asc",
	}
	submissions, _, err := s.repo.Submission().List(ctx, assignmentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return submissions, nil
}

// ResumeState reconciles the stored session snapshot against the server
// state. An expired snapshot triggers the same finalize path as a manual
// submit; a stale snapshot for a finalized submission is discarded.
func (s *submissionService) ResumeState(ctx context.Context, assignmentID uint, studentID string) (*ResumeStateResponse, error) {
	assignment, err := s.repo.Assignment().GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	snapshot, err := s.snapshots.Load(ctx, studentID, assignment.ExamID)
	if err != nil {
		if errors.Is(err, session.ErrSnapshotNotFound) || errors.Is(err, session.ErrStoreNotAvailable) {
			return &ResumeStateResponse{}, nil
		}
		return nil, err
	}

	serverStatus := models.SubmissionGraded
	current, err := s.repo.Submission().GetInProgress(ctx, assignmentID, studentID)
	if err == nil && current != nil {
		serverStatus = current.Status
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check in-progress submission: %w", err)
	}

	outcome := session.Reconcile(snapshot, serverStatus, time.Now())
	switch outcome.Resolution {
	case session.ResolutionDiscard:
		if err := s.snapshots.Clear(ctx, studentID, assignment.ExamID); err != nil {
			s.logger.WarnContext(ctx, "Failed to discard stale snapshot",
				"student_id", studentID, "exam_id", assignment.ExamID, "error", err)
		}
		return &ResumeStateResponse{Discarded: true}, nil

	case session.ResolutionExpired:
		if current != nil {
			if err := s.FinalizeExpired(ctx, current.ID); err != nil {
				return nil, err
			}
		}
		return &ResumeStateResponse{Expired: true}, nil

	default:
		return &ResumeStateResponse{
			Snapshot:      snapshot,
			TimeRemaining: outcome.TimeRemaining,
		}, nil
	}
}
