package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/session"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// getOwnedSubmission loads a submission and enforces ownership.
func (s *submissionService) getOwnedSubmission(ctx context.Context, submissionID uint, studentID string) (*models.ExamSubmission, error) {
	submission, err := s.repo.Submission().GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	if submission.StudentID != studentID {
		return nil, NewPermissionError(studentID, submissionID, "submission", "modify", "not the owner")
	}
	return submission, nil
}

// buildAnswerRecord normalizes an incoming payload and copies the frozen
// weight for the question. Scalars become answer_text, arrays and keyed maps
// become selected_options.
func (s *submissionService) buildAnswerRecord(submission *models.ExamSubmission, req *SaveAnswerRequest) (*models.ExamAnswer, error) {
	weights, err := decodeWeights(submission.QuestionWeights)
	if err != nil {
		return nil, err
	}

	maxScore, ok := weights[req.QuestionID]
	if !ok {
		return nil, fmt.Errorf("%w: question %d", ErrQuestionNotInExam, req.QuestionID)
	}

	payload, err := models.ResolveAnswerPayload(req.Answer)
	if err != nil {
		return nil, NewValidationError("answer", err.Error(), req.Answer)
	}

	answer := &models.ExamAnswer{
		SubmissionID: submission.ID,
		QuestionID:   req.QuestionID,
		MaxScore:     maxScore,
	}

	switch payload.Kind {
	case models.PayloadText:
		text := payload.Text
		answer.AnswerText = &text
	case models.PayloadSelection:
		data, err := json.Marshal(payload.Selection)
		if err != nil {
			return nil, fmt.Errorf("failed to encode selection: %w", err)
		}
		answer.SelectedOptions = datatypes.JSON(data)
	case models.PayloadTrueFalseMap:
		data, err := json.Marshal(payload.TrueFalseMap)
		if err != nil {
			return nil, fmt.Errorf("failed to encode true/false map: %w", err)
		}
		answer.SelectedOptions = datatypes.JSON(data)
	}

	return answer, nil
}

// mergeFinalAnswers overlays the finalize request's answers onto the stored
// rows, last-write-wins per question. Returns the complete merged set for
// grading plus the subset that still needs persisting.
func (s *submissionService) mergeFinalAnswers(submission *models.ExamSubmission, stored []*models.ExamAnswer, finalAnswers []SaveAnswerRequest) ([]*models.ExamAnswer, []*models.ExamAnswer, error) {
	byQuestion := make(map[uint]*models.ExamAnswer, len(stored))
	for _, answer := range stored {
		byQuestion[answer.QuestionID] = answer
	}

	toUpsert := make([]*models.ExamAnswer, 0, len(finalAnswers))
	for i := range finalAnswers {
		record, err := s.buildAnswerRecord(submission, &finalAnswers[i])
		if err != nil {
			return nil, nil, err
		}

		if existing, ok := byQuestion[record.QuestionID]; ok {
			existing.AnswerText = record.AnswerText
			existing.SelectedOptions = record.SelectedOptions
			existing.MaxScore = record.MaxScore
			toUpsert = append(toUpsert, existing)
		} else {
			byQuestion[record.QuestionID] = record
			toUpsert = append(toUpsert, record)
		}
	}

	merged := make([]*models.ExamAnswer, 0, len(byQuestion))
	for _, answer := range byQuestion {
		merged = append(merged, answer)
	}
	return merged, toUpsert, nil
}

// payloadFromStored rebuilds the tagged payload from a stored answer row.
func payloadFromStored(answer *models.ExamAnswer) (models.AnswerPayload, error) {
	if answer.AnswerText != nil {
		return models.AnswerPayload{Kind: models.PayloadText, Text: *answer.AnswerText}, nil
	}

	if len(answer.SelectedOptions) > 0 {
		var raw interface{}
		if err := json.Unmarshal(answer.SelectedOptions, &raw); err != nil {
			return models.AnswerPayload{}, fmt.Errorf("failed to decode stored answer %d: %w", answer.ID, err)
		}
		return models.ResolveAnswerPayload(raw)
	}

	return models.AnswerPayload{Kind: models.PayloadText}, nil
}

// sanitizeQuestionContent strips correctness markers from the content
// document while the submission is still in_progress.
func sanitizeQuestionContent(questionType models.QuestionType, content datatypes.JSON, finalized bool) datatypes.JSON {
	if finalized || len(content) == 0 {
		return content
	}

	if questionType != models.MultipleChoice {
		return content
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(content, &doc); err != nil {
		return content
	}

	options, ok := doc["options"].([]interface{})
	if !ok {
		return content
	}
	for _, opt := range options {
		if optMap, ok := opt.(map[string]interface{}); ok {
			delete(optMap, "is_correct")
		}
	}

	cleaned, err := json.Marshal(doc)
	if err != nil {
		return content
	}
	return datatypes.JSON(cleaned)
}

// buildSubmissionResponse derives the client-facing flags for a submission.
func (s *submissionService) buildSubmissionResponse(ctx context.Context, submission *models.ExamSubmission, assignment *models.ExamAssignment, resumed bool) *SubmissionResponse {
	remaining := timeRemainingSeconds(submission, assignment, time.Now())

	attemptsRemaining := assignment.MaxAttempts - submission.AttemptNumber
	if attemptsRemaining < 0 {
		attemptsRemaining = 0
	}

	return &SubmissionResponse{
		ExamSubmission:       submission,
		Resumed:              resumed,
		TimeRemainingSeconds: remaining,
		AttemptsRemaining:    attemptsRemaining,
	}
}

// timeRemainingSeconds bounds the attempt by its duration and, unless late
// submission is allowed, by the assignment window.
func timeRemainingSeconds(submission *models.ExamSubmission, assignment *models.ExamAssignment, now time.Time) int {
	deadline := submission.StartedAt.Add(time.Duration(assignment.Exam.DurationMinutes) * time.Minute)
	if !assignment.AllowLateSubmission && assignment.EndTime.Before(deadline) {
		deadline = assignment.EndTime
	}

	remaining := int(deadline.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// refreshSnapshot rewrites the session snapshot after an autosave. Snapshot
// failures never fail the autosave itself.
func (s *submissionService) refreshSnapshot(ctx context.Context, submission *models.ExamSubmission, req *AutoSaveRequest) {
	answers := make(map[uint]interface{}, len(req.Answers))
	for _, a := range req.Answers {
		answers[a.QuestionID] = a.Answer
	}

	timeRemaining := 0
	if req.TimeRemainingSeconds != nil {
		timeRemaining = *req.TimeRemainingSeconds
	}

	snapshot := &session.ProgressSnapshot{
		ExamID:               submission.ExamID,
		StudentID:            submission.StudentID,
		CurrentIndex:         req.CurrentIndex,
		Answers:              answers,
		FlaggedQuestions:     req.FlaggedQuestions,
		TimeRemainingSeconds: timeRemaining,
	}

	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		if errors.Is(err, session.ErrSessionFinalized) {
			s.logger.WarnContext(ctx, "Suppressed snapshot write after finalize",
				"submission_id", submission.ID)
			return
		}
		s.logger.WarnContext(ctx, "Failed to refresh session snapshot",
			"submission_id", submission.ID, "error", err)
	}
}

func questionPointers(questions []models.ExamQuestion) []*models.ExamQuestion {
	out := make([]*models.ExamQuestion, len(questions))
	for i := range questions {
		out[i] = &questions[i]
	}
	return out
}
