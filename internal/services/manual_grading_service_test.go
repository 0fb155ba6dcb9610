package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ngbao12/GoPass-sub000/internal/events"
	"github.com/ngbao12/GoPass-sub000/internal/models"
)

// stubEssayScorer returns a fixed suggestion or error.
type stubEssayScorer struct {
	score    float64
	feedback string
	err      error
}

func (s stubEssayScorer) Score(ctx context.Context, answerText, prompt string) (float64, string, error) {
	return s.score, s.feedback, s.err
}

// submitFixtureWithEssay runs a full attempt whose essay stays pending and
// returns the submission id plus the essay answer id.
func submitFixtureWithEssay(t *testing.T, repo *fakeRepo, svc SubmissionService) (uint, uint) {
	t.Helper()
	ctx := context.Background()

	started, err := svc.StartExam(ctx, fixtureAssignmentID, fixtureStudentID)
	if err != nil {
		t.Fatalf("StartExam failed: %v", err)
	}
	_, err = svc.SubmitExam(ctx, started.ID, fixtureStudentID, &SubmitExamRequest{
		Answers: []SaveAnswerRequest{
			{QuestionID: fixtureMCQuestionID, Answer: "b"},
			{QuestionID: fixtureEssayQuestionID, Answer: "A thoughtful essay."},
		},
	})
	if err != nil {
		t.Fatalf("SubmitExam failed: %v", err)
	}

	essay, err := repo.answers.GetBySubmissionAndQuestion(ctx, started.ID, fixtureEssayQuestionID)
	if err != nil {
		t.Fatalf("essay answer missing: %v", err)
	}
	return started.ID, essay.ID
}

func TestGradeAnswerManual(t *testing.T) {
	ctx := context.Background()

	t.Run("grades the essay and promotes the submission", func(t *testing.T) {
		repo := newFakeRepo()
		seedExamFixture(repo)
		publisher := events.NewMockEventPublisher(nil)
		subSvc := newTestService(repo, publisher)
		gradeSvc := NewManualGradingService(repo, discardLogger(), publisher, nil)

		submissionID, essayID := submitFixtureWithEssay(t, repo, subSvc)

		feedback := "Well argued"
		err := gradeSvc.GradeAnswerManual(ctx, essayID, "teacher-1", &ManualGradeRequest{
			Score:    1.5,
			Feedback: &feedback,
		})
		if err != nil {
			t.Fatalf("GradeAnswerManual failed: %v", err)
		}

		answer, _ := repo.answers.GetByID(ctx, essayID)
		if answer.Score != 1.5 {
			t.Errorf("answer Score = %v, want 1.5", answer.Score)
		}
		if !answer.IsManuallyGraded {
			t.Error("answer must be marked manually graded")
		}
		if answer.GradedBy == nil || *answer.GradedBy != "teacher-1" {
			t.Errorf("GradedBy = %v, want teacher-1", answer.GradedBy)
		}

		submission, _ := repo.submissions.GetByID(ctx, submissionID)
		if submission.Status != models.SubmissionGraded {
			t.Errorf("submission Status = %s, want graded", submission.Status)
		}
		// MC 1.0 + essay 1.5
		if submission.TotalScore != 2.5 {
			t.Errorf("submission TotalScore = %v, want 2.5", submission.TotalScore)
		}

		published := publisher.GetPublishedEvents()
		var sawGraded bool
		for _, e := range published {
			if e.Type == events.EventSubmissionGradedFull {
				sawGraded = true
			}
		}
		if !sawGraded {
			t.Error("expected a graded event after the last pending answer is scored")
		}
	})

	t.Run("rejects scores outside the answer weight", func(t *testing.T) {
		repo := newFakeRepo()
		seedExamFixture(repo)
		subSvc := newTestService(repo, events.NewMockEventPublisher(nil))
		gradeSvc := NewManualGradingService(repo, discardLogger(), events.NewMockEventPublisher(nil), nil)

		_, essayID := submitFixtureWithEssay(t, repo, subSvc)

		err := gradeSvc.GradeAnswerManual(ctx, essayID, "teacher-1", &ManualGradeRequest{Score: 2.5})
		if !errors.Is(err, ErrInvalidScore) {
			t.Fatalf("err = %v, want ErrInvalidScore (weight is 2.0)", err)
		}
	})

	t.Run("rejects auto-graded answers", func(t *testing.T) {
		repo := newFakeRepo()
		seedExamFixture(repo)
		subSvc := newTestService(repo, events.NewMockEventPublisher(nil))
		gradeSvc := NewManualGradingService(repo, discardLogger(), events.NewMockEventPublisher(nil), nil)

		submissionID, _ := submitFixtureWithEssay(t, repo, subSvc)
		mcAnswer, err := repo.answers.GetBySubmissionAndQuestion(ctx, submissionID, fixtureMCQuestionID)
		if err != nil {
			t.Fatalf("mc answer missing: %v", err)
		}

		err = gradeSvc.GradeAnswerManual(ctx, mcAnswer.ID, "teacher-1", &ManualGradeRequest{Score: 1})
		if !errors.Is(err, ErrGradingNotManual) {
			t.Fatalf("err = %v, want ErrGradingNotManual", err)
		}
	})

	t.Run("unknown answer", func(t *testing.T) {
		repo := newFakeRepo()
		gradeSvc := NewManualGradingService(repo, discardLogger(), events.NewMockEventPublisher(nil), nil)

		err := gradeSvc.GradeAnswerManual(ctx, 404, "teacher-1", &ManualGradeRequest{Score: 1})
		if !errors.Is(err, ErrAnswerNotFound) {
			t.Fatalf("err = %v, want ErrAnswerNotFound", err)
		}
	})
}

func TestRecalculateSubmission(t *testing.T) {
	ctx := context.Background()

	t.Run("stays submitted while answers are pending", func(t *testing.T) {
		repo := newFakeRepo()
		seedExamFixture(repo)
		subSvc := newTestService(repo, events.NewMockEventPublisher(nil))
		gradeSvc := NewManualGradingService(repo, discardLogger(), events.NewMockEventPublisher(nil), nil)

		submissionID, _ := submitFixtureWithEssay(t, repo, subSvc)

		result, err := gradeSvc.RecalculateSubmission(ctx, submissionID)
		if err != nil {
			t.Fatalf("RecalculateSubmission failed: %v", err)
		}
		if result.Status != models.SubmissionSubmitted {
			t.Errorf("Status = %s, want submitted", result.Status)
		}
		if result.PendingManualGrading != 1 {
			t.Errorf("PendingManualGrading = %d, want 1", result.PendingManualGrading)
		}
	})

	t.Run("rejects in-progress submissions", func(t *testing.T) {
		repo := newFakeRepo()
		seedExamFixture(repo)
		subSvc := newTestService(repo, events.NewMockEventPublisher(nil))
		gradeSvc := NewManualGradingService(repo, discardLogger(), events.NewMockEventPublisher(nil), nil)

		started, err := subSvc.StartExam(ctx, fixtureAssignmentID, fixtureStudentID)
		if err != nil {
			t.Fatalf("StartExam failed: %v", err)
		}

		_, err = gradeSvc.RecalculateSubmission(ctx, started.ID)
		if !errors.Is(err, ErrSubmissionFinalized) {
			t.Fatalf("err = %v, want ErrSubmissionFinalized", err)
		}
	})
}

func TestSuggestEssayScore(t *testing.T) {
	ctx := context.Background()

	t.Run("clamps the scorer suggestion to the weight", func(t *testing.T) {
		repo := newFakeRepo()
		seedExamFixture(repo)
		subSvc := newTestService(repo, events.NewMockEventPublisher(nil))
		scorer := stubEssayScorer{score: 9.5, feedback: "Strong structure"}
		gradeSvc := NewManualGradingService(repo, discardLogger(), events.NewMockEventPublisher(nil), scorer)

		_, essayID := submitFixtureWithEssay(t, repo, subSvc)

		suggestion, err := gradeSvc.SuggestEssayScore(ctx, essayID)
		if err != nil {
			t.Fatalf("SuggestEssayScore failed: %v", err)
		}
		if suggestion.SuggestedScore != 2.0 {
			t.Errorf("SuggestedScore = %v, want 2.0 (clamped to weight)", suggestion.SuggestedScore)
		}
		if suggestion.Feedback != "Strong structure" {
			t.Errorf("Feedback = %q, want scorer feedback", suggestion.Feedback)
		}

		// Suggestions are advisory: the answer row stays pending
		answer, _ := repo.answers.GetByID(ctx, essayID)
		if answer.IsManuallyGraded || answer.Score != 0 {
			t.Error("suggestion must not write to the answer row")
		}
	})

	t.Run("scorer failure falls back without model answer", func(t *testing.T) {
		repo := newFakeRepo()
		seedExamFixture(repo)
		subSvc := newTestService(repo, events.NewMockEventPublisher(nil))
		scorer := stubEssayScorer{err: errors.New("scorer offline")}
		gradeSvc := NewManualGradingService(repo, discardLogger(), events.NewMockEventPublisher(nil), scorer)

		_, essayID := submitFixtureWithEssay(t, repo, subSvc)

		// The fixture essay question has no model answer, so the fallback
		// yields a zero advisory score
		suggestion, err := gradeSvc.SuggestEssayScore(ctx, essayID)
		if err != nil {
			t.Fatalf("SuggestEssayScore failed: %v", err)
		}
		if suggestion.SuggestedScore != 0 {
			t.Errorf("SuggestedScore = %v, want 0", suggestion.SuggestedScore)
		}
	})

	t.Run("unknown answer", func(t *testing.T) {
		repo := newFakeRepo()
		gradeSvc := NewManualGradingService(repo, discardLogger(), events.NewMockEventPublisher(nil), nil)

		_, err := gradeSvc.SuggestEssayScore(ctx, 404)
		if !errors.Is(err, ErrAnswerNotFound) {
			t.Fatalf("err = %v, want ErrAnswerNotFound", err)
		}
	})
}
