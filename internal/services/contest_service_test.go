package services

import (
	"context"
	"testing"

	"github.com/ngbao12/GoPass-sub000/internal/events"
	"github.com/ngbao12/GoPass-sub000/internal/models"
)

func TestContestAddExamScore(t *testing.T) {
	ctx := context.Background()
	contestID := uint(7)

	t.Run("first score creates the participation", func(t *testing.T) {
		repo := newFakeRepo()
		publisher := events.NewMockEventPublisher(nil)
		svc := NewContestService(repo, discardLogger(), publisher)

		if err := svc.AddExamScore(ctx, contestID, "student-1", 1, 8.5); err != nil {
			t.Fatalf("AddExamScore failed: %v", err)
		}

		participation, err := repo.contests.GetParticipation(ctx, contestID, "student-1")
		if err != nil {
			t.Fatalf("GetParticipation failed: %v", err)
		}
		if participation.TotalScore != 8.5 {
			t.Errorf("TotalScore = %v, want 8.5", participation.TotalScore)
		}

		completed, err := decodeCompletedExams(participation.CompletedExams)
		if err != nil {
			t.Fatalf("decodeCompletedExams failed: %v", err)
		}
		if len(completed) != 1 || completed[0] != 1 {
			t.Errorf("CompletedExams = %v, want [1]", completed)
		}

		published := publisher.GetPublishedEvents()
		if len(published) != 1 {
			t.Fatalf("published events = %d, want 1", len(published))
		}
		if published[0].Type != events.EventContestScoreUpdated {
			t.Errorf("event type = %s, want %s", published[0].Type, events.EventContestScoreUpdated)
		}
	})

	t.Run("same exam never counts twice", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewContestService(repo, discardLogger(), events.NewMockEventPublisher(nil))

		if err := svc.AddExamScore(ctx, contestID, "student-1", 1, 8.5); err != nil {
			t.Fatalf("AddExamScore failed: %v", err)
		}
		updatesAfterFirst := repo.contests.updateCount

		// Finalize retry delivers the same exam again
		if err := svc.AddExamScore(ctx, contestID, "student-1", 1, 8.5); err != nil {
			t.Fatalf("repeated AddExamScore failed: %v", err)
		}

		participation, _ := repo.contests.GetParticipation(ctx, contestID, "student-1")
		if participation.TotalScore != 8.5 {
			t.Errorf("TotalScore = %v, want 8.5 (no double count)", participation.TotalScore)
		}
		if repo.contests.updateCount != updatesAfterFirst {
			t.Error("repeated delivery must not write the participation again")
		}
	})

	t.Run("accumulates across distinct exams", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewContestService(repo, discardLogger(), events.NewMockEventPublisher(nil))

		if err := svc.AddExamScore(ctx, contestID, "student-1", 1, 8.5); err != nil {
			t.Fatalf("AddExamScore failed: %v", err)
		}
		if err := svc.AddExamScore(ctx, contestID, "student-1", 2, 7.25); err != nil {
			t.Fatalf("AddExamScore failed: %v", err)
		}

		participation, _ := repo.contests.GetParticipation(ctx, contestID, "student-1")
		if participation.TotalScore != 15.75 {
			t.Errorf("TotalScore = %v, want 15.75", participation.TotalScore)
		}

		completed, _ := decodeCompletedExams(participation.CompletedExams)
		if len(completed) != 2 {
			t.Errorf("CompletedExams = %v, want two entries", completed)
		}
	})

	t.Run("rounds the running total", func(t *testing.T) {
		repo := newFakeRepo()
		svc := NewContestService(repo, discardLogger(), events.NewMockEventPublisher(nil))

		if err := svc.AddExamScore(ctx, contestID, "student-1", 1, 0.1); err != nil {
			t.Fatalf("AddExamScore failed: %v", err)
		}
		if err := svc.AddExamScore(ctx, contestID, "student-1", 2, 0.2); err != nil {
			t.Fatalf("AddExamScore failed: %v", err)
		}

		participation, _ := repo.contests.GetParticipation(ctx, contestID, "student-1")
		if participation.TotalScore != 0.3 {
			t.Errorf("TotalScore = %v, want 0.3", participation.TotalScore)
		}
	})
}

func TestContestStandings(t *testing.T) {
	repo := newFakeRepo()
	repo.contests.standings = []*models.ContestStanding{
		{Rank: 1, StudentID: "student-2", TotalScore: 19, Completed: 2},
		{Rank: 2, StudentID: "student-1", TotalScore: 15.75, Completed: 2},
	}
	svc := NewContestService(repo, discardLogger(), events.NewMockEventPublisher(nil))

	standings, err := svc.Standings(context.Background(), 7, 50)
	if err != nil {
		t.Fatalf("Standings failed: %v", err)
	}
	if len(standings) != 2 {
		t.Fatalf("standings rows = %d, want 2", len(standings))
	}
	if standings[0].StudentID != "student-2" {
		t.Errorf("first place = %s, want student-2", standings[0].StudentID)
	}
}
