package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// exportService renders teacher-facing result sheets for an assignment.
type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
	}
}

func (s *exportService) ExportAssignmentResults(ctx context.Context, assignmentID uint) ([]byte, error) {
	assignment, err := s.repo.Assignment().GetWithExam(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAssignmentNotFound
		}
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	submissions, _, err := s.repo.Submission().List(ctx, assignmentID, repositories.SubmissionFilters{
		SortBy:    "submitted_at",
		SortOrder: "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}

	names := s.resolveStudentNames(ctx, submissions)

	f := excelize.NewFile()
	sheetName := "Results"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"Student ID", "Student Name", "Attempt", "Status", "Started At", "Submitted At",
		"Total Score", "Max Score", "Percentage", "Late", "Time Spent (minutes)",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, submission := range submissions {
		row := []interface{}{
			submission.StudentID,
			names[submission.StudentID],
			submission.AttemptNumber,
			string(submission.Status),
			submission.StartedAt.Format("2006-01-02 15:04:05"),
		}

		if submission.SubmittedAt != nil {
			row = append(row, submission.SubmittedAt.Format("2006-01-02 15:04:05"))
		} else {
			row = append(row, "")
		}

		row = append(row, submission.TotalScore)
		row = append(row, submission.MaxScore)

		if submission.MaxScore > 0 {
			row = append(row, roundScore(submission.TotalScore/submission.MaxScore*100))
		} else {
			row = append(row, 0)
		}

		if submission.IsLate {
			row = append(row, "Yes")
		} else {
			row = append(row, "No")
		}

		row = append(row, submission.TimeSpentSeconds/60)

		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.InfoContext(ctx, "Assignment results exported",
		"assignment_id", assignmentID, "exam_id", assignment.ExamID,
		"submission_count", len(submissions))

	return buf.Bytes(), nil
}

// resolveStudentNames looks up display names for the submitting students.
// Lookup failures degrade to empty names, never fail the export.
func (s *exportService) resolveStudentNames(ctx context.Context, submissions []*models.ExamSubmission) map[string]string {
	seen := make(map[string]bool, len(submissions))
	ids := make([]string, 0, len(submissions))
	for _, submission := range submissions {
		if !seen[submission.StudentID] {
			seen[submission.StudentID] = true
			ids = append(ids, submission.StudentID)
		}
	}

	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names
	}

	users, err := s.repo.User().GetByIDs(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to resolve student names for export", "error", err)
		return names
	}
	for _, user := range users {
		names[user.ID] = user.FullName
	}
	return names
}
