package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// In-memory repository fakes backing the service tests.

type fakeRepo struct {
	assignments *fakeAssignmentRepo
	questions   *fakeQuestionRepo
	membership  *fakeMembershipRepo
	submissions *fakeSubmissionRepo
	answers     *fakeAnswerRepo
	contests    *fakeContestRepo
	users       *fakeUserRepo
}

func newFakeRepo() *fakeRepo {
	answers := &fakeAnswerRepo{rows: make(map[[2]uint]*models.ExamAnswer)}
	return &fakeRepo{
		assignments: &fakeAssignmentRepo{rows: make(map[uint]*models.ExamAssignment)},
		questions:   &fakeQuestionRepo{byExam: make(map[uint][]*models.ExamQuestion)},
		membership:  &fakeMembershipRepo{members: make(map[uint]map[string]bool)},
		submissions: &fakeSubmissionRepo{rows: make(map[uint]*models.ExamSubmission), answers: answers},
		answers:     answers,
		contests:    &fakeContestRepo{rows: make(map[string]*models.ContestParticipation)},
		users:       &fakeUserRepo{rows: make(map[string]*models.User)},
	}
}

func (r *fakeRepo) Assignment() repositories.AssignmentRepository { return r.assignments }
func (r *fakeRepo) Question() repositories.QuestionRepository     { return r.questions }
func (r *fakeRepo) Membership() repositories.MembershipRepository { return r.membership }
func (r *fakeRepo) Submission() repositories.SubmissionRepository { return r.submissions }
func (r *fakeRepo) Answer() repositories.AnswerRepository         { return r.answers }
func (r *fakeRepo) Contest() repositories.ContestRepository       { return r.contests }
func (r *fakeRepo) User() repositories.UserRepository             { return r.users }

func (r *fakeRepo) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func (r *fakeRepo) Ping(ctx context.Context) error { return nil }
func (r *fakeRepo) Close() error                   { return nil }

// ===== ASSIGNMENTS =====

type fakeAssignmentRepo struct {
	mu   sync.Mutex
	rows map[uint]*models.ExamAssignment
}

func (f *fakeAssignmentRepo) put(a *models.ExamAssignment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[a.ID] = a
}

func (f *fakeAssignmentRepo) GetByID(ctx context.Context, id uint) (*models.ExamAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAssignmentRepo) GetWithExam(ctx context.Context, id uint) (*models.ExamAssignment, error) {
	return f.GetByID(ctx, id)
}

// ===== QUESTIONS =====

type fakeQuestionRepo struct {
	mu     sync.Mutex
	byExam map[uint][]*models.ExamQuestion
}

func (f *fakeQuestionRepo) put(q *models.ExamQuestion) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byExam[q.ExamID] = append(f.byExam[q.ExamID], q)
}

func (f *fakeQuestionRepo) GetByID(ctx context.Context, id uint) (*models.ExamQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, questions := range f.byExam {
		for _, q := range questions {
			if q.ID == id {
				copied := *q
				return &copied, nil
			}
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeQuestionRepo) GetByExam(ctx context.Context, examID uint) ([]*models.ExamQuestion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ExamQuestion, 0, len(f.byExam[examID]))
	for _, q := range f.byExam[examID] {
		copied := *q
		out = append(out, &copied)
	}
	return out, nil
}

// ===== MEMBERSHIP =====

type fakeMembershipRepo struct {
	mu      sync.Mutex
	members map[uint]map[string]bool
}

func (f *fakeMembershipRepo) add(groupID uint, studentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[groupID] == nil {
		f.members[groupID] = make(map[string]bool)
	}
	f.members[groupID][studentID] = true
}

func (f *fakeMembershipRepo) IsMember(ctx context.Context, groupID uint, studentID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[groupID][studentID], nil
}

// ===== SUBMISSIONS =====

type fakeSubmissionRepo struct {
	mu      sync.Mutex
	rows    map[uint]*models.ExamSubmission
	nextID  uint
	answers *fakeAnswerRepo

	// beforeFinalize runs inside FinalizeInProgress before the status check,
	// so tests can interleave a concurrent finalize.
	beforeFinalize func()
}

func (f *fakeSubmissionRepo) Create(ctx context.Context, tx *gorm.DB, submission *models.ExamSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	submission.ID = f.nextID
	submission.CreatedAt = time.Now()
	copied := *submission
	f.rows[submission.ID] = &copied
	return nil
}

func (f *fakeSubmissionRepo) GetByID(ctx context.Context, id uint) (*models.ExamSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeSubmissionRepo) GetWithAnswers(ctx context.Context, id uint) (*models.ExamSubmission, error) {
	submission, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	answers, err := f.answers.GetBySubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	submission.Answers = make([]models.ExamAnswer, 0, len(answers))
	for _, a := range answers {
		submission.Answers = append(submission.Answers, *a)
	}
	return submission, nil
}

func (f *fakeSubmissionRepo) GetInProgress(ctx context.Context, assignmentID uint, studentID string) (*models.ExamSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.AssignmentID == assignmentID && row.StudentID == studentID && row.Status == models.SubmissionInProgress {
			copied := *row
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSubmissionRepo) CountByStudent(ctx context.Context, assignmentID uint, studentID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, row := range f.rows {
		if row.AssignmentID == assignmentID && row.StudentID == studentID {
			count++
		}
	}
	return count, nil
}

func (f *fakeSubmissionRepo) List(ctx context.Context, assignmentID uint, filters repositories.SubmissionFilters) ([]*models.ExamSubmission, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ExamSubmission, 0)
	for _, row := range f.rows {
		if row.AssignmentID != assignmentID {
			continue
		}
		if filters.StudentID != nil && row.StudentID != *filters.StudentID {
			continue
		}
		if filters.Status != nil && row.Status != *filters.Status {
			continue
		}
		copied := *row
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (f *fakeSubmissionRepo) FinalizeInProgress(ctx context.Context, tx *gorm.DB, id uint, final repositories.SubmissionFinal) (bool, error) {
	if f.beforeFinalize != nil {
		f.beforeFinalize()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	if row.Status != models.SubmissionInProgress {
		return false, nil
	}

	submittedAt := final.SubmittedAt
	row.Status = final.Status
	row.TotalScore = final.TotalScore
	row.SubmittedAt = &submittedAt
	row.IsLate = final.IsLate
	row.TimeSpentSeconds = final.TimeSpentSeconds
	return true, nil
}

func (f *fakeSubmissionRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, id uint, status models.SubmissionStatus, totalScore float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.Status = status
	row.TotalScore = totalScore
	return nil
}

func (f *fakeSubmissionRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.ExamSubmission, error) {
	return nil, nil
}

// markFinalized flips a stored row's status directly, bypassing the service.
func (f *fakeSubmissionRepo) markFinalized(id uint, status models.SubmissionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[id]; ok {
		row.Status = status
	}
}

// ===== ANSWERS =====

type fakeAnswerRepo struct {
	mu     sync.Mutex
	rows   map[[2]uint]*models.ExamAnswer
	nextID uint
}

func (f *fakeAnswerRepo) Upsert(ctx context.Context, tx *gorm.DB, answer *models.ExamAnswer) (*models.ExamAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]uint{answer.SubmissionID, answer.QuestionID}
	if existing, ok := f.rows[key]; ok {
		answer.ID = existing.ID
	} else {
		f.nextID++
		answer.ID = f.nextID
	}
	copied := *answer
	f.rows[key] = &copied
	result := copied
	return &result, nil
}

func (f *fakeAnswerRepo) GetBySubmission(ctx context.Context, submissionID uint) ([]*models.ExamAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.ExamAnswer, 0)
	for key, row := range f.rows {
		if key[0] == submissionID {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeAnswerRepo) GetBySubmissionAndQuestion(ctx context.Context, submissionID, questionID uint) (*models.ExamAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[[2]uint{submissionID, questionID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeAnswerRepo) GetByID(ctx context.Context, id uint) (*models.ExamAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == id {
			copied := *row
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAnswerRepo) UpdateGrades(ctx context.Context, tx *gorm.DB, answers []*models.ExamAnswer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, answer := range answers {
		key := [2]uint{answer.SubmissionID, answer.QuestionID}
		if row, ok := f.rows[key]; ok {
			row.Score = answer.Score
			row.MaxScore = answer.MaxScore
			row.IsAutoGraded = answer.IsAutoGraded
			row.Feedback = answer.Feedback
		}
	}
	return nil
}

func (f *fakeAnswerRepo) ApplyManualGrade(ctx context.Context, tx *gorm.DB, grade repositories.AnswerGrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ID == grade.AnswerID {
			now := time.Now()
			row.Score = grade.Score
			row.Feedback = grade.Feedback
			row.GradedBy = &grade.GraderID
			row.GradedAt = &now
			row.IsManuallyGraded = true
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeAnswerRepo) CountPendingManual(ctx context.Context, submissionID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for key, row := range f.rows {
		if key[0] == submissionID && !row.IsAutoGraded && !row.IsManuallyGraded {
			count++
		}
	}
	return count, nil
}

// ===== CONTESTS =====

type fakeContestRepo struct {
	mu          sync.Mutex
	rows        map[string]*models.ContestParticipation
	nextID      uint
	updateCount int
	standings   []*models.ContestStanding
}

func contestKey(contestID uint, studentID string) string {
	return fmt.Sprintf("%d:%s", contestID, studentID)
}

func (f *fakeContestRepo) GetParticipation(ctx context.Context, contestID uint, studentID string) (*models.ContestParticipation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[contestKey(contestID, studentID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeContestRepo) CreateParticipation(ctx context.Context, participation *models.ContestParticipation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := contestKey(participation.ContestID, participation.StudentID)
	if _, ok := f.rows[key]; ok {
		return gorm.ErrDuplicatedKey
	}
	f.nextID++
	participation.ID = f.nextID
	copied := *participation
	f.rows[key] = &copied
	return nil
}

func (f *fakeContestRepo) Update(ctx context.Context, tx *gorm.DB, participation *models.ContestParticipation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCount++
	copied := *participation
	f.rows[contestKey(participation.ContestID, participation.StudentID)] = &copied
	return nil
}

func (f *fakeContestRepo) Standings(ctx context.Context, contestID uint, limit int) ([]*models.ContestStanding, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.standings, nil
}

// ===== USERS =====

type fakeUserRepo struct {
	mu   sync.Mutex
	rows map[string]*models.User
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.Email == email {
			copied := *row
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if row, ok := f.rows[id]; ok {
			copied := *row
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	return nil, 0, nil
}

func (f *fakeUserRepo) ExistsByID(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[id]
	return ok, nil
}

func (f *fakeUserRepo) HasRole(ctx context.Context, id string, role models.UserRole) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	return ok && row.Role == role, nil
}

// ===== FIXTURES =====

const (
	fixtureExamID       = uint(1)
	fixtureAssignmentID = uint(100)
	fixtureGroupID      = uint(5)
	fixtureStudentID    = "student-1"

	fixtureMCQuestionID    = uint(10)
	fixtureTFQuestionID    = uint(11)
	fixtureEssayQuestionID = uint(12)
)

// seedExamFixture installs an exam with a multiple-choice, a multi-part
// true/false and an essay question (weights 1 + 2 + 2 = 5) behind an open
// assignment window.
func seedExamFixture(repo *fakeRepo) *models.ExamAssignment {
	questions := []models.ExamQuestion{
		{
			ID:       fixtureMCQuestionID,
			ExamID:   fixtureExamID,
			Type:     models.MultipleChoice,
			Text:     "Pick one",
			Order:    1,
			MaxScore: 1.0,
			Content: datatypes.JSON([]byte(
				`{"options": [{"id": "a", "text": "First", "is_correct": false}, {"id": "b", "text": "Second", "is_correct": true}]}`)),
			CorrectAnswer: datatypes.JSON([]byte(`"b"`)),
		},
		{
			ID:            fixtureTFQuestionID,
			ExamID:        fixtureExamID,
			Type:          models.TrueFalse,
			Text:          "Judge each statement",
			Order:         2,
			MaxScore:      2.0,
			CorrectAnswer: datatypes.JSON([]byte(`{"sub_items": {"1": true, "2": false}}`)),
		},
		{
			ID:       fixtureEssayQuestionID,
			ExamID:   fixtureExamID,
			Type:     models.Essay,
			Text:     "Explain in your own words",
			Order:    3,
			MaxScore: 2.0,
		},
	}

	for i := range questions {
		repo.questions.put(&questions[i])
	}

	now := time.Now()
	assignment := &models.ExamAssignment{
		ID:          fixtureAssignmentID,
		ExamID:      fixtureExamID,
		GroupID:     fixtureGroupID,
		StartTime:   now.Add(-time.Hour),
		EndTime:     now.Add(time.Hour),
		MaxAttempts: 2,
		Exam: models.Exam{
			ID:              fixtureExamID,
			Title:           "Fixture Exam",
			DurationMinutes: 45,
			Questions:       questions,
		},
	}
	repo.assignments.put(assignment)
	repo.membership.add(fixtureGroupID, fixtureStudentID)
	return assignment
}
