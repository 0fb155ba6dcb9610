package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ngbao12/GoPass-sub000/internal/models"
	"github.com/ngbao12/GoPass-sub000/internal/repositories"
	"gorm.io/datatypes"
)

// QuestionRef is the read-only view of one exam slot the grading path needs.
// MaxScore comes from the submission's frozen weight map when available, so
// later edits to the exam cannot shift already-started attempts.
type QuestionRef struct {
	QuestionID    uint
	Type          models.QuestionType
	Text          string
	Content       datatypes.JSON
	CorrectAnswer json.RawMessage
	MaxScore      float64
}

type questionResolver struct {
	repo repositories.Repository
}

func newQuestionResolver(repo repositories.Repository) *questionResolver {
	return &questionResolver{repo: repo}
}

// Resolve builds the per-question reference map for an exam. frozenWeights,
// when non-nil, overrides each question's live weight.
func (r *questionResolver) Resolve(ctx context.Context, examID uint, frozenWeights map[uint]float64) (map[uint]QuestionRef, error) {
	questions, err := r.repo.Question().GetByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve exam questions: %w", err)
	}

	refs := make(map[uint]QuestionRef, len(questions))
	for _, q := range questions {
		maxScore := q.MaxScore
		if frozenWeights != nil {
			if frozen, ok := frozenWeights[q.ID]; ok {
				maxScore = frozen
			}
		}
		refs[q.ID] = QuestionRef{
			QuestionID:    q.ID,
			Type:          q.Type,
			Text:          q.Text,
			Content:       q.Content,
			CorrectAnswer: json.RawMessage(q.CorrectAnswer),
			MaxScore:      maxScore,
		}
	}
	return refs, nil
}

// ===== FROZEN WEIGHT CODEC =====

// encodeWeights serializes a weight map into the submission's JSONB column.
// JSON object keys must be strings, so question IDs are stringified.
func encodeWeights(questions []*models.ExamQuestion) (datatypes.JSON, float64, error) {
	weights := make(map[string]float64, len(questions))
	var total float64
	for _, q := range questions {
		weights[strconv.FormatUint(uint64(q.ID), 10)] = q.MaxScore
		total += q.MaxScore
	}

	data, err := json.Marshal(weights)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode question weights: %w", err)
	}
	return datatypes.JSON(data), total, nil
}

// decodeWeights reads the frozen weight map back out of a submission row.
func decodeWeights(data datatypes.JSON) (map[uint]float64, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var raw map[string]float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode question weights: %w", err)
	}

	weights := make(map[uint]float64, len(raw))
	for key, value := range raw {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid question id %q in weight map", key)
		}
		weights[uint(id)] = value
	}
	return weights, nil
}
