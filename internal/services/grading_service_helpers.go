package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ngbao12/GoPass-sub000/internal/models"
)

// ===== PER-TYPE GRADERS =====

func gradeMultipleChoice(submitted models.AnswerPayload, reference json.RawMessage, maxScore float64) (GradeResult, error) {
	correctID, err := parseCorrectOption(reference)
	if err != nil {
		return GradeResult{}, fmt.Errorf("invalid multiple_choice reference: %w", err)
	}

	selected, ok := singleSelection(submitted)
	if !ok {
		// No selection or more than one selected option
		return GradeResult{Score: 0, IsAutoGraded: true, Feedback: "Incorrect"}, nil
	}

	if compareStrings(selected, correctID, false) {
		return GradeResult{Score: maxScore, IsAutoGraded: true, Feedback: "Correct"}, nil
	}
	return GradeResult{Score: 0, IsAutoGraded: true, Feedback: "Incorrect"}, nil
}

func gradeTrueFalse(submitted models.AnswerPayload, reference json.RawMessage, maxScore float64) (GradeResult, error) {
	refScalar, refMap, err := parseTrueFalseReference(reference)
	if err != nil {
		return GradeResult{}, fmt.Errorf("invalid true_false reference: %w", err)
	}

	// Multi-part statement: linear partial credit over sub-items
	if refMap != nil {
		total := len(refMap)
		if total == 0 {
			return GradeResult{Score: 0, IsAutoGraded: true, Feedback: "Incorrect"}, nil
		}

		matching := 0
		for key, expected := range refMap {
			got, ok := submitted.TrueFalseMap[key]
			if ok && compareStrings(got, expected, false) {
				matching++
			}
		}

		score := maxScore * float64(matching) / float64(total)
		feedback := fmt.Sprintf("%d/%d correct", matching, total)
		return GradeResult{Score: score, IsAutoGraded: true, Feedback: feedback}, nil
	}

	// Simple true/false: all-or-nothing
	if compareStrings(submitted.Text, refScalar, false) {
		return GradeResult{Score: maxScore, IsAutoGraded: true, Feedback: "Correct"}, nil
	}
	return GradeResult{Score: 0, IsAutoGraded: true, Feedback: "Incorrect"}, nil
}

func gradeShortAnswer(submitted models.AnswerPayload, reference json.RawMessage, maxScore float64) (GradeResult, error) {
	expected, err := parseShortAnswerKey(reference)
	if err != nil {
		return GradeResult{}, fmt.Errorf("invalid short_answer reference: %w", err)
	}

	if submitted.Text != "" && compareStrings(submitted.Text, expected, false) {
		return GradeResult{Score: maxScore, IsAutoGraded: true, Feedback: "Correct"}, nil
	}

	// Non-exact matches are never auto-scored; a human (or AI suggestion for
	// human review) resolves them
	return GradeResult{Score: 0, IsAutoGraded: false, Feedback: PendingManualFeedback}, nil
}

// ===== REFERENCE PARSING =====

// parseCorrectOption accepts a bare JSON string, an {"option_id": ...}
// document, or a single-element array of option ids.
func parseCorrectOption(reference json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(reference, &asString); err == nil {
		return asString, nil
	}

	var asDoc struct {
		OptionID string `json:"option_id"`
	}
	if err := json.Unmarshal(reference, &asDoc); err == nil && asDoc.OptionID != "" {
		return asDoc.OptionID, nil
	}

	var asList []string
	if err := json.Unmarshal(reference, &asList); err == nil && len(asList) == 1 {
		return asList[0], nil
	}

	return "", fmt.Errorf("unsupported correct-option document")
}

// parseTrueFalseReference accepts a bare JSON bool, a {"value": ...} wrapper,
// a {"sub_items": {...}} wrapper, or a bare map of sub-item id to expected
// value. Exactly one of the return values is set.
func parseTrueFalseReference(reference json.RawMessage) (string, map[string]string, error) {
	var asBool bool
	if err := json.Unmarshal(reference, &asBool); err == nil {
		return boolString(asBool), nil, nil
	}

	var asWrapper models.TrueFalseAnswer
	if err := json.Unmarshal(reference, &asWrapper); err == nil {
		if len(asWrapper.SubItems) > 0 {
			entries := make(map[string]string, len(asWrapper.SubItems))
			for key, value := range asWrapper.SubItems {
				entries[key] = boolString(value)
			}
			return "", entries, nil
		}
		if asWrapper.Value != nil {
			return boolString(*asWrapper.Value), nil, nil
		}
	}

	var asMap map[string]interface{}
	if err := json.Unmarshal(reference, &asMap); err == nil && len(asMap) > 0 {
		entries := make(map[string]string, len(asMap))
		for key, value := range asMap {
			entries[key] = fmt.Sprintf("%v", value)
		}
		return "", entries, nil
	}

	return "", nil, fmt.Errorf("unsupported true_false document")
}

// parseShortAnswerKey accepts a bare JSON string or a {"text": ...} document.
func parseShortAnswerKey(reference json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(reference, &asString); err == nil {
		return asString, nil
	}

	var asDoc models.ShortAnswerKey
	if err := json.Unmarshal(reference, &asDoc); err == nil && asDoc.Text != "" {
		return asDoc.Text, nil
	}

	return "", fmt.Errorf("unsupported short_answer document")
}

// ===== STRING HELPERS =====

// compareStrings compares after trimming whitespace, optionally case folding.
func compareStrings(s1, s2 string, caseSensitive bool) bool {
	s1 = strings.TrimSpace(s1)
	s2 = strings.TrimSpace(s2)
	if !caseSensitive {
		s1 = strings.ToLower(s1)
		s2 = strings.ToLower(s2)
	}
	return s1 == s2
}

// singleSelection extracts the one selected option id from a payload. False
// when the payload is empty or carries multiple selections.
func singleSelection(payload models.AnswerPayload) (string, bool) {
	switch payload.Kind {
	case models.PayloadText:
		if payload.Text == "" {
			return "", false
		}
		return payload.Text, true
	case models.PayloadSelection:
		if len(payload.Selection) != 1 {
			return "", false
		}
		return payload.Selection[0], true
	default:
		return "", false
	}
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// ===== SIMILARITY HINT =====

// calculateStringSimilarity returns a 0..1 similarity used only as a manual
// review hint for short answers, never to auto-finalize a score.
func calculateStringSimilarity(s1, s2 string) float64 {
	s1 = strings.ToLower(strings.TrimSpace(s1))
	s2 = strings.ToLower(strings.TrimSpace(s2))

	if s1 == s2 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}

	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)

	rows := len(r1) + 1
	cols := len(r2) + 1

	dist := make([][]int, rows)
	for i := range dist {
		dist[i] = make([]int, cols)
		dist[i][0] = i
	}
	for j := 1; j < cols; j++ {
		dist[0][j] = j
	}

	for i := 1; i < rows; i++ {
		for j := 1; j < cols; j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}

			dist[i][j] = minInt(
				dist[i-1][j]+1,
				dist[i][j-1]+1,
				dist[i-1][j-1]+cost,
			)
		}
	}

	return dist[rows-1][cols-1]
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
