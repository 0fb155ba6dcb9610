package services

import (
	"errors"
	"fmt"

	apperrors "github.com/ngbao12/GoPass-sub000/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")

	// Precondition violations: rejected before any mutation, safe to retry
	// once the condition changes
	ErrAssignmentNotFound   = errors.New("assignment not found")
	ErrAssignmentNotStarted = errors.New("assignment has not started yet")
	ErrAssignmentEnded      = errors.New("assignment has ended")
	ErrNotAMember           = errors.New("student is not a member of the assignment group")
	ErrAttemptsExhausted    = errors.New("maximum attempts reached")

	// State conflicts: the submission left in_progress, client must refresh
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrSubmissionFinalized = errors.New("cannot modify a finalized submission")
	ErrAlreadyFinalized    = errors.New("submission already finalized")

	// Answer / grading errors
	ErrAnswerNotFound      = errors.New("answer not found")
	ErrQuestionNotInExam   = errors.New("question does not belong to this exam")
	ErrInvalidScore        = errors.New("invalid score value")
	ErrGradingNotManual    = errors.New("answer is not pending manual grading")
	ErrUnknownQuestionType = errors.New("unknown question type")

	// Contest errors
	ErrParticipationNotFound = errors.New("contest participation not found")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// BusinessRuleError describes a violated business rule with its context.
type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

// PermissionError describes a denied action on a resource.
type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// DependencyWarning is a non-fatal secondary failure (contest accumulation,
// essay-score suggestion). It is surfaced alongside a successful result
// rather than failing the operation.
type DependencyWarning struct {
	Dependency string `json:"dependency"`
	Message    string `json:"message"`
}

func (dw *DependencyWarning) Error() string {
	return fmt.Sprintf("dependency %s failed: %s", dw.Dependency, dw.Message)
}

// ===== ERROR HELPERS =====

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsPreconditionViolation reports whether err belongs to the class of errors
// that are rejected before any write and may be retried after the condition
// changes.
func IsPreconditionViolation(err error) bool {
	return errors.Is(err, ErrAssignmentNotStarted) ||
		errors.Is(err, ErrAssignmentEnded) ||
		errors.Is(err, ErrNotAMember) ||
		errors.Is(err, ErrAttemptsExhausted)
}

// IsStateConflict reports whether err means the submission state moved on and
// the client should refresh rather than retry.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrSubmissionFinalized) ||
		errors.Is(err, ErrAlreadyFinalized)
}
