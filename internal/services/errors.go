package services

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AnswerErrorCode identifies why a single answer failed validation.
type AnswerErrorCode string

const (
	CodeMissingScreeningAnswer AnswerErrorCode = "missing_screening_answer"
	CodeInvalidDate            AnswerErrorCode = "invalid_date"
	CodeNotANumber             AnswerErrorCode = "not_a_number"
	CodeOutOfRange             AnswerErrorCode = "out_of_range"
	CodeInvalidOption          AnswerErrorCode = "invalid_option"
	CodeMissingAnswer          AnswerErrorCode = "missing_answer"
	CodeMissingOtherText       AnswerErrorCode = "missing_other_text"
	CodeGeographyIncomplete    AnswerErrorCode = "geography_incomplete"
	CodeUnknownQuestion        AnswerErrorCode = "unknown_question"
	CodeSchemaViolation        AnswerErrorCode = "schema_violation"
)

// AnswerError is a field-tagged validation failure for one submitted answer.
type AnswerError struct {
	QuestionID    string          `json:"question_id"`
	SubQuestionID string          `json:"subquestion_id,omitempty"`
	Field         string          `json:"field"`
	Code          AnswerErrorCode `json:"code"`
	Message       string          `json:"message"`
}

func (e *AnswerError) Error() string {
	return fmt.Sprintf("question %s: %s: %s", e.QuestionID, e.Field, e.Message)
}

// BatchValidationError aggregates every answer failure in a submission so
// the client can correct the whole form in one round trip.
type BatchValidationError struct {
	Errors []*AnswerError
}

func (e *BatchValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, ae := range e.Errors {
		msgs = append(msgs, ae.Error())
	}
	return strings.Join(msgs, "; ")
}

func AsBatchValidationError(err error) (*BatchValidationError, bool) {
	var be *BatchValidationError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
