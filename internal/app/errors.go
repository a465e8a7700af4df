package app

import (
	"errors"
	"fmt"

	"paperbrain/internal/model"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrDocumentNotFound = fmt.Errorf("document %w", ErrNotFound)
	ErrSessionNotFound  = fmt.Errorf("session %w", ErrNotFound)
	ErrMessageNotFound  = fmt.Errorf("message %w", ErrNotFound)
	ErrConflict         = errors.New("conflict")
	ErrRetrievalTimeout = errors.New("retrieval timed out")
	ErrRetrievalFailure = errors.New("retrieval failed")
	ErrUnauthenticated  = errors.New("unauthenticated")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// TurnError is returned by QueryOrchestrator.Handle when the user message was
// stored but no answer could be produced. UserMessage.ID is the key to retry
// the turn with.
type TurnError struct {
	UserMessage *model.Message
	Err         error
}

func (e *TurnError) Error() string {
	if e.UserMessage == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("turn for message %s: %v", e.UserMessage.ID, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}
