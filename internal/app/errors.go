package app

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound and related errors describe storage and transition failures.
var (
	ErrNotFound           = errors.New("not found")
	ErrDuplicateID        = errors.New("duplicate session id")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrInvalidTransition  = errors.New("invalid transition")
)

// IncompleteError reports a completion attempt while items are still
// unanswered. It lists the offending item identifiers.
type IncompleteError struct {
	Unanswered []string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("session has unanswered items: %s", strings.Join(e.Unanswered, ", "))
}

func (e *IncompleteError) Unwrap() error {
	return ErrInvalidTransition
}
