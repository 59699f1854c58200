package domain

import "errors"

var (
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidText          = errors.New("invalid question text")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidRole          = errors.New("invalid observation role")
	ErrInvalidLocation      = errors.New("invalid location")
	ErrInvalidReviewer      = errors.New("invalid reviewer")
	ErrInvalidDepartment    = errors.New("invalid department")
	ErrDuplicateItem        = errors.New("duplicate checklist item id")
	ErrDuplicateObservation = errors.New("duplicate observation id")
	ErrUnknownObservation   = errors.New("unknown observation id")
	ErrUnansweredItems      = errors.New("session has unanswered items")
	ErrSessionComplete      = errors.New("session is complete")
)
