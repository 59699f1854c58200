package domain

import "slices"

type Status string

const (
	StatusNotReviewed Status = "not_reviewed"
	StatusApproved    Status = "approved"
	StatusFailed      Status = "failed"
	StatusPartial     Status = "partially_approved"
)

var validStatuses = []Status{StatusNotReviewed, StatusApproved, StatusFailed, StatusPartial}

func (s Status) Valid() bool {
	return slices.Contains(validStatuses, s)
}

// Answered reports whether the status counts toward the reviewed total.
func (s Status) Answered() bool {
	return s.Valid() && s != StatusNotReviewed
}

// ApprovedLike reports whether the status counts toward the pass ratio.
func (s Status) ApprovedLike() bool {
	return s == StatusApproved || s == StatusPartial
}

type Lifecycle string

const (
	LifecycleIncomplete Lifecycle = "incomplete"
	LifecycleComplete   Lifecycle = "complete"
)
