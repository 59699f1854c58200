package domain

import "strings"

// Observation records the outcome for one observed person under a
// checklist item.
type Observation struct {
	ID      string
	Role    string
	Status  Status
	Comment string
}

func NewObservation(id, role string, status Status, comment string) (Observation, error) {
	id = strings.TrimSpace(id)
	role = strings.TrimSpace(role)
	if id == "" {
		return Observation{}, ErrInvalidID
	}
	if role == "" {
		return Observation{}, ErrInvalidRole
	}
	// An observation always carries a concrete outcome; a placeholder
	// "not reviewed" observation is rejected at the door.
	if !status.Answered() {
		return Observation{}, ErrInvalidStatus
	}
	return Observation{
		ID:      id,
		Role:    role,
		Status:  status,
		Comment: strings.TrimSpace(comment),
	}, nil
}
