package domain

import (
	"slices"
	"strings"
)

// ChecklistItem pairs one embedded question snapshot with its review
// outcome. Item identity is the embedded question's identifier.
type ChecklistItem struct {
	Question     Question
	Status       Status
	Comment      string
	Observations []Observation
}

func NewChecklistItem(q Question) (ChecklistItem, error) {
	if strings.TrimSpace(q.ID) == "" {
		return ChecklistItem{}, ErrInvalidID
	}
	if strings.TrimSpace(q.Text) == "" {
		return ChecklistItem{}, ErrInvalidText
	}
	return ChecklistItem{
		Question: q,
		Status:   StatusNotReviewed,
	}, nil
}

func (i ChecklistItem) ID() string {
	return i.Question.ID
}

func (i *ChecklistItem) SetStatus(status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	i.Status = status
	return nil
}

func (i *ChecklistItem) SetComment(comment string) {
	i.Comment = strings.TrimSpace(comment)
}

func (i *ChecklistItem) AddObservation(o Observation) error {
	if strings.TrimSpace(o.ID) == "" {
		return ErrInvalidID
	}
	for _, existing := range i.Observations {
		if existing.ID == o.ID {
			return ErrDuplicateObservation
		}
	}
	i.Observations = append(i.Observations, o)
	return nil
}

func (i *ChecklistItem) RemoveObservation(id string) error {
	for idx, o := range i.Observations {
		if o.ID == id {
			i.Observations = slices.Delete(i.Observations, idx, idx+1)
			return nil
		}
	}
	return ErrUnknownObservation
}

// clone returns a deep copy so stored snapshots never alias live state.
func (i ChecklistItem) clone() ChecklistItem {
	out := i
	out.Observations = slices.Clone(i.Observations)
	return out
}
