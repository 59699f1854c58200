package domain

import (
	"slices"
	"strings"
)

// ObservationKind tags how a question is answered during a walkthrough:
// once for the whole area, or once per observed person.
type ObservationKind string

const (
	ObservationKindGeneral ObservationKind = "general"
	ObservationKindPerson  ObservationKind = "person"
)

var validObservationKinds = []ObservationKind{ObservationKindGeneral, ObservationKindPerson}

func (k ObservationKind) Valid() bool {
	return slices.Contains(validObservationKinds, k)
}

type Category struct {
	ID   string
	Name string
}

type Subcategory struct {
	ID       string
	Name     string
	Category Category
}

type Department struct {
	ID   string
	Name string
}

// Question is catalogue reference data. Sessions embed it by value at
// creation time so later catalogue edits never alter a recorded audit.
type Question struct {
	ID          string
	Text        string
	Critical    bool
	Kind        ObservationKind
	Subcategory Subcategory
}

func NewQuestion(id, text string, critical bool, kind ObservationKind, sub Subcategory) (Question, error) {
	id = strings.TrimSpace(id)
	text = strings.TrimSpace(text)
	if id == "" {
		return Question{}, ErrInvalidID
	}
	if text == "" {
		return Question{}, ErrInvalidText
	}
	if kind == "" {
		kind = ObservationKindGeneral
	}
	if !kind.Valid() {
		return Question{}, ErrInvalidStatus
	}
	return Question{
		ID:          id,
		Text:        text,
		Critical:    critical,
		Kind:        kind,
		Subcategory: sub,
	}, nil
}

// CategoryName returns the parent category label, empty when the snapshot
// carries none.
func (q Question) CategoryName() string {
	return strings.TrimSpace(q.Subcategory.Category.Name)
}
