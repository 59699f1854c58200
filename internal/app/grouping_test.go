package app

import (
	"testing"

	"github.com/klinikhygiene/begehung/internal/domain"
)

func TestGroupItemsPreservesFirstSeenOrder(t *testing.T) {
	items := []domain.ChecklistItem{}
	for _, spec := range []struct{ id, category string }{
		{"q1", "Hand hygiene"},
		{"q2", "Surfaces"},
		{"q3", "Hand hygiene"},
		{"q4", "Waste"},
		{"q5", "Surfaces"},
	} {
		item, err := domain.NewChecklistItem(catalogueQuestion(spec.id, spec.category, false))
		if err != nil {
			t.Fatalf("NewChecklistItem() error = %v", err)
		}
		items = append(items, item)
	}

	groups := GroupItems(items)
	wantOrder := []string{"Hand hygiene", "Surfaces", "Waste"}
	if len(groups) != len(wantOrder) {
		t.Fatalf("expected %d groups, got %d", len(wantOrder), len(groups))
	}
	for idx, want := range wantOrder {
		if groups[idx].Category != want {
			t.Fatalf("group %d = %q, want %q", idx, groups[idx].Category, want)
		}
	}
	if len(groups[0].Items) != 2 || groups[0].Items[0].ID() != "q1" || groups[0].Items[1].ID() != "q3" {
		t.Fatalf("unexpected Hand hygiene items %+v", groups[0].Items)
	}
}

func TestGroupItemsCoversEveryItemExactlyOnce(t *testing.T) {
	items := []domain.ChecklistItem{}
	for _, spec := range []struct{ id, category string }{
		{"q1", "A"}, {"q2", "B"}, {"q3", ""}, {"q4", "A"}, {"q5", "C"},
	} {
		q := domain.Question{
			ID:   spec.id,
			Text: "text",
			Kind: domain.ObservationKindGeneral,
			Subcategory: domain.Subcategory{
				Category: domain.Category{Name: spec.category},
			},
		}
		item, err := domain.NewChecklistItem(q)
		if err != nil {
			t.Fatalf("NewChecklistItem() error = %v", err)
		}
		items = append(items, item)
	}

	groups := GroupItems(items)
	seen := map[string]int{}
	for _, group := range groups {
		for _, item := range group.Items {
			seen[item.ID()]++
		}
	}
	if len(seen) != len(items) {
		t.Fatalf("expected %d distinct items across groups, got %d", len(items), len(seen))
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("item %q appears %d times", id, count)
		}
	}
}

func TestGroupItemsEmptyCategoryBucket(t *testing.T) {
	q := domain.Question{ID: "q1", Text: "text", Kind: domain.ObservationKindGeneral}
	item, err := domain.NewChecklistItem(q)
	if err != nil {
		t.Fatalf("NewChecklistItem() error = %v", err)
	}
	groups := GroupItems([]domain.ChecklistItem{item})
	if len(groups) != 1 || groups[0].Category != "Uncategorized" {
		t.Fatalf("unexpected grouping %+v", groups)
	}
}

func TestGroupItemsEmptyList(t *testing.T) {
	if groups := GroupItems(nil); len(groups) != 0 {
		t.Fatalf("expected no groups, got %+v", groups)
	}
}
