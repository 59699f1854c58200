package app

import "github.com/klinikhygiene/begehung/internal/domain"

// ItemGroup is one category bucket in the presentation ordering.
type ItemGroup struct {
	Category string
	Items    []domain.ChecklistItem
}

// GroupItems derives the category grouping from the flat item list,
// preserving first-seen category order and item order within a group. It is
// recomputed wholesale after every mutation; sessions hold tens of items,
// so the O(n) pass is cheap.
func GroupItems(items []domain.ChecklistItem) []ItemGroup {
	groups := make([]ItemGroup, 0)
	index := map[string]int{}
	for _, item := range items {
		category := item.Question.CategoryName()
		if category == "" {
			category = "Uncategorized"
		}
		pos, ok := index[category]
		if !ok {
			pos = len(groups)
			index[category] = pos
			groups = append(groups, ItemGroup{Category: category})
		}
		groups[pos].Items = append(groups[pos].Items, item)
	}
	return groups
}
