package wall

import (
	"slices"
	"strings"

	"memorialwall/internal/model"
)

// Present returns a copy of entries ordered most recent first.
// Entries with equal timestamps are ordered by ID.
func Present(entries []model.Entry) []model.Entry {
	out := slices.Clone(entries)
	slices.SortStableFunc(out, func(a, b model.Entry) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}
