package provider

import (
	"sort"

	"github.com/davidbz/hearth/internal/domain"
)

// ModelIDs returns the table's model identifiers in sorted order.
func ModelIDs(table map[string]domain.ModelInfo) []string {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
