package checkout

import (
	"dukaanpos/backend/internal/domain"
)

// GroupByProduct aggregates line items sharing a product identity into
// editable groups. Group order follows the first appearance of each product
// in the input; members keep their input order. The result is a view over
// the items and must be recomputed after every mutation.
func GroupByProduct(items []domain.LineItem) []domain.ProductGroup {
	groups := make([]domain.ProductGroup, 0, len(items))
	index := make(map[string]int, len(items))

	for _, item := range items {
		at, seen := index[item.ProductID]
		if !seen {
			index[item.ProductID] = len(groups)
			groups = append(groups, domain.ProductGroup{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				// The representative (first) item decides whether the
				// group is tracked inventory with fixed quantities.
				Tracked: item.TrackedUnit,
			})
			at = len(groups) - 1
		}

		groups[at].Items = append(groups[at].Items, item)
		if item.Quantity > 0 {
			groups[at].TotalQuantity += item.Quantity
		}
	}

	return groups
}
