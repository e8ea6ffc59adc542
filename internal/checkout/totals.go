package checkout

import (
	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/domain"
)

// EffectiveUnitPrice resolves the price used in totals for one item, in
// priority order: the item's session override, then an explicitly edited
// parent price for its group, then the item's stored manual price, then the
// product base price, then zero.
func (s *Session) EffectiveUnitPrice(item domain.LineItem) decimal.Decimal {
	if price, ok := s.prices[item.ID]; ok {
		return price
	}
	if price, ok := s.parentPrices[item.ProductID]; ok {
		return price
	}
	if item.ManualPrice.IsPositive() {
		return item.ManualPrice
	}
	if item.BasePrice.IsPositive() {
		return item.BasePrice
	}
	return decimal.Zero
}

// ComputeTotal sums quantity times effective unit price over items whose
// effective quantity is positive. Items zeroed out during the session
// contribute nothing even though they still exist on the invoice.
func (s *Session) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.items {
		qty := s.EffectiveQuantity(item.ID)
		if qty <= 0 {
			continue
		}
		price := s.EffectiveUnitPrice(item)
		total = total.Add(price.Mul(decimal.NewFromInt(int64(qty))))
	}
	return total
}

// AreAllPricesEntered reports whether every active group has a positive
// parent price and every active member resolves to a positive price. Groups
// whose effective quantity is zero are excluded, matching ComputeTotal.
func (s *Session) AreAllPricesEntered() bool {
	for _, group := range s.Groups() {
		active := false
		for _, item := range group.Items {
			if s.EffectiveQuantity(item.ID) > 0 {
				active = true
				break
			}
		}
		if !active {
			continue
		}
		if !s.ParentPrice(group.ProductID).IsPositive() {
			return false
		}
		for _, item := range group.Items {
			if s.EffectiveQuantity(item.ID) <= 0 {
				continue
			}
			if !s.EffectiveUnitPrice(item).IsPositive() {
				return false
			}
		}
	}
	return true
}

// ActiveItems returns the items that would participate in a submit, with
// session quantity and price overrides folded in.
func (s *Session) ActiveItems() []domain.CheckoutItem {
	out := make([]domain.CheckoutItem, 0, len(s.items))
	for _, item := range s.items {
		qty := s.EffectiveQuantity(item.ID)
		if qty <= 0 {
			continue
		}
		out = append(out, domain.CheckoutItem{
			ID:              item.ID,
			Quantity:        qty,
			UnitPrice:       s.EffectiveUnitPrice(item),
			ManualUnitPrice: s.prices[item.ID],
			Discount:        item.Discount,
			Tax:             item.Tax,
		})
	}
	return out
}
