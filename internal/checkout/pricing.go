package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/domain"
)

// FloorViolation validates a candidate price against an item's floor and
// returns a human-readable message, or "" when the price is acceptable.
// A zero or negative price means "not yet entered" and is never a violation;
// the missing-price condition is enforced separately at submit time.
func FloorViolation(price decimal.Decimal, item domain.LineItem) string {
	if !price.IsPositive() {
		return ""
	}
	if item.CanGoBelowFloor {
		return ""
	}
	floor := item.FloorPrice()
	if floor.IsPositive() && price.LessThan(floor) {
		return fmt.Sprintf("Price cannot be less than %s price (₹%s)", item.FloorSource(), floor.StringFixed(2))
	}
	return ""
}

// ParentPrice returns the group's current parent price: the explicitly
// edited value when one exists, else the seed taken from the group's first
// item's effective price.
func (s *Session) ParentPrice(productID string) decimal.Decimal {
	if price, ok := s.parentPrices[productID]; ok {
		return price
	}
	group := s.groupFor(productID)
	if group == nil || len(group.Items) == 0 {
		return decimal.Zero
	}
	return group.Items[0].EffectivePrice()
}

// SetParentPrice applies a price edit to a whole group. The new value is
// validated against the group's floor (via its representative item), then
// propagated to every member that has not diverged from the parent. Members
// that carry their own manual override keep it untouched.
func (s *Session) SetParentPrice(productID string, price decimal.Decimal) error {
	group := s.groupFor(productID)
	if group == nil {
		return ErrUnknownGroup
	}

	prev := s.ParentPrice(productID)

	if msg := FloorViolation(price, group.Items[0]); msg != "" {
		s.priceErrors[productID] = msg
	} else {
		delete(s.priceErrors, productID)
	}
	s.parentPrices[productID] = price

	for _, item := range group.Items {
		if s.isDivergedFromParent(item, prev) {
			continue
		}
		s.prices[item.ID] = price
		if msg := FloorViolation(price, item); msg != "" {
			s.priceErrors[itemErrorKey(item.ID)] = msg
		} else {
			delete(s.priceErrors, itemErrorKey(item.ID))
		}
	}

	return nil
}

// isDivergedFromParent decides whether an item's override counts as a
// deliberate manual price that parent edits must not overwrite. An item is
// still attached when it has no override, when its override equals the
// previous parent price, or when its override equals its original effective
// price. The heuristic is deliberately value-based: an override typed to
// exactly the old parent value re-attaches the item.
func (s *Session) isDivergedFromParent(item domain.LineItem, prevParent decimal.Decimal) bool {
	override, ok := s.prices[item.ID]
	if !ok {
		return false
	}
	if override.Equal(prevParent) {
		return false
	}
	if original, ok := s.originals[item.ID]; ok && override.Equal(original) {
		return false
	}
	return true
}

// SetItemPrice sets a per-item override independently of the parent price
// and validates only that item.
func (s *Session) SetItemPrice(itemID string, price decimal.Decimal) error {
	item := s.itemByID(itemID)
	if item == nil {
		return ErrUnknownItem
	}

	s.prices[itemID] = price
	if msg := FloorViolation(price, *item); msg != "" {
		s.priceErrors[itemErrorKey(itemID)] = msg
	} else {
		delete(s.priceErrors, itemErrorKey(itemID))
	}
	return nil
}

// ClearItemPrice drops an item's override so it re-attaches to the group's
// current parent price. This is the blur-without-input contract: clearing an
// override reverts the item to the parent, not to its own prior override.
func (s *Session) ClearItemPrice(itemID string) error {
	item := s.itemByID(itemID)
	if item == nil {
		return ErrUnknownItem
	}
	delete(s.prices, itemID)
	delete(s.priceErrors, itemErrorKey(itemID))
	return nil
}

// ItemPrice returns the item's current override and whether one is set.
func (s *Session) ItemPrice(itemID string) (decimal.Decimal, bool) {
	price, ok := s.prices[itemID]
	return price, ok
}
