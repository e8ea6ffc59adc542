package checkout

import (
	"errors"

	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/domain"
)

var (
	ErrUnknownGroup    = errors.New("unknown product group")
	ErrUnknownItem     = errors.New("unknown line item")
	ErrTrackedQuantity = errors.New("tracked inventory quantity is fixed")
	ErrSplitIncomplete = errors.New("both cash and upi amounts are required")
	ErrSplitMismatch   = errors.New("cash and upi amounts do not add up to the total")
)

// Session holds the derived edit state for one invoice's checkout modal:
// quantity overrides, price overrides, parent-group prices and price errors.
// It is created when editing begins and discarded on close or successful
// submit; it is never shared across invoices.
type Session struct {
	invoiceID string
	items     []domain.LineItem

	quantities   map[string]int             // line item id -> quantity override
	prices       map[string]decimal.Decimal // line item id -> price override
	parentPrices map[string]decimal.Decimal // product id -> explicitly edited parent price
	originals    map[string]decimal.Decimal // line item id -> effective price at load
	priceErrors  map[string]string          // product id or "item_<id>" -> violation message
}

func NewSession(invoiceID string, items []domain.LineItem) *Session {
	s := &Session{
		invoiceID:    invoiceID,
		quantities:   make(map[string]int),
		prices:       make(map[string]decimal.Decimal),
		parentPrices: make(map[string]decimal.Decimal),
		originals:    make(map[string]decimal.Decimal),
		priceErrors:  make(map[string]string),
	}
	s.items = cloneItems(items)
	for _, item := range s.items {
		s.originals[item.ID] = item.EffectivePrice()
	}
	return s
}

// Reload replaces the item set after a remote mutation succeeded and the
// invoice aggregate was refetched. Edits for items that survived are kept;
// entries for removed items are pruned and new items get their original
// price recorded.
func (s *Session) Reload(items []domain.LineItem) {
	s.items = cloneItems(items)

	known := make(map[string]bool, len(s.items))
	for _, item := range s.items {
		known[item.ID] = true
		if _, ok := s.originals[item.ID]; !ok {
			s.originals[item.ID] = item.EffectivePrice()
		}
	}
	for id := range s.quantities {
		if !known[id] {
			delete(s.quantities, id)
		}
	}
	for id := range s.prices {
		if !known[id] {
			delete(s.prices, id)
		}
	}
	for id := range s.originals {
		if !known[id] {
			delete(s.originals, id)
			delete(s.priceErrors, itemErrorKey(id))
		}
	}

	groups := make(map[string]bool, len(s.items))
	for _, item := range s.items {
		groups[item.ProductID] = true
	}
	for productID := range s.parentPrices {
		if !groups[productID] {
			delete(s.parentPrices, productID)
			delete(s.priceErrors, productID)
		}
	}
}

func (s *Session) InvoiceID() string { return s.invoiceID }

// Groups rebuilds the grouped view over the current item set.
func (s *Session) Groups() []domain.ProductGroup {
	return GroupByProduct(s.items)
}

// PriceErrors returns the outstanding validation messages keyed by product id
// (parent price violations) or "item_<id>" (item override violations).
func (s *Session) PriceErrors() map[string]string {
	out := make(map[string]string, len(s.priceErrors))
	for k, v := range s.priceErrors {
		out[k] = v
	}
	return out
}

func (s *Session) HasPriceErrors() bool { return len(s.priceErrors) > 0 }

// EffectiveQuantity is the quantity actually used in totals: the session
// override when present, else the stored quantity.
func (s *Session) EffectiveQuantity(itemID string) int {
	if qty, ok := s.quantities[itemID]; ok {
		return qty
	}
	if item := s.itemByID(itemID); item != nil {
		return item.Quantity
	}
	return 0
}

func (s *Session) itemByID(id string) *domain.LineItem {
	for i := range s.items {
		if s.items[i].ID == id {
			return &s.items[i]
		}
	}
	return nil
}

func (s *Session) groupFor(productID string) *domain.ProductGroup {
	groups := s.Groups()
	for i := range groups {
		if groups[i].ProductID == productID {
			return &groups[i]
		}
	}
	return nil
}

func itemErrorKey(itemID string) string { return "item_" + itemID }

func cloneItems(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, len(items))
	copy(out, items)
	return out
}
