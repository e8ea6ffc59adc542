package domain

type InvoiceStatus string

const (
	StatusDraft   InvoiceStatus = "draft"
	StatusPaid    InvoiceStatus = "paid"
	StatusPartial InvoiceStatus = "partial"
	StatusCredit  InvoiceStatus = "credit"
	StatusVoid    InvoiceStatus = "void"
)

type InvoiceType string

const (
	TypeCash      InvoiceType = "cash"
	TypeUPI       InvoiceType = "upi"
	TypePending   InvoiceType = "pending"
	TypeMixed     InvoiceType = "mixed"
	TypeCredit    InvoiceType = "credit"
	TypeDefective InvoiceType = "defective"
)

// TypeBehavior captures how an invoice type behaves at checkout submit,
// so the submit path can branch off one table instead of scattered
// string comparisons.
type TypeBehavior struct {
	// Finalizes means the submit posts stock and ledger effects; a
	// non-finalizing submit (pending) is a price-only save that leaves
	// the invoice in draft.
	Finalizes bool
	// RequiresPrices means every active item must carry a positive
	// effective price before submit.
	RequiresPrices bool
	// RequiresSplit means cash and UPI amounts must both be entered and
	// reconcile against the computed total.
	RequiresSplit bool
}

var typeBehaviors = map[InvoiceType]TypeBehavior{
	TypeCash:    {Finalizes: true, RequiresPrices: true},
	TypeUPI:     {Finalizes: true, RequiresPrices: true},
	TypeMixed:   {Finalizes: true, RequiresPrices: true, RequiresSplit: true},
	TypePending: {},
}

// BehaviorFor returns the checkout behavior for an invoice type. The bool is
// false for types that cannot be submitted through checkout (credit and
// defective invoices are reached through their own actions).
func BehaviorFor(t InvoiceType) (TypeBehavior, bool) {
	behavior, ok := typeBehaviors[t]
	return behavior, ok
}

// Editable reports whether items and prices on the invoice may still change.
func (s InvoiceStatus) Editable() bool {
	return s == StatusDraft
}

// PermanentDeleteAllowed reports whether an invoice in this status may be
// removed outright. Anything else needs a forced soft-delete to void first.
func (s InvoiceStatus) PermanentDeleteAllowed() bool {
	return s == StatusDraft || s == StatusVoid
}
