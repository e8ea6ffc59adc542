package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID                 string          `json:"id"`
	Barcode            string          `json:"barcode"`
	Name               string          `json:"name"`
	Category           string          `json:"category"`
	PurchasePrice      decimal.Decimal `json:"purchase_price"`
	SellingPrice       decimal.Decimal `json:"selling_price"`
	CanGoBelowPurchase bool            `json:"can_go_below_purchase_price"`
	TrackInventory     bool            `json:"track_inventory"`
	Active             bool            `json:"active"`
}

// LineItem is one inventory unit or counted quantity slice on an invoice.
// A zero ManualPrice means no manual price has been entered yet; the same
// convention applies to SellingPrice on the product snapshot fields.
type LineItem struct {
	ID              string          `json:"id"`
	InvoiceID       string          `json:"invoice_id"`
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	Quantity        int             `json:"quantity"`
	BasePrice       decimal.Decimal `json:"base_price"`
	ManualPrice     decimal.Decimal `json:"manual_price"`
	Discount        decimal.Decimal `json:"discount"`
	Tax             decimal.Decimal `json:"tax"`
	BarcodeOrSKU    string          `json:"barcode_or_sku"`
	TrackedUnit     bool            `json:"tracked_unit"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	CanGoBelowFloor bool            `json:"can_go_below_floor"`
}

// EffectivePrice is the price a line item carries before any checkout-session
// override: the manual price when one has been entered, else the base price.
func (li LineItem) EffectivePrice() decimal.Decimal {
	if li.ManualPrice.IsPositive() {
		return li.ManualPrice
	}
	return li.BasePrice
}

// FloorPrice is the minimum allowed sale price: the selling price when set,
// else the purchase price. Zero means no floor applies.
func (li LineItem) FloorPrice() decimal.Decimal {
	if li.SellingPrice.IsPositive() {
		return li.SellingPrice
	}
	return li.PurchasePrice
}

// FloorSource names which product price the floor came from, for error messages.
func (li LineItem) FloorSource() string {
	if li.SellingPrice.IsPositive() {
		return "selling"
	}
	return "purchase"
}

// ProductGroup is a derived view: all line items on an invoice sharing a
// product identity, presented as one editable row. It is recomputed from the
// line items on every edit and is never a source of truth.
type ProductGroup struct {
	ProductID     string     `json:"product_id"`
	ProductName   string     `json:"product_name"`
	Items         []LineItem `json:"items"`
	TotalQuantity int        `json:"total_quantity"`
	Tracked       bool       `json:"tracked"`
}

type Payment struct {
	ID        string          `json:"id"`
	InvoiceID string          `json:"invoice_id"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Invoice struct {
	ID            string          `json:"id"`
	Number        string          `json:"number"`
	StoreCode     string          `json:"store_code"`
	Status        InvoiceStatus   `json:"status"`
	InvoiceType   InvoiceType     `json:"invoice_type"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Items         []LineItem      `json:"items"`
	Payments      []Payment       `json:"payments"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	DueAmount     decimal.Decimal `json:"due_amount"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type InvoiceCreateRequest struct {
	StoreCode     string `json:"store_code"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

type AddItemRequest struct {
	ProductID string          `json:"product_id"`
	Barcode   string          `json:"barcode"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Tax       decimal.Decimal `json:"tax"`
}

type UpdateItemRequest struct {
	Quantity        *int             `json:"quantity,omitempty"`
	ManualUnitPrice *decimal.Decimal `json:"manual_unit_price,omitempty"`
}

// CheckoutItem is the per-item state the checkout modal submits: the
// quantity and prices the cashier settled on during the edit session.
type CheckoutItem struct {
	ID              string          `json:"id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	ManualUnitPrice decimal.Decimal `json:"manual_unit_price"`
	Discount        decimal.Decimal `json:"discount"`
	Tax             decimal.Decimal `json:"tax"`
}

// ItemView is one line item as shown inside a checkout group, with session
// quantity and price overrides folded in.
type ItemView struct {
	ID         string          `json:"id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Overridden bool            `json:"overridden"`
	Tracked    bool            `json:"tracked"`
}

// GroupView is one editable row of the checkout modal.
type GroupView struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	ParentPrice   decimal.Decimal `json:"parent_price"`
	TotalQuantity int             `json:"total_quantity"`
	Tracked       bool            `json:"tracked"`
	Items         []ItemView      `json:"items"`
}

// CheckoutState is the full derived state of an open checkout session,
// returned after every edit so the client never computes money itself.
type CheckoutState struct {
	InvoiceID        string            `json:"invoice_id"`
	Groups           []GroupView       `json:"groups"`
	Total            decimal.Decimal   `json:"total"`
	AllPricesEntered bool              `json:"all_prices_entered"`
	PriceErrors      map[string]string `json:"price_errors"`
}

type CheckoutRequest struct {
	InvoiceType InvoiceType     `json:"invoice_type"`
	Items       []CheckoutItem  `json:"items"`
	CashAmount  decimal.Decimal `json:"cash_amount"`
	UPIAmount   decimal.Decimal `json:"upi_amount"`
}

type CheckoutResponse struct {
	Invoice Invoice `json:"invoice"`
}

type MarkCreditRequest struct {
	Items []CheckoutItem `json:"items"`
}

type PaymentRequest struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
	Notes     string          `json:"notes,omitempty"`
}

type PaymentResponse struct {
	Payment Payment `json:"payment"`
	Invoice Invoice `json:"invoice"`
}

type DeleteInvoiceRequest struct {
	Force        bool   `json:"force"`
	RestoreStock bool   `json:"restore_stock"`
	ManagerPIN   string `json:"manager_pin"`
}

type DeleteInvoiceResponse struct {
	InvoiceID string `json:"invoice_id"`
	Voided    bool   `json:"voided"`
	Removed   bool   `json:"removed"`
}

type InvoiceListFilter struct {
	StoreCode string
	Status    InvoiceStatus
	Type      InvoiceType
	From      time.Time
	To        time.Time
	Limit     int
}

type DailySalesRow struct {
	InvoiceType InvoiceType     `json:"invoice_type"`
	Invoices    int64           `json:"invoices"`
	Total       decimal.Decimal `json:"total"`
	Paid        decimal.Decimal `json:"paid"`
}

type DailySalesReport struct {
	StoreCode string          `json:"store_code"`
	Date      string          `json:"date"`
	Invoices  int64           `json:"invoices"`
	GrossAmt  decimal.Decimal `json:"gross_amount"`
	PaidAmt   decimal.Decimal `json:"paid_amount"`
	DueAmt    decimal.Decimal `json:"due_amount"`
	ByType    []DailySalesRow `json:"by_type"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	StoreCode     string    `json:"store_code"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type PasswordResetRequest struct {
	Password string `json:"password"`
}

type StockAdjustRequest struct {
	Delta int `json:"delta"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}
