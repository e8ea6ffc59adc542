package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInvoice = errors.New("invalid invoice")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("conflict")
	ErrOutOfStock     = errors.New("insufficient stock")
)

// FinalizeParams carries everything the repository needs to atomically post
// a checkout: the settled item states, computed totals and the payments that
// settle them.
type FinalizeParams struct {
	InvoiceID      string
	InvoiceType    domain.InvoiceType
	Status         domain.InvoiceStatus
	Items          []domain.CheckoutItem
	Subtotal       decimal.Decimal
	Total          decimal.Decimal
	Payments       []domain.Payment
	DecrementStock bool
}

// Repository is the persistence boundary. Both the in-memory seed store and
// the postgres store implement it.
type Repository interface {
	// Invoices.
	CreateInvoice(ctx context.Context, inv domain.Invoice) (domain.Invoice, error)
	GetInvoice(ctx context.Context, id string) (domain.Invoice, error)
	ListInvoices(ctx context.Context, filter domain.InvoiceListFilter) ([]domain.Invoice, error)
	UpdateInvoice(ctx context.Context, inv domain.Invoice) (domain.Invoice, error)
	DeleteInvoice(ctx context.Context, id string) error
	NextInvoiceNumber(ctx context.Context, storeCode string) (string, error)

	// Line items.
	AddLineItem(ctx context.Context, item domain.LineItem) (domain.LineItem, error)
	UpdateLineItem(ctx context.Context, item domain.LineItem) (domain.LineItem, error)
	DeleteLineItem(ctx context.Context, invoiceID, itemID string) error

	// Checkout effects.
	FinalizeCheckout(ctx context.Context, p FinalizeParams) (domain.Invoice, error)
	AppendPayment(ctx context.Context, payment domain.Payment) (domain.Invoice, error)
	RestoreStock(ctx context.Context, invoiceID string) error

	// Products.
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	FindProductByBarcode(ctx context.Context, barcode string) (domain.Product, error)
	SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error)
	AdjustStock(ctx context.Context, productID string, delta int) error

	// Reporting and audit.
	GetDailySales(ctx context.Context, storeCode string, day time.Time) (domain.DailySalesReport, error)
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeCode string, limit int) ([]domain.AuditLog, error)

	// Users.
	GetUser(ctx context.Context, username string) (domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username, hashed string) error

	Ping(ctx context.Context) error
	Close() error
}
