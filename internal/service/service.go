// Package service implements the business rules over the store: invoice
// lifecycle, the interactive checkout session, split payments and the audit
// trail.
package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"dukaanpos/backend/internal/cache"
	"dukaanpos/backend/internal/checkout"
	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
)

const productCacheTTL = 15 * time.Minute

type actorKey struct{}

// WithActor stamps the authenticated actor onto the context so deep call
// sites can attribute audit entries without threading it explicitly.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(actorKey{}).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{Username: "system", Role: "system"}
}

type Service struct {
	repo   store.Repository
	cache  cache.ProductLookup
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*checkout.Session
}

func NewService(repo store.Repository, lookup cache.ProductLookup, logger *log.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    lookup,
		logger:   logger,
		sessions: make(map[string]*checkout.Session),
	}
}

func (s *Service) logAudit(ctx context.Context, storeCode, action, entityType, entityID, detail string) {
	actor := ActorFromContext(ctx)
	entry := domain.AuditLog{
		StoreCode:     storeCode,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Printf("[audit] %s %s/%s failed: %v", action, entityType, entityID, err)
	}
}

// Authenticate verifies credentials and returns the account on success.
func (s *Service) Authenticate(ctx context.Context, username, password string) (domain.UserAccount, error) {
	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: bad credentials", store.ErrValidation)
	}
	if !user.Active {
		return domain.UserAccount{}, fmt.Errorf("%w: account disabled", store.ErrValidation)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: bad credentials", store.ErrValidation)
	}
	return user, nil
}

func (s *Service) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (domain.CashierUser, error) {
	if req.Username == "" || len(req.Password) < 8 {
		return domain.CashierUser{}, fmt.Errorf("%w: username and a password of at least 8 characters are required", store.ErrValidation)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.CashierUser{}, fmt.Errorf("hash password: %w", err)
	}
	account := domain.UserAccount{
		Username: req.Username,
		Password: string(hashed),
		Role:     "cashier",
		Active:   true,
	}
	if err := s.repo.CreateUser(ctx, account); err != nil {
		return domain.CashierUser{}, err
	}
	s.logAudit(ctx, "", "user.create", "user", req.Username, "cashier account created")
	return domain.CashierUser{Username: req.Username, Role: "cashier", Active: true, CreatedAt: time.Now().UTC()}, nil
}

func (s *Service) ListCashiers(ctx context.Context) ([]domain.CashierUser, error) {
	accounts, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CashierUser, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, domain.CashierUser{
			Username:  account.Username,
			Role:      account.Role,
			Active:    account.Active,
			CreatedAt: account.CreatedAt,
		})
	}
	return out, nil
}

// ResetPassword replaces an account's password with a fresh hash.
func (s *Service) ResetPassword(ctx context.Context, username, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", store.ErrValidation)
	}
	if _, err := s.repo.GetUser(ctx, username); err != nil {
		return err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdateUserPassword(ctx, username, string(hashed)); err != nil {
		return err
	}
	s.logAudit(ctx, "", "user.password.reset", "user", username, "password reset")
	return nil
}

// AdjustStock applies a manual stock correction, such as a recount or a
// damaged-unit write-off.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) error {
	if delta == 0 {
		return fmt.Errorf("%w: delta must be non-zero", store.ErrValidation)
	}
	if err := s.repo.AdjustStock(ctx, productID, delta); err != nil {
		return err
	}
	s.logAudit(ctx, "", "product.stock.adjust", "product", productID, fmt.Sprintf("delta=%d", delta))
	return nil
}

func (s *Service) CreateInvoice(ctx context.Context, req domain.InvoiceCreateRequest) (domain.Invoice, error) {
	number, err := s.repo.NextInvoiceNumber(ctx, req.StoreCode)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv := domain.Invoice{
		Number:        number,
		StoreCode:     req.StoreCode,
		Status:        domain.StatusDraft,
		InvoiceType:   domain.TypePending,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Subtotal:      decimal.Zero,
		Total:         decimal.Zero,
		PaidAmount:    decimal.Zero,
		DueAmount:     decimal.Zero,
	}
	created, err := s.repo.CreateInvoice(ctx, inv)
	if err != nil {
		return domain.Invoice{}, err
	}
	s.logAudit(ctx, created.StoreCode, "invoice.create", "invoice", created.ID, created.Number)
	return created, nil
}

func (s *Service) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, filter domain.InvoiceListFilter) ([]domain.Invoice, error) {
	return s.repo.ListInvoices(ctx, filter)
}

// LookupProduct resolves a barcode through the cache, falling back to the
// store and then to a name search when the barcode is unknown.
func (s *Service) LookupProduct(ctx context.Context, barcode string) (domain.Product, error) {
	if product, ok := s.cache.Get(ctx, barcode); ok {
		return product, nil
	}
	product, err := s.repo.FindProductByBarcode(ctx, barcode)
	if err != nil {
		return domain.Product{}, err
	}
	s.cache.Set(ctx, barcode, product, productCacheTTL)
	return product, nil
}

func (s *Service) SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	return s.repo.SearchProducts(ctx, query, limit)
}

// AddItem appends a line item to a draft invoice, snapshotting the product's
// prices and floor rules so later product edits don't rewrite old invoices.
// Tracked-inventory products are added as one serialized unit per line.
func (s *Service) AddItem(ctx context.Context, invoiceID string, req domain.AddItemRequest) (domain.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if !inv.Status.Editable() {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s is %s", store.ErrInvalidInvoice, inv.ID, inv.Status)
	}

	var product domain.Product
	switch {
	case req.ProductID != "":
		product, err = s.repo.GetProduct(ctx, req.ProductID)
	case req.Barcode != "":
		product, err = s.LookupProduct(ctx, req.Barcode)
	default:
		return domain.Invoice{}, fmt.Errorf("%w: product_id or barcode is required", store.ErrValidation)
	}
	if err != nil {
		return domain.Invoice{}, err
	}
	if !product.Active {
		return domain.Invoice{}, fmt.Errorf("%w: product %s is inactive", store.ErrValidation, product.ID)
	}

	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}

	count := 1
	if product.TrackInventory {
		// One row per serialized unit; the requested quantity fans out.
		count = qty
		qty = 1
	}

	for i := 0; i < count; i++ {
		item := domain.LineItem{
			InvoiceID:       inv.ID,
			ProductID:       product.ID,
			ProductName:     product.Name,
			Quantity:        qty,
			BasePrice:       product.SellingPrice,
			ManualPrice:     req.UnitPrice,
			Discount:        req.Discount,
			Tax:             req.Tax,
			BarcodeOrSKU:    product.Barcode,
			TrackedUnit:     product.TrackInventory,
			PurchasePrice:   product.PurchasePrice,
			SellingPrice:    product.SellingPrice,
			CanGoBelowFloor: product.CanGoBelowPurchase,
		}
		if _, err := s.repo.AddLineItem(ctx, item); err != nil {
			return domain.Invoice{}, err
		}
	}

	updated, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	s.reloadSession(invoiceID, updated.Items)
	s.logAudit(ctx, inv.StoreCode, "invoice.item.add", "invoice", inv.ID, product.Name)
	return updated, nil
}

func (s *Service) UpdateItem(ctx context.Context, invoiceID, itemID string, req domain.UpdateItemRequest) (domain.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if !inv.Status.Editable() {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s is %s", store.ErrInvalidInvoice, inv.ID, inv.Status)
	}

	var item *domain.LineItem
	for i := range inv.Items {
		if inv.Items[i].ID == itemID {
			item = &inv.Items[i]
			break
		}
	}
	if item == nil {
		return domain.Invoice{}, fmt.Errorf("%w: item %s", store.ErrNotFound, itemID)
	}

	if req.Quantity != nil {
		if item.TrackedUnit {
			return domain.Invoice{}, fmt.Errorf("%w: tracked units have a fixed quantity", store.ErrValidation)
		}
		if *req.Quantity < 0 {
			return domain.Invoice{}, fmt.Errorf("%w: quantity cannot be negative", store.ErrValidation)
		}
		item.Quantity = *req.Quantity
	}
	if req.ManualUnitPrice != nil {
		if msg := checkout.FloorViolation(*req.ManualUnitPrice, *item); msg != "" {
			return domain.Invoice{}, fmt.Errorf("%w: %s", store.ErrValidation, msg)
		}
		item.ManualPrice = *req.ManualUnitPrice
	}

	if _, err := s.repo.UpdateLineItem(ctx, *item); err != nil {
		return domain.Invoice{}, err
	}
	updated, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	s.reloadSession(invoiceID, updated.Items)
	return updated, nil
}

func (s *Service) DeleteItem(ctx context.Context, invoiceID, itemID string) (domain.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if !inv.Status.Editable() {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s is %s", store.ErrInvalidInvoice, inv.ID, inv.Status)
	}
	if err := s.repo.DeleteLineItem(ctx, invoiceID, itemID); err != nil {
		return domain.Invoice{}, err
	}
	updated, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	s.reloadSession(invoiceID, updated.Items)
	s.logAudit(ctx, inv.StoreCode, "invoice.item.delete", "invoice", inv.ID, itemID)
	return updated, nil
}

// Checkout settles a draft invoice according to the chosen invoice type.
// Pending is a price-only save that keeps the draft; cash, upi and mixed
// finalize the sale, post stock and record payments.
func (s *Service) Checkout(ctx context.Context, invoiceID string, req domain.CheckoutRequest) (domain.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if !inv.Status.Editable() {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s is %s", store.ErrInvalidInvoice, inv.ID, inv.Status)
	}
	behavior, ok := domain.BehaviorFor(req.InvoiceType)
	if !ok {
		return domain.Invoice{}, fmt.Errorf("%w: invoice type %q cannot be submitted", store.ErrValidation, req.InvoiceType)
	}

	plan, err := s.planSubmit(invoiceID, inv.Items, req.Items)
	if err != nil {
		return domain.Invoice{}, err
	}
	if len(plan.active) == 0 {
		return domain.Invoice{}, fmt.Errorf("%w: at least one item with a positive quantity is required", store.ErrValidation)
	}
	if plan.firstError != "" {
		return domain.Invoice{}, fmt.Errorf("%w: %s", store.ErrValidation, plan.firstError)
	}
	if behavior.RequiresPrices && !plan.allPricesEntered {
		return domain.Invoice{}, fmt.Errorf("%w: enter a price for every item", store.ErrValidation)
	}

	total := plan.total

	params := store.FinalizeParams{
		InvoiceID:   invoiceID,
		InvoiceType: req.InvoiceType,
		Status:      domain.StatusDraft,
		Items:       plan.active,
		Subtotal:    total,
		Total:       total,
	}

	if behavior.Finalizes {
		params.Status = domain.StatusPaid
		params.DecrementStock = true
		switch {
		case behavior.RequiresSplit:
			if err := checkout.ValidateSplit(total, req.CashAmount, req.UPIAmount); err != nil {
				return domain.Invoice{}, fmt.Errorf("%w: %s", store.ErrValidation, err)
			}
			params.Payments = []domain.Payment{
				{Method: "cash", Amount: req.CashAmount},
				{Method: "upi", Amount: req.UPIAmount},
			}
		default:
			params.Payments = []domain.Payment{{Method: string(req.InvoiceType), Amount: total}}
		}
	}

	updated, err := s.repo.FinalizeCheckout(ctx, params)
	if err != nil {
		return domain.Invoice{}, err
	}

	if behavior.Finalizes {
		s.closeSession(invoiceID)
		s.logAudit(ctx, inv.StoreCode, "invoice.checkout", "invoice", inv.ID,
			fmt.Sprintf("%s %s", req.InvoiceType, total.StringFixed(2)))
	} else {
		s.reloadSession(invoiceID, updated.Items)
	}
	return updated, nil
}

// MarkCredit moves a draft into the credit ledger: the invoice keeps its
// draft status but becomes type credit with the full total due, and any
// stock reservation effects are lifted. Every item must carry a price so
// the due amount is real.
func (s *Service) MarkCredit(ctx context.Context, invoiceID string, req domain.MarkCreditRequest) (domain.Invoice, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, err
	}
	if !inv.Status.Editable() {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s is %s", store.ErrInvalidInvoice, inv.ID, inv.Status)
	}
	if inv.CustomerName == "" && inv.CustomerPhone == "" {
		return domain.Invoice{}, fmt.Errorf("%w: a customer is required for a credit sale", store.ErrValidation)
	}

	plan, err := s.planSubmit(invoiceID, inv.Items, req.Items)
	if err != nil {
		return domain.Invoice{}, err
	}
	if len(plan.active) == 0 {
		return domain.Invoice{}, fmt.Errorf("%w: at least one item with a positive quantity is required", store.ErrValidation)
	}
	if plan.firstError != "" {
		return domain.Invoice{}, fmt.Errorf("%w: %s", store.ErrValidation, plan.firstError)
	}
	if !plan.allPricesEntered {
		return domain.Invoice{}, fmt.Errorf("%w: enter a price for every item", store.ErrValidation)
	}

	total := plan.total
	updated, err := s.repo.FinalizeCheckout(ctx, store.FinalizeParams{
		InvoiceID:   invoiceID,
		InvoiceType: domain.TypeCredit,
		Status:      domain.StatusDraft,
		Items:       plan.active,
		Subtotal:    total,
		Total:       total,
	})
	if err != nil {
		return domain.Invoice{}, err
	}
	s.closeSession(invoiceID)
	s.logAudit(ctx, inv.StoreCode, "invoice.credit", "invoice", inv.ID, total.StringFixed(2))
	return updated, nil
}

// RecordPayment settles part or all of a credit or partial invoice.
func (s *Service) RecordPayment(ctx context.Context, invoiceID string, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.PaymentResponse{}, err
	}
	eligible := inv.Status == domain.StatusPartial || inv.Status == domain.StatusCredit ||
		(inv.InvoiceType == domain.TypeCredit && inv.Status == domain.StatusDraft)
	if !eligible {
		return domain.PaymentResponse{}, fmt.Errorf("%w: invoice %s has nothing due", store.ErrInvalidInvoice, inv.ID)
	}
	if !req.Amount.IsPositive() {
		return domain.PaymentResponse{}, fmt.Errorf("%w: payment amount must be positive", store.ErrValidation)
	}
	if req.Amount.GreaterThan(inv.DueAmount) {
		return domain.PaymentResponse{}, fmt.Errorf("%w: payment exceeds due amount ₹%s", store.ErrValidation, inv.DueAmount.StringFixed(2))
	}
	switch req.Method {
	case "cash", "upi":
	default:
		return domain.PaymentResponse{}, fmt.Errorf("%w: unsupported payment method %q", store.ErrValidation, req.Method)
	}

	// Move to partial before appending; the store flips partial to paid
	// once the due amount reaches zero.
	if inv.Status != domain.StatusPartial {
		inv.Status = domain.StatusPartial
		if _, err := s.repo.UpdateInvoice(ctx, inv); err != nil {
			return domain.PaymentResponse{}, err
		}
	}

	payment := domain.Payment{
		InvoiceID: invoiceID,
		Method:    req.Method,
		Amount:    req.Amount,
		Reference: req.Reference,
		Notes:     req.Notes,
	}
	updated, err := s.repo.AppendPayment(ctx, payment)
	if err != nil {
		return domain.PaymentResponse{}, err
	}

	var recorded domain.Payment
	if n := len(updated.Payments); n > 0 {
		recorded = updated.Payments[n-1]
	}
	s.logAudit(ctx, inv.StoreCode, "invoice.payment", "invoice", inv.ID,
		fmt.Sprintf("%s %s", req.Method, req.Amount.StringFixed(2)))
	return domain.PaymentResponse{Payment: recorded, Invoice: updated}, nil
}

// DeleteInvoice removes an invoice. Drafts and voided invoices are removed
// outright; anything else is force-voided (force is implied for finalized
// invoices), optionally putting tracked stock back on the shelf.
func (s *Service) DeleteInvoice(ctx context.Context, invoiceID string, req domain.DeleteInvoiceRequest) (domain.DeleteInvoiceResponse, error) {
	inv, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return domain.DeleteInvoiceResponse{}, err
	}

	if inv.Status.PermanentDeleteAllowed() {
		if err := s.repo.DeleteInvoice(ctx, invoiceID); err != nil {
			return domain.DeleteInvoiceResponse{}, err
		}
		s.closeSession(invoiceID)
		s.logAudit(ctx, inv.StoreCode, "invoice.delete", "invoice", inv.ID, string(inv.Status))
		return domain.DeleteInvoiceResponse{InvoiceID: invoiceID, Removed: true}, nil
	}

	if req.RestoreStock {
		if err := s.repo.RestoreStock(ctx, invoiceID); err != nil {
			return domain.DeleteInvoiceResponse{}, err
		}
	}
	inv.Status = domain.StatusVoid
	if _, err := s.repo.UpdateInvoice(ctx, inv); err != nil {
		return domain.DeleteInvoiceResponse{}, err
	}
	s.closeSession(invoiceID)
	s.logAudit(ctx, inv.StoreCode, "invoice.void", "invoice", inv.ID,
		fmt.Sprintf("restore_stock=%t", req.RestoreStock))
	return domain.DeleteInvoiceResponse{InvoiceID: invoiceID, Voided: true}, nil
}

func (s *Service) DailySales(ctx context.Context, storeCode string, day time.Time) (domain.DailySalesReport, error) {
	return s.repo.GetDailySales(ctx, storeCode, day)
}

func (s *Service) AuditLogs(ctx context.Context, storeCode string, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, storeCode, limit)
}

func (s *Service) Ping(ctx context.Context) error { return s.repo.Ping(ctx) }

// applyCheckoutItems folds the submitted item states into the session,
// validating each edit the same way the interactive path does.
func applyCheckoutItems(sess *checkout.Session, current []domain.LineItem, items []domain.CheckoutItem) error {
	byID := make(map[string]domain.LineItem, len(current))
	for _, item := range current {
		byID[item.ID] = item
	}
	for _, it := range items {
		item, ok := byID[it.ID]
		if !ok {
			return fmt.Errorf("%w: item %s", store.ErrNotFound, it.ID)
		}
		if it.Quantity != item.Quantity {
			if err := sess.SetItemQuantity(it.ID, it.Quantity); err != nil {
				return fmt.Errorf("%w: %s", store.ErrValidation, err)
			}
		}
		price := it.ManualUnitPrice
		if !price.IsPositive() {
			price = it.UnitPrice
		}
		if price.IsPositive() && !price.Equal(item.EffectivePrice()) {
			if err := sess.SetItemPrice(it.ID, price); err != nil {
				return fmt.Errorf("%w: %s", store.ErrValidation, err)
			}
		}
	}
	return nil
}

func firstError(errs map[string]string) string {
	for _, msg := range errs {
		return msg
	}
	return ""
}
