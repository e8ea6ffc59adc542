// Package memory provides a seeded in-memory Repository for development and
// tests. It mirrors the postgres store's behavior closely enough that the
// service layer cannot tell them apart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/xid"
)

type Store struct {
	mu sync.RWMutex

	invoices map[string]domain.Invoice
	products map[string]domain.Product
	stock    map[string]int
	audits   []domain.AuditLog
	users    map[string]domain.UserAccount
	counters map[string]int
}

func NewStore() *Store {
	s := &Store{
		invoices: make(map[string]domain.Invoice),
		products: make(map[string]domain.Product),
		stock:    make(map[string]int),
		users:    make(map[string]domain.UserAccount),
		counters: make(map[string]int),
	}
	s.seed()
	return s
}

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}

func (s *Store) seed() {
	products := []struct {
		product domain.Product
		stock   int
	}{
		{domain.Product{ID: "prd_scrn6a", Barcode: "8901001000011", Name: "Display Combo Redmi Note 11", Category: "screens", PurchasePrice: dec("850"), SellingPrice: dec("1400"), TrackInventory: true, Active: true}, 6},
		{domain.Product{ID: "prd_scrnsa", Barcode: "8901001000028", Name: "Display Combo Samsung A12", Category: "screens", PurchasePrice: dec("920"), SellingPrice: dec("1550"), TrackInventory: true, Active: true}, 4},
		{domain.Product{ID: "prd_batvivo", Barcode: "8901001000035", Name: "Battery Vivo Y21", Category: "batteries", PurchasePrice: dec("280"), SellingPrice: dec("550"), TrackInventory: true, Active: true}, 12},
		{domain.Product{ID: "prd_tmpgls", Barcode: "8901001000042", Name: "Tempered Glass 6.5in", Category: "accessories", PurchasePrice: dec("18"), SellingPrice: dec("100"), CanGoBelowPurchase: true, Active: true}, 200},
		{domain.Product{ID: "prd_backcv", Barcode: "8901001000059", Name: "Back Cover Transparent", Category: "accessories", PurchasePrice: dec("25"), SellingPrice: dec("120"), CanGoBelowPurchase: true, Active: true}, 150},
		{domain.Product{ID: "prd_chgr20w", Barcode: "8901001000066", Name: "Charger 20W Type-C", Category: "accessories", PurchasePrice: dec("140"), SellingPrice: dec("350"), Active: true}, 40},
		{domain.Product{ID: "prd_svcscrn", Barcode: "", Name: "Screen Replacement Service", Category: "services", Active: true}, 0},
		{domain.Product{ID: "prd_svcsoft", Barcode: "", Name: "Software Flash Service", Category: "services", Active: true}, 0},
	}
	for _, p := range products {
		s.products[p.product.ID] = p.product
		s.stock[p.product.ID] = p.stock
	}

	now := time.Now().UTC()
	// Development-only credentials, hashed at startup.
	hashed, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	s.users["admin"] = domain.UserAccount{
		Username:  "admin",
		Password:  string(hashed),
		Role:      "admin",
		Active:    true,
		CreatedAt: now,
	}
	s.users["kavita"] = domain.UserAccount{
		Username:  "kavita",
		Password:  string(hashed),
		Role:      "cashier",
		Active:    true,
		CreatedAt: now,
	}
}

func (s *Store) CreateInvoice(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = xid.New("inv")
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	if inv.Items == nil {
		inv.Items = []domain.LineItem{}
	}
	if inv.Payments == nil {
		inv.Payments = []domain.Payment{}
	}
	s.invoices[inv.ID] = inv
	return cloneInvoice(inv), nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s", store.ErrNotFound, id)
	}
	return cloneInvoice(inv), nil
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceListFilter) ([]domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		if filter.StoreCode != "" && inv.StoreCode != filter.StoreCode {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		if filter.Type != "" && inv.InvoiceType != filter.Type {
			continue
		}
		if !filter.From.IsZero() && inv.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !inv.CreatedAt.Before(filter.To) {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.invoices[inv.ID]
	if !ok {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s", store.ErrNotFound, inv.ID)
	}
	inv.CreatedAt = current.CreatedAt
	inv.UpdatedAt = time.Now().UTC()
	s.invoices[inv.ID] = cloneInvoice(inv)
	return cloneInvoice(inv), nil
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[id]; !ok {
		return fmt.Errorf("%w: invoice %s", store.ErrNotFound, id)
	}
	delete(s.invoices, id)
	return nil
}

func (s *Store) NextInvoiceNumber(ctx context.Context, storeCode string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters[storeCode]++
	return fmt.Sprintf("INV-%s-%06d", storeCode, s.counters[storeCode]), nil
}

func (s *Store) AddLineItem(ctx context.Context, item domain.LineItem) (domain.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[item.InvoiceID]
	if !ok {
		return domain.LineItem{}, fmt.Errorf("%w: invoice %s", store.ErrNotFound, item.InvoiceID)
	}
	if item.ID == "" {
		item.ID = xid.New("li")
	}
	inv.Items = append(inv.Items, item)
	inv.UpdatedAt = time.Now().UTC()
	s.invoices[inv.ID] = inv
	return item, nil
}

func (s *Store) UpdateLineItem(ctx context.Context, item domain.LineItem) (domain.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[item.InvoiceID]
	if !ok {
		return domain.LineItem{}, fmt.Errorf("%w: invoice %s", store.ErrNotFound, item.InvoiceID)
	}
	for i := range inv.Items {
		if inv.Items[i].ID == item.ID {
			inv.Items[i] = item
			inv.UpdatedAt = time.Now().UTC()
			s.invoices[inv.ID] = inv
			return item, nil
		}
	}
	return domain.LineItem{}, fmt.Errorf("%w: item %s", store.ErrNotFound, item.ID)
}

func (s *Store) DeleteLineItem(ctx context.Context, invoiceID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invoiceID]
	if !ok {
		return fmt.Errorf("%w: invoice %s", store.ErrNotFound, invoiceID)
	}
	for i := range inv.Items {
		if inv.Items[i].ID == itemID {
			inv.Items = append(inv.Items[:i], inv.Items[i+1:]...)
			inv.UpdatedAt = time.Now().UTC()
			s.invoices[inv.ID] = inv
			return nil
		}
	}
	return fmt.Errorf("%w: item %s", store.ErrNotFound, itemID)
}

func (s *Store) FinalizeCheckout(ctx context.Context, p store.FinalizeParams) (domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[p.InvoiceID]
	if !ok {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s", store.ErrNotFound, p.InvoiceID)
	}
	// Work on a clone so a rejected checkout leaves the stored invoice intact.
	inv = cloneInvoice(inv)

	settled := make(map[string]domain.CheckoutItem, len(p.Items))
	for _, it := range p.Items {
		settled[it.ID] = it
	}
	for i := range inv.Items {
		st, ok := settled[inv.Items[i].ID]
		if !ok {
			continue
		}
		inv.Items[i].Quantity = st.Quantity
		if st.ManualUnitPrice.IsPositive() {
			inv.Items[i].ManualPrice = st.ManualUnitPrice
		} else if st.UnitPrice.IsPositive() && !st.UnitPrice.Equal(inv.Items[i].BasePrice) {
			inv.Items[i].ManualPrice = st.UnitPrice
		}
	}

	if p.DecrementStock {
		// Validate every decrement before touching stock levels: a checkout
		// that fails on one unit must not consume any of the others.
		needed := make(map[string]int)
		for _, it := range p.Items {
			item := findItem(inv.Items, it.ID)
			if item == nil {
				continue
			}
			product, ok := s.products[item.ProductID]
			if !ok || !product.TrackInventory {
				continue
			}
			needed[item.ProductID] += it.Quantity
		}
		for productID, qty := range needed {
			if s.stock[productID] < qty {
				return domain.Invoice{}, fmt.Errorf("%w: %s", store.ErrOutOfStock, s.products[productID].Name)
			}
		}
		for productID, qty := range needed {
			s.stock[productID] -= qty
		}
	}

	paid := decimal.Zero
	for _, pay := range p.Payments {
		if pay.ID == "" {
			pay.ID = xid.New("pay")
		}
		pay.InvoiceID = inv.ID
		if pay.CreatedAt.IsZero() {
			pay.CreatedAt = time.Now().UTC()
		}
		inv.Payments = append(inv.Payments, pay)
	}
	for _, pay := range inv.Payments {
		paid = paid.Add(pay.Amount)
	}

	inv.InvoiceType = p.InvoiceType
	inv.Status = p.Status
	inv.Subtotal = p.Subtotal
	inv.Total = p.Total
	inv.PaidAmount = paid
	inv.DueAmount = p.Total.Sub(paid)
	if inv.DueAmount.IsNegative() {
		inv.DueAmount = decimal.Zero
	}
	// A finalized invoice that still owes anything lands on partial, not paid.
	if inv.Status == domain.StatusPaid && inv.DueAmount.IsPositive() {
		inv.Status = domain.StatusPartial
	}
	inv.UpdatedAt = time.Now().UTC()
	s.invoices[inv.ID] = inv
	return cloneInvoice(inv), nil
}

func (s *Store) AppendPayment(ctx context.Context, payment domain.Payment) (domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[payment.InvoiceID]
	if !ok {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s", store.ErrNotFound, payment.InvoiceID)
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	inv.Payments = append(inv.Payments, payment)

	paid := decimal.Zero
	for _, pay := range inv.Payments {
		paid = paid.Add(pay.Amount)
	}
	inv.PaidAmount = paid
	inv.DueAmount = inv.Total.Sub(paid)
	if inv.DueAmount.IsNegative() {
		inv.DueAmount = decimal.Zero
	}
	if !inv.DueAmount.IsPositive() && (inv.Status == domain.StatusPartial || inv.Status == domain.StatusCredit) {
		inv.Status = domain.StatusPaid
	}
	inv.UpdatedAt = time.Now().UTC()
	s.invoices[inv.ID] = inv
	return cloneInvoice(inv), nil
}

func (s *Store) RestoreStock(ctx context.Context, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[invoiceID]
	if !ok {
		return fmt.Errorf("%w: invoice %s", store.ErrNotFound, invoiceID)
	}
	for _, item := range inv.Items {
		product, ok := s.products[item.ProductID]
		if !ok || !product.TrackInventory {
			continue
		}
		if item.Quantity > 0 {
			s.stock[item.ProductID] += item.Quantity
		}
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: product %s", store.ErrNotFound, id)
	}
	return product, nil
}

func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, product := range s.products {
		if product.Barcode != "" && product.Barcode == barcode && product.Active {
			return product, nil
		}
	}
	return domain.Product{}, fmt.Errorf("%w: barcode %s", store.ErrNotFound, barcode)
}

func (s *Store) SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Product, 0, limit)
	for _, product := range s.products {
		if !product.Active {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(product.Name), q) && product.Barcode != query {
			continue
		}
		out = append(out, product)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return fmt.Errorf("%w: product %s", store.ErrNotFound, productID)
	}
	next := s.stock[productID] + delta
	if next < 0 {
		return fmt.Errorf("%w: product %s", store.ErrOutOfStock, productID)
	}
	s.stock[productID] = next
	return nil
}

// StockLevel is a test hook; the HTTP surface never exposes raw stock.
func (s *Store) StockLevel(productID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stock[productID]
}

func (s *Store) GetDailySales(ctx context.Context, storeCode string, day time.Time) (domain.DailySalesReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	report := domain.DailySalesReport{
		StoreCode: storeCode,
		Date:      start.Format("2006-01-02"),
		GrossAmt:  decimal.Zero,
		PaidAmt:   decimal.Zero,
		DueAmt:    decimal.Zero,
	}
	byType := make(map[domain.InvoiceType]*domain.DailySalesRow)

	for _, inv := range s.invoices {
		if storeCode != "" && inv.StoreCode != storeCode {
			continue
		}
		if inv.Status == domain.StatusDraft || inv.Status == domain.StatusVoid {
			continue
		}
		if inv.CreatedAt.Before(start) || !inv.CreatedAt.Before(end) {
			continue
		}
		report.Invoices++
		report.GrossAmt = report.GrossAmt.Add(inv.Total)
		report.PaidAmt = report.PaidAmt.Add(inv.PaidAmount)
		report.DueAmt = report.DueAmt.Add(inv.DueAmount)

		row, ok := byType[inv.InvoiceType]
		if !ok {
			row = &domain.DailySalesRow{InvoiceType: inv.InvoiceType, Total: decimal.Zero, Paid: decimal.Zero}
			byType[inv.InvoiceType] = row
		}
		row.Invoices++
		row.Total = row.Total.Add(inv.Total)
		row.Paid = row.Paid.Add(inv.PaidAmount)
	}

	types := make([]domain.InvoiceType, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, t := range types {
		report.ByType = append(report.ByType, *byType[t])
	}
	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.audits = append(s.audits, entry)
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, storeCode string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AuditLog, 0, limit)
	for i := len(s.audits) - 1; i >= 0; i-- {
		if storeCode != "" && s.audits[i].StoreCode != storeCode {
			continue
		}
		out = append(out, s.audits[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, username string) (domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return domain.UserAccount{}, fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.Username]; ok {
		return fmt.Errorf("%w: user %s exists", store.ErrConflict, user.Username)
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username, hashed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	user.Password = hashed
	s.users[username] = user
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func findItem(items []domain.LineItem, id string) *domain.LineItem {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	out := inv
	out.Items = make([]domain.LineItem, len(inv.Items))
	copy(out.Items, inv.Items)
	out.Payments = make([]domain.Payment, len(inv.Payments))
	copy(out.Payments, inv.Payments)
	return out
}
