// Package postgres implements the Repository on PostgreSQL through
// database/sql with the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
	"dukaanpos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			barcode TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			purchase_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			selling_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			can_go_below_purchase BOOLEAN NOT NULL DEFAULT FALSE,
			track_inventory BOOLEAN NOT NULL DEFAULT FALSE,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			stock INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_barcode ON products (barcode) WHERE barcode <> ''`,
		`CREATE TABLE IF NOT EXISTS invoices (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL,
			store_code TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			invoice_type TEXT NOT NULL DEFAULT 'pending',
			customer_name TEXT NOT NULL DEFAULT '',
			customer_phone TEXT NOT NULL DEFAULT '',
			subtotal NUMERIC(12,2) NOT NULL DEFAULT 0,
			discount NUMERIC(12,2) NOT NULL DEFAULT 0,
			tax NUMERIC(12,2) NOT NULL DEFAULT 0,
			total NUMERIC(12,2) NOT NULL DEFAULT 0,
			paid_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			due_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_store_created ON invoices (store_code, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS invoice_items (
			id TEXT PRIMARY KEY,
			invoice_id TEXT NOT NULL REFERENCES invoices (id) ON DELETE CASCADE,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 1,
			base_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			manual_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			discount NUMERIC(12,2) NOT NULL DEFAULT 0,
			tax NUMERIC(12,2) NOT NULL DEFAULT 0,
			barcode_or_sku TEXT NOT NULL DEFAULT '',
			tracked_unit BOOLEAN NOT NULL DEFAULT FALSE,
			purchase_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			selling_price NUMERIC(12,2) NOT NULL DEFAULT 0,
			can_go_below_floor BOOLEAN NOT NULL DEFAULT FALSE,
			position BIGSERIAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_items (invoice_id)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id TEXT PRIMARY KEY,
			invoice_id TEXT NOT NULL REFERENCES invoices (id) ON DELETE CASCADE,
			method TEXT NOT NULL,
			amount NUMERIC(12,2) NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS invoice_counters (
			store_code TEXT PRIMARY KEY,
			counter BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			store_code TEXT NOT NULL DEFAULT '',
			actor_username TEXT NOT NULL DEFAULT '',
			actor_role TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL DEFAULT '',
			entity_id TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'cashier',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

const invoiceCols = `id, number, store_code, status, invoice_type, customer_name, customer_phone,
	subtotal, discount, tax, total, paid_amount, due_amount, created_at, updated_at`

const itemCols = `id, invoice_id, product_id, product_name, quantity, base_price, manual_price,
	discount, tax, barcode_or_sku, tracked_unit, purchase_price, selling_price, can_go_below_floor`

func (s *Store) CreateInvoice(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	if inv.ID == "" {
		inv.ID = xid.New("inv")
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, number, store_code, status, invoice_type, customer_name, customer_phone,
			subtotal, discount, tax, total, paid_amount, due_amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		inv.ID, inv.Number, inv.StoreCode, inv.Status, inv.InvoiceType, inv.CustomerName, inv.CustomerPhone,
		inv.Subtotal, inv.Discount, inv.Tax, inv.Total, inv.PaidAmount, inv.DueAmount, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	if inv.Items == nil {
		inv.Items = []domain.LineItem{}
	}
	if inv.Payments == nil {
		inv.Payments = []domain.Payment{}
	}
	return inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, id string) (domain.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s", store.ErrNotFound, id)
	}
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}

	inv.Items, err = s.listItems(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Payments, err = s.listPayments(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, filter domain.InvoiceListFilter) ([]domain.Invoice, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.StoreCode != "" {
		add("store_code = $%d", filter.StoreCode)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Type != "" {
		add("invoice_type = $%d", filter.Type)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}

	query := `SELECT ` + invoiceCols + ` FROM invoices`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	out := []domain.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("list invoices: %w", err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	for i := range out {
		out[i].Items, err = s.listItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Payments, err = s.listPayments(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv domain.Invoice) (domain.Invoice, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invoices SET status = $2, invoice_type = $3, customer_name = $4, customer_phone = $5,
			subtotal = $6, discount = $7, tax = $8, total = $9, paid_amount = $10, due_amount = $11,
			updated_at = NOW()
		WHERE id = $1`,
		inv.ID, inv.Status, inv.InvoiceType, inv.CustomerName, inv.CustomerPhone,
		inv.Subtotal, inv.Discount, inv.Tax, inv.Total, inv.PaidAmount, inv.DueAmount)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("update invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s", store.ErrNotFound, inv.ID)
	}
	return s.GetInvoice(ctx, inv.ID)
}

func (s *Store) DeleteInvoice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: invoice %s", store.ErrNotFound, id)
	}
	return nil
}

func (s *Store) NextInvoiceNumber(ctx context.Context, storeCode string) (string, error) {
	var counter int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO invoice_counters (store_code, counter) VALUES ($1, 1)
		ON CONFLICT (store_code) DO UPDATE SET counter = invoice_counters.counter + 1
		RETURNING counter`, storeCode).Scan(&counter)
	if err != nil {
		return "", fmt.Errorf("next invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%s-%06d", storeCode, counter), nil
}

func (s *Store) AddLineItem(ctx context.Context, item domain.LineItem) (domain.LineItem, error) {
	if item.ID == "" {
		item.ID = xid.New("li")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoice_items (id, invoice_id, product_id, product_name, quantity, base_price,
			manual_price, discount, tax, barcode_or_sku, tracked_unit, purchase_price, selling_price, can_go_below_floor)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		item.ID, item.InvoiceID, item.ProductID, item.ProductName, item.Quantity, item.BasePrice,
		item.ManualPrice, item.Discount, item.Tax, item.BarcodeOrSKU, item.TrackedUnit,
		item.PurchasePrice, item.SellingPrice, item.CanGoBelowFloor)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("add line item: %w", err)
	}
	s.touchInvoice(ctx, item.InvoiceID)
	return item, nil
}

func (s *Store) UpdateLineItem(ctx context.Context, item domain.LineItem) (domain.LineItem, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE invoice_items SET quantity = $3, manual_price = $4, discount = $5, tax = $6
		WHERE id = $1 AND invoice_id = $2`,
		item.ID, item.InvoiceID, item.Quantity, item.ManualPrice, item.Discount, item.Tax)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("update line item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.LineItem{}, fmt.Errorf("%w: item %s", store.ErrNotFound, item.ID)
	}
	s.touchInvoice(ctx, item.InvoiceID)
	return item, nil
}

func (s *Store) DeleteLineItem(ctx context.Context, invoiceID, itemID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invoice_items WHERE id = $1 AND invoice_id = $2`, itemID, invoiceID)
	if err != nil {
		return fmt.Errorf("delete line item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: item %s", store.ErrNotFound, itemID)
	}
	s.touchInvoice(ctx, invoiceID)
	return nil
}

func (s *Store) FinalizeCheckout(ctx context.Context, p store.FinalizeParams) (domain.Invoice, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("finalize checkout: %w", err)
	}
	defer tx.Rollback()

	for _, it := range p.Items {
		if _, err := tx.ExecContext(ctx, `
			UPDATE invoice_items SET quantity = $2,
				manual_price = CASE WHEN $3::numeric > 0 THEN $3 ELSE manual_price END
			WHERE id = $1 AND invoice_id = $4`,
			it.ID, it.Quantity, it.ManualUnitPrice, p.InvoiceID); err != nil {
			return domain.Invoice{}, fmt.Errorf("finalize checkout items: %w", err)
		}
	}

	if p.DecrementStock {
		rows, err := tx.QueryContext(ctx, `
			SELECT ii.id, ii.product_id, ii.quantity
			FROM invoice_items ii
			JOIN products p ON p.id = ii.product_id
			WHERE ii.invoice_id = $1 AND p.track_inventory`, p.InvoiceID)
		if err != nil {
			return domain.Invoice{}, fmt.Errorf("finalize checkout stock: %w", err)
		}
		type decrement struct {
			productID string
			qty       int
		}
		var decrements []decrement
		for rows.Next() {
			var itemID, productID string
			var qty int
			if err := rows.Scan(&itemID, &productID, &qty); err != nil {
				rows.Close()
				return domain.Invoice{}, fmt.Errorf("finalize checkout stock: %w", err)
			}
			if qty > 0 {
				decrements = append(decrements, decrement{productID, qty})
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return domain.Invoice{}, fmt.Errorf("finalize checkout stock: %w", err)
		}
		for _, d := range decrements {
			res, err := tx.ExecContext(ctx, `
				UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`,
				d.productID, d.qty)
			if err != nil {
				return domain.Invoice{}, fmt.Errorf("finalize checkout stock: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return domain.Invoice{}, fmt.Errorf("%w: product %s", store.ErrOutOfStock, d.productID)
			}
		}
	}

	for _, pay := range p.Payments {
		if pay.ID == "" {
			pay.ID = xid.New("pay")
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, invoice_id, method, amount, reference, notes)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			pay.ID, p.InvoiceID, pay.Method, pay.Amount, pay.Reference, pay.Notes); err != nil {
			return domain.Invoice{}, fmt.Errorf("finalize checkout payments: %w", err)
		}
	}

	var paid decimal.Decimal
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = $1`, p.InvoiceID).Scan(&paid); err != nil {
		return domain.Invoice{}, fmt.Errorf("finalize checkout paid: %w", err)
	}
	due := p.Total.Sub(paid)
	if due.IsNegative() {
		due = decimal.Zero
	}
	// A finalized invoice that still owes anything lands on partial, not paid.
	status := p.Status
	if status == domain.StatusPaid && due.IsPositive() {
		status = domain.StatusPartial
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE invoices SET invoice_type = $2, status = $3, subtotal = $4, total = $5,
			paid_amount = $6, due_amount = $7, updated_at = NOW()
		WHERE id = $1`,
		p.InvoiceID, p.InvoiceType, status, p.Subtotal, p.Total, paid, due)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("finalize checkout: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s", store.ErrNotFound, p.InvoiceID)
	}

	if err := tx.Commit(); err != nil {
		return domain.Invoice{}, fmt.Errorf("finalize checkout commit: %w", err)
	}
	return s.GetInvoice(ctx, p.InvoiceID)
}

func (s *Store) AppendPayment(ctx context.Context, payment domain.Payment) (domain.Invoice, error) {
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("append payment: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, method, amount, reference, notes)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		payment.ID, payment.InvoiceID, payment.Method, payment.Amount, payment.Reference, payment.Notes); err != nil {
		return domain.Invoice{}, fmt.Errorf("append payment: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE invoices SET
			paid_amount = sub.paid,
			due_amount = GREATEST(total - sub.paid, 0),
			status = CASE WHEN total - sub.paid <= 0 AND status IN ('partial', 'credit') THEN 'paid' ELSE status END,
			updated_at = NOW()
		FROM (SELECT COALESCE(SUM(amount), 0) AS paid FROM payments WHERE invoice_id = $1) sub
		WHERE id = $1`, payment.InvoiceID)
	if err != nil {
		return domain.Invoice{}, fmt.Errorf("append payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Invoice{}, fmt.Errorf("%w: invoice %s", store.ErrNotFound, payment.InvoiceID)
	}

	if err := tx.Commit(); err != nil {
		return domain.Invoice{}, fmt.Errorf("append payment commit: %w", err)
	}
	return s.GetInvoice(ctx, payment.InvoiceID)
}

func (s *Store) RestoreStock(ctx context.Context, invoiceID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE products p SET stock = p.stock + ii.quantity
		FROM invoice_items ii
		WHERE ii.invoice_id = $1 AND ii.product_id = p.id AND p.track_inventory AND ii.quantity > 0`, invoiceID)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return s.productBy(ctx, `id = $1`, id)
}

func (s *Store) FindProductByBarcode(ctx context.Context, barcode string) (domain.Product, error) {
	return s.productBy(ctx, `barcode = $1 AND barcode <> '' AND active`, barcode)
}

func (s *Store) productBy(ctx context.Context, cond string, arg any) (domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, barcode, name, category, purchase_price, selling_price,
			can_go_below_purchase, track_inventory, active
		FROM products WHERE `+cond, arg).Scan(
		&p.ID, &p.Barcode, &p.Name, &p.Category, &p.PurchasePrice, &p.SellingPrice,
		&p.CanGoBelowPurchase, &p.TrackInventory, &p.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: product %v", store.ErrNotFound, arg)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func (s *Store) SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, barcode, name, category, purchase_price, selling_price,
			can_go_below_purchase, track_inventory, active
		FROM products
		WHERE active AND (name ILIKE '%' || $1 || '%' OR barcode = $1)
		ORDER BY name LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	defer rows.Close()

	out := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Barcode, &p.Name, &p.Category, &p.PurchasePrice,
			&p.SellingPrice, &p.CanGoBelowPurchase, &p.TrackInventory, &p.Active); err != nil {
			return nil, fmt.Errorf("search products: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products SET stock = stock + $2 WHERE id = $1 AND stock + $2 >= 0`, productID, delta)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: product %s", store.ErrOutOfStock, productID)
	}
	return nil
}

func (s *Store) GetDailySales(ctx context.Context, storeCode string, day time.Time) (domain.DailySalesReport, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	report := domain.DailySalesReport{
		StoreCode: storeCode,
		Date:      start.Format("2006-01-02"),
		GrossAmt:  decimal.Zero,
		PaidAmt:   decimal.Zero,
		DueAmt:    decimal.Zero,
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT invoice_type, COUNT(*), COALESCE(SUM(total), 0), COALESCE(SUM(paid_amount), 0), COALESCE(SUM(due_amount), 0)
		FROM invoices
		WHERE ($1 = '' OR store_code = $1)
			AND status NOT IN ('draft', 'void')
			AND created_at >= $2 AND created_at < $3
		GROUP BY invoice_type
		ORDER BY invoice_type`, storeCode, start, end)
	if err != nil {
		return domain.DailySalesReport{}, fmt.Errorf("daily sales: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.DailySalesRow
		var due decimal.Decimal
		if err := rows.Scan(&row.InvoiceType, &row.Invoices, &row.Total, &row.Paid, &due); err != nil {
			return domain.DailySalesReport{}, fmt.Errorf("daily sales: %w", err)
		}
		report.ByType = append(report.ByType, row)
		report.Invoices += row.Invoices
		report.GrossAmt = report.GrossAmt.Add(row.Total)
		report.PaidAmt = report.PaidAmt.Add(row.Paid)
		report.DueAmt = report.DueAmt.Add(due)
	}
	return report, rows.Err()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("aud")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_code, actor_username, actor_role, action, entity_type, entity_id, detail)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		entry.ID, entry.StoreCode, entry.ActorUsername, entry.ActorRole, entry.Action,
		entry.EntityType, entry.EntityID, entry.Detail)
	if err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, storeCode string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, store_code, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE ($1 = '' OR store_code = $1)
		ORDER BY created_at DESC LIMIT $2`, storeCode, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	out := []domain.AuditLog{}
	for rows.Next() {
		var a domain.AuditLog
		if err := rows.Scan(&a.ID, &a.StoreCode, &a.ActorUsername, &a.ActorRole, &a.Action,
			&a.EntityType, &a.EntityID, &a.Detail, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("list audit logs: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetUser(ctx context.Context, username string) (domain.UserAccount, error) {
	var u domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT username, password, role, active, created_at FROM users WHERE username = $1`, username).
		Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserAccount{}, fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active) VALUES ($1,$2,$3,$4)
		ON CONFLICT (username) DO NOTHING`,
		user.Username, user.Password, user.Role, user.Active)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s exists", store.ErrConflict, user.Username)
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []domain.UserAccount{}
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username, hashed string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, hashed)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: user %s", store.ErrNotFound, username)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) touchInvoice(ctx context.Context, id string) {
	s.db.ExecContext(ctx, `UPDATE invoices SET updated_at = NOW() WHERE id = $1`, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row scanner) (domain.Invoice, error) {
	var inv domain.Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.StoreCode, &inv.Status, &inv.InvoiceType,
		&inv.CustomerName, &inv.CustomerPhone, &inv.Subtotal, &inv.Discount, &inv.Tax,
		&inv.Total, &inv.PaidAmount, &inv.DueAmount, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (s *Store) listItems(ctx context.Context, invoiceID string) ([]domain.LineItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemCols+` FROM invoice_items WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	out := []domain.LineItem{}
	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.ID, &li.InvoiceID, &li.ProductID, &li.ProductName, &li.Quantity,
			&li.BasePrice, &li.ManualPrice, &li.Discount, &li.Tax, &li.BarcodeOrSKU,
			&li.TrackedUnit, &li.PurchasePrice, &li.SellingPrice, &li.CanGoBelowFloor); err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		out = append(out, li)
	}
	return out, rows.Err()
}

func (s *Store) listPayments(ctx context.Context, invoiceID string) ([]domain.Payment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, method, amount, reference, notes, created_at
		FROM payments WHERE invoice_id = $1 ORDER BY created_at`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := []domain.Payment{}
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Method, &p.Amount, &p.Reference, &p.Notes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("list payments: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
