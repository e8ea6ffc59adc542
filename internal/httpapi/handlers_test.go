package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dukaanpos/backend/internal/cache"
	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/service"
	"dukaanpos/backend/internal/store/memory"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	svc := service.NewService(memory.NewStore(), cache.Noop{}, logger)
	auth := NewAuth("test-secret", "4321", time.Hour, logger)
	return NewServer(svc, auth, logger).Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.ContentLength = int64(buf.Len())
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, username, password string) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/login", "", domain.LoginRequest{Username: username, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body)
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func TestLoginAndAuthRequired(t *testing.T) {
	h := newTestServer(t)

	if rec := doJSON(t, h, http.MethodGet, "/api/invoices", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/api/invoices", "not-a-token", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}

	token := login(t, h, "admin", "admin123")
	if rec := doJSON(t, h, http.MethodGet, "/api/invoices", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d %s", rec.Code, rec.Body)
	}
}

func TestLoginRateLimited(t *testing.T) {
	h := newTestServer(t)
	bad := domain.LoginRequest{Username: "admin", Password: "wrong"}
	for i := 0; i < 5; i++ {
		if rec := doJSON(t, h, http.MethodPost, "/api/login", "", bad); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i, rec.Code)
		}
	}
	if rec := doJSON(t, h, http.MethodPost, "/api/login", "", bad); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", rec.Code)
	}
}

func TestInvoiceCheckoutFlow(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "kavita", "admin123")

	rec := doJSON(t, h, http.MethodPost, "/api/invoices", token, domain.InvoiceCreateRequest{StoreCode: "MAIN", CustomerName: "Ajay"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invoice: %d %s", rec.Code, rec.Body)
	}
	var inv domain.Invoice
	if err := json.Unmarshal(rec.Body.Bytes(), &inv); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/invoices/"+inv.ID+"/items", token,
		domain.AddItemRequest{ProductID: "prd_tmpgls", Quantity: 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: %d %s", rec.Code, rec.Body)
	}

	// Open a session, reprice the group, verify the derived total.
	rec = doJSON(t, h, http.MethodPost, "/api/invoices/"+inv.ID+"/session", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("open session: %d %s", rec.Code, rec.Body)
	}
	rec = doJSON(t, h, http.MethodPost, "/api/invoices/"+inv.ID+"/session/group-price", token,
		map[string]any{"product_id": "prd_tmpgls", "price": "90"})
	if rec.Code != http.StatusOK {
		t.Fatalf("group price: %d %s", rec.Code, rec.Body)
	}
	var state domain.CheckoutState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.Total.String() != "270" {
		t.Fatalf("expected session total 270, got %s", state.Total)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/invoices/"+inv.ID+"/checkout", token,
		domain.CheckoutRequest{InvoiceType: domain.TypeCash})
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body)
	}
	var resp domain.CheckoutResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode checkout response: %v", err)
	}
	if resp.Invoice.Status != domain.StatusPaid {
		t.Fatalf("expected paid invoice, got %s", resp.Invoice.Status)
	}
	if resp.Invoice.Total.String() != "270" {
		t.Fatalf("expected total 270, got %s", resp.Invoice.Total)
	}
}

func TestMixedCheckoutSplitMismatchIs400(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "admin", "admin123")

	rec := doJSON(t, h, http.MethodPost, "/api/invoices", token, domain.InvoiceCreateRequest{StoreCode: "MAIN"})
	var inv domain.Invoice
	json.Unmarshal(rec.Body.Bytes(), &inv)
	doJSON(t, h, http.MethodPost, "/api/invoices/"+inv.ID+"/items", token,
		domain.AddItemRequest{ProductID: "prd_tmpgls", Quantity: 10})

	rec = doJSON(t, h, http.MethodPost, "/api/invoices/"+inv.ID+"/checkout", token,
		map[string]any{"invoice_type": "mixed", "cash_amount": "400", "upi_amount": "500"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on split mismatch, got %d %s", rec.Code, rec.Body)
	}
}

func TestDeleteInvoiceManagerPINGate(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "admin", "admin123")

	rec := doJSON(t, h, http.MethodPost, "/api/invoices", token, domain.InvoiceCreateRequest{StoreCode: "MAIN"})
	var inv domain.Invoice
	json.Unmarshal(rec.Body.Bytes(), &inv)
	doJSON(t, h, http.MethodPost, "/api/invoices/"+inv.ID+"/items", token,
		domain.AddItemRequest{ProductID: "prd_tmpgls", Quantity: 1})
	rec = doJSON(t, h, http.MethodPost, "/api/invoices/"+inv.ID+"/checkout", token,
		domain.CheckoutRequest{InvoiceType: domain.TypeCash})
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/invoices/"+inv.ID, token,
		domain.DeleteInvoiceRequest{Force: true, ManagerPIN: "0000"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong PIN, got %d %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodDelete, "/api/invoices/"+inv.ID, token,
		domain.DeleteInvoiceRequest{Force: true, RestoreStock: true, ManagerPIN: "4321"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with correct PIN, got %d %s", rec.Code, rec.Body)
	}
	var resp domain.DeleteInvoiceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode delete response: %v", err)
	}
	if !resp.Voided {
		t.Fatalf("expected voided invoice, got %+v", resp)
	}
}

func TestUnknownInvoiceIs404(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "admin", "admin123")
	if rec := doJSON(t, h, http.MethodGet, "/api/invoices/inv_missing", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestAuditRequiresAdminRole(t *testing.T) {
	h := newTestServer(t)

	cashier := login(t, h, "kavita", "admin123")
	if rec := doJSON(t, h, http.MethodGet, "/api/audit", cashier, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	admin := login(t, h, "admin", "admin123")
	if rec := doJSON(t, h, http.MethodGet, "/api/audit", admin, nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d %s", rec.Code, rec.Body)
	}
}

func TestBarcodeLookup(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "admin", "admin123")

	rec := doJSON(t, h, http.MethodGet, "/api/products/barcode/8901001000042", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("barcode lookup: %d %s", rec.Code, rec.Body)
	}
	var product domain.Product
	if err := json.Unmarshal(rec.Body.Bytes(), &product); err != nil {
		t.Fatalf("decode product: %v", err)
	}
	if product.ID != "prd_tmpgls" {
		t.Fatalf("expected prd_tmpgls, got %s", product.ID)
	}

	if rec := doJSON(t, h, http.MethodGet, "/api/products/barcode/0000000000000", token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown barcode, got %d", rec.Code)
	}
}

func TestCashierAdminEndpoints(t *testing.T) {
	h := newTestServer(t)

	cashier := login(t, h, "kavita", "admin123")
	if rec := doJSON(t, h, http.MethodGet, "/api/cashiers", cashier, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	admin := login(t, h, "admin", "admin123")
	rec := doJSON(t, h, http.MethodGet, "/api/cashiers", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list cashiers: %d %s", rec.Code, rec.Body)
	}
	var listing struct {
		Cashiers []domain.CashierUser `json:"cashiers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(listing.Cashiers) != 2 {
		t.Fatalf("expected 2 seeded accounts, got %d", len(listing.Cashiers))
	}

	rec = doJSON(t, h, http.MethodPost, "/api/cashiers/kavita/password", admin,
		domain.PasswordResetRequest{Password: "freshsecret"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reset password: %d %s", rec.Code, rec.Body)
	}
	login(t, h, "kavita", "freshsecret")
}

func TestAdjustStockEndpoint(t *testing.T) {
	h := newTestServer(t)

	cashier := login(t, h, "kavita", "admin123")
	rec := doJSON(t, h, http.MethodPost, "/api/products/prd_batvivo/stock", cashier,
		domain.StockAdjustRequest{Delta: 5})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cashier, got %d", rec.Code)
	}

	admin := login(t, h, "admin", "admin123")
	rec = doJSON(t, h, http.MethodPost, "/api/products/prd_batvivo/stock", admin,
		domain.StockAdjustRequest{Delta: 5})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("adjust stock: %d %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodPost, "/api/products/prd_batvivo/stock", admin,
		domain.StockAdjustRequest{Delta: -1000})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on overdraw, got %d %s", rec.Code, rec.Body)
	}
}

func TestRejectsUnknownJSONFields(t *testing.T) {
	h := newTestServer(t)
	token := login(t, h, "admin", "admin123")
	rec := doJSON(t, h, http.MethodPost, "/api/invoices", token, map[string]any{"store_code": "MAIN", "surprise": true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on unknown field, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := newTestServer(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("missing nosniff header, got %q", got)
	}
}
