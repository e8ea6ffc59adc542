// Package httpapi exposes the counter API over plain net/http.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/service"
	"dukaanpos/backend/internal/store"
)

type Server struct {
	svc    *service.Service
	auth   *Auth
	logger *log.Logger
}

func NewServer(svc *service.Service, auth *Auth, logger *log.Logger) *Server {
	return &Server{svc: svc, auth: auth, logger: logger}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	mux.HandleFunc("POST /api/invoices", s.auth.requireAuth(s.handleCreateInvoice))
	mux.HandleFunc("GET /api/invoices", s.auth.requireAuth(s.handleListInvoices))
	mux.HandleFunc("GET /api/invoices/{id}", s.auth.requireAuth(s.handleGetInvoice))
	mux.HandleFunc("DELETE /api/invoices/{id}", s.auth.requireAuth(s.handleDeleteInvoice))

	mux.HandleFunc("POST /api/invoices/{id}/items", s.auth.requireAuth(s.handleAddItem))
	mux.HandleFunc("PATCH /api/invoices/{id}/items/{itemID}", s.auth.requireAuth(s.handleUpdateItem))
	mux.HandleFunc("DELETE /api/invoices/{id}/items/{itemID}", s.auth.requireAuth(s.handleDeleteItem))

	mux.HandleFunc("POST /api/invoices/{id}/checkout", s.auth.requireAuth(s.handleCheckout))
	mux.HandleFunc("POST /api/invoices/{id}/credit", s.auth.requireAuth(s.handleMarkCredit))
	mux.HandleFunc("POST /api/invoices/{id}/payments", s.auth.requireAuth(s.handleRecordPayment))

	mux.HandleFunc("POST /api/invoices/{id}/session", s.auth.requireAuth(s.handleOpenSession))
	mux.HandleFunc("GET /api/invoices/{id}/session", s.auth.requireAuth(s.handleSessionState))
	mux.HandleFunc("DELETE /api/invoices/{id}/session", s.auth.requireAuth(s.handleCloseSession))
	mux.HandleFunc("POST /api/invoices/{id}/session/group-price", s.auth.requireAuth(s.handleGroupPrice))
	mux.HandleFunc("POST /api/invoices/{id}/session/item-price", s.auth.requireAuth(s.handleItemPrice))
	mux.HandleFunc("DELETE /api/invoices/{id}/session/item-price/{itemID}", s.auth.requireAuth(s.handleClearItemPrice))
	mux.HandleFunc("POST /api/invoices/{id}/session/group-quantity", s.auth.requireAuth(s.handleGroupQuantity))
	mux.HandleFunc("POST /api/invoices/{id}/session/split", s.auth.requireAuth(s.handleSplitCounterpart))

	mux.HandleFunc("GET /api/products", s.auth.requireAuth(s.handleSearchProducts))
	mux.HandleFunc("GET /api/products/barcode/{code}", s.auth.requireAuth(s.handleBarcodeLookup))
	mux.HandleFunc("POST /api/products/{id}/stock", s.auth.requireRole("admin", s.handleAdjustStock))

	mux.HandleFunc("GET /api/reports/daily", s.auth.requireAuth(s.handleDailySales))
	mux.HandleFunc("GET /api/audit", s.auth.requireRole("admin", s.handleAuditLogs))
	mux.HandleFunc("GET /api/cashiers", s.auth.requireRole("admin", s.handleListCashiers))
	mux.HandleFunc("POST /api/cashiers", s.auth.requireRole("admin", s.handleCreateCashier))
	mux.HandleFunc("POST /api/cashiers/{username}/password", s.auth.requireRole("admin", s.handleResetPassword))

	return securityHeaders(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.auth.allowLogin(r) {
		writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.svc.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	token, expires, err := s.auth.IssueToken(user)
	if err != nil {
		s.logger.Printf("[http] issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expires.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req domain.InvoiceCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := s.svc.CreateInvoice(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.InvoiceListFilter{
		StoreCode: q.Get("store"),
		Status:    domain.InvoiceStatus(q.Get("status")),
		Type:      domain.InvoiceType(q.Get("type")),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("from"); v != "" {
		if ts, err := time.Parse("2006-01-02", v); err == nil {
			filter.From = ts
		}
	}
	if v := q.Get("to"); v != "" {
		if ts, err := time.Parse("2006-01-02", v); err == nil {
			filter.To = ts
		}
	}
	invoices, err := s.svc.ListInvoices(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.svc.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	var req domain.DeleteInvoiceRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	inv, err := s.svc.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	// Forcing a finalized invoice out of the books needs the manager PIN.
	if !inv.Status.PermanentDeleteAllowed() && !s.auth.checkManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, "manager PIN required")
		return
	}
	resp, err := s.svc.DeleteInvoice(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req domain.AddItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := s.svc.AddItem(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := s.svc.UpdateItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	inv, err := s.svc.DeleteItem(r.Context(), r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req domain.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := s.svc.Checkout(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.CheckoutResponse{Invoice: inv})
}

func (s *Server) handleMarkCredit(w http.ResponseWriter, r *http.Request) {
	var req domain.MarkCreditRequest
	if r.ContentLength > 0 && !decodeJSON(w, r, &req) {
		return
	}
	inv, err := s.svc.MarkCredit(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.CheckoutResponse{Invoice: inv})
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := s.svc.RecordPayment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.OpenCheckout(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.CheckoutSessionState(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	s.svc.CloseCheckout(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

type groupPriceRequest struct {
	ProductID string          `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
}

func (s *Server) handleGroupPrice(w http.ResponseWriter, r *http.Request) {
	var req groupPriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	state, err := s.svc.SetGroupPrice(r.Context(), r.PathValue("id"), req.ProductID, req.Price)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type itemPriceRequest struct {
	ItemID string          `json:"item_id"`
	Price  decimal.Decimal `json:"price"`
}

func (s *Server) handleItemPrice(w http.ResponseWriter, r *http.Request) {
	var req itemPriceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	state, err := s.svc.SetItemPrice(r.Context(), r.PathValue("id"), req.ItemID, req.Price)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleClearItemPrice(w http.ResponseWriter, r *http.Request) {
	state, err := s.svc.ClearItemPrice(r.Context(), r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type groupQuantityRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity,omitempty"`
	Delta     *int   `json:"delta,omitempty"`
}

func (s *Server) handleGroupQuantity(w http.ResponseWriter, r *http.Request) {
	var req groupQuantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var (
		state domain.CheckoutState
		err   error
	)
	switch {
	case req.Quantity != nil:
		state, err = s.svc.SetGroupQuantity(r.Context(), r.PathValue("id"), req.ProductID, *req.Quantity)
	case req.Delta != nil:
		state, err = s.svc.StepGroupQuantity(r.Context(), r.PathValue("id"), req.ProductID, *req.Delta)
	default:
		writeError(w, http.StatusBadRequest, "quantity or delta is required")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type splitRequest struct {
	EditedAmount decimal.Decimal `json:"edited_amount"`
}

func (s *Server) handleSplitCounterpart(w http.ResponseWriter, r *http.Request) {
	var req splitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	counterpart, err := s.svc.SplitCounterpart(r.Context(), r.PathValue("id"), req.EditedAmount)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]decimal.Decimal{"counterpart": counterpart})
}

func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	products, err := s.svc.SearchProducts(r.Context(), r.URL.Query().Get("query"), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleBarcodeLookup(w http.ResponseWriter, r *http.Request) {
	product, err := s.svc.LookupProduct(r.Context(), r.PathValue("code"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleDailySales(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}
	report, err := s.svc.DailySales(r.Context(), r.URL.Query().Get("store"), day)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	logs, err := s.svc.AuditLogs(r.Context(), r.URL.Query().Get("store"), limit)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (s *Server) handleCreateCashier(w http.ResponseWriter, r *http.Request) {
	var req domain.CashierCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := s.svc.CreateCashier(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleListCashiers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListCashiers(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cashiers": users})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.PasswordResetRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.ResetPassword(r.Context(), r.PathValue("username"), req.Password); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req domain.StockAdjustRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.svc.AdjustStock(r.Context(), r.PathValue("id"), req.Delta); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrInvalidInvoice), errors.Is(err, store.ErrConflict), errors.Is(err, store.ErrOutOfStock):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Printf("[http] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
