package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/store"
)

func TestInvoiceNumbersArePerStoreSequences(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	first, err := s.NextInvoiceNumber(ctx, "MAIN")
	if err != nil {
		t.Fatalf("next number: %v", err)
	}
	second, _ := s.NextInvoiceNumber(ctx, "MAIN")
	other, _ := s.NextInvoiceNumber(ctx, "B2")

	if !strings.HasPrefix(first, "INV-MAIN-") || first == second {
		t.Fatalf("unexpected sequence: %s then %s", first, second)
	}
	if !strings.HasPrefix(other, "INV-B2-") || !strings.HasSuffix(other, "000001") {
		t.Fatalf("expected independent counter per store, got %s", other)
	}
}

func TestLineItemLifecycle(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	inv, err := s.CreateInvoice(ctx, domain.Invoice{Status: domain.StatusDraft, InvoiceType: domain.TypePending})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	item, err := s.AddLineItem(ctx, domain.LineItem{InvoiceID: inv.ID, ProductID: "prd_tmpgls", ProductName: "Tempered Glass", Quantity: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	item.Quantity = 5
	if _, err := s.UpdateLineItem(ctx, item); err != nil {
		t.Fatalf("update item: %v", err)
	}
	got, err := s.GetInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Items) != 1 || got.Items[0].Quantity != 5 {
		t.Fatalf("unexpected items: %+v", got.Items)
	}

	if err := s.DeleteLineItem(ctx, inv.ID, item.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}
	if err := s.DeleteLineItem(ctx, inv.ID, item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestGetInvoiceReturnsACopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	inv, err := s.CreateInvoice(ctx, domain.Invoice{Status: domain.StatusDraft})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AddLineItem(ctx, domain.LineItem{InvoiceID: inv.ID, ProductID: "prd_tmpgls", Quantity: 1}); err != nil {
		t.Fatalf("add item: %v", err)
	}

	first, _ := s.GetInvoice(ctx, inv.ID)
	first.Items[0].Quantity = 99

	second, _ := s.GetInvoice(ctx, inv.ID)
	if second.Items[0].Quantity == 99 {
		t.Fatal("mutating a returned invoice must not touch the stored one")
	}
}

func TestAdjustStockRejectsGoingNegative(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	level := s.StockLevel("prd_batvivo")
	if err := s.AdjustStock(ctx, "prd_batvivo", -(level + 1)); !errors.Is(err, store.ErrOutOfStock) {
		t.Fatalf("expected out of stock, got %v", err)
	}
	if err := s.AdjustStock(ctx, "prd_batvivo", -level); err != nil {
		t.Fatalf("draining to zero must work: %v", err)
	}
	if got := s.StockLevel("prd_batvivo"); got != 0 {
		t.Fatalf("expected zero stock, got %d", got)
	}
}

func TestSearchProductsMatchesNameAndBarcode(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	byName, err := s.SearchProducts(ctx, "battery", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(byName) != 1 || byName[0].ID != "prd_batvivo" {
		t.Fatalf("unexpected name search result: %+v", byName)
	}

	byCode, err := s.SearchProducts(ctx, "8901001000042", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(byCode) != 1 || byCode[0].ID != "prd_tmpgls" {
		t.Fatalf("unexpected barcode search result: %+v", byCode)
	}
}
