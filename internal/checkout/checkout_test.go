package checkout

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"dukaanpos/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func testItem(id, productID string, qty int, base string) domain.LineItem {
	return domain.LineItem{
		ID:          id,
		InvoiceID:   "inv_1",
		ProductID:   productID,
		ProductName: "Product " + productID,
		Quantity:    qty,
		BasePrice:   dec(base),
	}
}

func TestGroupByProductFirstSeenOrder(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_b", 1, "100"),
		testItem("li_2", "p_a", 2, "50"),
		testItem("li_3", "p_b", 3, "100"),
		testItem("li_4", "p_c", 1, "20"),
	}

	groups := GroupByProduct(items)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].ProductID != "p_b" || groups[1].ProductID != "p_a" || groups[2].ProductID != "p_c" {
		t.Fatalf("unexpected group order: %s, %s, %s", groups[0].ProductID, groups[1].ProductID, groups[2].ProductID)
	}
	if groups[0].TotalQuantity != 4 {
		t.Fatalf("expected total quantity 4 for p_b, got %d", groups[0].TotalQuantity)
	}
	if groups[0].Items[0].ID != "li_1" || groups[0].Items[1].ID != "li_3" {
		t.Fatalf("members out of input order: %s, %s", groups[0].Items[0].ID, groups[0].Items[1].ID)
	}
}

func TestGroupByProductNegativeQuantityExcludedFromTotal(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 5, "10"),
		testItem("li_2", "p_a", -2, "10"),
	}
	groups := GroupByProduct(items)
	if groups[0].TotalQuantity != 5 {
		t.Fatalf("expected total 5 ignoring negative quantity, got %d", groups[0].TotalQuantity)
	}
	if len(groups[0].Items) != 2 {
		t.Fatalf("negative-quantity item must still be a member, got %d members", len(groups[0].Items))
	}
}

func TestGroupByProductTrackedFromRepresentative(t *testing.T) {
	first := testItem("li_1", "p_a", 1, "10")
	first.TrackedUnit = true
	second := testItem("li_2", "p_a", 1, "10")

	groups := GroupByProduct([]domain.LineItem{first, second})
	if !groups[0].Tracked {
		t.Fatal("group should inherit tracked flag from first item")
	}

	groups = GroupByProduct([]domain.LineItem{second, first})
	if groups[0].Tracked {
		t.Fatal("group should not be tracked when first item is untracked")
	}
}

func TestParentPriceSeedsFromFirstItem(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 1, "100"),
		testItem("li_2", "p_a", 1, "100"),
	}
	items[0].ManualPrice = dec("120")

	s := NewSession("inv_1", items)
	if got := s.ParentPrice("p_a"); !got.Equal(dec("120")) {
		t.Fatalf("expected seeded parent 120, got %s", got)
	}
	// A seeded parent is not an explicit edit: member two keeps its base price.
	if got := s.EffectiveUnitPrice(items[1]); !got.Equal(dec("100")) {
		t.Fatalf("seed must not override member prices, got %s", got)
	}
}

func TestSetParentPricePropagatesAndRespectsDivergence(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 1, "100"),
		testItem("li_2", "p_a", 1, "100"),
		testItem("li_3", "p_a", 1, "100"),
	}
	s := NewSession("inv_1", items)

	if err := s.SetParentPrice("p_a", dec("120")); err != nil {
		t.Fatalf("set parent: %v", err)
	}
	for _, item := range items {
		if got := s.EffectiveUnitPrice(item); !got.Equal(dec("120")) {
			t.Fatalf("item %s expected 120, got %s", item.ID, got)
		}
	}

	if err := s.SetItemPrice("li_2", dec("150")); err != nil {
		t.Fatalf("set item: %v", err)
	}
	if err := s.SetParentPrice("p_a", dec("130")); err != nil {
		t.Fatalf("set parent again: %v", err)
	}

	if got := s.EffectiveUnitPrice(items[0]); !got.Equal(dec("130")) {
		t.Fatalf("attached item expected 130, got %s", got)
	}
	if got := s.EffectiveUnitPrice(items[1]); !got.Equal(dec("150")) {
		t.Fatalf("diverged item must keep 150, got %s", got)
	}
	if got := s.EffectiveUnitPrice(items[2]); !got.Equal(dec("130")) {
		t.Fatalf("attached item expected 130, got %s", got)
	}
}

func TestOverrideEqualToParentReattaches(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 1, "100"),
		testItem("li_2", "p_a", 1, "100"),
	}
	s := NewSession("inv_1", items)

	if err := s.SetParentPrice("p_a", dec("120")); err != nil {
		t.Fatalf("set parent: %v", err)
	}
	// Typing the parent value into the item is not divergence.
	if err := s.SetItemPrice("li_2", dec("120")); err != nil {
		t.Fatalf("set item: %v", err)
	}
	if err := s.SetParentPrice("p_a", dec("140")); err != nil {
		t.Fatalf("set parent again: %v", err)
	}
	if got := s.EffectiveUnitPrice(items[1]); !got.Equal(dec("140")) {
		t.Fatalf("item matching previous parent must follow, got %s", got)
	}
}

func TestClearItemPriceReattachesToParent(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 1, "100"),
	}
	s := NewSession("inv_1", items)

	if err := s.SetParentPrice("p_a", dec("110")); err != nil {
		t.Fatalf("set parent: %v", err)
	}
	if err := s.SetItemPrice("li_1", dec("200")); err != nil {
		t.Fatalf("set item: %v", err)
	}
	if err := s.ClearItemPrice("li_1"); err != nil {
		t.Fatalf("clear item: %v", err)
	}
	if got := s.EffectiveUnitPrice(items[0]); !got.Equal(dec("110")) {
		t.Fatalf("cleared item must revert to parent 110, got %s", got)
	}
}

func TestFloorViolationMessages(t *testing.T) {
	item := testItem("li_1", "p_a", 1, "500")
	item.PurchasePrice = dec("400")
	item.SellingPrice = dec("450")

	if msg := FloorViolation(dec("449.99"), item); !strings.Contains(msg, "selling price (₹450.00)") {
		t.Fatalf("expected selling floor message, got %q", msg)
	}
	if msg := FloorViolation(dec("450"), item); msg != "" {
		t.Fatalf("price at floor must pass, got %q", msg)
	}

	item.SellingPrice = decimal.Zero
	if msg := FloorViolation(dec("399"), item); !strings.Contains(msg, "purchase price (₹400.00)") {
		t.Fatalf("expected purchase floor message, got %q", msg)
	}

	item.CanGoBelowFloor = true
	if msg := FloorViolation(dec("1"), item); msg != "" {
		t.Fatalf("floor exemption must pass, got %q", msg)
	}

	item.CanGoBelowFloor = false
	if msg := FloorViolation(decimal.Zero, item); msg != "" {
		t.Fatalf("empty price is never a floor violation, got %q", msg)
	}
}

func TestSetParentPriceBelowFloorStillApplies(t *testing.T) {
	item := testItem("li_1", "p_a", 1, "500")
	item.PurchasePrice = dec("400")
	s := NewSession("inv_1", []domain.LineItem{item})

	if err := s.SetParentPrice("p_a", dec("300")); err != nil {
		t.Fatalf("set parent: %v", err)
	}
	if !s.HasPriceErrors() {
		t.Fatal("expected a price error for a below-floor parent price")
	}
	if _, ok := s.PriceErrors()["p_a"]; !ok {
		t.Fatalf("expected error keyed by product, got %v", s.PriceErrors())
	}
	// The value is still applied so the cashier sees what they typed.
	if got := s.EffectiveUnitPrice(item); !got.Equal(dec("300")) {
		t.Fatalf("expected applied value 300, got %s", got)
	}

	if err := s.SetParentPrice("p_a", dec("400")); err != nil {
		t.Fatalf("set parent: %v", err)
	}
	if s.HasPriceErrors() {
		t.Fatalf("expected error to clear at floor, got %v", s.PriceErrors())
	}
}

func TestSetGroupQuantityProportionalFloor(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 3, "10"),
		testItem("li_2", "p_a", 2, "10"),
	}
	s := NewSession("inv_1", items)

	if err := s.SetGroupQuantity("p_a", 7); err != nil {
		t.Fatalf("set group quantity: %v", err)
	}
	// 7*3/5 = 4, 7*2/5 = 2: the odd unit is dropped, never invented.
	if got := s.EffectiveQuantity("li_1"); got != 4 {
		t.Fatalf("expected li_1 quantity 4, got %d", got)
	}
	if got := s.EffectiveQuantity("li_2"); got != 2 {
		t.Fatalf("expected li_2 quantity 2, got %d", got)
	}
}

func TestSetGroupQuantityNeverExceedsRequestedTotal(t *testing.T) {
	for _, tc := range []struct {
		quantities []int
		newTotal   int
	}{
		{[]int{3, 2}, 7},
		{[]int{1, 1, 1}, 10},
		{[]int{5}, 3},
		{[]int{2, 7, 4}, 1},
		{[]int{9, 9, 9}, 0},
	} {
		items := make([]domain.LineItem, len(tc.quantities))
		for i, q := range tc.quantities {
			items[i] = testItem(fmt.Sprintf("li_%d", i), "p_a", q, "10")
		}
		s := NewSession("inv_1", items)
		if err := s.SetGroupQuantity("p_a", tc.newTotal); err != nil {
			t.Fatalf("set group quantity: %v", err)
		}
		sum := 0
		for _, item := range items {
			got := s.EffectiveQuantity(item.ID)
			if got < 0 {
				t.Fatalf("negative quantity for %s: %d", item.ID, got)
			}
			sum += got
		}
		if sum > tc.newTotal {
			t.Fatalf("redistributed sum %d exceeds requested total %d (%v)", sum, tc.newTotal, tc.quantities)
		}
	}
}

func TestSetGroupQuantityFromZeroSpreadsEvenly(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 0, "10"),
		testItem("li_2", "p_a", 0, "10"),
		testItem("li_3", "p_a", 0, "10"),
	}
	s := NewSession("inv_1", items)
	if err := s.SetGroupQuantity("p_a", 7); err != nil {
		t.Fatalf("set group quantity: %v", err)
	}
	for _, item := range items {
		if got := s.EffectiveQuantity(item.ID); got != 2 {
			t.Fatalf("expected even share 2 for %s, got %d", item.ID, got)
		}
	}
}

func TestSetGroupQuantityTrackedRejected(t *testing.T) {
	item := testItem("li_1", "p_a", 1, "10")
	item.TrackedUnit = true
	s := NewSession("inv_1", []domain.LineItem{item})

	if err := s.SetGroupQuantity("p_a", 5); !errors.Is(err, ErrTrackedQuantity) {
		t.Fatalf("expected ErrTrackedQuantity, got %v", err)
	}
	if err := s.StepGroupQuantity("p_a", 1); !errors.Is(err, ErrTrackedQuantity) {
		t.Fatalf("expected ErrTrackedQuantity on step, got %v", err)
	}
	if got := s.EffectiveQuantity("li_1"); got != 1 {
		t.Fatalf("tracked quantity must stay 1, got %d", got)
	}
}

func TestStepGroupQuantityClampsAtZero(t *testing.T) {
	items := []domain.LineItem{testItem("li_1", "p_a", 1, "10")}
	s := NewSession("inv_1", items)

	if err := s.StepGroupQuantity("p_a", -5); err != nil {
		t.Fatalf("step: %v", err)
	}
	if got := s.EffectiveQuantity("li_1"); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}

func TestComputeTotalMatchesGroupedSum(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 2, "100"),
		testItem("li_2", "p_a", 3, "100"),
		testItem("li_3", "p_b", 1, "250"),
	}
	s := NewSession("inv_1", items)

	if err := s.SetParentPrice("p_a", dec("110")); err != nil {
		t.Fatalf("set parent: %v", err)
	}

	// Item-level total and group-level total must agree.
	want := dec("110").Mul(dec("5")).Add(dec("250"))
	if got := s.ComputeTotal(); !got.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, got)
	}

	grouped := decimal.Zero
	for _, group := range s.Groups() {
		for _, item := range group.Items {
			qty := s.EffectiveQuantity(item.ID)
			if qty <= 0 {
				continue
			}
			grouped = grouped.Add(s.EffectiveUnitPrice(item).Mul(decimal.NewFromInt(int64(qty))))
		}
	}
	if !grouped.Equal(want) {
		t.Fatalf("grouped total %s diverges from item total %s", grouped, want)
	}
}

func TestComputeTotalExcludesZeroQuantity(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 2, "100"),
		testItem("li_2", "p_b", 1, "50"),
	}
	s := NewSession("inv_1", items)
	if err := s.SetItemQuantity("li_2", 0); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if got := s.ComputeTotal(); !got.Equal(dec("200")) {
		t.Fatalf("zeroed item must not contribute, got %s", got)
	}
}

func TestAreAllPricesEntered(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 1, "0"),
		testItem("li_2", "p_b", 1, "80"),
	}
	s := NewSession("inv_1", items)

	if s.AreAllPricesEntered() {
		t.Fatal("missing price for p_a must block")
	}
	if err := s.SetParentPrice("p_a", dec("60")); err != nil {
		t.Fatalf("set parent: %v", err)
	}
	if !s.AreAllPricesEntered() {
		t.Fatal("all prices entered, gate must open")
	}

	// Zeroing the priceless item's quantity also satisfies the gate.
	s2 := NewSession("inv_1", items)
	if err := s2.SetItemQuantity("li_1", 0); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if !s2.AreAllPricesEntered() {
		t.Fatal("inactive group must be excluded from the gate")
	}
}

func TestCounterpartAmount(t *testing.T) {
	if got := CounterpartAmount(dec("1500"), dec("1000")); !got.Equal(dec("500")) {
		t.Fatalf("expected 500, got %s", got)
	}
	if got := CounterpartAmount(dec("1500"), dec("2000")); !got.Equal(decimal.Zero) {
		t.Fatalf("overpayment must clamp to 0, got %s", got)
	}
	if got := CounterpartAmount(dec("100.005"), dec("50")); !got.Equal(dec("50.01")) {
		t.Fatalf("expected 2dp rounding to 50.01, got %s", got)
	}
}

func TestValidateSplit(t *testing.T) {
	if err := ValidateSplit(dec("1500"), dec("1000"), dec("500")); err != nil {
		t.Fatalf("exact split must pass: %v", err)
	}
	if err := ValidateSplit(dec("1500"), dec("1000.005"), dec("500")); err != nil {
		t.Fatalf("split within tolerance must pass: %v", err)
	}
	if err := ValidateSplit(dec("1500"), dec("999"), dec("500")); !errors.Is(err, ErrSplitMismatch) {
		t.Fatalf("expected ErrSplitMismatch, got %v", err)
	}
	if err := ValidateSplit(dec("1500"), dec("1500"), decimal.Zero); !errors.Is(err, ErrSplitIncomplete) {
		t.Fatalf("expected ErrSplitIncomplete when one side is empty, got %v", err)
	}
}

func TestReloadPrunesStaleEdits(t *testing.T) {
	items := []domain.LineItem{
		testItem("li_1", "p_a", 1, "100"),
		testItem("li_2", "p_b", 1, "50"),
	}
	s := NewSession("inv_1", items)
	if err := s.SetParentPrice("p_b", dec("55")); err != nil {
		t.Fatalf("set parent: %v", err)
	}
	if err := s.SetItemQuantity("li_2", 4); err != nil {
		t.Fatalf("set quantity: %v", err)
	}

	s.Reload(items[:1])

	if got := s.EffectiveQuantity("li_2"); got != 0 {
		t.Fatalf("removed item must report zero quantity, got %d", got)
	}
	if got := s.ParentPrice("p_b"); !got.IsZero() {
		t.Fatalf("removed group's parent price must be pruned, got %s", got)
	}
	if got := s.ComputeTotal(); !got.Equal(dec("100")) {
		t.Fatalf("expected total 100 after reload, got %s", got)
	}
}
