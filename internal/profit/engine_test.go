package profit

import (
	"testing"

	"ygo-trader/internal/models"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func listing(price, shipping string, qty int) models.SKUListing {
	return models.SKUListing{
		Price:         dec(price),
		ShippingPrice: dec(shipping),
		Quantity:      qty,
	}
}

func TestCompute_SelectsDeeperPurchase(t *testing.T) {
	// Buying out only the $10 listing and reselling at $12 loses money
	// (revenue 12×5×0.85 = 51 vs cost 50×1.10 = 55); buying through the $12
	// listing and reselling at $20 nets $49. The scan must pick the deeper buy.
	ladder := []models.SKUListing{
		listing("10", "0", 5),
		listing("12", "0", 5),
		listing("20", "0", 10),
	}

	result := ComputeUncapped(ladder, DefaultParams())

	if !result.MaxProfit.Equal(dec("49")) {
		t.Errorf("expected profit 49, got %s", result.MaxProfit)
	}
	if result.NumCards != 10 {
		t.Errorf("expected 10 cards, got %d", result.NumCards)
	}
	if !result.Cost.Equal(dec("110")) {
		t.Errorf("expected cost 110, got %s", result.Cost)
	}
}

func TestCompute_ZeroResults(t *testing.T) {
	ladder := []models.SKUListing{
		listing("10", "0", 5),
		listing("12", "0", 5),
	}

	cases := []struct {
		name   string
		ladder []models.SKUListing
		limit  int
	}{
		{"zero cap", ladder, 0},
		{"negative cap", ladder, -3},
		{"empty ladder", nil, 10},
		{"single listing", ladder[:1], 10},
	}

	for _, tc := range cases {
		result := Compute(tc.ladder, tc.limit, DefaultParams())
		if !result.MaxProfit.IsZero() || result.NumCards != 0 || !result.Cost.IsZero() {
			t.Errorf("%s: expected zero result, got %+v", tc.name, result)
		}
	}
}

func TestCompute_NeverExceedsCap(t *testing.T) {
	ladder := []models.SKUListing{
		listing("1", "0", 50),
		listing("2", "0", 50),
		listing("30", "0", 50),
	}

	for _, cap := range []int{1, 7, 60, 500} {
		result := Compute(ladder, cap, DefaultParams())
		if result.NumCards > cap {
			t.Errorf("cap %d: recommended %d cards", cap, result.NumCards)
		}
		total := 0
		for _, l := range ladder {
			total += l.Quantity
		}
		if result.NumCards > total {
			t.Errorf("cap %d: recommended %d cards but only %d available", cap, result.NumCards, total)
		}
	}
}

func TestCompute_Idempotent(t *testing.T) {
	ladder := []models.SKUListing{
		listing("3.25", "0.99", 4),
		listing("2.10", "1.50", 2),
		listing("8.00", "0", 9),
		listing("4.75", "0.25", 1),
	}

	first := ComputeUncapped(ladder, DefaultParams())
	second := ComputeUncapped(ladder, DefaultParams())

	if !first.MaxProfit.Equal(second.MaxProfit) || first.NumCards != second.NumCards || !first.Cost.Equal(second.Cost) {
		t.Errorf("same ladder produced different results: %+v vs %+v", first, second)
	}
}

func TestCompute_SortsByLandedCost(t *testing.T) {
	// The $9+$4 listing lands at $13, above the $10+$0 one; the scan must buy
	// the $10 listing first even though its bare price is higher.
	ladder := []models.SKUListing{
		listing("9", "4", 1),
		listing("10", "0", 1),
		listing("30", "0", 1),
	}

	result := Compute(ladder, 1, DefaultParams())

	// one copy at $10, resale reference $13-landed listing's $9 price is the
	// next rung, so revenue = 9×1×0.85 = 7.65 vs cost 10×1.10 = 11 → loss;
	// the zero result proves the $10 listing was consumed first.
	if result.NumCards != 0 {
		t.Errorf("expected zero-quantity result, got %+v", result)
	}
}

func TestCompute_ShippingChargedPerListingOnce(t *testing.T) {
	ladder := []models.SKUListing{
		listing("5", "2", 3),
		listing("50", "0", 1),
	}

	result := Compute(ladder, 3, DefaultParams())

	// cost = 5×3 + 2 = 17; resale at 50 triggers the $4 surcharge:
	// revenue = (50−4)×3×0.85 = 117.30; total cost = 17×1.10 = 18.70
	if !result.Cost.Equal(dec("17")) {
		t.Errorf("expected cost 17 (shipping once), got %s", result.Cost)
	}
	if !result.MaxProfit.Equal(dec("98.60")) {
		t.Errorf("expected profit 98.60, got %s", result.MaxProfit)
	}
}

func TestCompute_SurchargeThreshold(t *testing.T) {
	below := []models.SKUListing{
		listing("10", "0", 1),
		listing("39.99", "0", 1),
	}
	at := []models.SKUListing{
		listing("10", "0", 1),
		listing("40", "0", 1),
	}

	p := DefaultParams()
	// below threshold: revenue 39.99×0.85 = 33.9915
	resultBelow := Compute(below, 1, p)
	if !resultBelow.MaxProfit.Equal(dec("33.9915").Sub(dec("11"))) {
		t.Errorf("below threshold: got %s", resultBelow.MaxProfit)
	}
	// at threshold: revenue (40−4)×0.85 = 30.60
	resultAt := Compute(at, 1, p)
	if !resultAt.MaxProfit.Equal(dec("30.60").Sub(dec("11"))) {
		t.Errorf("at threshold: got %s", resultAt.MaxProfit)
	}
}

func TestCompute_TieKeepsSmallerQuantity(t *testing.T) {
	// Identical rungs: every depth yields the same profit, so the first
	// (smallest-quantity) maximum must win.
	ladder := []models.SKUListing{
		listing("10", "0", 1),
		listing("10", "0", 1),
		listing("10", "0", 1),
	}

	// with zero tax and seller rate 1 every step is exactly break-even (profit
	// 0), never strictly greater than the running max, so the zero result holds
	flat := Compute(ladder, 3, Params{
		TaxRate:            decimal.Zero,
		SellerRate:         decimal.NewFromInt(1),
		SurchargeThreshold: dec("40"),
		Surcharge:          dec("4"),
	})
	if flat.NumCards != 0 || !flat.MaxProfit.IsZero() {
		t.Errorf("break-even ladder must keep the zero result, got %+v", flat)
	}
}
