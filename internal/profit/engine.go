package profit

import (
	"sort"

	"ygo-trader/internal/models"

	"github.com/shopspring/decimal"
)

// 贪心扫描：从最便宜的报价开始买断，假设买断后可以按下一档价格卖出。
// 金额全程 decimal，买入加税、卖出扣平台抽成，高价单再扣一笔出库运费。

// Params carries the transaction-cost model for one scan.
type Params struct {
	TaxRate            decimal.Decimal // purchase tax on the full acquisition cost
	SellerRate         decimal.Decimal // fraction of revenue kept after marketplace fees
	SurchargeThreshold decimal.Decimal // resale price at which the outbound surcharge kicks in
	Surcharge          decimal.Decimal // flat outbound shipping surcharge
}

func DefaultParams() Params {
	return Params{
		TaxRate:            decimal.NewFromFloat(0.10),
		SellerRate:         decimal.NewFromFloat(0.85),
		SurchargeThreshold: decimal.NewFromInt(40),
		Surcharge:          decimal.NewFromInt(4),
	}
}

// ProfitData is the best outcome found for one SKU's ladder.
type ProfitData struct {
	MaxProfit decimal.Decimal
	NumCards  int
	Cost      decimal.Decimal
}

func zeroProfit() ProfitData {
	return ProfitData{MaxProfit: decimal.Zero, Cost: decimal.Zero}
}

// Compute runs the greedy scan over one ladder with a purchase-quantity cap.
//
// Listings are walked in landed-cost order (price + shipping); at step i the
// scan buys out listing i and assumes resale at listing i+1's unit price, so
// the last listing only ever serves as a resale reference. Shipping is paid
// once per listing, not per copy. A strictly greater profit replaces the
// running maximum, which keeps the earlier, smaller-quantity result on ties —
// the lower-capital trade.
//
// Pure function of its inputs: a cap ≤ 0 or a ladder shorter than two
// listings yields the zero result, never an error.
func Compute(listings []models.SKUListing, quantityLimit int, p Params) ProfitData {
	best := zeroProfit()

	if quantityLimit <= 0 || len(listings) < 2 {
		return best
	}

	sorted := make([]models.SKUListing, len(listings))
	copy(sorted, listings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LandedCost().LessThan(sorted[j].LandedCost())
	})

	one := decimal.NewFromInt(1)
	runningCost := decimal.Zero
	runningQuantity := 0

	for i := 0; i < len(sorted)-1; i++ {
		listing := sorted[i]

		buy := quantityLimit - runningQuantity
		if buy > listing.Quantity {
			buy = listing.Quantity
		}

		runningCost = runningCost.
			Add(listing.Price.Mul(decimal.NewFromInt(int64(buy)))).
			Add(listing.ShippingPrice)
		runningQuantity += buy

		next := sorted[i+1]

		surcharge := decimal.Zero
		if next.Price.GreaterThanOrEqual(p.SurchargeThreshold) {
			surcharge = p.Surcharge
		}

		revenue := next.Price.Sub(surcharge).
			Mul(decimal.NewFromInt(int64(runningQuantity))).
			Mul(p.SellerRate)
		totalCost := runningCost.Mul(one.Add(p.TaxRate))

		if profit := revenue.Sub(totalCost); profit.GreaterThan(best.MaxProfit) {
			best = ProfitData{MaxProfit: profit, NumCards: runningQuantity, Cost: runningCost}
		}

		if runningQuantity == quantityLimit {
			break
		}
	}

	return best
}

// ComputeUncapped runs the scan with the cap set to the ladder's total
// available quantity.
func ComputeUncapped(listings []models.SKUListing, p Params) ProfitData {
	total := 0
	for _, listing := range listings {
		total += listing.Quantity
	}
	return Compute(listings, total, p)
}
