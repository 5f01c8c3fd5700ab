package ingest

import (
	"fmt"
	"sort"
	"time"

	"ygo-trader/internal/models"
	"ygo-trader/internal/services/tcgplayer"

	"github.com/shopspring/decimal"
)

// DataIntegrityError marks a malformed record (an unparsable order date).
// It aborts ingestion for the affected card only — fail loud rather than let a
// default date slip into the watermark math.
type DataIntegrityError struct {
	Field string
	Value string
	Err   error
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *DataIntegrityError) Unwrap() error { return e.Err }

// 上游的 orderDate 有时带毫秒有时不带，时区偏移也出现过不带冒号的写法。
// 两种写法必须解析到同一时刻。
var orderDateLayouts = []string{
	time.RFC3339Nano,                     // 2022-11-14T05:00:36.436+00:00 和不带小数秒的形式
	"2006-01-02T15:04:05.999999999-0700", // 时区无冒号变体
	"2006-01-02T15:04:05-0700",
}

// ParseOrderDate parses a marketplace order date in any of its observed forms.
func ParseOrderDate(value string) (time.Time, error) {
	for _, layout := range orderDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &DataIntegrityError{Field: "orderDate", Value: value, Err: fmt.Errorf("unrecognized timestamp format")}
}

// ListingAccumulator folds all pages of one SKU's ladder fetch into the rows
// and the per-cycle snapshot. The snapshot is finalized only after every page
// has been added; duplicate listing ids across adjacent pages collapse to the
// last one seen.
type ListingAccumulator struct {
	skuID     uint
	timestamp time.Time
	listings  map[int64]tcgplayer.ListingResponse
}

func NewListingAccumulator(skuID uint, timestamp time.Time) *ListingAccumulator {
	return &ListingAccumulator{
		skuID:     skuID,
		timestamp: timestamp,
		listings:  make(map[int64]tcgplayer.ListingResponse),
	}
}

func (a *ListingAccumulator) Add(listing tcgplayer.ListingResponse) {
	a.listings[listing.ListingID] = listing
}

func (a *ListingAccumulator) AddPage(page *tcgplayer.ListingsPage) {
	for _, listing := range page.Listings {
		a.Add(listing)
	}
}

func (a *ListingAccumulator) Len() int { return len(a.listings) }

// Rows converts the accumulated ladder into append-only listing rows.
func (a *ListingAccumulator) Rows() []models.SKUListing {
	rows := make([]models.SKUListing, 0, len(a.listings))
	for _, listing := range a.listings {
		rows = append(rows, models.SKUListing{
			ID:             uint(listing.ListingID),
			Timestamp:      a.timestamp,
			SKUID:          a.skuID,
			SellerName:     listing.SellerName,
			VerifiedSeller: listing.VerifiedSeller,
			GoldSeller:     listing.GoldSeller,
			Quantity:       listing.Quantity,
			Price:          listing.Price,
			ShippingPrice:  listing.SellerShippingPrice,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

// Snapshot derives the aggregate over the complete ladder:
// lowest landed cost, listing count, total copies.
func (a *ListingAccumulator) Snapshot() models.SKUListingSnapshot {
	snapshot := models.SKUListingSnapshot{
		SKUID:     a.skuID,
		Timestamp: a.timestamp,
	}

	first := true
	for _, listing := range a.listings {
		landed := listing.Price.Add(listing.SellerShippingPrice)
		if first || landed.LessThan(snapshot.LowestListingPrice) {
			snapshot.LowestListingPrice = landed
			first = false
		}
		snapshot.TotalListingsCount++
		snapshot.TotalCopiesCount += listing.Quantity
	}
	if first {
		snapshot.LowestListingPrice = decimal.Zero
	}
	return snapshot
}

// DedupSales converts one newest-first sales page into rows strictly newer
// than the watermark. sawOlder tells the caller that the page reached already
// ingested territory, so pagination can short-circuit. A single unparsable
// order date aborts the whole card's sales ingestion for this cycle.
func DedupSales(cardID uint, watermark time.Time, sales []tcgplayer.SaleResponse) (rows []models.CardSale, sawOlder bool, err error) {
	for _, sale := range sales {
		orderDate, perr := ParseOrderDate(sale.OrderDate)
		if perr != nil {
			return nil, false, perr
		}

		if !watermark.IsZero() && !orderDate.After(watermark) {
			sawOlder = true
			continue
		}

		rows = append(rows, models.CardSale{
			CardID:        cardID,
			OrderDate:     orderDate,
			PrintingName:  sale.Variant,
			ConditionName: sale.Condition,
			Quantity:      sale.Quantity,
			ListingType:   sale.ListingType,
			PurchasePrice: sale.PurchasePrice,
			ShippingPrice: sale.ShippingPrice,
		})
	}
	return rows, sawOlder, nil
}
