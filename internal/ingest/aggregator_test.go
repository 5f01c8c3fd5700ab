package ingest

import (
	"errors"
	"testing"
	"time"

	"ygo-trader/internal/services/tcgplayer"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestParseOrderDate_BothFormsSameInstant(t *testing.T) {
	withFraction, err := ParseOrderDate("2022-11-14T05:00:36.000+00:00")
	if err != nil {
		t.Fatalf("fractional form: %v", err)
	}
	withoutFraction, err := ParseOrderDate("2022-11-14T05:00:36+00:00")
	if err != nil {
		t.Fatalf("plain form: %v", err)
	}
	if !withFraction.Equal(withoutFraction) {
		t.Errorf("forms parse to different instants: %v vs %v", withFraction, withoutFraction)
	}

	noColonZone, err := ParseOrderDate("2022-11-14T05:00:36.000+0000")
	if err != nil {
		t.Fatalf("no-colon zone form: %v", err)
	}
	if !noColonZone.Equal(withFraction) {
		t.Errorf("zone variants differ: %v vs %v", noColonZone, withFraction)
	}
}

func TestParseOrderDate_Unparsable(t *testing.T) {
	_, err := ParseOrderDate("14/11/2022 05:00")
	if err == nil {
		t.Fatal("expected error for malformed date")
	}
	var die *DataIntegrityError
	if !errors.As(err, &die) {
		t.Errorf("expected DataIntegrityError, got %T", err)
	}
}

func TestDedupSales_WatermarkStrictlyGreater(t *testing.T) {
	watermark := time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC)
	stamp := func(offset time.Duration) string {
		return watermark.Add(offset).Format(time.RFC3339)
	}

	sales := []tcgplayer.SaleResponse{
		{OrderDate: stamp(2 * time.Hour), Quantity: 1},
		{OrderDate: stamp(time.Hour), Quantity: 1},
		{OrderDate: stamp(0), Quantity: 1},
		{OrderDate: stamp(-time.Hour), Quantity: 1},
	}

	rows, sawOlder, err := DedupSales(7, watermark, sales)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 kept sales, got %d", len(rows))
	}
	if !sawOlder {
		t.Error("expected sawOlder once the page reaches the watermark")
	}
	for _, row := range rows {
		if !row.OrderDate.After(watermark) {
			t.Errorf("kept sale at %v is not strictly newer than watermark", row.OrderDate)
		}
		if row.CardID != 7 {
			t.Errorf("wrong card id %d", row.CardID)
		}
	}
}

func TestDedupSales_ZeroWatermarkKeepsAll(t *testing.T) {
	sales := []tcgplayer.SaleResponse{
		{OrderDate: "2023-01-10T12:00:00+00:00"},
		{OrderDate: "2023-01-09T12:00:00+00:00"},
	}
	rows, sawOlder, err := DedupSales(1, time.Time{}, sales)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 || sawOlder {
		t.Errorf("expected all sales kept for fresh card, got %d rows sawOlder=%v", len(rows), sawOlder)
	}
}

func TestDedupSales_MalformedDateAborts(t *testing.T) {
	sales := []tcgplayer.SaleResponse{
		{OrderDate: "2023-01-10T12:00:00+00:00"},
		{OrderDate: "definitely not a date"},
	}
	rows, _, err := DedupSales(1, time.Time{}, sales)
	if err == nil {
		t.Fatal("expected error for malformed order date")
	}
	if rows != nil {
		t.Errorf("no rows should survive an aborted ingestion, got %d", len(rows))
	}
}

func TestListingAccumulator_SnapshotOverAllPages(t *testing.T) {
	now := time.Now().UTC()
	acc := NewListingAccumulator(42, now)

	acc.AddPage(&tcgplayer.ListingsPage{Listings: []tcgplayer.ListingResponse{
		{ListingID: 1, Quantity: 3, Price: dec("10.00"), SellerShippingPrice: dec("1.50")},
		{ListingID: 2, Quantity: 2, Price: dec("9.00"), SellerShippingPrice: dec("4.00")},
	}})
	// 第二页与第一页有重叠（上游状态在翻页之间会移动）
	acc.AddPage(&tcgplayer.ListingsPage{Listings: []tcgplayer.ListingResponse{
		{ListingID: 2, Quantity: 2, Price: dec("9.00"), SellerShippingPrice: dec("4.00")},
		{ListingID: 3, Quantity: 5, Price: dec("12.00"), SellerShippingPrice: dec("0.00")},
	}})

	snapshot := acc.Snapshot()
	if snapshot.TotalListingsCount != 3 {
		t.Errorf("duplicate listing across pages must count once, got %d", snapshot.TotalListingsCount)
	}
	if snapshot.TotalCopiesCount != 10 {
		t.Errorf("expected 10 copies, got %d", snapshot.TotalCopiesCount)
	}
	if !snapshot.LowestListingPrice.Equal(dec("11.50")) {
		t.Errorf("lowest landed cost should be 11.50, got %s", snapshot.LowestListingPrice)
	}

	rows := acc.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if rows[i-1].ID >= rows[i].ID {
			t.Errorf("rows not ordered by listing id: %d before %d", rows[i-1].ID, rows[i].ID)
		}
	}
	if rows[0].SKUID != 42 || !rows[0].Timestamp.Equal(now) {
		t.Errorf("row keyed wrong: sku=%d ts=%v", rows[0].SKUID, rows[0].Timestamp)
	}
}

func TestListingAccumulator_EmptyLadder(t *testing.T) {
	acc := NewListingAccumulator(1, time.Now())
	snapshot := acc.Snapshot()
	if !snapshot.LowestListingPrice.Equal(decimal.Zero) || snapshot.TotalListingsCount != 0 || snapshot.TotalCopiesCount != 0 {
		t.Errorf("empty ladder snapshot should be all zero, got %+v", snapshot)
	}
}
