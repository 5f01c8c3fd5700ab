package repository

import (
	"fmt"
	"time"

	"ygo-trader/internal/models"
	"ygo-trader/internal/services/tcgplayer"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the gorm-backed persistence store. Writes are disjoint per
// component except ReplaceMaxProfits, which swaps the whole table in one
// transaction.
type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveLadder persists one SKU's complete ladder and its snapshot together.
// 整个阶梯落库是一个事务：不允许出现有明细没快照的中间状态
func (r *Repository) SaveLadder(rows []models.SKUListing, snapshot models.SKUListingSnapshot) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return fmt.Errorf("insert listings for sku %d: %w", snapshot.SKUID, err)
			}
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("insert snapshot for sku %d: %w", snapshot.SKUID, err)
		}
		return nil
	})
}

// LatestSaleDate returns the sales watermark for a card, zero when the card
// has no ingested sales yet.
func (r *Repository) LatestSaleDate(cardID uint) (time.Time, error) {
	var sale models.CardSale
	err := r.db.Where("card_id = ?", cardID).
		Order("order_date DESC").
		Limit(1).
		Find(&sale).Error
	if err != nil {
		return time.Time{}, err
	}
	return sale.OrderDate, nil
}

func (r *Repository) InsertSales(rows []models.CardSale) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.CreateInBatches(rows, 500).Error
}

// ListingSKUIDs returns every SKU id present in the snapshot table.
func (r *Repository) ListingSKUIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.SKUListingSnapshot{}).
		Distinct("sku_id").
		Pluck("sku_id", &ids).Error
	return ids, err
}

// LatestLadders loads the newest complete ladder per SKU id.
func (r *Repository) LatestLadders(skuIDs []uint) (map[uint][]models.SKUListing, error) {
	if len(skuIDs) == 0 {
		return map[uint][]models.SKUListing{}, nil
	}

	var rows []models.SKUListing
	err := r.db.Raw(`
		SELECT l.* FROM sku_listings l
		JOIN (
			SELECT sku_id, MAX(timestamp) AS ts
			FROM sku_listings
			WHERE sku_id IN ?
			GROUP BY sku_id
		) latest ON l.sku_id = latest.sku_id AND l.timestamp = latest.ts`,
		skuIDs).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	ladders := make(map[uint][]models.SKUListing, len(skuIDs))
	for _, row := range rows {
		ladders[row.SKUID] = append(ladders[row.SKUID], row)
	}
	return ladders, nil
}

// PurchaseLimits derives the purchase cap per SKU from the trailing day's
// copies delta: a SKU whose copies count dropped by N is assumed to absorb N
// more copies. SKUs without a day-old snapshot are absent (uncapped).
func (r *Repository) PurchaseLimits(skuIDs []uint) (map[uint]int, error) {
	if len(skuIDs) == 0 {
		return map[uint]int{}, nil
	}

	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	type deltaRow struct {
		SKUID  uint
		Latest int
		Prior  int
	}
	var rows []deltaRow
	err := r.db.Raw(`
		SELECT cur.sku_id AS sku_id,
		       cur.total_copies_count AS latest,
		       old.total_copies_count AS prior
		FROM sku_listing_snapshots cur
		JOIN (
			SELECT sku_id, MAX(timestamp) AS ts
			FROM sku_listing_snapshots
			WHERE sku_id IN ?
			GROUP BY sku_id
		) latest ON cur.sku_id = latest.sku_id AND cur.timestamp = latest.ts
		JOIN sku_listing_snapshots old ON old.sku_id = cur.sku_id
		JOIN (
			SELECT sku_id, MAX(timestamp) AS ts
			FROM sku_listing_snapshots
			WHERE sku_id IN ? AND timestamp <= ?
			GROUP BY sku_id
		) prior ON old.sku_id = prior.sku_id AND old.timestamp = prior.ts`,
		skuIDs, skuIDs, cutoff).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	limits := make(map[uint]int, len(rows))
	for _, row := range rows {
		limits[row.SKUID] = row.Prior - row.Latest
	}
	return limits, nil
}

// ReplaceMaxProfits atomically swaps the profit table: delete everything, bulk
// insert the new ranked set. Observers either see the old table or the new one.
func (r *Repository) ReplaceMaxProfits(results []models.SKUMaxProfit) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&models.SKUMaxProfit{}).Error; err != nil {
			return err
		}
		if len(results) == 0 {
			return nil
		}
		return tx.CreateInBatches(results, 500).Error
	})
}

// NearMintCardRequests builds one fetch request per card covering all of its
// near-mint printings. Listings route back to their SKU via productConditionId.
func (r *Repository) NearMintCardRequests() ([]tcgplayer.CardRequest, error) {
	type skuRow struct {
		SKUID    uint
		CardID   uint
		Printing string
	}
	var rows []skuRow
	err := r.db.Raw(`
		SELECT s.id AS sku_id, s.card_id AS card_id, p.name AS printing
		FROM skus s
		JOIN conditions c ON c.id = s.condition_id
		JOIN printings p ON p.id = s.printing_id
		WHERE c.name = ?
		ORDER BY s.card_id, s.id`, "Near Mint").Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byCard := make(map[uint]*tcgplayer.CardRequest)
	var order []uint
	for _, row := range rows {
		req, ok := byCard[row.CardID]
		if !ok {
			req = &tcgplayer.CardRequest{
				ProductID:  row.CardID,
				Conditions: []string{"Near Mint"},
			}
			byCard[row.CardID] = req
			order = append(order, row.CardID)
		}
		req.Printings = append(req.Printings, row.Printing)
	}

	requests := make([]tcgplayer.CardRequest, 0, len(order))
	for _, cardID := range order {
		requests = append(requests, *byCard[cardID])
	}
	return requests, nil
}

// CardIDsBySyncFrequency returns the cards assigned to a fetch tier.
func (r *Repository) CardIDsBySyncFrequency(freq models.SyncFrequency) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.CardSyncData{}).
		Where("sync_frequency = ?", freq).
		Pluck("card_id", &ids).Error
	return ids, err
}

// AllCardIDs returns every catalog card id.
func (r *Repository) AllCardIDs() ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.Card{}).Pluck("id", &ids).Error
	return ids, err
}

// SalesCountSince counts a card's ingested sales newer than the given date.
func (r *Repository) SalesCountSince(cardID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.CardSale{}).
		Where("card_id = ? AND order_date > ?", cardID, since).
		Count(&count).Error
	return count, err
}

// UpsertSyncData creates or updates a card's fetch tier.
func (r *Repository) UpsertSyncData(cardID uint, freq models.SyncFrequency) error {
	data := models.CardSyncData{CardID: cardID, SyncFrequency: freq, UpdatedAt: time.Now().UTC()}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "card_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sync_frequency", "updated_at"}),
	}).Create(&data).Error
}

// TopProfits returns the ranked profit rows with their catalog context.
func (r *Repository) TopProfits(limit int) ([]models.SKUMaxProfit, error) {
	var rows []models.SKUMaxProfit
	q := r.db.Preload("SKU").
		Preload("SKU.Card").
		Preload("SKU.Card.Set").
		Preload("SKU.Printing").
		Preload("SKU.Condition").
		Order("max_profit / cost DESC, sku_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}

// SnapshotsForSKU returns a SKU's most recent snapshots, newest first.
func (r *Repository) SnapshotsForSKU(skuID uint, limit int) ([]models.SKUListingSnapshot, error) {
	var rows []models.SKUListingSnapshot
	q := r.db.Where("sku_id = ?", skuID).Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&rows).Error
	return rows, err
}
