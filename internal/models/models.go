package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 所有金额字段统一使用 decimal，避免浮点数累加产生分位误差

// Set represents a card set (expansion)
type Set struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name" gorm:"not null"`
	Abbreviation string         `json:"abbreviation"`
	PublishedOn  *time.Time     `json:"published_on"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

// Card represents one product in the catalog
type Card struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"not null"`
	CleanName string         `json:"clean_name"`
	SetID     uint           `json:"set_id" gorm:"index;not null"`
	Set       Set            `json:"set" gorm:"foreignKey:SetID"`
	Rarity    string         `json:"rarity"`
	ImageURL  string         `json:"image_url"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// Printing represents a card printing variant (1st Edition, Unlimited, ...)
type Printing struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"unique;not null"`
	DisplayOrder int    `json:"display_order"`
}

// Condition represents a card condition grade (Near Mint, ...)
type Condition struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"unique;not null"`
	Abbreviation string `json:"abbreviation"`
	DisplayOrder int    `json:"display_order"`
}

// SKU is one tradable (card, printing, condition) unit, tracked independently
type SKU struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CardID      uint      `json:"card_id" gorm:"index;not null"`
	Card        Card      `json:"card" gorm:"foreignKey:CardID"`
	PrintingID  uint      `json:"printing_id" gorm:"not null"`
	Printing    Printing  `json:"printing" gorm:"foreignKey:PrintingID"`
	ConditionID uint      `json:"condition_id" gorm:"not null"`
	Condition   Condition `json:"condition" gorm:"foreignKey:ConditionID"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SKUListing is one sell offer inside a fetch-cycle ladder.
// Rows are append-only: the same listing reappears under a new timestamp on the
// next cycle instead of being mutated.
type SKUListing struct {
	ID             uint            `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Timestamp      time.Time       `json:"timestamp" gorm:"primaryKey"`
	SKUID          uint            `json:"sku_id" gorm:"index;not null"`
	SKU            SKU             `json:"sku" gorm:"foreignKey:SKUID"`
	SellerName     string          `json:"seller_name"`
	VerifiedSeller bool            `json:"verified_seller"`
	GoldSeller     bool            `json:"gold_seller"`
	Quantity       int             `json:"quantity"`
	Price          decimal.Decimal `json:"price" gorm:"type:decimal(10,2)"`
	ShippingPrice  decimal.Decimal `json:"shipping_price" gorm:"type:decimal(10,2)"`
}

// LandedCost 到手价 = 单价 + 运费，全仓库统一用这个口径比较报价
func (l SKUListing) LandedCost() decimal.Decimal {
	return l.Price.Add(l.ShippingPrice)
}

// SKUListingSnapshot is the per-cycle aggregate over one SKU's full ladder.
// Written once per (sku, timestamp), never updated.
type SKUListingSnapshot struct {
	SKUID              uint            `json:"sku_id" gorm:"primaryKey"`
	Timestamp          time.Time       `json:"timestamp" gorm:"primaryKey"`
	SKU                SKU             `json:"sku" gorm:"foreignKey:SKUID"`
	LowestListingPrice decimal.Decimal `json:"lowest_listing_price" gorm:"type:decimal(10,2)"`
	TotalListingsCount int             `json:"total_listings_count"`
	TotalCopiesCount   int             `json:"total_copies_count"`
}

// CardSale is one historical completed sale, deduplicated against the
// per-card watermark (latest already-ingested order date).
type CardSale struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	CardID        uint            `json:"card_id" gorm:"index;not null"`
	Card          Card            `json:"card" gorm:"foreignKey:CardID"`
	OrderDate     time.Time       `json:"order_date" gorm:"index;not null"`
	PrintingName  string          `json:"printing_name"`
	ConditionName string          `json:"condition_name"`
	Quantity      int             `json:"quantity"`
	ListingType   string          `json:"listing_type"`
	PurchasePrice decimal.Decimal `json:"purchase_price" gorm:"type:decimal(10,2)"`
	ShippingPrice decimal.Decimal `json:"shipping_price" gorm:"type:decimal(10,2)"`
}

// SKUMaxProfit is one row of the ranked profit table. The whole table is
// replaced atomically on each ranking cycle.
type SKUMaxProfit struct {
	SKUID     uint            `json:"sku_id" gorm:"primaryKey"`
	SKU       SKU             `json:"sku" gorm:"foreignKey:SKUID"`
	MaxProfit decimal.Decimal `json:"max_profit" gorm:"type:decimal(10,2)"`
	NumCards  int             `json:"num_cards"`
	Cost      decimal.Decimal `json:"cost" gorm:"type:decimal(10,2)"`
}

// SyncFrequency is the fetch tier assigned to a card from its sales velocity
type SyncFrequency int

const (
	SyncFrequencyLow SyncFrequency = iota + 1
	SyncFrequencyMedium
	SyncFrequencyHigh
)

// CardSyncData stores the fetch tier per card. HIGH is roughly the top 5% of
// sellers, MEDIUM the next 45%.
type CardSyncData struct {
	CardID        uint          `json:"card_id" gorm:"primaryKey"`
	Card          Card          `json:"card" gorm:"foreignKey:CardID"`
	SyncFrequency SyncFrequency `json:"sync_frequency" gorm:"index"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
