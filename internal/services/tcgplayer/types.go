package tcgplayer

import "github.com/shopspring/decimal"

// 显式类型化市场API的请求/响应结构，反序列化边界做校验，
// 不再用 map 传松散字段

// CardRequest identifies one fetch target: a product plus the printings and
// condition that make up its tracked SKUs.
type CardRequest struct {
	ProductID  uint
	Conditions []string
	Printings  []string
}

// ListingResponse is one sell offer as returned by the listings endpoint.
type ListingResponse struct {
	ListingID          int64           `json:"listingId"`
	ProductConditionID int64           `json:"productConditionId"`
	VerifiedSeller     bool            `json:"verifiedSeller"`
	GoldSeller         bool            `json:"goldSeller"`
	Quantity           int             `json:"quantity"`
	SellerName         string          `json:"sellerName"`
	Price              decimal.Decimal `json:"price"`
	// 官方接口同时返回 shippingPrice 和 sellerShippingPrice，
	// 本仓库统一用 sellerShippingPrice 作为到手价的运费口径
	SellerShippingPrice decimal.Decimal `json:"sellerShippingPrice"`
}

// ListingsPage is one page of the listings search plus its aggregations.
type ListingsPage struct {
	Listings     []ListingResponse
	TotalResults int
	CopiesCount  int
}

// IsLast reports whether this page completes the ladder given its offset.
func (p *ListingsPage) IsLast(offset int) bool {
	return offset+len(p.Listings) >= p.TotalResults
}

// SaleResponse is one completed sale. OrderDate stays raw here; parsing is the
// ingestion layer's job and a parse failure there is a data-integrity error.
type SaleResponse struct {
	Condition     string          `json:"condition"`
	Variant       string          `json:"variant"`
	Language      string          `json:"language"`
	Quantity      int             `json:"quantity"`
	ListingType   string          `json:"listingType"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	ShippingPrice decimal.Decimal `json:"shippingPrice"`
	OrderDate     string          `json:"orderDate"`
}

// SalesPage is one page of the latest-sales endpoint, newest first.
type SalesPage struct {
	Sales   []SaleResponse
	HasMore bool
}

type listingsEnvelope struct {
	Errors  []string `json:"errors"`
	Results []struct {
		TotalResults int               `json:"totalResults"`
		Results      []ListingResponse `json:"results"`
		Aggregations struct {
			Quantity []struct {
				Value int `json:"value"`
				Count int `json:"count"`
			} `json:"quantity"`
		} `json:"aggregations"`
	} `json:"results"`
}

type salesEnvelope struct {
	NextPage string         `json:"nextPage"`
	Data     []SaleResponse `json:"data"`
}
