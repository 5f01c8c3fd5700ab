package tcgplayer

import (
	"context"
	"encoding/json"
	"fmt"

	"ygo-trader/internal/scheduler"
)

// FetchListingsPage fetches one page of active listings for a card request,
// live sellers only, quantity ≥ 1, sorted by price+shipping ascending.
// Idempotent: re-fetching the same page is always safe, though upstream state
// can shift between pages, so adjacent pages may overlap.
func (c *Client) FetchListingsPage(ctx context.Context, req CardRequest, offset, size int) (*ListingsPage, error) {
	payload := map[string]interface{}{
		"aggregations": []string{"listingType"},
		"context":      map[string]interface{}{"shippingCountry": "US", "cart": map[string]interface{}{}},
		"filters": map[string]interface{}{
			"term": map[string]interface{}{
				"sellerStatus": "Live",
				"channelId":    0,
				"language":     []string{"English"},
				"condition":    req.Conditions,
				"listingType":  []string{"standard"},
				"printing":     req.Printings,
			},
			"range":   map[string]interface{}{"quantity": map[string]interface{}{"gte": 1}},
			"exclude": map[string]interface{}{"channelExclusion": 0},
		},
		"from": offset,
		"size": size,
		"sort": map[string]interface{}{"field": "price+shipping", "order": "asc"},
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(fmt.Sprintf(baseListingsURL, req.ProductID))
	if cerr := classify(resp, err); cerr != nil {
		return nil, cerr
	}

	var envelope listingsEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, scheduler.Permanent(fmt.Errorf("decode listings for product %d: %w", req.ProductID, err))
	}
	if len(envelope.Errors) > 0 {
		return nil, scheduler.Permanent(fmt.Errorf("listings for product %d: %v", req.ProductID, envelope.Errors))
	}
	if len(envelope.Results) == 0 {
		return nil, scheduler.Permanent(fmt.Errorf("listings for product %d: empty results envelope", req.ProductID))
	}

	result := envelope.Results[0]

	copies := 0
	for _, bucket := range result.Aggregations.Quantity {
		copies += bucket.Value * bucket.Count
	}

	return &ListingsPage{
		Listings:     result.Results,
		TotalResults: result.TotalResults,
		CopiesCount:  copies,
	}, nil
}
