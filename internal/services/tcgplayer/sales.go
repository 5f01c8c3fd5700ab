package tcgplayer

import (
	"context"
	"encoding/json"
	"fmt"

	"ygo-trader/internal/scheduler"
)

// 销售接口的筛选字段用的是数字编码而不是名称
var (
	conditionCodes = map[string]int{"Near Mint": 1}
	printingCodes  = map[string]int{"1st Edition": 8, "Unlimited": 7}
)

// FetchSalesPage fetches one page of completed sales for a card, newest first.
// The upstream caps pages at MaxSalesPageSize records.
func (c *Client) FetchSalesPage(ctx context.Context, req CardRequest, offset, limit int) (*SalesPage, error) {
	if limit <= 0 || limit > MaxSalesPageSize {
		limit = MaxSalesPageSize
	}

	conditions := make([]int, 0, len(req.Conditions))
	for _, name := range req.Conditions {
		conditions = append(conditions, conditionCodes[name])
	}
	variants := make([]int, 0, len(req.Printings))
	for _, name := range req.Printings {
		variants = append(variants, printingCodes[name])
	}

	payload := map[string]interface{}{
		"conditions":  conditions,
		"languages":   []int{1},
		"limit":       limit,
		"listingType": "All",
		"offset":      offset,
		"variants":    variants,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(fmt.Sprintf(baseSalesURL, req.ProductID))
	if cerr := classify(resp, err); cerr != nil {
		return nil, cerr
	}

	var envelope salesEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, scheduler.Permanent(fmt.Errorf("decode sales for product %d: %w", req.ProductID, err))
	}

	return &SalesPage{
		Sales:   envelope.Data,
		HasMore: envelope.NextPage == "Yes",
	}, nil
}
