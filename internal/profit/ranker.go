package profit

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"ygo-trader/internal/models"

	"github.com/shopspring/decimal"
)

// Store is the persistence surface the ranker needs. The gorm implementation
// lives in internal/repository.
type Store interface {
	// ListingSKUIDs returns every SKU id that has listings in the latest cycle.
	ListingSKUIDs() ([]uint, error)
	// LatestLadders returns the newest full ladder per SKU id.
	LatestLadders(skuIDs []uint) (map[uint][]models.SKUListing, error)
	// PurchaseLimits returns the copies-sold-derived purchase cap per SKU id.
	// A SKU absent from the map is scanned uncapped.
	PurchaseLimits(skuIDs []uint) (map[uint]int, error)
	// ReplaceMaxProfits atomically swaps the whole profit table for the new
	// ranked set. Either the full new set becomes visible or the old one stays.
	ReplaceMaxProfits(results []models.SKUMaxProfit) error
}

// Ranker recomputes the profit table wholesale on each cycle. Its parallelism
// is bounded by the store's connection budget, not the network, so NumWorkers
// is independent of (and smaller than) the fetch concurrency.
type Ranker struct {
	store     Store
	params    Params
	workers   int
	batchSize int
	cutoff    decimal.Decimal
}

func NewRanker(store Store, params Params, workers int, cutoff decimal.Decimal) *Ranker {
	if workers <= 0 {
		workers = 14
	}
	return &Ranker{
		store:     store,
		params:    params,
		workers:   workers,
		batchSize: 1000,
		cutoff:    cutoff,
	}
}

// Run computes profit for every tracked SKU and persists the ranked table.
// SKU ids are partitioned into disjoint contiguous segments, one per worker;
// a segment that fails is logged and simply missing from this cycle — the
// next cycle recomputes from fresh data anyway.
func (r *Ranker) Run() error {
	skuIDs, err := r.store.ListingSKUIDs()
	if err != nil {
		return fmt.Errorf("load sku ids: %w", err)
	}
	sort.Slice(skuIDs, func(i, j int) bool { return skuIDs[i] < skuIDs[j] })

	segments := splitSegments(skuIDs, r.workers)

	var wg sync.WaitGroup
	partials := make([][]models.SKUMaxProfit, len(segments))

	for i, segment := range segments {
		if len(segment) == 0 {
			continue
		}
		wg.Add(1)
		go func(i int, segment []uint) {
			defer wg.Done()
			results, err := r.computeSegment(segment)
			if err != nil {
				log.Printf("[利润排名] 分段 %d（%d 个SKU）计算失败，本周期跳过: %v\n", i, len(segment), err)
				return
			}
			partials[i] = results
		}(i, segment)
	}
	wg.Wait()

	var results []models.SKUMaxProfit
	for _, partial := range partials {
		results = append(results, partial...)
	}

	sortByRatio(results)

	if err := r.store.ReplaceMaxProfits(results); err != nil {
		return fmt.Errorf("replace profit table: %w", err)
	}

	log.Printf("[利润排名] 本周期入榜 %d / %d 个SKU\n", len(results), len(skuIDs))
	return nil
}

// computeSegment loads ladders batch by batch and scans them sequentially.
func (r *Ranker) computeSegment(skuIDs []uint) ([]models.SKUMaxProfit, error) {
	var results []models.SKUMaxProfit

	for offset := 0; offset < len(skuIDs); offset += r.batchSize {
		end := offset + r.batchSize
		if end > len(skuIDs) {
			end = len(skuIDs)
		}
		batch := skuIDs[offset:end]

		ladders, err := r.store.LatestLadders(batch)
		if err != nil {
			return nil, err
		}
		limits, err := r.store.PurchaseLimits(batch)
		if err != nil {
			return nil, err
		}

		for _, skuID := range batch {
			ladder := ladders[skuID]
			if len(ladder) == 0 {
				continue
			}

			var data ProfitData
			if limit, ok := limits[skuID]; ok {
				data = Compute(ladder, limit, r.params)
			} else {
				data = ComputeUncapped(ladder, r.params)
			}

			if data.MaxProfit.GreaterThanOrEqual(r.cutoff) {
				results = append(results, models.SKUMaxProfit{
					SKUID:     skuID,
					MaxProfit: data.MaxProfit,
					NumCards:  data.NumCards,
					Cost:      data.Cost,
				})
			}
		}
	}

	return results, nil
}

// sortByRatio ranks by profit-to-cost ratio descending — capital efficiency
// over absolute profit — with SKU id ascending as the tie break.
func sortByRatio(results []models.SKUMaxProfit) {
	ratio := func(r models.SKUMaxProfit) decimal.Decimal {
		if r.Cost.IsZero() {
			return decimal.Zero
		}
		return r.MaxProfit.Div(r.Cost)
	}
	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := ratio(results[i]), ratio(results[j])
		if !ri.Equal(rj) {
			return ri.GreaterThan(rj)
		}
		return results[i].SKUID < results[j].SKUID
	})
}

// splitSegments partitions ids into at most n disjoint contiguous segments.
func splitSegments(ids []uint, n int) [][]uint {
	if n <= 0 {
		n = 1
	}
	if n > len(ids) {
		n = len(ids)
	}
	segments := make([][]uint, 0, n)
	if n == 0 {
		return segments
	}

	size := len(ids) / n
	extra := len(ids) % n
	start := 0
	for i := 0; i < n; i++ {
		length := size
		if i < extra {
			length++
		}
		segments = append(segments, ids[start:start+length])
		start += length
	}
	return segments
}
