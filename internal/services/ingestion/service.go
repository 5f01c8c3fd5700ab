package ingestion

import (
	"context"
	"fmt"
	"time"

	"ygo-trader/internal/ingest"
	"ygo-trader/internal/models"
	"ygo-trader/internal/scheduler"
	"ygo-trader/internal/services/tcgplayer"
)

// ListingSource returns pages of currently active offers for a card request.
type ListingSource interface {
	FetchListingsPage(ctx context.Context, req tcgplayer.CardRequest, offset, size int) (*tcgplayer.ListingsPage, error)
}

// SalesSource returns pages of completed sales, newest first.
type SalesSource interface {
	FetchSalesPage(ctx context.Context, req tcgplayer.CardRequest, offset, limit int) (*tcgplayer.SalesPage, error)
}

// Store is the persistence surface for ingestion cycles.
type Store interface {
	NearMintCardRequests() ([]tcgplayer.CardRequest, error)
	SaveLadder(rows []models.SKUListing, snapshot models.SKUListingSnapshot) error
	CardIDsBySyncFrequency(freq models.SyncFrequency) ([]uint, error)
	LatestSaleDate(cardID uint) (time.Time, error)
	InsertSales(rows []models.CardSale) error
}

// Service drives fetch cycles: the scheduler owns retries and concurrency,
// the tcgplayer client owns one page, this service owns accumulation and
// persistence. Persistence failures are fatal to the cycle; fetch failures
// are isolated per card.
type Service struct {
	listings ListingSource
	sales    SalesSource
	store    Store
	sched    *scheduler.Scheduler
	pageSize int
}

func New(listings ListingSource, sales SalesSource, store Store, sched *scheduler.Scheduler, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Service{
		listings: listings,
		sales:    sales,
		store:    store,
		sched:    sched,
		pageSize: pageSize,
	}
}

// FetchAllListings runs one full listing cycle over every near-mint card.
// Each task covers one card; all of the card's pages are accumulated before
// any of its SKU snapshots persist, so no partial ladder ever lands as final.
func (s *Service) FetchAllListings(ctx context.Context) (scheduler.Stats, error) {
	requests, err := s.store.NearMintCardRequests()
	if err != nil {
		return scheduler.Stats{}, fmt.Errorf("load card requests: %w", err)
	}

	timestamp := time.Now().UTC()

	tasks := make([]scheduler.Task, len(requests))
	reqByKey := make(map[string]tcgplayer.CardRequest, len(requests))
	for i, req := range requests {
		key := fmt.Sprintf("card-%d", req.ProductID)
		tasks[i] = scheduler.Task{Key: key, Size: s.pageSize}
		reqByKey[key] = req
	}

	var persistErr error

	stats := scheduler.Run(ctx, s.sched, tasks,
		func(ctx context.Context, task scheduler.Task) (map[uint]*ingest.ListingAccumulator, error) {
			return s.fetchLadders(ctx, reqByKey[task.Key], timestamp)
		},
		func(task scheduler.Task, ladders map[uint]*ingest.ListingAccumulator) {
			if persistErr != nil {
				return // 存储已经报错，本周期直接终止落库
			}
			for _, acc := range ladders {
				snapshot := acc.Snapshot()
				if err := s.store.SaveLadder(acc.Rows(), snapshot); err != nil {
					persistErr = fmt.Errorf("persist ladder for sku %d: %w", snapshot.SKUID, err)
					return
				}
			}
		})

	if persistErr != nil {
		return stats, persistErr
	}
	return stats, nil
}

// fetchLadders pulls every page of one card's listings and routes each offer
// to its SKU accumulator via productConditionId. Adjacent pages can overlap
// when upstream state shifts mid-fetch; the accumulator tolerates that.
func (s *Service) fetchLadders(ctx context.Context, req tcgplayer.CardRequest, timestamp time.Time) (map[uint]*ingest.ListingAccumulator, error) {
	ladders := make(map[uint]*ingest.ListingAccumulator)

	offset := 0
	for {
		page, err := s.listings.FetchListingsPage(ctx, req, offset, s.pageSize)
		if err != nil {
			return nil, err
		}

		for _, listing := range page.Listings {
			skuID := uint(listing.ProductConditionID)
			acc, ok := ladders[skuID]
			if !ok {
				acc = ingest.NewListingAccumulator(skuID, timestamp)
				ladders[skuID] = acc
			}
			acc.Add(listing)
		}

		if page.IsLast(offset) || len(page.Listings) == 0 {
			break
		}
		offset += len(page.Listings)
	}

	return ladders, nil
}

// FetchSalesForTier runs one sales cycle over the cards in a fetch tier.
// Watermarks are read up front on the caller's goroutine so the fetch pool
// never competes for store connections.
func (s *Service) FetchSalesForTier(ctx context.Context, freq models.SyncFrequency) (scheduler.Stats, error) {
	cardIDs, err := s.store.CardIDsBySyncFrequency(freq)
	if err != nil {
		return scheduler.Stats{}, fmt.Errorf("load cards for tier %d: %w", freq, err)
	}
	return s.fetchSales(ctx, cardIDs)
}

// FetchAllSales runs one sales cycle over every near-mint card regardless of
// tier.
func (s *Service) FetchAllSales(ctx context.Context) (scheduler.Stats, error) {
	requests, err := s.store.NearMintCardRequests()
	if err != nil {
		return scheduler.Stats{}, fmt.Errorf("load card requests: %w", err)
	}
	cardIDs := make([]uint, len(requests))
	for i, req := range requests {
		cardIDs[i] = req.ProductID
	}
	return s.fetchSales(ctx, cardIDs)
}

func (s *Service) fetchSales(ctx context.Context, cardIDs []uint) (scheduler.Stats, error) {
	requests, err := s.store.NearMintCardRequests()
	if err != nil {
		return scheduler.Stats{}, fmt.Errorf("load card requests: %w", err)
	}
	wanted := make(map[uint]bool, len(cardIDs))
	for _, id := range cardIDs {
		wanted[id] = true
	}

	type salesTarget struct {
		req       tcgplayer.CardRequest
		watermark time.Time
	}

	targets := make(map[string]salesTarget)
	var tasks []scheduler.Task
	for _, req := range requests {
		if !wanted[req.ProductID] {
			continue
		}
		watermark, err := s.store.LatestSaleDate(req.ProductID)
		if err != nil {
			return scheduler.Stats{}, fmt.Errorf("load watermark for card %d: %w", req.ProductID, err)
		}
		key := fmt.Sprintf("card-%d", req.ProductID)
		targets[key] = salesTarget{req: req, watermark: watermark}
		tasks = append(tasks, scheduler.Task{Key: key, Size: tcgplayer.MaxSalesPageSize})
	}

	var persistErr error

	stats := scheduler.Run(ctx, s.sched, tasks,
		func(ctx context.Context, task scheduler.Task) ([]models.CardSale, error) {
			target := targets[task.Key]
			return s.fetchNewSales(ctx, target.req, target.watermark)
		},
		func(task scheduler.Task, rows []models.CardSale) {
			if persistErr != nil {
				return
			}
			if err := s.store.InsertSales(rows); err != nil {
				persistErr = fmt.Errorf("persist sales for %s: %w", task.Key, err)
			}
		})

	if persistErr != nil {
		return stats, persistErr
	}
	return stats, nil
}

// fetchNewSales pages through a card's sales newest-first and stops as soon
// as a page reaches already-ingested territory. A malformed order date is a
// permanent, non-retryable failure for the card.
func (s *Service) fetchNewSales(ctx context.Context, req tcgplayer.CardRequest, watermark time.Time) ([]models.CardSale, error) {
	var rows []models.CardSale

	offset := 0
	for {
		page, err := s.sales.FetchSalesPage(ctx, req, offset, tcgplayer.MaxSalesPageSize)
		if err != nil {
			return nil, err
		}

		kept, sawOlder, err := ingest.DedupSales(req.ProductID, watermark, page.Sales)
		if err != nil {
			return nil, scheduler.Permanent(err)
		}
		rows = append(rows, kept...)

		if sawOlder || !page.HasMore || len(page.Sales) == 0 {
			break
		}
		offset += len(page.Sales)
	}

	return rows, nil
}
