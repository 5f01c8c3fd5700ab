package syncdata

import (
	"fmt"
	"log"
	"sync"
	"time"

	"ygo-trader/internal/models"
)

// 按近一周销量给卡片分抓取档位：卖得快的卡每个周期都抓，冷门卡降频。
// HIGH 大约占 5%，MEDIUM 占 45%。

const (
	salesWindow     = 7 * 24 * time.Hour
	highThreshold   = 25
	mediumThreshold = 5
)

// Store is the persistence surface for tier assignment.
type Store interface {
	AllCardIDs() ([]uint, error)
	SalesCountSince(cardID uint, since time.Time) (int64, error)
	UpsertSyncData(cardID uint, freq models.SyncFrequency) error
}

type Service struct {
	store   Store
	workers int
}

func New(store Store, workers int) *Service {
	if workers <= 0 {
		workers = 14
	}
	return &Service{store: store, workers: workers}
}

// AssignAll recomputes the fetch tier for every catalog card from its trailing
// 7-day sales count, in parallel over disjoint contiguous segments. A failed
// card keeps its previous tier.
func (s *Service) AssignAll() error {
	cardIDs, err := s.store.AllCardIDs()
	if err != nil {
		return fmt.Errorf("load card ids: %w", err)
	}
	since := time.Now().UTC().Add(-salesWindow)

	workers := s.workers
	if workers > len(cardIDs) {
		workers = len(cardIDs)
	}
	if workers == 0 {
		return nil
	}

	var wg sync.WaitGroup
	size := (len(cardIDs) + workers - 1) / workers

	for offset := 0; offset < len(cardIDs); offset += size {
		end := offset + size
		if end > len(cardIDs) {
			end = len(cardIDs)
		}

		wg.Add(1)
		go func(segment []uint) {
			defer wg.Done()
			for _, cardID := range segment {
				if err := s.assign(cardID, since); err != nil {
					log.Printf("[同步分档] 卡片 %d 分档失败，保留旧档位: %v\n", cardID, err)
				}
			}
		}(cardIDs[offset:end])
	}
	wg.Wait()

	log.Printf("[同步分档] 已重新计算 %d 张卡片的抓取档位\n", len(cardIDs))
	return nil
}

func (s *Service) assign(cardID uint, since time.Time) error {
	count, err := s.store.SalesCountSince(cardID, since)
	if err != nil {
		return err
	}

	freq := models.SyncFrequencyLow
	switch {
	case count >= highThreshold:
		freq = models.SyncFrequencyHigh
	case count >= mediumThreshold:
		freq = models.SyncFrequencyMedium
	}

	return s.store.UpsertSyncData(cardID, freq)
}
