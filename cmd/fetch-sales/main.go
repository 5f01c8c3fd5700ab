package main

import (
	"context"
	"flag"
	"log"
	"time"

	"ygo-trader/internal/config"
	"ygo-trader/internal/database"
	"ygo-trader/internal/models"
	"ygo-trader/internal/repository"
	"ygo-trader/internal/scheduler"
	"ygo-trader/internal/services/ingestion"
	"ygo-trader/internal/services/tcgplayer"

	"github.com/joho/godotenv"
)

var tier = flag.String("tier", "all", "同步档位: all / high / medium / low")

// 一次性脚本：按档位抓取近期成交记录（水位线去重，只落库新成交）。
func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	log.Printf("【成交采集】启动 (tier: %s, workers: %d)\n", *tier, cfg.FetchWorkers)

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ 数据库连接失败: %v\n", err)
	}

	repo := repository.New(db)
	client := tcgplayer.NewClient()
	sched := scheduler.New(scheduler.Config{
		Workers:      cfg.FetchWorkers,
		PageSize:     1, // 每张卡一个任务，分页在任务内部完成
		RetryBackoff: cfg.RetryBackoff,
		MaxRetries:   cfg.MaxRetries,
	})
	svc := ingestion.New(client, client, repo, sched, cfg.ListingsPage)

	start := time.Now()
	var stats scheduler.Stats
	switch *tier {
	case "all":
		stats, err = svc.FetchAllSales(context.Background())
	case "high":
		stats, err = svc.FetchSalesForTier(context.Background(), models.SyncFrequencyHigh)
	case "medium":
		stats, err = svc.FetchSalesForTier(context.Background(), models.SyncFrequencyMedium)
	case "low":
		stats, err = svc.FetchSalesForTier(context.Background(), models.SyncFrequencyLow)
	default:
		log.Fatalf("❌ 未知档位: %s\n", *tier)
	}
	if err != nil {
		log.Fatalf("❌ 成交采集失败: %v\n", err)
	}

	log.Printf("✅ 成交采集完成 (耗时: %s)\n", time.Since(start).Round(time.Second))
	log.Printf("   成功: %d, 重试: %d, 放弃: %d\n", stats.Succeeded, stats.Retried, stats.Abandoned)
	for _, f := range stats.Failures {
		log.Printf("   ⚠️ card=%s: %v\n", f.Task.Key, f.Err)
	}
}
