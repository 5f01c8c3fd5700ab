package main

import (
	"context"
	"log"
	"time"

	"ygo-trader/internal/config"
	"ygo-trader/internal/database"
	"ygo-trader/internal/repository"
	"ygo-trader/internal/scheduler"
	"ygo-trader/internal/services/ingestion"
	"ygo-trader/internal/services/tcgplayer"

	"github.com/joho/godotenv"
)

// 一次性脚本：全量抓取所有卡牌的在售列表并写入快照。
// 守护进程会按周期自动执行同样的流程，这个工具用于手动补采。
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	log.Printf("【列表采集】启动 (workers: %d, backoff: %s)\n", cfg.FetchWorkers, cfg.RetryBackoff)

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ 数据库连接失败: %v\n", err)
	}

	repo := repository.New(db)
	client := tcgplayer.NewClient()
	sched := scheduler.New(scheduler.Config{
		Workers:      cfg.FetchWorkers,
		PageSize:     cfg.ListingsPage,
		RetryBackoff: cfg.RetryBackoff,
		MaxRetries:   cfg.MaxRetries,
	})
	svc := ingestion.New(client, client, repo, sched, cfg.ListingsPage)

	start := time.Now()
	stats, err := svc.FetchAllListings(context.Background())
	if err != nil {
		log.Fatalf("❌ 列表采集失败: %v\n", err)
	}

	log.Printf("✅ 列表采集完成 (耗时: %s)\n", time.Since(start).Round(time.Second))
	log.Printf("   成功: %d, 重试: %d, 放弃: %d\n", stats.Succeeded, stats.Retried, stats.Abandoned)
	for _, f := range stats.Failures {
		log.Printf("   ⚠️ card=%s offset=%d: %v\n", f.Task.Key, f.Task.Offset, f.Err)
	}
}
