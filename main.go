package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"ygo-trader/internal/api"
	"ygo-trader/internal/config"
	"ygo-trader/internal/database"
	"ygo-trader/internal/models"
	"ygo-trader/internal/profit"
	"ygo-trader/internal/repository"
	"ygo-trader/internal/scheduler"
	"ygo-trader/internal/services/ingestion"
	"ygo-trader/internal/services/syncdata"
	"ygo-trader/internal/services/tcgplayer"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	repo := repository.New(db)
	client := tcgplayer.NewClient()

	fetchSched := scheduler.New(scheduler.Config{
		Workers:      cfg.FetchWorkers,
		PageSize:     cfg.ListingsPage,
		RetryBackoff: cfg.RetryBackoff,
		MaxRetries:   cfg.MaxRetries,
	})
	ingestSvc := ingestion.New(client, client, repo, fetchSched, cfg.ListingsPage)

	params := profit.DefaultParams()
	params.TaxRate = mustDecimal(cfg.PurchaseTaxRate)
	params.SellerRate = decimal.NewFromInt(1).Sub(mustDecimal(cfg.SellerFeeRate))
	ranker := profit.NewRanker(repo, params, cfg.RankWorkers, mustDecimal(cfg.MinProfitCutoff))

	syncSvc := syncdata.New(repo, cfg.RankWorkers)
	hub := api.NewHub()

	runner := &cycleRunner{
		ingest: ingestSvc,
		ranker: ranker,
		tiers:  syncSvc,
		hub:    hub,
	}

	// 定时全量同步
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %dh", cfg.SyncIntervalHour), runner.RunCycle); err != nil {
		log.Fatalf("❌ 定时任务注册失败: %v\n", err)
	}
	c.Start()
	log.Printf("✅ 同步周期已注册: 每 %d 小时一轮 (PID: %d)\n", cfg.SyncIntervalHour, os.Getpid())

	// API 服务
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws", func(ctx *gin.Context) {
		hub.Serve(ctx.Writer, ctx.Request)
	})
	api.SetupRoutes(r.Group("/api"), repo, hub)

	go func() {
		if err := r.Run(":" + cfg.Port); err != nil {
			log.Fatalf("❌ API 服务启动失败: %v\n", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("🛑 收到关闭信号，正在优雅关闭...")
	c.Stop()
}

// cycleRunner serializes sync cycles: if the previous cycle is still running
// when cron fires again, the new tick is skipped.
type cycleRunner struct {
	mu      sync.Mutex
	running bool
	cycle   int

	ingest *ingestion.Service
	ranker *profit.Ranker
	tiers  *syncdata.Service
	hub    *api.Hub
}

func (r *cycleRunner) RunCycle() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		log.Println("[同步周期] 上一轮还在运行，跳过本次触发")
		return
	}
	r.running = true
	r.cycle++
	cycle := r.cycle
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	ctx := context.Background()
	log.Printf("[同步周期 #%d] 开始\n", cycle)

	stats, err := r.ingest.FetchAllListings(ctx)
	r.publish("listings", stats, err)
	if err != nil {
		// 存储挂了属于致命错误，本周期直接终止，不做部分提交
		log.Printf("[同步周期 #%d] 列表抓取失败，终止本周期: %v\n", cycle, err)
		return
	}

	// HIGH 档每轮抓，MEDIUM 每两轮，LOW 每六轮
	salesTiers := []models.SyncFrequency{models.SyncFrequencyHigh}
	if cycle%2 == 0 {
		salesTiers = append(salesTiers, models.SyncFrequencyMedium)
	}
	if cycle%6 == 0 {
		salesTiers = append(salesTiers, models.SyncFrequencyLow)
	}
	for _, tier := range salesTiers {
		stats, err := r.ingest.FetchSalesForTier(ctx, tier)
		r.publish("sales", stats, err)
		if err != nil {
			log.Printf("[同步周期 #%d] 销售抓取失败，终止本周期: %v\n", cycle, err)
			return
		}
	}

	if err := r.tiers.AssignAll(); err != nil {
		log.Printf("[同步周期 #%d] 分档失败: %v\n", cycle, err)
	}

	if err := r.ranker.Run(); err != nil {
		log.Printf("[同步周期 #%d] 利润排名失败: %v\n", cycle, err)
		r.publish("ranking", scheduler.Stats{}, err)
		return
	}
	r.publish("ranking", scheduler.Stats{}, nil)

	log.Printf("[同步周期 #%d] 完成\n", cycle)
}

func (r *cycleRunner) publish(stage string, stats scheduler.Stats, err error) {
	event := api.CycleEvent{
		Stage:     stage,
		Succeeded: stats.Succeeded,
		Retried:   stats.Retried,
		Abandoned: stats.Abandoned,
	}
	if err != nil {
		event.Message = err.Error()
	}
	r.hub.Publish(event)
}

func mustDecimal(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Fatalf("invalid decimal config value %q: %v", value, err)
	}
	return d
}
