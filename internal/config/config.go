package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string
	Port        string
	Environment string

	// 抓取并发配置
	FetchWorkers int           // 网络抓取并发（受限于市场API速率）
	RetryBackoff time.Duration // 抓取失败后的重试等待
	MaxRetries   int           // 单个任务最大重试次数
	ListingsPage int           // 列表抓取单页大小

	// 排名并发配置
	RankWorkers int // 必须不超过数据库连接预算（5 常驻 + 10 溢出 = 14 + 调度器 1）

	// 利润模型参数
	PurchaseTaxRate  string // 买入税率（加州销售税近似）
	SellerFeeRate    string // 平台抽成后到手比例的补数，到手 = 1 - SellerFeeRate
	MinProfitCutoff  string // 入榜最小利润（美元）
	SyncIntervalHour int    // 全量同步周期（小时）
}

func Load() *Config {
	defaultDSN := "root:ygo@tcp(127.0.0.1:3306)/ygo_trader?charset=utf8mb4&parseTime=True&loc=UTC"

	return &Config{
		DatabaseURL: getEnv("DATABASE_URL", defaultDSN),
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		FetchWorkers: getEnvInt("FETCH_WORKERS", 48),
		RetryBackoff: time.Duration(getEnvInt("RETRY_BACKOFF_SEC", 300)) * time.Second,
		MaxRetries:   getEnvInt("MAX_RETRIES", 5),
		ListingsPage: getEnvInt("LISTINGS_PAGE_SIZE", 50),

		RankWorkers: getEnvInt("RANK_WORKERS", 14),

		PurchaseTaxRate:  getEnv("PURCHASE_TAX_RATE", "0.10"),
		SellerFeeRate:    getEnv("SELLER_FEE_RATE", "0.15"),
		MinProfitCutoff:  getEnv("MIN_PROFIT_CUTOFF", "1"),
		SyncIntervalHour: getEnvInt("SYNC_INTERVAL_HOURS", 4),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
