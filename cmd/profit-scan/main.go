package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"ygo-trader/internal/config"
	"ygo-trader/internal/database"
	"ygo-trader/internal/models"
	"ygo-trader/internal/profit"
	"ygo-trader/internal/repository"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var (
	export = flag.String("export", "", "导出 xlsx 报表路径（留空则不导出）")
	top    = flag.Int("top", 100, "报表行数上限")
)

// 一次性脚本：对最新快照跑一轮利润排名，覆盖写 sku_max_profits，
// 可选导出 xlsx 报表供人工复核买入清单。
func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ 数据库连接失败: %v\n", err)
	}
	repo := repository.New(db)

	params := profit.DefaultParams()
	params.TaxRate = mustDecimal(cfg.PurchaseTaxRate)
	params.SellerRate = decimal.NewFromInt(1).Sub(mustDecimal(cfg.SellerFeeRate))
	ranker := profit.NewRanker(repo, params, cfg.RankWorkers, mustDecimal(cfg.MinProfitCutoff))

	start := time.Now()
	log.Printf("【利润扫描】启动 (workers: %d, cutoff: $%s)\n", cfg.RankWorkers, cfg.MinProfitCutoff)
	if err := ranker.Run(); err != nil {
		log.Fatalf("❌ 利润扫描失败: %v\n", err)
	}
	log.Printf("✅ 利润扫描完成 (耗时: %s)\n", time.Since(start).Round(time.Second))

	if *export == "" {
		return
	}

	rows, err := repo.TopProfits(*top)
	if err != nil {
		log.Fatalf("❌ 读取排名结果失败: %v\n", err)
	}
	if err := writeReport(*export, rows); err != nil {
		log.Fatalf("❌ 报表导出失败: %v\n", err)
	}
	log.Printf("✅ 报表已导出: %s (%d 行)\n", *export, len(rows))
}

func writeReport(path string, rows []models.SKUMaxProfit) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"SKU", "卡牌", "系列", "版本", "品相", "最大利润", "买入张数", "买入成本", "收益率", "链接"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		ratio := decimal.Zero
		if row.Cost.IsPositive() {
			ratio = row.MaxProfit.Div(row.Cost)
		}
		values := []interface{}{
			row.SKUID,
			row.SKU.Card.Name,
			row.SKU.Card.Set.Name,
			row.SKU.Printing.Name,
			row.SKU.Condition.Name,
			row.MaxProfit.StringFixed(2),
			row.NumCards,
			row.Cost.StringFixed(2),
			ratio.StringFixed(4),
			fmt.Sprintf("https://www.tcgplayer.com/product/%d", row.SKU.CardID),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	return f.SaveAs(path)
}

func mustDecimal(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Fatalf("invalid decimal config value %q: %v", value, err)
	}
	return d
}
