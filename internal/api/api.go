package api

import (
	"fmt"
	"net/http"
	"strconv"

	"ygo-trader/internal/repository"

	"github.com/gin-gonic/gin"
)

type APIHandler struct {
	repo *repository.Repository
	hub  *Hub
}

func SetupRoutes(r *gin.RouterGroup, repo *repository.Repository, hub *Hub) *APIHandler {
	handler := &APIHandler{repo: repo, hub: hub}

	profits := r.Group("/profits")
	{
		profits.GET("/top", handler.GetTopProfits)
	}

	skus := r.Group("/skus")
	{
		skus.GET("/:id/snapshots", handler.GetSKUSnapshots)
	}

	return handler
}

// GetTopProfits returns the current ranked profit table, capital-efficiency
// order, with marketplace links for manual review.
func (h *APIHandler) GetTopProfits(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	rows, err := h.repo.TopProfits(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profit table"})
		return
	}

	type entry struct {
		SKUID     uint   `json:"sku_id"`
		CardName  string `json:"card_name"`
		SetName   string `json:"set_name"`
		Printing  string `json:"printing"`
		Condition string `json:"condition"`
		MaxProfit string `json:"max_profit"`
		NumCards  int    `json:"num_cards"`
		Cost      string `json:"cost"`
		Link      string `json:"link"`
	}

	entries := make([]entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entry{
			SKUID:     row.SKUID,
			CardName:  row.SKU.Card.Name,
			SetName:   row.SKU.Card.Set.Name,
			Printing:  row.SKU.Printing.Name,
			Condition: row.SKU.Condition.Name,
			MaxProfit: row.MaxProfit.StringFixed(2),
			NumCards:  row.NumCards,
			Cost:      row.Cost.StringFixed(2),
			Link:      fmt.Sprintf("https://www.tcgplayer.com/product/%d", row.SKU.CardID),
		})
	}

	c.JSON(http.StatusOK, gin.H{"count": len(entries), "results": entries})
}

// GetSKUSnapshots returns a SKU's recent ladder snapshots, newest first.
func (h *APIHandler) GetSKUSnapshots(c *gin.Context) {
	skuID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sku id"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	rows, err := h.repo.SnapshotsForSKU(uint(skuID), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshots"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(rows), "results": rows})
}
