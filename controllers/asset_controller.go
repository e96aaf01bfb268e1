package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"cryptotrack-backend/repository"
	"cryptotrack-backend/services/tracker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AssetController handles asset and price-history requests
type AssetController struct {
	repo     *repository.Repository
	pipeline *tracker.Service
}

// NewAssetController creates a new asset controller
func NewAssetController(repo *repository.Repository, pipeline *tracker.Service) *AssetController {
	return &AssetController{repo: repo, pipeline: pipeline}
}

// GetAssets returns all tracked assets
// GET /api/v1/assets
func (ac *AssetController) GetAssets(c *gin.Context) {
	assets, err := ac.repo.ListAssets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch assets"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": assets})
}

// CreateAsset creates a new asset, optionally with an initial price
// POST /api/v1/assets
func (ac *AssetController) CreateAsset(c *gin.Context) {
	var req struct {
		Name         string `json:"name" binding:"required"`
		Symbol       string `json:"symbol" binding:"required"`
		InitialPrice string `json:"initial_price"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and symbol are required"})
		return
	}

	if _, err := ac.repo.GetAssetBySymbol(req.Symbol); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Asset with this symbol already exists"})
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create asset"})
		return
	}

	var initialPrice *decimal.Decimal
	if req.InitialPrice != "" {
		price, err := decimal.NewFromString(req.InitialPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid initial price"})
			return
		}
		initialPrice = &price
	}

	asset, err := ac.repo.CreateAsset(req.Name, req.Symbol, initialPrice)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create asset"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": asset})
}

// DeleteAsset removes an asset and its price history
// DELETE /api/v1/assets/:id
func (ac *AssetController) DeleteAsset(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset id"})
		return
	}

	if err := ac.repo.DeleteAsset(uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete asset"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Asset deleted"})
}

// GetLatestPrices returns the latest price point per asset
// GET /api/v1/assets/latest
func (ac *AssetController) GetLatestPrices(c *gin.Context) {
	latest, err := ac.repo.LatestPricePerAsset()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch latest prices"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": latest})
}

// GetPriceHistory returns the full price history of one asset
// GET /api/v1/assets/:id/prices
func (ac *AssetController) GetPriceHistory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset id"})
		return
	}

	points, err := ac.repo.PriceHistory(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch price history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": points, "count": len(points)})
}

// DeletePriceHistory removes all price points of one asset
// DELETE /api/v1/assets/:id/prices
func (ac *AssetController) DeletePriceHistory(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset id"})
		return
	}

	deleted, err := ac.repo.DeletePriceHistory(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete price history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Price history deleted", "deleted": deleted})
}

// TriggerSync starts one refresh-and-notify cycle immediately
// POST /api/v1/sync
func (ac *AssetController) TriggerSync(c *gin.Context) {
	if ac.pipeline.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "Refresh cycle already in progress"})
		return
	}

	go func() {
		if err := ac.pipeline.RunPipeline(context.Background()); err != nil {
			log.Printf("Manual refresh cycle failed: %v", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "Refresh cycle started"})
}
