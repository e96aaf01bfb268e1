package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"cryptotrack-backend/models"
	"cryptotrack-backend/repository"
	"cryptotrack-backend/services/tracker"

	"github.com/gin-gonic/gin"
)

// SubscriberController handles subscriber profile requests
type SubscriberController struct {
	repo          *repository.Repository
	quoteCurrency string
}

// NewSubscriberController creates a new subscriber controller
func NewSubscriberController(repo *repository.Repository, quoteCurrency string) *SubscriberController {
	return &SubscriberController{repo: repo, quoteCurrency: quoteCurrency}
}

// GetSubscribers returns all subscribers with their tracked assets
// GET /api/v1/subscribers
func (sc *SubscriberController) GetSubscribers(c *gin.Context) {
	subscribers, err := sc.repo.ListSubscribersWithTrackedAssets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscribers"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subscribers})
}

// GetSubscriber returns one subscriber with tracked assets
// GET /api/v1/subscribers/:id
func (sc *SubscriberController) GetSubscriber(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber id"})
		return
	}

	subscriber, err := sc.repo.GetSubscriber(uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscriber not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscriber"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subscriber})
}

// CreateSubscriber registers a new subscriber
// POST /api/v1/subscribers
func (sc *SubscriberController) CreateSubscriber(c *gin.Context) {
	var req struct {
		ID              uint   `json:"id" binding:"required"`
		Name            string `json:"name" binding:"required"`
		IntervalMinutes int    `json:"interval_minutes" binding:"required"`
		AssetIDs        []uint `json:"asset_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id, name and interval_minutes are required"})
		return
	}

	if !models.IsValidInterval(req.IntervalMinutes) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "Invalid notification interval",
			"valid_intervals": models.ValidIntervals(),
		})
		return
	}

	subscriber, err := sc.repo.CreateSubscriber(req.ID, req.Name, req.IntervalMinutes, req.AssetIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscriber"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": subscriber})
}

// UpdateSubscriber updates a subscriber's name and/or interval
// PATCH /api/v1/subscribers/:id
func (sc *SubscriberController) UpdateSubscriber(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber id"})
		return
	}

	var req struct {
		Name            *string `json:"name"`
		IntervalMinutes *int    `json:"interval_minutes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.IntervalMinutes != nil && !models.IsValidInterval(*req.IntervalMinutes) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "Invalid notification interval",
			"valid_intervals": models.ValidIntervals(),
		})
		return
	}

	subscriber, err := sc.repo.UpdateSubscriber(uint(id), req.Name, req.IntervalMinutes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscriber not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscriber"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subscriber})
}

// SetTrackedAssets replaces a subscriber's tracked-asset set
// PUT /api/v1/subscribers/:id/assets
func (sc *SubscriberController) SetTrackedAssets(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber id"})
		return
	}

	var req struct {
		AssetIDs []uint `json:"asset_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := sc.repo.SetTrackedAssets(uint(id), req.AssetIDs); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscriber not found"})
			return
		}
		if errors.Is(err, repository.ErrStorageUnavailable) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tracked assets"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tracked assets updated"})
}

// DeleteSubscriber removes a subscriber
// DELETE /api/v1/subscribers/:id
func (sc *SubscriberController) DeleteSubscriber(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber id"})
		return
	}

	if err := sc.repo.DeleteSubscriber(uint(id)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscriber not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete subscriber"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Subscriber deleted"})
}

// GetPriceList returns the subscriber's current price summary, the same
// lines the notification dispatcher sends
// GET /api/v1/subscribers/:id/prices
func (sc *SubscriberController) GetPriceList(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid subscriber id"})
		return
	}

	subscriber, err := sc.repo.GetSubscriber(uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscriber not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscriber"})
		return
	}

	assetIDs := make([]uint, 0, len(subscriber.TrackedAssets))
	for _, asset := range subscriber.TrackedAssets {
		assetIDs = append(assetIDs, asset.ID)
	}

	latest := map[uint]models.PricePoint{}
	if len(assetIDs) > 0 {
		latest, err = sc.repo.LatestPricePerAsset(assetIDs...)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch latest prices"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"text": tracker.FormatPriceLines(subscriber.TrackedAssets, latest, sc.quoteCurrency),
	})
}
