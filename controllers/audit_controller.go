package controllers

import (
	"net/http"
	"strconv"

	"cryptotrack-backend/services/audit"

	"github.com/gin-gonic/gin"
)

// AuditController exposes the delivery audit log
type AuditController struct {
	deliveryLog *audit.Log
}

// NewAuditController creates a new audit controller
func NewAuditController(deliveryLog *audit.Log) *AuditController {
	return &AuditController{deliveryLog: deliveryLog}
}

// GetDeliveryLog returns recent delivery outcomes, newest first
// GET /api/v1/deliveries
func (ac *AuditController) GetDeliveryLog(c *gin.Context) {
	if ac.deliveryLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Delivery audit log not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := ac.deliveryLog.RecentEntries(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch delivery log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}
