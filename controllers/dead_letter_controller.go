package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DeadLetterHandler accepts dead letters forwarded by operators or other
// services and records them.
func DeadLetterHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer record(c, "dead_letter")

		var deadLetter struct {
			TransactionID string `json:"transaction_id" binding:"required"`
			Reason        string `json:"reason"`
		}
		if err := c.ShouldBindJSON(&deadLetter); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		logger.Warn("dead letter received",
			zap.String("transaction_id", deadLetter.TransactionID),
			zap.String("reason", deadLetter.Reason))
		c.JSON(http.StatusOK, gin.H{"message": "Dead letter processed"})
	}
}
