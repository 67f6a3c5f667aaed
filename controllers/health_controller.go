package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/princinho/authgate/database"
	"github.com/princinho/authgate/dto"
)

// StoreStatus reports store connectivity. *database.Monitor satisfies it.
type StoreStatus interface {
	State() database.State
}

// GET /
func Welcome() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.MessageResponse{Msg: "authentication API"})
	}
}

// GET /api/health. Always 200 while the process serves; dbConnected carries
// the store state.
func Health(status StoreStatus, started time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		state := status.State()
		now := time.Now()
		c.JSON(http.StatusOK, dto.HealthResponse{
			Status:      "UP",
			DBConnected: state == database.StateConnected,
			DBState:     state.String(),
			Uptime:      now.Sub(started).Seconds(),
			Timestamp:   now.UTC().Format(time.RFC3339),
		})
	}
}
