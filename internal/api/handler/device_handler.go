package handler

import (
	"log/slog"
	"net/http"

	"github.com/leadflow/crm-backend/internal/api/dto"
	"github.com/leadflow/crm-backend/internal/push"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DeviceHandler handles device token registration
type DeviceHandler struct {
	logger *slog.Logger
	tokens *push.Store
}

// NewDeviceHandler creates a new DeviceHandler instance
func NewDeviceHandler(deps *Dependencies) *DeviceHandler {
	return &DeviceHandler{
		logger: deps.Logger,
		tokens: deps.TokenStore,
	}
}

// RegisterToken handles PUT /api/v1/users/:user_id/device-token
// A user has at most one active token; a later registration supersedes it.
func (h *DeviceHandler) RegisterToken(c *gin.Context) {
	userID := c.Param("user_id")
	if _, err := uuid.Parse(userID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "user_id must be a valid UUID",
		})
		return
	}

	var req dto.RegisterTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.tokens.UpsertToken(c.Request.Context(), userID, req.Token); err != nil {
		h.logger.Error("Failed to register device token",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to register device token",
		})
		return
	}

	c.Status(http.StatusNoContent)
}
