package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/leadflow/crm-backend/internal/api/domain"
	"github.com/leadflow/crm-backend/internal/api/dto"
	"github.com/leadflow/crm-backend/internal/queue"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LeadHandler handles lead-related HTTP requests
type LeadHandler struct {
	logger  *slog.Logger
	storage LeadStorage
	queue   EventQueue
}

// NewLeadHandler creates a new LeadHandler instance
func NewLeadHandler(deps *Dependencies) *LeadHandler {
	return &LeadHandler{
		logger:  deps.Logger,
		storage: deps.LeadStorage,
		queue:   deps.Queue,
	}
}

// GetLead handles GET /api/v1/leads/:lead_id
func (h *LeadHandler) GetLead(c *gin.Context) {
	leadID := c.Param("lead_id")
	if _, err := uuid.Parse(leadID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "lead_id must be a valid UUID",
		})
		return
	}

	lead, err := h.storage.GetLead(c.Request.Context(), leadID)
	if err != nil {
		if errors.Is(err, domain.ErrLeadNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Lead not found",
			})
			return
		}
		h.logger.Error("Failed to get lead", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get lead",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                   lead.ID,
		"first_name":           lead.FirstName,
		"last_name":            lead.LastName,
		"email":                lead.Email.String,
		"phone":                lead.Phone.String,
		"status":               lead.Status,
		"converted_contact_id": lead.ConvertedContactID.String,
		"created_at":           lead.CreatedAt,
		"updated_at":           lead.UpdatedAt,
	})
}

// ConvertLead handles POST /api/v1/leads/:lead_id/convert
//
// The conversion itself is atomic. The follow-up notification enqueue is
// best-effort: a queue outage never fails a conversion that committed.
func (h *LeadHandler) ConvertLead(c *gin.Context) {
	leadID := c.Param("lead_id")
	if _, err := uuid.Parse(leadID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "lead_id must be a valid UUID",
		})
		return
	}

	// Body is optional; only the performer id is read from it.
	var req dto.ConvertLeadRequest
	_ = c.ShouldBindJSON(&req)

	result, err := h.storage.ConvertLead(c.Request.Context(), leadID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLeadNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Lead not found",
			})
		case errors.Is(err, domain.ErrLeadAlreadyConverted):
			// Distinct status so clients can tell a duplicate submit from a
			// real failure.
			c.JSON(http.StatusConflict, gin.H{
				"error": "Lead is already converted",
			})
		default:
			h.logger.Error("Failed to convert lead",
				slog.String("lead_id", leadID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to convert lead",
			})
		}
		return
	}

	if _, err := h.queue.Enqueue(c.Request.Context(), queue.EventLeadConverted, map[string]interface{}{
		"leadId":      result.LeadID,
		"contactId":   result.ContactID,
		"performerId": req.PerformerID,
	}); err != nil {
		h.logger.Warn("Notification enqueue failed (non-blocking)",
			slog.String("lead_id", leadID),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
		"message": "Lead converted to contact successfully",
	})
}
