package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadmachine_backend/internal/outreach/service"
	"leadmachine_backend/internal/outreach/transport"
	"leadmachine_backend/platform/httpkit"
	"leadmachine_backend/platform/validator"
)

// Handler handles HTTP requests for outreach sequences.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new outreach handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ActivateSequence plans the outreach sequence for a qualified lead.
// POST /api/v1/leads/:id/sequence
func (h *Handler) ActivateSequence(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return
	}

	created, err := h.svc.ActivateSequence(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := make([]transport.EmailResponse, 0, len(created))
	for _, email := range created {
		resp = append(resp, transport.ToEmailResponse(email))
	}
	httpkit.JSON(c, http.StatusCreated, resp)
}

// ListByLead retrieves a lead's sequence.
// GET /api/v1/leads/:id/emails
func (h *Handler) ListByLead(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return
	}

	emails, err := h.svc.ListByLead(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := make([]transport.EmailResponse, 0, len(emails))
	for _, email := range emails {
		resp = append(resp, transport.ToEmailResponse(email))
	}
	httpkit.OK(c, resp)
}

// GetByID retrieves a single email including its body.
// GET /api/v1/emails/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid email ID", nil)
		return
	}

	email, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToEmailDetailResponse(email))
}

// Status reports queue depth, today's budget usage and the send window.
// GET /api/v1/outreach/status
func (h *Handler) Status(c *gin.Context) {
	status, err := h.svc.Status(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueStatusResponse(status))
}

// Bounce records a delivery failure reported by the mail provider.
// POST /api/v1/emails/:id/bounce
func (h *Handler) Bounce(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid email ID", nil)
		return
	}

	var req transport.BounceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	if err := h.svc.HandleBounce(c.Request.Context(), id, req.Reason); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "BOUNCED"})
}
