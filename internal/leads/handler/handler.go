package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadmachine_backend/internal/leads/domain"
	"leadmachine_backend/internal/leads/repository"
	"leadmachine_backend/internal/leads/service"
	"leadmachine_backend/internal/leads/transport"
	"leadmachine_backend/platform/httpkit"
	"leadmachine_backend/platform/validator"
)

// Handler handles HTTP requests for leads.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid lead ID"
)

// New creates a new leads handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// BeginEnrichment marks a company as being enriched.
// POST /api/v1/companies/:id/enrichment/begin
func (h *Handler) BeginEnrichment(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid company ID", nil)
		return
	}

	if err := h.svc.BeginEnrichment(c.Request.Context(), companyID); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "ENRICHING"})
}

// IngestContacts accepts enrichment results for a company.
// POST /api/v1/companies/:id/contacts
func (h *Handler) IngestContacts(c *gin.Context) {
	companyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid company ID", nil)
		return
	}

	var req transport.IngestContactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	created, err := h.svc.IngestContacts(c.Request.Context(), companyID, req.ToContacts())
	if httpkit.HandleError(c, err) {
		return
	}

	resp := make([]transport.LeadResponse, 0, len(created))
	for _, lead := range created {
		resp = append(resp, transport.ToLeadResponse(lead))
	}
	httpkit.JSON(c, http.StatusCreated, resp)
}

// List retrieves leads with optional filters.
// GET /api/v1/leads
func (h *Handler) List(c *gin.Context) {
	var req transport.ListLeadsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	params := repository.ListParams{
		MinScore: req.MinScore,
		Limit:    req.PageSize,
	}
	if req.CompanyID != "" {
		companyID, err := uuid.Parse(req.CompanyID)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid company ID", nil)
			return
		}
		params.CompanyID = &companyID
	}
	if req.Status != "" {
		status := domain.Status(req.Status)
		if !domain.IsKnownStatus(status) {
			httpkit.Error(c, http.StatusBadRequest, "unknown lead status", req.Status)
			return
		}
		params.Status = &status
	}
	if req.Classification != "" {
		classification := domain.Classification(req.Classification)
		params.Classification = &classification
	}
	if req.Page > 1 && req.PageSize > 0 {
		params.Offset = (req.Page - 1) * req.PageSize
	}

	items, total, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.LeadListResponse{
		Items: make([]transport.LeadResponse, 0, len(items)),
		Total: total,
	}
	for _, lead := range items {
		resp.Items = append(resp.Items, transport.ToLeadResponse(lead))
	}
	httpkit.OK(c, resp)
}

// GetByID retrieves a single lead.
// GET /api/v1/leads/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// Score runs the scoring engine for one lead on demand.
// POST /api/v1/leads/:id/score
func (h *Handler) Score(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	lead, err := h.svc.ScoreLead(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}
