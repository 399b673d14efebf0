package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadmachine_backend/internal/companies/domain"
	"leadmachine_backend/internal/companies/repository"
	"leadmachine_backend/internal/companies/service"
	"leadmachine_backend/internal/companies/transport"
	"leadmachine_backend/platform/httpkit"
	"leadmachine_backend/platform/validator"
)

// Handler handles HTTP requests for companies and scrape jobs.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid company ID"
)

// New creates a new companies handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// SubmitObservations accepts a scraped observation batch for deduplication.
// POST /api/v1/companies/observations
func (h *Handler) SubmitObservations(c *gin.Context) {
	var req transport.SubmitObservationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	observations := make([]domain.Observation, 0, len(req.Observations))
	for _, obs := range req.Observations {
		observations = append(observations, obs.ToObservation(req.Source))
	}

	job, err := h.svc.SubmitObservations(c.Request.Context(), req.Source, observations)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.ToScrapeJobResponse(job))
}

// List retrieves companies with optional filters.
// GET /api/v1/companies
func (h *Handler) List(c *gin.Context) {
	var req transport.ListCompaniesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	params := repository.ListParams{
		Search: req.Search,
		Limit:  req.PageSize,
	}
	if req.Status != "" {
		status := domain.Status(req.Status)
		if !domain.IsKnownStatus(status) {
			httpkit.Error(c, http.StatusBadRequest, "unknown company status", req.Status)
			return
		}
		params.Status = &status
	}
	params.NeedsReview = req.NeedsReview
	if req.Page > 1 && req.PageSize > 0 {
		params.Offset = (req.Page - 1) * req.PageSize
	}

	items, total, err := h.svc.List(c.Request.Context(), params)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.CompanyListResponse{
		Items: make([]transport.CompanyResponse, 0, len(items)),
		Total: total,
	}
	for _, company := range items {
		resp.Items = append(resp.Items, transport.ToCompanyResponse(company))
	}
	httpkit.OK(c, resp)
}

// GetByID retrieves a single company.
// GET /api/v1/companies/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	company, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCompanyResponse(company))
}

// ResolveReview clears the manual-review hold on an ambiguous match.
// POST /api/v1/companies/:id/resolve-review
func (h *Handler) ResolveReview(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	company, err := h.svc.ResolveReview(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCompanyResponse(company))
}

// RetryEnrichment resets a NO_EMAIL company for another enrichment pass.
// POST /api/v1/companies/:id/retry-enrichment
func (h *Handler) RetryEnrichment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	if err := h.svc.RetryEnrichment(c.Request.Context(), id); httpkit.HandleError(c, err) {
		return
	}

	company, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToCompanyResponse(company))
}

// GetJob retrieves one scrape job.
// GET /api/v1/scrape-jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid scrape job ID", nil)
		return
	}

	job, err := h.svc.GetJob(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToScrapeJobResponse(job))
}

// ListJobs retrieves recent scrape jobs.
// GET /api/v1/scrape-jobs
func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.svc.ListJobs(c.Request.Context(), 20)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := make([]transport.ScrapeJobResponse, 0, len(jobs))
	for _, job := range jobs {
		resp = append(resp, transport.ToScrapeJobResponse(job))
	}
	httpkit.OK(c, resp)
}
