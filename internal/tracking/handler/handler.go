package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"leadmachine_backend/internal/tracking/pixel"
	"leadmachine_backend/internal/tracking/service"
	"leadmachine_backend/internal/tracking/transport"
	"leadmachine_backend/platform/httpkit"
	"leadmachine_backend/platform/validator"
)

// Handler handles tracking beacon hits and the tracking API.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new tracking handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Open serves the tracking pixel and records the open. Always answers 200
// with the beacon image: a broken image in a prospect's mail client would
// give the tracking away, and a 4xx tells a scanner the ID space is
// probeable.
// GET /t/o/:id
func (h *Handler) Open(c *gin.Context) {
	if id, ok := parseTrackingID(c.Param("id")); ok {
		h.svc.RecordOpen(c.Request.Context(), id, c.ClientIP())
	}

	c.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, pixel.ContentType, pixel.GIF)
}

// Click records the click and redirects to the target URL. Unsafe or missing
// targets redirect to the configured fallback; the visitor never sees an
// error page.
// GET /t/c/:id?url=...
func (h *Handler) Click(c *gin.Context) {
	target := c.Query("url")

	id, ok := parseTrackingID(c.Param("id"))
	if !ok {
		id = uuid.Nil
	}
	redirect := h.svc.RecordClick(c.Request.Context(), id, c.ClientIP(), target)
	c.Redirect(http.StatusFound, redirect)
}

// ReceiveReply accepts an inbound reply notification and matches it to a
// lead, halting the lead's sequence.
// POST /api/v1/tracking/replies
func (h *Handler) ReceiveReply(c *gin.Context) {
	var req transport.ReplyWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	receivedAt := time.Time{}
	if req.ReceivedAt != nil {
		receivedAt = *req.ReceivedAt
	}
	err := h.svc.ProcessReply(c.Request.Context(), req.FromEmail, req.Subject, receivedAt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"processed": true})
}

// Engagement returns a lead's aggregated open and click stats.
// GET /api/v1/leads/:id/engagement
func (h *Handler) Engagement(c *gin.Context) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead ID", nil)
		return
	}

	stats, err := h.svc.Engagement(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToEngagementResponse(leadID, stats))
}

// EmailEvents lists the raw signals recorded for one email.
// GET /api/v1/emails/:id/events
func (h *Handler) EmailEvents(c *gin.Context) {
	emailID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid email ID", nil)
		return
	}

	list, err := h.svc.EventsByEmail(c.Request.Context(), emailID)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := make([]transport.TrackingEventResponse, 0, len(list))
	for _, e := range list {
		resp = append(resp, transport.ToTrackingEventResponse(e))
	}
	httpkit.OK(c, resp)
}

// Stats returns overall tracking totals plus a daily series.
// GET /api/v1/tracking/stats
func (h *Handler) Stats(c *gin.Context) {
	days, _ := strconv.Atoi(c.Query("days"))

	overall, series, err := h.svc.Stats(c.Request.Context(), days)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToStatsResponse(overall, series))
}

// UnmatchedReplies lists inbound messages that matched no lead.
// GET /api/v1/tracking/unmatched-replies
func (h *Handler) UnmatchedReplies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	list, err := h.svc.UnmatchedReplies(c.Request.Context(), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	resp := make([]transport.UnmatchedReplyResponse, 0, len(list))
	for _, r := range list {
		resp = append(resp, transport.ToUnmatchedReplyResponse(r))
	}
	httpkit.OK(c, resp)
}

// parseTrackingID accepts the raw path segment, with or without the ".gif"
// suffix image URLs carry.
func parseTrackingID(raw string) (uuid.UUID, bool) {
	raw = strings.TrimSuffix(raw, ".gif")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
