package transport

import (
	"time"

	"leadmachine_backend/internal/leads/domain"
	"leadmachine_backend/internal/leads/service"

	"github.com/google/uuid"
)

// ContactRequest is one enrichment contact in an ingest payload.
type ContactRequest struct {
	FirstName   string  `json:"firstName" validate:"max=100"`
	LastName    string  `json:"lastName" validate:"max=100"`
	Email       string  `json:"email" validate:"required,email,max=255"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=30"`
	JobTitle    *string `json:"jobTitle,omitempty" validate:"omitempty,max=150"`
	LinkedInURL *string `json:"linkedinUrl,omitempty" validate:"omitempty,max=500"`
}

// IngestContactsRequest is the enrichment result payload for one company.
// An empty contact list is valid and marks the company NO_EMAIL.
type IngestContactsRequest struct {
	Contacts []ContactRequest `json:"contacts" validate:"dive"`
}

// ToContacts converts the DTOs into service contacts.
func (r IngestContactsRequest) ToContacts() []service.NewContact {
	contacts := make([]service.NewContact, 0, len(r.Contacts))
	for _, c := range r.Contacts {
		contacts = append(contacts, service.NewContact{
			FirstName:   c.FirstName,
			LastName:    c.LastName,
			Email:       c.Email,
			Phone:       c.Phone,
			JobTitle:    c.JobTitle,
			LinkedInURL: c.LinkedInURL,
		})
	}
	return contacts
}

// ListLeadsRequest filters lead listings.
type ListLeadsRequest struct {
	CompanyID      string `form:"companyId"`
	Status         string `form:"status"`
	Classification string `form:"classification"`
	MinScore       *int   `form:"minScore"`
	Page           int    `form:"page"`
	PageSize       int    `form:"pageSize"`
}

// LeadResponse represents a lead in API responses.
type LeadResponse struct {
	ID             uuid.UUID              `json:"id"`
	CompanyID      uuid.UUID              `json:"companyId"`
	FirstName      string                 `json:"firstName"`
	LastName       string                 `json:"lastName"`
	Email          string                 `json:"email"`
	Phone          *string                `json:"phone,omitempty"`
	JobTitle       *string                `json:"jobTitle,omitempty"`
	LinkedInURL    *string                `json:"linkedinUrl,omitempty"`
	Status         string                 `json:"status"`
	Score          *int                   `json:"score,omitempty"`
	Classification *string                `json:"classification,omitempty"`
	Breakdown      *domain.ScoreBreakdown `json:"scoreBreakdown,omitempty"`
	ScoredAt       *string                `json:"scoredAt,omitempty"`
	CreatedAt      string                 `json:"createdAt"`
	UpdatedAt      string                 `json:"updatedAt"`
}

// LeadListResponse wraps a paginated lead listing.
type LeadListResponse struct {
	Items []LeadResponse `json:"items"`
	Total int            `json:"total"`
}

// ToLeadResponse maps a domain lead to its API shape.
func ToLeadResponse(lead domain.Lead) LeadResponse {
	resp := LeadResponse{
		ID:          lead.ID,
		CompanyID:   lead.CompanyID,
		FirstName:   lead.FirstName,
		LastName:    lead.LastName,
		Email:       lead.Email,
		Phone:       lead.Phone,
		JobTitle:    lead.JobTitle,
		LinkedInURL: lead.LinkedInURL,
		Status:      string(lead.Status),
		Score:       lead.Score,
		Breakdown:   lead.Breakdown,
		CreatedAt:   lead.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   lead.UpdatedAt.Format(time.RFC3339),
	}
	if lead.Classification != nil {
		c := string(*lead.Classification)
		resp.Classification = &c
	}
	if lead.ScoredAt != nil {
		s := lead.ScoredAt.Format(time.RFC3339)
		resp.ScoredAt = &s
	}
	return resp
}
