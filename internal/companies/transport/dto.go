package transport

import (
	"time"

	"leadmachine_backend/internal/companies/domain"
	"leadmachine_backend/internal/companies/repository"

	"github.com/google/uuid"
)

// ObservationRequest is one raw company sighting in an intake batch.
type ObservationRequest struct {
	Name          string         `json:"name" validate:"required,min=1,max=255"`
	Domain        string         `json:"domain,omitempty" validate:"omitempty,max=255"`
	Industry      *string        `json:"industry,omitempty" validate:"omitempty,max=120"`
	EmployeeCount *int           `json:"employeeCount,omitempty" validate:"omitempty,min=0"`
	OpenVacancies int            `json:"openVacancies" validate:"min=0"`
	Location      *string        `json:"location,omitempty" validate:"omitempty,max=255"`
	Description   *string        `json:"description,omitempty"`
	WebsiteURL    *string        `json:"websiteUrl,omitempty" validate:"omitempty,max=500"`
	LinkedInURL   *string        `json:"linkedinUrl,omitempty" validate:"omitempty,max=500"`
	HasFunding    bool           `json:"hasFunding"`
	FundingAmount *string        `json:"fundingAmount,omitempty" validate:"omitempty,max=50"`
	SourceURL     *string        `json:"sourceUrl,omitempty" validate:"omitempty,max=500"`
	Raw           map[string]any `json:"raw,omitempty"`
}

// SubmitObservationsRequest is the scrape intake payload.
type SubmitObservationsRequest struct {
	Source       string               `json:"source" validate:"required,min=1,max=60"`
	Observations []ObservationRequest `json:"observations" validate:"required,min=1,max=500,dive"`
}

// ToObservation converts the DTO into a domain observation.
func (r ObservationRequest) ToObservation(source string) domain.Observation {
	return domain.Observation{
		Name:          r.Name,
		DomainRaw:     r.Domain,
		Industry:      r.Industry,
		EmployeeCount: r.EmployeeCount,
		OpenVacancies: r.OpenVacancies,
		Location:      r.Location,
		Description:   r.Description,
		WebsiteURL:    r.WebsiteURL,
		LinkedInURL:   r.LinkedInURL,
		HasFunding:    r.HasFunding,
		FundingAmount: r.FundingAmount,
		Source:        source,
		SourceURL:     r.SourceURL,
		Raw:           r.Raw,
	}
}

// ListCompaniesRequest filters company listings.
type ListCompaniesRequest struct {
	Status      string `form:"status"`
	NeedsReview *bool  `form:"needsReview"`
	Search      string `form:"search"`
	Page        int    `form:"page"`
	PageSize    int    `form:"pageSize"`
}

// CompanyResponse represents a company in API responses.
type CompanyResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Domain        *string   `json:"domain,omitempty"`
	Industry      *string   `json:"industry,omitempty"`
	EmployeeCount *int      `json:"employeeCount,omitempty"`
	OpenVacancies int       `json:"openVacancies"`
	Location      *string   `json:"location,omitempty"`
	Description   *string   `json:"description,omitempty"`
	WebsiteURL    *string   `json:"websiteUrl,omitempty"`
	LinkedInURL   *string   `json:"linkedinUrl,omitempty"`
	HasFunding    bool      `json:"hasFunding"`
	FundingAmount *string   `json:"fundingAmount,omitempty"`
	Source        string    `json:"source"`
	Status        string    `json:"status"`
	NeedsReview   bool      `json:"needsReview"`
	CreatedAt     string    `json:"createdAt"`
	UpdatedAt     string    `json:"updatedAt"`
}

// CompanyListResponse wraps a paginated company listing.
type CompanyListResponse struct {
	Items []CompanyResponse `json:"items"`
	Total int               `json:"total"`
}

// ScrapeJobResponse represents a scrape run in API responses.
type ScrapeJobResponse struct {
	ID               uuid.UUID `json:"id"`
	Source           string    `json:"source"`
	Status           string    `json:"status"`
	CompaniesFound   int       `json:"companiesFound"`
	CompaniesCreated int       `json:"companiesCreated"`
	CompaniesMerged  int       `json:"companiesMerged"`
	CompaniesHeld    int       `json:"companiesHeld"`
	Error            *string   `json:"error,omitempty"`
	StartedAt        *string   `json:"startedAt,omitempty"`
	FinishedAt       *string   `json:"finishedAt,omitempty"`
	CreatedAt        string    `json:"createdAt"`
}

// ToCompanyResponse maps a domain company to its API shape.
func ToCompanyResponse(c domain.Company) CompanyResponse {
	return CompanyResponse{
		ID:            c.ID,
		Name:          c.Name,
		Domain:        c.Domain,
		Industry:      c.Industry,
		EmployeeCount: c.EmployeeCount,
		OpenVacancies: c.OpenVacancies,
		Location:      c.Location,
		Description:   c.Description,
		WebsiteURL:    c.WebsiteURL,
		LinkedInURL:   c.LinkedInURL,
		HasFunding:    c.HasFunding,
		FundingAmount: c.FundingAmount,
		Source:        c.Source,
		Status:        string(c.Status),
		NeedsReview:   c.NeedsReview,
		CreatedAt:     c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     c.UpdatedAt.Format(time.RFC3339),
	}
}

// ToScrapeJobResponse maps a scrape job to its API shape.
func ToScrapeJobResponse(job repository.ScrapeJob) ScrapeJobResponse {
	resp := ScrapeJobResponse{
		ID:               job.ID,
		Source:           job.Source,
		Status:           job.Status,
		CompaniesFound:   job.CompaniesFound,
		CompaniesCreated: job.CompaniesCreated,
		CompaniesMerged:  job.CompaniesMerged,
		CompaniesHeld:    job.CompaniesHeld,
		Error:            job.Error,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		s := job.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if job.FinishedAt != nil {
		s := job.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &s
	}
	return resp
}
