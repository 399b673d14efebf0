package email

import (
	"context"

	"leadmachine_backend/internal/outreach/service"
	"leadmachine_backend/platform/logger"
)

// LogDeliverer logs instead of sending. Used in development and when
// EMAIL_ENABLED is false, so sequences can be exercised without SMTP
// credentials or the risk of mailing real prospects.
type LogDeliverer struct {
	log *logger.Logger
}

var _ service.Deliverer = (*LogDeliverer)(nil)

// NewLogDeliverer creates the log-only adapter.
func NewLogDeliverer(log *logger.Logger) *LogDeliverer {
	return &LogDeliverer{log: log}
}

// Deliver records the message in the log and reports success.
func (d *LogDeliverer) Deliver(_ context.Context, delivery service.Delivery) error {
	d.log.Info("email suppressed (delivery disabled)",
		"to", delivery.To,
		"subject", delivery.Subject,
		"tracking_id", delivery.TrackingID,
	)
	return nil
}
