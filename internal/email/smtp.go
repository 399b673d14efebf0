// Package email delivers rendered outreach messages over SMTP, instrumented
// with open and click tracking.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"leadmachine_backend/internal/outreach/service"
	"leadmachine_backend/platform/config"
	"leadmachine_backend/platform/logger"
)

// SMTPDeliverer sends outreach emails through a direct SMTP connection via
// go-mail. The plain-text body from the sequence templates is wrapped into a
// minimal HTML document carrying the tracking pixel, and every link is
// rewritten through the click redirect.
type SMTPDeliverer struct {
	host            string
	port            int
	username        string
	password        string
	fromName        string
	fromEmail       string
	trackingBaseURL string
	log             *logger.Logger
}

// Compile-time check that SMTPDeliverer satisfies the outreach port.
var _ service.Deliverer = (*SMTPDeliverer)(nil)

// NewSMTPDeliverer creates the SMTP adapter from configuration.
func NewSMTPDeliverer(smtp config.SMTPConfig, tracking config.TrackingConfig, log *logger.Logger) *SMTPDeliverer {
	return &SMTPDeliverer{
		host:            smtp.GetSMTPHost(),
		port:            smtp.GetSMTPPort(),
		username:        smtp.GetSMTPUser(),
		password:        smtp.GetSMTPPassword(),
		fromName:        smtp.GetEmailFromName(),
		fromEmail:       smtp.GetEmailFromAddress(),
		trackingBaseURL: tracking.GetTrackingBaseURL(),
		log:             log,
	}
}

// Deliver sends one outreach email. Errors propagate to the caller so the
// task queue can retry; the claimed send slot is released by the service.
func (d *SMTPDeliverer) Deliver(ctx context.Context, delivery service.Delivery) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(d.fromName, d.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.AddToFormat(delivery.ToName, delivery.To); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(delivery.Subject)
	msg.SetBodyString(gomail.TypeTextPlain, delivery.Body)
	msg.AddAlternativeString(gomail.TypeTextHTML, renderTrackedHTML(delivery.Body, d.trackingBaseURL, delivery.TrackingID))

	client, err := gomail.NewClient(d.host,
		gomail.WithPort(d.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(d.username),
		gomail.WithPassword(d.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	d.log.Info("email delivered", "to", delivery.To, "subject", delivery.Subject)
	return nil
}
