// Package inbound polls the outreach mailbox over IMAP and feeds replies to
// the tracking module, which halts the sequences of leads that wrote back.
package inbound

import (
	"context"
	"strings"
	"time"

	imap "github.com/BrianLeishman/go-imap"

	"leadmachine_backend/platform/config"
	"leadmachine_backend/platform/logger"
)

// ReplySink consumes one inbound reply.
type ReplySink interface {
	ProcessReply(ctx context.Context, fromEmail, subject string, receivedAt time.Time) error
}

// Mailbox is the slice of the IMAP dialer the poller uses. *imap.Dialer
// satisfies it; tests substitute a fake.
type Mailbox interface {
	SelectFolder(folder string) error
	GetUIDs(search string) ([]int, error)
	GetEmails(uids ...int) (map[int]*imap.Email, error)
	MarkSeen(uid int) error
	Close() error
}

var _ Mailbox = (*imap.Dialer)(nil)

// Poller periodically scans the mailbox for unseen messages. Each message is
// handed to the sink and marked seen only after the sink accepted it, so a
// crash mid-batch re-processes instead of losing replies. Reply processing
// is idempotent on the lead side, which makes the re-read harmless.
type Poller struct {
	cfg  config.IMAPConfig
	sink ReplySink
	log  *logger.Logger

	dial func() (Mailbox, error)
}

// New creates the poller with the real IMAP dialer.
func New(cfg config.IMAPConfig, sink ReplySink, log *logger.Logger) *Poller {
	return &Poller{
		cfg:  cfg,
		sink: sink,
		log:  log,
		dial: func() (Mailbox, error) {
			return imap.New(cfg.GetIMAPUser(), cfg.GetIMAPPassword(), cfg.GetIMAPHost(), cfg.GetIMAPPort())
		},
	}
}

// Run polls until the context is cancelled. A failed poll is logged and
// retried on the next tick; the mail server being briefly unreachable must
// not take the worker down.
func (p *Poller) Run(ctx context.Context) error {
	interval := p.cfg.GetIMAPPollInterval()
	if interval <= 0 {
		interval = 2 * time.Minute
	}

	p.log.Info("inbound poller started", "folder", p.cfg.GetIMAPFolder(), "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if processed, err := p.PollOnce(ctx); err != nil {
			p.log.Error("inbound poll failed", "error", err)
		} else if processed > 0 {
			p.log.Info("inbound replies processed", "count", processed)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// PollOnce runs a single scan and returns how many messages were processed.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	box, err := p.dial()
	if err != nil {
		return 0, err
	}
	defer box.Close()

	if err := box.SelectFolder(p.cfg.GetIMAPFolder()); err != nil {
		return 0, err
	}

	uids, err := box.GetUIDs("UNSEEN")
	if err != nil {
		return 0, err
	}
	if len(uids) == 0 {
		return 0, nil
	}

	messages, err := box.GetEmails(uids...)
	if err != nil {
		return 0, err
	}

	processed := 0
	for uid, msg := range messages {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if msg == nil {
			continue
		}

		from := firstAddress(msg.From)
		if from == "" {
			// Not attributable to a sender; skip but mark seen so it is
			// not re-fetched forever.
			if err := box.MarkSeen(uid); err != nil {
				p.log.Error("mark seen failed", "uid", uid, "error", err)
			}
			continue
		}

		receivedAt := msg.Received
		if receivedAt.IsZero() {
			receivedAt = msg.Sent
		}
		if err := p.sink.ProcessReply(ctx, from, msg.Subject, receivedAt); err != nil {
			p.log.Error("reply processing failed", "uid", uid, "from", from, "error", err)
			continue
		}
		if err := box.MarkSeen(uid); err != nil {
			p.log.Error("mark seen failed", "uid", uid, "error", err)
		}
		processed++
	}
	return processed, nil
}

func firstAddress(addrs imap.EmailAddresses) string {
	for addr := range addrs {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
