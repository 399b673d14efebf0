package inbound

import (
	"context"
	"errors"
	"testing"
	"time"

	imap "github.com/BrianLeishman/go-imap"

	"leadmachine_backend/platform/logger"
)

type fakeMailbox struct {
	messages map[int]*imap.Email
	seen     []int
	selected string
	closed   bool
}

func (f *fakeMailbox) SelectFolder(folder string) error {
	f.selected = folder
	return nil
}

func (f *fakeMailbox) GetUIDs(_ string) ([]int, error) {
	uids := make([]int, 0, len(f.messages))
	for uid := range f.messages {
		uids = append(uids, uid)
	}
	return uids, nil
}

func (f *fakeMailbox) GetEmails(uids ...int) (map[int]*imap.Email, error) {
	out := make(map[int]*imap.Email, len(uids))
	for _, uid := range uids {
		if msg, ok := f.messages[uid]; ok {
			out[uid] = msg
		}
	}
	return out, nil
}

func (f *fakeMailbox) MarkSeen(uid int) error {
	f.seen = append(f.seen, uid)
	return nil
}

func (f *fakeMailbox) Close() error {
	f.closed = true
	return nil
}

type fakeSink struct {
	replies []string
	fail    map[string]error
}

func (f *fakeSink) ProcessReply(_ context.Context, fromEmail, _ string, _ time.Time) error {
	if err := f.fail[fromEmail]; err != nil {
		return err
	}
	f.replies = append(f.replies, fromEmail)
	return nil
}

type imapCfg struct{}

func (imapCfg) GetIMAPHost() string                { return "mail.example.nl" }
func (imapCfg) GetIMAPPort() int                   { return 993 }
func (imapCfg) GetIMAPUser() string                { return "outreach@example.nl" }
func (imapCfg) GetIMAPPassword() string            { return "secret" }
func (imapCfg) GetIMAPFolder() string              { return "INBOX" }
func (imapCfg) GetIMAPPollInterval() time.Duration { return time.Minute }
func (imapCfg) IsIMAPEnabled() bool                { return true }

func newPoller(box *fakeMailbox, sink *fakeSink) *Poller {
	p := New(imapCfg{}, sink, logger.New("development"))
	p.dial = func() (Mailbox, error) { return box, nil }
	return p
}

func TestPollOnceProcessesAndMarksSeen(t *testing.T) {
	box := &fakeMailbox{messages: map[int]*imap.Email{
		7: {
			Subject: "Re: kennismaken",
			From:    imap.EmailAddresses{"jan@bakkerij.nl": "Jan"},
			Sent:    time.Now(),
		},
	}}
	sink := &fakeSink{}

	processed, err := newPoller(box, sink).PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if processed != 1 {
		t.Fatalf("processed = %d, want 1", processed)
	}
	if len(sink.replies) != 1 || sink.replies[0] != "jan@bakkerij.nl" {
		t.Errorf("replies = %v", sink.replies)
	}
	if len(box.seen) != 1 || box.seen[0] != 7 {
		t.Errorf("seen = %v, want [7]", box.seen)
	}
	if box.selected != "INBOX" || !box.closed {
		t.Errorf("folder %q selected, closed=%v", box.selected, box.closed)
	}
}

func TestPollOnceKeepsFailedMessagesUnseen(t *testing.T) {
	box := &fakeMailbox{messages: map[int]*imap.Email{
		3: {
			Subject: "Re: vraag",
			From:    imap.EmailAddresses{"piet@winkel.nl": "Piet"},
			Sent:    time.Now(),
		},
	}}
	sink := &fakeSink{fail: map[string]error{"piet@winkel.nl": errors.New("db down")}}

	processed, err := newPoller(box, sink).PollOnce(context.Background())
	if err != nil {
		t.Fatalf("PollOnce: %v", err)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0", processed)
	}
	if len(box.seen) != 0 {
		t.Errorf("failed message must stay unseen for the next poll, seen = %v", box.seen)
	}
}

func TestPollOnceEmptyMailbox(t *testing.T) {
	box := &fakeMailbox{messages: map[int]*imap.Email{}}
	processed, err := newPoller(box, &fakeSink{}).PollOnce(context.Background())
	if err != nil || processed != 0 {
		t.Fatalf("processed = %d, err = %v", processed, err)
	}
}
