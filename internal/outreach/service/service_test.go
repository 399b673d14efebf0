package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	companydomain "leadmachine_backend/internal/companies/domain"
	"leadmachine_backend/internal/events"
	leaddomain "leadmachine_backend/internal/leads/domain"
	"leadmachine_backend/internal/outreach/domain"
	"leadmachine_backend/internal/outreach/schedule"
	"leadmachine_backend/platform/apperr"
	"leadmachine_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	mu     sync.Mutex
	emails map[uuid.UUID]domain.Email
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{emails: make(map[uuid.UUID]domain.Email)}
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.emails[id]
	if !ok {
		return domain.Email{}, apperr.NotFound("email not found")
	}
	return email, nil
}

func (f *fakeRepo) GetByTrackingID(_ context.Context, trackingID uuid.UUID) (domain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, email := range f.emails {
		if email.TrackingID == trackingID {
			return email, nil
		}
	}
	return domain.Email{}, apperr.NotFound("email not found")
}

func (f *fakeRepo) CreateSequence(_ context.Context, emails []domain.Email) ([]domain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := make([]domain.Email, 0, len(emails))
	for _, email := range emails {
		email.ID = uuid.New()
		f.emails[email.ID] = email
		created = append(created, email)
	}
	return created, nil
}

func (f *fakeRepo) ListByLead(_ context.Context, leadID uuid.UUID) ([]domain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Email
	for _, email := range f.emails {
		if email.LeadID == leadID {
			out = append(out, email)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListDue(_ context.Context, before time.Time, limit int) ([]domain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Email
	for _, email := range f.emails {
		if email.Status == domain.StatusScheduled && !email.ScheduledAt.After(before) && len(out) < limit {
			out = append(out, email)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountByStatus(_ context.Context, status domain.Status) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, email := range f.emails {
		if email.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) ClaimForSending(_ context.Context, id uuid.UUID) (domain.Email, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.emails[id]
	if !ok {
		return domain.Email{}, apperr.NotFound("email not found")
	}
	if email.Status != domain.StatusScheduled {
		return domain.Email{}, apperr.InvalidTransition("email is not claimable")
	}
	email.Status = domain.StatusSending
	email.UpdatedAt = time.Now()
	f.emails[id] = email
	return email, nil
}

func (f *fakeRepo) ReleaseStaleClaims(_ context.Context, olderThan time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	released := 0
	for id, email := range f.emails {
		if email.Status == domain.StatusSending && !email.UpdatedAt.After(olderThan) {
			email.Status = domain.StatusScheduled
			f.emails[id] = email
			released++
		}
	}
	return released, nil
}

func (f *fakeRepo) ReleaseClaim(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.emails[id]
	if !ok || email.Status != domain.StatusSending {
		return apperr.InvalidTransition("email is not claimed")
	}
	email.Status = domain.StatusScheduled
	f.emails[id] = email
	return nil
}

func (f *fakeRepo) MarkSent(_ context.Context, id uuid.UUID, sentAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.emails[id]
	if !ok || email.Status != domain.StatusSending {
		return apperr.InvalidTransition("email is not in delivery")
	}
	email.Status = domain.StatusSent
	email.SentAt = &sentAt
	f.emails[id] = email
	return nil
}

func (f *fakeRepo) MarkBounced(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.emails[id]
	if !ok {
		return apperr.NotFound("email not found")
	}
	if email.Status != domain.StatusSending && email.Status != domain.StatusSent {
		return apperr.InvalidTransition("email cannot bounce from " + string(email.Status))
	}
	email.Status = domain.StatusBounced
	f.emails[id] = email
	return nil
}

func (f *fakeRepo) Reschedule(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	email, ok := f.emails[id]
	if !ok || email.Status != domain.StatusScheduled {
		return apperr.InvalidTransition("email is no longer scheduled")
	}
	email.ScheduledAt = at
	f.emails[id] = email
	return nil
}

func (f *fakeRepo) CancelScheduledByLead(_ context.Context, leadID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cancelled := 0
	for id, email := range f.emails {
		if email.LeadID == leadID && email.Status == domain.StatusScheduled {
			email.Status = domain.StatusCancelled
			f.emails[id] = email
			cancelled++
		}
	}
	return cancelled, nil
}

func (f *fakeRepo) HasActiveSequence(_ context.Context, leadID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, email := range f.emails {
		if email.LeadID == leadID &&
			(email.Status == domain.StatusScheduled || email.Status == domain.StatusSending) {
			return true, nil
		}
	}
	return false, nil
}

type fakeLeads struct {
	mu    sync.Mutex
	leads map[uuid.UUID]leaddomain.Lead
}

func newFakeLeads() *fakeLeads {
	return &fakeLeads{leads: make(map[uuid.UUID]leaddomain.Lead)}
}

func (f *fakeLeads) add(lead leaddomain.Lead) uuid.UUID {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	f.leads[lead.ID] = lead
	return lead.ID
}

func (f *fakeLeads) GetByID(_ context.Context, id uuid.UUID) (leaddomain.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return leaddomain.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *fakeLeads) MarkSequenced(_ context.Context, id uuid.UUID) error {
	return f.transition(id, leaddomain.StatusQualified, leaddomain.StatusSequenced)
}

func (f *fakeLeads) MarkSending(_ context.Context, id uuid.UUID) error {
	return f.transition(id, leaddomain.StatusSequenced, leaddomain.StatusSending)
}

func (f *fakeLeads) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return f.transition(id, leaddomain.StatusSending, leaddomain.StatusCompleted)
}

func (f *fakeLeads) MarkBounced(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return apperr.NotFound("lead not found")
	}
	if err := leaddomain.Transition(lead.Status, leaddomain.StatusBounced); err != nil {
		return err
	}
	lead.Status = leaddomain.StatusBounced
	f.leads[id] = lead
	return nil
}

func (f *fakeLeads) transition(id uuid.UUID, from, to leaddomain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return apperr.NotFound("lead not found")
	}
	if lead.Status != from {
		return apperr.InvalidTransition("lead status changed concurrently")
	}
	lead.Status = to
	f.leads[id] = lead
	return nil
}

type fakeCompanies struct {
	companies map[uuid.UUID]companydomain.Company
}

func (f *fakeCompanies) GetByID(_ context.Context, id uuid.UUID) (companydomain.Company, error) {
	c, ok := f.companies[id]
	if !ok {
		return companydomain.Company{}, apperr.NotFound("company not found")
	}
	return c, nil
}

type fakeDeliverer struct {
	mu         sync.Mutex
	deliveries []Delivery
	err        error
}

func (f *fakeDeliverer) Deliver(_ context.Context, delivery Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.deliveries = append(f.deliveries, delivery)
	return nil
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []uuid.UUID
}

func (f *fakeScheduler) ScheduleEmailSend(_ context.Context, emailID uuid.UUID, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, emailID)
	return nil
}

type fakeBudget struct {
	mu    sync.Mutex
	limit int
	used  int
}

func (f *fakeBudget) Reserve(_ context.Context, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used >= f.limit {
		return false, nil
	}
	f.used++
	return true, nil
}

func (f *fakeBudget) Release(_ context.Context, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.used--
	return nil
}

func (f *fakeBudget) Used(_ context.Context, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used, nil
}

func (f *fakeBudget) Limit() int { return f.limit }

type outreachCfg struct{}

func (outreachCfg) GetSequenceDayOffsets() []int      { return []int{0, 3, 7, 14} }
func (outreachCfg) GetMinSendDelay() time.Duration    { return 2 * time.Minute }
func (outreachCfg) GetMaxSendDelay() time.Duration    { return 5 * time.Minute }

type fixture struct {
	svc       *Service
	repo      *fakeRepo
	leads     *fakeLeads
	companies *fakeCompanies
	deliverer *fakeDeliverer
	scheduler *fakeScheduler
	budget    *fakeBudget
}

func newFixture(t *testing.T, budgetLimit int) *fixture {
	t.Helper()
	cal, err := schedule.New("Europe/Amsterdam", 9, 17)
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		repo:      newFakeRepo(),
		leads:     newFakeLeads(),
		companies: &fakeCompanies{companies: make(map[uuid.UUID]companydomain.Company)},
		deliverer: &fakeDeliverer{},
		scheduler: &fakeScheduler{},
		budget:    &fakeBudget{limit: budgetLimit},
	}
	log := logger.New("development")
	f.svc = New(f.repo, f.leads, f.companies, f.deliverer, f.scheduler, f.budget, cal, outreachCfg{}, events.NewInMemoryBus(log), log)
	return f
}

// setNow pins the service clock.
func (f *fixture) setNow(at time.Time) {
	f.svc.now = func() time.Time { return at }
}

// admit drives a send task through its deferrals until it completes,
// advancing the clock to each deferral target.
func (f *fixture) admit(t *testing.T, id uuid.UUID) {
	t.Helper()
	for i := 0; i < 4; i++ {
		next, err := f.svc.ProcessScheduledEmail(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if next == nil {
			return
		}
		f.setNow(*next)
	}
	t.Fatal("send task never completed")
}

func (f *fixture) qualifiedLead(t *testing.T) uuid.UUID {
	t.Helper()
	companyID := uuid.New()
	f.companies.companies[companyID] = companydomain.Company{ID: companyID, Name: "Acme"}
	return f.leads.add(leaddomain.Lead{
		CompanyID: companyID,
		FirstName: "Anna",
		LastName:  "de Vries",
		Email:     "anna@example.com",
		Status:    leaddomain.StatusQualified,
	})
}

func mondayMorning(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	if err != nil {
		t.Fatal(err)
	}
	return time.Date(2025, 6, 2, 10, 0, 0, 0, loc)
}

func TestActivateSequencePlansFourSteps(t *testing.T) {
	f := newFixture(t, 50)
	f.setNow(mondayMorning(t))
	leadID := f.qualifiedLead(t)

	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 4 {
		t.Fatalf("planned %d emails, want 4", len(created))
	}

	for i, email := range created {
		if email.Status != domain.StatusScheduled {
			t.Errorf("step %d status = %s, want SCHEDULED", i+1, email.Status)
		}
		if email.Step != i+1 {
			t.Errorf("step = %d, want %d", email.Step, i+1)
		}
		if email.Subject == "" || email.Body == "" {
			t.Errorf("step %d has empty content", i+1)
		}
		if i > 0 && !created[i].ScheduledAt.After(created[i-1].ScheduledAt) {
			t.Errorf("step %d not after step %d", i+1, i)
		}
	}
	// Plan times carry no randomness; the spread happens at admission.
	if !created[0].ScheduledAt.Equal(mondayMorning(t)) {
		t.Errorf("step 1 scheduled at %v, want activation time", created[0].ScheduledAt)
	}

	if lead, _ := f.leads.GetByID(context.Background(), leadID); lead.Status != leaddomain.StatusSequenced {
		t.Errorf("lead status = %s, want SEQUENCED", lead.Status)
	}
	if len(f.scheduler.tasks) != 4 {
		t.Errorf("queued %d send tasks, want 4", len(f.scheduler.tasks))
	}
}

func TestActivateSequenceRejectsUnqualified(t *testing.T) {
	f := newFixture(t, 50)
	f.setNow(mondayMorning(t))
	leadID := f.leads.add(leaddomain.Lead{Status: leaddomain.StatusScored, Email: "x@example.com"})

	_, err := f.svc.ActivateSequence(context.Background(), leadID)
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestActivateSequenceTwiceConflicts(t *testing.T) {
	f := newFixture(t, 50)
	f.setNow(mondayMorning(t))
	leadID := f.qualifiedLead(t)

	if _, err := f.svc.ActivateSequence(context.Background(), leadID); err != nil {
		t.Fatal(err)
	}
	// Reset the lead to QUALIFIED to isolate the duplicate-sequence check.
	f.leads.leads[leadID] = leaddomain.Lead{
		ID: leadID, Status: leaddomain.StatusQualified,
		CompanyID: f.leads.leads[leadID].CompanyID, Email: "anna@example.com",
	}
	_, err := f.svc.ActivateSequence(context.Background(), leadID)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestProcessScheduledEmailDelivers(t *testing.T) {
	f := newFixture(t, 50)
	f.setNow(mondayMorning(t))
	leadID := f.qualifiedLead(t)
	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}

	f.admit(t, created[0].ID)

	if len(f.deliverer.deliveries) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(f.deliverer.deliveries))
	}
	delivery := f.deliverer.deliveries[0]
	if delivery.To != "anna@example.com" {
		t.Errorf("delivered to %s", delivery.To)
	}
	if delivery.TrackingID != created[0].TrackingID {
		t.Error("delivery lost its tracking ID")
	}

	sent, _ := f.repo.GetByID(context.Background(), created[0].ID)
	if sent.Status != domain.StatusSent {
		t.Errorf("email status = %s, want SENT", sent.Status)
	}
	if sent.SentAt == nil {
		t.Error("sent_at not recorded")
	}
	if lead, _ := f.leads.GetByID(context.Background(), leadID); lead.Status != leaddomain.StatusSending {
		t.Errorf("lead status = %s, want SENDING", lead.Status)
	}
}

func TestAdmissionSpreadsDueSends(t *testing.T) {
	f := newFixture(t, 50)
	now := mondayMorning(t)
	f.setNow(now)
	leadID := f.qualifiedLead(t)
	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}

	// The first admission of a due send defers it by the random delay
	// instead of delivering straight away.
	next, err := f.svc.ProcessScheduledEmail(context.Background(), created[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil {
		t.Fatal("expected the first admission to defer by the spread delay")
	}
	if next.Before(now.Add(2*time.Minute)) || next.After(now.Add(5*time.Minute)) {
		t.Errorf("spread to %v, want two to five minutes after %v", next, now)
	}
	if len(f.deliverer.deliveries) != 0 {
		t.Fatal("nothing may be delivered before the spread delay elapses")
	}
	still, _ := f.repo.GetByID(context.Background(), created[0].ID)
	if still.Status != domain.StatusScheduled {
		t.Errorf("email status = %s, want SCHEDULED during the spread", still.Status)
	}
	if !still.ScheduledAt.Equal(now) {
		t.Errorf("spread must not rewrite the plan, scheduled_at moved to %v", still.ScheduledAt)
	}

	// The re-fired task goes through.
	f.setNow(*next)
	next, err = f.svc.ProcessScheduledEmail(context.Background(), created[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if next != nil {
		t.Fatalf("unexpected second deferral to %v", next)
	}
	if len(f.deliverer.deliveries) != 1 {
		t.Errorf("delivered %d messages, want 1", len(f.deliverer.deliveries))
	}
}

func TestReclaimStaleReleasesOrphanedClaims(t *testing.T) {
	f := newFixture(t, 50)
	now := mondayMorning(t)
	f.setNow(now)
	leadID := f.qualifiedLead(t)
	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}

	// A worker claimed the first two emails and died before delivering.
	// Only the claim that has aged out may be released.
	for _, email := range created[:2] {
		if _, err := f.repo.ClaimForSending(context.Background(), email.ID); err != nil {
			t.Fatal(err)
		}
	}
	stale := f.repo.emails[created[0].ID]
	stale.UpdatedAt = now.Add(-time.Hour)
	f.repo.emails[created[0].ID] = stale

	released, err := f.svc.ReclaimStale(context.Background(), 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if released != 1 {
		t.Fatalf("released %d claims, want 1", released)
	}
	if got, _ := f.repo.GetByID(context.Background(), created[0].ID); got.Status != domain.StatusScheduled {
		t.Errorf("stale claim status = %s, want SCHEDULED", got.Status)
	}
	if got, _ := f.repo.GetByID(context.Background(), created[1].ID); got.Status != domain.StatusSending {
		t.Errorf("live claim status = %s, want SENDING", got.Status)
	}

	// The released email can be admitted and delivered again.
	f.admit(t, created[0].ID)
	if len(f.deliverer.deliveries) != 1 {
		t.Errorf("delivered %d messages, want 1", len(f.deliverer.deliveries))
	}
}

func TestProcessDefersOutsideBusinessHours(t *testing.T) {
	f := newFixture(t, 50)
	f.setNow(mondayMorning(t))
	leadID := f.qualifiedLead(t)
	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}

	// Saturday noon.
	loc, _ := time.LoadLocation("Europe/Amsterdam")
	f.setNow(time.Date(2025, 6, 7, 12, 0, 0, 0, loc))

	next, err := f.svc.ProcessScheduledEmail(context.Background(), created[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil {
		t.Fatal("expected deferral outside business hours")
	}
	monday := time.Date(2025, 6, 9, 9, 0, 0, 0, loc)
	if !next.Equal(monday) {
		t.Errorf("deferred to %v, want Monday 09:00", next)
	}
	if len(f.deliverer.deliveries) != 0 {
		t.Error("nothing should be delivered on a weekend")
	}

	still, _ := f.repo.GetByID(context.Background(), created[0].ID)
	if still.Status != domain.StatusScheduled {
		t.Errorf("email status = %s, want SCHEDULED after deferral", still.Status)
	}
}

func TestProcessDefersWhenBudgetExhausted(t *testing.T) {
	f := newFixture(t, 0)
	f.setNow(mondayMorning(t))
	leadID := f.qualifiedLead(t)
	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}

	// Past the admission spread, the budget check defers to the next day.
	next, err := f.svc.ProcessScheduledEmail(context.Background(), created[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil {
		t.Fatal("expected an admission deferral")
	}
	f.setNow(*next)

	next, err = f.svc.ProcessScheduledEmail(context.Background(), created[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil {
		t.Fatal("expected deferral when the daily budget is exhausted")
	}
	loc, _ := time.LoadLocation("Europe/Amsterdam")
	tuesday := time.Date(2025, 6, 3, 9, 0, 0, 0, loc)
	if !next.Equal(tuesday) {
		t.Errorf("deferred to %v, want Tuesday 09:00", next)
	}
	if len(f.deliverer.deliveries) != 0 {
		t.Error("nothing should be delivered past the cap")
	}
}

func TestProcessCancelsSendsForRepliedLead(t *testing.T) {
	f := newFixture(t, 50)
	f.setNow(mondayMorning(t))
	leadID := f.qualifiedLead(t)
	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}

	lead := f.leads.leads[leadID]
	lead.Status = leaddomain.StatusReplied
	f.leads.leads[leadID] = lead

	next, err := f.svc.ProcessScheduledEmail(context.Background(), created[1].ID)
	if err != nil {
		t.Fatal(err)
	}
	if next != nil {
		t.Fatal("replied lead must not produce a deferral")
	}
	if len(f.deliverer.deliveries) != 0 {
		t.Error("replied lead must not receive mail")
	}

	for _, email := range created {
		got, _ := f.repo.GetByID(context.Background(), email.ID)
		if got.Status != domain.StatusCancelled {
			t.Errorf("step %d status = %s, want CANCELLED", email.Step, got.Status)
		}
	}
}

func TestConcurrentWorkersSendOnce(t *testing.T) {
	f := newFixture(t, 50)
	f.setNow(mondayMorning(t))
	leadID := f.qualifiedLead(t)
	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}

	// Move past the admission spread so every worker contends for the claim.
	next, err := f.svc.ProcessScheduledEmail(context.Background(), created[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil {
		t.Fatal("expected an admission deferral")
	}
	f.setNow(*next)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ProcessScheduledEmail(context.Background(), created[0].ID); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if len(f.deliverer.deliveries) != 1 {
		t.Errorf("delivered %d times, want exactly 1", len(f.deliverer.deliveries))
	}
	// Losing workers must hand their budget slot back.
	if f.budget.used != 1 {
		t.Errorf("budget used = %d, want 1", f.budget.used)
	}
}

func TestDeliveryFailureReleasesClaimAndSlot(t *testing.T) {
	f := newFixture(t, 50)
	f.setNow(mondayMorning(t))
	leadID := f.qualifiedLead(t)
	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}

	next, err := f.svc.ProcessScheduledEmail(context.Background(), created[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if next == nil {
		t.Fatal("expected an admission deferral")
	}
	f.setNow(*next)

	f.deliverer.err = errors.New("smtp connection refused")
	if _, err := f.svc.ProcessScheduledEmail(context.Background(), created[0].ID); err == nil {
		t.Fatal("expected delivery error to propagate for retry")
	}

	email, _ := f.repo.GetByID(context.Background(), created[0].ID)
	if email.Status != domain.StatusScheduled {
		t.Errorf("email status = %s, want SCHEDULED after failed attempt", email.Status)
	}
	if f.budget.used != 0 {
		t.Errorf("budget used = %d, want 0 after release", f.budget.used)
	}
}

func TestFinalStepCompletesLead(t *testing.T) {
	f := newFixture(t, 50)
	f.setNow(mondayMorning(t))
	leadID := f.qualifiedLead(t)
	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}

	for _, email := range created {
		f.admit(t, email.ID)
	}

	if lead, _ := f.leads.GetByID(context.Background(), leadID); lead.Status != leaddomain.StatusCompleted {
		t.Errorf("lead status = %s, want COMPLETED after final send", lead.Status)
	}
	if len(f.deliverer.deliveries) != 4 {
		t.Errorf("delivered %d messages, want 4", len(f.deliverer.deliveries))
	}
}

func TestHandleBounceHaltsLead(t *testing.T) {
	f := newFixture(t, 50)
	f.setNow(mondayMorning(t))
	leadID := f.qualifiedLead(t)
	created, err := f.svc.ActivateSequence(context.Background(), leadID)
	if err != nil {
		t.Fatal(err)
	}

	f.admit(t, created[0].ID)
	if err := f.svc.HandleBounce(context.Background(), created[0].ID, "mailbox unavailable"); err != nil {
		t.Fatal(err)
	}

	bounced, _ := f.repo.GetByID(context.Background(), created[0].ID)
	if bounced.Status != domain.StatusBounced {
		t.Errorf("email status = %s, want BOUNCED", bounced.Status)
	}
	if lead, _ := f.leads.GetByID(context.Background(), leadID); lead.Status != leaddomain.StatusBounced {
		t.Errorf("lead status = %s, want BOUNCED", lead.Status)
	}
	for _, email := range created[1:] {
		got, _ := f.repo.GetByID(context.Background(), email.ID)
		if got.Status != domain.StatusCancelled {
			t.Errorf("step %d status = %s, want CANCELLED", email.Step, got.Status)
		}
	}
}
