package signup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/baechuer/meeting-machine/internal/domain"
)

type fakeUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]domain.User
	seq     int

	existsErr error
	createErr error

	// forceMissOnExists makes ExistsByEmail always report false so the
	// insert path has to catch duplicates.
	forceMissOnExists bool

	createCalls int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: map[string]domain.User{}}
}

func (f *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.existsErr != nil {
		return false, f.existsErr
	}
	if f.forceMissOnExists {
		return false, nil
	}
	_, ok := f.byEmail[email]
	return ok, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, u domain.NewUser) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return domain.User{}, f.createErr
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return domain.User{}, domain.ErrUserAlreadyExists()
	}
	f.seq++
	now := time.Now().UTC()
	created := domain.User{
		ID:           fmt.Sprintf("u-%d", f.seq),
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.byEmail[u.Email] = created
	return created, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byEmail)
}

type fakeHasher struct {
	err error
}

func (h fakeHasher) Hash(password string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + password, nil
}

type fakeIssuer struct {
	err error
}

func (f fakeIssuer) SignSessionToken(userID string, ttl time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("tok.%s.%d", userID, int(ttl.Seconds())), nil
}

type fakeSyncer struct {
	mu     sync.Mutex
	result domain.SyncResult
	calls  []domain.ContactInput
}

func (f *fakeSyncer) SyncContact(ctx context.Context, in domain.ContactInput) domain.SyncResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, in)
	return f.result
}

func (f *fakeSyncer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []UserSignedUpEvent
}

func (p *fakePublisher) PublishUserSignedUp(ctx context.Context, evt UserSignedUpEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

type auditEntry struct {
	action string
	fields []string
}

type fakeAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *fakeAuditor) add(action string, fields ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{action: action, fields: fields})
}

func (a *fakeAuditor) SignupSucceeded(_ context.Context, userID, email, crmStatus string) {
	a.add("signup_succeeded", userID, email, crmStatus)
}

func (a *fakeAuditor) SignupRejected(_ context.Context, email, reason string) {
	a.add("signup_rejected", email, reason)
}

func (a *fakeAuditor) CRMSyncFailed(_ context.Context, userID, email, status, reason string) {
	a.add("crm_sync_failed", userID, email, status, reason)
}

func (a *fakeAuditor) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.action)
	}
	return out
}

type harness struct {
	svc   *Service
	repo  *fakeUserRepo
	crm   *fakeSyncer
	pub   *fakePublisher
	audit *fakeAuditor
}

func newHarness() *harness {
	h := &harness{
		repo:  newFakeUserRepo(),
		crm:   &fakeSyncer{result: domain.SyncResult{Status: domain.SyncOK, Contact: &domain.Contact{ID: "c-1"}}},
		pub:   &fakePublisher{},
		audit: &fakeAuditor{},
	}
	h.svc = NewService(h.repo, fakeHasher{}, fakeIssuer{}, h.crm, h.pub, Config{
		SessionTTL: time.Hour,
		LocationID: "loc-1",
	}).WithAudit(h.audit)
	return h
}

var errBoom = errors.New("boom")
