package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/baechuer/totp-auth/internal/domain"
)

/*
Shared audit capture
*/

type auditEntry struct {
	action string
	fields map[string]string
}

/*
Fakes for ports
*/

type fakeUserRepo struct {
	mu sync.Mutex

	byID    map[string]domain.User
	byEmail map[string]domain.User

	// injected errors (if set, method returns error)
	getByIDErr     error
	getByEmailErr  error
	createErr      error
	setVerifiedErr error
	setSecretErr   error
	clearErr       error
	advanceErr     error

	// record calls
	verifiedCalls []bool
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    map[string]domain.User{},
		byEmail: map[string]domain.User{},
	}
}

func (f *fakeUserRepo) put(u domain.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
}

func (f *fakeUserRepo) get(id string) domain.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeUserRepo) update(id string, fn func(*domain.User)) error {
	u, ok := f.byID[id]
	if !ok {
		return domain.ErrUserNotFound()
	}
	fn(&u)
	f.byID[id] = u
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getByEmailErr != nil {
		return domain.User{}, f.getByEmailErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getByIDErr != nil {
		return domain.User{}, f.getByIDErr
	}
	u, ok := f.byID[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound()
	}
	return u, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, u domain.User) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return domain.User{}, f.createErr
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return domain.User{}, domain.ErrDuplicateUser()
	}
	f.byID[u.ID] = u
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUserRepo) SetTwoFactorVerified(ctx context.Context, userID string, verified bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setVerifiedErr != nil {
		return f.setVerifiedErr
	}
	f.verifiedCalls = append(f.verifiedCalls, verified)
	return f.update(userID, func(u *domain.User) { u.TwoFactorVerified = verified })
}

func (f *fakeUserRepo) SetTwoFactorSecret(ctx context.Context, userID, secret string, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setSecretErr != nil {
		return f.setSecretErr
	}
	return f.update(userID, func(u *domain.User) {
		u.TwoFactorSecret = secret
		u.TwoFactorEnabled = enabled
		u.TwoFactorLastStep = 0
	})
}

func (f *fakeUserRepo) ClearTwoFactor(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.clearErr != nil {
		return f.clearErr
	}
	return f.update(userID, func(u *domain.User) {
		u.TwoFactorSecret = ""
		u.TwoFactorEnabled = false
		u.TwoFactorVerified = false
		u.TwoFactorLastStep = 0
	})
}

func (f *fakeUserRepo) AdvanceTwoFactorStep(ctx context.Context, userID string, step int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.advanceErr != nil {
		return false, f.advanceErr
	}
	u, ok := f.byID[userID]
	if !ok {
		return false, domain.ErrUserNotFound()
	}
	if step <= u.TwoFactorLastStep {
		return false, nil
	}
	u.TwoFactorLastStep = step
	f.byID[userID] = u
	f.byEmail[u.Email] = u
	return true, nil
}

type fakeHasher struct {
	hashFn    func(pw string) (string, error)
	compareFn func(hash, pw string) error
}

func (h *fakeHasher) Hash(password string) (string, error) {
	if h.hashFn != nil {
		return h.hashFn(password)
	}
	return "hash:" + password, nil
}

func (h *fakeHasher) Compare(hash string, password string) error {
	if h.compareFn != nil {
		return h.compareFn(hash, password)
	}
	if hash == "hash:"+password {
		return nil
	}
	return errors.New("mismatch")
}

type fakeSigner struct {
	signFn  func(userID string, ttl time.Duration) (string, error)
	lastTTL time.Duration
}

func (s *fakeSigner) SignAccessToken(userID string, ttl time.Duration) (string, error) {
	s.lastTTL = ttl
	if s.signFn != nil {
		return s.signFn(userID, ttl)
	}
	return fmt.Sprintf("jwt(%s)", userID), nil
}

func (s *fakeSigner) VerifyAccessToken(token string) (TokenClaims, error) {
	id, ok := strings.CutPrefix(token, "jwt(")
	if !ok {
		return TokenClaims{}, domain.ErrTokenInvalid()
	}
	return TokenClaims{UserID: strings.TrimSuffix(id, ")"), Exp: time.Now().Add(time.Hour)}, nil
}

// fakeSecrets hands out SECRET1, SECRET2, ... so rotation is observable.
type fakeSecrets struct {
	mu       sync.Mutex
	n        int
	err      error
	accounts []string
}

func (f *fakeSecrets) Generate(accountName string) (TOTPSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return TOTPSecret{}, f.err
	}
	f.n++
	f.accounts = append(f.accounts, accountName)
	sec := fmt.Sprintf("SECRET%d", f.n)
	return TOTPSecret{
		Secret: sec,
		URI:    "otpauth://totp/MyApp:" + accountName + "?secret=" + sec,
	}, nil
}

// fakeCodes accepts "<secret>-ok" at the 30s step of the given instant.
type fakeCodes struct{}

func (fakeCodes) Verify(secret, code string, at time.Time) (int64, bool) {
	if code != secret+"-ok" {
		return 0, false
	}
	return at.Unix() / 30, true
}

type fakeQR struct {
	err   error
	delay time.Duration
}

func (q *fakeQR) Render(ctx context.Context, uri string) ([]byte, error) {
	if q.delay > 0 {
		select {
		case <-time.After(q.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if q.err != nil {
		return nil, q.err
	}
	return []byte("png:" + uri), nil
}

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	evts []SecurityEvent
}

func (p *fakePublisher) PublishSecurityEvent(ctx context.Context, evt SecurityEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.evts = append(p.evts, evt)
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.evts))
	for _, e := range p.evts {
		out = append(out, e.Type)
	}
	return out
}

/*
Service factory for tests
*/

type testDeps struct {
	users   *fakeUserRepo
	hasher  *fakeHasher
	signer  *fakeSigner
	secrets *fakeSecrets
	qr      *fakeQR
	pub     *fakePublisher
	audits  *[]auditEntry
}

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newSvcForTest(t *testing.T, mutate ...func(*Config)) (*Service, testDeps) {
	t.Helper()

	d := testDeps{
		users:   newFakeUserRepo(),
		hasher:  &fakeHasher{},
		signer:  &fakeSigner{},
		secrets: &fakeSecrets{},
		qr:      &fakeQR{},
		pub:     &fakePublisher{},
		audits:  &[]auditEntry{},
	}

	cfg := Config{
		AccessTTL:           time.Hour,
		StoreTimeout:        time.Second,
		RenderTimeout:       time.Second,
		RotateSecretOnLogin: true,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	svc := NewService(d.users, d.hasher, d.signer, d.secrets, fakeCodes{}, d.qr, d.pub, cfg).
		WithClock(func() time.Time { return fixedNow }).
		WithAudit(func(action string, fields map[string]string) {
			cp := map[string]string{}
			for k, v := range fields {
				cp[k] = v
			}
			*d.audits = append(*d.audits, auditEntry{action: action, fields: cp})
		})

	if svc == nil {
		t.Fatalf("svc is nil")
	}
	return svc, d
}

// seedUser stores a user whose password is "pw".
func seedUser(d testDeps, id, email string, twoFA bool, secret string) domain.User {
	u := domain.User{
		ID:               id,
		Email:            email,
		PasswordHash:     "hash:pw",
		TwoFactorEnabled: twoFA,
		TwoFactorSecret:  secret,
	}
	d.users.put(u)
	return u
}

/*
Small assertions
*/

func requireDomainCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	got := domainCode(err)
	if got != wantCode {
		t.Fatalf("expected domain code %q, got %q (err=%v)", wantCode, got, err)
	}
}

func lastAudit(audits *[]auditEntry) (auditEntry, bool) {
	if audits == nil || len(*audits) == 0 {
		return auditEntry{}, false
	}
	return (*audits)[len(*audits)-1], true
}

func requireAuditAction(t *testing.T, audits *[]auditEntry, wantAction string) auditEntry {
	t.Helper()
	e, ok := lastAudit(audits)
	if !ok {
		t.Fatalf("expected audit entry, got none")
	}
	if e.action != wantAction {
		t.Fatalf("expected audit action %q, got %q", wantAction, e.action)
	}
	return e
}

func requireAuditField(t *testing.T, e auditEntry, k, want string) {
	t.Helper()
	got := strings.TrimSpace(e.fields[k])
	if got != want {
		t.Fatalf("expected audit field %q=%q, got %q (all=%v)", k, want, got, e.fields)
	}
}
