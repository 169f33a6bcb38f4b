package http_handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/totp-auth/internal/application/auth"
	"github.com/baechuer/totp-auth/internal/infrastructure/memory"
	"github.com/baechuer/totp-auth/internal/infrastructure/security"
	totpinfra "github.com/baechuer/totp-auth/internal/infrastructure/totp"
	"github.com/baechuer/totp-auth/internal/transport/http/middleware"
	"github.com/baechuer/totp-auth/internal/transport/http/response"
	"github.com/baechuer/totp-auth/internal/transport/http/router"
)

const testJWTSecret = "handler-test-secret"

// testStack is the full HTTP surface over an in-memory store.
type testStack struct {
	h      http.Handler
	users  *memory.UserRepo
	signer *security.JWTSigner
}

func newTestStack(t *testing.T, mutate ...func(*auth.Config)) *testStack {
	t.Helper()

	users := memory.NewUserRepo()
	signer := security.NewJWTSigner(testJWTSecret, "totp-auth")

	cfg := auth.Config{
		AccessTTL:           time.Hour,
		StoreTimeout:        time.Second,
		RenderTimeout:       2 * time.Second,
		RotateSecretOnLogin: true,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	mgr := totpinfra.NewManager("MyApp", 1)
	svc := auth.NewService(
		users,
		security.NewBcryptHasher(bcrypt.MinCost),
		signer,
		mgr,
		mgr,
		totpinfra.NewQRRenderer(64),
		memory.NewNoopPublisher(zerolog.Nop()),
		cfg,
	)

	h, err := router.New(router.Deps{
		Health:         NewHealthHandler(users),
		Auth:           NewAuthHandler(svc),
		Dashboard:      NewDashboardHandler(),
		AuthMW:         middleware.Auth(signer, response.WriteError),
		SecondFactorMW: middleware.RequireSecondFactor(svc, response.WriteError),
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	return &testStack{h: h, users: users, signer: signer}
}

// mustJSONBody marshals v to JSON and returns an io.Reader for request body.
func mustJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()

	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func (s *testStack) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r io.Reader = http.NoBody
	if body != nil {
		r = mustJSONBody(t, body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	return rr
}

// mustReadJSON decodes the recorder body into out.
func mustReadJSON(t *testing.T, rr *httptest.ResponseRecorder, out any) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("decode json failed; body=%s err=%v", rr.Body.String(), err)
	}
}

func requireStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected status %d, got %d body=%s", want, rr.Code, rr.Body.String())
	}
}

func requireErrorCode(t *testing.T, rr *httptest.ResponseRecorder, want string) {
	t.Helper()

	var body response.ErrorBody
	mustReadJSON(t, rr, &body)
	if body.Error.Code != want {
		t.Fatalf("expected error code %q, got %q body=%s", want, body.Error.Code, rr.Body.String())
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginBody struct {
	Token       string `json:"token"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
	Requires2FA bool   `json:"requires2FA"`
	QRCode      string `json:"qrCode"`
	UserID      string `json:"userId"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

type verifyBody struct {
	Verified bool   `json:"verified"`
	Token    string `json:"token"`
	Msg      string `json:"msg"`
}

func (s *testStack) register(t *testing.T, email, password string) {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/auth/register", "", credentials{email, password})
	requireStatus(t, rr, http.StatusCreated)
}

func (s *testStack) login(t *testing.T, email, password string) loginBody {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/auth/login", "", credentials{email, password})
	requireStatus(t, rr, http.StatusOK)
	var out loginBody
	mustReadJSON(t, rr, &out)
	return out
}

func (s *testStack) verify(t *testing.T, userID, code string) verifyBody {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/auth/2fa/verify", "", map[string]string{"userId": userID, "token": code})
	requireStatus(t, rr, http.StatusOK)
	var out verifyBody
	mustReadJSON(t, rr, &out)
	return out
}

// storedSecret reads the current TOTP secret straight from the store, the way
// an authenticator app would learn it from the QR code.
func (s *testStack) storedSecret(t *testing.T, email string) string {
	t.Helper()
	u, err := s.users.GetByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("lookup %s: %v", email, err)
	}
	return u.TwoFactorSecret
}

func currentCode(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		t.Fatalf("generate code: %v", err)
	}
	return code
}

// wrongCode returns a 6-digit code that differs from every code accepted in
// the ±1 step window.
func wrongCode(t *testing.T, secret string) string {
	t.Helper()
	now := time.Now()
	valid := map[string]bool{}
	for _, d := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		c, err := totp.GenerateCode(secret, now.Add(d))
		if err != nil {
			t.Fatalf("generate code: %v", err)
		}
		valid[c] = true
	}
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[c] {
			return c
		}
	}
	t.Fatalf("could not pick a wrong code")
	return ""
}
