package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	domainmodel "github.com/campuslink/api/internal/domain"
	"github.com/campuslink/api/internal/kv"
	"github.com/campuslink/api/internal/mailer"
	"github.com/campuslink/api/internal/notify"
	"github.com/campuslink/api/internal/session"
	"github.com/campuslink/api/internal/store"
	"github.com/campuslink/api/pkg/config"
	"github.com/campuslink/api/pkg/crypto"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	svc      Service
	sessions *session.Manager
	mail     *mailer.Local
	store    store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hub := notify.NewHub()
	kvs := kv.NewMemory(hub)
	st := store.NewLocal(kvs, newTestLogger())
	sessions := session.NewManager(kvs, hub, newTestLogger())
	t.Cleanup(sessions.Close)
	mail := mailer.NewLocal()
	cfg := config.APIConfig{
		JWTSecret:          "test-secret",
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    24 * time.Hour,
		AllowedEmailDomain: "gmail.com",
		OTPTTL:             10 * time.Minute,
		OTPDigits:          6,
	}
	svc := New(st, store.NewPendingStore(kvs), sessions, mail, newTestLogger(), cfg)
	return &fixture{svc: svc, sessions: sessions, mail: mail, store: st}
}

func validInput() RegisterInput {
	return RegisterInput{Name: "Ada", Email: "ada@gmail.com", Password: "Testing123!", Gender: "female"}
}

func TestRegisterValidatesInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Register(ctx, RegisterInput{Email: "ada@gmail.com"}); !errors.Is(err, ErrMissingFields) {
		t.Fatalf("expected ErrMissingFields, got %v", err)
	}

	for _, email := range []string{
		"ada@yahoo.com",
		"@gmail.com",
		".ada@gmail.com",
		"ada.@gmail.com",
		"ada at gmail.com",
	} {
		in := validInput()
		in.Email = email
		if _, err := f.svc.Register(ctx, in); !errors.Is(err, ErrInvalidEmail) {
			t.Fatalf("expected ErrInvalidEmail for %q, got %v", email, err)
		}
	}
}

func TestRegisterNormalizesAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := validInput()
	in.Email = "  Ada@Gmail.com "
	user, err := f.svc.Register(ctx, in)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ada@gmail.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.PasswordHash == in.Password || user.PasswordHash == "" {
		t.Fatalf("password must be stored as a digest")
	}
	if user.Theme != domainmodel.DefaultTheme || user.Language != domainmodel.DefaultLanguage {
		t.Fatalf("preference defaults missing: %+v", user)
	}
	if !user.EmailVerified {
		t.Fatalf("direct registration marks the email verified")
	}

	dup := validInput()
	dup.Email = "ADA@gmail.com"
	if _, err := f.svc.Register(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists for case-variant email, got %v", err)
	}
}

func TestLoginSetsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	safe, err := f.svc.Login(ctx, "ada@gmail.com", "Testing123!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if safe.Email != "ada@gmail.com" {
		t.Fatalf("unexpected user: %+v", safe)
	}
	current := f.sessions.Current(ctx)
	if current == nil || current.User.ID != safe.ID {
		t.Fatalf("session not written: %+v", current)
	}

	if err := f.svc.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if f.sessions.Current(ctx) != nil {
		t.Fatalf("session must be cleared after sign out")
	}
}

func TestLoginSharedFailureMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	// Wrong password and unknown email fail identically.
	_, wrongPass := f.svc.Login(ctx, "ada@gmail.com", "nope")
	_, unknown := f.svc.Login(ctx, "ghost@gmail.com", "Testing123!")
	if !errors.Is(wrongPass, ErrInvalidCredentials) || !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("expected shared ErrInvalidCredentials, got %v and %v", wrongPass, unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Fatalf("messages differ: %q vs %q", wrongPass, unknown)
	}
	if f.sessions.Current(ctx) != nil {
		t.Fatalf("failed login must not write a session")
	}
}

func TestLoginRequiresVerifiedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := domainmodel.User{
		ID:           "u1",
		Email:        "ada@gmail.com",
		PasswordHash: crypto.Digest("Testing123!"),
	}
	if err := f.store.InsertUser(ctx, &user); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := f.svc.Login(ctx, "ada@gmail.com", "Testing123!"); !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Register(ctx, validInput()); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := f.svc.ResetPassword(ctx, "ghost@gmail.com", "NewPass123!"); !errors.Is(err, ErrEmailNotFound) {
		t.Fatalf("expected ErrEmailNotFound, got %v", err)
	}
	if err := f.svc.ResetPassword(ctx, "ada@gmail.com", "NewPass123!"); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if _, err := f.svc.Login(ctx, "ada@gmail.com", "Testing123!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := f.svc.Login(ctx, "ada@gmail.com", "NewPass123!"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestUpdateProfileStripsImmutableFieldsAndSyncsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := f.svc.Login(ctx, "ada@gmail.com", "Testing123!"); err != nil {
		t.Fatalf("login: %v", err)
	}

	updated, err := f.svc.UpdateProfile(ctx, user.ID, map[string]any{
		"name":  "Ada L",
		"phone": "555",
		"id":    "hijack",
		"email": "other@gmail.com",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.ID != user.ID || updated.Email != "ada@gmail.com" {
		t.Fatalf("immutable fields changed: %+v", updated)
	}
	if updated.Name != "Ada L" || updated.Phone != "555" {
		t.Fatalf("mutable fields not applied: %+v", updated)
	}

	current := f.sessions.Current(ctx)
	if current == nil || current.User.Name != "Ada L" || current.User.Phone != "555" {
		t.Fatalf("session not synced with profile: %+v", current)
	}
}

func TestAuthorizeRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.svc.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	tokens, err := f.svc.IssueTokens(user.ID)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	got, claims, err := f.svc.Authorize(ctx, tokens.AccessToken)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if got.ID != user.ID || claims.UserID != user.ID {
		t.Fatalf("unexpected identity: %+v %+v", got, claims)
	}
	if _, _, err := f.svc.Authorize(ctx, "not-a-token"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
	if _, _, err := f.svc.Authorize(ctx, ""); err == nil {
		t.Fatalf("expected error for empty token")
	}
}
