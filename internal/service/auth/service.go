// Package auth implements registration, login, password reset and the
// two-phase signup verification flow against the selected store backend.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	domainmodel "github.com/campuslink/api/internal/domain"
	"github.com/campuslink/api/internal/mailer"
	"github.com/campuslink/api/internal/session"
	"github.com/campuslink/api/internal/store"
	"github.com/campuslink/api/pkg/config"
	"github.com/campuslink/api/pkg/crypto"
	jwtpkg "github.com/campuslink/api/pkg/jwt"
)

var (
	ErrMissingFields = errors.New("auth: all fields are required")
	ErrInvalidEmail  = errors.New("auth: invalid email address")
	ErrEmailExists   = errors.New("auth: email already exists")
	// Unknown email and wrong password share one message so a caller
	// cannot tell which part was wrong.
	ErrInvalidCredentials   = errors.New("auth: invalid email or password")
	ErrEmailNotVerified     = errors.New("auth: email not verified")
	ErrEmailNotFound        = errors.New("auth: email not found")
	ErrVerificationNotFound = errors.New("auth: verification request not found")
	ErrOTPExpired           = errors.New("auth: OTP expired")
	ErrOTPInvalid           = errors.New("auth: invalid OTP")
)

// Service handles authentication workflows.
type Service struct {
	store      store.Store
	pendings   *store.PendingStore
	sessions   *session.Manager
	dispatcher mailer.Dispatcher
	logger     *slog.Logger
	cfg        config.APIConfig

	emailDomain  string
	emailPattern *regexp.Regexp
	now          func() time.Time
}

// New constructs a Service. The restricted email domain comes from
// configuration and is compiled into the validation pattern once.
func New(st store.Store, pendings *store.PendingStore, sessions *session.Manager, dispatcher mailer.Dispatcher, logger *slog.Logger, cfg config.APIConfig) Service {
	emailDomain := strings.ToLower(strings.TrimSpace(cfg.AllowedEmailDomain))
	if emailDomain == "" {
		emailDomain = "gmail.com"
	}
	pattern := regexp.MustCompile(`^[a-z0-9](?:[a-z0-9._%+-]{0,62}[a-z0-9])?@` + regexp.QuoteMeta(emailDomain) + `$`)
	return Service{
		store:        st,
		pendings:     pendings,
		sessions:     sessions,
		dispatcher:   dispatcher,
		logger:       logger,
		cfg:          cfg,
		emailDomain:  emailDomain,
		emailPattern: pattern,
		now:          time.Now,
	}
}

// RegisterInput carries the fields of both registration paths.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Gender   string `json:"gender"`
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

// normalizeEmail lowercases, trims and validates the address against the
// restricted-domain pattern. Validation happens before any store access.
func (s Service) normalizeEmail(email string) (string, error) {
	clean := strings.ToLower(strings.TrimSpace(email))
	if !s.emailPattern.MatchString(clean) {
		return "", fmt.Errorf("%w: use a valid @%s address", ErrInvalidEmail, s.emailDomain)
	}
	return clean, nil
}

func (s Service) newUser(in RegisterInput, cleanEmail string, verifiedAt time.Time) domainmodel.User {
	return domainmodel.User{
		ID:              uuid.NewString(),
		Name:            strings.TrimSpace(in.Name),
		Email:           cleanEmail,
		Gender:          in.Gender,
		PasswordHash:    crypto.Digest(in.Password),
		Theme:           domainmodel.DefaultTheme,
		Language:        domainmodel.DefaultLanguage,
		Notification:    domainmodel.DefaultNotification,
		EmailVerified:   true,
		EmailVerifiedAt: &verifiedAt,
		CreatedAt:       verifiedAt,
	}
}

// Register materializes a user directly, with the email considered
// verified immediately. This is the path used when the OTP flow is not
// wired in front of registration.
func (s Service) Register(ctx context.Context, in RegisterInput) (*domainmodel.User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Gender == "" {
		return nil, ErrMissingFields
	}
	clean, err := s.normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.FindUserByEmail(ctx, clean); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	user := s.newUser(in, clean, s.now().UTC())
	if err := s.store.InsertUser(ctx, &user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return &user, nil
}

// Login authenticates by exact email and password-digest match, requires
// a verified email, and writes the active session on success.
func (s Service) Login(ctx context.Context, email, password string) (*domainmodel.SafeUser, error) {
	clean, err := s.normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	user, err := s.store.FindUserByCredentials(ctx, clean, crypto.Digest(password))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	safe := user.Safe()
	if err := s.sessions.Set(ctx, &domainmodel.Session{User: safe}); err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return &safe, nil
}

// SignOut destroys the active session.
func (s Service) SignOut(ctx context.Context) error {
	return s.sessions.Clear(ctx)
}

// ResetPassword overwrites the password digest for the email. Existing
// sessions for the user stay valid.
func (s Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	if newPassword == "" {
		return ErrMissingFields
	}
	clean, err := s.normalizeEmail(email)
	if err != nil {
		return err
	}
	err = s.store.UpdateUserByEmail(ctx, clean, map[string]any{"passwordHash": crypto.Digest(newPassword)})
	if errors.Is(err, store.ErrNotFound) {
		return ErrEmailNotFound
	}
	return err
}

// GetProfile returns the full user document.
func (s Service) GetProfile(ctx context.Context, userID string) (*domainmodel.User, error) {
	return s.store.FindUserByID(ctx, userID)
}

// immutableProfileFields never change through profile updates.
var immutableProfileFields = []string{"id", "email", "created_at"}

// UpdateProfile shallow-merges fields into the user document and keeps
// the active session in sync when it belongs to the same user.
func (s Service) UpdateProfile(ctx context.Context, userID string, fields map[string]any) (*domainmodel.User, error) {
	for _, key := range immutableProfileFields {
		delete(fields, key)
	}
	updated, err := s.store.UpdateUser(ctx, userID, fields)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.RefreshUser(ctx, updated.Safe()); err != nil {
		return nil, err
	}
	return updated, nil
}

// Authorize validates a bearer token and returns the associated user.
func (s Service) Authorize(ctx context.Context, token string) (*domainmodel.User, *jwtpkg.Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, nil, errors.New("auth: token required")
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, nil, err
	}
	user, err := s.store.FindUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, claims, nil
}

// IssueTokens creates the access/refresh pair for a user id.
func (s Service) IssueTokens(userID string) (TokenPair, error) {
	access, err := jwtpkg.GenerateToken(userID, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := jwtpkg.GenerateToken(userID, s.cfg.JWTSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.cfg.AccessTokenTTL}, nil
}
