package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	domainmodel "github.com/campuslink/api/internal/domain"
	"github.com/campuslink/api/internal/store"
	"github.com/campuslink/api/pkg/crypto"
)

// RequestSignupVerification starts the two-phase registration: it stores
// a pending signup holding the hashed password and hashed one-time code,
// then dispatches the code out of band. Re-invoking for the same email
// overwrites the previous pending record, which doubles as "resend".
func (s Service) RequestSignupVerification(ctx context.Context, in RegisterInput) error {
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Gender == "" {
		return ErrMissingFields
	}
	clean, err := s.normalizeEmail(in.Email)
	if err != nil {
		return err
	}
	if _, err := s.store.FindUserByEmail(ctx, clean); err == nil {
		return ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	code, err := generateOTP(s.cfg.OTPDigits)
	if err != nil {
		return err
	}
	ttl := s.cfg.OTPTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	now := s.now().UTC()
	pending := domainmodel.PendingSignup{
		Name:         strings.TrimSpace(in.Name),
		Email:        clean,
		Gender:       in.Gender,
		PasswordHash: crypto.Digest(in.Password),
		OTPHash:      crypto.Digest(code),
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}
	if err := s.pendings.Put(ctx, pending); err != nil {
		return err
	}
	if err := s.dispatcher.SendVerificationCode(ctx, clean, code); err != nil {
		return fmt.Errorf("dispatch verification code: %w", err)
	}
	s.logger.Info("signup verification requested", "email", clean, "expires_at", pending.ExpiresAt)
	return nil
}

// VerifySignup completes registration: it checks the pending record and
// the supplied code, re-checks email availability, materializes the user
// with a verified email and deletes the pending record. A failed verify
// leaves the pending record intact except on expiry, so the user may
// retry with the correct code.
func (s Service) VerifySignup(ctx context.Context, email, otp string) (*domainmodel.User, error) {
	clean, err := s.normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	pending, err := s.pendings.Get(ctx, clean)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, err
	}
	if pending.Expired(s.now()) {
		if err := s.pendings.Delete(ctx, clean); err != nil {
			return nil, err
		}
		return nil, ErrOTPExpired
	}
	if crypto.Digest(strings.TrimSpace(otp)) != pending.OTPHash {
		return nil, ErrOTPInvalid
	}
	// Race protection: the email may have been registered since the
	// verification was requested.
	if _, err := s.store.FindUserByEmail(ctx, clean); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	user := domainmodel.User{
		ID:              uuid.NewString(),
		Name:            pending.Name,
		Email:           pending.Email,
		Gender:          pending.Gender,
		PasswordHash:    pending.PasswordHash,
		Theme:           domainmodel.DefaultTheme,
		Language:        domainmodel.DefaultLanguage,
		Notification:    domainmodel.DefaultNotification,
		EmailVerified:   true,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
	}
	if err := s.store.InsertUser(ctx, &user); err != nil {
		return nil, err
	}
	if err := s.pendings.Delete(ctx, clean); err != nil {
		return nil, err
	}
	s.logger.Info("signup verified", "user_id", user.ID)
	return &user, nil
}

// generateOTP produces a uniformly random fixed-width numeric code.
func generateOTP(digits int) (string, error) {
	if digits <= 0 {
		digits = 6
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
