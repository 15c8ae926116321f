package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-identity-api/internal/domain"
	pkgtoken "github.com/go-identity-api/internal/pkg/token"
)

// TokenTTL is the validity window of an email verification link.
const TokenTTL = 24 * time.Hour

// ConsumeOutcome is the result of presenting a verification token. Unknown,
// mismatched and expired tokens all collapse into InvalidOrExpired so a
// guesser cannot tell which case applied.
type ConsumeOutcome int

const (
	ConsumeInvalidOrExpired ConsumeOutcome = iota
	ConsumeVerified
)

type Service interface {
	// Issue generates a fresh verification token for the user, persists it
	// with its issuance timestamp and mails the verification link. Any
	// previously outstanding token is superseded: only the latest value is
	// stored, so at most one token is live per account.
	Issue(ctx context.Context, userID string) (string, error)
	// Consume validates a presented token and, on success, marks the email
	// verified and clears the stored token exactly once.
	Consume(ctx context.Context, token string) (ConsumeOutcome, error)
	ToggleNotifications(ctx context.Context, userID string) (bool, error)
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type mailSender interface {
	SendEmail(to, subject, body string) error
}

type service struct {
	userRepo userStore
	mailer   mailSender
	siteURL  string
	now      func() time.Time
}

type ServiceDeps struct {
	UserRepo userStore
	Mailer   mailSender
	SiteURL  string
	Now      func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		userRepo: deps.UserRepo,
		mailer:   deps.Mailer,
		siteURL:  deps.SiteURL,
		now:      now,
	}
}

func (s *service) Issue(ctx context.Context, userID string) (string, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.EmailVerified {
		return "", fmt.Errorf("email already verified: %w", domain.ErrConflict)
	}

	token := pkgtoken.NewVerificationToken()
	issuedAt := s.now().UTC()
	if err := s.userRepo.Update(ctx, userID, map[string]interface{}{
		"verification_token": token,
		"token_created_at":   issuedAt,
	}); err != nil {
		return "", err
	}

	link := fmt.Sprintf("%s/v1/verify-email/%s", s.siteURL, token)
	body := fmt.Sprintf(
		"Hello %s,\n\nPlease confirm your email address by opening the link below:\n\n%s\n\nThe link is valid for 24 hours. If you did not create an account, ignore this message.\n",
		u.Username, link,
	)
	if err := s.mailer.SendEmail(u.Email, "Verify your email", body); err != nil {
		return "", fmt.Errorf("send verification email: %w", domain.ErrDelivery)
	}
	return token, nil
}

func (s *service) Consume(ctx context.Context, token string) (ConsumeOutcome, error) {
	if token == "" {
		return ConsumeInvalidOrExpired, nil
	}
	u, err := s.userRepo.GetByVerificationToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return ConsumeInvalidOrExpired, nil
		}
		return ConsumeInvalidOrExpired, err
	}
	// The GSI lookup already matched on the token; the equality check guards
	// against eventually-consistent index reads returning a stale row.
	if u.VerificationToken != token || u.TokenCreatedAt == nil {
		return ConsumeInvalidOrExpired, nil
	}
	if s.now().After(u.TokenCreatedAt.Add(TokenTTL)) {
		return ConsumeInvalidOrExpired, nil
	}

	if err := s.userRepo.Update(ctx, u.UserID, map[string]interface{}{
		"email_verified":     true,
		"verification_token": "",
		"token_created_at":   nil,
	}); err != nil {
		return ConsumeInvalidOrExpired, err
	}
	return ConsumeVerified, nil
}

func (s *service) ToggleNotifications(ctx context.Context, userID string) (bool, error) {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	next := !u.NotificationsEnabled
	if next && !u.EmailVerified {
		return false, fmt.Errorf("verify your email before enabling notifications: %w", domain.ErrForbidden)
	}
	if err := s.userRepo.Update(ctx, userID, map[string]interface{}{
		"notifications_enabled": next,
	}); err != nil {
		return false, err
	}
	return next, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
