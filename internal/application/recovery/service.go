package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/id"
	"github.com/go-identity-api/internal/pkg/otp"
	pkgtoken "github.com/go-identity-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// CodeStatus is the outcome of presenting a recovery code.
type CodeStatus int

const (
	CodeInvalid CodeStatus = iota
	CodeAccepted
	CodeExpired
	CodeTooManyAttempts
	CodeNoActive
)

// VerifyResult carries the code outcome plus, for CodeInvalid, how many
// attempts remain before the record is exhausted.
type VerifyResult struct {
	Status       CodeStatus
	AttemptsLeft int
}

// RequestResult hands the caller the opaque continuation token that links
// the verify and reset steps back to this request.
type RequestResult struct {
	ContextID string
}

type Service interface {
	// Request starts the flow: resolves the account behind identifier,
	// issues a recovery code and dispatches it via method. An unknown
	// identifier produces the same externally observable result as a known
	// one (a decoy context, no code issued), so accounts cannot be
	// enumerated. Storage errors propagate as-is; a gateway delivery
	// failure surfaces as domain.ErrDelivery.
	Request(ctx context.Context, identifier, method string) (*RequestResult, error)
	// VerifyCode charges an attempt against the newest unused code and then
	// compares. The charge happens before the comparison so every presented
	// code consumes a try, even when the caller errors out afterwards.
	VerifyCode(ctx context.Context, contextID, code string) (*VerifyResult, error)
	// Reset sets the new password. It requires a context that passed
	// VerifyCode and destroys the context on success so the flow cannot be
	// replayed.
	Reset(ctx context.Context, contextID, newPassword, confirmPassword string) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type profileStore interface {
	GetByPhone(ctx context.Context, phone string) (*domain.BusinessProfile, error)
}

type otpStore interface {
	Put(ctx context.Context, o *domain.PasswordResetOTP) error
	LatestUnused(ctx context.Context, userID string) (*domain.PasswordResetOTP, error)
	ChargeAttempt(ctx context.Context, userID, otpID string) (int, error)
	MarkUsed(ctx context.Context, userID, otpID string) error
}

type contextStore interface {
	Put(ctx context.Context, rc *domain.RecoveryContext) error
	Get(ctx context.Context, contextID string) (*domain.RecoveryContext, error)
	MarkVerified(ctx context.Context, contextID string) error
	Delete(ctx context.Context, contextID string) error
}

type mailSender interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type service struct {
	userRepo    userStore
	profileRepo profileStore
	otpRepo     otpStore
	contextRepo contextStore
	mailer      mailSender
	sms         smsSender
	otpExpiry   time.Duration
	maxAttempts int
	ctxExpiry   time.Duration
	now         func() time.Time
}

type ServiceDeps struct {
	UserRepo      userStore
	ProfileRepo   profileStore
	OTPRepo       otpStore
	ContextRepo   contextStore
	Mailer        mailSender
	SMSSender     smsSender
	OTPExpiry     time.Duration // defaults to 10 minutes
	MaxAttempts   int           // defaults to 5
	ContextExpiry time.Duration // defaults to 15 minutes
	Now           func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		userRepo:    deps.UserRepo,
		profileRepo: deps.ProfileRepo,
		otpRepo:     deps.OTPRepo,
		contextRepo: deps.ContextRepo,
		mailer:      deps.Mailer,
		sms:         deps.SMSSender,
		otpExpiry:   deps.OTPExpiry,
		maxAttempts: deps.MaxAttempts,
		ctxExpiry:   deps.ContextExpiry,
		now:         deps.Now,
	}
	if s.otpExpiry == 0 {
		s.otpExpiry = 10 * time.Minute
	}
	if s.maxAttempts == 0 {
		s.maxAttempts = 5
	}
	if s.ctxExpiry == 0 {
		s.ctxExpiry = 15 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Request(ctx context.Context, identifier, method string) (*RequestResult, error) {
	if identifier == "" {
		return nil, fmt.Errorf("identifier required: %w", domain.ErrBadRequest)
	}

	// Only a clean miss takes the decoy path below. Storage failures are
	// surfaced as-is; swallowing them would falsely report a code as sent.
	var userID, destination string
	switch method {
	case domain.MethodEmail:
		u, err := s.userRepo.GetByEmail(ctx, identifier)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			userID, destination = u.UserID, u.Email
		}
	case domain.MethodPhone:
		p, err := s.profileRepo.GetByPhone(ctx, identifier)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err == nil {
			userID, destination = p.UserID, p.Phone
		}
	default:
		return nil, fmt.Errorf("method must be %q or %q: %w", domain.MethodEmail, domain.MethodPhone, domain.ErrBadRequest)
	}

	now := s.now().UTC()

	// Unknown identifier: hand out a decoy context so the response is
	// indistinguishable from the known-account case. No code is issued.
	if userID == "" {
		slog.Debug("password recovery requested for unknown identifier", "method", method)
		return s.storeContext(ctx, "", method, now)
	}

	code, err := otp.GenerateCode()
	if err != nil {
		return nil, err
	}
	rec := &domain.PasswordResetOTP{
		UserID:    userID,
		OTPID:     id.New(),
		Code:      code,
		Method:    method,
		CreatedAt: now,
		ExpiresAt: now.Add(s.otpExpiry).Unix(),
	}
	if err := s.otpRepo.Put(ctx, rec); err != nil {
		return nil, err
	}

	if err := s.dispatch(ctx, method, destination, code); err != nil {
		slog.Warn("recovery code dispatch failed", "method", method, "err", err)
		return nil, fmt.Errorf("send recovery code: %w", domain.ErrDelivery)
	}
	return s.storeContext(ctx, userID, method, now)
}

func (s *service) VerifyCode(ctx context.Context, contextID, code string) (*VerifyResult, error) {
	rc, err := s.loadContext(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if rc.UserID == "" {
		// Decoy context: behaves exactly like a context whose codes have
		// all lapsed.
		return &VerifyResult{Status: CodeNoActive}, nil
	}

	rec, err := s.otpRepo.LatestUnused(ctx, rc.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &VerifyResult{Status: CodeNoActive}, nil
		}
		return nil, err
	}

	// Charge the attempt before comparing anything, so every presented
	// code consumes a try no matter what happens afterwards.
	attempts, err := s.otpRepo.ChargeAttempt(ctx, rc.UserID, rec.OTPID)
	if err != nil {
		return nil, err
	}

	if attempts > s.maxAttempts {
		if err := s.otpRepo.MarkUsed(ctx, rc.UserID, rec.OTPID); err != nil && !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		return &VerifyResult{Status: CodeTooManyAttempts}, nil
	}
	if s.now().Unix() >= rec.ExpiresAt {
		// Not marked used: expiry and cap exhaustion stay independently
		// observable on the record.
		return &VerifyResult{Status: CodeExpired}, nil
	}
	if rec.Code != code {
		left := s.maxAttempts - attempts
		if left < 0 {
			left = 0
		}
		return &VerifyResult{Status: CodeInvalid, AttemptsLeft: left}, nil
	}

	if err := s.otpRepo.MarkUsed(ctx, rc.UserID, rec.OTPID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			// A concurrent verification consumed the record first.
			return &VerifyResult{Status: CodeNoActive}, nil
		}
		return nil, err
	}
	if err := s.contextRepo.MarkVerified(ctx, contextID); err != nil {
		return nil, err
	}
	return &VerifyResult{Status: CodeAccepted}, nil
}

func (s *service) Reset(ctx context.Context, contextID, newPassword, confirmPassword string) error {
	rc, err := s.loadContext(ctx, contextID)
	if err != nil {
		return err
	}
	if rc.UserID == "" || !rc.OTPVerified {
		return fmt.Errorf("complete code verification first: %w", domain.ErrNotVerified)
	}
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", minPasswordLength, domain.ErrBadRequest)
	}
	if newPassword != confirmPassword {
		return fmt.Errorf("passwords do not match: %w", domain.ErrBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.userRepo.Update(ctx, rc.UserID, map[string]interface{}{
		"password_hash": string(hash),
	}); err != nil {
		return err
	}
	// Destroy the continuation context so the completed flow cannot be
	// replayed with the same token.
	if err := s.contextRepo.Delete(ctx, contextID); err != nil {
		slog.Warn("failed to delete recovery context", "err", err)
	}
	return nil
}

func (s *service) storeContext(ctx context.Context, userID, method string, now time.Time) (*RequestResult, error) {
	token, err := pkgtoken.NewContinuationToken()
	if err != nil {
		return nil, err
	}
	rc := &domain.RecoveryContext{
		ContextID: token,
		UserID:    userID,
		Method:    method,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ctxExpiry).Unix(),
	}
	if err := s.contextRepo.Put(ctx, rc); err != nil {
		return nil, err
	}
	return &RequestResult{ContextID: token}, nil
}

func (s *service) loadContext(ctx context.Context, contextID string) (*domain.RecoveryContext, error) {
	if contextID == "" {
		return nil, fmt.Errorf("missing recovery context: %w", domain.ErrNotStarted)
	}
	rc, err := s.contextRepo.Get(ctx, contextID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("recovery context expired or unknown: %w", domain.ErrNotStarted)
		}
		return nil, err
	}
	// The TTL sweep is eventual; enforce expiry here as well.
	if s.now().Unix() >= rc.ExpiresAt {
		return nil, fmt.Errorf("recovery context expired: %w", domain.ErrNotStarted)
	}
	return rc, nil
}

func (s *service) dispatch(ctx context.Context, method, destination, code string) error {
	switch method {
	case domain.MethodEmail:
		body := fmt.Sprintf(
			"We received a request to reset your password.\n\nYour code: %s\n\nThe code is valid for %d minutes. Never share it with anyone. If you did not request this, ignore this message.\n",
			code, int(s.otpExpiry.Minutes()),
		)
		return s.mailer.SendEmail(destination, "Your password reset code", body)
	case domain.MethodPhone:
		return s.sms.SendSMS(ctx, destination, fmt.Sprintf("Your password reset code: %s", code))
	}
	return fmt.Errorf("unknown method %q: %w", method, domain.ErrBadRequest)
}
