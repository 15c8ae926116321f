package twofactor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/qrcode"
	"github.com/go-identity-api/internal/pkg/totp"
)

// Skew is the tolerance window for code validation: codes from the previous
// and next 30-second step are accepted to absorb clock drift.
const Skew = 1

// VerifyStatus is the outcome of presenting a TOTP code. EmptyCode is a UX
// outcome, not a security one: the caller left the field blank.
type VerifyStatus int

const (
	VerifyInvalidCode VerifyStatus = iota
	VerifyEmptyCode
	VerifyOK
)

// Enrollment is what the caller needs to finish (or skip) setup. Secret, URI
// and QR are only populated while the record is not yet active; once enabled
// the secret is never shown again.
type Enrollment struct {
	Secret          string `json:"secret,omitempty"`
	ProvisioningURI string `json:"provisioning_uri,omitempty"`
	QRDataURI       string `json:"qr,omitempty"`
	Enrolling       bool   `json:"enrolling"`
	Enabled         bool   `json:"enabled"`
}

type Service interface {
	// GetOrEnroll returns the user's enrollment state, lazily creating the
	// record and generating the secret on first access. The secret is
	// generated exactly once and persisted before it is ever displayed.
	GetOrEnroll(ctx context.Context, userID string) (*Enrollment, error)
	// Verify checks a presented code against the current step ±Skew. The
	// first success while enrolling enables the record; every success
	// stamps last_verified_at. Wrong codes change no state.
	Verify(ctx context.Context, userID, code string) (VerifyStatus, error)
}

type twoFactorStore interface {
	Get(ctx context.Context, userID string) (*domain.TwoFactor, error)
	Create(ctx context.Context, tf *domain.TwoFactor) error
	MarkVerified(ctx context.Context, userID string, at time.Time) error
}

type userStore interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type service struct {
	repo     twoFactorStore
	userRepo userStore
	issuer   string
	now      func() time.Time
}

type ServiceDeps struct {
	Repo     twoFactorStore
	UserRepo userStore
	Issuer   string
	Now      func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     deps.Repo,
		userRepo: deps.UserRepo,
		issuer:   deps.Issuer,
		now:      now,
	}
}

func (s *service) GetOrEnroll(ctx context.Context, userID string) (*Enrollment, error) {
	tf, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if tf.Enabled {
		return &Enrollment{Enabled: true}, nil
	}

	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	accountName := u.Email
	if accountName == "" {
		accountName = u.Username
	}
	uri := totp.ProvisioningURI(tf.Secret, accountName, s.issuer)
	qr, err := qrcode.GenerateDataURI(uri, 200)
	if err != nil {
		return nil, fmt.Errorf("render enrollment qr: %w", err)
	}
	return &Enrollment{
		Secret:          tf.Secret,
		ProvisioningURI: uri,
		QRDataURI:       qr,
		Enrolling:       true,
	}, nil
}

func (s *service) Verify(ctx context.Context, userID, code string) (VerifyStatus, error) {
	if strings.TrimSpace(code) == "" {
		return VerifyEmptyCode, nil
	}
	tf, err := s.repo.Get(ctx, userID)
	if err != nil {
		return VerifyInvalidCode, err
	}
	ok, err := totp.Validate(tf.Secret, code, s.now(), Skew)
	if err != nil {
		return VerifyInvalidCode, err
	}
	if !ok {
		return VerifyInvalidCode, nil
	}
	if err := s.repo.MarkVerified(ctx, userID, s.now().UTC()); err != nil {
		return VerifyInvalidCode, err
	}
	return VerifyOK, nil
}

func (s *service) getOrCreate(ctx context.Context, userID string) (*domain.TwoFactor, error) {
	tf, err := s.repo.Get(ctx, userID)
	if err == nil {
		return tf, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	secret, err := totp.GenerateSecret()
	if err != nil {
		return nil, err
	}
	tf = &domain.TwoFactor{
		UserID:    userID,
		Secret:    secret,
		Enabled:   false,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, tf); err != nil {
		// Lost a concurrent first-enrollment race; the surviving record
		// carries the secret that was persisted first.
		if errors.Is(err, domain.ErrConflict) {
			return s.repo.Get(ctx, userID)
		}
		return nil, err
	}
	return tf, nil
}
