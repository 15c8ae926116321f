package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	// Register creates the account and its business profile, then issues
	// the initial email verification. A verification send failure does not
	// fail the registration; the user can request a resend later.
	Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID string, req *domain.ChangePasswordRequest) error
}

type userStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

type profileStore interface {
	Put(ctx context.Context, p *domain.BusinessProfile) error
}

// verificationIssuer starts the email verification for a fresh account.
type verificationIssuer interface {
	Issue(ctx context.Context, userID string) (string, error)
}

type service struct {
	userRepo    userStore
	profileRepo profileStore
	verifier    verificationIssuer
	now         func() time.Time
}

type ServiceDeps struct {
	UserRepo    userStore
	ProfileRepo profileStore
	Verifier    verificationIssuer
	Now         func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		userRepo:    deps.UserRepo,
		profileRepo: deps.ProfileRepo,
		verifier:    deps.Verifier,
		now:         deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.User, error) {
	if _, err := s.userRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("username already taken: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Enable:       1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Put(ctx, u); err != nil {
		return nil, err
	}

	p := &domain.BusinessProfile{
		UserID:       u.UserID,
		BusinessName: req.BusinessName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if err := s.profileRepo.Put(ctx, p); err != nil {
		return nil, err
	}

	// Best effort: the account exists either way, and the verification
	// email can be re-requested.
	if _, err := s.verifier.Issue(ctx, u.UserID); err != nil {
		slog.Warn("initial verification email failed", "user_id", u.UserID, "err", err)
	}
	return u, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.Get(ctx, userID)
}

func (s *service) ChangePassword(ctx context.Context, userID string, req *domain.ChangePasswordRequest) error {
	u, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return fmt.Errorf("current password incorrect: %w", domain.ErrUnauthorized)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.userRepo.Update(ctx, userID, map[string]interface{}{
		"password_hash": string(hash),
	})
}
