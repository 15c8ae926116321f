package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-identity-api/internal/application/twofactor"
	"github.com/go-identity-api/internal/domain"
	"github.com/go-identity-api/internal/pkg/id"
	pkgtoken "github.com/go-identity-api/internal/pkg/token"
	"golang.org/x/crypto/bcrypt"
)

// LoginResult is either a completed session or a pending two-factor
// challenge, never both.
type LoginResult struct {
	TwoFactorRequired bool   `json:"two_factor_required"`
	ChallengeID       string `json:"challenge_id,omitempty"`
	AccessToken       string `json:"access_token,omitempty"`
	RefreshToken      string `json:"refresh_token,omitempty"`
	SessionID         string `json:"session_id,omitempty"`
}

type Service interface {
	// Login authenticates username and password. When the account carries a
	// two-factor record the session is withheld and a short-lived challenge
	// token is returned instead; CompleteTwoFactor cashes it in.
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	CompleteTwoFactor(ctx context.Context, challengeID, code string) (*LoginResult, twofactor.VerifyStatus, error)
	Refresh(ctx context.Context, refreshToken string) (*LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
	Current(ctx context.Context, sessionID string) (*domain.Session, error)
}

type userStore interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type twoFactorStore interface {
	Get(ctx context.Context, userID string) (*domain.TwoFactor, error)
}

type sessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	GetByRefreshToken(ctx context.Context, token string) (*domain.Session, error)
	RotateRefreshToken(ctx context.Context, sessionID, newToken string, newExpiry int64) error
	Disable(ctx context.Context, sessionID string) error
}

type challengeStore interface {
	Put(ctx context.Context, c *domain.LoginChallenge) error
	Get(ctx context.Context, challengeID string) (*domain.LoginChallenge, error)
	Delete(ctx context.Context, challengeID string) error
}

// codeVerifier is the two-factor service surface Login completion needs.
type codeVerifier interface {
	Verify(ctx context.Context, userID, code string) (twofactor.VerifyStatus, error)
}

type tokenSigner interface {
	Sign(userID, sessionID string) (string, error)
}

type service struct {
	userRepo        userStore
	twoFactorRepo   twoFactorStore
	sessionRepo     sessionStore
	challengeRepo   challengeStore
	codes           codeVerifier
	signer          tokenSigner
	challengeExpiry time.Duration
	refreshTTL      time.Duration
	now             func() time.Time
}

type ServiceDeps struct {
	UserRepo        userStore
	TwoFactorRepo   twoFactorStore
	SessionRepo     sessionStore
	ChallengeRepo   challengeStore
	CodeVerifier    codeVerifier
	Signer          tokenSigner
	ChallengeExpiry time.Duration // defaults to 5 minutes
	RefreshTTL      time.Duration // defaults to 30 days
	Now             func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		userRepo:        deps.UserRepo,
		twoFactorRepo:   deps.TwoFactorRepo,
		sessionRepo:     deps.SessionRepo,
		challengeRepo:   deps.ChallengeRepo,
		codes:           deps.CodeVerifier,
		signer:          deps.Signer,
		challengeExpiry: deps.ChallengeExpiry,
		refreshTTL:      deps.RefreshTTL,
		now:             deps.Now,
	}
	if s.challengeExpiry == 0 {
		s.challengeExpiry = 5 * time.Minute
	}
	if s.refreshTTL == 0 {
		s.refreshTTL = 30 * 24 * time.Hour
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	u, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Same message as a wrong password so the two cases are not
			// distinguishable from outside.
			return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if u.Enable == 0 {
		return nil, fmt.Errorf("account disabled: %w", domain.ErrForbidden)
	}

	// Any two-factor record, even one still enrolling, gates the login.
	if _, err := s.twoFactorRepo.Get(ctx, u.UserID); err == nil {
		return s.issueChallenge(ctx, u.UserID)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return s.issueSession(ctx, u.UserID)
}

func (s *service) CompleteTwoFactor(ctx context.Context, challengeID, code string) (*LoginResult, twofactor.VerifyStatus, error) {
	c, err := s.challengeRepo.Get(ctx, challengeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, 0, fmt.Errorf("login challenge expired or unknown: %w", domain.ErrUnauthorized)
		}
		return nil, 0, err
	}
	if s.now().Unix() >= c.ExpiresAt {
		return nil, 0, fmt.Errorf("login challenge expired: %w", domain.ErrUnauthorized)
	}

	status, err := s.codes.Verify(ctx, c.UserID, code)
	if err != nil {
		return nil, 0, err
	}
	if status != twofactor.VerifyOK {
		return nil, status, nil
	}

	if err := s.challengeRepo.Delete(ctx, challengeID); err != nil {
		return nil, 0, err
	}
	res, err := s.issueSession(ctx, c.UserID)
	if err != nil {
		return nil, 0, err
	}
	return res, twofactor.VerifyOK, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	sess, err := s.sessionRepo.GetByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("invalid refresh token: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if !sess.Enable || s.now().Unix() >= sess.RefreshExpiresAt {
		return nil, fmt.Errorf("session expired: %w", domain.ErrUnauthorized)
	}

	newToken, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	newExpiry := s.now().Add(s.refreshTTL).Unix()
	if err := s.sessionRepo.RotateRefreshToken(ctx, sess.SessionID, newToken, newExpiry); err != nil {
		return nil, err
	}
	access, err := s.signer.Sign(sess.UserID, sess.SessionID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: newToken,
		SessionID:    sess.SessionID,
	}, nil
}

func (s *service) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.Disable(ctx, sessionID)
}

func (s *service) Current(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := s.sessionRepo.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.Enable {
		return nil, fmt.Errorf("session disabled: %w", domain.ErrUnauthorized)
	}
	return sess, nil
}

func (s *service) issueChallenge(ctx context.Context, userID string) (*LoginResult, error) {
	token, err := pkgtoken.NewContinuationToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	c := &domain.LoginChallenge{
		ChallengeID: token,
		UserID:      userID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.challengeExpiry).Unix(),
	}
	if err := s.challengeRepo.Put(ctx, c); err != nil {
		return nil, err
	}
	return &LoginResult{TwoFactorRequired: true, ChallengeID: token}, nil
}

func (s *service) issueSession(ctx context.Context, userID string) (*LoginResult, error) {
	refresh, err := pkgtoken.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &domain.Session{
		SessionID:        id.New(),
		UserID:           userID,
		Enable:           true,
		RefreshToken:     refresh,
		RefreshExpiresAt: now.Add(s.refreshTTL).Unix(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.sessionRepo.Put(ctx, sess); err != nil {
		return nil, err
	}
	access, err := s.signer.Sign(userID, sess.SessionID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		SessionID:    sess.SessionID,
	}, nil
}
