package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-identity-api/internal/application/recovery"
	"github.com/go-identity-api/internal/application/session"
	"github.com/go-identity-api/internal/application/twofactor"
	"github.com/go-identity-api/internal/application/user"
	"github.com/go-identity-api/internal/application/verification"
	"github.com/go-identity-api/internal/config"
	"github.com/go-identity-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-identity-api/internal/infrastructure/jwt"
	"github.com/go-identity-api/internal/infrastructure/smtp"
	"github.com/go-identity-api/internal/infrastructure/sns"
	"github.com/go-identity-api/internal/transport/http/handler"
	appmiddleware "github.com/go-identity-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo      *dynamo.UserRepo
	ProfileRepo   *dynamo.ProfileRepo
	SessionRepo   *dynamo.SessionRepo
	TwoFactorRepo *dynamo.TwoFactorRepo
	OTPRepo       *dynamo.ResetOTPRepo
	ContextRepo   *dynamo.RecoveryContextRepo
	ChallengeRepo *dynamo.ChallengeRepo
	Mailer        smtp.Mailer
	SMSSender     sns.SMSSender
	JWTProvider   *jwtinfra.Provider
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var authMw func(http.Handler) http.Handler
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
	} else {
		authMw = func(next http.Handler) http.Handler { return next }
	}

	// 5 requests/second, burst of 10, per IP. Applied to endpoints that
	// accept credentials or issue codes.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	verificationSvc := verification.NewService(verification.ServiceDeps{
		UserRepo: deps.UserRepo,
		Mailer:   deps.Mailer,
		SiteURL:  cfg.SiteURL,
	})
	twoFactorSvc := twofactor.NewService(twofactor.ServiceDeps{
		Repo:     deps.TwoFactorRepo,
		UserRepo: deps.UserRepo,
		Issuer:   cfg.TOTPIssuer,
	})
	recoverySvc := recovery.NewService(recovery.ServiceDeps{
		UserRepo:      deps.UserRepo,
		ProfileRepo:   deps.ProfileRepo,
		OTPRepo:       deps.OTPRepo,
		ContextRepo:   deps.ContextRepo,
		Mailer:        deps.Mailer,
		SMSSender:     deps.SMSSender,
		OTPExpiry:     cfg.OTPExpiry,
		MaxAttempts:   cfg.OTPMaxAttempts,
		ContextExpiry: cfg.RecoveryContextExpiry,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:        deps.UserRepo,
		TwoFactorRepo:   deps.TwoFactorRepo,
		SessionRepo:     deps.SessionRepo,
		ChallengeRepo:   deps.ChallengeRepo,
		CodeVerifier:    twoFactorSvc,
		Signer:          deps.JWTProvider,
		ChallengeExpiry: cfg.LoginChallengeExpiry,
		RefreshTTL:      time.Duration(cfg.RefreshTokenExpiryDays) * 24 * time.Hour,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:    deps.UserRepo,
		ProfileRepo: deps.ProfileRepo,
		Verifier:    verificationSvc,
	})

	healthH := handler.NewHealthHandler()
	userH := handler.NewUserHandler(userSvc)
	sessionH := handler.NewSessionHandler(sessionSvc)
	verifyH := handler.NewVerifyEmailHandler(verificationSvc)
	twoFactorH := handler.NewTwoFactorHandler(twoFactorSvc)
	recoveryH := handler.NewPasswordRecoveryHandler(recoverySvc)
	notifH := handler.NewNotificationHandler(verificationSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/users", userH.Register)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)
		r.With(sensitiveRL.Limit).Post("/sessions/two-factor", sessionH.CompleteTwoFactor)
		r.Post("/sessions/refresh", sessionH.Refresh)
		r.Get("/verify-email/{token}", verifyH.Consume)
		r.With(sensitiveRL.Limit).Post("/password-recovery/{action}", recoveryH.Action)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			r.Get("/users/{id}", userH.Get)
			r.Post("/users/change-password", userH.ChangePassword)
			r.Post("/verify-email/resend", verifyH.Resend)
			r.Get("/two-factor", twoFactorH.GetOrEnroll)
			r.Post("/two-factor/verify", twoFactorH.Verify)
			r.Post("/notifications/toggle", notifH.Toggle)
		})
	})

	return r
}
