package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	// Base URL used when building links handed to the mail gateway
	// (email verification links point back at this host).
	SiteURL string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	JWTPrivateKeyPath      string
	JWTPublicKeyPath       string
	JWTExpiry              time.Duration
	RefreshTokenExpiryDays int

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	SNSRegion string

	// TOTPIssuer is the issuer label shown in authenticator apps.
	TOTPIssuer string

	// OTPExpiry and OTPMaxAttempts bound password-recovery codes.
	OTPExpiry      time.Duration
	OTPMaxAttempts int

	// RecoveryContextExpiry bounds the whole three-step recovery flow.
	RecoveryContextExpiry time.Duration

	// LoginChallengeExpiry bounds the password-verified, pre-TOTP window.
	LoginChallengeExpiry time.Duration

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users             string
	BusinessProfiles  string
	Sessions          string
	TwoFactor         string
	PasswordResetOTPs string
	RecoveryContexts  string
	LoginChallenges   string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),
		SiteURL: getEnv("SITE_URL", "http://localhost:3000"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:             getEnv("DYNAMO_TABLE_USERS", "users"),
			BusinessProfiles:  getEnv("DYNAMO_TABLE_BUSINESS_PROFILES", "business_profiles"),
			Sessions:          getEnv("DYNAMO_TABLE_SESSIONS", "sessions"),
			TwoFactor:         getEnv("DYNAMO_TABLE_TWO_FACTOR", "two_factor"),
			PasswordResetOTPs: getEnv("DYNAMO_TABLE_PASSWORD_RESET_OTPS", "password_reset_otps"),
			RecoveryContexts:  getEnv("DYNAMO_TABLE_RECOVERY_CONTEXTS", "recovery_contexts"),
			LoginChallenges:   getEnv("DYNAMO_TABLE_LOGIN_CHALLENGES", "login_challenges"),
		},

		JWTPrivateKeyPath:      getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:       getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:              time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		RefreshTokenExpiryDays: getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		TOTPIssuer: getEnv("TOTP_ISSUER", "go-identity-api"),

		OTPExpiry:             time.Duration(getEnvInt("OTP_EXPIRY_MINUTES", 10)) * time.Minute,
		OTPMaxAttempts:        getEnvInt("OTP_MAX_ATTEMPTS", 5),
		RecoveryContextExpiry: time.Duration(getEnvInt("RECOVERY_CONTEXT_EXPIRY_MINUTES", 15)) * time.Minute,
		LoginChallengeExpiry:  time.Duration(getEnvInt("LOGIN_CHALLENGE_EXPIRY_MINUTES", 5)) * time.Minute,

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
