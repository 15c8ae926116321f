package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable            = "enable"
	fieldEnabled           = "enabled"
	fieldEmailVerified     = "email_verified"
	fieldVerificationToken = "verification_token"
	fieldTokenCreatedAt    = "token_created_at"
	fieldNotifications     = "notifications_enabled"
	fieldPasswordHash      = "password_hash"
	fieldLastVerifiedAt    = "last_verified_at"
	fieldIsUsed            = "is_used"
	fieldAttempts          = "attempts"
	fieldOTPVerified       = "otp_verified"
	fieldRefreshToken      = "refresh_token"
	fieldRefreshExpiresAt  = "refresh_expires_at"
	fieldUpdatedAt         = "updated_at"
)
