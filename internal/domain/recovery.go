package domain

import "time"

// RecoveryContext links the three password-recovery steps to one caller.
// ContextID is an opaque random token handed to the caller between steps.
// UserID is empty for decoy contexts created for unknown identifiers, so a
// requester cannot tell a known account from an unknown one.
type RecoveryContext struct {
	ContextID   string    `json:"id" dynamodbav:"context_id"`
	UserID      string    `json:"-" dynamodbav:"user_id"`
	Method      string    `json:"method" dynamodbav:"method"`
	OTPVerified bool      `json:"-" dynamodbav:"otp_verified"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt   int64     `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
