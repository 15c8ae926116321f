package domain

import "time"

// OTP delivery methods.
const (
	MethodEmail = "email"
	MethodPhone = "phone"
)

// PasswordResetOTP is one issued recovery code. Multiple rows may exist per
// user; only the most recent unused one is authoritative at lookup time.
// OTPID is a ULID, so descending OTPID order is descending creation order.
// ExpiresAt doubles as the DynamoDB TTL attribute.
type PasswordResetOTP struct {
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	OTPID     string    `json:"id" dynamodbav:"otp_id"`
	Code      string    `json:"-" dynamodbav:"otp"`
	Method    string    `json:"method" dynamodbav:"method"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt int64     `json:"expires_at" dynamodbav:"expires_at"` // Unix seconds
	IsUsed    bool      `json:"is_used" dynamodbav:"is_used"`
	Attempts  int       `json:"attempts" dynamodbav:"attempts"`
}
