package domain

import "time"

// LoginChallenge carries a password-verified login that is still waiting for
// its TOTP code. The challenge token replaces any ambient session state: the
// caller must present it together with the code to finish logging in.
type LoginChallenge struct {
	ChallengeID string    `json:"id" dynamodbav:"challenge_id"`
	UserID      string    `json:"-" dynamodbav:"user_id"`
	CreatedAt   time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt   int64     `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
