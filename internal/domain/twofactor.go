package domain

import "time"

// TwoFactor stores the TOTP state for a user, 1:1 with the users table.
// The secret is generated once on first access and never changes; Enabled
// flips to true on the first successful code verification and never reverts.
type TwoFactor struct {
	UserID         string     `json:"user_id" dynamodbav:"user_id"`
	Secret         string     `json:"-" dynamodbav:"secret"`
	Enabled        bool       `json:"enabled" dynamodbav:"enabled"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty" dynamodbav:"last_verified_at"`
}
