package domain

import "time"

type User struct {
	UserID               string     `json:"id" dynamodbav:"user_id"`
	Username             string     `json:"username" dynamodbav:"username"`
	Email                string     `json:"email" dynamodbav:"email"`
	PasswordHash         string     `json:"-" dynamodbav:"password_hash"`
	EmailVerified        bool       `json:"email_verified" dynamodbav:"email_verified"`
	VerificationToken    string     `json:"-" dynamodbav:"verification_token"`
	TokenCreatedAt       *time.Time `json:"-" dynamodbav:"token_created_at"`
	NotificationsEnabled bool       `json:"notifications_enabled" dynamodbav:"notifications_enabled"`
	Enable               int        `json:"enable" dynamodbav:"enable"`
	CreatedAt            time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt            time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type CreateUserRequest struct {
	Username     string  `json:"username" validate:"required"`
	Password     string  `json:"password" validate:"required,min=8,max=72"`
	Email        string  `json:"email" validate:"required,email"`
	Phone        *string `json:"phone"`
	BusinessName string  `json:"business_name"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}
