package domain

import "time"

// BusinessProfile holds the business details attached 1:1 to a user.
// Created by an explicit step in the registration flow, never by a
// persistence hook. Password recovery by phone resolves the destination
// number from here.
type BusinessProfile struct {
	UserID       string    `json:"user_id" dynamodbav:"user_id"`
	BusinessName string    `json:"business_name" dynamodbav:"business_name"`
	Description  string    `json:"description" dynamodbav:"description"`
	Phone        string    `json:"phone" dynamodbav:"phone"`
	Location     string    `json:"location" dynamodbav:"location"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}
