package models

import "time"

// User represents a user in the system
type User struct {
	Email        string    `json:"email" dynamodbav:"email"` // Primary Key
	PasswordHash string    `json:"-" dynamodbav:"passwordHash"`
	UserID       string    `json:"userId" dynamodbav:"userId"`
	RegionID     string    `json:"regionId" dynamodbav:"regionId"`
	Role         string    `json:"role" dynamodbav:"role"` // user/admin
	Active       bool      `json:"active" dynamodbav:"active"`
	CreatedAt    time.Time `json:"createdAt" dynamodbav:"createdAt"`
}

// LoginRequest represents login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest represents registration request payload
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	RegionID string `json:"regionId" validate:"required"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ExpiresIn int    `json:"expiresIn"` // seconds
}
