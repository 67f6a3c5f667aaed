package dto

import (
	"time"

	"github.com/princinho/authgate/models"
)

type RegisterDTO struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginDTO struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password"`
}

// ResetPasswordDTO changes a password given the current one. No session needed.
type ResetPasswordDTO struct {
	Email       string `json:"email" binding:"required,email"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=72"`
}

// UserResponse is the outward identity. It has no password field at all.
type UserResponse struct {
	ID        string    `json:"_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

func NewUserListResponse(users []models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, NewUserResponse(&users[i]))
	}
	return out
}

type TokenResponse struct {
	Token string `json:"token"`
}

type MessageResponse struct {
	Msg string `json:"msg"`
}

type FieldErrorResponse struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type ErrorResponse struct {
	Msg    string               `json:"msg"`
	Errors []FieldErrorResponse `json:"errors,omitempty"`
}

type HealthResponse struct {
	Status      string  `json:"status"`
	DBConnected bool    `json:"dbConnected"`
	DBState     string  `json:"dbState"`
	Uptime      float64 `json:"uptime"`
	Timestamp   string  `json:"timestamp"`
}
