package handler

import (
	"github.com/energosales/portal/internal/core/domain"
)

// Password length is checked by the service so the configured minimum and
// the bcrypt byte limit stay in one place.
type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
}

// loginRequest carries no validation tags: the service answers blank
// credentials with not-found or invalid-password like any other mismatch.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type userResponse struct {
	ID    int64       `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// leadRequest keeps the field names of the apps panel form, which are also
// the names the spreadsheet expects.
type leadRequest struct {
	FullName  string `json:"fio" validate:"required,max=255"`
	Phone     string `json:"phone" validate:"required,max=32"`
	BirthDate string `json:"dataroz" validate:"required,max=32"`
	Region    string `json:"region" validate:"required,max=255"`
	Document  string `json:"document" validate:"required,max=64"`
	Message   string `json:"message" validate:"required,max=2000"`
	Telephony string `json:"purchaseType" validate:"required,oneof=Whatsapp Microsip"`
}

type leadResponse struct {
	Status string `json:"status"`
}
