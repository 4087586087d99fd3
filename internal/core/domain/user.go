package domain

import (
	"strconv"
	"time"
)

// Role gates access to protected operations.
type Role int

const (
	RoleGuest    Role = 0
	RoleAdmin    Role = 1
	RoleOperator Role = 2
)

func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "guest"
	case RoleAdmin:
		return "admin"
	case RoleOperator:
		return "operator"
	default:
		return "role(" + strconv.Itoa(int(r)) + ")"
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleGuest || r == RoleAdmin || r == RoleOperator
}

// User models a registered account in the credential store.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"-"`
}
