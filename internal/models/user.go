package models

import (
	"time"
)

// User roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string // RoleCustomer or RoleAdmin
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
