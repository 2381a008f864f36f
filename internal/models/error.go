package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrInvalidState   = errors.New("resource is in the wrong state for this operation")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Login guard errors
	ErrAccountBlocked = errors.New("account is temporarily blocked")

	// Checkout errors
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")

	// Invoice errors
	ErrSequenceExhausted = errors.New("invoice sequence exhausted for the current year")
)
