package models

import "time"

// LoginGuard is the per-identity failed-attempt record. One row exists
// per identity key (normalized email + client IP); it is created on the
// first failure and deleted on a successful login.
type LoginGuard struct {
	IdentityKey  string
	FailedCount  int
	BlockedUntil *time.Time
	ExpiresAt    time.Time
}

// GuardStatus is the advisory view the login flow consults before
// verifying credentials.
type GuardStatus struct {
	IsBlocked     bool
	BlockTimeLeft int // seconds remaining on the lockout, 0 when not blocked
	AttemptsLeft  int // failures remaining before lockout
}
