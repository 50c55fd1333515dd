package domain

import "time"

// User is a dashboard account.
type User struct {
	ID           string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Principal is the authenticated identity behind a request. It is resolved
// once by the transport and handed to every service call explicitly.
type Principal struct {
	UserID string
	Email  string
}

// IsZero reports whether p carries no identity.
func (p Principal) IsZero() bool {
	return p.UserID == ""
}
