package domain

import "time"

// Session records one successful login from a device. A session only ever moves
// from valid to invalid; InvalidatedAt is nil until that happens.
type Session struct {
	ID            string
	IdentityID    string
	Device        string
	IPAddress     string
	UserAgent     string
	IsValid       bool
	CreatedAt     time.Time
	InvalidatedAt *time.Time
}

// Device describes the client a login came from.
type Device struct {
	Name      string
	IP        string
	UserAgent string
}
