package domain

import "time"

// AuditLog is one persisted security-relevant action.
// IdentityID is empty for anonymous actions such as a failed login for an unknown email.
type AuditLog struct {
	ID         string
	IdentityID string
	Action     string
	Resource   string
	IP         string
	Metadata   map[string]string
	CreatedAt  time.Time
}
