package domain

import "time"

// EventType names an authentication outcome.
type EventType string

const (
	EventSignup              EventType = "signup"
	EventLoginSucceeded      EventType = "login_succeeded"
	EventLoginFailed         EventType = "login_failed"
	EventRefreshSucceeded    EventType = "refresh_succeeded"
	EventRefreshRejected     EventType = "refresh_rejected"
	EventLogout              EventType = "logout"
	EventPasswordResetSent   EventType = "password_reset_requested"
	EventPasswordReset       EventType = "password_reset"
	EventPasswordChanged     EventType = "password_changed"
	EventSessionRevoked      EventType = "session_revoked"
	EventAuthorizationDenied EventType = "authorization_denied"
)

// AuthEvent is a single authentication or authorization outcome.
// IdentityID is empty when the caller could not be identified (e.g. a login for an unknown email).
type AuthEvent struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	IdentityID string            `json:"identity_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Source     string            `json:"source"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
