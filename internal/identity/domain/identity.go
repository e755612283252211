package domain

import "time"

// Identity is an account that can log in with email and password.
// PasswordHash changes only through a verified password change or reset.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Summary is the public view of an identity returned to clients.
type Summary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Summary returns the public view of i.
func (i *Identity) Summary() Summary {
	return Summary{ID: i.ID, Email: i.Email}
}
