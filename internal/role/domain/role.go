package domain

// Grants is the resolved authorization state of one identity: the names of the roles assigned
// to it and the union of the permissions those roles grant.
type Grants struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// HasRole reports whether name is among the granted roles.
func (g *Grants) HasRole(name string) bool {
	if g == nil {
		return false
	}
	for _, r := range g.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// Role is a named bundle of permissions.
type Role struct {
	ID          string
	Name        string
	Permissions []string
}
