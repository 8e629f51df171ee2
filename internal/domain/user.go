package domain

import "strings"

// Role gates post authoring and user management.
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleProfessor Role = "PROFESSOR"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleProfessor
}

// ParseRole normalizes a user supplied role name. The empty string maps to
// the empty role, which list filters treat as "any".
func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	if role == "" {
		return "", true
	}
	return role, role.Valid()
}

// User mirrors the backend user record.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsProfessor reports whether the user may author posts and manage users.
func (u User) IsProfessor() bool {
	return u.Role == RoleProfessor
}

// UserPatch carries the fields of a partial user update. Nil fields are left
// untouched.
type UserPatch struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Role     *Role   `json:"role,omitempty"`
	Password *string `json:"password,omitempty"`
}

// Apply returns a copy of u with the patch merged in. Password is never part
// of the mirrored user and is ignored.
func (p UserPatch) Apply(u User) User {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	return u
}
