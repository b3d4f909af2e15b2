package user

import "github.com/truonghoc/backend/core"

// AuthContext identifies the caller of an operation and what they are allowed to do.
// It is built once per request from the authenticated identity and passed explicitly to the services.
type AuthContext struct {
	UserID string
	Name   string
	Email  string
	Roles  []string
}

func (ac AuthContext) IsAuthenticated() bool { return ac.UserID != "" }
func (ac AuthContext) IsAdmin() bool         { return rolesStartWith(ac.Roles, RoleAdmin) }
func (ac AuthContext) IsTeacher() bool       { return rolesStartWith(ac.Roles, RoleTeacher) }
func (ac AuthContext) IsStudent() bool       { return rolesStartWith(ac.Roles, RoleStudent) }

// RequireAdmin fails with core.ErrForbidden unless the caller is an admin.
func (ac AuthContext) RequireAdmin() error {
	if !ac.IsAuthenticated() {
		return core.ErrUnauthorized
	}
	if !ac.IsAdmin() {
		return core.ErrForbidden
	}
	return nil
}

func (ac AuthContext) RequireStudent() error {
	if !ac.IsAuthenticated() {
		return core.ErrUnauthorized
	}
	if !ac.IsStudent() {
		return core.ErrForbidden
	}
	return nil
}

// RequireStaff fails unless the caller is a teacher or an admin.
func (ac AuthContext) RequireStaff() error {
	if !ac.IsAuthenticated() {
		return core.ErrUnauthorized
	}
	if !(ac.IsTeacher() || ac.IsAdmin()) {
		return core.ErrForbidden
	}
	return nil
}
