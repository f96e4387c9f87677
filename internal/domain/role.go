package domain

import (
	"fmt"
	"strings"
)

// Role is self-declared by a client and attached once per connection.
type Role string

const (
	RoleNone       Role = ""
	RoleController Role = "controller"
	RoleViewer     Role = "viewer"
	RoleDisplay    Role = "display"
	RoleAdmin      Role = "admin"
)

// ParseRole accepts an empty string as RoleNone.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleNone, RoleController, RoleViewer, RoleDisplay, RoleAdmin:
		return r, nil
	default:
		return RoleNone, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// CanMutate reports whether the role may change project state.
// A connection that has not declared a role yet is treated as a controller.
func (r Role) CanMutate() bool {
	return r != RoleViewer && r != RoleDisplay
}

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	return string(r)
}
