// Package role defines the user roles the marketplace gates actions on.
package role

import (
	"errors"
	"fmt"
)

// Role is a marketplace user role.
type Role string

const (
	Advertiser  Role = "advertiser"
	Distributor Role = "distributor"
	Admin       Role = "admin"
)

// ErrInvalidRole marks a role value outside the known set.
var ErrInvalidRole = errors.New("invalid role")

// Parse validates a raw role value.
func Parse(raw string) (Role, error) {
	switch Role(raw) {
	case Advertiser, Distributor, Admin:
		return Role(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
}

// String returns the raw role value.
func (r Role) String() string {
	return string(r)
}
