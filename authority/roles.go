package authority

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies a group an actor may belong to.
type Role string

const (
	RoleCustomer       Role = "customer"
	RoleProfessional   Role = "professional"
	RoleScout          Role = "scout"
	RoleQA             Role = "qa"
	RoleProjectManager Role = "pm"
	RoleFinance        Role = "finance"
	RoleBriefy         Role = "briefy"
	RoleSystem         Role = "system"

	// RoleOwner is never granted by the identity provider, it is derived per document.
	RoleOwner Role = "owner"
)

var allRoles = []Role{
	RoleCustomer, RoleProfessional, RoleScout, RoleQA, RoleProjectManager,
	RoleFinance, RoleBriefy, RoleSystem, RoleOwner,
}

// StaffRoles are the roles held by internal employees.
var StaffRoles = NewRoles(RoleScout, RoleQA, RoleProjectManager, RoleFinance, RoleBriefy)

func ParseRole(s string) (Role, error) {
	for _, r := range allRoles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Roles is a set of roles kept in declaration order.
type Roles []Role

func NewRoles(roles ...Role) Roles {
	r := Roles{}
	for _, role := range roles {
		if !r.Has(role) {
			r = append(r, role)
		}
	}
	return r
}

func (c Roles) Has(role Role) bool {
	for _, v := range c {
		if v == role {
			return true
		}
	}
	return false
}

func (c Roles) HasAny(roles ...Role) bool {
	for _, role := range roles {
		if c.Has(role) {
			return true
		}
	}
	return false
}

// Intersects reports whether c and other share at least one role.
func (c Roles) Intersects(other Roles) bool {
	return c.HasAny(other...)
}

func (c Roles) With(roles ...Role) Roles {
	merged := make([]Role, 0, len(c)+len(roles))
	merged = append(merged, c...)
	merged = append(merged, roles...)
	return NewRoles(merged...)
}

func (c Roles) Strings() []string {
	s := make([]string, 0, len(c))
	for _, v := range c {
		s = append(s, string(v))
	}
	return s
}

func (c *Roles) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	roles := Roles{}
	for _, v := range values {
		role, err := ParseRole(v)
		if err != nil {
			return err
		}
		roles = append(roles, role)
	}
	*c = NewRoles(roles...)
	return nil
}
