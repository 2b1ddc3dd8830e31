package models

import (
	"encoding/json"
	"fmt"
)

// Role is the closed set of platform roles the messaging service knows
// about. Role strings only appear inside ParseRole and String; everywhere
// else roles are matched as the enumerated constants.
type Role int

const (
	RoleUnknown Role = iota
	RoleManager
	RoleAssistant
	RolePortfolioManager
	RoleProjectLead
	RoleSystemAnalyst
	RoleTechnicalWriter
)

var roleNames = map[Role]string{
	RoleManager:          "manager",
	RoleAssistant:        "assistant",
	RolePortfolioManager: "portfolio-manager",
	RoleProjectLead:      "project-lead",
	RoleSystemAnalyst:    "system-analyst",
	RoleTechnicalWriter:  "technical-writer",
}

// SupportRoles is the fixed set of staff roles a manager can always reach
// in the chat directory, independent of group membership.
var SupportRoles = []Role{RoleAssistant, RolePortfolioManager}

// ParseRole maps a role string to its Role constant. Unknown strings are
// rejected rather than mapped to a default.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return RoleUnknown, fmt.Errorf("unknown role: %q", s)
}

func (r Role) String() string {
	if n, ok := roleNames[r]; ok {
		return n
	}
	return "unknown"
}

// IsStaff reports whether the role belongs to incubator staff rather than
// a member of an incubatee group.
func (r Role) IsStaff() bool {
	switch r {
	case RoleManager, RoleAssistant, RolePortfolioManager:
		return true
	case RoleProjectLead, RoleSystemAnalyst, RoleTechnicalWriter:
		return false
	}
	return false
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is reference data owned by the account/approval subsystem; the
// messaging core only reads it.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	Role     Role   `json:"role"`
	// Group is the id of the incubatee group the user belongs to, empty
	// for staff.
	Group string `json:"group,omitempty"`
}
