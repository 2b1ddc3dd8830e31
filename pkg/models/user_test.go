package models

import (
	"encoding/json"
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"manager":           RoleManager,
		"assistant":         RoleAssistant,
		"portfolio-manager": RolePortfolioManager,
		"project-lead":      RoleProjectLead,
		"system-analyst":    RoleSystemAnalyst,
		"technical-writer":  RoleTechnicalWriter,
	}
	for s, want := range cases {
		got, err := ParseRole(s)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", s, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %v, want %v", s, got, want)
		}
		if got.String() != s {
			t.Fatalf("String() = %q, want %q", got.String(), s)
		}
	}

	for _, bad := range []string{"", "admin", "Manager", "project lead"} {
		if _, err := ParseRole(bad); err == nil {
			t.Fatalf("ParseRole(%q) accepted an unknown role", bad)
		}
	}
}

func TestRoleJSONRejectsUnknown(t *testing.T) {
	var u User
	if err := json.Unmarshal([]byte(`{"id":"u1","name":"A","role":"astronaut"}`), &u); err == nil {
		t.Fatal("expected error for unknown role string")
	}
	if err := json.Unmarshal([]byte(`{"id":"u1","name":"A","role":"system-analyst"}`), &u); err != nil {
		t.Fatalf("valid role rejected: %v", err)
	}
	if u.Role != RoleSystemAnalyst {
		t.Fatalf("got %v", u.Role)
	}

	b, err := json.Marshal(User{ID: "x", Name: "B", Role: RolePortfolioManager})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) == "" || !json.Valid(b) {
		t.Fatalf("invalid json: %s", b)
	}
	var back User
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Role != RolePortfolioManager {
		t.Fatalf("round trip role = %v", back.Role)
	}
}

func TestIsStaff(t *testing.T) {
	staff := []Role{RoleManager, RoleAssistant, RolePortfolioManager}
	members := []Role{RoleProjectLead, RoleSystemAnalyst, RoleTechnicalWriter, RoleUnknown}
	for _, r := range staff {
		if !r.IsStaff() {
			t.Fatalf("%v should be staff", r)
		}
	}
	for _, r := range members {
		if r.IsStaff() {
			t.Fatalf("%v should not be staff", r)
		}
	}
}

func TestMessageBetween(t *testing.T) {
	m := Message{Sender: "alice", Receiver: "bob"}
	if !m.Between("alice", "bob") || !m.Between("bob", "alice") {
		t.Fatal("Between should match both directions")
	}
	if m.Between("alice", "carol") || m.Between("carol", "bob") {
		t.Fatal("Between matched a non-participant pair")
	}
}
