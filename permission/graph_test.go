package permission

import (
	"errors"
	"testing"
)

func TestNewGraphRejectsUnknownSubordinate(t *testing.T) {
	_, err := NewGraph(map[Role][]Role{
		RoleAdmin: {"ghost"},
	}, nil)
	if !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestNewGraphRejectsSelfLoop(t *testing.T) {
	_, err := NewGraph(map[Role][]Role{
		RoleAdmin: {RoleAdmin},
	}, nil)
	if !errors.Is(err, ErrRoleCycle) {
		t.Fatalf("expected ErrRoleCycle, got %v", err)
	}
}

func TestNewGraphRejectsCycle(t *testing.T) {
	_, err := NewGraph(map[Role][]Role{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
	}, nil)
	if !errors.Is(err, ErrRoleCycle) {
		t.Fatalf("expected ErrRoleCycle, got %v", err)
	}
}

func TestNewGraphRejectsEmptyNames(t *testing.T) {
	if _, err := NewGraph(map[Role][]Role{"": nil}, nil); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName for role, got %v", err)
	}
	if _, err := NewGraph(nil, map[Role][]Permission{RoleUser: {""}}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName for permission, got %v", err)
	}
}

func TestNewGraphAcceptsDiamond(t *testing.T) {
	g, err := NewGraph(map[Role][]Role{
		"top":   {"left", "right"},
		"left":  {"base"},
		"right": {"base"},
		"base":  nil,
	}, nil)
	if err != nil {
		t.Fatalf("NewGraph error: %v", err)
	}
	if got := len(g.Roles()); got != 4 {
		t.Fatalf("expected 4 roles, got %d", got)
	}
}

func TestGrantsDeclareRoles(t *testing.T) {
	g, err := NewGraph(nil, map[Role][]Permission{"auditor": {"read_logs"}})
	if err != nil {
		t.Fatalf("NewGraph error: %v", err)
	}
	if !g.Has("auditor") {
		t.Fatal("role declared only through grants should exist")
	}
}

func TestDefaultGraph(t *testing.T) {
	g := DefaultGraph()
	want := []Role{RoleAdmin, RoleSuperAdmin, RoleUser}
	got := g.Roles()
	if len(got) != len(want) {
		t.Fatalf("roles = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("roles = %v, want %v", got, want)
		}
	}
}
