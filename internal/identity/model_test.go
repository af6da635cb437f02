package identity

import "testing"

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"USER", RoleUser, true},
		{"admin", RoleAdmin, true},
		{" Manager ", RoleManager, true},
		{"owner", Role("OWNER"), false},
		{"", Role(""), false},
	}
	for _, tc := range cases {
		got, ok := ParseRole(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseRole(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestComplete(t *testing.T) {
	full := &Identity{ID: "u1", Phone: "+919876543210", Role: RoleUser, Token: "t"}
	if !full.Complete() {
		t.Fatalf("expected complete identity")
	}

	missingToken := full.Clone()
	missingToken.Token = ""
	if missingToken.Complete() {
		t.Fatalf("identity without token must be incomplete")
	}

	badRole := full.Clone()
	badRole.Role = "OWNER"
	if badRole.Complete() {
		t.Fatalf("identity with unknown role must be incomplete")
	}

	var nilIdentity *Identity
	if nilIdentity.Complete() {
		t.Fatalf("nil identity must be incomplete")
	}
}

func TestNeedsName(t *testing.T) {
	cases := []struct {
		name string
		id   *Identity
		want bool
	}{
		{"new user without name", &Identity{IsNewUser: true, Role: RoleUser}, true},
		{"new user with blank name", &Identity{IsNewUser: true, Role: RoleUser, Name: StringPtr("  ")}, true},
		{"new user with name", &Identity{IsNewUser: true, Role: RoleUser, Name: StringPtr("Asha")}, false},
		{"returning user without name", &Identity{Role: RoleUser}, false},
		{"new admin without name", &Identity{IsNewUser: true, Role: RoleAdmin}, false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := tc.id.NeedsName(); got != tc.want {
			t.Fatalf("%s: NeedsName() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCloneCopiesName(t *testing.T) {
	orig := &Identity{ID: "u1", Name: StringPtr("Asha")}
	cp := orig.Clone()
	*cp.Name = "Ravi"
	if orig.DisplayName() != "Asha" {
		t.Fatalf("clone shares name pointer with original")
	}
}
