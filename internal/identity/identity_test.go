package identity

import (
	"testing"
)

func TestNormalizePhoneKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+5491122334455", "+5491122334455", false},
		{"5491122334455", "+5491122334455", false},
		{"whatsapp:+5491122334455", "+5491122334455", false},
		{" +54 9 11 2233-4455 ", "+5491122334455", false},
		{"+54 (911) 2233.4455", "+5491122334455", false},
		{"", "", true},
		{"whatsapp:", "", true},
		{"+123", "", true},
		{"+54abc911", "", true},
		{"++5491122334455", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizePhoneKey(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizePhoneKey(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizePhoneKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole("admin"); err != nil || r != RoleAdmin {
		t.Errorf("ParseRole(admin) = %v, %v", r, err)
	}
	if r, err := ParseRole("user"); err != nil || r != RoleUser {
		t.Errorf("ParseRole(user) = %v, %v", r, err)
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Error("ParseRole(superuser) should fail")
	}
}

func TestFileSaverRoundTrip(t *testing.T) {
	s := NewFileSaver(t.TempDir())

	got, err := s.LoadSavedIdentity()
	if err != nil || got != nil {
		t.Fatalf("empty load = %v, %v, want nil, nil", got, err)
	}

	id := Identity{PhoneKey: "+5491122334455", Role: RoleUser, Name: "Ana"}
	if err := s.SaveIdentity(id); err != nil {
		t.Fatal(err)
	}
	got, err = s.LoadSavedIdentity()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != id {
		t.Errorf("loaded = %+v, want %+v", got, id)
	}
}
