package privilege

import "testing"

func TestDropToEmptyUsernameIsNoop(t *testing.T) {
	if err := DropTo(""); err != nil {
		t.Fatalf("DropTo(\"\") must be a no-op, got %v", err)
	}
}

func TestDropToUnknownUserErrors(t *testing.T) {
	if err := DropTo("no-such-user-sipvpn-test"); err == nil {
		t.Fatalf("expected error for unknown user")
	}
}
