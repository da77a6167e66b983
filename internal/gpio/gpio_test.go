package gpio

import (
	"testing"
)

func TestSafeModeSkipsPinWrites(t *testing.T) {
	SetSafeMode(true)
	defer SetSafeMode(false)

	pin := Pin{Number: 17, ActiveHigh: true}

	if err := Activate(pin); err != nil {
		t.Fatalf("expected safe mode activate to be a no-op, got error: %v", err)
	}
	if err := Deactivate(pin); err != nil {
		t.Fatalf("expected safe mode deactivate to be a no-op, got error: %v", err)
	}
}
