package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		RejectOwnership,
		RejectLifecycle,
		RejectPhase,
		RejectCooldown,
		RejectResource,
		RejectTarget,
		RejectSlot,
		RejectRange,
		RejectBadRequest,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("REJECT_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}
