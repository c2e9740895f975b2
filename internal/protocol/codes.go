package protocol

// Reject codes record why an action was silently discarded. They are written
// to the audit log only; a rejected action produces no reply and no event, so
// a client cannot distinguish a rejection from a dropped packet.
const (
	// Identity and routing.
	RejectOwnership = "REJECT_OWNERSHIP"
	RejectLifecycle = "REJECT_LIFECYCLE"
	RejectPhase     = "REJECT_PHASE"

	// Rule layer.
	RejectCooldown   = "REJECT_COOLDOWN"
	RejectResource   = "REJECT_RESOURCE"
	RejectTarget     = "REJECT_TARGET"
	RejectSlot       = "REJECT_SLOT"
	RejectRange      = "REJECT_RANGE"
	RejectBadRequest = "REJECT_BAD_REQUEST"
)

var knownCodes = map[string]struct{}{
	RejectOwnership:  {},
	RejectLifecycle:  {},
	RejectPhase:      {},
	RejectCooldown:   {},
	RejectResource:   {},
	RejectTarget:     {},
	RejectSlot:       {},
	RejectRange:      {},
	RejectBadRequest: {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
