package match

import "duskhollow.gg/internal/protocol"

// applyAction runs the shared gates in a fixed order, then dispatches.
// Ownership first: an action claiming someone else's subject is discarded
// before any state is read. Rejections are silent to the sender; they exist
// only in the audit log, indistinguishable on the wire from a dropped packet.
func (m *Match) applyAction(env ActionEnvelope, nowTick uint64) {
	act := env.Act
	if act.SubjectID != env.ParticipantID {
		m.reject(nowTick, env.ParticipantID, act, protocol.RejectOwnership, "subject is not the sender")
		return
	}
	p := m.participants[env.ParticipantID]
	if p == nil || p.State != protocol.LifecycleActive {
		m.reject(nowTick, env.ParticipantID, act, protocol.RejectLifecycle, "sender is not active")
		return
	}
	if m.state.Get().Phase != protocol.PhaseInProgress {
		m.reject(nowTick, p.ID, act, protocol.RejectPhase, "match is not in progress")
		return
	}

	switch act.Action {
	case protocol.ActionMove:
		m.handleMove(p, act, nowTick)
	case protocol.ActionAttack:
		m.handleAttack(p, act, nowTick)
	case protocol.ActionPickup:
		m.handlePickup(p, act, nowTick)
	case protocol.ActionDrop:
		m.handleDrop(p, act, nowTick)
	case protocol.ActionTaskProgress:
		m.handleTaskProgress(p, act, nowTick)
	case protocol.ActionRevive:
		m.handleRevive(p, act, nowTick)
	default:
		m.reject(nowTick, p.ID, act, protocol.RejectBadRequest, "unknown action")
	}
}

// handleMove accepts the client's position, clamped to the arena. Movement is
// not simulated server-side; the arena bound is the only physics enforced.
func (m *Match) handleMove(p *Participant, act protocol.ActionMsg, nowTick uint64) {
	if !p.Alive.Get() {
		m.reject(nowTick, p.ID, act, protocol.RejectLifecycle, "subject is dead")
		return
	}
	x, z := act.X, act.Z
	if r := m.cfg.Arena.Radius; r > 0 {
		if d := dist(0, 0, x, z); d > r {
			x, z = x/d*r, z/d*r
		}
	}
	p.Pos.Set(Position{X: x, Z: z})
	m.accept(nowTick, p.ID, act, nil)
}

func (m *Match) accept(nowTick uint64, actor string, act protocol.ActionMsg, details map[string]any) {
	m.acceptedTotal++
	if m.auditLogger != nil {
		_ = m.auditLogger.WriteAudit(AuditEntry{
			Tick:     nowTick,
			Actor:    actor,
			Action:   act.Action,
			Accepted: true,
			Details:  details,
		})
	}
}

func (m *Match) reject(nowTick uint64, actor string, act protocol.ActionMsg, code, reason string) {
	m.rejectedTotal++
	if m.auditLogger != nil {
		_ = m.auditLogger.WriteAudit(AuditEntry{
			Tick:     nowTick,
			Actor:    actor,
			Action:   act.Action,
			Accepted: false,
			Code:     code,
			Reason:   reason,
			Details:  map[string]any{"subject": act.SubjectID},
		})
	}
}
