package match

import (
	"math"

	"duskhollow.gg/internal/protocol"
)

func dist(ax, az, bx, bz float64) float64 {
	return math.Hypot(ax-bx, az-bz)
}

func (m *Match) handleAttack(p *Participant, act protocol.ActionMsg, nowTick uint64) {
	if !p.Alive.Get() {
		m.reject(nowTick, p.ID, act, protocol.RejectLifecycle, "subject is dead")
		return
	}
	if nowTick < p.attackReadyTick {
		m.reject(nowTick, p.ID, act, protocol.RejectCooldown, "attack on cooldown")
		return
	}
	if p.Stamina.Get() < m.cfg.Combat.StaminaCost {
		m.reject(nowTick, p.ID, act, protocol.RejectResource, "not enough stamina")
		return
	}

	p.attackReadyTick = nowTick + uint64(m.cfg.Combat.CooldownTicks)
	p.Stamina.Set(p.Stamina.Get() - m.cfg.Combat.StaminaCost)
	m.windowSeq++
	p.strike = &strike{
		windowID:  m.windowSeq,
		untilTick: nowTick + uint64(m.cfg.Combat.WindowTicks),
		hit:       map[string]bool{},
	}
	m.out.emit(protocol.Event{
		EventType:   protocol.EventAttackSwing,
		AffectedIDs: []string{p.ID},
		NewState:    mustRaw(map[string]any{"attacker": p.ID, "window": p.strike.windowID}),
	})
	m.accept(nowTick, p.ID, act, map[string]any{"window": p.strike.windowID})
}

// systemCombat runs every tick: it retires strikes whose owner is gone or
// whose window lapsed, then applies damage inside live windows. A target takes
// a given window's damage at most once, however it moves.
func (m *Match) systemCombat(nowTick uint64) {
	if m.state.Get().Phase != protocol.PhaseInProgress {
		return
	}
	for _, id := range m.joinOrder {
		p := m.participants[id]
		s := p.strike
		if s == nil {
			continue
		}
		if p.State == protocol.LifecycleDeparted || !p.Alive.Get() {
			p.strike = nil
			continue
		}
		if nowTick >= s.untilTick {
			p.strike = nil
			continue
		}
		pos := p.Pos.Get()
		for _, tid := range m.joinOrder {
			if tid == id {
				continue
			}
			t := m.participants[tid]
			if t.State == protocol.LifecycleDeparted || !t.Alive.Get() || s.hit[tid] {
				continue
			}
			tpos := t.Pos.Get()
			if dist(pos.X, pos.Z, tpos.X, tpos.Z) > m.cfg.Combat.Range {
				continue
			}
			s.hit[tid] = true
			t.Health.Set(max(0, t.Health.Get()-m.cfg.Combat.Damage))
			if m.state.Get().Phase != protocol.PhaseInProgress {
				return
			}
		}
	}
}

// systemVitals regenerates stamina on its tuning interval. Only living,
// still-connected participants regenerate, and only while the match runs.
func (m *Match) systemVitals(nowTick uint64) {
	if m.state.Get().Phase != protocol.PhaseInProgress {
		return
	}
	every := uint64(m.cfg.Vitals.RegenEveryTicks)
	if every == 0 || nowTick == 0 || nowTick%every != 0 {
		return
	}
	for _, id := range m.joinOrder {
		p := m.participants[id]
		if p.State == protocol.LifecycleDeparted || !p.Alive.Get() {
			continue
		}
		if st := p.Stamina.Get(); st < m.cfg.Vitals.MaxStamina {
			p.Stamina.Set(min(st+m.cfg.Vitals.StaminaRegen, m.cfg.Vitals.MaxStamina))
		}
	}
}

func (m *Match) handleRevive(p *Participant, act protocol.ActionMsg, nowTick uint64) {
	if !p.Alive.Get() {
		m.reject(nowTick, p.ID, act, protocol.RejectLifecycle, "subject is dead")
		return
	}
	if p.Role != protocol.RoleSurvivor {
		m.reject(nowTick, p.ID, act, protocol.RejectBadRequest, "only survivors revive")
		return
	}
	t := m.participants[act.TargetID]
	if t == nil || t.ID == p.ID || t.Role != protocol.RoleSurvivor {
		m.reject(nowTick, p.ID, act, protocol.RejectTarget, "no such revive target")
		return
	}
	if t.State != protocol.LifecycleActive {
		m.reject(nowTick, p.ID, act, protocol.RejectTarget, "target departed")
		return
	}
	if t.Alive.Get() {
		m.reject(nowTick, p.ID, act, protocol.RejectTarget, "target is not dead")
		return
	}
	pos, tpos := p.Pos.Get(), t.Pos.Get()
	if dist(pos.X, pos.Z, tpos.X, tpos.Z) > m.cfg.Combat.Reach {
		m.reject(nowTick, p.ID, act, protocol.RejectRange, "target out of reach")
		return
	}

	// The earlier death stays counted; a revived survivor who dies again dies
	// a second time.
	t.Health.Set(m.cfg.Vitals.ReviveHealth)
	t.Alive.Set(true)
	m.accept(nowTick, p.ID, act, map[string]any{"target": t.ID})
}
