package match

import (
	"testing"

	"duskhollow.gg/internal/protocol"
)

func TestAttack_SpendsStaminaAndDamagesInWindow(t *testing.T) {
	cfg := testTuning()
	m := newTestMatch(t, cfg)
	audit := &memAudit{}
	m.SetAuditLogger(audit)

	join(t, m, "host")
	join(t, m, "wren")
	place(m, "P1", 1, 0)

	now := m.CurrentTick()
	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionAttack})})

	host := m.participants["P0"]
	wren := m.participants["P1"]
	if got := host.Stamina.Get(); got != cfg.Vitals.MaxStamina-cfg.Combat.StaminaCost {
		t.Fatalf("stamina = %d", got)
	}
	if got := wren.Health.Get(); got != cfg.Vitals.MaxHealth-cfg.Combat.Damage {
		t.Fatalf("health after swing = %d", got)
	}
	if host.attackReadyTick != now+uint64(cfg.Combat.CooldownTicks) {
		t.Fatalf("ready tick = %d", host.attackReadyTick)
	}
	if host.strike == nil || host.strike.untilTick != now+uint64(cfg.Combat.WindowTicks) {
		t.Fatalf("strike = %+v", host.strike)
	}
	if e := audit.last(t); !e.Accepted || e.Action != protocol.ActionAttack {
		t.Fatalf("audit = %+v", e)
	}

	// Staying inside the window adds nothing; the window then retires.
	stepTicks(m, cfg.Combat.WindowTicks)
	if got := wren.Health.Get(); got != cfg.Vitals.MaxHealth-cfg.Combat.Damage {
		t.Fatalf("health after window = %d", got)
	}
	if host.strike != nil {
		t.Fatal("strike not retired")
	}
}

func TestAttack_CooldownThenStaminaRunOut(t *testing.T) {
	cfg := testTuning()
	cfg.Combat.CooldownTicks = 2
	m := newTestMatch(t, cfg)
	audit := &memAudit{}
	m.SetAuditLogger(audit)

	join(t, m, "host")
	attack := func() { m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionAttack})}) }

	attack() // tick 1
	if e := audit.last(t); !e.Accepted {
		t.Fatalf("first attack rejected: %+v", e)
	}
	attack() // tick 2, one tick early
	if e := audit.last(t); e.Accepted || e.Code != protocol.RejectCooldown {
		t.Fatalf("audit = %+v, want %s", e, protocol.RejectCooldown)
	}
	attack() // tick 3
	if e := audit.last(t); !e.Accepted {
		t.Fatalf("audit = %+v", e)
	}
	stepTicks(m, 1)
	attack() // tick 5, stamina down to 10
	if e := audit.last(t); !e.Accepted {
		t.Fatalf("audit = %+v", e)
	}
	if got := m.participants["P0"].Stamina.Get(); got != 10 {
		t.Fatalf("stamina = %d, want 10", got)
	}
	stepTicks(m, 1)
	attack() // tick 7, off cooldown but broke
	if e := audit.last(t); e.Accepted || e.Code != protocol.RejectResource {
		t.Fatalf("audit = %+v, want %s", e, protocol.RejectResource)
	}
}

func TestStrike_HitsTargetOncePerWindow(t *testing.T) {
	cfg := testTuning()
	cfg.Combat.CooldownTicks = 4
	cfg.Combat.WindowTicks = 3
	m := newTestMatch(t, cfg)

	join(t, m, "host")
	join(t, m, "wren")
	place(m, "P1", 2, 0)
	wren := m.participants["P1"]

	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionAttack})}) // tick 2
	if got := wren.Health.Get(); got != 60 {
		t.Fatalf("health = %d, want 60", got)
	}

	// Leaving and re-entering the open window changes nothing.
	m.step(nil, nil, []ActionEnvelope{action("P1", protocol.ActionMsg{Action: protocol.ActionMove, X: 30})})
	m.step(nil, nil, []ActionEnvelope{action("P1", protocol.ActionMsg{Action: protocol.ActionMove, X: 1})})
	if got := wren.Health.Get(); got != 60 {
		t.Fatalf("health after re-entry = %d, want 60", got)
	}

	stepTicks(m, 1)
	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionAttack})}) // tick 6, fresh window
	if got := wren.Health.Get(); got != 20 {
		t.Fatalf("health after second swing = %d, want 20", got)
	}
}

func TestStrike_DiesWithItsOwner(t *testing.T) {
	cfg := testTuning()
	cfg.Combat.WindowTicks = 8
	m := newTestMatch(t, cfg)

	join(t, m, "host")
	join(t, m, "wren")
	join(t, m, "moss")

	// Wren swings at empty air, then departs with the window still open.
	m.step(nil, nil, []ActionEnvelope{action("P1", protocol.ActionMsg{Action: protocol.ActionAttack})})
	m.step(nil, []string{"P1"}, nil)
	if m.participants["P1"].strike != nil {
		t.Fatal("departed strike not swept")
	}

	// The hunter walks through where the window would have reached.
	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionMove, X: -23})})
	stepTicks(m, 6)
	if got := m.participants["P0"].Health.Get(); got != cfg.Vitals.MaxHealth {
		t.Fatalf("hunter health = %d, want untouched", got)
	}
}

func TestVitals_RegenSkipsDeadAndClampsAtMax(t *testing.T) {
	cfg := testTuning()
	cfg.Vitals.RegenEveryTicks = 2
	m := newTestMatch(t, cfg)

	join(t, m, "host")
	join(t, m, "wren")
	join(t, m, "moss")
	wren := m.participants["P1"]
	wren.Health.Set(40)
	place(m, "P1", 1, 0)

	// Wren spends stamina, then dies on the next swing; the spend stays.
	m.step(nil, nil, []ActionEnvelope{action("P1", protocol.ActionMsg{Action: protocol.ActionAttack})}) // tick 3
	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionAttack})}) // tick 4
	if wren.Alive.Get() {
		t.Fatal("wren should be dead")
	}
	stepTicks(m, 2) // through tick 6

	host := m.participants["P0"]
	if got := host.Stamina.Get(); got != 80 {
		t.Fatalf("host stamina = %d, want 80 after two regens", got)
	}
	if got := wren.Stamina.Get(); got != 70 {
		t.Fatalf("dead stamina = %d, want frozen at 70", got)
	}
	if got := m.participants["P2"].Stamina.Get(); got != cfg.Vitals.MaxStamina {
		t.Fatalf("idle stamina = %d", got)
	}

	stepTicks(m, 10)
	if got := host.Stamina.Get(); got != cfg.Vitals.MaxStamina {
		t.Fatalf("host stamina = %d, want clamped at max", got)
	}
}

func TestRevive_RestoresTargetAndDeathStaysCounted(t *testing.T) {
	cfg := testTuning()
	cfg.Combat.CooldownTicks = 2
	m := newTestMatch(t, cfg)
	audit := &memAudit{}
	m.SetAuditLogger(audit)

	join(t, m, "host")
	join(t, m, "wren")
	join(t, m, "moss")
	join(t, m, "fern")
	wren := m.participants["P1"]
	wren.Health.Set(40)
	place(m, "P1", 1, 0)

	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionAttack})})
	if wren.Alive.Get() || m.survivorDeaths.Get() != 1 {
		t.Fatalf("setup: alive=%v deaths=%d", wren.Alive.Get(), m.survivorDeaths.Get())
	}

	revive := func(actor, target string) AuditEntry {
		m.step(nil, nil, []ActionEnvelope{action(actor, protocol.ActionMsg{Action: protocol.ActionRevive, TargetID: target})})
		return audit.last(t)
	}

	// Moss starts across the arena from the body.
	if e := revive("P2", "P1"); e.Accepted || e.Code != protocol.RejectRange {
		t.Fatalf("audit = %+v, want %s", e, protocol.RejectRange)
	}
	if e := revive("P0", "P1"); e.Accepted || e.Code != protocol.RejectBadRequest {
		t.Fatalf("hunter revive audit = %+v", e)
	}

	place(m, "P2", 2, 0)
	if e := revive("P2", "P3"); e.Accepted || e.Code != protocol.RejectTarget {
		t.Fatalf("living target audit = %+v", e)
	}
	if e := revive("P2", "P0"); e.Accepted || e.Code != protocol.RejectTarget {
		t.Fatalf("hunter target audit = %+v", e)
	}
	if e := revive("P2", "P2"); e.Accepted || e.Code != protocol.RejectTarget {
		t.Fatalf("self target audit = %+v", e)
	}

	if e := revive("P2", "P1"); !e.Accepted {
		t.Fatalf("revive audit = %+v", e)
	}
	if !wren.Alive.Get() || wren.Health.Get() != cfg.Vitals.ReviveHealth {
		t.Fatalf("revived: alive=%v health=%d", wren.Alive.Get(), wren.Health.Get())
	}
	if got := m.survivorDeaths.Get(); got != 1 {
		t.Fatalf("deaths after revive = %d, want the death to stay counted", got)
	}

	m.step(nil, []string{"P3"}, nil)
	if e := revive("P2", "P3"); e.Accepted || e.Code != protocol.RejectTarget {
		t.Fatalf("departed target audit = %+v", e)
	}
	if got := m.survivorDeaths.Get(); got != 2 {
		t.Fatalf("deaths after departure = %d", got)
	}

	// A revived survivor who falls again dies a second time.
	m.step(nil, nil, []ActionEnvelope{action("P2", protocol.ActionMsg{Action: protocol.ActionMove, Z: 24})})
	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionAttack})})
	stepTicks(m, 5)
	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionAttack})})
	if wren.Alive.Get() {
		t.Fatal("wren should be dead again")
	}
	if got := m.survivorDeaths.Get(); got != 3 {
		t.Fatalf("deaths = %d, want 3", got)
	}
	if st := m.state.Get(); st.Phase != protocol.PhaseInProgress {
		t.Fatalf("phase = %q, moss still stands", st.Phase)
	}
}
