package match

import (
	"testing"

	"duskhollow.gg/internal/protocol"
)

func TestTaskProgress_AccumulatesClampsAndCompletes(t *testing.T) {
	m := newTestMatch(t, testTuning())
	audit := &memAudit{}
	m.SetAuditLogger(audit)

	join(t, m, "host")
	join(t, m, "wren")

	m.step(nil, nil, []ActionEnvelope{action("P1", protocol.ActionMsg{Action: protocol.ActionTaskProgress, Task: 1, Amount: 2})})
	e := audit.last(t)
	if !e.Accepted || e.Details["current"] != 2 {
		t.Fatalf("audit = %+v", e)
	}
	if rec := m.survivorBoard.Get(1); rec.Current != 2 || rec.Completed {
		t.Fatalf("task = %+v", rec)
	}

	// Overshoot clamps to the requirement.
	m.step(nil, nil, []ActionEnvelope{action("P1", protocol.ActionMsg{Action: protocol.ActionTaskProgress, Task: 1, Amount: 9})})
	if rec := m.survivorBoard.Get(1); rec.Current != rec.Required || !rec.Completed {
		t.Fatalf("task after overshoot = %+v", rec)
	}
}

func TestTaskProgress_AddressesTheSubjectsOwnBoard(t *testing.T) {
	m := newTestMatch(t, testTuning())
	audit := &memAudit{}
	m.SetAuditLogger(audit)

	join(t, m, "host")
	join(t, m, "wren")

	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionTaskProgress, Task: 0, Amount: 4})})
	if rec := m.hunterBoard.Get(0); !rec.Completed {
		t.Fatalf("hunter task = %+v", rec)
	}
	if rec := m.survivorBoard.Get(0); rec.Current != 0 {
		t.Fatalf("survivor task touched: %+v", rec)
	}

	// Index 2 exists on the survivor board only; for the hunter it is out of
	// range, not a reach into the other side's board.
	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionTaskProgress, Task: 2, Amount: 1})})
	if e := audit.last(t); e.Accepted || e.Code != protocol.RejectTarget || e.Reason != "no such task" {
		t.Fatalf("audit = %+v", e)
	}
}

func TestTaskProgress_CompletedTaskIsAQuietNoop(t *testing.T) {
	m := newTestMatch(t, testTuning())
	audit := &memAudit{}
	m.SetAuditLogger(audit)

	_, hostOut := joinClient(t, m, "host", 64)
	join(t, m, "wren")

	m.step(nil, nil, []ActionEnvelope{action("P1", protocol.ActionMsg{Action: protocol.ActionTaskProgress, Task: 2, Amount: 1})})
	if rec := m.survivorBoard.Get(2); !rec.Completed {
		t.Fatalf("task = %+v", rec)
	}
	drain(hostOut)

	m.step(nil, nil, []ActionEnvelope{action("P1", protocol.ActionMsg{Action: protocol.ActionTaskProgress, Task: 2, Amount: 3})})
	e := audit.last(t)
	if !e.Accepted || e.Details["already_complete"] != true {
		t.Fatalf("audit = %+v", e)
	}
	if rec := m.survivorBoard.Get(2); rec.Current != 1 {
		t.Fatalf("task moved: %+v", rec)
	}
	if frames := drain(hostOut); len(frames) != 0 {
		t.Fatalf("expected a silent tick, got %d frames", len(frames))
	}
}

func TestTaskProgress_Rejections(t *testing.T) {
	m := newTestMatch(t, testTuning())
	audit := &memAudit{}
	m.SetAuditLogger(audit)

	join(t, m, "host")
	join(t, m, "wren")

	try := func(task, amount int) AuditEntry {
		m.step(nil, nil, []ActionEnvelope{action("P1", protocol.ActionMsg{Action: protocol.ActionTaskProgress, Task: task, Amount: amount})})
		return audit.last(t)
	}

	if e := try(0, 0); e.Code != protocol.RejectBadRequest || e.Reason != "amount must be positive" {
		t.Fatalf("zero amount audit = %+v", e)
	}
	if e := try(0, -2); e.Code != protocol.RejectBadRequest {
		t.Fatalf("negative amount audit = %+v", e)
	}
	if e := try(-1, 1); e.Code != protocol.RejectTarget {
		t.Fatalf("negative index audit = %+v", e)
	}
	if e := try(3, 1); e.Code != protocol.RejectTarget {
		t.Fatalf("high index audit = %+v", e)
	}
}
