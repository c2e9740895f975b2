package match

import (
	"encoding/json"
	"io"
	"log"
	"testing"

	"duskhollow.gg/internal/protocol"
	"duskhollow.gg/internal/tuning"
)

// testTuning is the shipped tuning with stamina regen off, so stamina math in
// assertions stays flat. Tests that exercise regen turn it back on.
func testTuning() tuning.Tuning {
	cfg := tuning.Defaults()
	cfg.Vitals.RegenEveryTicks = 0
	return cfg
}

func newTestMatch(t *testing.T, cfg tuning.Tuning) *Match {
	t.Helper()
	m, err := New(cfg, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("new match: %v", err)
	}
	return m
}

// tryJoin drives one full step carrying a single join and returns whatever
// the match answered, refusals included.
func tryJoin(m *Match, name string, out chan []byte) JoinResponse {
	resp := make(chan JoinResponse, 1)
	m.step([]JoinRequest{{Name: name, Out: out, Resp: resp}}, nil, nil)
	return <-resp
}

func join(t *testing.T, m *Match, name string) protocol.WelcomeMsg {
	t.Helper()
	r := tryJoin(m, name, nil)
	if r.Welcome.Type == "" {
		t.Fatalf("join %q refused", name)
	}
	return r.Welcome
}

// joinClient joins with an attached client queue so the test can read the
// frames the participant would see on the wire.
func joinClient(t *testing.T, m *Match, name string, queue int) (protocol.WelcomeMsg, chan []byte) {
	t.Helper()
	out := make(chan []byte, queue)
	r := tryJoin(m, name, out)
	if r.Welcome.Type == "" {
		t.Fatalf("join %q refused", name)
	}
	return r.Welcome, out
}

func action(id string, act protocol.ActionMsg) ActionEnvelope {
	act.Type = protocol.TypeAction
	act.ProtocolVersion = protocol.Version
	if act.SubjectID == "" {
		act.SubjectID = id
	}
	return ActionEnvelope{ParticipantID: id, Act: act}
}

func stepTicks(m *Match, n int) {
	for i := 0; i < n; i++ {
		m.step(nil, nil, nil)
	}
}

// place teleports a participant for range setups without spending a MOVE.
func place(m *Match, id string, x, z float64) {
	m.participants[id].Pos.Set(Position{X: x, Z: z})
}

type memAudit struct {
	entries []AuditEntry
}

func (a *memAudit) WriteAudit(e AuditEntry) error {
	a.entries = append(a.entries, e)
	return nil
}

func (a *memAudit) last(t *testing.T) AuditEntry {
	t.Helper()
	if len(a.entries) == 0 {
		t.Fatal("no audit entries")
	}
	return a.entries[len(a.entries)-1]
}

type memTicks struct {
	entries []TickLogEntry
}

func (l *memTicks) WriteTick(e TickLogEntry) error {
	l.entries = append(l.entries, e)
	return nil
}

// drain empties a client queue without blocking. It stops at a closed channel
// so it is safe to call after the match tore its clients down.
func drain(ch chan []byte) [][]byte {
	var frames [][]byte
	for {
		select {
		case b, ok := <-ch:
			if !ok {
				return frames
			}
			frames = append(frames, b)
		default:
			return frames
		}
	}
}

func decodeEvents(t *testing.T, b []byte) protocol.EventsMsg {
	t.Helper()
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if base.Type != protocol.TypeEvents {
		t.Fatalf("frame type = %q, want %q", base.Type, protocol.TypeEvents)
	}
	var msg protocol.EventsMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		t.Fatalf("decode events frame: %v", err)
	}
	return msg
}

func eventTypes(msg protocol.EventsMsg) []string {
	out := make([]string, 0, len(msg.Events))
	for _, e := range msg.Events {
		out = append(out, e.EventType)
	}
	return out
}

// collectEvents flattens every EVENTS frame in the queue into one ordered
// event list, skipping keyframes.
func collectEvents(t *testing.T, ch chan []byte) []protocol.Event {
	t.Helper()
	var events []protocol.Event
	for _, b := range drain(ch) {
		base, err := protocol.DecodeBase(b)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if base.Type != protocol.TypeEvents {
			continue
		}
		var msg protocol.EventsMsg
		if err := json.Unmarshal(b, &msg); err != nil {
			t.Fatalf("decode events frame: %v", err)
		}
		events = append(events, msg.Events...)
	}
	return events
}
