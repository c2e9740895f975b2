package match

import (
	"encoding/json"

	"duskhollow.gg/internal/protocol"
	"duskhollow.gg/internal/replicated"
)

// outbox is the match's ordered change sink. Cells and direct broadcasts
// append here during a step; flushOutbox turns the lot into one EVENTS frame
// at the end of the tick. Nothing reaches a socket before the flush, so every
// server-local subscriber reaction runs ahead of the client broadcast.
type outbox struct {
	events []protocol.Event
}

func (o *outbox) Record(c replicated.Change) {
	// The match state cell broadcasts only its end flip; its earlier
	// transitions reach clients inside their join keyframe.
	if c.Cell == cellMatchState {
		if st, ok := c.Value.(MatchState); !ok || st.Phase != protocol.PhaseEnded {
			return
		}
	}
	ev := protocol.Event{
		EventType:   c.EventType,
		AffectedIDs: c.Affected,
		Cell:        c.Cell,
		Op:          string(c.Op),
		Index:       c.Index,
	}
	if c.Value != nil {
		ev.NewState = mustRaw(c.Value)
	}
	o.events = append(o.events, ev)
}

func (o *outbox) emit(ev protocol.Event) {
	o.events = append(o.events, ev)
}

func (o *outbox) take() []protocol.Event {
	evs := o.events
	o.events = nil
	return evs
}

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

type clientState struct {
	out chan []byte
}

// queueSend delivers one frame to a client without ever blocking the match
// loop. A full queue means the client cannot keep up; it gets cut, not
// skipped, so no connected client ever sees a gap in the event stream.
func (m *Match) queueSend(id string, cl *clientState, b []byte) {
	select {
	case cl.out <- b:
	default:
		m.logger.Printf("client %s queue full, disconnecting", id)
		delete(m.clients, id)
		close(cl.out)
	}
}

func (m *Match) flushOutbox(nowTick uint64) int {
	evs := m.out.take()
	if len(evs) == 0 {
		return 0
	}
	frame := protocol.EventsMsg{
		Type:            protocol.TypeEvents,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		Events:          evs,
	}
	b, err := json.Marshal(frame)
	if err != nil {
		m.logger.Printf("marshal events frame: %v", err)
		return len(evs)
	}
	for id, cl := range m.clients {
		m.queueSend(id, cl, b)
	}
	return len(evs)
}

func (m *Match) sendKeyframes(nowTick uint64) {
	every := uint64(m.cfg.KeyframeEveryTicks)
	if every == 0 || nowTick == 0 || nowTick%every != 0 {
		return
	}
	b, err := json.Marshal(m.buildState(nowTick))
	if err != nil {
		m.logger.Printf("marshal keyframe: %v", err)
		return
	}
	for id, cl := range m.clients {
		m.queueSend(id, cl, b)
	}
}

func (m *Match) closeClients() {
	for id, cl := range m.clients {
		delete(m.clients, id)
		close(cl.out)
	}
}
