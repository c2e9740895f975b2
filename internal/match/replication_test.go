package match

import (
	"encoding/json"
	"reflect"
	"testing"

	"duskhollow.gg/internal/protocol"
)

func TestEvents_OneOrderedFramePerTick(t *testing.T) {
	m := newTestMatch(t, testTuning())

	_, hostOut := joinClient(t, m, "host", 64)
	join(t, m, "wren")
	drain(hostOut)

	m.step(nil, nil, []ActionEnvelope{
		action("P1", protocol.ActionMsg{Action: protocol.ActionMove, X: 2}),
		action("P0", protocol.ActionMsg{Action: protocol.ActionAttack}),
		action("P1", protocol.ActionMsg{Action: protocol.ActionTaskProgress, Task: 2, Amount: 1}),
	})

	frames := drain(hostOut)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want one per tick", len(frames))
	}
	msg := decodeEvents(t, frames[0])
	if msg.Tick != 2 {
		t.Fatalf("frame tick = %d", msg.Tick)
	}
	want := []string{
		protocol.EventPositionChanged,
		protocol.EventStaminaChanged,
		protocol.EventAttackSwing,
		protocol.EventTaskUpdated,
		protocol.EventHealthChanged,
	}
	if got := eventTypes(msg); !reflect.DeepEqual(got, want) {
		t.Fatalf("event order = %v, want %v", got, want)
	}
	if msg.Events[0].Cell != "p/P1/pos" || msg.Events[4].Cell != "p/P1/health" {
		t.Fatalf("cells = %q, %q", msg.Events[0].Cell, msg.Events[4].Cell)
	}
	task := msg.Events[3]
	if task.Cell != "board/survivor" || task.Op != protocol.OpReplace || task.Index != 2 {
		t.Fatalf("task event = %+v", task)
	}
}

func TestEvents_EverySetBroadcastsEvenUnchangedValues(t *testing.T) {
	m := newTestMatch(t, testTuning())

	_, hostOut := joinClient(t, m, "host", 64)
	join(t, m, "wren")
	drain(hostOut)

	mv := protocol.ActionMsg{Action: protocol.ActionMove, X: 3, Z: 3}
	m.step(nil, nil, []ActionEnvelope{action("P1", mv), action("P1", mv)})

	events := collectEvents(t, hostOut)
	if len(events) != 2 {
		t.Fatalf("events = %d, want both writes on the wire", len(events))
	}
	for _, e := range events {
		if e.EventType != protocol.EventPositionChanged {
			t.Fatalf("event = %+v", e)
		}
	}
}

func TestEvents_PhaseFlipAtStartIsSilent(t *testing.T) {
	m := newTestMatch(t, testTuning())

	_, hostOut := joinClient(t, m, "host", 64)

	frames := drain(hostOut)
	if len(frames) != 1 {
		t.Fatalf("frames = %d", len(frames))
	}
	msg := decodeEvents(t, frames[0])
	for _, e := range msg.Events {
		if e.Cell == cellMatchState {
			t.Fatalf("phase flip leaked: %+v", e)
		}
	}
	if got := eventTypes(msg); !reflect.DeepEqual(got, []string{protocol.EventParticipantJoined}) {
		t.Fatalf("join frame events = %v", got)
	}
}

func TestKeyframes_DeliveredOnSchedule(t *testing.T) {
	cfg := testTuning()
	cfg.KeyframeEveryTicks = 4
	m := newTestMatch(t, cfg)

	_, hostOut := joinClient(t, m, "host", 64)
	drain(hostOut)

	stepTicks(m, 4)
	frames := drain(hostOut)
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want just the keyframe", len(frames))
	}
	base, err := protocol.DecodeBase(frames[0])
	if err != nil || base.Type != protocol.TypeState {
		t.Fatalf("frame type = %q (err %v)", base.Type, err)
	}
	var st protocol.StateMsg
	if err := json.Unmarshal(frames[0], &st); err != nil {
		t.Fatalf("decode keyframe: %v", err)
	}
	if st.Tick != 4 || st.Phase != protocol.PhaseInProgress || len(st.Participants) != 1 {
		t.Fatalf("keyframe = tick %d phase %q participants %d", st.Tick, st.Phase, len(st.Participants))
	}

	stepTicks(m, 4)
	if frames := drain(hostOut); len(frames) != 1 {
		t.Fatalf("second interval frames = %d", len(frames))
	}
}

func TestSlowClient_IsCutNotSkipped(t *testing.T) {
	m := newTestMatch(t, testTuning())

	_, hostOut := joinClient(t, m, "host", 64)
	_, wrenOut := joinClient(t, m, "wren", 1)

	// The join frame fills wren's queue; the next frame cannot be delivered.
	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionMove, X: 2})})

	if _, ok := <-wrenOut; !ok {
		t.Fatal("buffered join frame missing")
	}
	if _, ok := <-wrenOut; ok {
		t.Fatal("queue should be closed after the cut")
	}
	if _, ok := m.clients["P1"]; ok {
		t.Fatal("cut client still registered")
	}
	if len(drain(hostOut)) == 0 {
		t.Fatal("healthy client lost its frame")
	}

	// The seat survives the transport cut until a real leave arrives.
	if got := m.participants["P1"].State; got != protocol.LifecycleActive {
		t.Fatalf("participant state = %q", got)
	}
	stepTicks(m, 1)
}

func TestDeathBroadcast_CanonicalOrder(t *testing.T) {
	m := newTestMatch(t, testTuning())

	_, hostOut := joinClient(t, m, "host", 64)
	join(t, m, "wren")
	join(t, m, "moss")

	place(m, "P1", 5, -4)
	m.step(nil, nil, []ActionEnvelope{action("P1", protocol.ActionMsg{Action: protocol.ActionPickup, ItemID: "W1", Slot: 0})})
	m.participants["P1"].Health.Set(40)
	place(m, "P1", 1, 0)
	stepTicks(m, 1) // flush the setup writes
	drain(hostOut)

	m.step(nil, nil, []ActionEnvelope{action("P0", protocol.ActionMsg{Action: protocol.ActionAttack})})

	frames := drain(hostOut)
	if len(frames) != 1 {
		t.Fatalf("frames = %d", len(frames))
	}
	msg := decodeEvents(t, frames[0])
	want := []string{
		protocol.EventStaminaChanged,
		protocol.EventAttackSwing,
		protocol.EventHealthChanged,
		protocol.EventAliveChanged,
		protocol.EventInventoryChanged,
		protocol.EventItemDropped,
		protocol.EventDeathsChanged,
	}
	if got := eventTypes(msg); !reflect.DeepEqual(got, want) {
		t.Fatalf("death sequence = %v, want %v", got, want)
	}
	if msg.Events[4].Cell != "p/P1/slots" {
		t.Fatalf("inventory cell = %q", msg.Events[4].Cell)
	}
	if msg.Events[6].Cell != "deaths/survivor" {
		t.Fatalf("deaths cell = %q", msg.Events[6].Cell)
	}
}
