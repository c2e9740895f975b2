package match

import (
	"fmt"

	"duskhollow.gg/internal/protocol"
)

// Item is a world object. At most one participant holds it at a time; while
// held, X/Z keep the last ground position.
type Item struct {
	ID     string
	Kind   string
	X, Z   float64
	HeldBy string
}

func (m *Match) spawnItems() {
	for i, w := range m.cfg.Items.World {
		it := &Item{
			ID:   fmt.Sprintf("W%d", i+1),
			Kind: w.Item,
			X:    w.X,
			Z:    w.Z,
		}
		m.items = append(m.items, it)
		m.itemIndex[it.ID] = it
	}
}

func (m *Match) handlePickup(p *Participant, act protocol.ActionMsg, nowTick uint64) {
	if !p.Alive.Get() {
		m.reject(nowTick, p.ID, act, protocol.RejectLifecycle, "subject is dead")
		return
	}
	if act.Slot < 0 || act.Slot >= p.Slots.Len() {
		m.reject(nowTick, p.ID, act, protocol.RejectSlot, "no such slot")
		return
	}
	if p.Slots.Get(act.Slot).Occupied {
		m.reject(nowTick, p.ID, act, protocol.RejectSlot, "slot occupied")
		return
	}
	it := m.itemIndex[act.ItemID]
	if it == nil {
		m.reject(nowTick, p.ID, act, protocol.RejectTarget, "no such item")
		return
	}
	if it.HeldBy != "" {
		m.reject(nowTick, p.ID, act, protocol.RejectTarget, "item already held")
		return
	}
	pos := p.Pos.Get()
	if dist(pos.X, pos.Z, it.X, it.Z) > m.cfg.Combat.Reach {
		m.reject(nowTick, p.ID, act, protocol.RejectRange, "item out of reach")
		return
	}

	it.HeldBy = p.ID
	p.Slots.ReplaceAt(act.Slot, ItemSlot{ItemID: it.ID, Occupied: true})
	m.out.emit(protocol.Event{
		EventType:   protocol.EventItemTaken,
		AffectedIDs: []string{p.ID},
		NewState:    mustRaw(map[string]any{"item_id": it.ID, "by": p.ID, "slot": act.Slot}),
	})
	m.accept(nowTick, p.ID, act, map[string]any{"item": it.ID, "slot": act.Slot})
}

func (m *Match) handleDrop(p *Participant, act protocol.ActionMsg, nowTick uint64) {
	if !p.Alive.Get() {
		m.reject(nowTick, p.ID, act, protocol.RejectLifecycle, "subject is dead")
		return
	}
	if act.Slot < 0 || act.Slot >= p.Slots.Len() {
		m.reject(nowTick, p.ID, act, protocol.RejectSlot, "no such slot")
		return
	}
	slot := p.Slots.Get(act.Slot)
	if !slot.Occupied {
		m.reject(nowTick, p.ID, act, protocol.RejectSlot, "slot empty")
		return
	}

	m.dropSlot(p, act.Slot, slot)
	m.accept(nowTick, p.ID, act, map[string]any{"item": slot.ItemID, "slot": act.Slot})
}

func (m *Match) dropSlot(p *Participant, i int, slot ItemSlot) {
	pos := p.Pos.Get()
	if it := m.itemIndex[slot.ItemID]; it != nil {
		it.HeldBy = ""
		it.X = pos.X
		it.Z = pos.Z
	}
	p.Slots.ReplaceAt(i, ItemSlot{})
	m.out.emit(protocol.Event{
		EventType:   protocol.EventItemDropped,
		AffectedIDs: []string{p.ID},
		NewState:    mustRaw(map[string]any{"item_id": slot.ItemID, "x": pos.X, "z": pos.Z}),
	})
}

// dropAllItems returns everything the participant carries to the ground at
// their position. Runs on death and on disconnect.
func (m *Match) dropAllItems(p *Participant) {
	for i := 0; i < p.Slots.Len(); i++ {
		if slot := p.Slots.Get(i); slot.Occupied {
			m.dropSlot(p, i, slot)
		}
	}
}
