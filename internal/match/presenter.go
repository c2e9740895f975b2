package match

import "duskhollow.gg/internal/protocol"

func (m *Match) participantState(p *Participant) protocol.ParticipantState {
	slots := p.Slots.Snapshot()
	wire := make([]protocol.SlotState, len(slots))
	for i, s := range slots {
		wire[i] = protocol.SlotState{ItemID: s.ItemID, Occupied: s.Occupied}
	}
	pos := p.Pos.Get()
	return protocol.ParticipantState{
		ID:        p.ID,
		Name:      p.Name,
		Role:      p.Role,
		Character: p.Character,
		State:     p.State,
		Alive:     p.Alive.Get(),
		Health:    p.Health.Get(),
		Stamina:   p.Stamina.Get(),
		X:         pos.X,
		Z:         pos.Z,
		Slots:     wire,
	}
}

func (m *Match) itemState(it *Item) protocol.ItemState {
	return protocol.ItemState{
		ID:     it.ID,
		Item:   it.Kind,
		X:      it.X,
		Z:      it.Z,
		HeldBy: it.HeldBy,
	}
}

func taskStates(recs []TaskRecord) []protocol.TaskState {
	out := make([]protocol.TaskState, len(recs))
	for i, r := range recs {
		out[i] = protocol.TaskState{
			Description: r.Description,
			Current:     r.Current,
			Required:    r.Required,
			Completed:   r.Completed,
		}
	}
	return out
}

// buildState renders the full keyframe. Departed participants stay listed so a
// late joiner can attribute earlier deaths and drops.
func (m *Match) buildState(nowTick uint64) protocol.StateMsg {
	st := m.state.Get()
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		Phase:           st.Phase,
		Result:          st.Result,
		Participants:    make([]protocol.ParticipantState, 0, len(m.joinOrder)),
		Items:           make([]protocol.ItemState, 0, len(m.items)),
		Boards: protocol.BoardsState{
			Survivor: taskStates(m.survivorBoard.Snapshot()),
			Hunter:   taskStates(m.hunterBoard.Snapshot()),
		},
		Deaths: protocol.DeathsState{
			Survivor: m.survivorDeaths.Get(),
			Hunter:   m.hunterDeaths.Get(),
		},
	}
	for _, id := range m.joinOrder {
		msg.Participants = append(msg.Participants, m.participantState(m.participants[id]))
	}
	for _, it := range m.items {
		msg.Items = append(msg.Items, m.itemState(it))
	}
	return msg
}
