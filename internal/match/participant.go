package match

import (
	"fmt"

	"duskhollow.gg/internal/protocol"
	"duskhollow.gg/internal/replicated"
)

type Position struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

type ItemSlot struct {
	ItemID   string `json:"item_id,omitempty"`
	Occupied bool   `json:"occupied"`
}

// Participant is one seat in the match. Identity fields are fixed at join;
// everything a client mirrors lives in replicated cells.
type Participant struct {
	ID        string
	Name      string
	Role      string
	Character int
	Host      bool

	// Lifecycle is Connecting -> Active -> Departed, one way. It is visible
	// to clients through keyframes and join/leave events, not a cell.
	State string

	Alive   *replicated.Value[bool]
	Health  *replicated.Value[int]
	Stamina *replicated.Value[int]
	Pos     *replicated.Value[Position]
	Slots   *replicated.List[ItemSlot]

	attackReadyTick uint64
	strike          *strike
}

// strike is an open attack window. Targets enter the hit set the first time
// they take its damage and never take it again, whatever they do afterwards.
type strike struct {
	windowID  uint64
	untilTick uint64
	hit       map[string]bool
}

func (m *Match) newParticipant(id, name, role string, character int, host bool, spawn Position) *Participant {
	p := &Participant{
		ID:        id,
		Name:      name,
		Role:      role,
		Character: character,
		Host:      host,
		State:     protocol.LifecycleConnecting,
	}

	cell := func(suffix string) string { return fmt.Sprintf("p/%s/%s", id, suffix) }
	affected := []string{id}

	p.Alive = replicated.NewValue(m.out, cell("alive"), protocol.EventAliveChanged, affected, true)
	p.Health = replicated.NewValue(m.out, cell("health"), protocol.EventHealthChanged, affected, m.cfg.Vitals.MaxHealth)
	p.Stamina = replicated.NewValue(m.out, cell("stamina"), protocol.EventStaminaChanged, affected, m.cfg.Vitals.MaxStamina)
	p.Pos = replicated.NewValue(m.out, cell("pos"), protocol.EventPositionChanged, affected, spawn)
	p.Slots = replicated.NewListOf(m.out, cell("slots"), protocol.EventInventoryChanged, affected,
		make([]ItemSlot, m.cfg.Items.InventorySlots))

	// Reaching zero health is the only way a living participant dies in play;
	// the edge guard keeps a second zero write from killing twice.
	p.Health.Subscribe(func(old, new int) {
		if old > 0 && new == 0 {
			m.killParticipant(p)
		}
	})

	return p
}

// charPool hands out survivor character indices, lowest free first. Departing
// participants return their index; death does not.
type charPool struct {
	free []int
	next int
	max  int
	rot  int
}

func newCharPool(max int) *charPool {
	return &charPool{next: 1, max: max}
}

func (c *charPool) take() int {
	if len(c.free) > 0 {
		idx := c.free[0]
		c.free = c.free[1:]
		return idx
	}
	if c.next <= c.max {
		idx := c.next
		c.next++
		return idx
	}
	// Exhausted pool (misconfigured tuning): rotate rather than fail the join.
	idx := c.rot%c.max + 1
	c.rot++
	return idx
}

func (c *charPool) release(idx int) {
	if idx < 1 || idx > c.max {
		return
	}
	at := len(c.free)
	for i, v := range c.free {
		if v == idx {
			return
		}
		if v > idx {
			at = i
			break
		}
	}
	c.free = append(c.free, 0)
	copy(c.free[at+1:], c.free[at:])
	c.free[at] = idx
}
