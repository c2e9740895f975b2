package match

import (
	"duskhollow.gg/internal/protocol"
	"duskhollow.gg/internal/replicated"
)

type TaskRecord struct {
	Description string `json:"description"`
	Current     int    `json:"current"`
	Required    int    `json:"required"`
	Completed   bool   `json:"completed"`
}

func (m *Match) initBoards() {
	survivor := make([]TaskRecord, len(m.cfg.Boards.Survivor))
	for i, t := range m.cfg.Boards.Survivor {
		survivor[i] = TaskRecord{Description: t.Description, Required: t.Required}
	}
	hunter := make([]TaskRecord, len(m.cfg.Boards.Hunter))
	for i, t := range m.cfg.Boards.Hunter {
		hunter[i] = TaskRecord{Description: t.Description, Required: t.Required}
	}

	m.survivorBoard = replicated.NewListOf(m.out, "board/survivor", protocol.EventTaskUpdated, nil, survivor)
	m.hunterBoard = replicated.NewListOf(m.out, "board/hunter", protocol.EventTaskUpdated, nil, hunter)
	m.survivorDeaths = replicated.NewValue(m.out, "deaths/survivor", protocol.EventDeathsChanged, nil, 0)
	m.hunterDeaths = replicated.NewValue(m.out, "deaths/hunter", protocol.EventDeathsChanged, nil, 0)

	// Win rules re-run whenever a board or death counter moves. Alive flips
	// need no subscription of their own: every alive->dead edge is followed by
	// a death record, and joins only ever add living members.
	m.survivorBoard.Subscribe(func(replicated.ListChange[TaskRecord]) { m.evaluate() })
	m.hunterBoard.Subscribe(func(replicated.ListChange[TaskRecord]) { m.evaluate() })
	m.survivorDeaths.Subscribe(func(_, _ int) { m.evaluate() })
	m.hunterDeaths.Subscribe(func(_, _ int) { m.evaluate() })
}

func (m *Match) board(role string) *replicated.List[TaskRecord] {
	if role == protocol.RoleHunter {
		return m.hunterBoard
	}
	return m.survivorBoard
}

func (m *Match) deaths(role string) *replicated.Value[int] {
	if role == protocol.RoleHunter {
		return m.hunterDeaths
	}
	return m.survivorDeaths
}

// recordDeath is called only on alive->dead edges, never unconditionally; the
// counters are cumulative and a revive does not roll one back.
func (m *Match) recordDeath(role string) {
	d := m.deaths(role)
	d.Set(d.Get() + 1)
}

func (m *Match) boardComplete(board *replicated.List[TaskRecord]) bool {
	for i := 0; i < board.Len(); i++ {
		if !board.Get(i).Completed {
			return false
		}
	}
	return true
}

func (m *Match) handleTaskProgress(p *Participant, act protocol.ActionMsg, nowTick uint64) {
	if !p.Alive.Get() {
		m.reject(nowTick, p.ID, act, protocol.RejectLifecycle, "subject is dead")
		return
	}
	// The index always addresses the subject's own board; there is no way to
	// progress the other side's tasks.
	board := m.board(p.Role)
	if act.Task < 0 || act.Task >= board.Len() {
		m.reject(nowTick, p.ID, act, protocol.RejectTarget, "no such task")
		return
	}
	if act.Amount <= 0 {
		m.reject(nowTick, p.ID, act, protocol.RejectBadRequest, "amount must be positive")
		return
	}

	rec := board.Get(act.Task)
	if rec.Completed {
		// Accepted no-op: progressing a finished task changes nothing and
		// broadcasts nothing.
		m.accept(nowTick, p.ID, act, map[string]any{"task": act.Task, "already_complete": true})
		return
	}
	rec.Current = min(rec.Current+act.Amount, rec.Required)
	rec.Completed = rec.Current == rec.Required
	board.ReplaceAt(act.Task, rec)
	m.accept(nowTick, p.ID, act, map[string]any{"task": act.Task, "current": rec.Current})
}
