package match

import "duskhollow.gg/internal/protocol"

func (m *Match) aliveCount(role string) int {
	n := 0
	for _, p := range m.participants {
		if p.Role == role && p.Alive.Get() {
			n++
		}
	}
	return n
}

// evaluate re-runs the win rules in priority order; the first match wins. It
// fires from board and death-counter subscribers, so it always sees the state
// after the mutation that triggered it. An ended match never re-evaluates.
func (m *Match) evaluate() {
	if m.state.Get().Phase != protocol.PhaseInProgress {
		return
	}
	nowTick := m.tick.Load()
	switch {
	case m.boardComplete(m.survivorBoard):
		m.endMatch(protocol.ResultSurvivorsTasks, nowTick)
	case m.fielded[protocol.RoleHunter] && m.aliveCount(protocol.RoleHunter) == 0:
		m.endMatch(protocol.ResultSurvivorsElimination, nowTick)
	case m.boardComplete(m.hunterBoard) && m.survivorDeaths.Get() >= 1:
		m.endMatch(protocol.ResultHunterRitual, nowTick)
	case m.fielded[protocol.RoleSurvivor] && m.aliveCount(protocol.RoleSurvivor) == 0:
		m.endMatch(protocol.ResultHunterElimination, nowTick)
	}
}

// endMatch flips the state cell exactly once. After the flip every gameplay
// action is rejected with REJECT_PHASE, open strikes die, regen stops, and the
// lobby return is armed as a tick deadline, not a timer.
func (m *Match) endMatch(result string, nowTick uint64) {
	if m.state.Get().Phase == protocol.PhaseEnded {
		return
	}
	m.state.Set(MatchState{Phase: protocol.PhaseEnded, Result: result})
	for _, p := range m.participants {
		p.strike = nil
	}
	m.lobbyReturnTick = nowTick + uint64(m.cfg.EndLobbyDelayTicks)
	m.logger.Printf("match ended: %s (tick %d)", result, nowTick)
}

// checkDeadlines runs at its place in the step order. When the lobby-return
// deadline arrives it broadcasts RETURN_TO_LOBBY and reports the match done;
// the caller tears the loop down after flushing.
func (m *Match) checkDeadlines(nowTick uint64) bool {
	if m.state.Get().Phase != protocol.PhaseEnded {
		return false
	}
	if nowTick < m.lobbyReturnTick {
		return false
	}
	m.out.emit(protocol.Event{EventType: protocol.EventReturnToLobby})
	return true
}
