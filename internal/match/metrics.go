package match

import (
	"time"

	"duskhollow.gg/internal/protocol"
)

// MatchMetrics is a read-only snapshot of runtime signals. It is published
// from the match goroutine at each step end and read from HTTP handlers.
type MatchMetrics struct {
	Tick   uint64 `json:"tick"`
	Phase  string `json:"phase"`
	Result string `json:"result,omitempty"`

	Participants int `json:"participants"`
	Clients      int `json:"clients"`

	AliveSurvivors int `json:"alive_survivors"`
	AliveHunters   int `json:"alive_hunters"`
	DeathsSurvivor int `json:"deaths_survivor"`
	DeathsHunter   int `json:"deaths_hunter"`

	ActionsAccepted uint64 `json:"actions_accepted"`
	ActionsRejected uint64 `json:"actions_rejected"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

func (m *Match) publishMetrics(nowTick uint64, elapsed time.Duration) {
	st := m.state.Get()
	m.metrics.Store(MatchMetrics{
		Tick:            nowTick,
		Phase:           st.Phase,
		Result:          st.Result,
		Participants:    len(m.participants),
		Clients:         len(m.clients),
		AliveSurvivors:  m.aliveCount(protocol.RoleSurvivor),
		AliveHunters:    m.aliveCount(protocol.RoleHunter),
		DeathsSurvivor:  m.survivorDeaths.Get(),
		DeathsHunter:    m.hunterDeaths.Get(),
		ActionsAccepted: m.acceptedTotal,
		ActionsRejected: m.rejectedTotal,
		QueueDepths: QueueDepths{
			Inbox: len(m.inbox),
			Join:  len(m.join),
			Leave: len(m.leave),
		},
		StepMS: float64(elapsed.Microseconds()) / 1000.0,
	})
}

func (m *Match) Metrics() MatchMetrics {
	if m == nil {
		return MatchMetrics{}
	}
	v := m.metrics.Load()
	if v == nil {
		return MatchMetrics{}
	}
	mm, ok := v.(MatchMetrics)
	if !ok {
		return MatchMetrics{}
	}
	return mm
}
