package match

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"duskhollow.gg/internal/protocol"
	"duskhollow.gg/internal/replicated"
	"duskhollow.gg/internal/tuning"
)

const cellMatchState = "match/state"

// MatchState is the phase cell's value. It flips InProgress->Ended exactly
// once; Result is set only then.
type MatchState struct {
	Phase  string `json:"phase"`
	Result string `json:"result,omitempty"`
}

// Match is the authoritative core for one session. A single goroutine owns
// every field below; transports talk to it only through the channels.
type Match struct {
	cfg    tuning.Tuning
	logger *log.Logger

	tick atomic.Uint64

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}
	done  chan struct{}

	out     *outbox
	clients map[string]*clientState

	participants map[string]*Participant
	joinOrder    []string
	nextNum      int
	chars        *charPool

	items     []*Item
	itemIndex map[string]*Item

	state          *replicated.Value[MatchState]
	survivorBoard  *replicated.List[TaskRecord]
	hunterBoard    *replicated.List[TaskRecord]
	survivorDeaths *replicated.Value[int]
	hunterDeaths   *replicated.Value[int]
	fielded        map[string]bool

	windowSeq       uint64
	lobbyReturnTick uint64
	finished        bool

	acceptedTotal uint64
	rejectedTotal uint64

	metrics atomic.Value

	tickLogger  TickLogger
	auditLogger AuditLogger
	onFinish    func()
}

func New(cfg tuning.Tuning, logger *log.Logger) (*Match, error) {
	if cfg.TickRateHz <= 0 {
		return nil, fmt.Errorf("tuning: tick_rate_hz must be positive")
	}
	if cfg.MaxParticipants < 2 {
		return nil, fmt.Errorf("tuning: max_participants must allow a hunter and a survivor")
	}
	if cfg.Characters < 1 {
		return nil, fmt.Errorf("tuning: characters must be positive")
	}
	if len(cfg.Boards.Survivor) == 0 || len(cfg.Boards.Hunter) == 0 {
		return nil, fmt.Errorf("tuning: both task boards need at least one task")
	}

	m := &Match{
		cfg:          cfg,
		logger:       logger,
		inbox:        make(chan ActionEnvelope, 1024),
		join:         make(chan JoinRequest, 64),
		leave:        make(chan string, 64),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		out:          &outbox{},
		clients:      map[string]*clientState{},
		participants: map[string]*Participant{},
		chars:        newCharPool(cfg.Characters),
		itemIndex:    map[string]*Item{},
		fielded:      map[string]bool{},
	}

	m.state = replicated.NewValue(m.out, cellMatchState, protocol.EventMatchEnded, nil,
		MatchState{Phase: protocol.PhaseLobby})
	m.initBoards()
	m.spawnItems()

	return m, nil
}

func (m *Match) Inbox() chan<- ActionEnvelope { return m.inbox }
func (m *Match) Join() chan<- JoinRequest     { return m.join }
func (m *Match) Leave() chan<- string         { return m.leave }

func (m *Match) CurrentTick() uint64 { return m.tick.Load() }

// Done is closed after the lobby return, once all match state is discarded.
func (m *Match) Done() <-chan struct{} { return m.done }

func (m *Match) SetTickLogger(l TickLogger)   { m.tickLogger = l }
func (m *Match) SetAuditLogger(l AuditLogger) { m.auditLogger = l }

// SetOnFinish registers a callback run once from the match goroutine when the
// match finishes; the session registry uses it to free the join code.
func (m *Match) SetOnFinish(f func()) { m.onFinish = f }

func (m *Match) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(m.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stop:
			return nil
		case req := <-m.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-m.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-m.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			done := m.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
			if done {
				return nil
			}
		}
	}
}

func (m *Match) Stop() { close(m.stop) }

// step applies one tick: leaves, then joins, then actions in receive order,
// then the per-tick systems. Leaves run first so a just-departed sender's
// action can only be rejected, never half applied.
func (m *Match) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) bool {
	if m.finished {
		return true
	}
	start := time.Now()
	nowTick := m.tick.Load()

	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if p, ok := m.participants[id]; ok && p.State != protocol.LifecycleDeparted {
			m.leaveParticipant(p, nowTick)
			recordedLeaves = append(recordedLeaves, id)
		}
	}

	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := m.joinParticipant(req, nowTick)
		if req.Resp != nil {
			req.Resp <- resp
		}
		if resp.Welcome.Type != "" {
			recordedJoins = append(recordedJoins, RecordedJoin{ParticipantID: resp.Welcome.ParticipantID, Name: req.Name})
		}
	}

	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		recorded = append(recorded, RecordedAction{ParticipantID: env.ParticipantID, Act: env.Act})
		m.applyAction(env, nowTick)
	}

	m.systemCombat(nowTick)
	m.systemVitals(nowTick)
	done := m.checkDeadlines(nowTick)
	m.sendKeyframes(nowTick)
	events := m.flushOutbox(nowTick)

	digest := m.stateDigest(nowTick)
	if m.tickLogger != nil {
		_ = m.tickLogger.WriteTick(TickLogEntry{
			Tick:    nowTick,
			Joins:   recordedJoins,
			Leaves:  recordedLeaves,
			Actions: recorded,
			Events:  events,
			Digest:  digest,
		})
	}
	m.publishMetrics(nowTick, time.Since(start))

	if done {
		m.closeClients()
		m.finished = true
		if m.onFinish != nil {
			m.onFinish()
		}
		close(m.done)
	}
	m.tick.Add(1)
	return done
}

// StepOnce advances the match by a single tick with the same ordering as the
// server loop. It exists for deterministic tests and replays.
func (m *Match) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = m.tick.Load()
	m.step(joins, leaves, actions)
	return tick, m.stateDigest(tick)
}

func (m *Match) joinParticipant(req JoinRequest, nowTick uint64) JoinResponse {
	if m.state.Get().Phase == protocol.PhaseEnded {
		return JoinResponse{}
	}
	seated := 0
	for _, p := range m.participants {
		if p.State != protocol.LifecycleDeparted {
			seated++
		}
	}
	if seated >= m.cfg.MaxParticipants {
		return JoinResponse{}
	}

	name := req.Name
	if name == "" {
		name = "player"
	}

	num := m.nextNum
	m.nextNum++
	id := fmt.Sprintf("P%d", num)

	role := protocol.RoleSurvivor
	character := 0
	host := false
	if num == 0 {
		// The first joiner is the host and takes the reserved hunter seat.
		role = protocol.RoleHunter
		host = true
		m.state.Set(MatchState{Phase: protocol.PhaseInProgress})
	} else {
		character = m.chars.take()
	}

	spawn := m.spawnPosition(role, character)
	p := m.newParticipant(id, name, role, character, host, spawn)
	m.participants[id] = p
	m.joinOrder = append(m.joinOrder, id)
	m.fielded[role] = true
	if req.Out != nil {
		m.clients[id] = &clientState{out: req.Out}
	}

	p.State = protocol.LifecycleActive
	m.out.emit(protocol.Event{
		EventType:   protocol.EventParticipantJoined,
		AffectedIDs: []string{id},
		NewState:    mustRaw(m.participantState(p)),
	})

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ParticipantID:   id,
		Role:            role,
		Character:       character,
		Host:            host,
		Match: protocol.MatchParams{
			TickRateHz:      m.cfg.TickRateHz,
			MaxParticipants: m.cfg.MaxParticipants,
			ArenaRadius:     m.cfg.Arena.Radius,
			Reach:           m.cfg.Combat.Reach,
		},
	}
	return JoinResponse{Welcome: welcome, State: m.buildState(nowTick)}
}

// spawnPosition spreads seats around the arena rim deterministically; the
// hunter starts at the center.
func (m *Match) spawnPosition(role string, character int) Position {
	if role == protocol.RoleHunter {
		return Position{}
	}
	r := m.cfg.Arena.Radius / 2
	switch character % 4 {
	case 0:
		return Position{X: r}
	case 1:
		return Position{X: -r}
	case 2:
		return Position{Z: r}
	default:
		return Position{Z: -r}
	}
}

func (m *Match) leaveParticipant(p *Participant, nowTick uint64) {
	if cl, ok := m.clients[p.ID]; ok {
		delete(m.clients, p.ID)
		close(cl.out)
	}
	p.State = protocol.LifecycleDeparted
	if p.Role == protocol.RoleSurvivor {
		m.chars.release(p.Character)
	}

	m.out.emit(protocol.Event{
		EventType:   protocol.EventParticipantLeft,
		AffectedIDs: []string{p.ID},
	})

	if m.state.Get().Phase != protocol.PhaseInProgress {
		return
	}

	m.dropAllItems(p)

	if p.Host {
		// Host loss aborts outright; the host's own death is never accounted.
		m.endMatch(protocol.ResultAborted, nowTick)
		return
	}

	// A mid-life disconnect counts as a death, so unplugging cannot deny the
	// other side an elimination win. Already-dead participants just depart.
	if p.Alive.Get() {
		p.Alive.Set(false)
		m.recordDeath(p.Role)
	}
}

func (m *Match) killParticipant(p *Participant) {
	if !p.Alive.Get() {
		return
	}
	p.Alive.Set(false)
	p.strike = nil
	m.dropAllItems(p)
	m.recordDeath(p.Role)
}
