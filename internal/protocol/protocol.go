package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeAction  = "ACTION"
	TypeState   = "STATE"
	TypeEvents  = "EVENTS"
)

// Roles.
const (
	RoleSurvivor = "SURVIVOR"
	RoleHunter   = "HUNTER"
)

// Match phases.
const (
	PhaseLobby      = "LOBBY"
	PhaseInProgress = "IN_PROGRESS"
	PhaseEnded      = "ENDED"
)

// Match results.
const (
	ResultSurvivorsTasks       = "SURVIVORS_TASKS"
	ResultSurvivorsElimination = "SURVIVORS_ELIMINATION"
	ResultHunterRitual         = "HUNTER_RITUAL"
	ResultHunterElimination    = "HUNTER_ELIMINATION"
	ResultAborted              = "ABORTED"
)

// Participant lifecycle states.
const (
	LifecycleConnecting = "CONNECTING"
	LifecycleActive     = "ACTIVE"
	LifecycleDeparted   = "DEPARTED"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
