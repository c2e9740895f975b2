package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	JoinCode        string            `json:"join_code"`
	Name            string            `json:"name"`
	Capabilities    HelloCapabilities `json:"capabilities,omitempty"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ParticipantID   string      `json:"participant_id"`
	Role            string      `json:"role"`
	Character       int         `json:"character"`
	Host            bool        `json:"host,omitempty"`
	Match           MatchParams `json:"match"`
}

type MatchParams struct {
	TickRateHz      int     `json:"tick_rate_hz"`
	MaxParticipants int     `json:"max_participants"`
	ArenaRadius     float64 `json:"arena_radius"`
	Reach           float64 `json:"reach"`
}

// Action types (client -> server).
const (
	ActionMove         = "MOVE"
	ActionAttack       = "ATTACK"
	ActionPickup       = "PICKUP"
	ActionDrop         = "DROP"
	ActionTaskProgress = "TASK_PROGRESS"
	ActionRevive       = "REVIVE"
)

// ACTION (client -> server). One struct covers every action type; fields not
// used by an action stay at their zero value. SubjectID names the participant
// the action acts for; the server compares it against the transport-verified
// sender identity before anything else.
type ActionMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick,omitempty"`
	Action          string `json:"action"`
	SubjectID       string `json:"subject_id"`
	Ref             string `json:"ref,omitempty"`

	// MOVE
	X float64 `json:"x,omitempty"`
	Z float64 `json:"z,omitempty"`

	// PICKUP / DROP
	ItemID string `json:"item_id,omitempty"`
	Slot   int    `json:"slot,omitempty"`

	// TASK_PROGRESS
	Task   int `json:"task,omitempty"`
	Amount int `json:"amount,omitempty"`

	// REVIVE
	TargetID string `json:"target_id,omitempty"`
}

// Event types (server -> all clients).
const (
	EventParticipantJoined = "PARTICIPANT_JOINED"
	EventParticipantLeft   = "PARTICIPANT_LEFT"
	EventPositionChanged   = "POSITION_CHANGED"
	EventHealthChanged     = "HEALTH_CHANGED"
	EventStaminaChanged    = "STAMINA_CHANGED"
	EventAliveChanged      = "ALIVE_CHANGED"
	EventInventoryChanged  = "INVENTORY_CHANGED"
	EventItemTaken         = "ITEM_TAKEN"
	EventItemDropped       = "ITEM_DROPPED"
	EventAttackSwing       = "ATTACK_SWING"
	EventTaskUpdated       = "TASK_UPDATED"
	EventDeathsChanged     = "DEATHS_CHANGED"
	EventMatchEnded        = "MATCH_ENDED"
	EventReturnToLobby     = "RETURN_TO_LOBBY"
)

// Cell change ops carried on events that mirror replicated state.
const (
	OpSet     = "SET"
	OpAppend  = "APPEND"
	OpReplace = "REPLACE"
	OpRemove  = "REMOVE"
)

// Event is one replicated mutation or broadcast result. Events reach every
// client in the order the server issued them; per-cell order is a consequence
// of that. Cell, Op and Index are set only for events mirroring a replicated
// cell; an absent Index with a list-scoped Op means index 0.
type Event struct {
	EventType   string          `json:"event_type"`
	AffectedIDs []string        `json:"affected_ids,omitempty"`
	Cell        string          `json:"cell,omitempty"`
	Op          string          `json:"op,omitempty"`
	Index       int             `json:"index,omitempty"`
	NewState    json.RawMessage `json:"new_state,omitempty"`
}

// EVENTS (server -> all clients): the ordered event frame flushed at the end
// of a tick. Empty frames are not sent.
type EventsMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	Events          []Event `json:"events"`
}

// STATE (server -> client): a full keyframe. Sent once on join so a late
// joiner starts from the current truth, then periodically so drifted mirrors
// self-heal.
type StateMsg struct {
	Type            string             `json:"type"`
	ProtocolVersion string             `json:"protocol_version"`
	Tick            uint64             `json:"tick"`
	Phase           string             `json:"phase"`
	Result          string             `json:"result,omitempty"`
	Participants    []ParticipantState `json:"participants"`
	Items           []ItemState        `json:"items"`
	Boards          BoardsState        `json:"boards"`
	Deaths          DeathsState        `json:"deaths"`
}

type ParticipantState struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Role      string      `json:"role"`
	Character int         `json:"character"`
	State     string      `json:"state"`
	Alive     bool        `json:"alive"`
	Health    int         `json:"health"`
	Stamina   int         `json:"stamina"`
	X         float64     `json:"x"`
	Z         float64     `json:"z"`
	Slots     []SlotState `json:"slots"`
}

type SlotState struct {
	ItemID   string `json:"item_id,omitempty"`
	Occupied bool   `json:"occupied"`
}

type ItemState struct {
	ID     string  `json:"id"`
	Item   string  `json:"item"`
	X      float64 `json:"x"`
	Z      float64 `json:"z"`
	HeldBy string  `json:"held_by,omitempty"`
}

type TaskState struct {
	Description string `json:"description"`
	Current     int    `json:"current"`
	Required    int    `json:"required"`
	Completed   bool   `json:"completed"`
}

type BoardsState struct {
	Survivor []TaskState `json:"survivor"`
	Hunter   []TaskState `json:"hunter"`
}

type DeathsState struct {
	Survivor int `json:"survivor"`
	Hunter   int `json:"hunter"`
}
