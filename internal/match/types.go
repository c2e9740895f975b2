package match

import "duskhollow.gg/internal/protocol"

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

// JoinResponse carries the transport's handshake writes. A zero response
// (Welcome.Type empty) means the join was refused and the socket should close.
type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	State   protocol.StateMsg
}

// ActionEnvelope pairs a decoded action with the transport-verified sender.
// The match compares ParticipantID against the action's subject before
// anything else; it never trusts the payload's idea of who is acting.
type ActionEnvelope struct {
	ParticipantID string
	Act           protocol.ActionMsg
}

type RecordedJoin struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
}

type RecordedAction struct {
	ParticipantID string             `json:"participant_id"`
	Act           protocol.ActionMsg `json:"act"`
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"tick"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Events  int              `json:"events"`
	Digest  string           `json:"digest"`
}

// AuditEntry records one action decision, accepted or rejected. Rejections
// never reach the sender; this log is the only place they surface.
type AuditEntry struct {
	Tick     uint64         `json:"tick"`
	Actor    string         `json:"actor"`
	Action   string         `json:"action"`
	Accepted bool           `json:"accepted"`
	Code     string         `json:"code,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Details  map[string]any `json:"details,omitempty"`
}
