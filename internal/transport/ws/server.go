package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"duskhollow.gg/internal/match"
	"duskhollow.gg/internal/protocol"
	"duskhollow.gg/internal/session"
)

type Server struct {
	sessions *session.Registry
	queue    int
	log      *log.Logger

	upgrader websocket.Upgrader
}

// NewServer wires the websocket mount. queue is the per-client frame queue
// depth; a HELLO capability may shrink it but never grow it.
func NewServer(sessions *session.Registry, queue int, logger *log.Logger) *Server {
	if queue <= 0 {
		queue = 256
	}
	s := &Server{
		sessions: sessions,
		queue:    queue,
		log:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		m, participantID, out := s.handshake(conn)
		if participantID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine. The match owns the queue; it closes the channel
		// when the session finishes or this client falls too far behind.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						_ = conn.WriteControl(websocket.CloseMessage,
							websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session over"),
							time.Now().Add(time.Second))
						cancel()
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Every decoded action is stamped with the participant
		// identity this socket authenticated as; the match trusts nothing else.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.Type != protocol.TypeAction {
				continue
			}
			var act protocol.ActionMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				continue
			}
			select {
			case m.Inbox() <- match.ActionEnvelope{ParticipantID: participantID, Act: act}:
			case <-m.Done():
			}
		}

		select {
		case m.Leave() <- participantID:
		case <-m.Done():
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (*match.Match, string, chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return nil, "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return nil, "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return nil, "", nil
	}

	sess, ok := s.sessions.Resolve(hello.JoinCode)
	if !ok {
		closePolicy(conn, "unknown join code")
		return nil, "", nil
	}
	m := sess.Match

	maxQ := s.queue
	if c := hello.Capabilities.MaxQueue; c > 0 && c < maxQ {
		maxQ = c
	}
	out := make(chan []byte, maxQ)

	respCh := make(chan match.JoinResponse, 1)
	req := match.JoinRequest{Name: hello.Name, Out: out, Resp: respCh}
	select {
	case m.Join() <- req:
	case <-m.Done():
		closePolicy(conn, "session over")
		return nil, "", nil
	}
	var resp match.JoinResponse
	select {
	case resp = <-respCh:
	case <-m.Done():
		closePolicy(conn, "session over")
		return nil, "", nil
	}
	if resp.Welcome.Type == "" {
		closePolicy(conn, "match is full")
		return nil, "", nil
	}

	// WELCOME, then the join keyframe, before any queued frame.
	if err := writeJSON(conn, resp.Welcome); err != nil {
		return nil, "", nil
	}
	if err := writeJSON(conn, resp.State); err != nil {
		return nil, "", nil
	}

	return m, resp.Welcome.ParticipantID, out
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
