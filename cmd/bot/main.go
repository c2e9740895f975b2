package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"duskhollow.gg/internal/protocol"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		code = flag.String("code", "", "join code (required)")
		name = flag.String("name", "bot", "participant name")
	)
	flag.Parse()
	if *code == "" {
		log.Fatal("missing -code")
	}

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		JoinCode:        *code,
		Name:            *name,
		Capabilities: protocol.HelloCapabilities{
			MaxQueue: 8,
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	b := &bot{conn: conn, logger: logger, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			b.id = w.ParticipantID
			b.role = w.Role
			b.radius = w.Match.ArenaRadius
			logger.Printf("WELCOME participant_id=%s role=%s host=%v", w.ParticipantID, w.Role, w.Host)

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			for _, p := range st.Participants {
				if p.ID == b.id {
					b.x, b.z = p.X, p.Z
				}
			}
			if st.Phase == protocol.PhaseEnded && b.role != "" {
				logger.Printf("match over: result=%s", st.Result)
			}
			b.act(st.Tick)

		case protocol.TypeEvents:
			var ev protocol.EventsMsg
			if err := json.Unmarshal(msg, &ev); err != nil {
				continue
			}
			b.observe(&ev)
			b.act(ev.Tick)
		}
	}
}

type bot struct {
	conn   *websocket.Conn
	logger *log.Logger
	rng    *rand.Rand

	id     string
	role   string
	radius float64
	x, z   float64

	lastMove   uint64
	lastAttack uint64
	lastTask   uint64
}

func (b *bot) observe(ev *protocol.EventsMsg) {
	for _, e := range ev.Events {
		if e.Cell != "p/"+b.id+"/pos" {
			continue
		}
		var pos struct {
			X float64 `json:"x"`
			Z float64 `json:"z"`
		}
		if err := json.Unmarshal(e.NewState, &pos); err == nil {
			b.x, b.z = pos.X, pos.Z
		}
	}
}

// Wander, and poke at whatever the role can reach. Rejected actions are fine;
// the server drops them silently and the bot just tries again later.
func (b *bot) act(tick uint64) {
	if b.id == "" {
		return
	}

	if tick-b.lastMove >= 10 {
		b.lastMove = tick
		tx := b.x + float64(b.rng.Intn(9)-4)
		tz := b.z + float64(b.rng.Intn(9)-4)
		b.send(protocol.ActionMsg{
			Type:            protocol.TypeAction,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			Action:          protocol.ActionMove,
			SubjectID:       b.id,
			Ref:             fmt.Sprintf("move_%d", tick),
			X:               tx,
			Z:               tz,
		})
	}

	if b.role == protocol.RoleHunter && tick-b.lastAttack >= 25 {
		b.lastAttack = tick
		b.send(protocol.ActionMsg{
			Type:            protocol.TypeAction,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			Action:          protocol.ActionAttack,
			SubjectID:       b.id,
			Ref:             fmt.Sprintf("swing_%d", tick),
		})
	}

	if b.role == protocol.RoleSurvivor && tick-b.lastTask >= 30 {
		b.lastTask = tick
		b.send(protocol.ActionMsg{
			Type:            protocol.TypeAction,
			ProtocolVersion: protocol.Version,
			Tick:            tick,
			Action:          protocol.ActionTaskProgress,
			SubjectID:       b.id,
			Ref:             fmt.Sprintf("task_%d", tick),
			Task:            b.rng.Intn(3),
			Amount:          1,
		})
	}
}

func (b *bot) send(act protocol.ActionMsg) {
	_ = b.conn.WriteJSON(act)
}
