package session

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"math/big"
	"sync"
	"time"

	"duskhollow.gg/internal/match"
)

var ErrSessionActive = errors.New("session: a match is already live")

// No 0/O/1/I so codes survive being read aloud.
const codeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type Session struct {
	Code      string
	Match     *match.Match
	CreatedAt time.Time
}

// Registry tracks the process's one live session. Create refuses a second
// match until the current one finishes; the match frees its code through the
// finish callback when it returns everyone to the lobby.
type Registry struct {
	mu       sync.Mutex
	cur      *Session
	newMatch func(code string) (*match.Match, error)
	logger   *log.Logger
}

// NewRegistry takes the match factory. The factory sees the join code so it
// can bind per-match loggers before the first tick runs.
func NewRegistry(newMatch func(code string) (*match.Match, error), logger *log.Logger) *Registry {
	return &Registry{newMatch: newMatch, logger: logger}
}

// Create builds the match, starts its goroutine and hands back the session
// with its join code.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != nil {
		return nil, ErrSessionActive
	}
	code := generateCode(6)
	m, err := r.newMatch(code)
	if err != nil {
		return nil, err
	}
	s := &Session{Code: code, Match: m, CreatedAt: time.Now()}
	m.SetOnFinish(func() { r.clear(code) })
	r.cur = s
	go func() {
		if err := m.Run(ctx); err != nil && ctx.Err() == nil {
			r.logger.Printf("match %s: %v", code, err)
		}
	}()
	r.logger.Printf("session %s created", code)
	return s, nil
}

func (r *Registry) Resolve(code string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil || r.cur.Code != code {
		return nil, false
	}
	return r.cur, true
}

func (r *Registry) Current() (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return nil, false
	}
	return r.cur, true
}

func (r *Registry) clear(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != nil && r.cur.Code == code {
		r.cur = nil
		r.logger.Printf("session %s finished", code)
	}
}

func generateCode(n int) string {
	b := make([]byte, n)
	max := big.NewInt(int64(len(codeChars)))
	for i := range b {
		idx, _ := rand.Int(rand.Reader, max)
		b[i] = codeChars[idx.Int64()]
	}
	return string(b)
}
