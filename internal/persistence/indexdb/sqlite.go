package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"duskhollow.gg/internal/match"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqMatch
)

type req struct {
	kind reqKind
	code string

	tick  match.TickLogEntry
	audit match.AuditEntry
	row   matchRow
}

type matchRow struct {
	Code         string
	Result       string
	Ticks        uint64
	Participants int
	StartedAt    string
	EndedAt      string
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// High buffer: audit writes come in per-action bursts at tick
		// boundaries and must never stall the match goroutine.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT NOT NULL,
			result TEXT NOT NULL,
			ticks INTEGER NOT NULL,
			participants INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_code ON matches(code);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			code TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			actions INTEGER NOT NULL,
			events INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (code, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			code TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			accepted INTEGER NOT NULL,
			reject_code TEXT,
			reason TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (code, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(code, actor, tick);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// ForMatch returns a recorder that stamps code onto every tick and audit
// row it writes. Recorders share the index's writer goroutine.
func (s *SQLiteIndex) ForMatch(code string) *MatchRecorder {
	return &MatchRecorder{idx: s, code: code}
}

type MatchRecorder struct {
	idx  *SQLiteIndex
	code string
}

func (r *MatchRecorder) WriteTick(entry match.TickLogEntry) error {
	if r == nil || r.idx == nil || r.idx.closed.Load() {
		return nil
	}
	select {
	case r.idx.ch <- req{kind: reqTick, code: r.code, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
	}
	return nil
}

func (r *MatchRecorder) WriteAudit(entry match.AuditEntry) error {
	if r == nil || r.idx == nil || r.idx.closed.Load() {
		return nil
	}
	select {
	case r.idx.ch <- req{kind: reqAudit, code: r.code, audit: entry}:
	default:
	}
	return nil
}

// RecordMatch appends one summary row when a match finishes.
func (s *SQLiteIndex) RecordMatch(code, result string, ticks uint64, participants int, startedAt, endedAt time.Time) {
	if s == nil || s.closed.Load() {
		return
	}
	if code == "" {
		return
	}
	r := matchRow{
		Code:         code,
		Result:       result,
		Ticks:        ticks,
		Participants: participants,
		StartedAt:    startedAt.UTC().Format(time.RFC3339Nano),
		EndedAt:      endedAt.UTC().Format(time.RFC3339Nano),
	}
	select {
	case s.ch <- req{kind: reqMatch, row: r}:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared statements (on db; executed within tx).
	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(code,tick,digest,joins,leaves,actions,events,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(code,tick,seq,actor,action,accepted,reject_code,reason,raw_json) VALUES(?,?,?,?,?,?,?,?,?)`)
	insertMatch, _ := s.db.Prepare(`INSERT INTO matches(code,result,ticks,participants,started_at,ended_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
		if insertMatch != nil {
			_ = insertMatch.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditCode string
		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			// If we can't start a tx, we can't do much; sleep a bit.
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					r.code,
					int64(r.tick.Tick),
					r.tick.Digest,
					len(r.tick.Joins),
					len(r.tick.Leaves),
					len(r.tick.Actions),
					r.tick.Events,
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqAudit:
			a := r.audit
			if r.code != lastAuditCode || a.Tick != lastAuditTick {
				lastAuditCode = r.code
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					r.code,
					int64(a.Tick),
					seq,
					a.Actor,
					a.Action,
					a.Accepted,
					a.Code,
					a.Reason,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqMatch:
			row := r.row
			if insertMatch != nil {
				if _, err := tx.Stmt(insertMatch).Exec(
					row.Code,
					row.Result,
					int64(row.Ticks),
					row.Participants,
					row.StartedAt,
					row.EndedAt,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
