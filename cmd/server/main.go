package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"duskhollow.gg/internal/match"
	"duskhollow.gg/internal/persistence/indexdb"
	"duskhollow.gg/internal/persistence/matchlog"
	"duskhollow.gg/internal/session"
	"duskhollow.gg/internal/transport/ws"
	"duskhollow.gg/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite match-history index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	cfg, err := tuning.Load(tp)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			cfg = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	_ = os.MkdirAll(*dataDir, 0o755)

	// Optional: match-history index (never read back into gameplay).
	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "duskhollow.sqlite"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
	}

	ctx, cancel := signalContext()
	defer cancel()

	registry := session.NewRegistry(func(code string) (*match.Match, error) {
		m, err := match.New(cfg, logger)
		if err != nil {
			return nil, err
		}

		matchDir := filepath.Join(*dataDir, "matches", code)
		tickLog := matchlog.NewTickLogger(matchDir)
		auditLog := matchlog.NewAuditLogger(matchDir)

		var idxTick match.TickLogger
		var idxAudit match.AuditLogger
		if idx != nil {
			rec := idx.ForMatch(code)
			idxTick, idxAudit = rec, rec
		}
		m.SetTickLogger(multiTickLogger{a: tickLog, b: idxTick})
		m.SetAuditLogger(multiAuditLogger{a: auditLog, b: idxAudit})

		started := time.Now()
		go func() {
			select {
			case <-m.Done():
				if idx != nil {
					mm := m.Metrics()
					idx.RecordMatch(code, mm.Result, mm.Tick, mm.Participants, started, time.Now())
				}
			case <-ctx.Done():
			}
			_ = tickLog.Close()
			_ = auditLog.Close()
		}()
		return m, nil
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		s, ok := registry.Current()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP duskhollow_session_active Whether a match is currently live.\n")
		fmt.Fprintf(rw, "# TYPE duskhollow_session_active gauge\n")
		if !ok {
			fmt.Fprintf(rw, "duskhollow_session_active 0\n")
			return
		}
		fmt.Fprintf(rw, "duskhollow_session_active 1\n")

		code := s.Code
		m := s.Match.Metrics()
		tick := s.Match.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		fmt.Fprintf(rw, "# HELP duskhollow_match_tick Current match tick.\n")
		fmt.Fprintf(rw, "# TYPE duskhollow_match_tick gauge\n")
		fmt.Fprintf(rw, "duskhollow_match_tick{code=%q} %d\n", code, tick)

		fmt.Fprintf(rw, "# HELP duskhollow_match_participants Participants ever fielded this match.\n")
		fmt.Fprintf(rw, "# TYPE duskhollow_match_participants gauge\n")
		fmt.Fprintf(rw, "duskhollow_match_participants{code=%q} %d\n", code, m.Participants)

		fmt.Fprintf(rw, "# HELP duskhollow_match_clients Currently connected clients.\n")
		fmt.Fprintf(rw, "# TYPE duskhollow_match_clients gauge\n")
		fmt.Fprintf(rw, "duskhollow_match_clients{code=%q} %d\n", code, m.Clients)

		fmt.Fprintf(rw, "# HELP duskhollow_match_alive Living participants by role.\n")
		fmt.Fprintf(rw, "# TYPE duskhollow_match_alive gauge\n")
		fmt.Fprintf(rw, "duskhollow_match_alive{code=%q,role=%q} %d\n", code, "SURVIVOR", m.AliveSurvivors)
		fmt.Fprintf(rw, "duskhollow_match_alive{code=%q,role=%q} %d\n", code, "HUNTER", m.AliveHunters)

		fmt.Fprintf(rw, "# HELP duskhollow_match_deaths Deaths by role.\n")
		fmt.Fprintf(rw, "# TYPE duskhollow_match_deaths gauge\n")
		fmt.Fprintf(rw, "duskhollow_match_deaths{code=%q,role=%q} %d\n", code, "SURVIVOR", m.DeathsSurvivor)
		fmt.Fprintf(rw, "duskhollow_match_deaths{code=%q,role=%q} %d\n", code, "HUNTER", m.DeathsHunter)

		fmt.Fprintf(rw, "# HELP duskhollow_match_actions_total Actions by decision.\n")
		fmt.Fprintf(rw, "# TYPE duskhollow_match_actions_total counter\n")
		fmt.Fprintf(rw, "duskhollow_match_actions_total{code=%q,decision=%q} %d\n", code, "accepted", m.ActionsAccepted)
		fmt.Fprintf(rw, "duskhollow_match_actions_total{code=%q,decision=%q} %d\n", code, "rejected", m.ActionsRejected)

		fmt.Fprintf(rw, "# HELP duskhollow_match_queue_depth Channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE duskhollow_match_queue_depth gauge\n")
		fmt.Fprintf(rw, "duskhollow_match_queue_depth{code=%q,queue=%q} %d\n", code, "inbox", m.QueueDepths.Inbox)
		fmt.Fprintf(rw, "duskhollow_match_queue_depth{code=%q,queue=%q} %d\n", code, "join", m.QueueDepths.Join)
		fmt.Fprintf(rw, "duskhollow_match_queue_depth{code=%q,queue=%q} %d\n", code, "leave", m.QueueDepths.Leave)

		fmt.Fprintf(rw, "# HELP duskhollow_match_step_ms Last tick step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE duskhollow_match_step_ms gauge\n")
		fmt.Fprintf(rw, "duskhollow_match_step_ms{code=%q} %.3f\n", code, m.StepMS)
	})

	mux.HandleFunc("/v1/sessions", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s, err := registry.Create(ctx)
		if err != nil {
			if errors.Is(err, session.ErrSessionActive) {
				http.Error(rw, "a match is already live", http.StatusConflict)
				return
			}
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"join_code":  s.Code,
			"created_at": s.CreatedAt.UTC().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("/v1/session", func(rw http.ResponseWriter, r *http.Request) {
		s, ok := registry.Current()
		if !ok {
			http.Error(rw, "no live session", http.StatusNotFound)
			return
		}
		m := s.Match.Metrics()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"join_code":    s.Code,
			"created_at":   s.CreatedAt.UTC().Format(time.RFC3339),
			"tick":         s.Match.CurrentTick(),
			"phase":        m.Phase,
			"participants": m.Participants,
		})
	})

	enableAdminHTTP := envBool("DH_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("DH_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		// Local-only admin endpoint (does not affect match determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			s, ok := registry.Current()
			if !ok {
				http.Error(rw, "no live session", http.StatusNotFound)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				JoinCode string             `json:"join_code"`
				Tick     uint64             `json:"tick"`
				Metrics  match.MatchMetrics `json:"metrics"`
			}{
				JoinCode: s.Code,
				Tick:     s.Match.CurrentTick(),
				Metrics:  s.Match.Metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (DH_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (DH_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(registry, cfg.ClientQueue, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

type multiTickLogger struct {
	a match.TickLogger
	b match.TickLogger
}

func (m multiTickLogger) WriteTick(entry match.TickLogEntry) error {
	if m.a != nil {
		_ = m.a.WriteTick(entry)
	}
	if m.b != nil {
		_ = m.b.WriteTick(entry)
	}
	return nil
}

type multiAuditLogger struct {
	a match.AuditLogger
	b match.AuditLogger
}

func (m multiAuditLogger) WriteAudit(entry match.AuditEntry) error {
	if m.a != nil {
		_ = m.a.WriteAudit(entry)
	}
	if m.b != nil {
		_ = m.b.WriteAudit(entry)
	}
	return nil
}
