package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	code := fs.String("code", "", "join code filter (audits, ticks)")
	actor := fs.String("actor", "", "actor filter (audits)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "matches"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "duskhollow.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if *limit <= 0 {
		*limit = 20
	}

	switch q {
	case "matches":
		rows, err := db.Query(`SELECT code,result,ticks,participants,started_at,ended_at FROM matches ORDER BY id DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Code         string `json:"code"`
				Result       string `json:"result"`
				Ticks        int64  `json:"ticks"`
				Participants int    `json:"participants"`
				StartedAt    string `json:"started_at"`
				EndedAt      string `json:"ended_at"`
			}
			if err := rows.Scan(&r.Code, &r.Result, &r.Ticks, &r.Participants, &r.StartedAt, &r.EndedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "audits":
		if strings.TrimSpace(*code) == "" {
			fmt.Fprintln(os.Stderr, "missing -code")
			os.Exit(2)
		}
		query := `SELECT tick,seq,actor,action,accepted,reject_code,reason FROM audits WHERE code=? ORDER BY tick DESC, seq DESC LIMIT ?`
		qargs := []any{strings.TrimSpace(*code), *limit}
		if strings.TrimSpace(*actor) != "" {
			query = `SELECT tick,seq,actor,action,accepted,reject_code,reason FROM audits WHERE code=? AND actor=? ORDER BY tick DESC, seq DESC LIMIT ?`
			qargs = []any{strings.TrimSpace(*code), strings.TrimSpace(*actor), *limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick       int64  `json:"tick"`
				Seq        int    `json:"seq"`
				Actor      string `json:"actor"`
				Action     string `json:"action"`
				Accepted   bool   `json:"accepted"`
				RejectCode string `json:"reject_code,omitempty"`
				Reason     string `json:"reason,omitempty"`
			}
			var rejectCode, reason sql.NullString
			if err := rows.Scan(&r.Tick, &r.Seq, &r.Actor, &r.Action, &r.Accepted, &rejectCode, &reason); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.RejectCode = rejectCode.String
			r.Reason = reason.String
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "ticks":
		if strings.TrimSpace(*code) == "" {
			fmt.Fprintln(os.Stderr, "missing -code")
			os.Exit(2)
		}
		rows, err := db.Query(`SELECT tick,digest,joins,leaves,actions,events FROM ticks WHERE code=? ORDER BY tick DESC LIMIT ?`, strings.TrimSpace(*code), *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Tick    int64  `json:"tick"`
				Digest  string `json:"digest"`
				Joins   int    `json:"joins"`
				Leaves  int    `json:"leaves"`
				Actions int    `json:"actions"`
				Events  int    `json:"events"`
			}
			if err := rows.Scan(&r.Tick, &r.Digest, &r.Joins, &r.Leaves, &r.Actions, &r.Events); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown query %q (want matches, audits or ticks)\n", q)
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
