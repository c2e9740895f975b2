package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"duskhollow.gg/internal/match"
	"duskhollow.gg/internal/tuning"
)

// Replays a recorded tick log through a fresh match and verifies the state
// digest at every tick. Matches always start empty, so no snapshot is needed;
// the tuning must be the one the recorded match ran with or digests diverge.
func main() {
	var (
		ticksDir   = flag.String("ticks", "", "dir containing ticks-*.jsonl.zst")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *ticksDir == "" {
		fmt.Fprintln(os.Stderr, "missing -ticks")
		os.Exit(2)
	}

	cfg, err := tuning.Load(*tuningPath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "tuning not found (%s); using defaults\n", *tuningPath)
			cfg = tuning.Defaults()
		} else {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
	}

	m, err := match.New(cfg, log.New(io.Discard, "", 0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "match:", err)
		os.Exit(1)
	}

	files, err := listTickFiles(*ticksDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}

	var checked uint64
	for _, path := range files {
		if err := replayFile(m, path, *fromTick, *toTick, &checked); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
		if *toTick != 0 && m.CurrentTick() > *toTick {
			break
		}
	}
	mm := m.Metrics()
	fmt.Printf("replay ok: checked=%d ticks, final phase=%s result=%s\n", checked, mm.Phase, mm.Result)
}

func listTickFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "ticks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func replayFile(m *match.Match, path string, verifyFrom, toTick uint64, checked *uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		var entry match.TickLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if toTick != 0 && entry.Tick > toTick {
			return nil
		}
		if entry.Tick != m.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", m.CurrentTick(), entry.Tick, filepath.Base(path))
		}

		joins := make([]match.JoinRequest, 0, len(entry.Joins))
		for _, j := range entry.Joins {
			joins = append(joins, match.JoinRequest{Name: j.Name})
		}

		acts := make([]match.ActionEnvelope, 0, len(entry.Actions))
		for _, ra := range entry.Actions {
			acts = append(acts, match.ActionEnvelope{ParticipantID: ra.ParticipantID, Act: ra.Act})
		}

		tick, gotDigest := m.StepOnce(joins, entry.Leaves, acts)

		// Sanity check: StepOnce should have stepped the same tick.
		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
		}

		if tick >= verifyFrom {
			*checked++
			if gotDigest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return nil
}
