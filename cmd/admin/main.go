package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "whisperwire.ai/internal/persistence/log"
	"whisperwire.ai/internal/persistence/snapshot"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "fork":
			forkCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "leaderboard":
			leaderboardCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	ids, err := listSessions(*dataDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, id := range ids {
		line := id
		if h, err := snapshot.ReadHeader(snapshot.Path(*dataDir, id)); err == nil {
			line = fmt.Sprintf("%s\tround=%d\tseq=%d\tseed=%s", id, h.Round, h.IntentSeq, h.Seed)
		}
		fmt.Println(line)
	}
}

func listSessions(dataDir string) ([]string, error) {
	ents, err := os.ReadDir(filepath.Join(dataDir, "sessions"))
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".jsonl.zst"))
	}
	sort.Strings(ids)
	return ids, nil
}

type inspectReport struct {
	Header   persistlog.SessionHeader `json:"header"`
	Intents  int                      `json:"intents"`
	Rejected int                      `json:"rejected"`
	ByKind   map[string]int           `json:"by_kind"`
	LastSeq  int                      `json:"last_seq"`
	Snapshot *snapshot.Header         `json:"snapshot,omitempty"`
	InSync   bool                     `json:"resumable"`
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	sessionID := fs.String("session", "", "session id")
	_ = fs.Parse(args)

	if strings.TrimSpace(*sessionID) == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}
	rep, err := inspect(*dataDir, *sessionID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "inspect:", err)
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rep)
}

func inspect(dataDir, sessionID string) (inspectReport, error) {
	var rep inspectReport
	hdr, intents, err := persistlog.ReadSessionLog(persistlog.SessionPath(dataDir, sessionID))
	if err != nil {
		return rep, err
	}
	rep.Header = hdr
	rep.Intents = len(intents)
	rep.ByKind = map[string]int{}
	for _, in := range intents {
		rep.ByKind[string(in.Kind)]++
		if !in.OK {
			rep.Rejected++
		}
		rep.LastSeq = in.Seq
	}
	if h, err := snapshot.ReadHeader(snapshot.Path(dataDir, sessionID)); err == nil {
		rep.Snapshot = &h
		rep.InSync = h.IntentSeq == rep.LastSeq
	}
	return rep, nil
}
