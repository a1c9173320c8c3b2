package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"whisperwire.ai/internal/persistence/indexdb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/sessions.sqlite)")
	sessionID := fs.String("session", "", "session id (intents, snapshot)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "top"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "sessions.sqlite")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runQuery(ctx, db, q, *sessionID, *limit, json.NewEncoder(os.Stdout)); err != nil {
		fmt.Fprintln(os.Stderr, q+":", err)
		os.Exit(1)
	}
}

// runQuery writes one JSON object per row.
func runQuery(ctx context.Context, db *sql.DB, q, sessionID string, limit int, enc *json.Encoder) error {
	needSession := func() error {
		if strings.TrimSpace(sessionID) == "" {
			return fmt.Errorf("missing -session")
		}
		return nil
	}
	switch q {
	case "top":
		rows, err := indexdb.QueryTopSessions(ctx, db, limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			_ = enc.Encode(r)
		}
	case "intents":
		if err := needSession(); err != nil {
			return err
		}
		rows, err := indexdb.QueryIntents(ctx, db, sessionID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			_ = enc.Encode(r)
		}
	case "snapshot":
		if err := needSession(); err != nil {
			return err
		}
		row, ok, err := indexdb.QueryLatestSnapshot(ctx, db, sessionID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no snapshot indexed for %s", sessionID)
		}
		_ = enc.Encode(row)
	default:
		return fmt.Errorf("unknown query %q (top|intents|snapshot)", q)
	}
	return nil
}
