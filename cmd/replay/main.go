package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	persistlog "whisperwire.ai/internal/persistence/log"
	"whisperwire.ai/internal/persistence/snapshot"
	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/game"
)

func main() {
	var (
		sessionPath  = flag.String("session", "", "path to a session log (<data>/sessions/<id>.jsonl.zst)")
		snapPath     = flag.String("snapshot", "", "path to .snap.zst to start from (optional)")
		configDir    = flag.String("configs", "./configs", "config directory")
		toSeq        = flag.Int("to_seq", 0, "stop after intent seq (inclusive, optional)")
		allowCatalog = flag.Bool("allow_catalog_mismatch", false, "replay even if the catalog digest differs from the log header")
		printSummary = flag.Bool("summary", false, "print the final summary as JSON")
	)
	flag.Parse()

	if *sessionPath == "" {
		fmt.Fprintln(os.Stderr, "missing -session")
		os.Exit(2)
	}

	hdr, intents, err := persistlog.ReadSessionLog(*sessionPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read session:", err)
		os.Exit(1)
	}
	fmt.Printf("session %s seed=%s intents=%d protocol=%s\n", hdr.SessionID, hdr.Seed, len(intents), hdr.ProtocolVersion)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}

	var snap *snapshot.SnapshotV1
	if *snapPath != "" {
		s, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		snap = &s
	}

	res, err := verify(hdr, intents, cats, snap, options{ToSeq: *toSeq, AllowCatalogMismatch: *allowCatalog})
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d intents (from seq=%d) outcome=%s rounds=%d score=%d\n",
		res.Checked, res.FromSeq, res.Summary.Outcome, res.Summary.Rounds, res.Summary.Score)
	if *printSummary {
		b, _ := json.MarshalIndent(res.Summary, "", "  ")
		fmt.Println(string(b))
	}
}

var (
	errCatalogMismatch = errors.New("catalog digest mismatch")
	errTuningMismatch  = errors.New("tuning digest mismatch")
	errSessionMismatch = errors.New("snapshot belongs to another session")
)

type options struct {
	ToSeq                int
	AllowCatalogMismatch bool
}

type result struct {
	FromSeq int
	Checked int
	Summary game.Summary
}

// verify re-executes the logged intents on a fresh (or snapshot-restored) session and
// checks the acceptance flag and post-intent digest of each one.
func verify(hdr persistlog.SessionHeader, intents []game.Intent, cats *catalogs.Catalogs, snap *snapshot.SnapshotV1, opt options) (result, error) {
	var res result
	if hdr.CatalogDigest != cats.Digest && !opt.AllowCatalogMismatch {
		return res, fmt.Errorf("%w: log=%s configs=%s", errCatalogMismatch, hdr.CatalogDigest, cats.Digest)
	}
	tun := hdr.Tuning
	if hdr.TuningDigest != "" && tun.Digest() != hdr.TuningDigest {
		return res, errTuningMismatch
	}

	m := game.New(tun, nil)
	m.UseCatalogs(cats)
	if snap != nil {
		if snap.Header.SessionID != hdr.SessionID {
			return res, fmt.Errorf("%w: %s", errSessionMismatch, snap.Header.SessionID)
		}
		if err := m.Restore(snap.Restore()); err != nil {
			return res, err
		}
		if snap.StateDigest != "" && m.Digest() != snap.StateDigest {
			return res, fmt.Errorf("snapshot digest mismatch at seq %d", snap.Header.IntentSeq)
		}
		res.FromSeq = snap.Header.IntentSeq
	} else if err := m.StartGame(hdr.Seed); err != nil {
		return res, err
	}

	for _, in := range intents {
		if in.Seq <= res.FromSeq {
			continue
		}
		if opt.ToSeq != 0 && in.Seq > opt.ToSeq {
			break
		}
		digest, ok, err := m.Replay(in)
		if err != nil {
			return res, fmt.Errorf("seq %d: %w", in.Seq, err)
		}
		if ok != in.OK {
			return res, fmt.Errorf("seq %d (%s): accepted=%v want=%v", in.Seq, in.Kind, ok, in.OK)
		}
		if digest != in.Digest {
			return res, fmt.Errorf("digest mismatch at seq %d (%s round %d): got=%s want=%s", in.Seq, in.Kind, in.Round, digest, in.Digest)
		}
		res.Checked++
	}
	res.Summary = m.Summary()
	return res, nil
}
