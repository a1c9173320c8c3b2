package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

const Version = 1

var ErrVersion = errors.New("unsupported snapshot version")

type Header struct {
	Version   int    `json:"version"`
	SessionID string `json:"session_id"`
	Seed      string `json:"seed"`
	Round     int    `json:"round"`
	// IntentSeq is the last intent log sequence folded into this snapshot.
	IntentSeq int `json:"intent_seq"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	CatalogDigest string `json:"catalog_digest"`
	TuningDigest  string `json:"tuning_digest"`
	StateDigest   string `json:"state_digest"`

	State   StateV1   `json:"state"`
	History []StateV1 `json:"history,omitempty"`
}

type StateV1 struct {
	Seed  string `json:"seed"`
	Phase string `json:"phase"`
	Round int    `json:"round"`

	Money          float64 `json:"money"`
	Attention      float64 `json:"attention"`
	Infrastructure float64 `json:"infrastructure"`
	DetectionRisk  float64 `json:"detection_risk"`
	RNG            uint32  `json:"rng"`

	Actors      []ActorV1      `json:"actors"`
	Connections []ConnectionV1 `json:"connections"`

	Combos   []ComboV1      `json:"combos,omitempty"`
	Chains   []ChainV1      `json:"chains,omitempty"`
	ChainSeq int            `json:"chain_seq"`
	Fired    map[string]int `json:"fired,omitempty"`
	Usage    []UsageV1      `json:"usage,omitempty"`
	Holds    map[string]int `json:"holds,omitempty"`

	DefeatReason string  `json:"defeat_reason,omitempty"`
	ForcedDefeat bool    `json:"forced_defeat,omitempty"`
	Stats        StatsV1 `json:"stats"`
}

type ActorV1 struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Category string `json:"category"`
	Tier     int    `json:"tier"`

	Trust          float64 `json:"trust"`
	BaseTrust      float64 `json:"base_trust"`
	Resilience     float64 `json:"resilience"`
	EmotionalState float64 `json:"emotional_state"`
	RecoveryRate   float64 `json:"recovery_rate"`

	Cooldowns       map[string]int `json:"cooldowns,omitempty"`
	Vulnerabilities []string       `json:"vulnerabilities,omitempty"`
	Resistances     []string       `json:"resistances,omitempty"`
	Pos             [2]float64     `json:"pos"`
}

type ConnectionV1 struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
	Type     string  `json:"type,omitempty"`
}

type ComboV1 struct {
	ComboID      string `json:"combo_id"`
	Step         int    `json:"step"`
	StartedRound int    `json:"started_round"`
	ExpiresRound int    `json:"expires_round"`
}

type ChainV1 struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	Status    string `json:"status"`
	FireRound int    `json:"fire_round"`
	Deadline  int    `json:"deadline,omitempty"`
	Origin    string `json:"origin"`
}

type UsageV1 struct {
	Key       string `json:"key"`
	Count     int    `json:"count"`
	LastRound int    `json:"last_round"`
}

type StatsV1 struct {
	AbilitiesUsed   int            `json:"abilities_used"`
	AbilityUses     map[string]int `json:"ability_uses,omitempty"`
	CombosCompleted int            `json:"combos_completed"`
	EventsFired     int            `json:"events_fired"`
	EventsResolved  int            `json:"events_resolved"`
	ChoicesMade     int            `json:"choices_made"`
	ChainsExpired   int            `json:"chains_expired"`
	PeakRisk        float64        `json:"peak_risk"`
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	if err := encode(f, snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encode(f *os.File, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		_ = enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		_ = enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		_ = enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadHeader decodes only the leading JSON line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("%w: %d", ErrVersion, snap.Header.Version)
	}
	return snap, nil
}

// Path is where a session keeps its latest snapshot.
func Path(dataDir, sessionID string) string {
	return filepath.Join(dataDir, "snapshots", sessionID+".snap.zst")
}
