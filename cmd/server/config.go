package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

// serverConfig is filled from flags first; WW_* environment variables override them.
type serverConfig struct {
	Addr       string `env:"ADDR"`
	ConfigDir  string `env:"CONFIGS"`
	DataDir    string `env:"DATA"`
	TuningPath string `env:"TUNING"`

	IndexBackend string `env:"INDEX_BACKEND"`
	DisableDB    bool   `env:"DISABLE_DB"`

	MaxSessions         int `env:"MAX_SESSIONS"`
	SnapshotEveryRounds int `env:"SNAPSHOT_EVERY_ROUNDS"`
	ActsPerSecond       int `env:"ACTS_PER_SECOND"`

	EnableAdminHTTP bool   `env:"ENABLE_ADMIN_HTTP"`
	EnablePprofHTTP bool   `env:"ENABLE_PPROF_HTTP"`
	DeployEnv       string
}

const envPrefix = "WW_"

func loadConfig(args []string) (serverConfig, error) {
	var cfg serverConfig
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", ":8080", "http listen address")
	fs.StringVar(&cfg.ConfigDir, "configs", "./configs", "config directory")
	fs.StringVar(&cfg.DataDir, "data", "./data", "runtime data directory (session logs, snapshots, index)")
	fs.StringVar(&cfg.TuningPath, "tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	fs.StringVar(&cfg.IndexBackend, "index_backend", "sqlite", "read-model index backend: sqlite|none")
	fs.BoolVar(&cfg.DisableDB, "disable_db", false, "disable indexing (sessions/rounds/intents + catalogs)")
	fs.IntVar(&cfg.MaxSessions, "max_sessions", 256, "max concurrent websocket sessions")
	fs.IntVar(&cfg.SnapshotEveryRounds, "snapshot_every_rounds", 5, "write a session snapshot every N rounds")
	fs.IntVar(&cfg.ActsPerSecond, "acts_per_second", 20, "per-connection command rate limit")
	fs.BoolVar(&cfg.EnablePprofHTTP, "pprof", false, "expose /debug/pprof")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.DeployEnv = os.Getenv("DEPLOY_ENV")
	cfg.EnableAdminHTTP = defaultEnableAdminHTTP(cfg.DeployEnv)

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(cfg.TuningPath) == "" {
		cfg.TuningPath = cfg.ConfigDir + "/tuning.yaml"
	}
	return cfg, nil
}

func defaultEnableAdminHTTP(deployEnv string) bool {
	switch strings.ToLower(strings.TrimSpace(deployEnv)) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
