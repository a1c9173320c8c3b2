package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"whisperwire.ai/internal/persistence/indexdb"
	persistlog "whisperwire.ai/internal/persistence/log"
	"whisperwire.ai/internal/sim/catalogs"
	"whisperwire.ai/internal/sim/tuning"
	"whisperwire.ai/internal/transport/observer"
	"whisperwire.ai/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	cats, err := catalogs.Load(cfg.ConfigDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load(cfg.TuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", cfg.TuningPath)
		tune = tuning.Defaults()
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	idx, err := openRuntimeIndex(cfg.DataDir, cfg.IndexBackend, cfg.DisableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cfg.ConfigDir, cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	results := persistlog.NewResultLogger(cfg.DataDir)
	audit := persistlog.NewAuditLogger(cfg.DataDir)
	defer results.Close()
	defer audit.Close()

	feed := observer.NewHub()
	wsSrv := ws.NewServer(ws.Config{
		Catalogs:            cats,
		Tuning:              tune,
		DataDir:             cfg.DataDir,
		SnapshotEveryRounds: cfg.SnapshotEveryRounds,
		Index:               idx,
		Results:             results,
		Audit:               audit,
		Feed:                feed,
		MaxSessions:         cfg.MaxSessions,
		ActsPerSecond:       cfg.ActsPerSecond,
	}, logger)

	ctx, cancel := signalContext()
	defer cancel()

	mux := newMux(cfg, wsSrv, feed, idx, cats, tune, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s catalogs=%s tuning=%s", cfg.Addr, short(cats.Digest), short(tune.Digest()))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func newMux(cfg serverConfig, wsSrv *ws.Server, feed *observer.Hub, idx *indexdb.SQLiteIndex, cats *catalogs.Catalogs, tune tuning.Tuning, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, wsSrv.Stats(), idx)
	})

	if cfg.EnableAdminHTTP {
		// Local-only admin endpoints.
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				Sessions      ws.Stats      `json:"sessions"`
				Index         indexdb.Stats `json:"index"`
				CatalogDigest string        `json:"catalog_digest"`
				TuningDigest  string        `json:"tuning_digest"`
			}{
				Sessions:      wsSrv.Stats(),
				Index:         idx.Stats(),
				CatalogDigest: cats.Digest,
				TuningDigest:  tune.Digest(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/leaderboard", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			if idx == nil {
				http.Error(rw, "index disabled", http.StatusServiceUnavailable)
				return
			}
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			rows, err := idx.TopSessions(ctx2, limit)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "sessions": rows})
		})

		obsSrv := observer.NewServer(feed, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (WW_ENABLE_ADMIN_HTTP=false)")
	}
	if cfg.EnablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", wsSrv.Handler())
	return mux
}

func writeMetrics(rw http.ResponseWriter, s ws.Stats, idx *indexdb.SQLiteIndex) {
	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP whisperwire_sessions_active Currently connected game sessions.\n")
	fmt.Fprintf(rw, "# TYPE whisperwire_sessions_active gauge\n")
	fmt.Fprintf(rw, "whisperwire_sessions_active %d\n", s.ActiveSessions)

	fmt.Fprintf(rw, "# HELP whisperwire_sessions_total Sessions opened since start.\n")
	fmt.Fprintf(rw, "# TYPE whisperwire_sessions_total counter\n")
	fmt.Fprintf(rw, "whisperwire_sessions_total %d\n", s.TotalSessions)

	if idx == nil {
		return
	}
	is := idx.Stats()
	fmt.Fprintf(rw, "# HELP whisperwire_index_queue_depth Index writer backlog.\n")
	fmt.Fprintf(rw, "# TYPE whisperwire_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "whisperwire_index_queue_depth %d\n", is.QueueDepth)
	fmt.Fprintf(rw, "whisperwire_index_queue_capacity %d\n", is.QueueCapacity)

	fmt.Fprintf(rw, "# HELP whisperwire_index_dropped_total Index writes dropped because the queue was full.\n")
	fmt.Fprintf(rw, "# TYPE whisperwire_index_dropped_total counter\n")
	fmt.Fprintf(rw, "whisperwire_index_dropped_total{kind=%q} %d\n", "session", is.DropSessionTotal)
	fmt.Fprintf(rw, "whisperwire_index_dropped_total{kind=%q} %d\n", "round", is.DropRoundTotal)
	fmt.Fprintf(rw, "whisperwire_index_dropped_total{kind=%q} %d\n", "intent", is.DropIntentTotal)
	fmt.Fprintf(rw, "whisperwire_index_dropped_total{kind=%q} %d\n", "snapshot", is.DropSnapshotTotal)
	fmt.Fprintf(rw, "whisperwire_index_dropped_total{kind=%q} %d\n", "audit", is.DropAuditTotal)

	fmt.Fprintf(rw, "# HELP whisperwire_index_write_errors_total Failed index statements.\n")
	fmt.Fprintf(rw, "# TYPE whisperwire_index_write_errors_total counter\n")
	fmt.Fprintf(rw, "whisperwire_index_write_errors_total %d\n", is.WriteErrorTotal)
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

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
