// Copyright 2025 Certen Protocol
//
// ledgercored wires the ledger core's components into a runnable process:
// it loads configuration, opens the backing KV store, constructs a
// pkg/ledger.App over it, seeds genesis if the store is empty, and serves
// a metrics/health HTTP endpoint alongside the block-execution loop. The
// generic BFT consensus engine that actually delivers ordered blocks is
// out of scope; FinalizeBlock/Commit are exposed for a consensus adapter
// to call.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/config"
	"github.com/certen/ledgercore/pkg/kvdb"
	"github.com/certen/ledgercore/pkg/ledger"
	"github.com/certen/ledgercore/pkg/stake"
	"github.com/certen/ledgercore/pkg/storage/auditlog"
	"github.com/certen/ledgercore/pkg/telemetry"
)

// healthStatus tracks process-level health for the /health endpoint,
// the same shape the validator service has always exposed (status plus a
// per-component breakdown), narrowed to the components this binary
// actually owns: the backing store and the block-execution engine.
type healthStatus struct {
	mu        sync.RWMutex
	status    string
	storage   string
	height    uint64
	startTime time.Time
}

func newHealthStatus() *healthStatus {
	return &healthStatus{status: "starting", storage: "unknown", startTime: time.Now()}
}

func (h *healthStatus) setStorage(status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.storage = status
	if status == "connected" {
		h.status = "ok"
	} else {
		h.status = "error"
	}
}

func (h *healthStatus) setHeight(height uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.height = height
}

func (h *healthStatus) snapshot() (status, storage string, height uint64, uptime time.Duration) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status, h.storage, h.height, time.Since(h.startTime)
}

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		chainID    = flag.String("chain-id", "", "chain id (overrides LEDGER_CHAIN_ID)")
		configFile = flag.String("config", "", "optional YAML node config file, applied over the environment defaults")
		showHelp   = flag.Bool("help", false, "show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration:", err)
	}
	if *configFile != "" {
		if err := config.LoadFile(cfg, *configFile); err != nil {
			log.Fatal("failed to load config file:", err)
		}
	}
	if *chainID != "" {
		cfg.ChainID = *chainID
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration:", err)
	}

	health := newHealthStatus()
	appLog := telemetry.NewLogger("ledgercored")
	appLog.Printf("starting ledgercore node chain_id=%s network=%s", cfg.ChainID, cfg.NetworkName)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data directory %s: %v", cfg.DataDir, err)
	}

	db, err := dbm.NewGoLevelDB("ledgercore", cfg.DataDir)
	if err != nil {
		health.setStorage("disconnected")
		log.Fatal("failed to open backing store:", err)
	}
	health.setStorage("connected")
	defer db.Close()

	consensusKey, err := loadOrGenerateConsensusKey(cfg)
	if err != nil {
		log.Fatal("failed to load consensus key:", err)
	}

	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)

	ledgerCfg := ledger.Config{
		ChainID:           cfg.ChainID,
		SubstorePrefixes:  cfg.SubstorePrefixes,
		EpochDuration:     uint64(cfg.EpochDuration),
		UnbondingEpochs:   uint64(cfg.UnbondingEpochs),
		MinValidatorStake: cfg.MinValidatorStake,
		ActiveSetSize:     cfg.ActiveSetSize,
		DexMaxHops:        cfg.DexMaxHops,
		DexBreakerFills:   cfg.DexCircuitBreakerFills,
		BaseRewardRateBps: cfg.BaseRewardRateBps,
	}
	app := ledger.NewApp(ledgerCfg, kvdb.NewKVAdapter(db), metrics)

	if meta, err := ledger.LoadLatestBlockMeta(app.Store()); err != nil {
		appLog.Printf("no committed blocks found, seeding genesis")
		genesis := devnetGenesis(consensusKey)
		if err := ledger.ApplyGenesis(app, genesis); err != nil {
			log.Fatal("failed to apply genesis:", err)
		}
	} else {
		appLog.Printf("store contains commits through height %d; replay is driven by the consensus engine", meta.Height)
	}
	health.setHeight(app.Height())

	// The audit mirror is a non-authoritative Postgres side channel for
	// commit metadata; the versioned store stays the system of record.
	var auditSink auditlog.Sink = auditlog.NoopSink{}
	if cfg.AuditEnabled {
		sink, err := auditlog.NewPostgresSink(cfg.AuditDatabaseURL)
		if err != nil {
			log.Fatal("failed to open audit mirror database:", err)
		}
		auditSink = sink
		defer sink.Close()
		appLog.Printf("audit mirror enabled")
	}

	// abciApp is the CometBFT abci/types.Application hook boundary a
	// consensus engine drives (see pkg/ledger/abci.go). Running an actual
	// CometBFT node (socket/gRPC server, p2p, consensus reactor) is out
	// of scope; this process serves the application side and exposes its
	// Info view over /status.
	abciApp := ledger.NewABCIApplicationWithAudit(app, auditSink)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status, storage, height, uptime := health.snapshot()
		w.Header().Set("Content-Type", "application/json")
		if status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"status":%q,"storage":%q,"height":%d,"uptime_seconds":%d}`,
			status, storage, height, int64(uptime.Seconds()))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		info, err := abciApp.Info(r.Context(), &abcitypes.RequestInfo{})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":%q,"version":%q,"last_block_height":%d,"last_block_app_hash":"%x"}`,
			info.Data, info.Version, info.LastBlockHeight, info.LastBlockAppHash)
	})

	httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		appLog.Printf("metrics/health listening on %s", cfg.MetricsAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start HTTP server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Printf("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Printf("http server shutdown error: %v", err)
	}
	appLog.Printf("stopped at height %d", app.Height())
}

// loadOrGenerateConsensusKey loads this node's Ed25519 consensus key from
// the data directory, generating and persisting a fresh one on first run.
func loadOrGenerateConsensusKey(cfg *config.Config) (ed25519.PrivateKey, error) {
	keyPath := filepath.Join(cfg.DataDir, "consensus_key.hex")

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate consensus key: %w", err)
		}
		if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(priv)), 0o600); err != nil {
			return nil, fmt.Errorf("save consensus key to %s: %w", keyPath, err)
		}
		return priv, nil
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read consensus key from %s: %w", keyPath, err)
	}
	keyBytes, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decode consensus key from %s: %w", keyPath, err)
	}
	if len(keyBytes) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid consensus key size: expected %d, got %d", ed25519.PrivateKeySize, len(keyBytes))
	}
	return ed25519.PrivateKey(keyBytes), nil
}

// devnetGenesis builds the minimal genesis content a fresh devnet node
// starts from: the known asset registry and a single self-delegated
// genesis validator, promoted Active immediately.
func devnetGenesis(consensusKey ed25519.PrivateKey) ledger.GenesisState {
	var identity stake.IdentityKey
	copy(identity[:], consensusKey.Public().(ed25519.PublicKey))

	return ledger.GenesisState{
		Assets: []string{"upenumbra", "gm", "gn", "pusd"},
		Validators: []ledger.GenesisValidator{
			{
				Identity:          identity,
				ConsensusKey:      consensusKey.Public().(ed25519.PublicKey),
				Metadata:          stake.Metadata{Name: "genesis-validator"},
				DelegationDenom:   "delegation_genesis",
				InitialDelegation: amount.FromUint64(10_000_000),
				Active:            true,
			},
		},
	}
}

func printHelp() {
	fmt.Println("ledgercored: wire the ledger core's storage, DEX, staking, custody, and IBC")
	fmt.Println("components behind a block-execution hook for an external consensus engine.")
	fmt.Println()
	flag.PrintDefaults()
}
