// Copyright 2025 Certen Protocol
//
// Package ledger wires the versioned storage (pkg/storage), DEX matching
// engine (pkg/dex), staking lifecycle (pkg/stake), IBC light-client hook
// (pkg/ibc), and cross-cutting event bus (pkg/events) into the block
// lifecycle: consensus delivers an ordered transaction batch, actions
// execute sequentially against a staged overlay, and the block ends by
// processing reward notes, finalizing the epoch if due, and committing
// the overlay to a new app-hash.
package ledger

import (
	"sync"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/custody"
	"github.com/certen/ledgercore/pkg/dex"
	"github.com/certen/ledgercore/pkg/events"
	"github.com/certen/ledgercore/pkg/ibc"
	"github.com/certen/ledgercore/pkg/stake"
	"github.com/certen/ledgercore/pkg/storage"
	"github.com/certen/ledgercore/pkg/telemetry"
)

// Config is the subset of pkg/config.Config the ledger core needs,
// narrowed to avoid coupling pkg/ledger to the whole configuration
// surface (cmd/ledgercored does that translation).
type Config struct {
	ChainID           string
	SubstorePrefixes  []string
	EpochDuration     uint64
	UnbondingEpochs   uint64
	MinValidatorStake uint64
	ActiveSetSize     int
	DexMaxHops        int
	DexBreakerFills   int
	// BaseRewardRateBps is the per-epoch validator reward rate, applied at
	// every epoch boundary: it is passed unchanged as every Active
	// validator's rewardRateBpsSq to stake.Manager.UpdateRates, and read as
	// basis points of the pool when queueing funding-stream rewards.
	BaseRewardRateBps int64
}

// pendingSwap accumulates one trading pair's aggregated swap inputs
// during block execution, before RunBatchSwap is invoked at EndBlock.
type pendingSwap struct {
	delta1, delta2 amount.Amount
}

// App is the single-writer block-execution engine: exactly one goroutine
// may call FinalizeBlock/Commit at a time, enforced with a single mutex.
type App struct {
	mu sync.Mutex

	chainID    string
	store      *storage.MultiStore
	overlay    *storage.Overlay
	bus        *events.Bus
	assets     *assetreg.Registry
	book       *dex.Book
	breaker    *dex.CircuitBreaker
	validators *stake.Manager
	ibcReg     *ibc.Registry
	ceremonies *custody.Registry
	clock      *epochClock

	routeParams dex.RouteParams
	minStake    uint64
	activeSize  int

	pendingSwaps   map[dex.TradingPair]*pendingSwap
	pendingOrder   []dex.TradingPair
	pendingRewards []pendingRewardNote
	swapOutputs    map[uint64]map[dex.TradingPair]*dex.BatchSwapOutputData
	communityPool  map[assetreg.AssetID]amount.Amount
	proposals      *proposalRegistry
	pools          *delegationPools

	baseRewardRateBps int64

	metrics *telemetry.Metrics
	log     *telemetry.Logger

	height      uint64
	lastAppHash [32]byte
}

// NewApp constructs a fresh ledger App over backend (nil selects an
// in-memory store, per storage.Open). Genesis content must be applied via
// ApplyGenesis before the first block.
func NewApp(cfg Config, backend storage.KVBackend, metrics *telemetry.Metrics) *App {
	routeParams := dex.DefaultRouteParams()
	if cfg.DexMaxHops > 0 {
		routeParams.MaxHops = cfg.DexMaxHops
	}
	if cfg.DexBreakerFills > 0 {
		routeParams.ExecutionCircuitBreaker = cfg.DexBreakerFills
	}

	app := &App{
		chainID:           cfg.ChainID,
		store:             storage.Open(backend, cfg.SubstorePrefixes),
		overlay:           storage.NewOverlay(),
		bus:               events.NewBus(),
		assets:            assetreg.New(),
		book:              dex.NewBook(),
		breaker:           dex.NewCircuitBreaker(),
		ibcReg:            ibc.NewRegistry(),
		ceremonies:        custody.NewRegistry(),
		clock:             newEpochClock(cfg.EpochDuration, cfg.UnbondingEpochs),
		routeParams:       routeParams,
		minStake:          cfg.MinValidatorStake,
		activeSize:        cfg.ActiveSetSize,
		pendingSwaps:      make(map[dex.TradingPair]*pendingSwap),
		swapOutputs:       make(map[uint64]map[dex.TradingPair]*dex.BatchSwapOutputData),
		communityPool:     make(map[assetreg.AssetID]amount.Amount),
		proposals:         newProposalRegistry(),
		pools:             newDelegationPools(),
		baseRewardRateBps: cfg.BaseRewardRateBps,
		metrics:           metrics,
		log:               telemetry.NewLogger("ledger"),
	}
	app.validators = stake.NewManager(app.clock)
	return app
}

// ChainID returns the chain identifier this App enforces against
// transaction parameters.
func (a *App) ChainID() string { return a.chainID }

// Height returns the last-committed block height.
func (a *App) Height() uint64 { return a.height }

// LastAppHash returns the app-hash produced by the most recent Commit (the
// zero hash before the first commit).
func (a *App) LastAppHash() [32]byte { return a.lastAppHash }

// Store exposes the underlying versioned storage for read-only query
// paths; RPC service wrappers live outside this tree but need a handle
// to query against.
func (a *App) Store() *storage.MultiStore { return a.store }

// Events returns the current block's accumulated event log.
func (a *App) Events() []events.Event { return a.bus.Events() }

// Validators exposes the staking manager for genesis wiring and RPC-facing
// read paths.
func (a *App) Validators() *stake.Manager { return a.validators }

// Book exposes the DEX order book for genesis wiring and read paths.
func (a *App) Book() *dex.Book { return a.book }

// IBC exposes the connection/client registry for genesis wiring.
func (a *App) IBC() *ibc.Registry { return a.ibcReg }

// Assets exposes the asset registry for genesis wiring.
func (a *App) Assets() *assetreg.Registry { return a.assets }

// Ceremonies exposes the FROST ceremony registry.
// The custody subsystem runs parallel to block execution and is not part
// of the transactional dispatch in block.go; cmd/ledgercored wires a
// coordinator against this registry directly.
func (a *App) Ceremonies() *custody.Registry { return a.ceremonies }
