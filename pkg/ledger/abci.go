// Copyright 2025 Certen Protocol
//
// ABCIApplication adapts an *App to github.com/cometbft/cometbft's
// abci/types.Application, the hook boundary a CometBFT consensus engine
// drives a state machine through. Each tx decodes as an opaque envelope;
// one that fails to parse is skipped rather than rejecting the whole
// block.
//
// The storage layer behind App commits synchronously and atomically
// (pkg/storage/multistore.go Overlay.Commit), so there is nothing left
// for a separate commit phase to flush; this adapter runs FinalizeBlock
// and Commit against the App together inside ABCI's FinalizeBlock call.
// ABCI's Commit then only reports RetainHeight.
package ledger

import (
	"context"
	"encoding/json"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/ledgercore/pkg/storage/auditlog"
	"github.com/certen/ledgercore/pkg/telemetry"
)

// ABCIApplication wraps an *App for a CometBFT consensus engine.
type ABCIApplication struct {
	app   *App
	audit auditlog.Sink
	log   *telemetry.Logger
}

// NewABCIApplication returns an ABCI adapter over app with audit
// mirroring disabled.
func NewABCIApplication(app *App) *ABCIApplication {
	return NewABCIApplicationWithAudit(app, auditlog.NoopSink{})
}

// NewABCIApplicationWithAudit returns an ABCI adapter over app that
// mirrors every committed block's metadata into audit (the
// non-authoritative operational-visibility side channel). A nil audit
// disables mirroring.
func NewABCIApplicationWithAudit(app *App, audit auditlog.Sink) *ABCIApplication {
	if audit == nil {
		audit = auditlog.NoopSink{}
	}
	return &ABCIApplication{app: app, audit: audit, log: telemetry.NewLogger("abci")}
}

var _ abcitypes.Application = (*ABCIApplication)(nil)

func decodeTx(raw []byte) Transaction {
	var tx Transaction
	// A transaction that fails to decode is handed to deliverTx as an
	// empty envelope: ChainID "" never matches a.ChainID(), so it is
	// rejected per-transaction (ErrWrongChainID) without halting the
	// block.
	_ = json.Unmarshal(raw, &tx)
	return tx
}

// CheckTx performs a stateless decodability and chain-id check. Actual
// action validation happens in FinalizeBlock, where the persisted state
// each action checks against is known to be consistent.
func (a *ABCIApplication) CheckTx(ctx context.Context, req *abcitypes.RequestCheckTx) (*abcitypes.ResponseCheckTx, error) {
	var tx Transaction
	if err := json.Unmarshal(req.Tx, &tx); err != nil {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: "malformed transaction: " + err.Error()}, nil
	}
	if tx.ChainID != a.app.ChainID() {
		return &abcitypes.ResponseCheckTx{Code: 1, Log: ErrWrongChainID.Error()}, nil
	}
	return &abcitypes.ResponseCheckTx{Code: 0}, nil
}

// Info reports the last committed height and app-hash so a restarting
// consensus engine can resume from the correct point.
func (a *ABCIApplication) Info(ctx context.Context, req *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	hash := a.app.LastAppHash()
	return &abcitypes.ResponseInfo{
		Data:             "ledgercore",
		Version:          "1.0.0",
		AppVersion:       1,
		LastBlockHeight:  int64(a.app.Height()),
		LastBlockAppHash: hash[:],
	}, nil
}

// InitChain is a no-op: genesis is applied directly via ApplyGenesis
// before the consensus engine starts (see cmd/ledgercored), not through
// this ABCI call.
func (a *ABCIApplication) InitChain(ctx context.Context, req *abcitypes.RequestInitChain) (*abcitypes.ResponseInitChain, error) {
	return &abcitypes.ResponseInitChain{}, nil
}

// PrepareProposal passes transactions through unchanged: the action
// dispatcher in actions.go, not the proposer, decides what is valid.
func (a *ABCIApplication) PrepareProposal(ctx context.Context, req *abcitypes.RequestPrepareProposal) (*abcitypes.ResponsePrepareProposal, error) {
	return &abcitypes.ResponsePrepareProposal{Txs: req.Txs}, nil
}

// ProcessProposal rejects a proposal only if it contains a tx that does
// not even decode; per-action validity is still resolved in FinalizeBlock.
func (a *ABCIApplication) ProcessProposal(ctx context.Context, req *abcitypes.RequestProcessProposal) (*abcitypes.ResponseProcessProposal, error) {
	for _, raw := range req.Txs {
		var tx Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}, nil
		}
	}
	return &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_ACCEPT}, nil
}

// FinalizeBlock decodes req.Txs into Transactions, runs them through
// App.FinalizeBlock, then commits the resulting state immediately and
// returns the new app-hash.
func (a *ABCIApplication) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	txs := make([]Transaction, 0, len(req.Txs))
	for _, raw := range req.Txs {
		txs = append(txs, decodeTx(raw))
	}

	if _, err := a.app.FinalizeBlock(ctx, uint64(req.Height), txs); err != nil {
		return nil, err
	}
	hash, err := a.app.Commit(ctx)
	if err != nil {
		return nil, err
	}

	if err := SaveBlockMeta(a.app.Store(), BlockMeta{
		Height:  uint64(req.Height),
		AppHash: hash,
		Time:    req.Time,
	}); err != nil {
		return nil, err
	}

	if err := a.audit.RecordCommit(ctx, auditlog.CommitRecord{
		Height:     req.Height,
		AppHash:    common.Hash(hash).Hex(),
		BlockTime:  req.Time,
		TxCount:    len(txs),
		EventCount: len(a.app.Events()),
	}); err != nil && a.log != nil {
		a.log.Printf("audit mirror: failed to record commit for height %d: %v", req.Height, err)
	}

	return &abcitypes.ResponseFinalizeBlock{
		AppHash: hash[:],
	}, nil
}

// Commit reports a RetainHeight of 0: App.Commit already persisted the
// block's state during FinalizeBlock, so there is nothing left to flush
// and no pruning policy to enforce here.
func (a *ABCIApplication) Commit(ctx context.Context, req *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	return &abcitypes.ResponseCommit{}, nil
}

// ExtendVote and VerifyVoteExtension are unused: ledgercore does not
// build vote extensions.
func (a *ABCIApplication) ExtendVote(ctx context.Context, req *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (a *ABCIApplication) VerifyVoteExtension(ctx context.Context, req *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

// Query answers "meta" for the latest committed BlockMeta and "validator"
// for a validator lookup by identity key; anything else is unknown.
func (a *ABCIApplication) Query(ctx context.Context, req *abcitypes.RequestQuery) (*abcitypes.ResponseQuery, error) {
	switch req.Path {
	case "meta":
		meta, err := LoadLatestBlockMeta(a.app.Store())
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseQuery{Code: 0, Value: data}, nil
	case "validator":
		var identity [32]byte
		copy(identity[:], req.Data)
		v, ok := a.app.Validators().Get(identity)
		if !ok {
			return &abcitypes.ResponseQuery{Code: 1, Log: "validator not found"}, nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return &abcitypes.ResponseQuery{Code: 1, Log: err.Error()}, nil
		}
		return &abcitypes.ResponseQuery{Code: 0, Value: data}, nil
	default:
		return &abcitypes.ResponseQuery{Code: 1, Log: "unknown query path"}, nil
	}
}

// State sync is out of scope: no snapshots are ever offered, so these
// all report the empty case.
func (a *ABCIApplication) ListSnapshots(ctx context.Context, req *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (a *ABCIApplication) OfferSnapshot(ctx context.Context, req *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}

func (a *ABCIApplication) LoadSnapshotChunk(ctx context.Context, req *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (a *ABCIApplication) ApplySnapshotChunk(ctx context.Context, req *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}
