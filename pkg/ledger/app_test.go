package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/dex"
	"github.com/certen/ledgercore/pkg/events"
	"github.com/certen/ledgercore/pkg/stake"
	"github.com/certen/ledgercore/pkg/txhash"
)

func testConfig() Config {
	return Config{
		ChainID:           "ledgercore-test",
		SubstorePrefixes:  []string{"dex", "staking", "shielded_pool"},
		EpochDuration:     2,
		UnbondingEpochs:   1,
		MinValidatorStake: 100,
		ActiveSetSize:     2,
		DexMaxHops:        4,
		DexBreakerFills:   64,
		BaseRewardRateBps: 300,
	}
}

func identityFromByte(b byte) stake.IdentityKey {
	var id stake.IdentityKey
	id[0] = b
	return id
}

func TestGenesisSeedsActiveValidatorAndPositions(t *testing.T) {
	app := NewApp(testConfig(), nil, nil)
	genesis := GenesisState{
		Assets: []string{"gm", "gn"},
		Validators: []GenesisValidator{
			{
				Identity:          identityFromByte(1),
				DelegationDenom:   "delegation_1",
				InitialDelegation: amount.FromUint64(1_000),
				Active:            true,
			},
		},
	}
	if err := ApplyGenesis(app, genesis); err != nil {
		t.Fatalf("ApplyGenesis: %v", err)
	}

	v, ok := app.Validators().Get(identityFromByte(1))
	if !ok {
		t.Fatalf("genesis validator not found")
	}
	if v.State != stake.StateActive {
		t.Fatalf("genesis validator state = %v, want Active", v.State)
	}
}

func TestFinalizeBlockRejectsWrongChainAndExpiredTx(t *testing.T) {
	app := NewApp(testConfig(), nil, nil)

	results, err := app.FinalizeBlock(context.Background(), 1, []Transaction{
		{ChainID: "some-other-chain", ExpiryHeight: 10},
		{ChainID: "ledgercore-test", ExpiryHeight: 0},
	})
	if err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	if results[0].Err != ErrWrongChainID {
		t.Fatalf("result[0].Err = %v, want ErrWrongChainID", results[0].Err)
	}
	if results[1].Err != ErrTransactionExpired {
		t.Fatalf("result[1].Err = %v, want ErrTransactionExpired", results[1].Err)
	}
}

func TestPositionLifecycleThroughBlockExecution(t *testing.T) {
	app := NewApp(testConfig(), nil, nil)
	asset1 := assetreg.DeriveAssetID("gm")
	asset2 := assetreg.DeriveAssetID("gn")
	app.Assets().Register("gm")
	app.Assets().Register("gn")

	openTx := Transaction{
		ChainID:      "ledgercore-test",
		ExpiryHeight: 100,
		Actions: []Action{{
			Tag: txhash.ActionPositionOpen,
			PositionOpen: &PositionOpenAction{
				ID:        1,
				Asset1:    asset1,
				Asset2:    asset2,
				Phi:       dex.TradingFunction{P: big.NewInt(6), Q: big.NewInt(5), FeeBps: 10},
				Reserves2: amount.FromUint64(120_000),
			},
		}},
	}
	results, err := app.FinalizeBlock(context.Background(), 1, []Transaction{openTx})
	if err != nil {
		t.Fatalf("FinalizeBlock (open): %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("open position failed: %v", results[0].Err)
	}
	if _, err := app.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	pos, ok := app.Book().Get(1)
	if !ok {
		t.Fatalf("position 1 not found after commit")
	}
	if pos.Reserves2.Cmp(amount.FromUint64(120_000)) != 0 {
		t.Fatalf("reserves2 = %v, want 120000", pos.Reserves2)
	}

	closeTx := Transaction{
		ChainID:      "ledgercore-test",
		ExpiryHeight: 100,
		Actions: []Action{{
			Tag:           txhash.ActionPositionClose,
			PositionClose: &PositionCloseAction{ID: 1},
		}},
	}
	results, err = app.FinalizeBlock(context.Background(), 2, []Transaction{closeTx})
	if err != nil {
		t.Fatalf("FinalizeBlock (close): %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("close position failed: %v", results[0].Err)
	}
	if pos.State.Closed != true {
		t.Fatalf("position state not Closed after ClosePosition action")
	}

	withdrawTx := Transaction{
		ChainID:      "ledgercore-test",
		ExpiryHeight: 100,
		Actions: []Action{{
			Tag: txhash.ActionPositionWithdraw,
			PositionWithdraw: &PositionWithdrawAction{
				ID:       1,
				Receiver: "alice",
			},
		}},
	}
	results, err = app.FinalizeBlock(context.Background(), 3, []Transaction{withdrawTx})
	if err != nil {
		t.Fatalf("FinalizeBlock (withdraw): %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("withdraw position failed: %v", results[0].Err)
	}
	if !pos.Reserves2.IsZero() {
		t.Fatalf("reserves2 after withdraw = %v, want zero", pos.Reserves2)
	}
	if pos.State.WithdrawalN != 0 {
		t.Fatalf("WithdrawalN = %d, want 0", pos.State.WithdrawalN)
	}
}

func TestFailedActionDiscardsWholeTransaction(t *testing.T) {
	app := NewApp(testConfig(), nil, nil)
	asset1 := assetreg.DeriveAssetID("gm")
	asset2 := assetreg.DeriveAssetID("gn")

	tx := Transaction{
		ChainID:      "ledgercore-test",
		ExpiryHeight: 100,
		Actions: []Action{
			{
				Tag: txhash.ActionPositionOpen,
				PositionOpen: &PositionOpenAction{
					ID:        1,
					Asset1:    asset1,
					Asset2:    asset2,
					Phi:       dex.TradingFunction{P: big.NewInt(1), Q: big.NewInt(1), FeeBps: 0},
					Reserves2: amount.FromUint64(1_000),
				},
			},
			{
				// Closing a position that does not exist fails; the
				// preceding PositionOpen in the same transaction must be
				// rolled back with it.
				Tag:           txhash.ActionPositionClose,
				PositionClose: &PositionCloseAction{ID: 999},
			},
		},
	}

	results, err := app.FinalizeBlock(context.Background(), 1, []Transaction{tx})
	if err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	if results[0].Err != ErrUnknownPosition {
		t.Fatalf("results[0].Err = %v, want ErrUnknownPosition", results[0].Err)
	}
	if _, ok := app.Book().Get(1); ok {
		t.Fatalf("position 1 should not exist: the opening action's effects must be discarded")
	}
}

func TestNullifierCannotBeSpentTwice(t *testing.T) {
	app := NewApp(testConfig(), nil, nil)
	asset := assetreg.DeriveAssetID("gm")
	var nf [32]byte
	nf[0] = 0x42

	spend := Action{
		Tag: txhash.ActionSpend,
		Spend: &SpendAction{
			Nullifier: nf,
			Asset:     asset,
			Amount:    amount.FromUint64(10),
		},
	}

	results, err := app.FinalizeBlock(context.Background(), 1, []Transaction{
		{ChainID: "ledgercore-test", ExpiryHeight: 10, Actions: []Action{spend}},
	})
	if err != nil || results[0].Err != nil {
		t.Fatalf("first spend should succeed: finalize err=%v, tx err=%v", err, results[0].Err)
	}
	if _, err := app.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	results, err = app.FinalizeBlock(context.Background(), 2, []Transaction{
		{ChainID: "ledgercore-test", ExpiryHeight: 10, Actions: []Action{spend}},
	})
	if err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	if results[0].Err != ErrNullifierSpent {
		t.Fatalf("second spend of the same nullifier: err = %v, want ErrNullifierSpent", results[0].Err)
	}
}

func TestEpochBoundaryPromotesTopNByDelegation(t *testing.T) {
	cfg := testConfig()
	cfg.ActiveSetSize = 1
	cfg.MinValidatorStake = 0
	app := NewApp(cfg, nil, nil)

	genesis := GenesisState{
		Validators: []GenesisValidator{
			{Identity: identityFromByte(1), DelegationDenom: "d1", InitialDelegation: amount.FromUint64(500)},
			{Identity: identityFromByte(2), DelegationDenom: "d2", InitialDelegation: amount.FromUint64(1_000)},
		},
	}
	if err := ApplyGenesis(app, genesis); err != nil {
		t.Fatalf("ApplyGenesis: %v", err)
	}

	// Both validators are Inactive at genesis (below the active set, since
	// neither was flagged Active); epoch duration is 2, so height 2 closes
	// the first epoch and promotes the higher-delegation validator.
	if _, err := app.FinalizeBlock(context.Background(), 1, nil); err != nil {
		t.Fatalf("FinalizeBlock(1): %v", err)
	}
	if _, err := app.Commit(context.Background()); err != nil {
		t.Fatalf("Commit(1): %v", err)
	}
	if _, err := app.FinalizeBlock(context.Background(), 2, nil); err != nil {
		t.Fatalf("FinalizeBlock(2): %v", err)
	}
	if _, err := app.Commit(context.Background()); err != nil {
		t.Fatalf("Commit(2): %v", err)
	}

	v1, _ := app.Validators().Get(identityFromByte(1))
	v2, _ := app.Validators().Get(identityFromByte(2))
	if v2.State != stake.StateActive {
		t.Fatalf("validator 2 (higher delegation) state = %v, want Active", v2.State)
	}
	if v1.State == stake.StateActive {
		t.Fatalf("validator 1 (lower delegation, active set size 1) should not be Active")
	}
}

func TestFundingStreamRewardNotesMintInNextEpoch(t *testing.T) {
	cfg := testConfig()
	cfg.EpochDuration = 2
	app := NewApp(cfg, nil, nil)

	genesis := GenesisState{
		Validators: []GenesisValidator{{
			Identity:          identityFromByte(1),
			DelegationDenom:   "delegation_1",
			InitialDelegation: amount.FromUint64(1_000_000),
			Active:            true,
			FundingStreams:    []stake.FundingStream{{Recipient: "treasury", RateBps: 1_000}},
		}},
	}
	if err := ApplyGenesis(app, genesis); err != nil {
		t.Fatalf("ApplyGenesis: %v", err)
	}

	// Heights 1-2 close the first epoch, queueing the funding-stream
	// share; height 3's end-of-block pass mints it as a note.
	for h := uint64(1); h <= 2; h++ {
		if _, err := app.FinalizeBlock(context.Background(), h, nil); err != nil {
			t.Fatalf("FinalizeBlock(%d): %v", h, err)
		}
		if _, err := app.Commit(context.Background()); err != nil {
			t.Fatalf("Commit(%d): %v", h, err)
		}
	}
	if _, err := app.FinalizeBlock(context.Background(), 3, nil); err != nil {
		t.Fatalf("FinalizeBlock(3): %v", err)
	}

	var minted int
	for _, ev := range app.Events() {
		if ev.Kind == events.KindRewardNote {
			minted++
		}
	}
	if minted != 1 {
		t.Fatalf("expected exactly one reward note minted at height 3, got %d", minted)
	}
}

func TestLastAppHashChangesAcrossCommits(t *testing.T) {
	app := NewApp(testConfig(), nil, nil)
	if _, err := app.FinalizeBlock(context.Background(), 1, nil); err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	first, err := app.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	asset1 := assetreg.DeriveAssetID("gm")
	asset2 := assetreg.DeriveAssetID("gn")
	tx := Transaction{
		ChainID:      "ledgercore-test",
		ExpiryHeight: 100,
		Actions: []Action{{
			Tag: txhash.ActionPositionOpen,
			PositionOpen: &PositionOpenAction{
				ID:        1,
				Asset1:    asset1,
				Asset2:    asset2,
				Phi:       dex.TradingFunction{P: big.NewInt(1), Q: big.NewInt(1), FeeBps: 0},
				Reserves2: amount.FromUint64(10),
			},
		}},
	}
	if _, err := app.FinalizeBlock(context.Background(), 2, []Transaction{tx}); err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	second, err := app.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if first == second {
		t.Fatalf("app-hash did not change after a state-mutating block")
	}
	if app.Height() != 2 {
		t.Fatalf("Height() = %d, want 2", app.Height())
	}
}
