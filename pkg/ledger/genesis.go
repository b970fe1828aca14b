// Copyright 2025 Certen Protocol
//
// Genesis state: the content a chain starts from before its first block.
// An initial validator set with delegation allocations, seed DEX
// liquidity, the asset registry, a community pool balance, and any IBC
// light clients the chain starts already trusting.
package ledger

import (
	"crypto/ed25519"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/dex"
	"github.com/certen/ledgercore/pkg/ibc"
	"github.com/certen/ledgercore/pkg/jmt"
	"github.com/certen/ledgercore/pkg/stake"
)

// GenesisValidator seeds one validator definition plus its initial
// delegation pool. Validators with Active set are promoted into the
// active set immediately instead of waiting for the first epoch boundary,
// matching how a chain's genesis validator set is normally already
// bonded.
type GenesisValidator struct {
	Identity          stake.IdentityKey
	ConsensusKey      ed25519.PublicKey
	Metadata          stake.Metadata
	FundingStreams    []stake.FundingStream
	DelegationDenom   string
	InitialDelegation amount.Amount
	Active            bool
}

// GenesisPosition seeds one DEX concentrated-liquidity position, denoms
// resolved through the asset registry seeded by GenesisState.Assets.
type GenesisPosition struct {
	ID          uint64
	Asset1Denom string
	Asset2Denom string
	Phi         dex.TradingFunction
	Reserves1   amount.Amount
	Reserves2   amount.Amount
	CloseOnFill bool
}

// GenesisBalance seeds a community-pool balance for one asset.
type GenesisBalance struct {
	Denom  string
	Amount amount.Amount
}

// GenesisIBCClient seeds a light client this chain trusts from its first
// block, e.g. for a counterparty chain whose genesis predates this one.
type GenesisIBCClient struct {
	ClientID      string
	LatestHeight  uint64
	ConsensusRoot jmt.Hash
}

// GenesisState is the complete set of chain parameters and initial domain
// state applied before the first FinalizeBlock call.
type GenesisState struct {
	Assets        []string
	Validators    []GenesisValidator
	Positions     []GenesisPosition
	CommunityPool []GenesisBalance
	IBCClients    []GenesisIBCClient
}

// ApplyGenesis seeds app with genesis's content. It must be called exactly
// once, before the first FinalizeBlock, against a freshly constructed App
// (height 0).
func ApplyGenesis(app *App, genesis GenesisState) error {
	for _, denom := range genesis.Assets {
		app.assets.Register(denom)
	}

	for _, gv := range genesis.Validators {
		delegationAsset := app.assets.Register(gv.DelegationDenom)
		v := stake.NewValidator(gv.Identity, gv.ConsensusKey, delegationAsset, gv.Metadata)
		v.FundingStreams = gv.FundingStreams
		app.validators.AddValidator(v)

		if err := app.validators.SetValidatorState(app.bus, epochTxIdx, 0, gv.Identity, stake.StateInactive); err != nil {
			return err
		}
		if !gv.InitialDelegation.IsZero() {
			if err := app.pools.add(gv.Identity, gv.InitialDelegation); err != nil {
				return err
			}
		}
		if gv.Active {
			power := app.pools.get(gv.Identity).Lo
			if err := app.validators.PromoteToActive(app.bus, epochTxIdx, 0, gv.Identity, power); err != nil {
				return err
			}
		}
	}

	for _, gp := range genesis.Positions {
		asset1 := assetreg.DeriveAssetID(gp.Asset1Denom)
		asset2 := assetreg.DeriveAssetID(gp.Asset2Denom)
		pos, err := dex.NewPosition(gp.ID, asset1, asset2, gp.Phi, gp.Reserves1, gp.Reserves2, gp.CloseOnFill)
		if err != nil {
			return err
		}
		app.book.Add(pos)
		if !gp.Reserves1.IsZero() {
			if err := app.breaker.Credit(app.bus, epochTxIdx, 0, asset1, gp.Reserves1); err != nil {
				return err
			}
		}
		if !gp.Reserves2.IsZero() {
			if err := app.breaker.Credit(app.bus, epochTxIdx, 0, asset2, gp.Reserves2); err != nil {
				return err
			}
		}
	}

	for _, bal := range genesis.CommunityPool {
		id := app.assets.Register(bal.Denom)
		app.communityPool[id] = bal.Amount
	}

	for _, c := range genesis.IBCClients {
		app.ibcReg.PutClient(&ibc.ClientState{
			ClientID:       c.ClientID,
			LatestHeight:   c.LatestHeight,
			ConsensusRoots: map[uint64]jmt.Hash{c.LatestHeight: c.ConsensusRoot},
		})
	}

	return nil
}
