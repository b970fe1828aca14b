// Copyright 2025 Certen Protocol
//
// Tagged-variant action dispatch: the action enum is a tagged variant,
// and each handler dispatches on the tag at its top rather than through
// an interface vtable. Each action type carries exactly the fields its
// handler needs;
// Action.Kind (reusing pkg/txhash's ActionKind so the same tag also keys
// into effect-hash computation) selects which handler runs.
package ledger

import (
	"context"
	"crypto/ed25519"

	"github.com/certen/ledgercore/internal/assetreg"
	"github.com/certen/ledgercore/pkg/amount"
	"github.com/certen/ledgercore/pkg/dex"
	"github.com/certen/ledgercore/pkg/events"
	"github.com/certen/ledgercore/pkg/ibc"
	"github.com/certen/ledgercore/pkg/stake"
	"github.com/certen/ledgercore/pkg/txhash"
)

// SpendAction consumes a shielded note, identified by its nullifier.
// Asset/Amount stand in for the value commitment's opening, which a
// deployed system only learns inside a zk-proof; here they are carried
// in the clear so the value circuit breaker has something concrete to
// balance against.
type SpendAction struct {
	Nullifier [32]byte
	Asset     assetreg.AssetID
	Amount    amount.Amount
}

// OutputAction creates a new shielded note commitment.
type OutputAction struct {
	Commitment [32]byte
	Asset      assetreg.AssetID
	Amount     amount.Amount
}

// SwapAction contributes one user's input to the current block's batch
// swap for a trading pair.
// InputIsAsset1 selects which side of the pair's aggregated delta this
// input adds to.
type SwapAction struct {
	Pair          dex.TradingPair
	InputIsAsset1 bool
	InputAmount   amount.Amount
}

// SwapClaimAction redeems one user's pro-rata share of a settled batch
// swap at a prior height.
type SwapClaimAction struct {
	Height   uint64
	Pair     dex.TradingPair
	Claimant string
	Delta1I  amount.Amount
	Delta2I  amount.Amount
}

// DelegateAction mints delegation tokens against a validator's exchange
// rate at the given epoch.
type DelegateAction struct {
	Identity       stake.IdentityKey
	Epoch          uint64
	UnbondedAmount amount.Amount
}

// UndelegateAction burns delegation tokens, releasing the unbonded amount
// immediately if the validator is Bonded, or quarantining it otherwise.
type UndelegateAction struct {
	Identity         stake.IdentityKey
	Epoch            uint64
	DelegationAmount amount.Amount
	Claimant         string
}

// UndelegateClaimAction releases a matured quarantined undelegation.
type UndelegateClaimAction struct {
	Identity stake.IdentityKey
	Claimant string
}

// ValidatorDefinitionAction registers a new validator, or updates an
// existing one's metadata/funding streams.
type ValidatorDefinitionAction struct {
	Identity        stake.IdentityKey
	ConsensusKey    ed25519.PublicKey
	DelegationAsset [32]byte
	Meta            stake.Metadata
	FundingStreams  []stake.FundingStream
}

// ValidatorVoteAction and DelegatorVoteAction record a cast governance
// vote. Full voting-power tallying belongs to the zk-circuit layer,
// which lives outside this tree; these actions are validated and
// effect-hashed but otherwise only logged via the event bus.
type ValidatorVoteAction struct {
	ProposalID uint64
	Identity   stake.IdentityKey
	Vote       string
}

type DelegatorVoteAction struct {
	ProposalID uint64
	Claimant   string
	Vote       string
}

// ProposalSubmitAction opens a new governance proposal with a bonded
// deposit.
type ProposalSubmitAction struct {
	ID        uint64
	Kind      string
	Payload   []byte
	Depositor string
	Deposit   amount.Amount
}

// ProposalWithdrawAction withdraws a still-open proposal before it closes.
type ProposalWithdrawAction struct {
	ID uint64
}

// ProposalDepositClaimAction releases a closed proposal's deposit back to
// its depositor.
type ProposalDepositClaimAction struct {
	ID uint64
}

// PositionOpenAction, PositionCloseAction and PositionWithdrawAction map
// directly onto pkg/dex.Book's position lifecycle.
type PositionOpenAction struct {
	ID          uint64
	Asset1      assetreg.AssetID
	Asset2      assetreg.AssetID
	Phi         dex.TradingFunction
	Reserves1   amount.Amount
	Reserves2   amount.Amount
	CloseOnFill bool
}

type PositionCloseAction struct {
	ID uint64
}

type PositionWithdrawAction struct {
	ID       uint64
	Receiver string
}

// Ics20WithdrawalAction moves a locally held asset into an IBC escrow
// pending relay. Full packet relay is out of scope; this tracks only the
// local escrow debit/credit the ledger itself is responsible for.
type Ics20WithdrawalAction struct {
	Asset    assetreg.AssetID
	Amount   amount.Amount
	Receiver string
}

// CommunityPoolSpendAction, CommunityPoolOutputAction and
// CommunityPoolDepositAction move value into and out of the community
// pool balance.
type CommunityPoolSpendAction struct {
	Asset  assetreg.AssetID
	Amount amount.Amount
}

type CommunityPoolOutputAction struct {
	Asset  assetreg.AssetID
	Amount amount.Amount
}

type CommunityPoolDepositAction struct {
	Asset  assetreg.AssetID
	Amount amount.Amount
}

// IbcRelayAction carries exactly one connection-handshake sub-message;
// exactly one field must be set.
type IbcRelayAction struct {
	OpenInit    *ibc.MsgConnectionOpenInit
	OpenTry     *ibc.MsgConnectionOpenTry
	OpenAck     *ibc.MsgConnectionOpenAck
	OpenConfirm *ibc.MsgConnectionOpenConfirm
}

// Action is one transaction action: Kind selects which of the typed
// fields below is populated. Exactly one field matching Kind is non-nil;
// applyAction switches on Kind rather than doing a type assertion
// cascade.
type Action struct {
	Tag txhash.ActionKind

	// Canonical holds the proto-canonical encoding of whichever field
	// below is populated, for Action's EffectingAction implementation
	// (pkg/txhash.TransactionEffectHash). Transaction callers that only
	// run actions against the in-memory engine (tests, simulation) may
	// leave it nil; anything that needs an authorized effect hash must
	// set it.
	Canonical []byte

	Spend                *SpendAction
	Output               *OutputAction
	Swap                 *SwapAction
	SwapClaim            *SwapClaimAction
	Delegate             *DelegateAction
	Undelegate           *UndelegateAction
	UndelegateClaim      *UndelegateClaimAction
	ValidatorDefinition  *ValidatorDefinitionAction
	ValidatorVote        *ValidatorVoteAction
	DelegatorVote        *DelegatorVoteAction
	ProposalSubmit       *ProposalSubmitAction
	ProposalWithdraw     *ProposalWithdrawAction
	ProposalDepositClaim *ProposalDepositClaimAction
	PositionOpen         *PositionOpenAction
	PositionClose        *PositionCloseAction
	PositionWithdraw     *PositionWithdrawAction
	Ics20Withdrawal      *Ics20WithdrawalAction
	CommunityPoolSpend   *CommunityPoolSpendAction
	CommunityPoolOutput  *CommunityPoolOutputAction
	CommunityPoolDeposit *CommunityPoolDepositAction
	IbcRelay             *IbcRelayAction
}

// Kind implements txhash.EffectingAction.
func (act Action) Kind() txhash.ActionKind { return act.Tag }

// CanonicalBytes implements txhash.EffectingAction.
func (act Action) CanonicalBytes() []byte { return act.Canonical }

// applyAction dispatches one action against the transaction's scratch
// overlay (txOv) and the app's live domain objects. A returned error
// aborts the whole enclosing transaction; the caller
// is responsible for discarding txOv and restoring the live domain
// objects from the pre-transaction snapshot when that happens.
func (a *App) applyAction(ctx context.Context, txOv *txOverlay, txIdx, actionIdx int, act Action) error {
	switch act.Tag {
	case txhash.ActionSpend:
		return a.applySpend(ctx, txOv, txIdx, actionIdx, act.Spend)
	case txhash.ActionOutput:
		return a.applyOutput(txOv, act.Output)
	case txhash.ActionSwap:
		return a.applySwap(txOv, txIdx, actionIdx, act.Swap)
	case txhash.ActionSwapClaim:
		return a.applySwapClaim(txOv, txIdx, actionIdx, act.SwapClaim)
	case txhash.ActionDelegate:
		return a.applyDelegate(txIdx, actionIdx, act.Delegate)
	case txhash.ActionUndelegate:
		return a.applyUndelegate(txIdx, actionIdx, act.Undelegate)
	case txhash.ActionUndelegateClaim:
		return a.applyUndelegateClaim(txIdx, actionIdx, act.UndelegateClaim)
	case txhash.ActionValidatorDefinition:
		return a.applyValidatorDefinition(txIdx, actionIdx, act.ValidatorDefinition)
	case txhash.ActionValidatorVote:
		return a.applyValidatorVote(txIdx, actionIdx, act.ValidatorVote)
	case txhash.ActionDelegatorVote:
		return a.applyDelegatorVote(txIdx, actionIdx, act.DelegatorVote)
	case txhash.ActionProposalSubmit:
		return a.applyProposalSubmit(act.ProposalSubmit)
	case txhash.ActionProposalWithdraw:
		return a.applyProposalWithdraw(act.ProposalWithdraw)
	case txhash.ActionProposalDepositClaim:
		return a.applyProposalDepositClaim(act.ProposalDepositClaim)
	case txhash.ActionPositionOpen:
		return a.applyPositionOpen(txIdx, actionIdx, act.PositionOpen)
	case txhash.ActionPositionClose:
		return a.applyPositionClose(txIdx, actionIdx, act.PositionClose)
	case txhash.ActionPositionWithdraw:
		return a.applyPositionWithdraw(txIdx, actionIdx, act.PositionWithdraw)
	case txhash.ActionIcs20Withdrawal:
		return a.applyIcs20Withdrawal(ctx, txOv, txIdx, actionIdx, act.Ics20Withdrawal)
	case txhash.ActionCommunityPoolSpend:
		return a.applyCommunityPoolSpend(act.CommunityPoolSpend)
	case txhash.ActionCommunityPoolOutput:
		return a.applyCommunityPoolOutput(act.CommunityPoolOutput)
	case txhash.ActionCommunityPoolDeposit:
		return a.applyCommunityPoolDeposit(act.CommunityPoolDeposit)
	case txhash.ActionIbcRelay:
		return a.applyIbcRelay(txIdx, actionIdx, act.IbcRelay)
	default:
		return ErrUnknownActionKind
	}
}

func (a *App) applySpend(ctx context.Context, txOv *txOverlay, txIdx, actionIdx int, act *SpendAction) error {
	key := nullifierKey(act.Nullifier)
	spent, err := txOv.nullifierSpent(ctx, a, key)
	if err != nil {
		return err
	}
	if spent {
		return ErrNullifierSpent
	}
	txOv.ov.Put(key, []byte{1})
	if err := a.breaker.Credit(a.bus, txIdx, actionIdx, act.Asset, act.Amount); err != nil {
		return err
	}
	a.bus.Emit(txIdx, actionIdx, events.KindNullifierSpend, events.Attrs("asset", assetHexLedger(act.Asset))...)
	return nil
}

func (a *App) applyOutput(txOv *txOverlay, act *OutputAction) error {
	txOv.ov.Put(commitmentKey(act.Commitment), act.Amount.Bytes())
	return nil
}

func (a *App) applySwap(txOv *txOverlay, txIdx, actionIdx int, act *SwapAction) error {
	ps := a.pendingSwaps[act.Pair]
	if ps == nil {
		ps = &pendingSwap{}
		a.pendingSwaps[act.Pair] = ps
		a.pendingOrder = append(a.pendingOrder, act.Pair)
	}
	var err error
	asset := act.Pair.Asset2
	if act.InputIsAsset1 {
		ps.delta1, err = ps.delta1.Add(act.InputAmount)
		asset = act.Pair.Asset1
	} else {
		ps.delta2, err = ps.delta2.Add(act.InputAmount)
	}
	if err != nil {
		return err
	}
	if err := a.breaker.Credit(a.bus, txIdx, actionIdx, asset, act.InputAmount); err != nil {
		return err
	}
	a.bus.Emit(txIdx, actionIdx, events.KindSwap,
		events.Attrs("asset1", assetHexLedger(act.Pair.Asset1), "asset2", assetHexLedger(act.Pair.Asset2), "amount", act.InputAmount.String())...)
	return nil
}

func (a *App) applySwapClaim(txOv *txOverlay, txIdx, actionIdx int, act *SwapClaimAction) error {
	byPair, ok := a.swapOutputs[act.Height]
	if !ok {
		return ErrUnknownSwapWindow
	}
	out, ok := byPair[act.Pair]
	if !ok {
		return ErrUnknownSwapWindow
	}
	lambda1, lambda2, err := out.ProRataOutputs(act.Delta1I, act.Delta2I)
	if err != nil {
		return err
	}
	if !lambda1.IsZero() {
		if err := a.breaker.Debit(a.bus, txIdx, actionIdx, act.Pair.Asset1, lambda1); err != nil {
			return err
		}
	}
	if !lambda2.IsZero() {
		if err := a.breaker.Debit(a.bus, txIdx, actionIdx, act.Pair.Asset2, lambda2); err != nil {
			return err
		}
	}
	a.bus.Emit(txIdx, actionIdx, events.KindSwapClaim,
		events.Attrs("claimant", act.Claimant, "lambda1", lambda1.String(), "lambda2", lambda2.String())...)
	return nil
}

func (a *App) applyDelegate(txIdx, actionIdx int, act *DelegateAction) error {
	delegationAmount, err := a.validators.Delegate(a.bus, txIdx, actionIdx, act.Identity, act.Epoch, act.UnbondedAmount)
	if err != nil {
		return err
	}
	return a.pools.add(act.Identity, delegationAmount)
}

func (a *App) applyUndelegate(txIdx, actionIdx int, act *UndelegateAction) error {
	_, err := a.validators.Undelegate(a.bus, txIdx, actionIdx, act.Identity, act.Epoch, act.DelegationAmount, act.Claimant)
	if err != nil {
		return err
	}
	return a.pools.sub(act.Identity, act.DelegationAmount)
}

func (a *App) applyUndelegateClaim(txIdx, actionIdx int, act *UndelegateClaimAction) error {
	_, err := a.validators.ClaimUndelegation(a.bus, txIdx, actionIdx, act.Claimant, act.Identity, a.clock.CurrentEpoch())
	return err
}

func (a *App) applyValidatorDefinition(txIdx, actionIdx int, act *ValidatorDefinitionAction) error {
	if v, ok := a.validators.Get(act.Identity); ok {
		v.Metadata = act.Meta
		v.FundingStreams = act.FundingStreams
		v.ConsensusKey = act.ConsensusKey
	} else {
		v := stake.NewValidator(act.Identity, act.ConsensusKey, act.DelegationAsset, act.Meta)
		v.FundingStreams = act.FundingStreams
		a.validators.AddValidator(v)
	}
	a.bus.Emit(txIdx, actionIdx, events.KindValidatorDefinition, events.Attrs("identity", identityHexLedger(act.Identity))...)
	return nil
}

func (a *App) applyValidatorVote(txIdx, actionIdx int, act *ValidatorVoteAction) error {
	if _, ok := a.validators.Get(act.Identity); !ok {
		return ErrUnknownValidator
	}
	if _, ok := a.proposals.get(act.ProposalID); !ok {
		return ErrUnknownProposal
	}
	return nil
}

func (a *App) applyDelegatorVote(txIdx, actionIdx int, act *DelegatorVoteAction) error {
	if _, ok := a.proposals.get(act.ProposalID); !ok {
		return ErrUnknownProposal
	}
	return nil
}

func (a *App) applyProposalSubmit(act *ProposalSubmitAction) error {
	if _, exists := a.proposals.get(act.ID); exists {
		return ErrProposalExists
	}
	a.proposals.put(&Proposal{
		ID:        act.ID,
		Kind:      act.Kind,
		Payload:   act.Payload,
		Depositor: act.Depositor,
		Deposit:   act.Deposit,
		State:     ProposalOpen,
	})
	return nil
}

func (a *App) applyProposalWithdraw(act *ProposalWithdrawAction) error {
	p, ok := a.proposals.get(act.ID)
	if !ok || p.State != ProposalOpen {
		return ErrUnknownProposal
	}
	p.State = ProposalWithdrawn
	return nil
}

func (a *App) applyProposalDepositClaim(act *ProposalDepositClaimAction) error {
	p, ok := a.proposals.get(act.ID)
	if !ok || p.State == ProposalOpen {
		return ErrUnknownProposal
	}
	p.State = ProposalDepositClaimed
	return nil
}

func (a *App) applyPositionOpen(txIdx, actionIdx int, act *PositionOpenAction) error {
	pos, err := dex.NewPosition(act.ID, act.Asset1, act.Asset2, act.Phi, act.Reserves1, act.Reserves2, act.CloseOnFill)
	if err != nil {
		return err
	}
	a.book.Add(pos)
	if !act.Reserves1.IsZero() {
		if err := a.breaker.Credit(a.bus, txIdx, actionIdx, act.Asset1, act.Reserves1); err != nil {
			return err
		}
	}
	if !act.Reserves2.IsZero() {
		if err := a.breaker.Credit(a.bus, txIdx, actionIdx, act.Asset2, act.Reserves2); err != nil {
			return err
		}
	}
	a.bus.Emit(txIdx, actionIdx, events.KindPositionOpen, events.Attrs("id", uitoaLedger(act.ID))...)
	return nil
}

func (a *App) applyPositionClose(txIdx, actionIdx int, act *PositionCloseAction) error {
	pos, ok := a.book.Get(act.ID)
	if !ok {
		return ErrUnknownPosition
	}
	pos.Close()
	a.bus.Emit(txIdx, actionIdx, events.KindPositionClose, events.Attrs("id", uitoaLedger(act.ID))...)
	return nil
}

func (a *App) applyPositionWithdraw(txIdx, actionIdx int, act *PositionWithdrawAction) error {
	pos, ok := a.book.Get(act.ID)
	if !ok {
		return ErrUnknownPosition
	}
	r1, r2, err := pos.Withdraw()
	if err != nil {
		return err
	}
	if !r1.IsZero() {
		if err := a.breaker.Debit(a.bus, txIdx, actionIdx, pos.Asset1, r1); err != nil {
			return err
		}
	}
	if !r2.IsZero() {
		if err := a.breaker.Debit(a.bus, txIdx, actionIdx, pos.Asset2, r2); err != nil {
			return err
		}
	}
	a.bus.Emit(txIdx, actionIdx, events.KindPositionWithdraw, events.Attrs("id", uitoaLedger(act.ID), "receiver", act.Receiver)...)
	return nil
}

func (a *App) applyIcs20Withdrawal(ctx context.Context, txOv *txOverlay, txIdx, actionIdx int, act *Ics20WithdrawalAction) error {
	key := ics20EscrowKey(act.Asset)
	cur, err := txOv.escrowBalance(ctx, key)
	if err != nil {
		return err
	}
	next, err := cur.Add(act.Amount)
	if err != nil {
		return err
	}
	txOv.ov.Put(key, next.Bytes())
	return nil
}

func (a *App) applyCommunityPoolSpend(act *CommunityPoolSpendAction) error {
	cur := a.communityPool[act.Asset]
	next, err := cur.Sub(act.Amount)
	if err != nil {
		return err
	}
	a.communityPool[act.Asset] = next
	return nil
}

func (a *App) applyCommunityPoolOutput(act *CommunityPoolOutputAction) error {
	return a.applyCommunityPoolSpend((*CommunityPoolSpendAction)(act))
}

func (a *App) applyCommunityPoolDeposit(act *CommunityPoolDepositAction) error {
	cur := a.communityPool[act.Asset]
	next, err := cur.Add(act.Amount)
	if err != nil {
		return err
	}
	a.communityPool[act.Asset] = next
	return nil
}

func (a *App) applyIbcRelay(txIdx, actionIdx int, act *IbcRelayAction) error {
	switch {
	case act.OpenInit != nil:
		_, err := a.ibcReg.OpenInit(a.bus, txIdx, actionIdx, *act.OpenInit)
		return err
	case act.OpenTry != nil:
		_, err := a.ibcReg.OpenTry(a.bus, txIdx, actionIdx, *act.OpenTry)
		return err
	case act.OpenAck != nil:
		_, err := a.ibcReg.OpenAck(a.bus, txIdx, actionIdx, *act.OpenAck)
		return err
	case act.OpenConfirm != nil:
		_, err := a.ibcReg.OpenConfirm(a.bus, txIdx, actionIdx, *act.OpenConfirm)
		return err
	default:
		return ErrUnknownActionKind
	}
}

func assetHexLedger(id assetreg.AssetID) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, len(id)*2)
	for i, b := range id {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0xf]
	}
	return string(buf)
}

func identityHexLedger(id stake.IdentityKey) string {
	const hexDigits = "0123456789abcdef"
	buf := make([]byte, len(id)*2)
	for i, b := range id {
		buf[i*2] = hexDigits[b>>4]
		buf[i*2+1] = hexDigits[b&0xf]
	}
	return string(buf)
}

func uitoaLedger(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
