package auctions

import (
	"fmt"

	"github.com/dedis/student_19_escrow/ledger"
	"golang.org/x/xerrors"
)

// MovementKind tells what the escrow does in a Movement.
type MovementKind int

const (
	// OptIn lets the escrow hold the asset.
	OptIn MovementKind = iota
	// Pay sends Amount of the asset.
	Pay
	// CloseOut sends everything the escrow holds of the asset and drops the
	// holding. Closing out the currency deletes the escrow account.
	CloseOut
)

// Movement is a transfer out of (or an opt-in of) the escrow account.
// AssetID is ledger.CurrencyID for the native currency.
type Movement struct {
	Kind    MovementKind
	AssetID uint64
	To      ledger.Address
	Amount  uint64
}

// Outcome is how an auction ended.
type Outcome int

const (
	// Cancelled auctions were closed before they started.
	Cancelled Outcome = iota
	// Unsold auctions ended without any bid.
	Unsold
	// ReserveNotMet auctions ended with a leading bid under the reserve.
	ReserveNotMet
	// Sold auctions sent the lot to the leading bidder.
	Sold
)

var outcomes = [...]string{
	"CANCELLED",
	"UNSOLD",
	"RESERVE_NOT_MET",
	"SOLD",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomes) {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomes[o]
}

// SetupContext is what Setup needs to know about the call and its group.
type SetupContext struct {
	Now uint64
	// AssetRef is the asset referenced by the call.
	AssetRef uint64
	// DepositAsset and DepositAmount describe the grouped transfer of the
	// lot into escrow.
	DepositAsset  uint64
	DepositAmount uint64
	// LotSize is the number of units making up the lot.
	LotSize       uint64
	EscrowOptedIn bool
}

// Setup checks the funding group and returns the escrow opt-in. The state
// itself does not change.
func (s *State) Setup(ctx SetupContext) ([]Movement, error) {
	if ctx.Now >= s.Start {
		return nil, xerrors.Errorf("setup at %d, auction starts at %d: %w",
			ctx.Now, s.Start, ErrTimingViolation)
	}
	if ctx.AssetRef != s.AssetID {
		return nil, xerrors.Errorf("references asset %d, auction is for %d: %w",
			ctx.AssetRef, s.AssetID, ErrAssetMismatch)
	}
	if ctx.EscrowOptedIn {
		return nil, ErrAlreadySetUp
	}
	if ctx.DepositAsset != s.AssetID || ctx.DepositAmount != ctx.LotSize {
		return nil, xerrors.Errorf("deposits %d of asset %d, lot is %d of %d: %w",
			ctx.DepositAmount, ctx.DepositAsset, ctx.LotSize, s.AssetID,
			ErrAssetMismatch)
	}
	return []Movement{{Kind: OptIn, AssetID: s.AssetID}}, nil
}

// BidContext is what Bid needs to know about the call and its group.
type BidContext struct {
	Now    uint64
	Bidder ledger.Address
	// Paid tells whether the call comes right after a payment from the
	// bidder into escrow, and Amount is what that payment moved.
	Paid   bool
	Amount uint64
	// PreviousLeader is set when the call references the current leader, so
	// that the refund may be sent to it.
	PreviousLeader *ledger.Address
	EscrowHoldsLot bool
	MinTxnFee      uint64
	// MinBalance is the minimum balance of a ledger account. A refund must
	// be able to re-create the account of a leader that closed it.
	MinBalance uint64
}

// BidFloor is the smallest bid accepted: one refund of it, net of its fee,
// still re-creates an account at its minimum balance.
func BidFloor(minBalance, minTxnFee uint64) uint64 {
	return minBalance + minTxnFee
}

// Bid returns the state after accepting the bid and the refund owed to the
// previous leader. The receiver is left untouched.
//
// The refund is the previous bid minus one fee: the escrow pays the fee of
// the refund, so its balance drops by exactly the previous bid.
func (s State) Bid(ctx BidContext) (State, []Movement, error) {
	if !ctx.EscrowHoldsLot {
		return s, nil, ErrNotSetUp
	}
	if ctx.Now < s.Start || ctx.Now >= s.End {
		return s, nil, xerrors.Errorf("bid at %d outside [%d, %d): %w",
			ctx.Now, s.Start, s.End, ErrTimingViolation)
	}
	if !ctx.Paid {
		return s, nil, xerrors.Errorf("bid without payment into escrow: %w",
			ErrMalformedGroup)
	}
	floor := BidFloor(ctx.MinBalance, ctx.MinTxnFee)
	if ctx.Amount == 0 || ctx.Amount < floor {
		return s, nil, xerrors.Errorf("bid of %d under floor %d: %w",
			ctx.Amount, floor, ErrBidTooLow)
	}

	var refunds []Movement
	if s.Leader != nil {
		next := s.Leader.Amount + s.MinBidIncrement
		if next < s.Leader.Amount || ctx.Amount < next {
			return s, nil, xerrors.Errorf("bid of %d, need at least %d: %w",
				ctx.Amount, next, ErrBidTooLow)
		}
		if ctx.PreviousLeader == nil || *ctx.PreviousLeader != s.Leader.Bidder {
			return s, nil, xerrors.Errorf("previous leader %x: %w",
				s.Leader.Bidder[:4], ErrMissingReference)
		}
		refunds = append(refunds, Movement{
			Kind:    Pay,
			AssetID: ledger.CurrencyID,
			To:      s.Leader.Bidder,
			Amount:  s.Leader.Amount - ctx.MinTxnFee,
		})
	}

	s.Leader = &Leader{Bidder: ctx.Bidder, Amount: ctx.Amount}
	s.NumBids++
	return s, refunds, nil
}

// CloseContext is what Close needs to know about the call.
type CloseContext struct {
	Now     uint64
	Closer  ledger.Address
	Creator ledger.Address
	// Seller and Leader are set when the call references them.
	Seller *ledger.Address
	Leader *ledger.Address
	// AssetRef is set when the call references an asset.
	AssetRef       *uint64
	EscrowOptedIn  bool
	EscrowCurrency uint64
	MinTxnFee      uint64
}

// Close settles the auction. The returned movements empty the escrow: the
// asset is closed out first, then the leader refunded if needed, and the
// currency is closed out to the seller last.
//
// Before the start the seller or the creator may cancel. While the auction
// runs nobody may close it. Once it ended anyone may.
func (s *State) Close(ctx CloseContext) (Outcome, []Movement, error) {
	var outcome Outcome
	switch {
	case ctx.Now < s.Start:
		if ctx.Closer != s.Seller && ctx.Closer != ctx.Creator {
			return 0, nil, xerrors.Errorf("%x closing before start: %w",
				ctx.Closer[:4], ErrUnauthorizedCloser)
		}
		outcome = Cancelled
	case ctx.Now < s.End:
		return 0, nil, xerrors.Errorf("close at %d inside [%d, %d): %w",
			ctx.Now, s.Start, s.End, ErrTimingViolation)
	case s.Leader == nil:
		outcome = Unsold
	case s.Leader.Amount >= s.ReserveAmount:
		outcome = Sold
	default:
		outcome = ReserveNotMet
	}

	if ctx.Seller == nil || *ctx.Seller != s.Seller {
		return 0, nil, xerrors.Errorf("seller: %w", ErrMissingReference)
	}
	if s.Leader != nil && (ctx.Leader == nil || *ctx.Leader != s.Leader.Bidder) {
		return 0, nil, xerrors.Errorf("leader: %w", ErrMissingReference)
	}
	if ctx.EscrowOptedIn {
		if ctx.AssetRef == nil {
			return 0, nil, xerrors.Errorf("asset %d: %w", s.AssetID, ErrMissingReference)
		}
		if *ctx.AssetRef != s.AssetID {
			return 0, nil, xerrors.Errorf("references asset %d, auction is for %d: %w",
				*ctx.AssetRef, s.AssetID, ErrAssetMismatch)
		}
	}

	var moves []Movement
	if ctx.EscrowOptedIn {
		lotTo := s.Seller
		if outcome == Sold {
			lotTo = s.Leader.Bidder
		}
		moves = append(moves, Movement{Kind: CloseOut, AssetID: s.AssetID, To: lotTo})
	}
	if s.Leader != nil && outcome != Sold {
		moves = append(moves, Movement{
			Kind:    Pay,
			AssetID: ledger.CurrencyID,
			To:      s.Leader.Bidder,
			Amount:  s.Leader.Amount - ctx.MinTxnFee,
		})
	}
	if ctx.EscrowCurrency > 0 {
		moves = append(moves, Movement{Kind: CloseOut, AssetID: ledger.CurrencyID,
			To: s.Seller})
	}
	return outcome, moves, nil
}
