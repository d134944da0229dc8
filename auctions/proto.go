package auctions

import (
	"github.com/dedis/student_19_escrow/ledger"
	"golang.org/x/xerrors"
)

// Keys of the auction's global state.
const (
	keySeller          = "seller"
	keyAssetID         = "asset_id"
	keyStart           = "start"
	keyEnd             = "end"
	keyReserveAmount   = "reserve_amount"
	keyMinBidIncrement = "min_bid_increment"
	keyNumBids         = "num_bids"
	keyBidAmount       = "bid_amount"
	keyBidAccount      = "bid_account"
)

// State is one auction instance. Everything but NumBids and Leader is fixed
// at creation.
type State struct {
	Seller          ledger.Address
	AssetID         uint64
	Start           uint64
	End             uint64
	ReserveAmount   uint64
	MinBidIncrement uint64
	NumBids         uint64
	// Leader is nil until the first bid is accepted.
	Leader *Leader
}

// Leader is the current highest bid.
type Leader struct {
	Bidder ledger.Address
	Amount uint64
}

// NewState returns the state of a freshly created auction.
func NewState(args CreateArgs) *State {
	return &State{
		Seller:          args.Seller,
		AssetID:         args.AssetID,
		Start:           args.Start,
		End:             args.End,
		ReserveAmount:   args.ReserveAmount,
		MinBidIncrement: args.MinBidIncrement,
	}
}

// GlobalState converts the state to its stored form. num_bids and bid_amount
// are only written once there is a leader; bid_account holds the zero
// address until then.
func (s *State) GlobalState() ledger.GlobalState {
	gs := ledger.GlobalState{}
	gs.SetBytes(keySeller, s.Seller.Slice())
	gs.SetUint(keyAssetID, s.AssetID)
	gs.SetUint(keyStart, s.Start)
	gs.SetUint(keyEnd, s.End)
	gs.SetUint(keyReserveAmount, s.ReserveAmount)
	gs.SetUint(keyMinBidIncrement, s.MinBidIncrement)
	if s.Leader == nil {
		gs.SetBytes(keyBidAccount, ledger.ZeroAddress.Slice())
		return gs
	}
	gs.SetUint(keyNumBids, s.NumBids)
	gs.SetUint(keyBidAmount, s.Leader.Amount)
	gs.SetBytes(keyBidAccount, s.Leader.Bidder.Slice())
	return gs
}

// StateFromGlobal parses the stored form of an auction.
func StateFromGlobal(gs ledger.GlobalState) (*State, error) {
	s := &State{}
	var err error
	if s.Seller, err = addressValue(gs, keySeller); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		key string
		dst *uint64
	}{
		{keyAssetID, &s.AssetID},
		{keyStart, &s.Start},
		{keyEnd, &s.End},
		{keyReserveAmount, &s.ReserveAmount},
		{keyMinBidIncrement, &s.MinBidIncrement},
	} {
		v, ok := gs.Uint(f.key)
		if !ok {
			return nil, xerrors.Errorf("missing %s: %w", f.key, ErrMalformedState)
		}
		*f.dst = v
	}

	bidder, err := addressValue(gs, keyBidAccount)
	if err != nil {
		return nil, err
	}
	s.NumBids, _ = gs.Uint(keyNumBids)
	if ledger.IsZero(bidder) {
		if s.NumBids != 0 {
			return nil, xerrors.Errorf("%d bids without a leader: %w", s.NumBids,
				ErrMalformedState)
		}
		return s, nil
	}
	amount, ok := gs.Uint(keyBidAmount)
	if !ok || s.NumBids == 0 {
		return nil, xerrors.Errorf("leader without bid: %w", ErrMalformedState)
	}
	s.Leader = &Leader{Bidder: bidder, Amount: amount}
	return s, nil
}

func addressValue(gs ledger.GlobalState, key string) (ledger.Address, error) {
	buf, ok := gs.Bytes(key)
	if !ok || len(buf) != len(ledger.ZeroAddress) {
		return ledger.ZeroAddress, xerrors.Errorf("missing or bad %s: %w", key,
			ErrMalformedState)
	}
	var addr ledger.Address
	copy(addr[:], buf)
	return addr, nil
}
