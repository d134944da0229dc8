package auctions

import (
	"github.com/dedis/student_19_escrow/ledger"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ContractAuctionID identifies the auction contract on the ledger.
var ContractAuctionID = "auction"

// Commands of the auction contract. Closing is done by deleting the
// application.
const (
	CommandSetup = "setup"
	CommandBid   = "bid"
)

// Register makes the auction contract available on l.
func Register(l *ledger.Ledger) error {
	return l.RegisterContract(ContractAuctionID, contractAuctionFromBytes)
}

type contractAuction struct {
	state *State
}

func contractAuctionFromBytes(in []byte) (ledger.Contract, error) {
	c := &contractAuction{}
	if in == nil {
		return c, nil
	}
	gs, err := ledger.DecodeGlobalState(in)
	if err != nil {
		return nil, xerrors.Errorf("decoding: %w", err)
	}
	if c.state, err = StateFromGlobal(gs); err != nil {
		return nil, err
	}
	return c, nil
}

// Spawn stores the auction parameters. No funds move.
func (c *contractAuction) Spawn(rst ledger.ReadOnlyState, call ledger.Call) ([]byzcoin.StateChange, []ledger.Txn, error) {
	args, err := parseCreateArgs(call.Txn.Args)
	if err != nil {
		return nil, nil, err
	}
	c.state = NewState(args)
	sc, err := c.stateChange(byzcoin.Create, call)
	if err != nil {
		return nil, nil, err
	}
	log.Lvlf2("Created auction %d for asset %d, escrow %x", call.AppID,
		args.AssetID, call.Escrow[:4])
	return []byzcoin.StateChange{sc}, nil, nil
}

// Invoke runs setup or bid.
func (c *contractAuction) Invoke(rst ledger.ReadOnlyState, call ledger.Call) ([]byzcoin.StateChange, []ledger.Txn, error) {
	if c.state == nil {
		return nil, nil, xerrors.Errorf("no auction stored: %w", ErrMalformedState)
	}
	switch call.Txn.Command {
	case CommandSetup:
		return c.setup(rst, call)
	case CommandBid:
		return c.bid(rst, call)
	}
	return nil, nil, xerrors.Errorf("%q: %w", call.Txn.Command, ErrUnknownCommand)
}

// setup expects the group [funding payment, setup call, lot transfer].
func (c *contractAuction) setup(rst ledger.ReadOnlyState, call ledger.Call) ([]byzcoin.StateChange, []ledger.Txn, error) {
	if call.Index == 0 || !isPaymentTo(call.Group[call.Index-1], call.Escrow) {
		return nil, nil, xerrors.Errorf("setup not funded: %w", ErrMalformedGroup)
	}
	if call.Index+1 >= len(call.Group) {
		return nil, nil, xerrors.Errorf("setup without lot transfer: %w",
			ErrMalformedGroup)
	}
	deposit := call.Group[call.Index+1]
	if deposit.Type != ledger.AssetTransferTxn || deposit.Receiver != call.Escrow {
		return nil, nil, xerrors.Errorf("setup without lot transfer: %w",
			ErrMalformedGroup)
	}
	if len(call.Txn.Assets) == 0 {
		return nil, nil, xerrors.Errorf("asset: %w", ErrMissingReference)
	}

	lot, err := rst.AssetTotal(c.state.AssetID)
	if err != nil {
		return nil, nil, err
	}
	_, optedIn := rst.AssetHolding(call.Escrow, c.state.AssetID)
	moves, err := c.state.Setup(SetupContext{
		Now:           call.Now,
		AssetRef:      call.Txn.Assets[0],
		DepositAsset:  deposit.AssetID,
		DepositAmount: deposit.Amount,
		LotSize:       lot,
		EscrowOptedIn: optedIn,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Lvl2("Auction", call.AppID, "set up")
	return nil, innerTxns(call.Escrow, moves), nil
}

// bid expects the group [payment to escrow, bid call].
func (c *contractAuction) bid(rst ledger.ReadOnlyState, call ledger.Call) ([]byzcoin.StateChange, []ledger.Txn, error) {
	ctx := BidContext{
		Now:        call.Now,
		Bidder:     call.Txn.Sender,
		MinTxnFee:  call.Params.MinTxnFee,
		MinBalance: call.Params.MinBalance,
	}
	if call.Index > 0 {
		pay := call.Group[call.Index-1]
		if isPaymentTo(pay, call.Escrow) && pay.Sender == call.Txn.Sender {
			ctx.Paid = true
			ctx.Amount = pay.Amount
		}
	}
	holding, _ := rst.AssetHolding(call.Escrow, c.state.AssetID)
	ctx.EscrowHoldsLot = holding > 0
	if l := c.state.Leader; l != nil && references(call.Txn, l.Bidder) {
		ctx.PreviousLeader = &l.Bidder
	}

	next, moves, err := c.state.Bid(ctx)
	if err != nil {
		return nil, nil, err
	}
	c.state = &next
	sc, err := c.stateChange(byzcoin.Update, call)
	if err != nil {
		return nil, nil, err
	}
	log.Lvlf2("Auction %d: bid #%d of %d by %x", call.AppID, next.NumBids,
		ctx.Amount, ctx.Bidder[:4])
	return []byzcoin.StateChange{sc}, innerTxns(call.Escrow, moves), nil
}

// Delete closes the auction, empties the escrow and removes the state.
func (c *contractAuction) Delete(rst ledger.ReadOnlyState, call ledger.Call) ([]byzcoin.StateChange, []ledger.Txn, error) {
	if c.state == nil {
		return nil, nil, xerrors.Errorf("no auction stored: %w", ErrMalformedState)
	}
	s := c.state
	_, optedIn := rst.AssetHolding(call.Escrow, s.AssetID)
	ctx := CloseContext{
		Now:            call.Now,
		Closer:         call.Txn.Sender,
		Creator:        call.Creator,
		EscrowOptedIn:  optedIn,
		EscrowCurrency: rst.Balance(call.Escrow),
		MinTxnFee:      call.Params.MinTxnFee,
	}
	if references(call.Txn, s.Seller) {
		ctx.Seller = &s.Seller
	}
	if s.Leader != nil && references(call.Txn, s.Leader.Bidder) {
		ctx.Leader = &s.Leader.Bidder
	}
	if call.Txn.ReferencesAsset(s.AssetID) {
		ctx.AssetRef = &s.AssetID
	} else if len(call.Txn.Assets) > 0 {
		ctx.AssetRef = &call.Txn.Assets[0]
	}

	outcome, moves, err := s.Close(ctx)
	if err != nil {
		return nil, nil, err
	}
	log.Lvl2("Auction", call.AppID, "closed:", outcome)
	sc := byzcoin.NewStateChange(byzcoin.Remove, call.Escrow, ContractAuctionID,
		nil, nil)
	return []byzcoin.StateChange{sc}, innerTxns(call.Escrow, moves), nil
}

func (c *contractAuction) stateChange(action byzcoin.StateAction, call ledger.Call) (byzcoin.StateChange, error) {
	gs := c.state.GlobalState()
	buf, err := gs.Encode()
	if err != nil {
		return byzcoin.StateChange{}, xerrors.Errorf("encoding: %w", err)
	}
	return byzcoin.NewStateChange(action, call.Escrow, ContractAuctionID, buf, nil), nil
}

// innerTxns turns movements into transactions sent by the escrow.
func innerTxns(escrow ledger.Address, moves []Movement) []ledger.Txn {
	var txns []ledger.Txn
	for _, m := range moves {
		var txn ledger.Txn
		switch {
		case m.Kind == OptIn:
			txn = ledger.NewAssetOptIn(escrow, m.AssetID)
		case m.AssetID == ledger.CurrencyID:
			txn = ledger.NewPayment(escrow, m.To, m.Amount)
		default:
			txn = ledger.NewAssetTransfer(escrow, m.To, m.AssetID, m.Amount)
		}
		if m.Kind == CloseOut {
			txn.CloseTo = m.To
		}
		txns = append(txns, txn)
	}
	return txns
}

func isPaymentTo(txn ledger.Txn, to ledger.Address) bool {
	return txn.Type == ledger.PaymentTxn && txn.Receiver == to &&
		ledger.IsZero(txn.CloseTo)
}

// references reports whether the call may touch addr. The sender always may.
func references(txn ledger.Txn, addr ledger.Address) bool {
	return txn.Sender == addr || txn.References(addr)
}
