package auctions

import (
	"github.com/dedis/student_19_escrow/ledger"
	"golang.org/x/xerrors"
)

// LedgerClient is what the auction client needs from a ledger.
type LedgerClient interface {
	Submit(group ledger.Group) (ledger.Receipt, error)
	Now() (uint64, error)
	GlobalState(appID uint64) (ledger.GlobalState, error)
	Balances(addr ledger.Address) (ledger.Balances, error)
	Params() (ledger.Params, error)
}

var _ LedgerClient = (*ledger.Ledger)(nil)

// SetupFunding is what the escrow must receive during setup: its own minimum
// balance, the minimum balance of the asset holding, and the fees of the
// three inner transactions it will send.
func SetupFunding(p ledger.Params) uint64 {
	return p.MinBalance + p.AssetMinBalance + 3*p.MinTxnFee
}

// Client builds and submits the groups of the auction operations.
type Client struct {
	lc LedgerClient
}

// NewClient returns a client submitting to lc.
func NewClient(lc LedgerClient) *Client {
	return &Client{lc: lc}
}

// Create spawns a new auction and returns its application id.
func (c *Client) Create(sender ledger.Address, args CreateArgs) (uint64, error) {
	rcpt, err := c.lc.Submit(ledger.NewGroup(
		ledger.NewAppCreate(sender, ContractAuctionID, args.Arguments())))
	if err != nil {
		return 0, xerrors.Errorf("creating auction: %w", err)
	}
	return rcpt.AppID, nil
}

// Setup funds the escrow of appID and moves the whole lot held by seller
// into it.
func (c *Client) Setup(appID uint64, seller ledger.Address) (ledger.Receipt, error) {
	s, err := c.State(appID)
	if err != nil {
		return ledger.Receipt{}, err
	}
	p, err := c.lc.Params()
	if err != nil {
		return ledger.Receipt{}, err
	}
	bals, err := c.lc.Balances(seller)
	if err != nil {
		return ledger.Receipt{}, err
	}
	escrow := ledger.AppAddress(appID)
	return c.submit("setup", ledger.NewGroup(
		ledger.NewPayment(seller, escrow, SetupFunding(p)),
		ledger.NewAppCall(seller, appID, CommandSetup, nil, []uint64{s.AssetID}),
		ledger.NewAssetTransfer(seller, escrow, s.AssetID, bals[s.AssetID]),
	))
}

// Bid pays amount into escrow and places the bid. The current leader, if
// any, is referenced so that it can be refunded.
func (c *Client) Bid(appID uint64, bidder ledger.Address, amount uint64) (ledger.Receipt, error) {
	s, err := c.State(appID)
	if err != nil {
		return ledger.Receipt{}, err
	}
	var accounts []ledger.Address
	if s.Leader != nil {
		accounts = append(accounts, s.Leader.Bidder)
	}
	return c.submit("bid", ledger.NewGroup(
		ledger.NewPayment(bidder, ledger.AppAddress(appID), amount),
		ledger.NewAppCall(bidder, appID, CommandBid, accounts, []uint64{s.AssetID}),
	))
}

// Close deletes the auction, referencing everybody it may pay out to.
func (c *Client) Close(appID uint64, closer ledger.Address) (ledger.Receipt, error) {
	s, err := c.State(appID)
	if err != nil {
		return ledger.Receipt{}, err
	}
	accounts := []ledger.Address{s.Seller}
	if s.Leader != nil {
		accounts = append(accounts, s.Leader.Bidder)
	}
	return c.submit("close", ledger.NewGroup(
		ledger.NewAppDelete(closer, appID, accounts, []uint64{s.AssetID}),
	))
}

// State reads the current state of the auction.
func (c *Client) State(appID uint64) (*State, error) {
	gs, err := c.lc.GlobalState(appID)
	if err != nil {
		return nil, xerrors.Errorf("reading auction %d: %w", appID, err)
	}
	return StateFromGlobal(gs)
}

func (c *Client) submit(op string, group ledger.Group) (ledger.Receipt, error) {
	rcpt, err := c.lc.Submit(group)
	if err != nil {
		return ledger.Receipt{}, xerrors.Errorf("%s: %w", op, err)
	}
	return rcpt, nil
}
