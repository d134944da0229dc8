package ledger_service

import (
	"github.com/dedis/student_19_escrow/auctions"
	"github.com/dedis/student_19_escrow/ledger"
	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/network"
	"golang.org/x/xerrors"
)

// Client talks to the ledger held by the first node of a roster.
//
// Errors returned by the service travel as text: the sentinels of the
// ledger and auctions packages cannot be matched with errors.Is, only their
// message is kept.
type Client struct {
	*onet.Client
	roster *onet.Roster
}

var _ auctions.LedgerClient = (*Client)(nil)

// NewClient instantiates a new ledger_service.Client
func NewClient(r *onet.Roster) *Client {
	return &Client{
		Client: onet.NewClient(cothority.Suite, ServiceName),
		roster: r,
	}
}

func (c *Client) leader() *network.ServerIdentity {
	return c.roster.List[0]
}

// Submit sends the group to the leader, which announces the commit to the
// rest of the roster.
func (c *Client) Submit(group ledger.Group) (ledger.Receipt, error) {
	log.Lvl4("Submitting", len(group.Txns), "txns to", c.leader())
	reply := &SubmitGroupReply{}
	err := c.SendProtobuf(c.leader(), &SubmitGroup{Group: group, Roster: c.roster}, reply)
	if err != nil {
		return ledger.Receipt{}, xerrors.Errorf("submitting group: %w", err)
	}
	return reply.Receipt, nil
}

// Now returns the ledger time of the next round.
func (c *Client) Now() (uint64, error) {
	reply := &GetTimeReply{}
	if err := c.SendProtobuf(c.leader(), &GetTime{}, reply); err != nil {
		return 0, err
	}
	return reply.Now, nil
}

// GlobalState returns the global state of an application.
func (c *Client) GlobalState(appID uint64) (ledger.GlobalState, error) {
	reply := &GetGlobalStateReply{}
	if err := c.SendProtobuf(c.leader(), &GetGlobalState{AppID: appID}, reply); err != nil {
		return ledger.GlobalState{}, err
	}
	return reply.State, nil
}

// Balances returns what addr holds, an empty map for unknown accounts.
func (c *Client) Balances(addr ledger.Address) (ledger.Balances, error) {
	reply := &GetBalancesReply{}
	if err := c.SendProtobuf(c.leader(), &GetBalances{Address: addr}, reply); err != nil {
		return nil, err
	}
	if reply.Balances == nil {
		reply.Balances = ledger.Balances{}
	}
	return reply.Balances, nil
}

// Params returns the consensus parameters of the ledger.
func (c *Client) Params() (ledger.Params, error) {
	reply := &GetParamsReply{}
	if err := c.SendProtobuf(c.leader(), &GetParams{}, reply); err != nil {
		return ledger.Params{}, err
	}
	return reply.Params, nil
}
