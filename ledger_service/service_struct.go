package ledger_service

import (
	"github.com/dedis/student_19_escrow/ledger"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/network"
)

// ServiceName can be used from other packages to refer to this service.
const ServiceName = "ledger_service"

// We need to register all messages so the network knows how to handle them.
func init() {
	network.RegisterMessages(
		SubmitGroup{}, SubmitGroupReply{},
		GetTime{}, GetTimeReply{},
		GetGlobalState{}, GetGlobalStateReply{},
		GetBalances{}, GetBalancesReply{},
		GetParams{}, GetParamsReply{},
	)
}

// SubmitGroup asks the node to apply an atomic group. When Roster is set,
// the commit is announced to all its nodes.
type SubmitGroup struct {
	Group  ledger.Group
	Roster *onet.Roster
}

// SubmitGroupReply holds the receipt of the committed group and how many
// nodes acknowledged it.
type SubmitGroupReply struct {
	Receipt ledger.Receipt
	Acks    int
}

// GetTime asks for the ledger time of the next round.
type GetTime struct {
}

type GetTimeReply struct {
	Now uint64
}

// GetGlobalState asks for the global state of an application.
type GetGlobalState struct {
	AppID uint64
}

type GetGlobalStateReply struct {
	State ledger.GlobalState
}

// GetBalances asks for everything an address holds.
type GetBalances struct {
	Address ledger.Address
}

type GetBalancesReply struct {
	Balances ledger.Balances
}

// GetParams asks for the consensus parameters.
type GetParams struct {
}

type GetParamsReply struct {
	Params ledger.Params
}
