package ledger

import (
	"go.dedis.ch/cothority/v3/byzcoin"
)

// ReadOnlyState is the view of the ledger a contract gets while it runs. It
// includes the effects of the earlier transactions of the same group.
type ReadOnlyState interface {
	Balance(addr Address) uint64
	AssetHolding(addr Address, assetID uint64) (amount uint64, optedIn bool)
	AssetTotal(assetID uint64) (uint64, error)
}

// Call is everything a contract knows about the transaction invoking it.
type Call struct {
	AppID   uint64
	Escrow  Address
	Creator Address
	// Txn is the application call itself, Group[Index] == Txn.
	Txn   Txn
	Group []Txn
	Index int
	// Now is the ledger time of the round the group is applied in.
	Now    uint64
	Params Params
}

// Contract is the logic of an application. Each method returns the state
// changes for the application's global state and the inner transactions the
// escrow must send. Returning an error aborts the whole group.
type Contract interface {
	Spawn(rst ReadOnlyState, call Call) ([]byzcoin.StateChange, []Txn, error)
	Invoke(rst ReadOnlyState, call Call) ([]byzcoin.StateChange, []Txn, error)
	Delete(rst ReadOnlyState, call Call) ([]byzcoin.StateChange, []Txn, error)
}

// ContractFn builds a contract from its stored global state. The state is
// nil when the application is being created.
type ContractFn func(state []byte) (Contract, error)
