package ledger

import (
	"fmt"

	"go.dedis.ch/cothority/v3/byzcoin"
)

// TxnType selects how a transaction is applied.
type TxnType uint32

const (
	// PaymentTxn moves native currency.
	PaymentTxn TxnType = iota + 1
	// AssetTransferTxn moves asset units. A zero transfer to oneself opts the
	// sender into the asset.
	AssetTransferTxn
	// AssetCreateTxn mints a new asset held by its sender.
	AssetCreateTxn
	// AppCallTxn creates, invokes or deletes an application.
	AppCallTxn
)

func (t TxnType) String() string {
	switch t {
	case PaymentTxn:
		return "pay"
	case AssetTransferTxn:
		return "axfer"
	case AssetCreateTxn:
		return "acfg"
	case AppCallTxn:
		return "appl"
	}
	return fmt.Sprintf("TxnType(%d)", uint32(t))
}

// OnComplete tells what an application call does to the application.
type OnComplete uint32

const (
	// NoOp invokes a command on an existing application.
	NoOp OnComplete = iota
	// Create spawns a new application.
	Create
	// Delete removes the application and its global state.
	Delete
)

// Txn is a single ledger transaction. Only the fields relevant to Type are
// looked at.
type Txn struct {
	Type     TxnType
	Sender   Address
	Receiver Address
	Amount   uint64
	// CloseTo, when not zero, receives everything left in the sender's
	// holding after Amount was moved, and the holding is removed.
	CloseTo Address

	AssetID    uint64
	AssetTotal uint64

	AppID      uint64
	OnComplete OnComplete
	ContractID string
	Command    string
	Args       byzcoin.Arguments
	// Accounts and Assets are the references an application is allowed to
	// touch beyond its sender and escrow.
	Accounts []Address
	Assets   []uint64
}

// NewPayment returns a currency transfer.
func NewPayment(from, to Address, amount uint64) Txn {
	return Txn{Type: PaymentTxn, Sender: from, Receiver: to, Amount: amount}
}

// NewAssetTransfer returns an asset transfer.
func NewAssetTransfer(from, to Address, assetID, amount uint64) Txn {
	return Txn{Type: AssetTransferTxn, Sender: from, Receiver: to,
		AssetID: assetID, Amount: amount}
}

// NewAssetOptIn returns the transaction that lets addr hold assetID.
func NewAssetOptIn(addr Address, assetID uint64) Txn {
	return NewAssetTransfer(addr, addr, assetID, 0)
}

// NewAssetCreate returns a transaction minting total units of a new asset.
func NewAssetCreate(creator Address, total uint64) Txn {
	return Txn{Type: AssetCreateTxn, Sender: creator, AssetTotal: total}
}

// NewAppCreate returns a transaction spawning an instance of contractID.
func NewAppCreate(sender Address, contractID string, args byzcoin.Arguments) Txn {
	return Txn{Type: AppCallTxn, Sender: sender, OnComplete: Create,
		ContractID: contractID, Args: args}
}

// NewAppCall returns a transaction invoking command on an application.
func NewAppCall(sender Address, appID uint64, command string,
	accounts []Address, assets []uint64) Txn {
	return Txn{Type: AppCallTxn, Sender: sender, AppID: appID,
		OnComplete: NoOp, Command: command, Accounts: accounts, Assets: assets}
}

// NewAppDelete returns a transaction deleting an application.
func NewAppDelete(sender Address, appID uint64, accounts []Address,
	assets []uint64) Txn {
	return Txn{Type: AppCallTxn, Sender: sender, AppID: appID,
		OnComplete: Delete, Accounts: accounts, Assets: assets}
}

// IsOptIn reports whether the transaction is an asset opt-in.
func (t Txn) IsOptIn() bool {
	return t.Type == AssetTransferTxn && t.Sender == t.Receiver &&
		t.Amount == 0 && IsZero(t.CloseTo)
}

// References reports whether addr is in the Accounts list.
func (t Txn) References(addr Address) bool {
	for _, a := range t.Accounts {
		if a == addr {
			return true
		}
	}
	return false
}

// ReferencesAsset reports whether assetID is in the Assets list.
func (t Txn) ReferencesAsset(assetID uint64) bool {
	for _, a := range t.Assets {
		if a == assetID {
			return true
		}
	}
	return false
}

// Group is an ordered set of transactions applied all together or not at all.
type Group struct {
	Txns []Txn
}

// NewGroup bundles transactions into an atomic group.
func NewGroup(txns ...Txn) Group {
	return Group{Txns: txns}
}

// Receipt describes a committed group.
type Receipt struct {
	Round uint64
	Time  uint64
	// AppID is set when the group created an application.
	AppID uint64
	// AssetID is set when the group created an asset.
	AssetID uint64
}
