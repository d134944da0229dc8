package ledger

import (
	"sort"

	"golang.org/x/xerrors"
)

type accountData struct {
	Balance uint64
	// Assets holds one entry per opted-in asset, even when the amount is 0.
	Assets map[uint64]uint64
}

func (a *accountData) clone() *accountData {
	c := &accountData{Balance: a.Balance, Assets: make(map[uint64]uint64, len(a.Assets))}
	for id, amount := range a.Assets {
		c.Assets[id] = amount
	}
	return c
}

// isEmpty means the account does not exist anymore.
func (a *accountData) isEmpty() bool {
	return a.Balance == 0 && len(a.Assets) == 0
}

type assetParams struct {
	Creator Address
	Total   uint64
}

type appData struct {
	Creator    Address
	ContractID string
	State      []byte
}

// ledgerState is the committed state of the ledger.
type ledgerState struct {
	accounts map[Address]*accountData
	assets   map[uint64]*assetParams
	apps     map[uint64]*appData
	// nextID is shared by assets and applications.
	nextID uint64
}

func newLedgerState() *ledgerState {
	return &ledgerState{
		accounts: make(map[Address]*accountData),
		assets:   make(map[uint64]*assetParams),
		apps:     make(map[uint64]*appData),
		nextID:   1,
	}
}

// groupState stages the changes of one atomic group on top of the committed
// state. Nothing reaches the parent before commit.
type groupState struct {
	parent   *ledgerState
	accounts map[Address]*accountData
	assets   map[uint64]*assetParams
	// apps maps to nil for applications deleted by the group.
	apps   map[uint64]*appData
	nextID uint64
}

func newGroupState(parent *ledgerState) *groupState {
	return &groupState{
		parent:   parent,
		accounts: make(map[Address]*accountData),
		assets:   make(map[uint64]*assetParams),
		apps:     make(map[uint64]*appData),
		nextID:   parent.nextID,
	}
}

// account returns the staged, writable copy of the account.
func (g *groupState) account(addr Address) *accountData {
	if a, ok := g.accounts[addr]; ok {
		return a
	}
	var a *accountData
	if committed, ok := g.parent.accounts[addr]; ok {
		a = committed.clone()
	} else {
		a = &accountData{Assets: make(map[uint64]uint64)}
	}
	g.accounts[addr] = a
	return a
}

func (g *groupState) lookup(addr Address) *accountData {
	if a, ok := g.accounts[addr]; ok {
		return a
	}
	if a, ok := g.parent.accounts[addr]; ok {
		return a
	}
	return &accountData{}
}

func (g *groupState) asset(id uint64) (*assetParams, bool) {
	if a, ok := g.assets[id]; ok {
		return a, true
	}
	a, ok := g.parent.assets[id]
	return a, ok
}

func (g *groupState) app(id uint64) (*appData, bool) {
	if a, ok := g.apps[id]; ok {
		return a, a != nil
	}
	a, ok := g.parent.apps[id]
	return a, ok
}

func (g *groupState) allocateID() uint64 {
	id := g.nextID
	g.nextID++
	return id
}

// Balance implements ReadOnlyState.
func (g *groupState) Balance(addr Address) uint64 {
	return g.lookup(addr).Balance
}

// AssetHolding implements ReadOnlyState.
func (g *groupState) AssetHolding(addr Address, assetID uint64) (uint64, bool) {
	amount, ok := g.lookup(addr).Assets[assetID]
	return amount, ok
}

// AssetTotal implements ReadOnlyState.
func (g *groupState) AssetTotal(assetID uint64) (uint64, error) {
	a, ok := g.asset(assetID)
	if !ok {
		return 0, xerrors.Errorf("asset %d: %w", assetID, ErrUnknownAsset)
	}
	return a.Total, nil
}

// debit takes amount from the currency balance of addr.
func (g *groupState) debit(addr Address, amount uint64) error {
	a := g.account(addr)
	if a.Balance < amount {
		return xerrors.Errorf("%x has %d, needs %d: %w", addr[:4], a.Balance,
			amount, ErrOverspend)
	}
	a.Balance -= amount
	return nil
}

func (g *groupState) credit(addr Address, amount uint64) error {
	a := g.account(addr)
	if a.Balance+amount < a.Balance {
		return xerrors.Errorf("balance overflow for %x: %w", addr[:4], ErrGroupMalformed)
	}
	a.Balance += amount
	return nil
}

func (g *groupState) moveAsset(from, to Address, assetID, amount uint64) error {
	src := g.account(from)
	held, ok := src.Assets[assetID]
	if !ok {
		return xerrors.Errorf("sender %x, asset %d: %w", from[:4], assetID, ErrNotOptedIn)
	}
	dst := g.account(to)
	if _, ok := dst.Assets[assetID]; !ok {
		return xerrors.Errorf("receiver %x, asset %d: %w", to[:4], assetID, ErrNotOptedIn)
	}
	if held < amount {
		return xerrors.Errorf("%x holds %d of asset %d, needs %d: %w", from[:4],
			held, assetID, amount, ErrOverspend)
	}
	src.Assets[assetID] -= amount
	dst.Assets[assetID] += amount
	return nil
}

// checkMinBalances verifies every account touched by the group. Accounts that
// were emptied are fine, they are removed on commit.
func (g *groupState) checkMinBalances(p Params) error {
	for _, addr := range g.modified() {
		a := g.accounts[addr]
		if a.isEmpty() {
			continue
		}
		min := p.MinBalanceFor(len(a.Assets))
		if a.Balance < min {
			return xerrors.Errorf("account %x balance %d below min %d (%d assets): %w",
				addr[:4], a.Balance, min, len(a.Assets), ErrBelowMinBalance)
		}
	}
	return nil
}

// modified returns the touched accounts in a stable order.
func (g *groupState) modified() []Address {
	addrs := make([]Address, 0, len(g.accounts))
	for addr := range g.accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool {
		return string(addrs[i][:]) < string(addrs[j][:])
	})
	return addrs
}

func (g *groupState) commit() {
	for addr, a := range g.accounts {
		if a.isEmpty() {
			delete(g.parent.accounts, addr)
			continue
		}
		g.parent.accounts[addr] = a
	}
	for id, a := range g.assets {
		g.parent.assets[id] = a
	}
	for id, a := range g.apps {
		if a == nil {
			delete(g.parent.apps, id)
			continue
		}
		g.parent.apps[id] = a
	}
	g.parent.nextID = g.nextID
}
