// Package ledger is an in-memory transactional ledger able to run contracts.
//
// Transactions are submitted in atomic groups. A group is applied in order on
// a staged copy of the ledger; if any transaction, any contract or the final
// minimum-balance check fails, the staged copy is dropped and nothing
// changes. Groups are applied one at a time, so contracts never see
// concurrent modifications.
package ledger

import (
	"bytes"
	"sync"

	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Balances maps an asset id to the amount held. The native currency is
// reported under CurrencyID.
type Balances map[uint64]uint64

// Ledger totally orders atomic groups and applies them.
type Ledger struct {
	sync.Mutex
	params    Params
	clock     Clock
	state     *ledgerState
	contracts map[string]ContractFn
	round     uint64
}

// New returns an empty ledger.
func New(params Params, clock Clock) (*Ledger, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Ledger{
		params:    params,
		clock:     clock,
		state:     newLedgerState(),
		contracts: make(map[string]ContractFn),
	}, nil
}

// RegisterContract makes contractID available to application create calls.
func (l *Ledger) RegisterContract(contractID string, fn ContractFn) error {
	l.Lock()
	defer l.Unlock()
	if _, exists := l.contracts[contractID]; exists {
		return xerrors.Errorf("contract %s already registered", contractID)
	}
	l.contracts[contractID] = fn
	return nil
}

// Fund credits addr out of thin air. It stands in for a faucet.
func (l *Ledger) Fund(addr Address, amount uint64) error {
	l.Lock()
	defer l.Unlock()
	g := newGroupState(l.state)
	if err := g.credit(addr, amount); err != nil {
		return err
	}
	if err := g.checkMinBalances(l.params); err != nil {
		return err
	}
	g.commit()
	log.Lvlf3("Funded %x with %d", addr[:4], amount)
	return nil
}

// Submit applies the group atomically and returns the receipt of the round
// it was committed in.
func (l *Ledger) Submit(group Group) (Receipt, error) {
	l.Lock()
	defer l.Unlock()

	if len(group.Txns) == 0 {
		return Receipt{}, xerrors.Errorf("empty group: %w", ErrGroupMalformed)
	}
	if len(group.Txns) > l.params.MaxGroupSize {
		return Receipt{}, xerrors.Errorf("group of %d, maximum %d: %w",
			len(group.Txns), l.params.MaxGroupSize, ErrGroupTooLarge)
	}

	now := l.clock.Now()
	g := newGroupState(l.state)
	rcpt := Receipt{}
	for i := range group.Txns {
		if err := l.apply(g, group.Txns, i, now, &rcpt); err != nil {
			log.Lvl2("Rejected group at txn", i, ":", err)
			return Receipt{}, xerrors.Errorf("txn %d (%s): %w", i,
				group.Txns[i].Type, err)
		}
	}
	if err := g.checkMinBalances(l.params); err != nil {
		log.Lvl2("Rejected group:", err)
		return Receipt{}, err
	}
	g.commit()

	l.round++
	rcpt.Round = l.round
	rcpt.Time = now
	log.Lvlf3("Round %d at %d: committed %d txns", rcpt.Round, now, len(group.Txns))
	return rcpt, nil
}

func (l *Ledger) apply(g *groupState, group []Txn, index int, now uint64,
	rcpt *Receipt) error {
	txn := group[index]
	if IsZero(txn.Sender) {
		return xerrors.Errorf("zero sender: %w", ErrGroupMalformed)
	}
	if err := g.debit(txn.Sender, l.params.MinTxnFee); err != nil {
		return xerrors.Errorf("paying fee: %w", err)
	}

	switch txn.Type {
	case PaymentTxn, AssetTransferTxn:
		return l.transfer(g, txn)
	case AssetCreateTxn:
		if txn.AssetTotal == 0 {
			return xerrors.Errorf("asset without units: %w", ErrGroupMalformed)
		}
		id := g.allocateID()
		g.assets[id] = &assetParams{Creator: txn.Sender, Total: txn.AssetTotal}
		g.account(txn.Sender).Assets[id] = txn.AssetTotal
		rcpt.AssetID = id
		return nil
	case AppCallTxn:
		return l.call(g, group, index, now, rcpt)
	}
	return xerrors.Errorf("type %d: %w", txn.Type, ErrGroupMalformed)
}

func (l *Ledger) transfer(g *groupState, txn Txn) error {
	if IsZero(txn.Receiver) {
		return xerrors.Errorf("zero receiver: %w", ErrGroupMalformed)
	}

	if txn.Type == PaymentTxn {
		if err := g.debit(txn.Sender, txn.Amount); err != nil {
			return err
		}
		if err := g.credit(txn.Receiver, txn.Amount); err != nil {
			return err
		}
		if IsZero(txn.CloseTo) {
			return nil
		}
		src := g.account(txn.Sender)
		if len(src.Assets) > 0 {
			return xerrors.Errorf("closing %x still opted into %d assets: %w",
				txn.Sender[:4], len(src.Assets), ErrGroupMalformed)
		}
		rest := src.Balance
		src.Balance = 0
		return g.credit(txn.CloseTo, rest)
	}

	if _, ok := g.asset(txn.AssetID); !ok {
		return xerrors.Errorf("asset %d: %w", txn.AssetID, ErrUnknownAsset)
	}
	if txn.IsOptIn() {
		a := g.account(txn.Sender)
		if _, ok := a.Assets[txn.AssetID]; !ok {
			a.Assets[txn.AssetID] = 0
		}
		return nil
	}
	if err := g.moveAsset(txn.Sender, txn.Receiver, txn.AssetID, txn.Amount); err != nil {
		return err
	}
	if IsZero(txn.CloseTo) {
		return nil
	}
	rest := g.account(txn.Sender).Assets[txn.AssetID]
	if err := g.moveAsset(txn.Sender, txn.CloseTo, txn.AssetID, rest); err != nil {
		return err
	}
	delete(g.account(txn.Sender).Assets, txn.AssetID)
	return nil
}

func (l *Ledger) call(g *groupState, group []Txn, index int, now uint64,
	rcpt *Receipt) error {
	txn := group[index]

	var appID uint64
	var app *appData
	switch txn.OnComplete {
	case Create:
		appID = g.allocateID()
		app = &appData{Creator: txn.Sender, ContractID: txn.ContractID}
	case NoOp, Delete:
		existing, ok := g.app(txn.AppID)
		if !ok {
			return xerrors.Errorf("app %d: %w", txn.AppID, ErrUnknownApp)
		}
		appID = txn.AppID
		app = &appData{Creator: existing.Creator, ContractID: existing.ContractID,
			State: existing.State}
	default:
		return xerrors.Errorf("on-complete %d: %w", txn.OnComplete, ErrGroupMalformed)
	}

	fn, ok := l.contracts[app.ContractID]
	if !ok {
		return xerrors.Errorf("%q: %w", app.ContractID, ErrUnknownContract)
	}
	c, err := fn(app.State)
	if err != nil {
		return xerrors.Errorf("loading app %d: %w", appID, err)
	}

	call := Call{
		AppID:   appID,
		Escrow:  AppAddress(appID),
		Creator: app.Creator,
		Txn:     txn,
		Group:   group,
		Index:   index,
		Now:     now,
		Params:  l.params,
	}
	var scs []byzcoin.StateChange
	var inner []Txn
	switch txn.OnComplete {
	case Create:
		scs, inner, err = c.Spawn(g, call)
	case NoOp:
		scs, inner, err = c.Invoke(g, call)
	case Delete:
		scs, inner, err = c.Delete(g, call)
	}
	if err != nil {
		return xerrors.Errorf("app %d: %w", appID, err)
	}

	for i, in := range inner {
		if in.Sender != call.Escrow ||
			(in.Type != PaymentTxn && in.Type != AssetTransferTxn) {
			return xerrors.Errorf("app %d inner %d: %w", appID, i, ErrUnauthorizedInner)
		}
		if err := g.debit(in.Sender, l.params.MinTxnFee); err != nil {
			return xerrors.Errorf("app %d inner %d fee: %w", appID, i, err)
		}
		if err := l.transfer(g, in); err != nil {
			return xerrors.Errorf("app %d inner %d: %w", appID, i, err)
		}
	}

	for _, sc := range scs {
		if !bytes.Equal(sc.InstanceID, call.Escrow.Slice()) {
			return xerrors.Errorf("app %d changed foreign instance: %w", appID,
				ErrGroupMalformed)
		}
		switch sc.StateAction {
		case byzcoin.Create, byzcoin.Update:
			app.State = sc.Value
		case byzcoin.Remove:
			if txn.OnComplete != Delete {
				return xerrors.Errorf("app %d removed outside delete: %w", appID,
					ErrGroupMalformed)
			}
		}
	}

	if txn.OnComplete == Delete {
		g.apps[appID] = nil
		log.Lvl3("Deleted app", appID)
		return nil
	}
	g.apps[appID] = app
	if txn.OnComplete == Create {
		rcpt.AppID = appID
	}
	return nil
}

// Now returns the time the next group will be applied at.
func (l *Ledger) Now() (uint64, error) {
	return l.clock.Now(), nil
}

// Round returns the number of committed groups.
func (l *Ledger) Round() uint64 {
	l.Lock()
	defer l.Unlock()
	return l.round
}

// Params returns the consensus parameters.
func (l *Ledger) Params() (Params, error) {
	return l.params, nil
}

// GlobalState returns a snapshot of the application's global state.
func (l *Ledger) GlobalState(appID uint64) (GlobalState, error) {
	l.Lock()
	defer l.Unlock()
	app, ok := l.state.apps[appID]
	if !ok {
		return GlobalState{}, xerrors.Errorf("app %d: %w", appID, ErrUnknownApp)
	}
	return DecodeGlobalState(app.State)
}

// Balances returns what addr holds. Unknown accounts hold nothing.
func (l *Ledger) Balances(addr Address) (Balances, error) {
	l.Lock()
	defer l.Unlock()
	bals := Balances{}
	a, ok := l.state.accounts[addr]
	if !ok {
		return bals, nil
	}
	bals[CurrencyID] = a.Balance
	for id, amount := range a.Assets {
		bals[id] = amount
	}
	return bals, nil
}
