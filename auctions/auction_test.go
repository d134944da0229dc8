package auctions

import (
	"errors"
	"sync"
	"testing"

	"github.com/dedis/student_19_escrow/ledger"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/cothority/v3/byzcoin"
)

func TestContractAuction_Create(t *testing.T) {
	at := newAucTest(t)
	at.createAuction(t, 1000000, 100000)

	s := at.state(t)
	require.Equal(t, at.seller, s.Seller)
	require.Equal(t, at.assetID, s.AssetID)
	require.Equal(t, uint64(testStart), s.Start)
	require.Equal(t, uint64(testEnd), s.End)
	require.Equal(t, uint64(0), s.NumBids)
	require.Nil(t, s.Leader)

	gs, err := at.l.GlobalState(at.appID)
	require.NoError(t, err)
	_, ok := gs.Uint(keyNumBids)
	require.False(t, ok)
	bidder, ok := gs.Bytes(keyBidAccount)
	require.True(t, ok)
	require.Equal(t, ledger.ZeroAddress.Slice(), bidder)

	// No funds move.
	require.Empty(t, at.balance(t, at.escrow(), ledger.CurrencyID))

	// End before start is accepted as given.
	args := at.args(0, 0)
	args.Start, args.End = args.End, args.Start
	_, err = at.cl.Create(at.seller, args)
	require.NoError(t, err)
}

func TestContractAuction_CreateMalformed(t *testing.T) {
	at := newAucTest(t)
	args := at.args(0, 0).Arguments()

	for _, bad := range []byzcoin.Arguments{
		nil,
		args[:5],
		append(byzcoin.Arguments{args[1], args[0]}, args[2:]...),
		append(byzcoin.Arguments{{Name: keySeller, Value: []byte{1, 2}}}, args[1:]...),
		append(byzcoin.Arguments{{Name: keySeller,
			Value: ledger.ZeroAddress.Slice()}}, args[1:]...),
		append(append(byzcoin.Arguments{}, args[:2]...),
			byzcoin.Argument{Name: keyStart, Value: []byte{1}}, args[3], args[4], args[5]),
	} {
		_, err := at.l.Submit(ledger.NewGroup(
			ledger.NewAppCreate(at.seller, ContractAuctionID, bad)))
		require.True(t, errors.Is(err, ErrMalformedCall), "%v", err)
	}
}

func TestContractAuction_Setup(t *testing.T) {
	at := newAucTest(t)
	at.createAuction(t, 0, 0)

	_, err := at.cl.Setup(at.appID, at.seller)
	require.NoError(t, err)
	require.Equal(t, uint64(1), at.balance(t, at.escrow(), at.assetID))
	require.Equal(t, uint64(0), at.balance(t, at.seller, at.assetID))
	require.Equal(t, at.buffer(), at.balance(t, at.escrow(), ledger.CurrencyID))

	// Only once.
	_, err = at.cl.Setup(at.appID, at.seller)
	require.True(t, errors.Is(err, ErrAlreadySetUp))
}

func TestContractAuction_SetupRejected(t *testing.T) {
	at := newAucTest(t)
	at.createAuction(t, 0, 0)
	escrow := at.escrow()
	funding := ledger.NewPayment(at.seller, escrow, SetupFunding(at.params))
	call := ledger.NewAppCall(at.seller, at.appID, CommandSetup, nil,
		[]uint64{at.assetID})
	deposit := ledger.NewAssetTransfer(at.seller, escrow, at.assetID, 1)

	_, err := at.l.Submit(ledger.NewGroup(call, deposit))
	require.True(t, errors.Is(err, ErrMalformedGroup))
	_, err = at.l.Submit(ledger.NewGroup(funding, call))
	require.True(t, errors.Is(err, ErrMalformedGroup))

	rcpt, err := at.l.Submit(ledger.NewGroup(ledger.NewAssetCreate(at.seller, 1)))
	require.NoError(t, err)
	other := rcpt.AssetID
	wrongRef := ledger.NewAppCall(at.seller, at.appID, CommandSetup, nil,
		[]uint64{other})
	_, err = at.l.Submit(ledger.NewGroup(funding, wrongRef, deposit))
	require.True(t, errors.Is(err, ErrAssetMismatch))
	_, err = at.l.Submit(ledger.NewGroup(funding, call,
		ledger.NewAssetTransfer(at.seller, escrow, other, 1)))
	require.True(t, errors.Is(err, ErrAssetMismatch))

	// Nothing of the rejected groups stayed behind.
	require.Empty(t, at.balance(t, escrow, ledger.CurrencyID))
	require.Equal(t, uint64(1), at.balance(t, at.seller, at.assetID))

	at.clock.Set(testStart)
	_, err = at.cl.Setup(at.appID, at.seller)
	require.True(t, errors.Is(err, ErrTimingViolation))
}

func TestContractAuction_SetupPartialLot(t *testing.T) {
	at := newAucTest(t)
	rcpt, err := at.l.Submit(ledger.NewGroup(ledger.NewAssetCreate(at.seller, 10)))
	require.NoError(t, err)
	args := at.args(0, 0)
	args.AssetID = rcpt.AssetID
	at.appID, err = at.cl.Create(at.seller, args)
	require.NoError(t, err)

	escrow := at.escrow()
	_, err = at.l.Submit(ledger.NewGroup(
		ledger.NewPayment(at.seller, escrow, SetupFunding(at.params)),
		ledger.NewAppCall(at.seller, at.appID, CommandSetup, nil,
			[]uint64{args.AssetID}),
		ledger.NewAssetTransfer(at.seller, escrow, args.AssetID, 9),
	))
	require.True(t, errors.Is(err, ErrAssetMismatch))

	_, err = at.cl.Setup(at.appID, at.seller)
	require.NoError(t, err)
	require.Equal(t, uint64(10), at.balance(t, escrow, args.AssetID))
}

func TestContractAuction_Bid(t *testing.T) {
	at := newAucTest(t)
	at.createAuction(t, 5000000, 100000)
	b1 := at.newBidder(t)
	b2 := at.newBidder(t)
	fee := at.params.MinTxnFee

	at.clock.Set(testStart)
	_, err := at.cl.Bid(at.appID, b1, 1000000)
	require.True(t, errors.Is(err, ErrNotSetUp))

	at.clock.Set(1000)
	_, err = at.cl.Setup(at.appID, at.seller)
	require.NoError(t, err)
	b1Funds := at.balance(t, b1, ledger.CurrencyID)
	_, err = at.cl.Bid(at.appID, b1, 1000000)
	require.True(t, errors.Is(err, ErrTimingViolation))
	require.Equal(t, b1Funds, at.balance(t, b1, ledger.CurrencyID))
	require.Equal(t, at.buffer(), at.balance(t, at.escrow(), ledger.CurrencyID))
	s := at.state(t)
	require.Nil(t, s.Leader)
	require.Equal(t, uint64(0), s.NumBids)

	at.clock.Set(testStart)
	floor := BidFloor(at.params.MinBalance, fee)
	for _, amount := range []uint64{0, fee - 1, floor - 1} {
		_, err = at.cl.Bid(at.appID, b1, amount)
		require.True(t, errors.Is(err, ErrBidTooLow))
	}

	_, err = at.cl.Bid(at.appID, b1, 1000000)
	require.NoError(t, err)
	s = at.state(t)
	require.Equal(t, uint64(1), s.NumBids)
	require.Equal(t, &Leader{Bidder: b1, Amount: 1000000}, s.Leader)
	require.Equal(t, at.buffer()+1000000,
		at.balance(t, at.escrow(), ledger.CurrencyID))

	// Under the increment.
	_, err = at.cl.Bid(at.appID, b2, 1099999)
	require.True(t, errors.Is(err, ErrBidTooLow))

	// The previous leader must be referenced for the refund.
	before := at.balance(t, b2, ledger.CurrencyID)
	_, err = at.l.Submit(ledger.NewGroup(
		ledger.NewPayment(b2, at.escrow(), 1100000),
		ledger.NewAppCall(b2, at.appID, CommandBid, nil, []uint64{at.assetID}),
	))
	require.True(t, errors.Is(err, ErrMissingReference))
	require.Equal(t, before, at.balance(t, b2, ledger.CurrencyID))

	b1Before := at.balance(t, b1, ledger.CurrencyID)
	_, err = at.cl.Bid(at.appID, b2, 1100000)
	require.NoError(t, err)
	require.Equal(t, b1Before+1000000-fee, at.balance(t, b1, ledger.CurrencyID))
	require.Equal(t, before-1100000-2*fee, at.balance(t, b2, ledger.CurrencyID))
	require.Equal(t, at.buffer()+1100000,
		at.balance(t, at.escrow(), ledger.CurrencyID))
	s = at.state(t)
	require.Equal(t, uint64(2), s.NumBids)
	require.Equal(t, &Leader{Bidder: b2, Amount: 1100000}, s.Leader)

	// A leader may raise its own bid.
	_, err = at.cl.Bid(at.appID, b2, 1200000)
	require.NoError(t, err)
	require.Equal(t, at.buffer()+1200000,
		at.balance(t, at.escrow(), ledger.CurrencyID))

	at.clock.Set(testEnd)
	_, err = at.cl.Bid(at.appID, b1, 2000000)
	require.True(t, errors.Is(err, ErrTimingViolation))
	require.Equal(t, uint64(3), at.state(t).NumBids)
}

// closeAccount empties addr into sink, deleting the account.
func (at *aucTest) closeAccount(t *testing.T, addr, sink ledger.Address) {
	pay := ledger.NewPayment(addr, sink, 0)
	pay.CloseTo = sink
	_, err := at.l.Submit(ledger.NewGroup(pay))
	require.NoError(t, err)
	bals, err := at.l.Balances(addr)
	require.NoError(t, err)
	require.Empty(t, bals)
}

func TestContractAuction_LeaderClosedAccount(t *testing.T) {
	at := newAucTest(t)
	at.startAuction(t, 0, 100000)
	fee := at.params.MinTxnFee
	floor := BidFloor(at.params.MinBalance, fee)

	// A leader holding no asset can delete its account after bidding.
	leader := at.newAccount(t)
	sink := at.newAccount(t)
	_, err := at.cl.Bid(at.appID, leader, floor)
	require.NoError(t, err)
	at.closeAccount(t, leader, sink)

	// The refund re-creates the account, so outbidding still works.
	b2 := at.newBidder(t)
	_, err = at.cl.Bid(at.appID, b2, 2000000)
	require.NoError(t, err)
	require.Equal(t, floor-fee, at.balance(t, leader, ledger.CurrencyID))
	require.Equal(t, at.params.MinBalance, at.balance(t, leader, ledger.CurrencyID))

	at.clock.Set(testEnd)
	_, err = at.cl.Close(at.appID, at.seller)
	require.NoError(t, err)
	require.Equal(t, uint64(1), at.balance(t, b2, at.assetID))
	at.requireClosed(t)
}

func TestContractAuction_LeaderClosedAccountReserveNotMet(t *testing.T) {
	at := newAucTest(t)
	at.startAuction(t, 5000000, 100000)
	floor := BidFloor(at.params.MinBalance, at.params.MinTxnFee)

	leader := at.newAccount(t)
	_, err := at.cl.Bid(at.appID, leader, floor)
	require.NoError(t, err)
	at.closeAccount(t, leader, at.newAccount(t))

	at.clock.Set(testEnd)
	_, err = at.cl.Close(at.appID, at.seller)
	require.NoError(t, err)
	require.Equal(t, uint64(1), at.balance(t, at.seller, at.assetID))
	require.Equal(t, at.params.MinBalance, at.balance(t, leader, ledger.CurrencyID))
	at.requireClosed(t)
}

func TestContractAuction_BidMalformed(t *testing.T) {
	at := newAucTest(t)
	at.startAuction(t, 0, 0)
	b1 := at.newBidder(t)
	b2 := at.newBidder(t)
	call := ledger.NewAppCall(b1, at.appID, CommandBid, nil, []uint64{at.assetID})

	for _, group := range []ledger.Group{
		ledger.NewGroup(call),
		ledger.NewGroup(ledger.NewPayment(b2, at.escrow(), 1000000), call),
		ledger.NewGroup(ledger.NewPayment(b1, at.seller, 1000000), call),
	} {
		_, err := at.l.Submit(group)
		require.True(t, errors.Is(err, ErrMalformedGroup), "%v", err)
	}

	call.Command = "withdraw"
	_, err := at.l.Submit(ledger.NewGroup(
		ledger.NewPayment(b1, at.escrow(), 1000000), call))
	require.True(t, errors.Is(err, ErrUnknownCommand))
	require.Nil(t, at.state(t).Leader)
}

func TestContractAuction_CloseSold(t *testing.T) {
	at := newAucTest(t)
	at.startAuction(t, 1000000, 100000)
	b1 := at.newBidder(t)
	b2 := at.newBidder(t)
	_, err := at.cl.Bid(at.appID, b1, 1000000)
	require.NoError(t, err)
	_, err = at.cl.Bid(at.appID, b2, 1100000)
	require.NoError(t, err)

	// Nobody closes a running auction.
	_, err = at.cl.Close(at.appID, at.seller)
	require.True(t, errors.Is(err, ErrTimingViolation))

	at.clock.Set(testEnd)
	closer := at.newAccount(t)
	sellerBefore := at.balance(t, at.seller, ledger.CurrencyID)
	_, err = at.cl.Close(at.appID, closer)
	require.NoError(t, err)

	fee := at.params.MinTxnFee
	require.Equal(t, uint64(1), at.balance(t, b2, at.assetID))
	require.Equal(t, sellerBefore+at.buffer()+1100000-2*fee,
		at.balance(t, at.seller, ledger.CurrencyID))
	require.Equal(t, uint64(testFunds-fee), at.balance(t, closer, ledger.CurrencyID))
	at.requireClosed(t)
}

func TestContractAuction_CloseReserveNotMet(t *testing.T) {
	at := newAucTest(t)
	at.startAuction(t, 5000000, 100000)
	b1 := at.newBidder(t)
	_, err := at.cl.Bid(at.appID, b1, 1000000)
	require.NoError(t, err)

	at.clock.Set(testEnd + 100)
	b1Before := at.balance(t, b1, ledger.CurrencyID)
	sellerBefore := at.balance(t, at.seller, ledger.CurrencyID)
	_, err = at.cl.Close(at.appID, b1)
	require.NoError(t, err)

	fee := at.params.MinTxnFee
	require.Equal(t, uint64(1), at.balance(t, at.seller, at.assetID))
	require.Equal(t, uint64(0), at.balance(t, b1, at.assetID))
	require.Equal(t, b1Before-fee+1000000-fee, at.balance(t, b1, ledger.CurrencyID))
	require.Equal(t, sellerBefore+at.buffer()-2*fee,
		at.balance(t, at.seller, ledger.CurrencyID))
	at.requireClosed(t)
}

func TestContractAuction_CloseUnsold(t *testing.T) {
	at := newAucTest(t)
	at.startAuction(t, 0, 0)

	// Even without bids the auction runs until its end.
	_, err := at.cl.Close(at.appID, at.seller)
	require.True(t, errors.Is(err, ErrTimingViolation))

	at.clock.Set(testEnd)
	sellerBefore := at.balance(t, at.seller, ledger.CurrencyID)
	_, err = at.cl.Close(at.appID, at.seller)
	require.NoError(t, err)

	fee := at.params.MinTxnFee
	require.Equal(t, uint64(1), at.balance(t, at.seller, at.assetID))
	require.Equal(t, sellerBefore-fee+at.buffer()-2*fee,
		at.balance(t, at.seller, ledger.CurrencyID))
	at.requireClosed(t)
}

func TestContractAuction_CloseCancel(t *testing.T) {
	at := newAucTest(t)
	at.createAuction(t, 0, 0)
	_, err := at.cl.Setup(at.appID, at.seller)
	require.NoError(t, err)

	stranger := at.newAccount(t)
	_, err = at.cl.Close(at.appID, stranger)
	require.True(t, errors.Is(err, ErrUnauthorizedCloser))

	_, err = at.cl.Close(at.appID, at.seller)
	require.NoError(t, err)
	require.Equal(t, uint64(1), at.balance(t, at.seller, at.assetID))
	at.requireClosed(t)

	// The creator of the application may cancel too, here before setup.
	creator := at.newAccount(t)
	at.appID, err = at.cl.Create(creator, at.args(0, 0))
	require.NoError(t, err)
	_, err = at.cl.Close(at.appID, creator)
	require.NoError(t, err)
	at.requireClosed(t)
}

func TestContractAuction_CloseReferences(t *testing.T) {
	at := newAucTest(t)
	at.startAuction(t, 0, 0)
	b1 := at.newBidder(t)
	_, err := at.cl.Bid(at.appID, b1, 1000000)
	require.NoError(t, err)
	at.clock.Set(testEnd)

	closer := at.newAccount(t)
	rcpt, err := at.l.Submit(ledger.NewGroup(ledger.NewAssetCreate(closer, 1)))
	require.NoError(t, err)
	other := rcpt.AssetID

	for _, tc := range []struct {
		accounts []ledger.Address
		assets   []uint64
		err      error
	}{
		{nil, []uint64{at.assetID}, ErrMissingReference},
		{[]ledger.Address{at.seller}, []uint64{at.assetID}, ErrMissingReference},
		{[]ledger.Address{b1}, []uint64{at.assetID}, ErrMissingReference},
		{[]ledger.Address{at.seller, b1}, nil, ErrMissingReference},
		{[]ledger.Address{at.seller, b1}, []uint64{other}, ErrAssetMismatch},
	} {
		_, err := at.l.Submit(ledger.NewGroup(
			ledger.NewAppDelete(closer, at.appID, tc.accounts, tc.assets)))
		require.True(t, errors.Is(err, tc.err), "%v", err)
	}

	_, err = at.l.Submit(ledger.NewGroup(ledger.NewAppDelete(closer, at.appID,
		[]ledger.Address{at.seller, b1}, []uint64{at.assetID})))
	require.NoError(t, err)
	at.requireClosed(t)
}

func TestContractAuction_CloseWinnerNotOptedIn(t *testing.T) {
	at := newAucTest(t)
	at.startAuction(t, 0, 0)
	bidder := at.newAccount(t)
	_, err := at.cl.Bid(at.appID, bidder, 1000000)
	require.NoError(t, err)

	at.clock.Set(testEnd)
	_, err = at.cl.Close(at.appID, at.seller)
	require.True(t, errors.Is(err, ledger.ErrNotOptedIn))
	require.Equal(t, uint64(1), at.balance(t, at.escrow(), at.assetID))

	_, err = at.l.Submit(ledger.NewGroup(ledger.NewAssetOptIn(bidder, at.assetID)))
	require.NoError(t, err)
	_, err = at.cl.Close(at.appID, at.seller)
	require.NoError(t, err)
	require.Equal(t, uint64(1), at.balance(t, bidder, at.assetID))
}

func TestContractAuction_ConcurrentBids(t *testing.T) {
	at := newAucTest(t)
	at.startAuction(t, 0, 100000)
	var bidders []ledger.Address
	for i := 0; i < 10; i++ {
		bidders = append(bidders, at.newBidder(t))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var rejected []error
	for i, b := range bidders {
		wg.Add(1)
		go func(b ledger.Address, amount uint64) {
			defer wg.Done()
			_, err := at.cl.Bid(at.appID, b, amount)
			if err != nil {
				mu.Lock()
				rejected = append(rejected, err)
				mu.Unlock()
			}
		}(b, 1000000+uint64(i)*100000)
	}
	wg.Wait()

	// Stale views of the leader lose the race, nothing else may fail.
	for _, err := range rejected {
		require.True(t, errors.Is(err, ErrBidTooLow) ||
			errors.Is(err, ErrMissingReference), "%v", err)
	}
	accepted := uint64(len(bidders) - len(rejected))
	s := at.state(t)
	require.NotNil(t, s.Leader)
	require.True(t, accepted > 0)
	require.Equal(t, accepted, s.NumBids)
	require.Equal(t, at.buffer()+s.Leader.Amount,
		at.balance(t, at.escrow(), ledger.CurrencyID))
}

func (at *aucTest) requireClosed(t *testing.T) {
	_, err := at.l.GlobalState(at.appID)
	require.True(t, errors.Is(err, ledger.ErrUnknownApp))
	bals, err := at.l.Balances(at.escrow())
	require.NoError(t, err)
	require.Empty(t, bals)
}
