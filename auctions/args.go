package auctions

import (
	"encoding/binary"

	"github.com/dedis/student_19_escrow/ledger"
	"go.dedis.ch/cothority/v3/byzcoin"
	"golang.org/x/xerrors"
)

// CreateArgs are the parameters of a new auction. Times are unix seconds of
// ledger time.
type CreateArgs struct {
	Seller          ledger.Address
	AssetID         uint64
	Start           uint64
	End             uint64
	ReserveAmount   uint64
	MinBidIncrement uint64
}

// Arguments encodes the creation arguments in their fixed order: the seller
// address, then big-endian 8-byte integers.
func (a CreateArgs) Arguments() byzcoin.Arguments {
	return byzcoin.Arguments{
		{Name: keySeller, Value: a.Seller.Slice()},
		{Name: keyAssetID, Value: uint64Bytes(a.AssetID)},
		{Name: keyStart, Value: uint64Bytes(a.Start)},
		{Name: keyEnd, Value: uint64Bytes(a.End)},
		{Name: keyReserveAmount, Value: uint64Bytes(a.ReserveAmount)},
		{Name: keyMinBidIncrement, Value: uint64Bytes(a.MinBidIncrement)},
	}
}

var createArgNames = []string{keySeller, keyAssetID, keyStart, keyEnd,
	keyReserveAmount, keyMinBidIncrement}

// parseCreateArgs is the reverse of CreateArgs.Arguments. The arguments are
// positional, the names only serve as a check.
func parseCreateArgs(args byzcoin.Arguments) (CreateArgs, error) {
	if len(args) != len(createArgNames) {
		return CreateArgs{}, xerrors.Errorf("got %d arguments, want %d: %w",
			len(args), len(createArgNames), ErrMalformedCall)
	}
	for i, name := range createArgNames {
		if args[i].Name != name {
			return CreateArgs{}, xerrors.Errorf("argument %d is %q, want %q: %w",
				i, args[i].Name, name, ErrMalformedCall)
		}
	}

	a := CreateArgs{}
	seller := args[0].Value
	if len(seller) != len(a.Seller) || ledger.IsZero(byzcoin.NewInstanceID(seller)) {
		return CreateArgs{}, xerrors.Errorf("bad seller: %w", ErrMalformedCall)
	}
	a.Seller = byzcoin.NewInstanceID(seller)

	for i, dst := range []*uint64{&a.AssetID, &a.Start, &a.End,
		&a.ReserveAmount, &a.MinBidIncrement} {
		buf := args[i+1].Value
		if len(buf) != 8 {
			return CreateArgs{}, xerrors.Errorf("%s has %d bytes: %w",
				args[i+1].Name, len(buf), ErrMalformedCall)
		}
		*dst = binary.BigEndian.Uint64(buf)
	}
	return a, nil
}

func uint64Bytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}
