package ledger

import (
	"encoding/binary"

	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/cothority/v3/byzcoin"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/util/key"
	"golang.org/x/crypto/sha3"
	"golang.org/x/xerrors"
)

// Address identifies an account on the ledger. It is the 32-byte public key
// of a user account, or the derived address of an application escrow.
type Address = byzcoin.InstanceID

// ZeroAddress is never a valid account. It is used as the "nobody" sentinel.
var ZeroAddress Address

// CurrencyID is the asset id under which the native currency is reported.
const CurrencyID uint64 = 0

// Account is a user key pair. Signing is not verified by this ledger, the
// private key is kept so callers can plug in their own signer.
type Account struct {
	Address Address
	Private kyber.Scalar
}

// NewAccount generates a fresh Ed25519 key pair and derives its address.
func NewAccount() (*Account, error) {
	kp := key.NewKeyPair(cothority.Suite)
	buf, err := kp.Public.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("marshalling public key: %w", err)
	}
	return &Account{
		Address: byzcoin.NewInstanceID(buf),
		Private: kp.Private,
	}, nil
}

// AppAddress returns the escrow address controlled by the application. It
// only depends on the application id.
func AppAddress(appID uint64) Address {
	buf := make([]byte, len("appID")+8)
	copy(buf, "appID")
	binary.BigEndian.PutUint64(buf[len("appID"):], appID)
	return Address(sha3.Sum256(buf))
}

// IsZero reports whether the address is the zero sentinel.
func IsZero(addr Address) bool {
	return addr == ZeroAddress
}
