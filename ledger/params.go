package ledger

import (
	"github.com/BurntSushi/toml"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Params are the consensus parameters of the ledger. The defaults mirror a
// public network where one currency unit is a micro-unit.
type Params struct {
	// MinTxnFee is charged to the sender of every transaction, inner
	// transactions included.
	MinTxnFee uint64 `toml:"min_txn_fee"`
	// MinBalance is the balance every non-empty account must keep.
	MinBalance uint64 `toml:"min_balance"`
	// AssetMinBalance is added to the minimum balance per asset the account
	// is opted into.
	AssetMinBalance uint64 `toml:"asset_min_balance"`
	// MaxGroupSize bounds the number of transactions in an atomic group.
	MaxGroupSize int `toml:"max_group_size"`
}

// DefaultParams returns the parameters used when nothing else is configured.
func DefaultParams() Params {
	return Params{
		MinTxnFee:       1000,
		MinBalance:      100000,
		AssetMinBalance: 100000,
		MaxGroupSize:    16,
	}
}

// DecodeParams parses a toml document. Keys that are absent keep their
// default value.
func DecodeParams(text string) (Params, error) {
	p := DefaultParams()
	if _, err := toml.Decode(text, &p); err != nil {
		return Params{}, xerrors.Errorf("decoding params: %w", err)
	}
	return p, p.Validate()
}

// LoadParams reads the parameters from a toml file.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	if _, err := toml.DecodeFile(path, &p); err != nil {
		return Params{}, xerrors.Errorf("loading params from %s: %w", path, err)
	}
	log.Lvl3("Loaded ledger params from", path)
	return p, p.Validate()
}

// Validate checks that the parameters can run a ledger.
func (p Params) Validate() error {
	if p.MinTxnFee == 0 {
		return xerrors.New("min_txn_fee must be positive")
	}
	if p.MaxGroupSize < 1 {
		return xerrors.New("max_group_size must be at least 1")
	}
	return nil
}

// MinBalanceFor returns the minimum balance of an account opted into the
// given number of assets.
func (p Params) MinBalanceFor(assets int) uint64 {
	return p.MinBalance + uint64(assets)*p.AssetMinBalance
}
