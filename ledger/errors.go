package ledger

import "golang.org/x/xerrors"

var (
	// ErrOverspend is returned when a sender cannot cover an amount and its fee.
	ErrOverspend = xerrors.New("overspend")
	// ErrBelowMinBalance is returned when a group leaves an account under its
	// minimum balance.
	ErrBelowMinBalance = xerrors.New("balance below minimum")
	// ErrNotOptedIn is returned when an asset moves to or from an account that
	// does not hold it.
	ErrNotOptedIn = xerrors.New("account not opted into asset")
	// ErrUnknownApp is returned for calls to applications that do not exist.
	ErrUnknownApp = xerrors.New("unknown application")
	// ErrUnknownAsset is returned for assets that were never created.
	ErrUnknownAsset = xerrors.New("unknown asset")
	// ErrUnknownContract is returned when no contract is registered under an id.
	ErrUnknownContract = xerrors.New("unknown contract")
	// ErrGroupTooLarge is returned when a group exceeds Params.MaxGroupSize.
	ErrGroupTooLarge = xerrors.New("group too large")
	// ErrGroupMalformed is returned for groups or transactions that cannot be
	// interpreted.
	ErrGroupMalformed = xerrors.New("malformed group")
	// ErrUnauthorizedInner is returned when a contract tries to move funds
	// that are not held by its own escrow.
	ErrUnauthorizedInner = xerrors.New("inner transaction not sent by escrow")
)
