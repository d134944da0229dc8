package auctions

import "golang.org/x/xerrors"

// Every error aborts the group the call was submitted in.
var (
	// ErrTimingViolation is returned for calls outside the window they are
	// allowed in.
	ErrTimingViolation = xerrors.New("timing violation")
	// ErrBidTooLow is returned for bids under the bid floor or under the
	// leading bid plus the minimum increment.
	ErrBidTooLow = xerrors.New("bid too low")
	// ErrMissingReference is returned when a call does not reference an
	// account or asset it has to pay out to.
	ErrMissingReference = xerrors.New("missing reference")
	// ErrAssetMismatch is returned when setup references or deposits
	// something else than the auctioned lot.
	ErrAssetMismatch = xerrors.New("asset mismatch")
	// ErrUnauthorizedCloser is returned when someone other than the seller
	// or the creator closes the auction before it starts.
	ErrUnauthorizedCloser = xerrors.New("unauthorized closer")
	// ErrNotSetUp is returned when bidding on an auction whose escrow does
	// not hold the lot.
	ErrNotSetUp = xerrors.New("auction not set up")
	// ErrAlreadySetUp is returned by a second setup.
	ErrAlreadySetUp = xerrors.New("auction already set up")
	// ErrMalformedGroup is returned when the transactions around the call do
	// not have the expected shape.
	ErrMalformedGroup = xerrors.New("malformed group")
	// ErrMalformedCall is returned for bad creation arguments.
	ErrMalformedCall = xerrors.New("malformed call")
	// ErrMalformedState is returned when the stored state cannot be parsed.
	ErrMalformedState = xerrors.New("malformed state")
	// ErrUnknownCommand is returned for commands other than setup and bid.
	ErrUnknownCommand = xerrors.New("unknown command")
)
