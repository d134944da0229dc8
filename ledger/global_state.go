package ledger

import (
	"go.dedis.ch/protobuf"
	"golang.org/x/xerrors"
)

// ValueType tells which field of a KeyValue is set.
type ValueType uint32

const (
	// BytesValue marks a byte-slice value.
	BytesValue ValueType = iota + 1
	// UintValue marks an unsigned integer value.
	UintValue
)

// KeyValue is one entry of an application's global state.
type KeyValue struct {
	Key   string
	Type  ValueType
	Bytes []byte
	Uint  uint64
}

// GlobalState is the key/value store of an application. Keys that were never
// written are absent, which is different from being zero.
type GlobalState struct {
	Entries []KeyValue
}

// DecodeGlobalState decodes the protobuf form stored on the ledger.
func DecodeGlobalState(buf []byte) (GlobalState, error) {
	gs := GlobalState{}
	if len(buf) == 0 {
		return gs, nil
	}
	if err := protobuf.Decode(buf, &gs); err != nil {
		return GlobalState{}, xerrors.Errorf("decoding global state: %w", err)
	}
	return gs, nil
}

// Encode returns the protobuf form of the state.
func (gs *GlobalState) Encode() ([]byte, error) {
	buf, err := protobuf.Encode(gs)
	if err != nil {
		return nil, xerrors.Errorf("encoding global state: %w", err)
	}
	return buf, nil
}

func (gs *GlobalState) find(key string) int {
	for i, kv := range gs.Entries {
		if kv.Key == key {
			return i
		}
	}
	return -1
}

// Uint returns the integer stored under key.
func (gs *GlobalState) Uint(key string) (uint64, bool) {
	i := gs.find(key)
	if i < 0 || gs.Entries[i].Type != UintValue {
		return 0, false
	}
	return gs.Entries[i].Uint, true
}

// Bytes returns the byte slice stored under key.
func (gs *GlobalState) Bytes(key string) ([]byte, bool) {
	i := gs.find(key)
	if i < 0 || gs.Entries[i].Type != BytesValue {
		return nil, false
	}
	return gs.Entries[i].Bytes, true
}

// SetUint stores an integer under key.
func (gs *GlobalState) SetUint(key string, v uint64) {
	gs.set(KeyValue{Key: key, Type: UintValue, Uint: v})
}

// SetBytes stores a byte slice under key.
func (gs *GlobalState) SetBytes(key string, v []byte) {
	gs.set(KeyValue{Key: key, Type: BytesValue, Bytes: append([]byte{}, v...)})
}

func (gs *GlobalState) set(kv KeyValue) {
	if i := gs.find(kv.Key); i >= 0 {
		gs.Entries[i] = kv
		return
	}
	gs.Entries = append(gs.Entries, kv)
}
