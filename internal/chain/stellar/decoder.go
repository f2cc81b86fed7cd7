package stellar

import (
	"fmt"

	"github.com/stellar/go/strkey"
	"github.com/stellar/go/xdr"
)

// Kind tags a decoded contract-storage value.
type Kind int

const (
	KindString Kind = iota
	KindSymbol
	KindAddress
	KindU32
	KindI32
	KindU64
	KindI128
	KindMap
	KindUnsupported
)

// MapEntry is one key/value pair of a decoded map, in wire order.
type MapEntry struct {
	Key Value
	Val Value
}

// Value is the generic in-memory form of a decoded ScVal. Decoding is pure
// and deterministic; wire tags this service has no use for come back as
// KindUnsupported (with the tag name in Tag) instead of failing the whole
// decode.
type Value struct {
	Kind Kind
	Str  string     // String, Symbol, Address
	U64  uint64     // U32, U64
	I64  int64      // I32, I128
	Map  []MapEntry // Map
	Tag  string     // Unsupported: the original wire tag name
}

// DecodeVal converts an ScVal into a Value tree.
//
// i128 values keep only the low 64 bits: token quantities in this system
// never exceed that ceiling. A value that does (non-zero high word, or a
// low word past the int64 range) is reported as unsupported rather than
// silently truncated.
func DecodeVal(val xdr.ScVal) Value {
	switch val.Type {
	case xdr.ScValTypeScvString:
		if val.Str != nil {
			return Value{Kind: KindString, Str: string(*val.Str)}
		}
	case xdr.ScValTypeScvSymbol:
		if val.Sym != nil {
			return Value{Kind: KindSymbol, Str: string(*val.Sym)}
		}
	case xdr.ScValTypeScvAddress:
		if addr, err := decodeAddress(val); err == nil {
			return Value{Kind: KindAddress, Str: addr}
		}
	case xdr.ScValTypeScvU32:
		if val.U32 != nil {
			return Value{Kind: KindU32, U64: uint64(*val.U32)}
		}
	case xdr.ScValTypeScvI32:
		if val.I32 != nil {
			return Value{Kind: KindI32, I64: int64(*val.I32)}
		}
	case xdr.ScValTypeScvU64:
		if val.U64 != nil {
			return Value{Kind: KindU64, U64: uint64(*val.U64)}
		}
	case xdr.ScValTypeScvI128:
		if val.I128 != nil {
			if val.I128.Hi != 0 || uint64(val.I128.Lo) > uint64(1<<63-1) {
				return Value{Kind: KindUnsupported, Tag: "i128-out-of-range"}
			}
			return Value{Kind: KindI128, I64: int64(val.I128.Lo)}
		}
	case xdr.ScValTypeScvMap:
		if val.Map != nil {
			entries := make([]MapEntry, 0, len(**val.Map))
			for _, e := range **val.Map {
				entries = append(entries, MapEntry{Key: DecodeVal(e.Key), Val: DecodeVal(e.Val)})
			}
			return Value{Kind: KindMap, Map: entries}
		}
	}
	return Value{Kind: KindUnsupported, Tag: val.Type.String()}
}

// decodeAddress renders an ScAddress in its canonical string form.
// Supports both G... (account) and C... (contract) addresses.
func decodeAddress(val xdr.ScVal) (string, error) {
	if val.Address == nil {
		return "", fmt.Errorf("nil address")
	}

	addr := val.Address
	switch addr.Type {
	case xdr.ScAddressTypeScAddressTypeAccount:
		if addr.AccountId == nil {
			return "", fmt.Errorf("nil account ID")
		}
		return addr.AccountId.Address(), nil

	case xdr.ScAddressTypeScAddressTypeContract:
		if addr.ContractId == nil {
			return "", fmt.Errorf("nil contract ID")
		}
		contractID := *addr.ContractId
		return strkey.Encode(strkey.VersionByteContract, contractID[:])

	default:
		return "", fmt.Errorf("unknown address type: %v", addr.Type)
	}
}

// Text returns the string form of a textual value.
func (v Value) Text() (string, bool) {
	switch v.Kind {
	case KindString, KindSymbol, KindAddress:
		return v.Str, true
	}
	return "", false
}

// Uint returns the value as an unsigned integer.
func (v Value) Uint() (uint64, bool) {
	switch v.Kind {
	case KindU32, KindU64:
		return v.U64, true
	case KindI32, KindI128:
		if v.I64 >= 0 {
			return uint64(v.I64), true
		}
	}
	return 0, false
}

// Int returns the value as a signed integer.
func (v Value) Int() (int64, bool) {
	switch v.Kind {
	case KindI32, KindI128:
		return v.I64, true
	case KindU32, KindU64:
		return int64(v.U64), true
	}
	return 0, false
}

// GetSym looks up a map entry whose key is the given symbol.
func (v Value) GetSym(name string) (Value, bool) {
	return v.lookup(KindSymbol, name, 0)
}

// GetStr looks up a map entry whose key is the given string.
func (v Value) GetStr(key string) (Value, bool) {
	return v.lookup(KindString, key, 0)
}

// GetU64 looks up a map entry whose key is the given u64.
func (v Value) GetU64(key uint64) (Value, bool) {
	return v.lookup(KindU64, "", key)
}

// lookup matches map keys by kind and content; map keys have no defined
// order on the wire, so this is a scan.
func (v Value) lookup(kind Kind, s string, n uint64) (Value, bool) {
	if v.Kind != KindMap {
		return Value{}, false
	}
	for _, e := range v.Map {
		if e.Key.Kind != kind {
			continue
		}
		switch kind {
		case KindSymbol, KindString, KindAddress:
			if e.Key.Str == s {
				return e.Val, true
			}
		case KindU32, KindU64:
			if e.Key.U64 == n {
				return e.Val, true
			}
		}
	}
	return Value{}, false
}
