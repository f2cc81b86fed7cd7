package stellar

import (
	"math"
	"reflect"
	"testing"

	"github.com/stellar/go/xdr"
)

func symVal(s string) xdr.ScVal {
	sym := xdr.ScSymbol(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvSymbol, Sym: &sym}
}

func strVal(s string) xdr.ScVal {
	str := xdr.ScString(s)
	return xdr.ScVal{Type: xdr.ScValTypeScvString, Str: &str}
}

func u32Val(n uint32) xdr.ScVal {
	v := xdr.Uint32(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvU32, U32: &v}
}

func u64Val(n uint64) xdr.ScVal {
	v := xdr.Uint64(n)
	return xdr.ScVal{Type: xdr.ScValTypeScvU64, U64: &v}
}

func i128Val(hi int64, lo uint64) xdr.ScVal {
	v := xdr.Int128Parts{Hi: xdr.Int64(hi), Lo: xdr.Uint64(lo)}
	return xdr.ScVal{Type: xdr.ScValTypeScvI128, I128: &v}
}

func mapVal(entries ...xdr.ScMapEntry) xdr.ScVal {
	m := xdr.ScMap(entries)
	pm := &m
	return xdr.ScVal{Type: xdr.ScValTypeScvMap, Map: &pm}
}

func mapEntry(key, val xdr.ScVal) xdr.ScMapEntry {
	return xdr.ScMapEntry{Key: key, Val: val}
}

func TestDecodeVal_Scalars(t *testing.T) {
	if got := DecodeVal(strVal("hello")); got.Kind != KindString || got.Str != "hello" {
		t.Errorf("DecodeVal(string) = %+v; want KindString hello", got)
	}
	if got := DecodeVal(symVal("status")); got.Kind != KindSymbol || got.Str != "status" {
		t.Errorf("DecodeVal(symbol) = %+v; want KindSymbol status", got)
	}
	if got := DecodeVal(u32Val(7)); got.Kind != KindU32 || got.U64 != 7 {
		t.Errorf("DecodeVal(u32) = %+v; want KindU32 7", got)
	}
	if got := DecodeVal(u64Val(42)); got.Kind != KindU64 || got.U64 != 42 {
		t.Errorf("DecodeVal(u64) = %+v; want KindU64 42", got)
	}
	if got := DecodeVal(i128Val(0, 5000000)); got.Kind != KindI128 || got.I64 != 5000000 {
		t.Errorf("DecodeVal(i128) = %+v; want KindI128 5000000", got)
	}
}

func TestDecodeVal_I128OutOfRange(t *testing.T) {
	// Non-zero high word
	got := DecodeVal(i128Val(1, 0))
	if got.Kind != KindUnsupported || got.Tag != "i128-out-of-range" {
		t.Errorf("DecodeVal(i128 hi=1) = %+v; want unsupported i128-out-of-range", got)
	}

	// Low word past the int64 range
	got = DecodeVal(i128Val(0, math.MaxInt64+1))
	if got.Kind != KindUnsupported || got.Tag != "i128-out-of-range" {
		t.Errorf("DecodeVal(i128 lo>max) = %+v; want unsupported i128-out-of-range", got)
	}

	// Exactly at the ceiling is fine
	got = DecodeVal(i128Val(0, math.MaxInt64))
	if got.Kind != KindI128 || got.I64 != math.MaxInt64 {
		t.Errorf("DecodeVal(i128 lo=max) = %+v; want KindI128 max", got)
	}
}

func TestDecodeVal_UnsupportedTag(t *testing.T) {
	b := true
	got := DecodeVal(xdr.ScVal{Type: xdr.ScValTypeScvBool, B: &b})
	if got.Kind != KindUnsupported {
		t.Fatalf("DecodeVal(bool).Kind = %v; want KindUnsupported", got.Kind)
	}
	if got.Tag == "" {
		t.Error("Expected original wire tag to be preserved")
	}
}

func TestDecodeVal_NestedMapDeterministic(t *testing.T) {
	val := mapVal(
		mapEntry(symVal("stories"), mapVal(
			mapEntry(u64Val(1), mapVal(
				mapEntry(symVal("author"), strVal("GABC")),
				mapEntry(symVal("cid"), strVal("QmX")),
			)),
		)),
		mapEntry(symVal("next_sid"), u64Val(2)),
	)

	first := DecodeVal(val)
	second := DecodeVal(val)
	if !reflect.DeepEqual(first, second) {
		t.Error("DecodeVal is not deterministic for identical input")
	}

	if first.Kind != KindMap || len(first.Map) != 2 {
		t.Fatalf("DecodeVal(map) = %+v; want 2-entry map", first)
	}
	// Wire order is preserved
	if first.Map[0].Key.Str != "stories" || first.Map[1].Key.Str != "next_sid" {
		t.Errorf("map entries out of wire order: %q, %q", first.Map[0].Key.Str, first.Map[1].Key.Str)
	}
}

func TestValue_MapLookups(t *testing.T) {
	v := DecodeVal(mapVal(
		mapEntry(symVal("author"), strVal("GABC")),
		mapEntry(u64Val(3), strVal("third")),
	))

	if f, ok := v.GetSym("author"); !ok || f.Str != "GABC" {
		t.Errorf("GetSym(author) = %+v, %v; want GABC, true", f, ok)
	}
	if _, ok := v.GetSym("missing"); ok {
		t.Error("GetSym(missing) = true; want false")
	}
	if f, ok := v.GetU64(3); !ok || f.Str != "third" {
		t.Errorf("GetU64(3) = %+v, %v; want third, true", f, ok)
	}
	if _, ok := v.GetU64(4); ok {
		t.Error("GetU64(4) = true; want false")
	}
	// Lookups on non-map values miss rather than panic
	if _, ok := DecodeVal(u64Val(1)).GetSym("x"); ok {
		t.Error("GetSym on scalar = true; want false")
	}
}
