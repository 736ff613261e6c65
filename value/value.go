// Package value implements the typed-value sum type exchanged over the
// Registry's command protocol and status multicast.
//
// nImO's client-side serialization library is an external collaborator
// (spec.md §1); no real implementation of it is reachable from this
// module, and its sum-type shape (logical, integer, double, string,
// blob, array, map, set) doesn't match any off-the-shelf wire format
// in the surrounding ecosystem (those are either typed schemas like
// protobuf or dynamically-typed-but-different shapes like JSON/msgpack).
// This package is therefore the concrete implementation of that role;
// see DESIGN.md for the reasoning.
package value

import "fmt"

// Kind identifies which alternative of the sum type a Value holds.
type Kind byte

const (
	KindInvalid Kind = iota
	KindLogical
	KindInteger
	KindDouble
	KindString
	KindBlob
	KindArray
	KindMap
	KindSet
)

func (k Kind) String() string {
	switch k {
	case KindLogical:
		return "logical"
	case KindInteger:
		return "integer"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindBlob:
		return "blob"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	default:
		return "invalid"
	}
}

// MapEntry is one key/value pair of a Map value. Order is preserved so
// that encoding and iteration are deterministic, mirroring the ordered
// map semantics of the original nImO::Map container.
type MapEntry struct {
	Key   Value
	Value Value
}

// Value is an immutable typed-value sum type. The zero Value is Invalid.
type Value struct {
	kind   Kind
	logic  bool
	intg   int64
	dbl    float64
	str    string
	blob   []byte
	arr    []Value
	mp     []MapEntry
	setVal []Value
}

// Kind reports which alternative this Value holds.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Constructors.

func Logical(b bool) Value    { return Value{kind: KindLogical, logic: b} }
func Integer(i int64) Value   { return Value{kind: KindInteger, intg: i} }
func Double(d float64) Value  { return Value{kind: KindDouble, dbl: d} }
func String(s string) Value   { return Value{kind: KindString, str: s} }
func Blob(b []byte) Value     { return Value{kind: KindBlob, blob: append([]byte(nil), b...)} }
func Array(vs []Value) Value  { return Value{kind: KindArray, arr: append([]Value(nil), vs...)} }
func Set(vs []Value) Value    { return Value{kind: KindSet, setVal: append([]Value(nil), vs...)} }

// Map builds a Map value from ordered entries. Keys are not deduplicated
// by this constructor — callers building a catalog-facing map should
// ensure uniqueness themselves.
func Map(entries []MapEntry) Value {
	return Value{kind: KindMap, mp: append([]MapEntry(nil), entries...)}
}

// Accessors. Each panics if Kind() doesn't match — callers that parse
// untrusted wire input should check Kind() first (see protocol package,
// which always does).

func (v Value) AsLogical() bool {
	v.mustBe(KindLogical)
	return v.logic
}

func (v Value) AsInteger() int64 {
	v.mustBe(KindInteger)
	return v.intg
}

func (v Value) AsDouble() float64 {
	v.mustBe(KindDouble)
	return v.dbl
}

func (v Value) AsString() string {
	v.mustBe(KindString)
	return v.str
}

func (v Value) AsBlob() []byte {
	v.mustBe(KindBlob)
	return v.blob
}

func (v Value) AsArray() []Value {
	v.mustBe(KindArray)
	return v.arr
}

func (v Value) AsMap() []MapEntry {
	v.mustBe(KindMap)
	return v.mp
}

func (v Value) AsSet() []Value {
	v.mustBe(KindSet)
	return v.setVal
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value: wrong kind: want %s, have %s", k, v.kind))
	}
}

// Equal reports deep, order-sensitive equality. Two Array/Map/Set values
// compare equal only if their elements are equal and in the same order,
// matching the original nImO container's stable iteration contract.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInvalid:
		return true
	case KindLogical:
		return a.logic == b.logic
	case KindInteger:
		return a.intg == b.intg
	case KindDouble:
		return a.dbl == b.dbl
	case KindString:
		return a.str == b.str
	case KindBlob:
		return string(a.blob) == string(b.blob)
	case KindArray, KindSet:
		av, bv := a.arr, b.arr
		if a.kind == KindSet {
			av, bv = a.setVal, b.setVal
		}
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.mp) != len(b.mp) {
			return false
		}
		for i := range a.mp {
			if !Equal(a.mp[i].Key, b.mp[i].Key) || !Equal(a.mp[i].Value, b.mp[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
