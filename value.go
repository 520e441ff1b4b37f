// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package pypperoni

import (
	"fmt"
	"math/big"
)

// Value is a Python literal constant as it appears in a CodeObject's Consts
// tuple (spec §3/§4.2): numbers, strings, bytes, tuples of same, and nested
// code objects. Ground: gad-lang-gad's Object interface (objects.go) — a
// small sum-of-concrete-types interface rather than an `any`-typed slice, so
// constant handling stays exhaustive-switchable everywhere it's consumed
// (addConstant, the marshal codec, register_const).
type Value interface {
	pyValue()
	String() string
}

type (
	NoneValue struct{}

	BoolValue bool

	// IntValue holds an arbitrary-precision Python int. big.Int is the
	// stdlib type for this; no pack example carries a bignum library and
	// Python ints are unboundedly wide, so this one field is the stdlib
	// exception noted in DESIGN.md.
	IntValue struct{ V *big.Int }

	FloatValue float64

	// StrValue is a Python str (unicode text).
	StrValue string

	// BytesValue is a Python bytes literal.
	BytesValue []byte

	TupleValue []Value

	// CodeValue wraps a nested CodeObject reached via LOAD_CONST (spec §4.4
	// MAKE_FUNCTION), so it can live in a Consts slice like any other Value.
	CodeValue struct{ Code *CodeObject }
)

func (NoneValue) pyValue()    {}
func (BoolValue) pyValue()    {}
func (IntValue) pyValue()     {}
func (FloatValue) pyValue()   {}
func (StrValue) pyValue()     {}
func (BytesValue) pyValue()   {}
func (TupleValue) pyValue()   {}
func (CodeValue) pyValue()    {}

func (NoneValue) String() string  { return "None" }
func (b BoolValue) String() string {
	if b {
		return "True"
	}
	return "False"
}
func (i IntValue) String() string   { return i.V.String() }
func (f FloatValue) String() string { return fmt.Sprintf("%g", float64(f)) }
func (s StrValue) String() string   { return fmt.Sprintf("%q", string(s)) }
func (b BytesValue) String() string { return fmt.Sprintf("%q", []byte(b)) }
func (t TupleValue) String() string { return fmt.Sprintf("%v", []Value(t)) }
func (c CodeValue) String() string  { return c.Code.String() }

// NewInt is a convenience constructor for small integer constants.
func NewInt(v int64) IntValue { return IntValue{V: big.NewInt(v)} }

// Hashable reports whether a Value can key a Go map, i.e. whether the
// Emission Context's constant-dedup cache (§4.2 invariant (ii): dedup is
// permitted but not required) can use it as a map key. Tuples and code
// objects are excluded even though Python tuples are technically hashable,
// because our dedup cache only needs to cover the common literal case
// (spec explicitly permits skipping dedup for the rest).
func Hashable(v Value) bool {
	switch v.(type) {
	case NoneValue, BoolValue, FloatValue, StrValue:
		return true
	case IntValue:
		return true
	default:
		return false
	}
}

// hashKey returns a comparable Go value usable as a map key for Hashable
// values (IntValue wraps a *big.Int, which is not itself comparable).
func hashKey(v Value) any {
	switch t := v.(type) {
	case IntValue:
		return t.V.String()
	default:
		return v
	}
}
