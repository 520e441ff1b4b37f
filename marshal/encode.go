// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package marshal

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

// writer accumulates the marshal wire format bytes, the mirror image of
// reader (spec §4.2: "bit-exact with CPython's PyMarshal_WriteObjectToString").
// No ref/backreference compression is performed on encode: the constant
// pools this core ever writes come from a single flat RegisterConst table,
// so every entry is emitted standalone (the reader still accepts it, since
// flagRef is optional per value).
type writer struct {
	buf []byte
}

func (w *writer) byte(b byte)        { w.buf = append(w.buf, b) }
func (w *writer) bytes(b []byte)     { w.buf = append(w.buf, b...) }
func (w *writer) int32(n int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(n))
	w.bytes(b[:])
}
func (w *writer) int64(n int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(n))
	w.bytes(b[:])
}

// Encode serializes one top-level Value into the marshal wire format.
// Supports exactly the type set this core's constant pool ever produces:
// None, bool, arbitrary-precision int, float, str, bytes, tuple (spec §4.2
// §3 "scalar constant types, tuples... and nested code objects" — nested
// code objects are never embedded as *constants* here, since LOAD_CONST
// keeps code-object constants out of the pool and MAKE_FUNCTION consumes
// them at compile time (lower_load.go), so Code values are out of scope for
// this encoder).
func Encode(v Value) ([]byte, error) {
	w := &writer{}
	if err := w.value(v); err != nil {
		return nil, err
	}
	return w.buf, nil
}

func (w *writer) value(v Value) error {
	switch t := v.(type) {
	case nil:
		w.byte(tNull)
		return nil

	case NoneValue:
		w.byte(tNone)
		return nil

	case BoolValue:
		if t {
			w.byte(tTrue)
		} else {
			w.byte(tFalse)
		}
		return nil

	case IntValue:
		return w.writeInt(t.V)

	case FloatValue:
		w.byte(tBinaryFloat)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], math.Float64bits(float64(t)))
		w.bytes(b[:])
		return nil

	case StrValue:
		w.byte(tUnicode)
		b := []byte(string(t))
		w.int32(int32(len(b)))
		w.bytes(b)
		return nil

	case BytesValue:
		w.byte(tString)
		w.int32(int32(len(t)))
		w.bytes([]byte(t))
		return nil

	case TupleValue:
		w.byte(tTuple)
		w.int32(int32(len(t)))
		for _, elem := range t {
			if err := w.value(elem); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("marshal: Encode: unsupported value type %T", v)
	}
}

// writeInt picks the narrowest CPython tag that round-trips n: a plain
// 32-bit TYPE_INT, a TYPE_INT64 escape hatch this core's reader also
// accepts, or the arbitrary-precision TYPE_LONG digit encoding (base
// 2**15, little-endian, ground: reader.readLong run in reverse).
func (w *writer) writeInt(n *big.Int) error {
	if n.IsInt64() {
		v := n.Int64()
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			w.byte(tInt)
			w.int32(int32(v))
			return nil
		}
		w.byte(tInt64)
		w.int64(v)
		return nil
	}

	w.byte(tLong)
	neg := n.Sign() < 0
	mag := new(big.Int).Abs(n)

	var digits []uint32
	mask := big.NewInt(0x7fff)
	tmp := new(big.Int).Set(mag)
	for tmp.Sign() != 0 {
		d := new(big.Int).And(tmp, mask)
		digits = append(digits, uint32(d.Uint64()))
		tmp.Rsh(tmp, 15)
	}

	count := int32(len(digits))
	if neg {
		count = -count
	}
	w.int32(count)
	for _, d := range digits {
		w.byte(byte(d))
		w.byte(byte(d >> 8))
	}
	return nil
}
