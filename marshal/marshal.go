// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

// Package marshal decodes the subset of CPython's marshal wire format that
// `compile(src, filename, 'exec')` + `marshal.dumps(code)` ever actually
// produces for a module-level code object: the scalar constant types, tuples,
// (short) ASCII/unicode strings, byte strings, and nested code objects (spec
// §3/§4.2). It mirrors gad-lang-gad's encoder package (encoder/encoder.go) in
// shape — a tagged reader keyed on a leading type byte — generalized from
// that package's Go-value tags to marshal's CPython type tags.
package marshal

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"
)

// Type tags, ground: CPython's Python/marshal.c TYPE_* constants as of the
// 3.6 wire format this core targets (spec §9 decision: pin to Python 3.6).
const (
	tNull            = '0'
	tNone            = 'N'
	tFalse           = 'F'
	tTrue            = 'T'
	tStopIter        = 'S'
	tEllipsis        = '.'
	tInt             = 'i'
	tInt64           = 'I'
	tLong            = 'l'
	tFloat           = 'f'
	tBinaryFloat     = 'g'
	tComplex         = 'x'
	tBinaryComplex   = 'y'
	tString          = 's'
	tInterned        = 't'
	tRef             = 'r'
	tTuple           = '('
	tSmallTuple      = ')'
	tList            = '['
	tDict            = '{'
	tCode            = 'c'
	tUnicode         = 'u'
	tUnknown         = '?'
	tSet             = '<'
	tFrozenSet       = '>'
	tAscii           = 'a'
	tAsciiInterned   = 'A'
	tSmallAscii      = 'z'
	tSmallAsciiIntrn = 'Z'

	flagRef = 0x80
)

// Value is any decoded marshal constant. Concrete types mirror pypperoni's
// own Value sum type in value.go so the boundary conversion in
// fromMarshalValue (pycompile.go) is mechanical.
type Value any

type (
	NoneValue  struct{}
	BoolValue  bool
	IntValue   struct{ V *big.Int }
	FloatValue float64
	StrValue   string
	BytesValue []byte
	TupleValue []Value
)

// Code is the decoded form of a marshalled TYPE_CODE object.
type Code struct {
	ArgCount       int
	KwOnlyArgCount int
	NLocals        int
	StackSize      int
	Flags          uint32
	Code           []byte
	Consts         []Value
	Names          []string
	VarNames       []string
	FreeVars       []string
	CellVars       []string
	Filename       string
	QualName       string
	FirstLine      int
	LineTable      map[int]int // decoded from lnotab
}

type reader struct {
	buf  []byte
	pos  int
	refs []Value
}

func (r *reader) byte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("marshal: unexpected EOF at offset %d", r.pos)
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("marshal: unexpected EOF wanting %d bytes at offset %d", n, r.pos)
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *reader) int32() (int32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (r *reader) int64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// reserveRef pre-allocates a ref slot before decoding a value that might
// recursively reference itself (only code/tuple/etc need this in practice;
// we allocate unconditionally for every flagRef-tagged value, matching
// CPython's r_ref bookkeeping).
func (r *reader) reserveRef() int {
	r.refs = append(r.refs, nil)
	return len(r.refs) - 1
}

func (r *reader) setRef(idx int, v Value) { r.refs[idx] = v }

// Decode parses one top-level marshalled value out of data.
func Decode(data []byte) (Value, error) {
	r := &reader{buf: data}
	return r.value()
}

// DecodeCode parses a top-level marshalled code object, the only entry point
// HostPyCompiler needs.
func DecodeCode(data []byte) (*Code, error) {
	v, err := Decode(data)
	if err != nil {
		return nil, err
	}
	c, ok := v.(*Code)
	if !ok {
		return nil, fmt.Errorf("marshal: top-level value is not a code object (got %T)", v)
	}
	return c, nil
}

func (r *reader) value() (Value, error) {
	tagByte, err := r.byte()
	if err != nil {
		return nil, err
	}

	ref := tagByte&flagRef != 0
	tag := tagByte &^ flagRef

	var slot int
	if ref {
		slot = r.reserveRef()
	}

	v, err := r.valueBody(tag)
	if err != nil {
		return nil, err
	}
	if ref {
		r.setRef(slot, v)
	}
	return v, nil
}

func (r *reader) valueBody(tag byte) (Value, error) {
	switch tag {
	case tNull:
		return nil, nil
	case tNone:
		return NoneValue{}, nil
	case tFalse:
		return BoolValue(false), nil
	case tTrue:
		return BoolValue(true), nil
	case tStopIter, tEllipsis:
		return NoneValue{}, nil

	case tInt:
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		return IntValue{V: big.NewInt(int64(n))}, nil

	case tInt64:
		n, err := r.int64()
		if err != nil {
			return nil, err
		}
		return IntValue{V: big.NewInt(n)}, nil

	case tLong:
		return r.readLong()

	case tFloat:
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		s, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		var f float64
		fmt.Sscanf(string(s), "%g", &f)
		return FloatValue(f), nil

	case tBinaryFloat:
		b, err := r.take(8)
		if err != nil {
			return nil, err
		}
		return FloatValue(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil

	case tComplex, tBinaryComplex:
		return nil, fmt.Errorf("marshal: complex constants are unsupported")

	case tString, tInterned:
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		b, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		return BytesValue(append([]byte(nil), b...)), nil

	case tRef:
		idx, err := r.int32()
		if err != nil {
			return nil, err
		}
		if int(idx) < 0 || int(idx) >= len(r.refs) {
			return nil, fmt.Errorf("marshal: bad backreference %d", idx)
		}
		return r.refs[idx], nil

	case tTuple:
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		return r.readTupleElems(int(n))

	case tSmallTuple:
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		return r.readTupleElems(int(n))

	case tList, tSet, tFrozenSet:
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		return r.readTupleElems(int(n))

	case tDict:
		var out TupleValue
		for {
			k, err := r.value()
			if err != nil {
				return nil, err
			}
			if k == nil {
				break
			}
			v, err := r.value()
			if err != nil {
				return nil, err
			}
			out = append(out, k, v)
		}
		return out, nil

	case tUnicode, tAscii, tAsciiInterned:
		n, err := r.int32()
		if err != nil {
			return nil, err
		}
		b, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		return StrValue(string(b)), nil

	case tSmallAscii, tSmallAsciiIntrn:
		n, err := r.byte()
		if err != nil {
			return nil, err
		}
		b, err := r.take(int(n))
		if err != nil {
			return nil, err
		}
		return StrValue(string(b)), nil

	case tCode:
		return r.readCode()

	default:
		return nil, fmt.Errorf("marshal: unsupported type tag %q (0x%02x)", tag, tag)
	}
}

func (r *reader) readTupleElems(n int) (TupleValue, error) {
	out := make(TupleValue, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// readLong decodes CPython's TYPE_LONG digit encoding: a signed digit count
// (sign gives the number's sign, 0 means the integer 0) followed by that many
// 15-bit digits, least significant first, each stored as a 2-byte
// little-endian short.
func (r *reader) readLong() (Value, error) {
	n, err := r.int32()
	if err != nil {
		return nil, err
	}
	neg := n < 0
	count := int(n)
	if neg {
		count = -count
	}

	result := new(big.Int)
	shift := uint(0)
	digit := new(big.Int)
	for i := 0; i < count; i++ {
		d, err := r.take(2)
		if err != nil {
			return nil, err
		}
		digit.SetInt64(int64(binary.LittleEndian.Uint16(d) & 0x7fff))
		digit.Lsh(digit, shift)
		result.Or(result, digit)
		shift += 15
	}
	if neg {
		result.Neg(result)
	}
	return IntValue{V: result}, nil
}

func (r *reader) readStrings(n int) ([]string, error) {
	out := make([]string, n)
	for i := 0; i < n; i++ {
		v, err := r.value()
		if err != nil {
			return nil, err
		}
		out[i] = stringOf(v)
	}
	return out, nil
}

func stringOf(v Value) string {
	switch t := v.(type) {
	case StrValue:
		return string(t)
	case BytesValue:
		return string(t)
	default:
		return ""
	}
}

func (r *reader) readCode() (*Code, error) {
	argCount, err := r.int32()
	if err != nil {
		return nil, err
	}
	kwOnly, err := r.int32()
	if err != nil {
		return nil, err
	}
	nLocals, err := r.int32()
	if err != nil {
		return nil, err
	}
	stackSize, err := r.int32()
	if err != nil {
		return nil, err
	}
	flags, err := r.int32()
	if err != nil {
		return nil, err
	}

	codeVal, err := r.value()
	if err != nil {
		return nil, err
	}

	constsVal, err := r.value()
	if err != nil {
		return nil, err
	}
	namesVal, err := r.value()
	if err != nil {
		return nil, err
	}
	varNamesVal, err := r.value()
	if err != nil {
		return nil, err
	}
	freeVarsVal, err := r.value()
	if err != nil {
		return nil, err
	}
	cellVarsVal, err := r.value()
	if err != nil {
		return nil, err
	}
	filenameVal, err := r.value()
	if err != nil {
		return nil, err
	}
	nameVal, err := r.value()
	if err != nil {
		return nil, err
	}
	firstLine, err := r.int32()
	if err != nil {
		return nil, err
	}
	lnotabVal, err := r.value()
	if err != nil {
		return nil, err
	}

	c := &Code{
		ArgCount:       int(argCount),
		KwOnlyArgCount: int(kwOnly),
		NLocals:        int(nLocals),
		StackSize:      int(stackSize),
		Flags:          uint32(flags),
		Code:           []byte(codeVal.(BytesValue)),
		Consts:         []Value(tupleOf(constsVal)),
		Names:          stringsOf(tupleOf(namesVal)),
		VarNames:       stringsOf(tupleOf(varNamesVal)),
		FreeVars:       stringsOf(tupleOf(freeVarsVal)),
		CellVars:       stringsOf(tupleOf(cellVarsVal)),
		Filename:       stringOf(filenameVal),
		QualName:       stringOf(nameVal),
		FirstLine:      int(firstLine),
	}
	c.LineTable = decodeLnotab(c.FirstLine, lnotabBytes(lnotabVal))
	return c, nil
}

func tupleOf(v Value) TupleValue {
	if t, ok := v.(TupleValue); ok {
		return t
	}
	return nil
}

func stringsOf(t TupleValue) []string {
	out := make([]string, len(t))
	for i, v := range t {
		out[i] = stringOf(v)
	}
	return out
}

func lnotabBytes(v Value) []byte {
	switch t := v.(type) {
	case BytesValue:
		return []byte(t)
	case StrValue:
		return []byte(t)
	default:
		return nil
	}
}

// decodeLnotab expands CPython's co_lnotab run-length encoding (pairs of
// (byte-offset-delta, line-delta) bytes) into an explicit offset->line table,
// the form CodeObject.LineAt (codeobject.go) walks backward through.
func decodeLnotab(firstLine int, lnotab []byte) map[int]int {
	table := map[int]int{0: firstLine}
	offset := 0
	line := firstLine
	for i := 0; i+1 < len(lnotab); i += 2 {
		offset += int(lnotab[i])
		delta := int(int8(lnotab[i+1]))
		line += delta
		table[offset] = line
	}
	return table
}
