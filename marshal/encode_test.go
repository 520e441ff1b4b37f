// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package marshal

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	data, err := Encode(v)
	require.NoError(t, err)
	out, err := Decode(data)
	require.NoError(t, err)
	return out
}

func TestEncodeNone(t *testing.T) {
	require.Equal(t, NoneValue{}, roundTrip(t, NoneValue{}))
}

func TestEncodeBool(t *testing.T) {
	require.Equal(t, BoolValue(true), roundTrip(t, BoolValue(true)))
	require.Equal(t, BoolValue(false), roundTrip(t, BoolValue(false)))
}

func TestEncodeSmallInt(t *testing.T) {
	v := IntValue{V: big.NewInt(42)}
	out, ok := roundTrip(t, v).(IntValue)
	require.True(t, ok)
	require.Equal(t, int64(42), out.V.Int64())
}

func TestEncodeNegativeSmallInt(t *testing.T) {
	v := IntValue{V: big.NewInt(-7)}
	out, ok := roundTrip(t, v).(IntValue)
	require.True(t, ok)
	require.Equal(t, int64(-7), out.V.Int64())
}

func TestEncodeInt64BoundaryJustAboveInt32(t *testing.T) {
	n := big.NewInt(math.MaxInt32)
	n.Add(n, big.NewInt(1))
	out, ok := roundTrip(t, IntValue{V: n}).(IntValue)
	require.True(t, ok)
	require.Equal(t, n.String(), out.V.String())
}

func TestEncodeArbitraryPrecisionInt(t *testing.T) {
	n, ok := new(big.Int).SetString("123456789012345678901234567890123456789", 10)
	require.True(t, ok)
	out, okT := roundTrip(t, IntValue{V: n}).(IntValue)
	require.True(t, okT)
	require.Equal(t, n.String(), out.V.String())
}

func TestEncodeArbitraryPrecisionNegativeInt(t *testing.T) {
	n, ok := new(big.Int).SetString("-987654321098765432109876543210987654321", 10)
	require.True(t, ok)
	out, okT := roundTrip(t, IntValue{V: n}).(IntValue)
	require.True(t, okT)
	require.Equal(t, n.String(), out.V.String())
}

func TestEncodeFloat(t *testing.T) {
	out, ok := roundTrip(t, FloatValue(3.5)).(FloatValue)
	require.True(t, ok)
	require.Equal(t, FloatValue(3.5), out)
}

func TestEncodeString(t *testing.T) {
	require.Equal(t, StrValue("hello"), roundTrip(t, StrValue("hello")))
}

func TestEncodeBytes(t *testing.T) {
	require.Equal(t, BytesValue{1, 2, 3}, roundTrip(t, BytesValue{1, 2, 3}))
}

func TestEncodeNestedTuple(t *testing.T) {
	v := TupleValue{StrValue("a"), IntValue{V: big.NewInt(1)}, TupleValue{BoolValue(true)}}
	out, ok := roundTrip(t, v).(TupleValue)
	require.True(t, ok)
	require.Len(t, out, 3)
	require.Equal(t, StrValue("a"), out[0])
	inner, ok := out[2].(TupleValue)
	require.True(t, ok)
	require.Equal(t, BoolValue(true), inner[0])
}

func TestEncodeUnsupportedTypeErrors(t *testing.T) {
	_, err := Encode(&Code{QualName: "x"})
	require.Error(t, err)
}
