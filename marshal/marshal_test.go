// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

package marshal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeScalars(t *testing.T) {
	v, err := Decode([]byte{tNone})
	require.NoError(t, err)
	require.Equal(t, NoneValue{}, v)

	v, err = Decode([]byte{tTrue})
	require.NoError(t, err)
	require.Equal(t, BoolValue(true), v)

	v, err = Decode([]byte{tInt, 0x2a, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, int64(42), v.(IntValue).V.Int64())
}

func TestDecodeShortAscii(t *testing.T) {
	v, err := Decode([]byte{tSmallAscii, 5, 'h', 'e', 'l', 'l', 'o'})
	require.NoError(t, err)
	require.Equal(t, StrValue("hello"), v)
}

func TestDecodeSmallTuple(t *testing.T) {
	data := []byte{tSmallTuple, 2, tInt, 1, 0, 0, 0, tInt, 2, 0, 0, 0}
	v, err := Decode(data)
	require.NoError(t, err)
	tup := v.(TupleValue)
	require.Len(t, tup, 2)
	require.Equal(t, int64(1), tup[0].(IntValue).V.Int64())
	require.Equal(t, int64(2), tup[1].(IntValue).V.Int64())
}

func TestDecodeLong(t *testing.T) {
	// 0x7fff | (0x1 << 15) == 65535, two 2-byte digits, positive.
	data := []byte{tLong, 2, 0, 0, 0, 0xff, 0x7f, 1, 0}
	v, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, int64(65535), v.(IntValue).V.Int64())
}

func TestDecodeBackref(t *testing.T) {
	// A small tuple of two references to the same interned short-ascii string.
	data := []byte{
		tSmallTuple, 2,
		tSmallAscii | flagRef, 1, 'x',
		tRef, 0, 0, 0, 0,
	}
	v, err := Decode(data)
	require.NoError(t, err)
	tup := v.(TupleValue)
	require.Equal(t, StrValue("x"), tup[0])
	require.Equal(t, StrValue("x"), tup[1])
}

func TestDecodeLnotab(t *testing.T) {
	table := decodeLnotab(1, []byte{0, 1, 4, 2})
	require.Equal(t, 2, table[0])
	require.Equal(t, 4, table[4])
}
