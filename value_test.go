package pypperoni

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueStringFormatting(t *testing.T) {
	require.Equal(t, "None", NoneValue{}.String())
	require.Equal(t, "True", BoolValue(true).String())
	require.Equal(t, "False", BoolValue(false).String())
	require.Equal(t, "42", NewInt(42).String())
	require.Equal(t, `"hi"`, StrValue("hi").String())
}

func TestHashableClassifiesScalarsOnly(t *testing.T) {
	require.True(t, Hashable(NoneValue{}))
	require.True(t, Hashable(BoolValue(true)))
	require.True(t, Hashable(FloatValue(1.5)))
	require.True(t, Hashable(StrValue("x")))
	require.True(t, Hashable(NewInt(7)))

	require.False(t, Hashable(TupleValue{NewInt(1)}))
	require.False(t, Hashable(CodeValue{Code: &CodeObject{}}))
	require.False(t, Hashable(BytesValue("b")))
}

func TestHashKeyDistinguishesBigIntsByValue(t *testing.T) {
	a := hashKey(IntValue{V: big.NewInt(1)})
	b := hashKey(IntValue{V: big.NewInt(1)})
	c := hashKey(IntValue{V: big.NewInt(2)})
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
