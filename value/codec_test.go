package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Value{
		Value{},
		Logical(true),
		Logical(false),
		Integer(-42),
		Integer(0),
		Double(3.5),
		String(""),
		String("hello"),
		Blob([]byte{1, 2, 3}),
		Array([]Value{Integer(1), String("x"), Logical(true)}),
		Set([]Value{Integer(1), Integer(2)}),
		Map([]MapEntry{{Key: String("k"), Value: Integer(7)}}),
	}

	for _, v := range cases {
		encoded, err := Encode(v)
		require.NoError(t, err)

		decoded, n, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, len(encoded), n)
		assert.True(t, Equal(v, decoded), "round trip mismatch for kind %s", v.Kind())
	}
}

func TestDecodeConsumesOnlyOneValue(t *testing.T) {
	first, err := Encode(Integer(1))
	require.NoError(t, err)
	second, err := Encode(String("tail"))
	require.NoError(t, err)

	stream := append(append([]byte(nil), first...), second...)

	v1, n1, err := Decode(stream)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v1.AsInteger())

	v2, _, err := Decode(stream[n1:])
	require.NoError(t, err)
	assert.Equal(t, "tail", v2.AsString())
}

func TestDecodeTruncatedInputErrors(t *testing.T) {
	_, _, err := Decode([]byte{tagInteger, 0, 0})
	require.Error(t, err)
}

func TestDecodeUnknownTagErrors(t *testing.T) {
	_, _, err := Decode([]byte{0xFF})
	require.Error(t, err)
}

func TestNestedContainers(t *testing.T) {
	inner := Array([]Value{Integer(1), Integer(2)})
	outer := Map([]MapEntry{
		{Key: String("nums"), Value: inner},
		{Key: String("flag"), Value: Logical(true)},
	})

	encoded, err := Encode(outer)
	require.NoError(t, err)

	decoded, _, err := Decode(encoded)
	require.NoError(t, err)
	assert.True(t, Equal(outer, decoded))
}
