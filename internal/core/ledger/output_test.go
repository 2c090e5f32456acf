package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputRefKeyRoundTrip(t *testing.T) {
	ref := OutputRef{Index: 7}
	ref.TxHash[0] = 0xAB
	ref.TxHash[31] = 0xCD

	key := ref.Key()
	require.Len(t, key, OutputRefKeySize)

	back, err := OutputRefFromKey(key)
	require.NoError(t, err)
	assert.Equal(t, ref, back)
}

func TestOutputRefFromKeyRejectsBadLength(t *testing.T) {
	_, err := OutputRefFromKey([]byte{1, 2, 3})
	require.Error(t, err)

	_, err = OutputRefFromKey(make([]byte, OutputRefKeySize+1))
	require.Error(t, err)
}

func TestOutputRefString(t *testing.T) {
	ref := OutputRef{Index: 3}
	ref.TxHash[0] = 0xFF
	s := ref.String()
	assert.Contains(t, s, "ff")
	assert.Contains(t, s, ":3")
}

func TestOutputRefIsZero(t *testing.T) {
	assert.True(t, OutputRef{}.IsZero())
	assert.False(t, OutputRef{Index: 1}.IsZero())
}

func TestOutputCloneIsIndependent(t *testing.T) {
	o := Output{
		Address: EntityID{0x01},
		Value:   NativeValue(100),
		Datum:   []byte{0x83, 0x01, 0x02},
	}

	c := o.Clone()
	c.Value.Add(NativeAssetID, 50)
	c.Datum[0] = 0x00

	assert.Equal(t, int64(100), o.Value.Native())
	assert.Equal(t, byte(0x83), o.Datum[0])
	assert.True(t, o.HasDatum())
	assert.False(t, Output{}.HasDatum())
}
