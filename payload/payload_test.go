package payload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByte_PublishedSequence(t *testing.T) {
	// The first eight bytes are part of the external console contract.
	expected := []byte{0x10, 0x21, 0x32, 0x43, 0x54, 0x65, 0x76, 0x87}

	for i, want := range expected {
		require.Equal(t, want, Byte(i), "byte %d", i)
	}
}

func TestByte_WrapsModulo256(t *testing.T) {
	// 0x10 + 0x11*15 = 0x10F and 0x10 + 0x11*24 = 0x1A8; both must
	// truncate to a single byte.
	require.Equal(t, byte(0x0F), Byte(15))
	require.Equal(t, byte(0xA8), Byte(24))
}

func TestContent(t *testing.T) {
	c := Content()

	require.Len(t, c, Size)
	for i, b := range c {
		require.Equal(t, Byte(i), b, "byte %d", i)
	}
}

func TestContent_Deterministic(t *testing.T) {
	require.Equal(t, Content(), Content())
}
