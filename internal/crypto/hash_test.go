package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSha512Half(t *testing.T) {
	tt := []struct {
		description string
		input       []byte
		expected    string
	}{
		{
			description: "empty input",
			input:       nil,
			expected:    "cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce",
		},
		{
			description: "abc",
			input:       []byte("abc"),
			expected:    "ddaf35a193617abacc417349ae20413112e6fa4e89a97ea20a9eeee64b55d39a",
		},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			got := Sha512Half(tc.input)
			require.Equal(t, tc.expected, hex.EncodeToString(got[:]))
		})
	}
}

func TestHash160(t *testing.T) {
	tt := []struct {
		description string
		input       []byte
		expected    string
	}{
		{
			description: "empty input",
			input:       nil,
			expected:    "b472a266d0bd89c13706a4132ccfb16f7c3b9fcb",
		},
		{
			description: "ascii input",
			input:       []byte("stabled"),
			expected:    "e65eb0416f1c0d780a3ecc30f5be24329a74385b",
		},
		{
			description: "compressed pubkey shaped input",
			input:       append([]byte{0x02}, make33ones()...),
			expected:    "9b596d772a3bfe0335f36c38357f026221212c90",
		},
	}

	for _, tc := range tt {
		t.Run(tc.description, func(t *testing.T) {
			got := Hash160(tc.input)
			require.Equal(t, tc.expected, hex.EncodeToString(got[:]))
		})
	}
}

func make33ones() []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = 0x01
	}
	return b
}

func TestDoubleSha256Deterministic(t *testing.T) {
	a := DoubleSha256([]byte("payload"))
	b := DoubleSha256([]byte("payload"))
	c := DoubleSha256([]byte("payloae"))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
