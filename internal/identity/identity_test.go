package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain digits", "6281234567890", "6281234567890"},
		{"international formatting", "+62 812-3456-7890", "6281234567890"},
		{"parentheses and dots", "(628) 1234.567.890", "6281234567890"},
		{"letters stripped", "call62812a34567890b", "6281234567890"},
		{"empty", "", ""},
		{"no digits", "+-() abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestNormalizeAndValidate(t *testing.T) {
	key, err := NormalizeAndValidate("+62 812-3456-7890")
	require.NoError(t, err)
	assert.Equal(t, "6281234567890", key)

	// 9 digits, one short of the minimum.
	_, err = NormalizeAndValidate("123456789")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	// 16 digits, one past the maximum.
	_, err = NormalizeAndValidate("1234567890123456")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	// Formatting alone never rescues an invalid key.
	_, err = NormalizeAndValidate("+1 (23) 45-67")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	// Bounds are inclusive.
	_, err = NormalizeAndValidate("1234567890")
	assert.NoError(t, err)
	_, err = NormalizeAndValidate("123456789012345")
	assert.NoError(t, err)
}

func TestFormatPairingCode(t *testing.T) {
	assert.Equal(t, "ABCD-1234", FormatPairingCode("ABCD1234"))
	assert.Equal(t, "AB", FormatPairingCode("AB"))
	assert.Equal(t, "ABCD-12", FormatPairingCode("ABCD12"))
	assert.Equal(t, "", FormatPairingCode("  "))
}
