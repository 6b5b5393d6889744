package factordb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0", "0"},
		{"42", "42"},
		{"0042", "42"},
		{"  17\n", "17"},
		{"18446744073709551616", "18446744073709551616"},
		{"1234567890123456789012345678901234567890", "1234567890123456789012345678901234567890"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			n, err := ParseNumber(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestParseNumber_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "-1", "+1", "1.0", "1e3", "1_000", "0x10", "AAAAA", "4 2"} {
		_, err := ParseNumber(input)
		assert.ErrorIs(t, err, ErrInvalidNumber, "input %q", input)
	}
}
