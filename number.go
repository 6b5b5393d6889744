package factordb

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseNumber parses a non-negative decimal integer of any length.
// Surrounding whitespace is ignored and leading zeros are dropped; signs,
// separators and other bases are rejected with ErrInvalidNumber.
func ParseNumber(s string) (*big.Int, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidNumber)
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
		}
	}
	n, ok := new(big.Int).SetString(text, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, s)
	}
	return n, nil
}

func checkNumber(n *big.Int) error {
	if n == nil {
		return fmt.Errorf("%w: nil", ErrInvalidNumber)
	}
	if n.Sign() < 0 {
		return fmt.Errorf("%w: negative value %s", ErrInvalidNumber, n)
	}
	return nil
}
