package factordb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Factor is one (base, exponent) pair of a factorization: Base divides the
// number Exponent times.
type Factor struct {
	Base     *big.Int
	Exponent uint64
}

// Expand returns Exponent copies of Base.
func (f Factor) Expand() []*big.Int {
	var out []*big.Int
	for i := uint64(0); i < f.Exponent; i++ {
		out = append(out, new(big.Int).Set(f.Base))
	}
	return out
}

// Value returns Base raised to Exponent.
func (f Factor) Value() *big.Int {
	return new(big.Int).Exp(f.Base, new(big.Int).SetUint64(f.Exponent), nil)
}

// String renders the expanded factor, e.g. "2 2 2" for 2^3.
func (f Factor) String() string {
	var parts []string
	for _, v := range f.Expand() {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, " ")
}

func (f Factor) clone() Factor {
	return Factor{Base: new(big.Int).Set(f.Base), Exponent: f.Exponent}
}

// MarshalJSON encodes the pair the way the API does: ["<base>", <exponent>].
func (f Factor) MarshalJSON() ([]byte, error) {
	if f.Base == nil {
		return nil, fmt.Errorf("factor: nil base")
	}
	return json.Marshal([]any{f.Base.String(), f.Exponent})
}

// UnmarshalJSON decodes a ["<base>", <exponent>] pair. The base may also be a
// bare JSON integer; the exponent must be a non-negative JSON integer.
func (f *Factor) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("factor: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("factor: expected [base, exponent], got %d elements", len(pair))
	}

	base, err := decodeInteger(pair[0])
	if err != nil {
		return fmt.Errorf("factor base: %w", err)
	}

	expText := string(bytes.TrimSpace(pair[1]))
	exp, err := strconv.ParseUint(expText, 10, 64)
	if err != nil {
		return fmt.Errorf("factor exponent %s: not a non-negative integer", expText)
	}

	f.Base = base
	f.Exponent = exp
	return nil
}

// decodeInteger accepts a non-negative decimal integer encoded either as a
// JSON string or as a bare JSON number.
func decodeInteger(raw json.RawMessage) (*big.Int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("missing value")
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
	}
	return ParseNumber(text)
}
