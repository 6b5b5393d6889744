package factordb

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Result is the decoded answer for one lookup. It is immutable: every
// accessor returns copies.
type Result struct {
	id      string
	text    string
	number  *big.Int
	status  Status
	factors []Factor
}

// wireResult mirrors the API body. Pointers distinguish missing keys from
// zero values.
type wireResult struct {
	ID      json.RawMessage `json:"id"`
	Number  json.RawMessage `json:"number"`
	Status  *Status         `json:"status"`
	Factors *[]Factor       `json:"factors"`
}

// ParseResult decodes an API response body for the queried number.
//
// FactorDB does not echo the queried value, so number supplies it. When the
// body carries its own "number" key that value is used instead and must be a
// canonical decimal. Every failure is a *ParseError.
func ParseResult(number string, body []byte) (*Result, error) {
	res, err := parseResult(number, body)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return res, nil
}

func parseResult(number string, body []byte) (*Result, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty body")
	}

	var w wireResult
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, err
	}
	if w.Status == nil {
		return nil, errors.New(`missing field "status"`)
	}
	if w.Factors == nil {
		return nil, errors.New(`missing field "factors"`)
	}

	var n *big.Int
	switch {
	case len(w.Number) > 0 && !bytes.Equal(bytes.TrimSpace(w.Number), []byte("null")):
		v, err := decodeInteger(w.Number)
		if err != nil {
			return nil, fmt.Errorf("number: %w", err)
		}
		if text := strings.Trim(string(bytes.TrimSpace(w.Number)), `"`); text != v.String() {
			return nil, fmt.Errorf("number %q is not a canonical decimal", text)
		}
		if number != "" {
			q, err := ParseNumber(number)
			if err != nil {
				return nil, fmt.Errorf("queried number: %w", err)
			}
			if q.Cmp(v) != 0 {
				return nil, fmt.Errorf("number %s does not match query %s", v, q)
			}
		}
		n = v
	case number != "":
		v, err := ParseNumber(number)
		if err != nil {
			return nil, fmt.Errorf("queried number: %w", err)
		}
		n = v
	default:
		return nil, errors.New(`missing field "number"`)
	}

	if err := checkExponents(n, *w.Factors); err != nil {
		return nil, err
	}

	var id string
	if len(w.ID) > 0 && !bytes.Equal(bytes.TrimSpace(w.ID), []byte("null")) {
		v, err := decodeSignedInteger(w.ID)
		if err != nil {
			return nil, fmt.Errorf("id: %w", err)
		}
		id = v.String()
	}

	return &Result{
		id:      id,
		text:    n.String(),
		number:  n,
		status:  *w.Status,
		factors: *w.Factors,
	}, nil
}

// maxTrivialExponent bounds the summed exponents of 0 and 1 bases, which
// add nothing to the product and so are not bounded by the number's size.
const maxTrivialExponent = 64

// checkExponents rejects factor lists whose expansion could not fit the
// number. Bases of 2 or more multiply to at most n, so their exponents sum to
// at most n.BitLen(); this also bounds Flatten to the size of the number.
func checkExponents(n *big.Int, factors []Factor) error {
	limit := uint64(n.BitLen())
	var total, trivial uint64
	for _, f := range factors {
		if f.Base.BitLen() < 2 {
			if f.Exponent > maxTrivialExponent-trivial {
				return fmt.Errorf("factor %s^%d: exponents of 0 and 1 exceed %d", f.Base, f.Exponent, maxTrivialExponent)
			}
			trivial += f.Exponent
			continue
		}
		if f.Exponent > limit-total {
			return fmt.Errorf("factor %s^%d: exponents exceed the %d bits of %s", f.Base, f.Exponent, limit, n)
		}
		total += f.Exponent
	}
	return nil
}

// decodeSignedInteger is decodeInteger allowing a leading minus sign.
func decodeSignedInteger(raw json.RawMessage) (*big.Int, error) {
	raw = bytes.TrimSpace(raw)
	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, err
		}
	}
	if rest, ok := strings.CutPrefix(text, "-"); ok {
		v, err := ParseNumber(rest)
		if err != nil {
			return nil, err
		}
		return v.Neg(v), nil
	}
	return decodeInteger(raw)
}

// ID returns FactorDB's internal id for the number, or "" if none was sent.
func (r *Result) ID() string {
	return r.id
}

// Status returns the number's status in the database.
func (r *Result) Status() Status {
	return r.status
}

// NumberString returns the queried number in canonical decimal form.
func (r *Result) NumberString() string {
	return r.text
}

// Number returns the queried number.
func (r *Result) Number() *big.Int {
	return new(big.Int).Set(r.number)
}

// Factors returns the factor pairs in the order the API sent them.
func (r *Result) Factors() []Factor {
	out := make([]Factor, len(r.factors))
	for i, f := range r.factors {
		out[i] = f.clone()
	}
	return out
}

// Flatten expands every pair into Exponent copies of its base, keeping pair
// order: [(2,3),(5,1)] gives [2 2 2 5].
func (r *Result) Flatten() []*big.Int {
	out := make([]*big.Int, 0, len(r.factors))
	for _, f := range r.factors {
		out = append(out, f.Expand()...)
	}
	return out
}

// Unique returns each distinct base once, in order of first occurrence.
func (r *Result) Unique() []*big.Int {
	seen := make(map[string]struct{}, len(r.factors))
	out := make([]*big.Int, 0, len(r.factors))
	for _, f := range r.factors {
		key := f.Base.String()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, new(big.Int).Set(f.Base))
	}
	return out
}

// Product multiplies Base^Exponent over all pairs. An empty factor list
// yields 1.
func (r *Result) Product() *big.Int {
	p := big.NewInt(1)
	for _, f := range r.factors {
		p.Mul(p, f.Value())
	}
	return p
}

// IsPrime reports whether the number is prime or probably prime.
func (r *Result) IsPrime() bool {
	return r.status.IsPrime()
}

// IsDefinitelyPrime reports whether the number is proven prime.
func (r *Result) IsDefinitelyPrime() bool {
	return r.status.IsDefinitelyPrime()
}

// Verify checks that the factors multiply back to the number. Results that
// are not fully factored carry partial data and always pass.
func (r *Result) Verify() error {
	if !r.status.IsFullyFactored() {
		return nil
	}
	if p := r.Product(); p.Cmp(r.number) != 0 {
		return fmt.Errorf("%w: %s != %s", ErrProductMismatch, p, r.number)
	}
	return nil
}

// String renders the flattened factors separated by spaces.
func (r *Result) String() string {
	parts := make([]string, 0, len(r.factors))
	for _, v := range r.Flatten() {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, " ")
}

// MarshalJSON encodes the result in the API shape plus the queried number.
func (r *Result) MarshalJSON() ([]byte, error) {
	factors := r.factors
	if factors == nil {
		factors = []Factor{}
	}
	return json.Marshal(struct {
		ID      string   `json:"id,omitempty"`
		Number  string   `json:"number"`
		Status  Status   `json:"status"`
		Factors []Factor `json:"factors"`
	}{
		ID:      r.id,
		Number:  r.text,
		Status:  r.status,
		Factors: factors,
	})
}
