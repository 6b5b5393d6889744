package factordb

import (
	"encoding/json"
	"fmt"
)

// Status is the state of a number in FactorDB.
type Status string

const (
	// StatusNoFactorsKnown is a composite with no known factors (C).
	StatusNoFactorsKnown Status = "C"
	// StatusFactorsKnown is a composite with some factors known (CF).
	StatusFactorsKnown Status = "CF"
	// StatusFullyFactored is a composite whose factorization is complete (FF).
	StatusFullyFactored Status = "FF"
	// StatusPrime is a number proven prime (P).
	StatusPrime Status = "P"
	// StatusProbablyPrime passed probable-prime tests but is not proven (Prp).
	StatusProbablyPrime Status = "Prp"
	// StatusUnknown means nothing is known about the number yet (U).
	StatusUnknown Status = "U"
	// StatusUnit is reported for the number 1.
	StatusUnit Status = "Unit"
	// StatusZero is reported for the number 0.
	StatusZero Status = "Zero"
	// StatusNotInDatabase means the number is not stored in FactorDB (N).
	StatusNotInDatabase Status = "N"
)

var statusDescriptions = map[Status]string{
	StatusNoFactorsKnown: "composite, no factors known",
	StatusFactorsKnown:   "composite, factors known",
	StatusFullyFactored:  "composite, fully factored",
	StatusPrime:          "definitely prime",
	StatusProbablyPrime:  "probably prime",
	StatusUnknown:        "unknown",
	StatusUnit:           "unit",
	StatusZero:           "zero",
	StatusNotInDatabase:  "not in database",
}

// ParseStatus maps an API status code to a Status. "PRP" is accepted as an
// alias of "Prp". Any other unrecognized code fails with ErrUnknownStatus.
func ParseStatus(code string) (Status, error) {
	if code == "PRP" {
		return StatusProbablyPrime, nil
	}
	s := Status(code)
	if _, ok := statusDescriptions[s]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, code)
	}
	return s, nil
}

// String returns the API code.
func (s Status) String() string {
	return string(s)
}

// Description returns a human-readable explanation of the status.
func (s Status) Description() string {
	if d, ok := statusDescriptions[s]; ok {
		return d
	}
	return "unrecognized"
}

// IsPrime reports whether the number is prime or probably prime.
func (s Status) IsPrime() bool {
	return s == StatusPrime || s == StatusProbablyPrime
}

// IsDefinitelyPrime reports whether primality has been proven.
func (s Status) IsDefinitelyPrime() bool {
	return s == StatusPrime
}

// IsFullyFactored reports whether the factor list is the complete
// factorization, so that the factors multiply back to the number.
func (s Status) IsFullyFactored() bool {
	return s == StatusFullyFactored || s == StatusPrime
}

// IsFinal reports whether the database entry can no longer change.
func (s Status) IsFinal() bool {
	switch s {
	case StatusFullyFactored, StatusPrime, StatusUnit, StatusZero:
		return true
	}
	return false
}

// MarshalJSON encodes the status as its API code.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON decodes an API status code, rejecting unrecognized codes.
func (s *Status) UnmarshalJSON(data []byte) error {
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	parsed, err := ParseStatus(code)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
