package model

import (
	"errors"
	"time"

	"github.com/ppiankov/factordb"
)

// Entry is one line of batch output (NDJSON with --json)
type Entry struct {
	Input     string    `json:"input"`                // Number as read from the input file
	Number    string    `json:"number,omitempty"`     // Canonical decimal form
	ID        string    `json:"id,omitempty"`         // FactorDB internal id
	Status    string    `json:"status,omitempty"`     // API status code
	Factors   []string  `json:"factors,omitempty"`    // Flattened factors
	Unique    []string  `json:"unique,omitempty"`     // Distinct factors, first-occurrence order
	Cached    bool      `json:"cached"`               // Served from the local cache
	FetchedAt time.Time `json:"fetched_at"`           // When the lookup finished
	Error     string    `json:"error,omitempty"`      // Failure reason, empty on success
	ErrorKind ErrorKind `json:"error_kind,omitempty"` // input, transport or parse
}

// ErrorKind classifies a failed lookup
type ErrorKind string

const (
	ErrorKindInput     ErrorKind = "input"
	ErrorKindTransport ErrorKind = "transport"
	ErrorKindParse     ErrorKind = "parse"
	ErrorKindOther     ErrorKind = "other"
)

// Summary totals a batch run
type Summary struct {
	Total    int           `json:"total"`
	Success  int           `json:"success"`
	Failures int           `json:"failures"`
	Cached   int           `json:"cached"`
	Elapsed  time.Duration `json:"elapsed"`
}

// ClassifyError maps a lookup error onto an ErrorKind
func ClassifyError(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case factordb.IsTransport(err):
		return ErrorKindTransport
	case factordb.IsParse(err):
		return ErrorKindParse
	case errors.Is(err, factordb.ErrInvalidNumber):
		return ErrorKindInput
	default:
		return ErrorKindOther
	}
}

// NewEntry builds an output entry from a lookup result or error
func NewEntry(input string, res *factordb.Result, cached bool, err error) Entry {
	e := Entry{
		Input:     input,
		Cached:    cached,
		FetchedAt: time.Now().UTC(),
	}
	if err != nil {
		e.Error = err.Error()
		e.ErrorKind = ClassifyError(err)
		return e
	}

	e.Number = res.NumberString()
	e.ID = res.ID()
	e.Status = res.Status().String()
	for _, f := range res.Flatten() {
		e.Factors = append(e.Factors, f.String())
	}
	for _, f := range res.Unique() {
		e.Unique = append(e.Unique, f.String())
	}
	return e
}
