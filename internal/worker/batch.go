package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/ppiankov/factordb"
	"github.com/ppiankov/factordb/internal/pipeline"
)

// Resolver resolves one number
type Resolver interface {
	Lookup(ctx context.Context, n *big.Int) (*pipeline.LookupResult, error)
}

// QueryJob looks up one input line
type QueryJob struct {
	Index    int
	Input    string
	Endpoint string
	Resolver Resolver
	Limiter  *Limiter
}

// Execute validates the input, waits for the rate limiter and resolves it.
// Invalid input never reaches the network.
func (j *QueryJob) Execute(ctx context.Context) *QueryResult {
	out := &QueryResult{Index: j.Index, Input: j.Input}

	n, err := factordb.ParseNumber(j.Input)
	if err != nil {
		out.Error = err
		return out
	}

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.Endpoint); err != nil {
			out.Error = fmt.Errorf("rate limit: %w", err)
			return out
		}
	}

	lr, err := j.Resolver.Lookup(ctx, n)
	if err != nil {
		out.Error = err
		return out
	}
	out.Lookup = lr
	return out
}

// QueryResult is the outcome of a QueryJob
type QueryResult struct {
	Index  int
	Input  string
	Lookup *pipeline.LookupResult
	Error  error
}

// BatchProcessor resolves many numbers concurrently
type BatchProcessor struct {
	resolver    Resolver
	endpoint    string
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a batch processor. limiter may be nil.
func NewBatchProcessor(resolver Resolver, endpoint string, concurrency int, limiter *Limiter) *BatchProcessor {
	return &BatchProcessor{
		resolver:    resolver,
		endpoint:    endpoint,
		concurrency: concurrency,
		limiter:     limiter,
	}
}

// ProcessNumbers resolves inputs and returns one result per input, in input
// order. Inputs not run before ctx ended carry ctx's error.
func (b *BatchProcessor) ProcessNumbers(ctx context.Context, inputs []string) []*QueryResult {
	if len(inputs) == 0 {
		return []*QueryResult{}
	}

	pool := NewPool[*QueryResult](ctx, b.concurrency)
	pool.Start()

	for i, input := range inputs {
		submitted := pool.Submit(&QueryJob{
			Index:    i,
			Input:    input,
			Endpoint: b.endpoint,
			Resolver: b.resolver,
			Limiter:  b.limiter,
		})
		if !submitted {
			// Context ended: stop the workers, queued jobs are dropped.
			pool.Shutdown()
			break
		}
	}

	done := pool.Wait()

	results := make([]*QueryResult, len(inputs))
	for _, r := range done {
		results[r.Index] = r
	}
	for i, r := range results {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			results[i] = &QueryResult{Index: i, Input: inputs[i], Error: err}
		}
	}

	return results
}

// ProcessFile reads numbers from a file, or from stdin when filePath is "-",
// and resolves them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string, stdin io.Reader) ([]*QueryResult, error) {
	inputs, err := ReadNumbersFromFile(filePath, stdin)
	if err != nil {
		return nil, fmt.Errorf("read numbers: %w", err)
	}

	return b.ProcessNumbers(ctx, inputs), nil
}

// ReadNumbersFromFile reads numbers from a file, one per line. "-" reads
// stdin instead.
func ReadNumbersFromFile(filePath string, stdin io.Reader) ([]string, error) {
	if filePath == "-" {
		if stdin == nil {
			return nil, fmt.Errorf("no stdin to read from")
		}
		return ReadNumbers(stdin)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return ReadNumbers(file)
}

// ReadNumbers reads one number per line, skipping blank lines and # comments.
// Lines naming the same value ("42" and "042") are kept once. Invalid lines
// are kept so they surface as per-line input errors.
func ReadNumbers(r io.Reader) ([]string, error) {
	var inputs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key := line
		if n, err := factordb.ParseNumber(line); err == nil {
			key = n.String()
		}
		if !seen[key] {
			seen[key] = true
			inputs = append(inputs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}

	return inputs, nil
}
