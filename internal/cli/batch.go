package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/factordb/internal/model"
	"github.com/ppiankov/factordb/internal/pipeline"
	"github.com/ppiankov/factordb/internal/util"
	"github.com/ppiankov/factordb/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	batchTimeout time.Duration
	batchJSON    bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Look up many numbers from a file in parallel",
	Long: `Batch looks up numbers read from a file, one per line:
- Blank lines and lines starting with # are skipped
- Duplicate values are looked up once
- Lookups run in parallel, rate limited per host
- Results are printed in input order

Use "-" to read from stdin.

Example:
  factordb batch numbers.txt
  factordb batch numbers.txt --concurrency 8 --rps 4
  factordb batch numbers.txt --json > results.ndjson
  seq 100 200 | factordb batch - --cache`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	f := batchCmd.Flags()
	f.Int("concurrency", defaults.Concurrency.Workers, "number of concurrent workers")
	f.Float64("rps", defaults.RateLimiting.RequestsPerSecond, "requests per second to the API host")
	f.Int("burst", defaults.RateLimiting.BurstSize, "request burst size")
	f.Bool("respect-robots", defaults.Robots.Respect, "honor robots.txt rules and crawl-delay of the API host")
	f.DurationVar(&batchTimeout, "batch-timeout", 10*time.Minute, "total timeout for batch processing")
	f.BoolVar(&batchJSON, "json", false, "print one JSON object per line")

	_ = viper.BindPFlag("concurrency.workers", f.Lookup("concurrency"))
	_ = viper.BindPFlag("rate_limiting.requests_per_second", f.Lookup("rps"))
	_ = viper.BindPFlag("rate_limiting.burst_size", f.Lookup("burst"))
	_ = viper.BindPFlag("robots.respect", f.Lookup("respect-robots"))
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Output.Verbose)
	defer func() { _ = logger.Sync() }()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, batchTimeout)
	defer cancel()

	stderr := cmd.ErrOrStderr()
	out := cmd.OutOrStdout()

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  FactorDB Batch Lookup\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(stderr, "  Endpoint:     %s\n", cfg.Endpoint)
	fmt.Fprintf(stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(stderr, "  Rate limit:   %.2f req/s (burst %d)\n", cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	fmt.Fprintf(stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(stderr, "\n")

	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	if cfg.Robots.Respect {
		if err := applyRobots(ctx, cfg, limiter, logger); err != nil {
			return err
		}
	}

	p := pipeline.NewPipeline(cfg, logger)
	// The limiter is keyed by the host the client actually requests.
	processor := worker.NewBatchProcessor(p, p.Client().Endpoint(), cfg.Concurrency.Workers, limiter)

	start := time.Now()
	results, err := processor.ProcessFile(ctx, file, cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}
	fmt.Fprintf(stderr, "✓ Processed %d numbers\n\n", len(results))

	summary := model.Summary{Total: len(results)}
	for _, r := range results {
		entry := newBatchEntry(r)
		if entry.Error != "" {
			summary.Failures++
			if !batchJSON {
				fmt.Fprintf(stderr, "✗ %s: %s\n", r.Input, entry.Error)
			}
		} else {
			summary.Success++
			if entry.Cached {
				summary.Cached++
			}
		}

		if err := writeEntry(out, entry, batchJSON); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}
	summary.Elapsed = time.Since(start)

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Batch Complete\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Total:        %d\n", summary.Total)
	fmt.Fprintf(stderr, "  Success:      %d\n", summary.Success)
	fmt.Fprintf(stderr, "  Cached:       %d\n", summary.Cached)
	fmt.Fprintf(stderr, "  Failures:     %d\n", summary.Failures)
	fmt.Fprintf(stderr, "  Elapsed:      %v\n", summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(stderr, "\n")

	if summary.Failures > 0 {
		return fmt.Errorf("%d of %d lookups failed", summary.Failures, summary.Total)
	}
	return nil
}

// applyRobots refuses to run when the API host disallows the endpoint and
// slows the limiter down to any crawl-delay it asks for
func applyRobots(ctx context.Context, cfg *model.Config, limiter *worker.Limiter, logger *zap.Logger) error {
	httpCfg := cfg.HTTP
	httpCfg.Timeout = cfg.Robots.Timeout
	checker := util.NewRobotsChecker(pipeline.NewHTTPClient(httpCfg), cfg.HTTP.UserAgent, logger.Named("robots"))

	allowed, delay, err := checker.CanFetch(ctx, cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("check robots.txt: %w", err)
	}
	if !allowed {
		return fmt.Errorf("robots.txt disallows %s for %s", cfg.Endpoint, util.NormalizeUserAgent(cfg.HTTP.UserAgent))
	}

	if delay > 0 {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return fmt.Errorf("parse endpoint: %w", err)
		}
		limiter.SetCrawlDelay(u.Host, delay)
		logger.Info("applying crawl-delay", zap.String("host", u.Host), zap.Duration("delay", delay))
	}
	return nil
}

func newBatchEntry(r *worker.QueryResult) model.Entry {
	if r.Lookup == nil {
		return model.NewEntry(r.Input, nil, false, r.Error)
	}
	return model.NewEntry(r.Input, r.Lookup.Result, r.Lookup.Cached, r.Error)
}

// writeEntry prints entry as NDJSON, or as "N = f1 f2 ... (status)" for
// successful lookups in text mode
func writeEntry(w io.Writer, entry model.Entry, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(w).Encode(entry)
	}
	if entry.Error != "" {
		return nil
	}
	_, err := fmt.Fprintf(w, "%s = %s (%s)\n", entry.Number, strings.Join(entry.Factors, " "), entry.Status)
	return err
}
