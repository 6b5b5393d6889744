package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/ppiankov/factordb"
	"github.com/ppiankov/factordb/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	uniqueOutput  bool
	jsonOutput    bool
	summaryOutput bool
	verifyResult  bool
)

func init() {
	f := rootCmd.Flags()
	f.BoolVar(&uniqueOutput, "unique", false, "print each distinct prime factor once")
	f.BoolVar(&jsonOutput, "json", false, "print the raw JSON response")
	f.BoolVar(&summaryOutput, "summary", false, "print a one-line summary: N = f1 f2 ...")
	f.BoolVar(&verifyResult, "verify", false, "check that the factors multiply back to the number")

	rootCmd.MarkFlagsMutuallyExclusive("json", "unique")
	rootCmd.MarkFlagsMutuallyExclusive("json", "summary")
	rootCmd.MarkFlagsMutuallyExclusive("json", "verify")
}

func runQuery(cmd *cobra.Command, args []string) error {
	// Invalid input never reaches the network.
	n, err := factordb.ParseNumber(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Output.Verbose)
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	p := pipeline.NewPipeline(cfg, logger)
	out := cmd.OutOrStdout()

	if jsonOutput {
		raw, _, err := p.LookupRaw(ctx, n)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(bytes.TrimSpace(raw)))
		return err
	}

	lr, err := p.Lookup(ctx, n)
	if err != nil {
		return err
	}

	if verifyResult {
		if err := lr.Result.Verify(); err != nil {
			return err
		}
	}

	return renderResult(out, lr.Result, uniqueOutput, summaryOutput)
}

// renderResult prints res one factor per line, or as "N = f1 f2 ..." when
// summary is set. unique collapses repeated factors in either form.
func renderResult(w io.Writer, res *factordb.Result, unique, summary bool) error {
	factors := res.Flatten()
	if unique {
		factors = res.Unique()
	}

	if summary {
		_, err := fmt.Fprintln(w, summaryLine(res, factors))
		return err
	}

	for _, f := range factors {
		if _, err := fmt.Fprintln(w, f.String()); err != nil {
			return err
		}
	}
	return nil
}

func summaryLine(res *factordb.Result, factors []*big.Int) string {
	parts := make([]string, len(factors))
	for i, f := range factors {
		parts[i] = f.String()
	}
	return fmt.Sprintf("%s = %s", res.NumberString(), strings.Join(parts, " "))
}
