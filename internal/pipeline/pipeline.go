package pipeline

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ppiankov/factordb"
	"github.com/ppiankov/factordb/internal/cache"
	"github.com/ppiankov/factordb/internal/model"
	"go.uber.org/zap"
)

// Pipeline resolves numbers through the FactorDB client, with an optional
// local cache in front of it
type Pipeline struct {
	client *factordb.Client
	cache  cache.Cache // nil when caching is disabled
	logger *zap.Logger
}

// NewPipeline creates a pipeline with the given configuration
func NewPipeline(cfg *model.Config, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := factordb.NewClient(
		factordb.WithEndpoint(cfg.Endpoint),
		factordb.WithHTTPClient(NewHTTPClient(cfg.HTTP)),
		factordb.WithUserAgent(cfg.HTTP.UserAgent),
		factordb.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes),
		factordb.WithLogger(logger.Named("client")),
	)

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}

	return New(client, c, logger)
}

// New assembles a pipeline from parts. c may be nil.
func New(client *factordb.Client, c cache.Cache, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		client: client,
		cache:  c,
		logger: logger,
	}
}

// Client returns the underlying FactorDB client
func (p *Pipeline) Client() *factordb.Client {
	return p.client
}

// LookupResult is a resolved number together with the body it came from
type LookupResult struct {
	Result *factordb.Result
	Raw    []byte
	Cached bool
}

// Lookup resolves n, serving final results from the cache when enabled
func (p *Pipeline) Lookup(ctx context.Context, n *big.Int) (*LookupResult, error) {
	if raw, ok := p.cached(n); ok {
		res, err := factordb.ParseResult(n.String(), raw)
		if err == nil {
			return &LookupResult{Result: res, Raw: raw, Cached: true}, nil
		}
		p.logger.Warn("dropping undecodable cache entry", zap.Stringer("number", n), zap.Error(err))
		p.evict(n)
	}

	raw, err := p.client.GetJSON(ctx, n)
	if err != nil {
		return nil, err
	}

	res, err := factordb.ParseResult(n.String(), raw)
	if err != nil {
		return nil, err
	}
	p.store(n, res, raw)

	return &LookupResult{Result: res, Raw: raw}, nil
}

// LookupRaw returns the response body for n without requiring it to decode.
// Bodies are cached only when they decode to a final result.
func (p *Pipeline) LookupRaw(ctx context.Context, n *big.Int) ([]byte, bool, error) {
	if raw, ok := p.cached(n); ok {
		return raw, true, nil
	}

	raw, err := p.client.GetJSON(ctx, n)
	if err != nil {
		return nil, false, err
	}

	if res, err := factordb.ParseResult(n.String(), raw); err == nil {
		p.store(n, res, raw)
	}
	return raw, false, nil
}

// ClearCache empties the local cache
func (p *Pipeline) ClearCache() error {
	if p.cache == nil {
		return nil
	}
	if err := p.cache.Clear(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

func (p *Pipeline) key(n *big.Int) string {
	return cache.Key(p.client.Endpoint(), n.String())
}

func (p *Pipeline) cached(n *big.Int) ([]byte, bool) {
	if p.cache == nil || n == nil {
		return nil, false
	}
	raw, ok := p.cache.Get(p.key(n))
	if ok {
		p.logger.Debug("cache hit", zap.Stringer("number", n))
	}
	return raw, ok
}

// store caches only results whose status can no longer change
func (p *Pipeline) store(n *big.Int, res *factordb.Result, raw []byte) {
	if p.cache == nil || !res.Status().IsFinal() {
		return
	}
	if err := p.cache.Set(p.key(n), raw, 0); err != nil {
		p.logger.Warn("cache write failed", zap.Stringer("number", n), zap.Error(err))
	}
}

func (p *Pipeline) evict(n *big.Int) {
	if err := p.cache.Delete(p.key(n)); err != nil {
		p.logger.Warn("cache delete failed", zap.Stringer("number", n), zap.Error(err))
	}
}
