package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/factordb"
	"github.com/ppiankov/factordb/internal/cache"
	"github.com/ppiankov/factordb/internal/model"
	"go.uber.org/zap/zaptest"
)

func newServer(t *testing.T, hits *atomic.Int32, bodies map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, ok := bodies[r.URL.Query().Get("query")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

var bodies = map[string]string{
	"42":  `{"id":"42","status":"FF","factors":[["2",1],["3",1],["7",1]]}`,
	"221": `{"id":"221","status":"CF","factors":[["13",1],["17",1]]}`,
	"9":   `{"id":"9","status":"FF","factors":[["3",2]`,
}

func TestPipeline_Lookup_NoCache(t *testing.T) {
	var hits atomic.Int32
	server := newServer(t, &hits, bodies)
	p := New(factordb.NewClient(factordb.WithEndpoint(server.URL)), nil, zaptest.NewLogger(t))

	for i := 0; i < 2; i++ {
		lr, err := p.Lookup(context.Background(), big.NewInt(42))
		if err != nil {
			t.Fatalf("Lookup: %v", err)
		}
		if lr.Cached {
			t.Error("expected uncached result")
		}
		if lr.Result.String() != "2 3 7" {
			t.Errorf("unexpected factors %q", lr.Result.String())
		}
	}
	if hits.Load() != 2 {
		t.Errorf("expected 2 requests without cache, got %d", hits.Load())
	}
}

func TestPipeline_Lookup_CachesFinalResults(t *testing.T) {
	var hits atomic.Int32
	server := newServer(t, &hits, bodies)
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	p := New(factordb.NewClient(factordb.WithEndpoint(server.URL)), c, nil)
	ctx := context.Background()

	first, err := p.Lookup(ctx, big.NewInt(42))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	second, err := p.Lookup(ctx, big.NewInt(42))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if first.Cached || !second.Cached {
		t.Errorf("expected miss then hit, got %v then %v", first.Cached, second.Cached)
	}
	if second.Result.String() != "2 3 7" {
		t.Errorf("unexpected cached factors %q", second.Result.String())
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 request, got %d", hits.Load())
	}
}

func TestPipeline_Lookup_SkipsNonFinal(t *testing.T) {
	var hits atomic.Int32
	server := newServer(t, &hits, bodies)
	p := New(factordb.NewClient(factordb.WithEndpoint(server.URL)), cache.NewMemoryCache(time.Minute, time.Minute), nil)

	for i := 0; i < 2; i++ {
		if _, err := p.Lookup(context.Background(), big.NewInt(221)); err != nil {
			t.Fatalf("Lookup: %v", err)
		}
	}
	if hits.Load() != 2 {
		t.Errorf("expected CF result not to be cached, got %d requests", hits.Load())
	}
}

func TestPipeline_Lookup_EvictsCorruptEntry(t *testing.T) {
	var hits atomic.Int32
	server := newServer(t, &hits, bodies)
	client := factordb.NewClient(factordb.WithEndpoint(server.URL))
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set(cache.Key(client.Endpoint(), "42"), []byte(`{"status":"??"}`), 0)

	p := New(client, c, nil)
	lr, err := p.Lookup(context.Background(), big.NewInt(42))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if lr.Cached || hits.Load() != 1 {
		t.Errorf("expected refetch after corrupt entry, cached=%v hits=%d", lr.Cached, hits.Load())
	}
}

func TestPipeline_Lookup_Errors(t *testing.T) {
	var hits atomic.Int32
	server := newServer(t, &hits, bodies)
	p := New(factordb.NewClient(factordb.WithEndpoint(server.URL)), nil, nil)
	ctx := context.Background()

	if _, err := p.Lookup(ctx, big.NewInt(9)); !factordb.IsParse(err) {
		t.Errorf("expected parse error, got %v", err)
	}
	if _, err := p.Lookup(ctx, big.NewInt(7)); !factordb.IsTransport(err) {
		t.Errorf("expected transport error for 404, got %v", err)
	}
}

func TestPipeline_LookupRaw(t *testing.T) {
	var hits atomic.Int32
	server := newServer(t, &hits, bodies)
	p := New(factordb.NewClient(factordb.WithEndpoint(server.URL)), cache.NewMemoryCache(time.Minute, time.Minute), nil)
	ctx := context.Background()

	// Undecodable bodies pass through untouched but are not cached.
	raw, cached, err := p.LookupRaw(ctx, big.NewInt(9))
	if err != nil || cached || string(raw) != bodies["9"] {
		t.Fatalf("LookupRaw(9) = %q, %v, %v", raw, cached, err)
	}

	_, _, _ = p.LookupRaw(ctx, big.NewInt(42))
	raw, cached, err = p.LookupRaw(ctx, big.NewInt(42))
	if err != nil || !cached || string(raw) != bodies["42"] {
		t.Errorf("LookupRaw(42) second call = %q, %v, %v", raw, cached, err)
	}

	if err := p.ClearCache(); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if _, cached, _ := p.LookupRaw(ctx, big.NewInt(42)); cached {
		t.Error("expected miss after ClearCache")
	}
}

func TestNewPipeline_FromConfig(t *testing.T) {
	var hits atomic.Int32
	server := newServer(t, &hits, bodies)

	cfg := model.DefaultConfig()
	cfg.Endpoint = server.URL + "/api"
	cfg.Cache.Enabled = true
	cfg.Cache.Dir = t.TempDir()

	p := NewPipeline(cfg, nil)
	if p.Client().Endpoint() != cfg.Endpoint {
		t.Errorf("endpoint = %q", p.Client().Endpoint())
	}

	if _, err := p.Lookup(context.Background(), big.NewInt(42)); err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	// A second pipeline over the same cache dir is served from disk.
	again := NewPipeline(cfg, nil)
	lr, err := again.Lookup(context.Background(), big.NewInt(42))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !lr.Cached || hits.Load() != 1 {
		t.Errorf("expected disk cache hit, cached=%v hits=%d", lr.Cached, hits.Load())
	}
}

func TestNewHTTPClient_Redirects(t *testing.T) {
	var hops atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hops.Add(1)
		http.Redirect(w, r, server.URL+"/again", http.StatusFound)
	}))
	defer server.Close()

	hc := NewHTTPClient(model.DefaultConfig().HTTP)
	resp, err := hc.Get(server.URL)
	if err == nil {
		_ = resp.Body.Close()
		t.Fatal("expected redirect loop to fail")
	}
	if hops.Load() != maxRedirects {
		t.Errorf("expected %d hops, got %d", maxRedirects, hops.Load())
	}
}
