package factordb

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// knownFactorizations is what the stub service answers with.
var knownFactorizations = map[string]string{
	"15":  `{"id":"15","status":"FF","factors":[["3",1],["5",1]]}`,
	"17":  `{"id":"17","status":"P","factors":[["17",1]]}`,
	"42":  `{"id":"42","status":"FF","factors":[["2",1],["3",1],["7",1]]}`,
	"100": `{"id":"100","status":"FF","factors":[["2",2],["5",2]]}`,
	"340282366920938463463374607431768211457": `{"id":"1100000000000000123","status":"FF","factors":[["59649589127497217",1],["5704689200685129054721",1]]}`,
}

func newStubServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if r.URL.Path != "/api" {
			t.Errorf("Expected path /api, got %s", r.URL.Path)
		}
		q := r.URL.Query().Get("query")
		body, ok := knownFactorizations[q]
		if !ok {
			body = fmt.Sprintf(`{"id":%q,"status":"C","factors":[[%q,1]]}`, q, q)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_GetUint64(t *testing.T) {
	server := newStubServer(t, nil)
	client := NewClient(WithEndpoint(server.URL+"/api"), WithLogger(zaptest.NewLogger(t)))

	res, err := client.GetUint64(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, StatusFullyFactored, res.Status())
	assert.Equal(t, []string{"2", "3", "7"}, bigStrings(res.Flatten()))
	assert.Equal(t, []string{"2", "3", "7"}, bigStrings(res.Unique()))
}

func TestClient_RepeatingFactors(t *testing.T) {
	server := newStubServer(t, nil)
	client := NewClient(WithEndpoint(server.URL + "/api"))

	res, err := client.GetUint64(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "2", "5", "5"}, bigStrings(res.Flatten()))
	assert.Equal(t, []string{"2", "5"}, bigStrings(res.Unique()))
}

func TestClient_Prime(t *testing.T) {
	server := newStubServer(t, nil)
	client := NewClient(WithEndpoint(server.URL + "/api"))

	res, err := client.GetUint64(context.Background(), 17)
	require.NoError(t, err)
	assert.True(t, res.IsDefinitelyPrime())
	assert.Equal(t, []string{"17"}, bigStrings(res.Flatten()))
	assert.Equal(t, bigStrings(res.Flatten()), bigStrings(res.Unique()))
}

func TestClient_WideNumber(t *testing.T) {
	server := newStubServer(t, nil)
	client := NewClient(WithEndpoint(server.URL + "/api"))

	const wide = "340282366920938463463374607431768211457" // 2^128 + 1
	n, ok := new(big.Int).SetString(wide, 10)
	require.True(t, ok)

	res, err := client.Get(context.Background(), n)
	require.NoError(t, err)
	assert.Equal(t, wide, res.NumberString())
	assert.Equal(t, "1100000000000000123", res.ID())
	assert.NoError(t, res.Verify())

	byString, err := client.GetString(context.Background(), wide)
	require.NoError(t, err)
	assert.Equal(t, res.String(), byString.String())
}

func TestClient_RequestShape(t *testing.T) {
	var gotQuery, gotUA, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = fmt.Fprint(w, `{"id":"42","status":"FF","factors":[["2",1],["3",1],["7",1]]}`)
	}))
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL+"/api"), WithUserAgent("factordb-test/1.0"))
	_, err := client.GetString(context.Background(), " 0042 ")
	require.NoError(t, err)

	assert.Equal(t, "query=42", gotQuery)
	assert.Equal(t, "factordb-test/1.0", gotUA)
	assert.Equal(t, "application/json", gotAccept)
}

func TestClient_URL(t *testing.T) {
	client := NewClient()
	u, err := client.URL(big.NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, "http://factordb.com/api?query=42", u)

	withParams := NewClient(WithEndpoint("http://localhost:8080/api?format=json"))
	u, err = withParams.URL(big.NewInt(7))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api?format=json&query=7", u)

	_, err = client.URL(big.NewInt(-1))
	assert.ErrorIs(t, err, ErrInvalidNumber)
}

func TestClient_InvalidInputMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	server := newStubServer(t, &hits)
	client := NewClient(WithEndpoint(server.URL + "/api"))
	ctx := context.Background()

	for _, input := range []string{"AAAAA", "", "-5", "+5", "1e9", "12 34", "0x1f"} {
		_, err := client.GetString(ctx, input)
		assert.ErrorIs(t, err, ErrInvalidNumber, "input %q", input)
	}

	_, err := client.Get(ctx, big.NewInt(-3))
	assert.ErrorIs(t, err, ErrInvalidNumber)

	_, err = client.Get(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidNumber)

	assert.Equal(t, int32(0), hits.Load())
}

func TestClient_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL + "/api"
	server.Close()

	client := NewClient(WithEndpoint(endpoint))
	_, err := client.GetUint64(context.Background(), 42)
	require.Error(t, err)

	var he *HTTPError
	require.True(t, errors.As(err, &he), "want *HTTPError, got %T", err)
	assert.Equal(t, 0, he.StatusCode)
	assert.True(t, strings.HasPrefix(he.URL, endpoint))
	assert.True(t, IsTransport(err))
	assert.False(t, IsParse(err))
}

func TestClient_NonSuccessStatus(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusTooManyRequests, http.StatusBadGateway} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var hits atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(code)
			}))
			defer server.Close()

			client := NewClient(WithEndpoint(server.URL))
			_, err := client.GetUint64(context.Background(), 42)

			var he *HTTPError
			require.True(t, errors.As(err, &he))
			assert.Equal(t, code, he.StatusCode)
			// No retry.
			assert.Equal(t, int32(1), hits.Load())
		})
	}
}

func TestClient_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"id":"42","status":"FF","factors":[["2",1],`)
	}))
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL))
	res, err := client.GetUint64(context.Background(), 42)
	assert.Nil(t, res)
	assert.True(t, IsParse(err))
	assert.False(t, IsTransport(err))
}

func TestClient_UnknownStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"id":"42","status":"NEW","factors":[]}`)
	}))
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL))
	_, err := client.GetUint64(context.Background(), 42)
	assert.True(t, IsParse(err))
	assert.ErrorIs(t, err, ErrUnknownStatus)
}

func TestClient_BodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"id":"42","status":"FF","factors":[["2",1],["3",1],["7",1]]}`)
	}))
	defer server.Close()

	client := NewClient(WithEndpoint(server.URL), WithMaxBodyBytes(16))
	_, err := client.GetUint64(context.Background(), 42)
	assert.True(t, IsParse(err))
}

func TestClient_GetJSON(t *testing.T) {
	server := newStubServer(t, nil)
	client := NewClient(WithEndpoint(server.URL + "/api"))

	body, err := client.GetJSON(context.Background(), big.NewInt(15))
	require.NoError(t, err)
	assert.JSONEq(t, knownFactorizations["15"], string(body))
}

func TestClient_ContextCanceled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(WithEndpoint(server.URL))
	_, err := client.GetUint64(ctx, 42)
	assert.True(t, IsTransport(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ConcurrentUse(t *testing.T) {
	var hits atomic.Int32
	server := newStubServer(t, &hits)
	client := NewClient(WithEndpoint(server.URL + "/api"))

	inputs := map[uint64]string{15: "3 5", 17: "17", 42: "2 3 7", 100: "2 2 5 5"}
	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 10; i++ {
		for n, want := range inputs {
			wg.Add(1)
			go func(n uint64, want string) {
				defer wg.Done()
				res, err := client.GetUint64(context.Background(), n)
				if err != nil {
					errs <- err
					return
				}
				if got := res.String(); got != want {
					errs <- fmt.Errorf("%d: got %q, want %q", n, got, want)
				}
			}(n, want)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, int32(40), hits.Load())
}
