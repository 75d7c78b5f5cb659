package tokenlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-spam-detector/internal/domain"
	"token-spam-detector/internal/storage/memory"
)

const listBody = `{
	"name": "test list",
	"tokens": [
		{"name": "Tether", "symbol": "USDT", "type": "stablecoin"},
		{"name": "Wrapped Ether", "symbol": "WETH", "type": "wrapped"}
	]
}`

func TestProvider_FetchAndCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(listBody))
	}))
	defer srv.Close()

	p := New(srv.URL, nil)
	ctx := context.Background()

	list, err := p.Get(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "USDT", list[0].Symbol)

	// Second call within TTL must not refetch.
	_, err = p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestProvider_RefetchAfterTTL(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(listBody))
	}))
	defer srv.Close()

	now := time.Unix(1700000000, 0)
	p := New(srv.URL, nil,
		WithTTL(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	_, err := p.Get(ctx)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = p.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestProvider_StaleFallbackOnFetchFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(listBody))
	}))
	defer srv.Close()

	now := time.Unix(1700000000, 0)
	p := New(srv.URL, nil,
		WithTTL(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	_, err := p.Get(ctx)
	require.NoError(t, err)

	fail.Store(true)
	now = now.Add(2 * time.Minute)

	list, err := p.Get(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestProvider_BootstrapFromStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := memory.NewTokenListStore()
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, []domain.ReferenceToken{
		{Name: "Tether", Symbol: "USDT"},
	}))

	p := New(srv.URL, store)

	list, err := p.Get(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Tether", list[0].Name)
}

func TestProvider_UnavailableWhenNothingToServe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(srv.URL, memory.NewTokenListStore())

	_, err := p.Get(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestProvider_PersistsFetchedSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listBody))
	}))
	defer srv.Close()

	store := memory.NewTokenListStore()
	p := New(srv.URL, store)
	ctx := context.Background()

	_, err := p.Get(ctx)
	require.NoError(t, err)

	persisted, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}
