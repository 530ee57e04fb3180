package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/L1nMay/rangeprobe/internal/config"
)

const listing = `[
  {"name": "aws.txt", "type": "file"},
  {"name": "README.md", "type": "file"},
  {"name": "google.txt", "type": "file"}
]`

const merged = `# Provider: aws
3.5.140.0/22
2600:1f00::/24
# Provider: google
8.8.8.0/24
3.5.140.0/24
`

type upstream struct {
	srv       *httptest.Server
	rangeHits atomic.Int32
	fail      atomic.Bool
}

func newUpstream(t *testing.T) *upstream {
	u := &upstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("/contents/txt", func(w http.ResponseWriter, r *http.Request) {
		if u.fail.Load() {
			http.Error(w, "rate limited", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, listing)
	})
	mux.HandleFunc("/txt/aws.txt", func(w http.ResponseWriter, r *http.Request) {
		u.rangeHits.Add(1)
		fmt.Fprint(w, "# aws\n3.5.140.0/22\n\n52.0.0.0/15\n")
	})
	mux.HandleFunc("/merged.txt", func(w http.ResponseWriter, r *http.Request) {
		if u.fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, merged)
	})
	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) client() *Client {
	return NewClient(config.ProvidersConfig{
		ListURL:   u.srv.URL + "/contents/txt",
		RangeURL:  u.srv.URL + "/txt/%s.txt",
		MergedURL: u.srv.URL + "/merged.txt",
	}, 5*time.Second)
}

func TestClientList(t *testing.T) {
	u := newUpstream(t)

	ids, err := u.client().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"aws", "google"}, ids)
}

func TestClientRange(t *testing.T) {
	u := newUpstream(t)
	c := u.client()

	text, err := c.Range(context.Background(), "aws")
	require.NoError(t, err)
	assert.Equal(t, []string{"3.5.140.0/22", "52.0.0.0/15"}, CIDRs(text))

	_, err = c.Range(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Range(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidProvider)
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("aws"))
	assert.True(t, ValidID("digital-ocean_v2.1"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID(".."))
	assert.False(t, ValidID("a/b"))
	assert.False(t, ValidID("a b"))
}

func TestCatalogRefreshAndStalePolicy(t *testing.T) {
	u := newUpstream(t)
	cat := NewCatalog(u.client(), time.Hour, 16)

	st := cat.Status()
	assert.Zero(t, st.Providers)
	assert.Nil(t, st.LastUpdate)

	require.NoError(t, cat.Refresh(context.Background()))
	st = cat.Status()
	assert.Equal(t, 2, st.Providers)
	require.NotNil(t, st.LastUpdate)
	require.NotNil(t, st.NextUpdate)
	assert.Equal(t, time.Hour, st.NextUpdate.Sub(*st.LastUpdate))
	assert.False(t, st.Stale)

	u.fail.Store(true)
	assert.Error(t, cat.Refresh(context.Background()))

	st = cat.Status()
	assert.True(t, st.Stale)
	assert.NotEmpty(t, st.LastError)
	assert.Equal(t, 2, st.Providers)

	providers, err := cat.Providers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"aws", "google"}, providers)

	text, updated, err := cat.Merged(context.Background())
	require.NoError(t, err)
	assert.Equal(t, merged, text)
	assert.False(t, updated.IsZero())

	u.fail.Store(false)
	require.NoError(t, cat.Refresh(context.Background()))
	assert.False(t, cat.Status().Stale)
}

func TestCatalogOnDemandBeforeRefresh(t *testing.T) {
	u := newUpstream(t)
	cat := NewCatalog(u.client(), time.Hour, 16)

	providers, err := cat.Providers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"aws", "google"}, providers)

	text, updated, err := cat.Merged(context.Background())
	require.NoError(t, err)
	assert.Equal(t, merged, text)
	assert.True(t, updated.IsZero())
}

func TestCatalogOnDemandFailure(t *testing.T) {
	u := newUpstream(t)
	u.fail.Store(true)
	cat := NewCatalog(u.client(), time.Hour, 16)

	_, err := cat.Providers(context.Background())
	assert.Error(t, err)
	_, _, err = cat.Merged(context.Background())
	assert.Error(t, err)
}

func TestCatalogRangesCached(t *testing.T) {
	u := newUpstream(t)
	cat := NewCatalog(u.client(), time.Hour, 16)

	for i := 0; i < 3; i++ {
		text, err := cat.Ranges(context.Background(), "aws")
		require.NoError(t, err)
		assert.Contains(t, text, "52.0.0.0/15")
	}
	assert.Equal(t, int32(1), u.rangeHits.Load())

	_, err := cat.Ranges(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = cat.Ranges(context.Background(), "bad/id")
	assert.ErrorIs(t, err, ErrInvalidProvider)
}

type countingSource struct {
	mu    sync.Mutex
	lists int
}

func (s *countingSource) List(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	return []string{"aws"}, nil
}

func (s *countingSource) Range(context.Context, string) (string, error) {
	return "", errors.New("unused")
}

func (s *countingSource) Merged(context.Context) (string, error) {
	return merged, nil
}

func TestCatalogRunRefreshesAndStops(t *testing.T) {
	src := &countingSource{}
	cat := NewCatalog(src, 20*time.Millisecond, 4)

	ctx, cancel := context.WithCancel(context.Background())
	var refreshes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- cat.Run(ctx, func(context.Context) {
			if refreshes.Add(1) == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.GreaterOrEqual(t, refreshes.Load(), int32(3))
	assert.Equal(t, 1, cat.Status().Providers)
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		want []Match
	}{
		{
			name: "matches in two providers",
			ip:   "3.5.140.7",
			want: []Match{{Provider: "aws", Network: "3.5.140.0/22"}, {Provider: "google", Network: "3.5.140.0/24"}},
		},
		{
			name: "outside the narrower network",
			ip:   "3.5.141.1",
			want: []Match{{Provider: "aws", Network: "3.5.140.0/22"}},
		},
		{
			name: "ipv6",
			ip:   "2600:1f00::1",
			want: []Match{{Provider: "aws", Network: "2600:1f00::/24"}},
		},
		{
			name: "ipv4-mapped ipv6",
			ip:   "::ffff:8.8.8.8",
			want: []Match{{Provider: "google", Network: "8.8.8.0/24"}},
		},
		{
			name: "no match",
			ip:   "192.0.2.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := netip.MustParseAddr(tt.ip)
			assert.Equal(t, tt.want, Lookup(ip, merged))
		})
	}
}

func TestLookupIgnoresHeaderlessNetworks(t *testing.T) {
	text := "10.0.0.0/8\n# Provider: x\nnot-a-cidr/8\n10.0.0.0/16\n"
	got := Lookup(netip.MustParseAddr("10.0.0.1"), text)
	assert.Equal(t, []Match{{Provider: "x", Network: "10.0.0.0/16"}}, got)
}
