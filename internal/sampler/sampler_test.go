package sampler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlock(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		ok     bool
		base   string
		prefix int
	}{
		{name: "cidr", token: "10.0.0.0/8", ok: true, base: "10.0.0.0", prefix: 8},
		{name: "bare address defaults to /32", token: "1.1.1.1", ok: true, base: "1.1.1.1", prefix: 32},
		{name: "unmasked base kept", token: "192.168.1.7/24", ok: true, base: "192.168.1.7", prefix: 24},
		{name: "prefix zero", token: "0.0.0.0/0", ok: true, base: "0.0.0.0", prefix: 0},
		{name: "non-numeric prefix", token: "10.0.0.0/abc", ok: false},
		{name: "empty prefix", token: "10.0.0.0/", ok: false},
		{name: "prefix too large", token: "10.0.0.0/33", ok: false},
		{name: "negative prefix", token: "10.0.0.0/-1", ok: false},
		{name: "garbage", token: "not-an-ip", ok: false},
		{name: "ipv6", token: "2001:db8::/32", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := ParseBlock(tt.token)
			require.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.base, Format(b.Base))
			assert.Equal(t, tt.prefix, b.Prefix)
		})
	}
}

func TestAddCarry(t *testing.T) {
	base, ok := ParseAddr("1.2.3.255")
	require.True(t, ok)

	next, ok := Add(base, 1)
	require.True(t, ok)
	assert.Equal(t, "1.2.4.0", Format(next))

	base, _ = ParseAddr("1.255.255.255")
	next, ok = Add(base, 1)
	require.True(t, ok)
	assert.Equal(t, "2.0.0.0", Format(next))

	top, _ := ParseAddr("255.255.255.255")
	_, ok = Add(top, 1)
	assert.False(t, ok, "stepping past the top of the address space must not wrap")

	same, ok := Add(top, 0)
	require.True(t, ok)
	assert.Equal(t, "255.255.255.255", Format(same))
}

func TestSampleSingleHost(t *testing.T) {
	s := New(DefaultOptions())
	assert.Equal(t, []string{"8.8.8.8"}, s.Sample([]string{"8.8.8.8/32"}))
	assert.Equal(t, []string{"8.8.4.4"}, s.Sample([]string{"8.8.4.4"}))
}

func TestSampleSmallBlockDense(t *testing.T) {
	s := New(Options{Budget: 1_000_000, Threshold: 500_000, MinPerBlock: 10})
	got := s.Sample([]string{"192.168.1.0/30"})
	assert.Equal(t, []string{"192.168.1.0", "192.168.1.1", "192.168.1.2", "192.168.1.3"}, got)
}

func TestSampleDenseAscendingNoDuplicates(t *testing.T) {
	s := New(DefaultOptions())
	got := s.Sample([]string{"10.1.2.0/22"})
	require.Len(t, got, 1024)

	seen := make(map[string]struct{}, len(got))
	var prev uint32
	for i, ip := range got {
		_, dup := seen[ip]
		require.False(t, dup, "duplicate %s", ip)
		seen[ip] = struct{}{}

		n, ok := ParseAddr(ip)
		require.True(t, ok)
		if i > 0 {
			require.Greater(t, n, prev)
		}
		prev = n
	}
	assert.Equal(t, "10.1.5.255", got[len(got)-1])
}

func TestSampleBlockOrderPreserved(t *testing.T) {
	s := New(DefaultOptions())
	got := s.Sample([]string{"10.0.0.4/31", "1.1.1.1", "10.0.0.0/31"})
	assert.Equal(t, []string{"10.0.0.4", "10.0.0.5", "1.1.1.1", "10.0.0.0", "10.0.0.1"}, got)
}

func TestSampleMalformedSkipped(t *testing.T) {
	s := New(DefaultOptions())
	got := s.Sample([]string{"bogus", "10.0.0.0/x", "10.0.0.0/31", "", "300.1.1.1/32"})
	assert.Equal(t, []string{"10.0.0.0", "10.0.0.1"}, got)

	assert.Empty(t, s.Sample(nil))
	assert.Empty(t, s.Sample([]string{"nope"}))
}

func TestSampleLargeBlockEvenlySpaced(t *testing.T) {
	s := New(Options{Budget: 1000, Threshold: 1000, MinPerBlock: 10})
	got := s.Sample([]string{"10.0.0.0/16"})
	require.Len(t, got, 1000)

	// 65536 / 1000 = 65
	assert.Equal(t, "10.0.0.0", got[0])
	assert.Equal(t, "10.0.0.65", got[1])
	assert.Equal(t, "10.0.0.130", got[2])
	assert.Equal(t, "10.0.1.4", got[4])
}

func TestSampleBudgetNeverExceeded(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		tokens []string
	}{
		{
			name:   "few huge blocks",
			opts:   Options{Budget: 5000, Threshold: 5000, MinPerBlock: 10},
			tokens: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		},
		{
			name:   "minimum per block overshoots the budget",
			opts:   Options{Budget: 100, Threshold: 100, MinPerBlock: 10},
			tokens: manyBlocks(50),
		},
		{
			name:   "whole address space",
			opts:   Options{Budget: 50000, Threshold: 50000, MinPerBlock: 10},
			tokens: []string{"0.0.0.0/0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.opts).Sample(tt.tokens)
			assert.LessOrEqual(t, len(got), tt.opts.Budget)
			assert.NotEmpty(t, got)
		})
	}
}

func TestSampleStopsMidBlock(t *testing.T) {
	s := New(Options{Budget: 25, Threshold: 10, MinPerBlock: 20})
	got := s.Sample([]string{"10.0.0.0/24", "10.0.1.0/24"})
	require.Len(t, got, 25)

	// 20 from the first block (stride 256/20 = 12), 5 from the second.
	assert.Equal(t, "10.0.0.0", got[0])
	assert.Equal(t, "10.0.0.12", got[1])
	assert.Equal(t, "10.0.1.0", got[20])
	assert.Equal(t, "10.0.1.48", got[24])
}

func TestSampleTopOfSpaceDoesNotWrap(t *testing.T) {
	s := New(DefaultOptions())
	got := s.Sample([]string{"255.255.255.254/30"})
	assert.Equal(t, []string{"255.255.255.254", "255.255.255.255"}, got)
}

func TestEachEarlyStop(t *testing.T) {
	s := New(DefaultOptions())
	var got []string
	s.Each([]string{"10.0.0.0/24"}, func(addr string) bool {
		got = append(got, addr)
		return len(got) < 3
	})
	assert.Equal(t, []string{"10.0.0.0", "10.0.0.1", "10.0.0.2"}, got)
}

func TestSplitTokens(t *testing.T) {
	in := "# Provider: aws\n1.1.1.0/24, 2.2.2.0/24\n\n  3.3.3.3  4.4.4.0/30\r\n"
	assert.Equal(t, []string{"1.1.1.0/24", "2.2.2.0/24", "3.3.3.3", "4.4.4.0/30"}, SplitTokens(in))
	assert.Empty(t, SplitTokens(""))
}

func manyBlocks(n int) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, Format(uint32(10)<<24|uint32(i)<<16)+"/16")
	}
	return out
}
