package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/L1nMay/rangeprobe/internal/config"
	"github.com/L1nMay/rangeprobe/internal/model"
)

type sliceQueue []string

func (q *sliceQueue) Enqueue(text string) error {
	*q = append(*q, text)
	return nil
}

func TestNotifyOptimalIPs(t *testing.T) {
	cfg := config.Default()
	cfg.Telegram.Enabled = true
	q := &sliceQueue{}
	n := NewTelegramNotifier(cfg, q)

	ips := []model.OptimalIP{
		{IP: "1.1.1.2", Latency: 7, Provider: "cloudflare"},
		{IP: "3.5.140.1", Latency: 21, Provider: "aws"},
	}
	require.NoError(t, n.NotifyOptimalIPs(ips))
	require.Len(t, *q, 1)
	assert.Contains(t, (*q)[0], "2 fastest addresses")
	assert.Contains(t, (*q)[0], "1. `1.1.1.2` 7ms (cloudflare)")
	assert.Contains(t, (*q)[0], "2. `3.5.140.1` 21ms (aws)")
}

func TestNotifySkipped(t *testing.T) {
	cfg := config.Default()
	q := &sliceQueue{}
	n := NewTelegramNotifier(cfg, q)

	require.NoError(t, n.NotifyOptimalIPs([]model.OptimalIP{{IP: "1.1.1.1"}}))
	assert.Empty(t, *q)

	cfg.Telegram.Enabled = true
	require.NoError(t, n.NotifyOptimalIPs(nil))
	assert.Empty(t, *q)
}

func TestFormatOptimalIPsEscapesMarkdown(t *testing.T) {
	out := FormatOptimalIPs("edge_scan*1", []model.OptimalIP{
		{IP: "104.16.0.1", Latency: 9, Provider: "google_cloud"},
		{IP: "1.1.1.1", Latency: 12, Provider: "a[b]`c"},
	})

	assert.Contains(t, out, `*edge\_scan\*1*: 2 fastest addresses`)
	assert.Contains(t, out, "1. `104.16.0.1` 9ms (google\\_cloud)")
	assert.Contains(t, out, "2. `1.1.1.1` 12ms (a\\[b]\\`c)")
}
