package notifier

import (
	"fmt"
	"strings"

	"github.com/L1nMay/rangeprobe/internal/config"
	"github.com/L1nMay/rangeprobe/internal/model"
)

// Queue accepts formatted messages for delivery. *telegram.Worker
// implements it.
type Queue interface {
	Enqueue(text string) error
}

type TelegramNotifier struct {
	cfg   *config.Config
	queue Queue
}

func NewTelegramNotifier(cfg *config.Config, queue Queue) *TelegramNotifier {
	return &TelegramNotifier{cfg: cfg, queue: queue}
}

func (t *TelegramNotifier) NotifyOptimalIPs(ips []model.OptimalIP) error {
	if !t.cfg.Telegram.Enabled || len(ips) == 0 {
		return nil
	}
	return t.queue.Enqueue(FormatOptimalIPs(t.cfg.ScanName, ips))
}

func FormatOptimalIPs(name string, ips []model.OptimalIP) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*: %d fastest addresses\n\n", escapeMarkdown(name), len(ips))
	for i, ip := range ips {
		fmt.Fprintf(&b, "%d. `%s` %dms (%s)\n", i+1, ip.IP, ip.Latency, escapeMarkdown(ip.Provider))
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// escapeMarkdown escapes the entity characters of Telegram's legacy Markdown.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
