package notifier

import "github.com/L1nMay/rangeprobe/internal/model"

type Notifier interface {
	NotifyOptimalIPs(ips []model.OptimalIP) error
}
