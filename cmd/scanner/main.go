package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/projectdiscovery/goflags"

	"github.com/L1nMay/rangeprobe/internal/config"
	"github.com/L1nMay/rangeprobe/internal/logger"
	"github.com/L1nMay/rangeprobe/internal/model"
	"github.com/L1nMay/rangeprobe/internal/probe"
	"github.com/L1nMay/rangeprobe/internal/providers"
	"github.com/L1nMay/rangeprobe/internal/scan"
)

type options struct {
	ConfigPath string
	CIDRs      goflags.StringSlice
	Provider   string
	Port       int
	CDN        bool
	Offline    bool
	Verbose    bool
	Silent     bool
	NoColor    bool
}

func parseOptions() *options {
	opts := &options{}

	flagSet := goflags.NewFlagSet()
	flagSet.SetDescription(`rangeprobe scanner: one-shot liveness scan of CIDR blocks`)

	flagSet.CreateGroup("input", "Input",
		flagSet.StringSliceVarP(&opts.CIDRs, "cidr", "t", nil, "CIDR blocks or addresses to scan", goflags.CommaSeparatedStringSliceOptions),
		flagSet.StringVarP(&opts.Provider, "provider", "p", "", "scan the published ranges of a cloud provider"),
	)
	flagSet.CreateGroup("probe", "Probe",
		flagSet.IntVar(&opts.Port, "port", 0, "probe only this port instead of the configured list"),
		flagSet.BoolVar(&opts.CDN, "cdn", false, "use the CDN port list"),
	)
	flagSet.CreateGroup("config", "Configuration",
		flagSet.StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to config file"),
	)
	flagSet.CreateGroup("output", "Output",
		flagSet.BoolVar(&opts.Offline, "show-offline", false, "list offline addresses too"),
		flagSet.BoolVarP(&opts.Verbose, "verbose", "v", false, "show debug output"),
		flagSet.BoolVar(&opts.Silent, "silent", false, "hide log output except fatal errors"),
		flagSet.BoolVarP(&opts.NoColor, "no-color", "nc", false, "disable colored output"),
	)

	if err := flagSet.Parse(); err != nil {
		logger.Fatalf("could not parse flags: %v", err)
	}
	return opts
}

func main() {
	opts := parseOptions()
	logger.Configure(opts.Verbose, opts.Silent, opts.NoColor)
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg.Scan.OfflineView = config.ViewCount
	if opts.Offline {
		cfg.Scan.OfflineView = config.ViewList
	}

	var ranges scan.RangeSource
	if opts.Provider != "" {
		ranges = providers.NewCatalog(
			providers.NewClient(cfg.Providers, cfg.RequestTimeout()),
			cfg.RefreshInterval(),
			cfg.Providers.CacheSize,
		)
	}

	prober := probe.New(probe.Options{Ports: cfg.Scan.Ports, Timeout: cfg.ProbeTimeout()})
	runner := scan.NewRunner(cfg, prober, ranges)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := scan.ScanRequest{CIDRs: opts.CIDRs, Provider: opts.Provider, Port: opts.Port}
	if opts.CDN {
		req.Profile = scan.ProfileCDN
	}
	sess, err := runner.Run(ctx, req, func(res model.ProbeResult, probed int) {
		if res.IsOnline() {
			logger.Debugf("[%d] %s online %dms (port %d)", probed, res.IP, res.Latency(), res.Port)
		}
	})
	if errors.Is(err, scan.ErrNothingToScan) {
		logger.Warnf("nothing to scan")
		return
	}
	if err != nil {
		logger.Fatalf("scan failed: %v", err)
	}

	snap := sess.Snapshot()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "IP\tSTATUS\tLATENCY\tPORT")
	for _, r := range snap.Results {
		latency := "-"
		if r.IsOnline() {
			latency = fmt.Sprintf("%dms", r.Latency())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.IP, r.Status, latency, r.Port)
	}
	_ = tw.Flush()

	logger.Infof("scan %s %s: %d/%d probed, %d online, %d offline",
		snap.ID, snap.State, snap.Probed, snap.Total, snap.Online, snap.Offline)
}
