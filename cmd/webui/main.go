package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/projectdiscovery/goflags"
	"golang.org/x/sync/errgroup"

	"github.com/L1nMay/rangeprobe/internal/aggregate"
	"github.com/L1nMay/rangeprobe/internal/config"
	"github.com/L1nMay/rangeprobe/internal/logger"
	"github.com/L1nMay/rangeprobe/internal/notifier"
	"github.com/L1nMay/rangeprobe/internal/optimizer"
	"github.com/L1nMay/rangeprobe/internal/probe"
	"github.com/L1nMay/rangeprobe/internal/providers"
	"github.com/L1nMay/rangeprobe/internal/scan"
	"github.com/L1nMay/rangeprobe/internal/storage"
	"github.com/L1nMay/rangeprobe/internal/telegram"
	"github.com/L1nMay/rangeprobe/internal/webui"
)

type options struct {
	ConfigPath string
	EnvFile    string
	Listen     string
	Verbose    bool
	Silent     bool
	NoColor    bool
}

func parseOptions() *options {
	opts := &options{}

	flagSet := goflags.NewFlagSet()
	flagSet.SetDescription(`rangeprobe web UI: cloud range browser, liveness scanner and config aggregator`)

	flagSet.CreateGroup("config", "Configuration",
		flagSet.StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to config file"),
		flagSet.StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file loaded before the config"),
		flagSet.StringVarP(&opts.Listen, "listen", "l", "", "listen address (overrides webui.listen)"),
	)
	flagSet.CreateGroup("output", "Output",
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

	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("could not load %s: %v", opts.EnvFile, err)
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if opts.Listen != "" {
		cfg.WebUI.Listen = opts.Listen
	}

	store, err := storage.Open(cfg)
	if err != nil {
		logger.Fatalf("failed to open storage: %v", err)
	}
	defer store.Close()

	catalog := providers.NewCatalog(
		providers.NewClient(cfg.Providers, cfg.RequestTimeout()),
		cfg.RefreshInterval(),
		cfg.Providers.CacheSize,
	)
	prober := probe.New(probe.Options{Ports: cfg.Scan.Ports, Timeout: cfg.ProbeTimeout()})
	runner := scan.NewRunner(cfg, prober, catalog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	var opt *optimizer.Optimizer
	var onRefresh func(context.Context)
	if cfg.Optimizer.Enabled {
		optProber := probe.New(probe.Options{Ports: cfg.Optimizer.Ports, Timeout: cfg.ProbeTimeout()})
		opt = optimizer.New(cfg.Optimizer, catalog, optProber.Probe, cfg.Scan.BatchSize)
		onRefresh = opt.OnRefresh

		if cfg.Telegram.Enabled {
			worker := telegram.NewWorker(telegram.NewSenderTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID), 16)
			opt.SetNotifier(notifier.NewTelegramNotifier(cfg, worker))
			g.Go(func() error {
				worker.Run(gctx)
				return nil
			})
		}
	}

	srv := webui.NewServer(cfg, webui.Deps{
		Store:     store,
		Runner:    runner,
		Prober:    prober,
		Catalog:   catalog,
		Optimizer: opt,
		Checker:   aggregate.NewChecker(cfg.CheckTimeout(), cfg.Aggregate.MaxBodyBytes),
	})
	httpSrv := &http.Server{
		Addr:              cfg.WebUI.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		return catalog.Run(gctx, onRefresh)
	})
	g.Go(func() error {
		logger.Infof("Web UI listening on http://%s", cfg.WebUI.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		runner.CancelRunning()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("web ui server error: %v", err)
	}
	logger.Infof("shutdown complete")
}
