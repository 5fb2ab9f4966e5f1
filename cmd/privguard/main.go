package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"privguard/internal/api"
	"privguard/internal/config"
	"privguard/internal/logging"
	"privguard/internal/monitor"
	"privguard/internal/platform/adb"
	"privguard/internal/recommend"
	"privguard/internal/scanner"
	"privguard/internal/sched"
	"privguard/internal/settings"
	"privguard/internal/storage"
)

const version = "0.4.0"

func main() {
	configPath := flag.String("config", "", "path to config file (yaml or json)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("privguard", version)
		return
	}

	var cfgManager *config.Manager
	if *configPath != "" {
		m, err := config.NewManager(config.ResolvePath(*configPath))
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(1)
		}
		cfgManager = m
	} else {
		cfgManager = config.NewStaticManager(config.DefaultConfig())
	}
	cfg := cfgManager.Get()
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting privguard", "version", version, "config", cfgManager.Path())

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		logger.Error("store open failed", "err", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Init(ctx); err != nil {
		logger.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	device, err := adb.New(cfg.Device.ADBPath, cfg.Device.Serial, cfg.Device.SelfPackage, cfg.Scan.LabelCache, logger)
	if err != nil {
		logger.Error("device setup failed", "err", err)
		os.Exit(1)
	}

	st := settings.New(store, cfg.Maintenance.DefaultThresholdDays)
	feed := recommend.NewFeed(store, logger)
	delta := recommend.NewDeltaChecker(device, device, store, feed, cfg.Device.SelfPackage, logger)
	sc := scanner.New(device, store, delta, cfg.Device.SelfPackage, logger)
	detector := monitor.NewDetector(cfg, store, st, device, device, device, device, device, feed, logger)
	finder := recommend.NewUnusedAppFinder(device, device, feed, st, cfg.Device.SelfPackage, logger)
	watcher := scanner.NewWatcher(device, store, feed, delta, cfg.Device.SelfPackage, logger)

	retention := sched.JobFunc{
		JobName: "log-retention",
		Fn: func(ctx context.Context) sched.Result {
			cutoff := time.Now().UTC().Add(-cfgManager.Get().Maintenance.LogRetention)
			deleted, err := store.DeleteSensorLogsBefore(ctx, cutoff)
			if err != nil {
				logger.Error("log retention sweep failed", "err", err)
				return sched.Retry
			}
			if deleted > 0 {
				logger.Info("log retention sweep", "deleted", deleted)
			}
			return sched.Success
		},
	}

	runner := sched.NewRunner(logger, cfg.Maintenance.RetryBackoff)
	go runner.Every(ctx, cfg.Scan.Interval, sc)
	go runner.Every(ctx, cfg.Scan.Interval, watcher)
	go runner.Every(ctx, cfg.Maintenance.Interval, finder)
	go runner.Every(ctx, cfg.Maintenance.Interval, retention)
	go detector.Run(ctx)

	go cfgManager.Watch(3*time.Second,
		func(next *config.Config) {
			detector.UpdateConfig(next)
			logger.Info("config reloaded", "path", cfgManager.Path())
		},
		func(err error) {
			logger.Warn("config reload failed", "err", err)
		},
		ctx.Done())

	api.Start(ctx, cfgManager, sc, detector, feed, st, store, logger, version)

	<-ctx.Done()
	logger.Info("shutting down")
}
