package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vremyavnikuda/sysinfo-utils/internal/backends/amdgpu"
	"github.com/vremyavnikuda/sysinfo-utils/internal/backends/intelgpu"
	"github.com/vremyavnikuda/sysinfo-utils/internal/backends/nvml"
	"github.com/vremyavnikuda/sysinfo-utils/internal/config"
	"github.com/vremyavnikuda/sysinfo-utils/internal/gpu"
	"github.com/vremyavnikuda/sysinfo-utils/internal/logger"
	"github.com/vremyavnikuda/sysinfo-utils/internal/sysinfo"
	"github.com/vremyavnikuda/sysinfo-utils/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("gpuinfo failed")
		os.Exit(1)
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal")
	cancel()
}

func run(ctx context.Context, cfg *config.Config) error {
	nvidia := nvml.New()
	defer nvidia.Close()

	registry := gpu.NewRegistry()
	registry.Register(nvidia)
	registry.Register(amdgpu.New())
	registry.Register(intelgpu.New())

	manager := gpu.NewManager(registry,
		gpu.WithCacheConfig(cfg.CacheTTL, cfg.CacheEntries),
		gpu.WithAsyncWorkers(cfg.AsyncWorkers),
	)
	defer manager.Close()

	var collector telemetry.Collector
	if cfg.Telemetry {
		tcfg := telemetry.DefaultConfig()
		if cfg.TelemetryDB != "" {
			tcfg.DBPath = cfg.TelemetryDB
		}
		var err error
		collector, err = telemetry.NewService(tcfg)
		if err != nil {
			return err
		}
		defer collector.Close()
	}

	return report(ctx, cfg, manager, collector)
}

// report gathers host facts and GPU snapshots in parallel, records
// telemetry when enabled, and renders the result. The host probe is
// best-effort; GPU collection failures are already resolved to last
// known records further down.
func report(ctx context.Context, cfg *config.Config, manager *gpu.Manager, collector telemetry.Collector) error {
	var (
		host    *sysinfo.Report
		devices []*gpu.DeviceRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := sysinfo.Collect(gctx)
		if err != nil {
			logger.Warn().Err(err).Msg("Host information unavailable")
			return nil
		}
		host = r
		return nil
	})
	g.Go(func() error {
		res := <-manager.GetAllAsync(gctx)
		if res.Err != nil {
			return res.Err
		}
		devices = res.Devices
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if collector != nil {
		now := time.Now().UTC()
		for i, device := range devices {
			obs := &telemetry.Observation{Timestamp: now, DeviceIndex: i, Device: device.Clone()}
			if err := collector.Record(ctx, obs); err != nil {
				logger.Warn().Err(err).Int("index", i).Msg("Failed to record observation")
			}
		}
	}

	if cfg.JSON {
		return renderJSON(os.Stdout, host, devices)
	}
	return renderText(os.Stdout, host, devices)
}
