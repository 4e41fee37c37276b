// Command tesserad runs the Tessera WAL compactor: it continuously folds
// small write-ahead-log segments into larger columnar files, uploads them
// to object storage and retires the consumed segments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tessera-io/tessera/internal/compactor"
	"github.com/tessera-io/tessera/internal/config"
	"github.com/tessera-io/tessera/internal/filelist"
	"github.com/tessera-io/tessera/internal/fts"
	"github.com/tessera-io/tessera/internal/locks"
	"github.com/tessera-io/tessera/internal/logging"
	"github.com/tessera-io/tessera/internal/merge"
	oxiastore "github.com/tessera-io/tessera/internal/metadata/oxia"
	"github.com/tessera-io/tessera/internal/metrics"
	"github.com/tessera-io/tessera/internal/notify"
	"github.com/tessera-io/tessera/internal/objectstore"
	"github.com/tessera-io/tessera/internal/objectstore/s3"
	"github.com/tessera-io/tessera/internal/stream"
	"github.com/tessera-io/tessera/internal/wal"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "tesserad: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Observability.LogLevel),
		Format: logging.ParseFormat(cfg.Observability.LogFormat),
	})
	log.Info("starting tesserad", map[string]any{
		"wal_root": cfg.WAL.RootDir,
		"workers":  cfg.Compactor.Workers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	meta, err := oxiastore.New(ctx, oxiastore.Config{
		ServiceAddress: cfg.Metadata.OxiaEndpoint,
		Namespace:      cfg.Metadata.Namespace,
	})
	if err != nil {
		return fmt.Errorf("metadata store: %w", err)
	}
	defer meta.Close()

	router, err := buildRouter(ctx, cfg)
	if err != nil {
		return err
	}
	defer router.Close()

	metricsServer := metrics.NewServer(cfg.Observability.MetricsAddr)
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	defer metricsServer.Close()
	log.Info("metrics listening", map[string]any{"addr": metricsServer.Addr()})

	m := metrics.NewCompactorMetrics()
	claims := compactor.NewClaimSet()
	cache := wal.NewMetaCache()

	coordinator := compactor.NewCoordinator(
		cfg.WAL.RootDir,
		claims,
		cache,
		locks.NewMetaRegistry(meta),
		compactor.NewPendingStore(meta),
		compactor.NewRemovingMarkers(meta),
		router.AccountFor,
		m,
		log,
	)

	var ftsBuilder *fts.Builder
	if cfg.Index.Enabled {
		codec, err := fts.ParseCodec(cfg.Index.Codec)
		if err != nil {
			return err
		}
		ftsBuilder = fts.NewBuilder(codec)
	}

	var observers []compactor.Observer
	if cfg.Notify.Enabled {
		publisher, err := notify.NewPublisher(ctx, notify.Config{
			Brokers: cfg.Notify.Brokers,
			Topic:   cfg.Notify.Topic,
		}, log)
		if err != nil {
			return fmt.Errorf("notify publisher: %w", err)
		}
		defer publisher.Close()
		observers = append(observers, publisher)
	}

	engine := compactor.NewEngine(compactor.EngineConfig{
		Root:          cfg.WAL.RootDir,
		Suffix:        cfg.WAL.SegmentSuffix,
		ScanBatchSize: cfg.Compactor.ScanBatchSize,
		Workers:       cfg.Compactor.Workers,
		Planner: compactor.PlannerConfig{
			MaxFileSizeBytes: cfg.Compactor.MaxFileSizeBytes,
			MinFileSizeBytes: cfg.Compactor.MinFileSizeBytes,
			MaxSegmentAge:    cfg.Compactor.MaxSegmentAge(),
			FieldLimit:       cfg.Compactor.FieldLimit,
		},
		IndexEnabled: cfg.Index.Enabled,
	}, compactor.EngineDeps{
		Claims:               claims,
		Cache:                cache,
		Streams:              stream.NewMetaStore(meta),
		Merger:               merge.NewParquetMerger(),
		Router:               router,
		Files:                filelist.NewMetaIndex(meta),
		Coordinator:          coordinator,
		FTSBuilder:           ftsBuilder,
		Observers:            observers,
		Metrics:              m,
		Log:                  log,
		DefaultRetentionDays: cfg.Compactor.DefaultRetentionDays,
	})

	controller := compactor.NewController(
		engine,
		cfg.Compactor.Interval(),
		cfg.Compactor.DrainBackoffMin(),
		cfg.Compactor.DrainBackoffMax(),
		log,
	)

	// SIGUSR1 drains: flush everything, then exit.
	drainCh := make(chan os.Signal, 1)
	signal.Notify(drainCh, syscall.SIGUSR1)
	go func() {
		for range drainCh {
			controller.Drain()
		}
	}()

	err = controller.Run(ctx)
	log.Info("tesserad stopped", map[string]any{"state": controller.State().String()})
	return err
}

func buildRouter(ctx context.Context, cfg *config.Config) (*objectstore.Router, error) {
	if len(cfg.ObjectStore.Accounts) == 0 {
		return nil, fmt.Errorf("object store: at least one account is required")
	}
	stores := make(map[string]objectstore.Store, len(cfg.ObjectStore.Accounts))
	for _, account := range cfg.ObjectStore.Accounts {
		store, err := s3.New(ctx, s3.Config{
			Bucket:          account.Bucket,
			Region:          account.Region,
			Endpoint:        account.Endpoint,
			AccessKeyID:     account.AccessKey,
			SecretAccessKey: account.SecretKey,
			UsePathStyle:    account.Endpoint != "",
		})
		if err != nil {
			return nil, fmt.Errorf("object store account %s: %w", account.Name, err)
		}
		stores[account.Name] = store
	}
	return objectstore.NewRouter(stores)
}
