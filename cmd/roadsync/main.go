package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"roadsync/internal/config"
	"roadsync/internal/connectivity"
	"roadsync/internal/gateway"
	"roadsync/internal/logging"
	"roadsync/internal/media"
	"roadsync/internal/queue"
	"roadsync/internal/spool"
	"roadsync/internal/syncer"
	"roadsync/internal/watch"
)

var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)
	logger.Info("roadsync starting",
		slog.String("version", Version),
		slog.String("backend", cfg.Backend),
		slog.String("media", cfg.MediaBackend),
		slog.String("owner", cfg.OwnerID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openQueue(cfg, logging.ForComponent(logger, "queue"))
	if err != nil {
		return fmt.Errorf("opening queue: %w", err)
	}
	defer store.Close()

	gw, closeGW, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("building gateway: %w", err)
	}
	defer closeGW()

	cached := gateway.NewCachedListGateway(gw, cfg.ListTimeout(), logging.ForComponent(logger, "cache"))
	if cfg.DemoDataset != "" {
		if err := cached.SeedFromFile(cfg.DemoDataset); err != nil {
			return fmt.Errorf("seeding demo dataset: %w", err)
		}
	}

	uploader, err := buildUploader(cfg)
	if err != nil {
		return fmt.Errorf("building media uploader: %w", err)
	}

	monitor := connectivity.NewMonitor(logging.ForComponent(logger, "connectivity"))
	monitor.Init(ctx, connectivity.HTTPProber{URL: cfg.ProbeURL})

	orch := syncer.New(store, cached, uploader, monitor, logging.ForComponent(logger, "syncer"))

	watcher := watch.New(cached,
		watch.LogNotifier{Logger: logging.ForComponent(logger, "notify")},
		cfg.OwnerID,
		logging.ForComponent(logger, "watch"),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return orch.Run(gctx)
	})

	// The REST backend needs a feed URL for live status updates; skip
	// the watcher rather than restart-loop against a missing stream.
	if cfg.Backend != config.BackendREST || cfg.FeedURL != "" {
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	} else {
		logger.Info("no change feed configured, status watcher disabled")
	}

	if cfg.SpoolDir != "" {
		sp := spool.New(cfg.SpoolDir, cfg.OwnerID, orch, logging.ForComponent(logger, "spool"))
		g.Go(func() error {
			return sp.Run(gctx)
		})
	}

	return g.Wait()
}

func openQueue(cfg *config.Config, logger *slog.Logger) (*queue.Store, error) {
	if cfg.QueueDBPath != "" {
		return queue.OpenAt(cfg.QueueDBPath, logger)
	}

	return queue.Open(logger)
}

func buildGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gateway.ReportGateway, func(), error) {
	switch cfg.Backend {
	case config.BackendMongo:
		gw, err := gateway.NewMongoGateway(ctx, cfg.MongoURI, cfg.MongoDB, logging.ForComponent(logger, "mongo"))
		if err != nil {
			return nil, nil, err
		}

		return gw, func() { _ = gw.Close(context.Background()) }, nil

	case config.BackendREST:
		gw := gateway.NewRESTGateway(cfg.RESTBaseURL, cfg.FeedURL, nil, logging.ForComponent(logger, "rest"))

		return gw, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func buildUploader(cfg *config.Config) (media.Uploader, error) {
	switch cfg.MediaBackend {
	case config.MediaMinio:
		return media.NewMinioUploader(media.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})

	case config.MediaCloudinary:
		return media.NewCloudinaryUploader(cfg.CloudinaryCloud, cfg.CloudinaryKey, cfg.CloudinarySecret)

	default:
		return media.Disabled{}, nil
	}
}
