package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"asset-studio/internal/backend"
	"asset-studio/internal/batch"
	"asset-studio/internal/config"
	"asset-studio/internal/logging"
	"asset-studio/internal/metrics"
	"asset-studio/internal/modality"
	"asset-studio/internal/pipeline"
	"asset-studio/internal/render"
	"asset-studio/internal/viewer"
)

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config file (.yaml, .yml or .json)")
	backendURL := flag.String("backend", "", "Backend base URL (default: http://localhost:8000)")
	timeout := flag.Duration("timeout", 0, "Per-request timeout (default: 60s)")
	workers := flag.Int("workers", 0, "Concurrent result renderers (default: NumCPU)")
	outputDir := flag.String("output", "", "Write results and viewer snapshots to this directory")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	logFormat := flag.String("log-format", "", "console or json")
	preprocess := flag.String("preprocess", "", "Comma-separated preprocessing techniques")
	augment := flag.String("augment", "", "Comma-separated augmentation techniques")
	chain := flag.String("chain", "", "Preprocessing result to use as augmentation input")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	list := flag.Bool("list", false, "Print the techniques offered for the uploaded asset")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		BackendURL:  *backendURL,
		Timeout:     *timeout,
		Workers:     *workers,
		SnapshotDir: *outputDir,
		LogLevel:    *logLevel,
		LogFormat:   *logFormat,
	})

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, options{
		file:        flag.Arg(0),
		preprocess:  pipeline.NewSelection(strings.Split(*preprocess, ",")...),
		augment:     pipeline.NewSelection(strings.Split(*augment, ",")...),
		chain:       strings.TrimSpace(*chain),
		metricsAddr: *metricsAddr,
		list:        *list,
	}); err != nil {
		logger.Error("studio failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	file        string
	preprocess  pipeline.Selection
	augment     pipeline.Selection
	chain       string
	metricsAddr string
	list        bool
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger, opts options) error {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(cfg.MetricsNamespace, reg, logger)
	if opts.metricsAddr != "" {
		srv := &http.Server{Addr: opts.metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	client, err := backend.NewClient(backend.Config{
		BaseURL:   cfg.BackendURL,
		Timeout:   cfg.RequestTimeout.Std(),
		RateLimit: cfg.RateLimit,
		Burst:     cfg.RateBurst,
	}, logger)
	if err != nil {
		return err
	}
	client.SetObserver(collector)

	page := viewer.NewPage()
	viewers := viewer.NewManager(page,
		viewer.WithLogger(logger),
		viewer.WithFrameRate(cfg.FrameRate),
		viewer.WithSupersample(cfg.Supersample),
		viewer.WithObserver(collector),
	)
	renderer := render.NewDefaultRegistry(logger, viewers, cfg.ThumbnailSize)
	renderer.SetFallbackObserver(collector)

	ctrl := pipeline.New(client, renderer, viewers, page,
		pipeline.WithLogger(logger),
		pipeline.WithRenderWorkers(cfg.RenderWorkers),
		pipeline.WithPanelSize(cfg.ViewerWidth, cfg.ViewerHeight),
	)
	defer ctrl.Close()

	f, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.file, err)
	}
	sess, err := ctrl.Upload(ctx, filepath.Base(opts.file), f)
	f.Close()
	if err != nil {
		return err
	}

	fmt.Printf("Asset Studio → %s\n", cfg.BackendURL)
	fmt.Printf("Asset: %s (%s), session %s\n", sess.Filename, sess.Modality, sess.ID)
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("  %s\n", ctrl.Preview().Describe())

	if opts.list {
		printTechniques(sess.Modality)
	}

	// Result viewers are replaced by every run, so each stage is exported
	// before the next one starts.
	start := time.Now()
	var results []batch.Result
	export := func(items []batch.Item) {
		if cfg.SnapshotDir == "" {
			return
		}
		results = append(results, batch.Run(batch.Config{
			OutputDir:     cfg.SnapshotDir,
			Workers:       cfg.RenderWorkers,
			Viewers:       viewers,
			ThumbnailSize: cfg.ThumbnailSize,
			Logger:        logger,
		}, items)...)
	}

	export([]batch.Item{{Name: "original", Result: ctrl.Preview()}})

	if !opts.preprocess.Empty() {
		b, err := ctrl.RunTechniques(ctx, pipeline.Preprocess, opts.preprocess)
		if err != nil {
			return err
		}
		export(printBatch(b))

		if opts.chain != "" {
			res, ok := b.Result(opts.chain)
			if !ok {
				return fmt.Errorf("no preprocessing result %q to chain", opts.chain)
			}
			if err := res.Promote(); err != nil {
				return err
			}
			fmt.Printf("Selected %q as augmentation input\n", opts.chain)
		}
	}

	if !opts.augment.Empty() {
		b, err := ctrl.RunTechniques(ctx, pipeline.Augment, opts.augment)
		if err != nil {
			return err
		}
		export(printBatch(b))
	}

	if cfg.SnapshotDir == "" {
		return nil
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
			fmt.Printf("  %s: %s\n", r.Name, r.Error)
		}
	}
	fmt.Println("------------------------------------------------------------")
	fmt.Printf("Exported %d/%d in %.1fs to %s\n", len(results)-failed, len(results), time.Since(start).Seconds(), cfg.SnapshotDir)

	manifestPath := filepath.Join(cfg.SnapshotDir, "manifest.json")
	if err := batch.WriteManifest(manifestPath, results); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: manifest write failed: %v\n", err)
	} else {
		fmt.Printf("Manifest: %s\n", manifestPath)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d exports failed", failed, len(results))
	}
	return nil
}

func printTechniques(m modality.Modality) {
	fmt.Println("Preprocessing:")
	for _, t := range modality.PreprocessingTechniques(m) {
		fmt.Printf("  %-20s %s\n", t.ID, t.Label)
	}
	fmt.Println("Augmentation:")
	for _, t := range modality.AugmentationTechniques(m) {
		fmt.Printf("  %-20s %s\n", t.ID, t.Label)
	}
}

func printBatch(b *pipeline.Batch) []batch.Item {
	label := "Processed"
	if b.Kind == pipeline.Augment {
		label = "Augmented"
	}
	items := make([]batch.Item, 0, len(b.Entries))
	for _, e := range b.Entries {
		fmt.Printf("  %s - %s\n", label, e.Result.Describe())
		items = append(items, batch.Item{Name: string(b.Kind) + "-" + e.Technique, Result: e.Result})
	}
	return items
}
