package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/psantana5/hls-server/pkg/api"
	"github.com/psantana5/hls-server/pkg/config"
	"github.com/psantana5/hls-server/pkg/engine"
	"github.com/psantana5/hls-server/pkg/logging"
	"github.com/psantana5/hls-server/pkg/metrics"
	"github.com/psantana5/hls-server/pkg/runner"
	"github.com/psantana5/hls-server/pkg/shutdown"
	"github.com/psantana5/hls-server/pkg/storage"
	"github.com/psantana5/hls-server/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	listenAddr := flag.String("listen", "", "listen address (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)
	logger.Info("Starting HLS transcoding server", map[string]interface{}{
		"listen":          cfg.ListenAddr,
		"max_concurrent":  cfg.MaxConcurrentJobs,
		"segment_seconds": cfg.SegmentSeconds,
	})

	layout, err := storage.NewLayout(cfg.UploadDir, cfg.StreamDir)
	if err != nil {
		log.Fatalf("Failed to prepare storage: %v", err)
	}

	jobStore := store.NewJobStore()
	exporter := metrics.NewExporter(jobStore)

	ffmpeg := engine.NewFFmpegEngine(cfg.FFmpegPath, cfg.SegmentSeconds)
	prober := engine.NewFFprobeProber(cfg.FFprobePath)

	jobRunner := runner.New(jobStore, ffmpeg, prober, layout, logger, cfg.MaxConcurrentJobs)
	jobRunner.SetMetrics(exporter)

	handler := api.NewHandler(jobStore, jobRunner, layout, logger, cfg.MaxUploadBytes)
	handler.SetMetrics(exporter)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	router.Handle("/metrics", exporter).Methods("GET")
	router.Use(api.CORSMiddleware, api.LoggingMiddleware(logger))

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Minute, // large uploads
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// LIFO: drain the HTTP server first, then wait for in-flight jobs.
	shutdownMgr := shutdown.New(cfg.ShutdownTimeoutDuration())
	shutdownMgr.Register(func(ctx context.Context) error {
		return jobRunner.Shutdown(cfg.ShutdownTimeoutDuration())
	})
	shutdownMgr.Register(func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})

	go func() {
		logger.Info("Listening", map[string]interface{}{"addr": cfg.ListenAddr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	shutdownMgr.Wait()
	shutdownMgr.Shutdown()
	logger.Info("Server stopped")
}
