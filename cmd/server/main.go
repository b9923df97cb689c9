package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hls-sink/internal/platform/config"
	"hls-sink/internal/platform/logger"
	"hls-sink/internal/platform/metrics"
	"hls-sink/internal/rtime"
	"hls-sink/internal/serialize"
	"hls-sink/internal/serialize/dash"
	"hls-sink/internal/serialize/hls"
	"hls-sink/internal/sink"
	"hls-sink/internal/sinkhttp"
	"hls-sink/internal/storage"
	"hls-sink/internal/storage/fsstore"
	"hls-sink/internal/storage/memstore"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	storageDir := config.GetEnv("SINK_STORAGE_DIR", "")
	sinkCfg := config.LoadSink()

	log := logger.New(logLevel, logFormat)
	met := metrics.New()

	serializer, err := newSerializer(sinkCfg.Serializer)
	if err != nil {
		log.Error("invalid serializer configuration", "error", err)
		os.Exit(1)
	}

	newStorage, err := storageFactory(storageDir, log)
	if err != nil {
		log.Error("invalid storage configuration", "error", err)
		os.Exit(1)
	}

	reg := sinkhttp.NewRegistry(func(sinkName string) *sink.Controller {
		return sink.New(sink.Config{
			ManifestName:           sinkName,
			Serializer:             serializer,
			Storage:                newStorage(),
			Windowed:               sinkCfg.Windowed,
			TargetWindowDuration:   windowDuration(sinkCfg.TargetWindowSeconds),
			TargetFragmentDuration: rtime.FromSeconds(sinkCfg.TargetFragmentSeconds),
			Logger:                 log,
			Metrics:                met,
		})
	})
	defer reg.CloseAll()

	h := sinkhttp.NewHandler(reg, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(nil).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"manifest_name", sinkCfg.ManifestName,
		"serializer", sinkCfg.Serializer,
		"windowed", sinkCfg.Windowed,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func newSerializer(name string) (serialize.Serializer, error) {
	switch name {
	case "", "hls":
		return hls.New(), nil
	case "dash":
		return dash.New(), nil
	default:
		return nil, fmt.Errorf("unknown SINK_SERIALIZER %q", name)
	}
}

// storageFactory returns a constructor for a fresh storage.Adapter per
// sink: an fsstore.Adapter wrapped with retry, rooted at dir, when
// SINK_STORAGE_DIR is set, or an in-memory memstore.Adapter otherwise.
// dir is validated eagerly so a misconfigured path fails startup instead
// of silently downgrading durability once a sink is addressed.
func storageFactory(dir string, log *slog.Logger) (func() storage.Adapter, error) {
	if dir == "" {
		return func() storage.Adapter { return memstore.New() }, nil
	}
	if _, err := fsstore.New(dir); err != nil {
		return nil, fmt.Errorf("SINK_STORAGE_DIR %q: %w", dir, err)
	}
	return func() storage.Adapter {
		a, err := fsstore.New(dir)
		if err != nil {
			log.Error("fsstore unavailable, exiting", "dir", dir, "error", err)
			os.Exit(1)
		}
		return fsstore.Retrying(a)
	}, nil
}

func windowDuration(seconds float64) rtime.Duration {
	if seconds <= 0 {
		return rtime.Unbounded
	}
	return rtime.FromSeconds(seconds)
}
