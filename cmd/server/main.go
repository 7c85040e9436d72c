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

	"media-wall/internal/gallery"
	"media-wall/internal/platform/config"
	"media-wall/internal/platform/logger"
	"media-wall/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/automaxprocs/maxprocs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	// Error ignored: maxprocs.Set only fails on an invalid GOMAXPROCS env, and
	// the runtime default applies in that case.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	doc := gallery.NewDocument(cfg.DocumentPath)
	if err := doc.Ensure(); err != nil {
		log.Error("document bootstrap failed", "path", cfg.DocumentPath, "error", err)
		os.Exit(1)
	}

	queue := gallery.NewPendingQueue()
	media := gallery.NewDiskMediaStore(cfg.MediaDir)
	svc := gallery.NewService(media, queue)
	met := metrics.New()
	worker := gallery.NewWorker(queue, doc, log, met)
	h := gallery.NewHandler(svc, doc, gallery.Options{
		StaticDir:      cfg.StaticDir,
		MediaDir:       cfg.MediaDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, log, met)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Use(middleware.Recoverer)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			met.SetPendingFragments(queue.Len())
			if n, err := doc.Fragments(); err == nil {
				met.SetDocumentFragments(n)
			}
		}).ServeHTTP(w, r)
	})
	h.Register(r)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		slog.String("port", cfg.Port),
		slog.String("document", cfg.DocumentPath),
		slog.String("media_dir", cfg.MediaDir),
		slog.String("log_level", cfg.LogLevel),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}

	stopWorker()
	<-workerDone

	log.Info("server stopped")
}
