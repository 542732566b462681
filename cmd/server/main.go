package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"task-receiver/internal/api"
	"task-receiver/internal/config"
	"task-receiver/internal/github"
	"task-receiver/internal/heartbeat"
	"task-receiver/internal/llm"
	"task-receiver/internal/logging"
	"task-receiver/internal/registry"
	"task-receiver/internal/scheduler"
	"task-receiver/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	sink, err := logging.NewSink(cfg.LogFilePath)
	if err != nil {
		log.Fatalf("open log sink: %v", err)
	}
	defer sink.Close()
	logger := logging.Setup(sink, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	handler, err := buildHandler(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("build job handler: %v", err)
	}

	reg := registry.New()
	sched := scheduler.New(cfg.MaxConcurrentTasks, handler, reg, logger)

	beat := heartbeat.New(cfg.KeepAlive(), logger, sink)
	go beat.Run(ctx)

	server := api.New(cfg, reg, sched, sink, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	logger.Info("service listening", "port", cfg.HTTPPort, "max_concurrent_tasks", cfg.MaxConcurrentTasks)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("[SHUTDOWN] waiting for background jobs")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)

	if !sched.Shutdown(cfg.ShutdownGracePeriod) {
		logger.Warn("abandoning unfinished jobs", "grace", cfg.ShutdownGracePeriod)
	}
	if err := sink.Flush(); err != nil {
		log.Printf("flush log sink: %v", err)
	}
}

// buildHandler picks the job implementation: the full solver pipeline when a
// Gemini key is configured, otherwise a stand-in that only sleeps.
func buildHandler(ctx context.Context, cfg config.Config, logger *slog.Logger) (scheduler.Handler, error) {
	if cfg.GeminiAPIKey == "" {
		logger.Info("GEMINI_API_KEY not set, using the simulated task handler")
		return worker.NewSimulated(logger), nil
	}
	gen, err := llm.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	publisher := github.New(cfg.GithubAPIBase, cfg.GithubUsername, cfg.GithubToken)
	return worker.NewSolver(cfg, logger, gen, publisher).Handle, nil
}
