package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/rezkam/queuectl/internal/envconfig"
	"github.com/rezkam/queuectl/internal/layout"
	"github.com/rezkam/queuectl/internal/observability"
	"github.com/rezkam/queuectl/internal/queue"
	"github.com/rezkam/queuectl/internal/store"
	"github.com/rezkam/queuectl/internal/workerproc"
)

// cmdRunWorker is the hidden re-exec entrypoint internal/registry.Spawn
// starts: `queuectl runworker --worker-id ID`. It is never invoked
// directly by a user; registry.Spawn constructs this exact command line.
func cmdRunWorker(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("runworker", flag.ContinueOnError)
	workerID := fs.String("worker-id", "", "worker id this process acts as (required)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *workerID == "" {
		return fatalf("queuectl runworker: -worker-id is required")
	}

	paths, err := layout.Resolve()
	if err != nil {
		return fatalf("queuectl runworker: %v", err)
	}
	if err := paths.EnsureDirs(); err != nil {
		return fatalf("queuectl runworker: %v", err)
	}

	var obsCfg observability.Config
	obsCfg.ServiceName = "queuectl-worker"
	if err := envconfig.Load(&obsCfg); err != nil {
		return fatalf("queuectl runworker: load observability config: %v", err)
	}
	providers, err := observability.Init(ctx, obsCfg)
	if err != nil {
		return fatalf("queuectl runworker: init observability: %v", err)
	}
	defer providers.Shutdown(ctx) //nolint:errcheck

	logFile, err := os.OpenFile(paths.LogFile(*workerID), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fatalf("queuectl runworker: open log file: %v", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewJSONHandler(logFile, nil))

	s, err := store.Open(ctx, paths.DBFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "queuectl runworker: open store: %v\n", err)
		return 1
	}
	defer s.Close()

	engine := queue.New(s)
	w := workerproc.New(workerproc.Config{WorkerID: *workerID, Paths: paths, Engine: engine}, logger)
	if err := w.Run(ctx); err != nil {
		logger.Error("worker exited with error", "worker_id", *workerID, "error", err)
		return 1
	}
	return 0
}
