// Package workerproc is the worker loop: poll, execute subprocess,
// classify outcome, update the job, and honor cooperative stop requests
// from either an OS signal or the worker's control file.
package workerproc

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rezkam/queuectl/internal/clock"
	"github.com/rezkam/queuectl/internal/layout"
	"github.com/rezkam/queuectl/internal/queue"
	"github.com/rezkam/queuectl/internal/registry"
)

// Config configures a single worker loop.
type Config struct {
	WorkerID string
	Paths    layout.Paths
	Engine   *queue.Engine
}

// Worker is a long-running, single-threaded job processor.
type Worker struct {
	cfg           Config
	stopRequested atomic.Bool
	logger        *slog.Logger
	controlFile   string
}

// New constructs a Worker. It does not open any files or install signal
// handlers until Run is called.
func New(cfg Config, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:         cfg,
		logger:      logger,
		controlFile: cfg.Paths.ControlFile(cfg.WorkerID),
	}
}

// Run installs signal handlers and loops until a stop is requested, then
// performs graceful shutdown. It logs through the logger passed to New;
// opening the worker's log file is left to the caller.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.cfg.Paths.EnsureDirs(); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		w.stopRequested.Store(true)
	}()

	w.logger.InfoContext(ctx, "worker started", "worker_id", w.cfg.WorkerID)

	for !w.shouldStop() {
		w.runIteration(ctx)
	}

	w.logger.InfoContext(ctx, "worker stopping", "worker_id", w.cfg.WorkerID)
	registry.RemoveControlFile(w.controlFile)
	return nil
}

func (w *Worker) shouldStop() bool {
	return w.stopRequested.Load() || registry.ShouldStop(w.controlFile)
}

// runIteration runs exactly one poll/claim/execute/classify cycle. A
// defer/recover guards the bookkeeping around subprocess execution so a
// bug in this loop degrades to "retry later" rather than crashing the
// worker process outright.
func (w *Worker) runIteration(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.ErrorContext(ctx, "worker iteration panicked",
				"worker_id", w.cfg.WorkerID, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	job, found, err := w.cfg.Engine.ClaimNext(ctx, clock.Now())
	if err != nil {
		w.logger.ErrorContext(ctx, "claim next failed", "worker_id", w.cfg.WorkerID, "error", err)
		w.sleep(ctx)
		return
	}
	if !found {
		w.sleep(ctx)
		return
	}

	w.logger.InfoContext(ctx, "claimed job", "worker_id", w.cfg.WorkerID, "job_id", job.ID, "command", job.Command)

	result := runCommand(ctx, job.Command)

	if result.exitCode == 0 {
		attempts := job.Attempts + 1
		if err := w.cfg.Engine.MarkCompleted(ctx, job.ID, attempts); err != nil {
			w.logger.ErrorContext(ctx, "mark completed failed", "worker_id", w.cfg.WorkerID, "job_id", job.ID, "error", err)
			w.sleep(ctx)
			return
		}
		w.logger.InfoContext(ctx, "job completed", "worker_id", w.cfg.WorkerID, "job_id", job.ID)
		return
	}

	if err := w.cfg.Engine.MarkFailed(ctx, job.ID, job.Attempts, job.MaxRetries, result.errMsg); err != nil {
		w.logger.ErrorContext(ctx, "mark failed failed", "worker_id", w.cfg.WorkerID, "job_id", job.ID, "error", err)
		w.sleep(ctx)
		return
	}
	w.logger.WarnContext(ctx, "job failed",
		"worker_id", w.cfg.WorkerID, "job_id", job.ID, "exit_code", result.exitCode, "error", result.errMsg)
}

func (w *Worker) sleep(ctx context.Context) {
	interval, err := w.cfg.Engine.PollInterval(ctx)
	if err != nil {
		interval = 2 * time.Second
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
