// Package control is the control-plane surface: the typed operations
// every adapter (CLI, HTTP) calls. It carries no presentation logic;
// formatting, flag parsing, and HTTP status mapping all live in the
// adapters.
package control

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rezkam/queuectl/internal/ids"
	"github.com/rezkam/queuectl/internal/layout"
	"github.com/rezkam/queuectl/internal/qerr"
	"github.com/rezkam/queuectl/internal/queue"
	"github.com/rezkam/queuectl/internal/registry"
	"github.com/rezkam/queuectl/internal/store"
)

// Job is the adapter-facing job representation.
type Job = queue.Job

// Plane exposes every control-plane operation over a single store.
type Plane struct {
	store    *store.Store
	engine   *queue.Engine
	registry *registry.Registry
	paths    layout.Paths
}

// New builds a Plane over paths, opening (and migrating) its store.
func New(ctx context.Context, paths layout.Paths) (*Plane, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, qerr.Wrap(qerr.StoreError, "prepare data directories", err)
	}
	s, err := store.Open(ctx, paths.DBFile)
	if err != nil {
		return nil, qerr.Wrap(qerr.StoreError, "open store", err)
	}
	return &Plane{
		store:    s,
		engine:   queue.New(s),
		registry: registry.New(paths),
		paths:    paths,
	}, nil
}

// Close releases the underlying store handle. Adapters call this once on
// shutdown; it is not safe to use the Plane afterward.
func (p *Plane) Close() error {
	return p.store.Close()
}

// Paths returns the resolved path layout backing this Plane, so an adapter
// that needs a path the control-plane surface doesn't expose directly
// can get it without re-resolving QUEUECTL_HOME itself.
func (p *Plane) Paths() layout.Paths {
	return p.paths
}

// EnqueueRequest is the typed record for Enqueue; unknown fields are
// rejected by the adapters that decode onto it (DisallowUnknownFields for
// HTTP, fixed flag sets for the CLI).
type EnqueueRequest struct {
	ID         string `json:"id,omitempty"`
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries,omitempty"`
}

// Enqueue inserts a new job.
func (p *Plane) Enqueue(ctx context.Context, req EnqueueRequest) (Job, error) {
	return p.engine.Enqueue(ctx, queue.EnqueueInput{ID: req.ID, Command: req.Command, MaxRetries: req.MaxRetries})
}

// GetJob returns the job with the given id.
func (p *Plane) GetJob(ctx context.Context, id string) (Job, error) {
	return p.engine.GetJob(ctx, id)
}

// ListJobs returns jobs, optionally filtered by state.
func (p *Plane) ListJobs(ctx context.Context, state string) ([]Job, error) {
	return p.engine.ListJobs(ctx, state)
}

// CountByState returns the number of jobs per state.
func (p *Plane) CountByState(ctx context.Context) (map[string]int, error) {
	return p.engine.CountByState(ctx)
}

// DeleteJob removes a job; deleting an absent id is a no-op.
func (p *Plane) DeleteJob(ctx context.Context, id string) error {
	return p.engine.DeleteJob(ctx, id)
}

// RetryDLQJob resets a dead-lettered job back to pending.
func (p *Plane) RetryDLQJob(ctx context.Context, id string) error {
	return p.engine.RetryDLQJob(ctx, id)
}

// ListDLQ returns every job currently in the dead-letter queue.
func (p *Plane) ListDLQ(ctx context.Context) ([]Job, error) {
	return p.engine.ListDLQ(ctx)
}

// GetConfig returns a single config value.
func (p *Plane) GetConfig(ctx context.Context, key string) (string, error) {
	return p.engine.GetConfig(ctx, key)
}

// SetConfig upserts a config value.
func (p *Plane) SetConfig(ctx context.Context, key, value string) error {
	return p.engine.SetConfig(ctx, key, value)
}

// ListConfig returns every config entry.
func (p *Plane) ListConfig(ctx context.Context) ([]store.ConfigEntry, error) {
	return p.engine.ListConfig(ctx)
}

// SpawnedWorker is the output of StartWorkers.
type SpawnedWorker struct {
	ID  string `json:"id"`
	PID int    `json:"pid"`
}

// StartWorkers spawns count new worker processes.
func (p *Plane) StartWorkers(ctx context.Context, count int) ([]SpawnedWorker, error) {
	if count < 1 {
		return nil, qerr.New(qerr.InvalidArgument, "count must be >= 1")
	}
	out := make([]SpawnedWorker, 0, count)
	for i := 0; i < count; i++ {
		workerID := ids.NewWorkerID()
		pid, err := p.registry.Spawn(ctx, workerID)
		if err != nil {
			return out, err
		}
		out = append(out, SpawnedWorker{ID: workerID, PID: pid})
	}
	return out, nil
}

// StopWorkersRequest is the typed record for StopWorkers.
type StopWorkersRequest struct {
	ID      string        `json:"id,omitempty"`
	Wait    bool          `json:"wait,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// StopWorkersResult reports which requested workers did not exit before
// the wait timeout, if Wait was requested.
type StopWorkersResult struct {
	Survivors []string `json:"survivors,omitempty"`
}

// StopWorkers requests a cooperative stop for one worker (req.ID set) or
// every registered worker (req.ID empty), optionally blocking until they
// exit or a timeout elapses.
func (p *Plane) StopWorkers(ctx context.Context, req StopWorkersRequest) (StopWorkersResult, error) {
	listed, err := p.registry.List()
	if err != nil {
		return StopWorkersResult{}, qerr.Wrap(qerr.StoreError, "list workers", err)
	}

	var targets []string
	if req.ID != "" {
		found := false
		for _, e := range listed {
			if e.ID == req.ID {
				found = true
				break
			}
		}
		if !found {
			return StopWorkersResult{}, qerr.New(qerr.NotFound, fmt.Sprintf("worker %q not found", req.ID))
		}
		targets = []string{req.ID}
	} else {
		for _, e := range listed {
			targets = append(targets, e.ID)
		}
	}

	for _, id := range targets {
		if err := p.registry.RequestStop(id); err != nil {
			return StopWorkersResult{}, qerr.Wrap(qerr.StoreError, "request stop", err)
		}
	}

	if !req.Wait || len(targets) == 0 {
		return StopWorkersResult{}, nil
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	survivors := p.registry.WaitForStop(waitCtx, targets, 250*time.Millisecond)
	return StopWorkersResult{Survivors: survivors}, nil
}

// WorkerLogs returns the last n lines of worker_id's log file.
func (p *Plane) WorkerLogs(workerID string, n int) ([]string, error) {
	path := p.paths.LogFile(workerID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, qerr.New(qerr.NotFound, fmt.Sprintf("no log file for worker %q", workerID))
		}
		return nil, qerr.Wrap(qerr.StoreError, "read log file", err)
	}
	return tailLines(string(data), n), nil
}

func tailLines(content string, n int) []string {
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i])
			start = i + 1
		}
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	if n <= 0 || n >= len(lines) {
		return lines
	}
	return lines[len(lines)-n:]
}

// ListWorkers returns the registry annotated with liveness.
func (p *Plane) ListWorkers() ([]registry.ListedEntry, error) {
	entries, err := p.registry.List()
	if err != nil {
		return nil, qerr.Wrap(qerr.StoreError, "list workers", err)
	}
	return entries, nil
}
