// Package queue is the queue engine: enqueue, claim-next, complete,
// fail, reset, and delete, plus the exponential-backoff retry policy. It
// depends only on the store (internal/store), never on any adapter.
package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rezkam/queuectl/internal/clock"
	"github.com/rezkam/queuectl/internal/ids"
	"github.com/rezkam/queuectl/internal/qerr"
	"github.com/rezkam/queuectl/internal/store"
)

const (
	configMaxRetriesDefault = "max_retries_default"
	configBackoffBase       = "backoff_base"
	configPollInterval      = "poll_interval"
)

// Job is the engine-facing view of a job row; adapters and the worker loop
// both use this type rather than store.Job directly.
type Job struct {
	ID                  string
	Command             string
	State               string
	Attempts            int
	MaxRetries          int
	CreatedAt           string
	UpdatedAt           string
	AvailableAt         string
	ProcessingStartedAt *string
	CompletedAt         *string
	LastError           *string
}

func fromStoreJob(j store.Job) Job {
	return Job{
		ID:                  j.ID,
		Command:             j.Command,
		State:               j.State,
		Attempts:            j.Attempts,
		MaxRetries:          j.MaxRetries,
		CreatedAt:           j.CreatedAt,
		UpdatedAt:           j.UpdatedAt,
		AvailableAt:         j.AvailableAt,
		ProcessingStartedAt: j.ProcessingStartedAt,
		CompletedAt:         j.CompletedAt,
		LastError:           j.LastError,
	}
}

// Engine is the queue engine, backed by a single store.
type Engine struct {
	store *store.Store
}

// New wraps store s as an Engine.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// EnqueueInput carries the caller-supplied fields for Enqueue; ID and
// MaxRetries are optional, using explicit pointer fields rather than a
// free-form map.
type EnqueueInput struct {
	ID         string
	Command    string
	MaxRetries *int
}

// Enqueue inserts a new pending job, generating an id if absent and
// falling back to the configured default max_retries if absent.
func (e *Engine) Enqueue(ctx context.Context, in EnqueueInput) (Job, error) {
	command := strings.TrimSpace(in.Command)
	if command == "" {
		return Job{}, qerr.New(qerr.InvalidArgument, "command is required")
	}

	id := in.ID
	if id == "" {
		id = ids.NewJobID()
	}

	maxRetries, err := e.resolveMaxRetries(ctx, in.MaxRetries)
	if err != nil {
		return Job{}, err
	}
	if maxRetries < 0 {
		return Job{}, qerr.New(qerr.InvalidArgument, "max_retries must be >= 0")
	}

	now := clock.Format(clock.Now())
	sj := store.Job{
		ID:          id,
		Command:     command,
		State:       store.StatePending,
		Attempts:    0,
		MaxRetries:  maxRetries,
		CreatedAt:   now,
		UpdatedAt:   now,
		AvailableAt: now,
	}

	if err := e.store.InsertJob(ctx, sj); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return Job{}, qerr.New(qerr.AlreadyExists, fmt.Sprintf("job %q already exists", id))
		}
		return Job{}, qerr.Wrap(qerr.StoreError, "insert job", err)
	}
	return fromStoreJob(sj), nil
}

func (e *Engine) resolveMaxRetries(ctx context.Context, override *int) (int, error) {
	if override != nil {
		return *override, nil
	}
	v, found, err := e.store.GetConfig(ctx, configMaxRetriesDefault)
	if err != nil {
		return 0, qerr.Wrap(qerr.StoreError, "read max_retries_default", err)
	}
	if !found {
		return 3, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, qerr.Wrap(qerr.StoreError, "parse max_retries_default", err)
	}
	return n, nil
}

// GetJob returns job id.
func (e *Engine) GetJob(ctx context.Context, id string) (Job, error) {
	j, found, err := e.store.GetJob(ctx, id)
	if err != nil {
		return Job{}, qerr.Wrap(qerr.StoreError, "get job", err)
	}
	if !found {
		return Job{}, qerr.New(qerr.NotFound, fmt.Sprintf("job %q not found", id))
	}
	return fromStoreJob(j), nil
}

// ListJobs returns jobs, optionally filtered by state, ordered by
// created_at ascending.
func (e *Engine) ListJobs(ctx context.Context, state string) ([]Job, error) {
	jobs, err := e.store.ListJobs(ctx, state)
	if err != nil {
		return nil, qerr.Wrap(qerr.StoreError, "list jobs", err)
	}
	out := make([]Job, len(jobs))
	for i, j := range jobs {
		out[i] = fromStoreJob(j)
	}
	return out, nil
}

// CountByState returns the number of jobs per state.
func (e *Engine) CountByState(ctx context.Context) (map[string]int, error) {
	counts, err := e.store.CountByState(ctx)
	if err != nil {
		return nil, qerr.Wrap(qerr.StoreError, "count by state", err)
	}
	return counts, nil
}

// ListDLQ returns every job in state dead.
func (e *Engine) ListDLQ(ctx context.Context) ([]Job, error) {
	return e.ListJobs(ctx, store.StateDead)
}

// ClaimNext atomically claims the oldest eligible pending/failed job.
func (e *Engine) ClaimNext(ctx context.Context, now time.Time) (Job, bool, error) {
	j, found, err := e.store.ClaimNext(ctx, now)
	if err != nil {
		return Job{}, false, qerr.Wrap(qerr.StoreError, "claim next", err)
	}
	if !found {
		return Job{}, false, nil
	}
	return fromStoreJob(j), true, nil
}

// MarkCompleted transitions id to completed.
func (e *Engine) MarkCompleted(ctx context.Context, id string, attempts int) error {
	if err := e.store.MarkCompleted(ctx, id, attempts, clock.Now()); err != nil {
		return qerr.Wrap(qerr.StoreError, "mark completed", err)
	}
	return nil
}

// MarkFailed records a failed attempt for id and transitions it to failed
// (retryable) or dead (exhausted), computing backoff from the current
// backoff_base config value.
func (e *Engine) MarkFailed(ctx context.Context, id string, attemptsPrior, maxRetries int, errMsg string) error {
	attempts := attemptsPrior + 1
	base, err := e.backoffBase(ctx)
	if err != nil {
		return err
	}

	var backoffSeconds float64
	if attempts <= maxRetries {
		backoffSeconds = math.Pow(base, float64(attempts))
	}

	if err := e.store.MarkFailed(ctx, id, attempts, maxRetries, errMsg, clock.Now(), backoffSeconds); err != nil {
		return qerr.Wrap(qerr.StoreError, "mark failed", err)
	}
	return nil
}

func (e *Engine) backoffBase(ctx context.Context) (float64, error) {
	v, found, err := e.store.GetConfig(ctx, configBackoffBase)
	if err != nil {
		return 0, qerr.Wrap(qerr.StoreError, "read backoff_base", err)
	}
	if !found {
		return 2.0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, qerr.Wrap(qerr.StoreError, "parse backoff_base", err)
	}
	return f, nil
}

// PollInterval returns the configured poll interval, defaulting to 2s.
func (e *Engine) PollInterval(ctx context.Context) (time.Duration, error) {
	v, found, err := e.store.GetConfig(ctx, configPollInterval)
	if err != nil {
		return 0, qerr.Wrap(qerr.StoreError, "read poll_interval", err)
	}
	if !found {
		return 2 * time.Second, nil
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, qerr.Wrap(qerr.StoreError, "parse poll_interval", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// RetryDLQJob resets a dead-lettered job back to pending. Returns NotFound
// if the id does not exist, NotInDLQ if it exists but is not dead.
func (e *Engine) RetryDLQJob(ctx context.Context, id string) error {
	j, found, err := e.store.GetJob(ctx, id)
	if err != nil {
		return qerr.Wrap(qerr.StoreError, "get job", err)
	}
	if !found {
		return qerr.New(qerr.NotFound, fmt.Sprintf("job %q not found", id))
	}
	if j.State != store.StateDead {
		return qerr.New(qerr.NotInDLQ, fmt.Sprintf("job %q is not in the dead-letter queue", id))
	}
	if err := e.store.ResetJob(ctx, id, clock.Now()); err != nil {
		return qerr.Wrap(qerr.StoreError, "reset job", err)
	}
	return nil
}

// DeleteJob removes id unconditionally; deleting an absent id is not an
// error.
func (e *Engine) DeleteJob(ctx context.Context, id string) error {
	if err := e.store.DeleteJob(ctx, id); err != nil {
		return qerr.Wrap(qerr.StoreError, "delete job", err)
	}
	return nil
}

// GetConfig returns key's value, NotFound if unset.
func (e *Engine) GetConfig(ctx context.Context, key string) (string, error) {
	v, found, err := e.store.GetConfig(ctx, key)
	if err != nil {
		return "", qerr.Wrap(qerr.StoreError, "get config", err)
	}
	if !found {
		return "", qerr.New(qerr.NotFound, fmt.Sprintf("config key %q not set", key))
	}
	return v, nil
}

// SetConfig upserts key=value.
func (e *Engine) SetConfig(ctx context.Context, key, value string) error {
	if strings.TrimSpace(key) == "" {
		return qerr.New(qerr.InvalidArgument, "config key is required")
	}
	if err := e.store.SetConfig(ctx, key, value); err != nil {
		return qerr.Wrap(qerr.StoreError, "set config", err)
	}
	return nil
}

// ListConfig returns every config entry.
func (e *Engine) ListConfig(ctx context.Context) ([]store.ConfigEntry, error) {
	entries, err := e.store.ListConfig(ctx)
	if err != nil {
		return nil, qerr.Wrap(qerr.StoreError, "list config", err)
	}
	return entries, nil
}
