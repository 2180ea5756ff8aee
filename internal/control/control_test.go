package control

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/queuectl/internal/layout"
	"github.com/rezkam/queuectl/internal/qerr"
)

func newTestPlane(t *testing.T) *Plane {
	t.Helper()
	paths := layout.FromRoot(t.TempDir())
	p, err := New(context.Background(), paths)
	require.NoError(t, err)
	return p
}

func TestEnqueueAndGetJob(t *testing.T) {
	p := newTestPlane(t)
	ctx := context.Background()

	job, err := p.Enqueue(ctx, EnqueueRequest{Command: "echo hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	got, err := p.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
}

func TestEnqueueDuplicateIDIsAlreadyExists(t *testing.T) {
	p := newTestPlane(t)
	ctx := context.Background()

	_, err := p.Enqueue(ctx, EnqueueRequest{ID: "job-dup", Command: "echo a"})
	require.NoError(t, err)

	_, err = p.Enqueue(ctx, EnqueueRequest{ID: "job-dup", Command: "echo b"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, qerr.ErrAlreadyExists))
}

func TestListJobsAndCountByState(t *testing.T) {
	p := newTestPlane(t)
	ctx := context.Background()

	_, err := p.Enqueue(ctx, EnqueueRequest{Command: "echo a"})
	require.NoError(t, err)
	_, err = p.Enqueue(ctx, EnqueueRequest{Command: "echo b"})
	require.NoError(t, err)

	jobs, err := p.ListJobs(ctx, "pending")
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	counts, err := p.CountByState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["pending"])
}

func TestDeleteJobNoOpOnMissing(t *testing.T) {
	p := newTestPlane(t)
	ctx := context.Background()
	require.NoError(t, p.DeleteJob(ctx, "job-missing"))
}

func TestRetryDLQJobNotInDLQ(t *testing.T) {
	p := newTestPlane(t)
	ctx := context.Background()

	job, err := p.Enqueue(ctx, EnqueueRequest{Command: "echo a"})
	require.NoError(t, err)

	err = p.RetryDLQJob(ctx, job.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, qerr.ErrNotInDLQ))
}

func TestListDLQEmptyInitially(t *testing.T) {
	p := newTestPlane(t)
	ctx := context.Background()

	dlq, err := p.ListDLQ(ctx)
	require.NoError(t, err)
	assert.Empty(t, dlq)
}

func TestConfigRoundTrip(t *testing.T) {
	p := newTestPlane(t)
	ctx := context.Background()

	require.NoError(t, p.SetConfig(ctx, "backoff_base", "3"))
	v, err := p.GetConfig(ctx, "backoff_base")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	entries, err := p.ListConfig(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestStartWorkersRejectsNonPositiveCount(t *testing.T) {
	p := newTestPlane(t)
	_, err := p.StartWorkers(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, qerr.ErrInvalidArgument))
}

func TestListWorkersEmptyInitially(t *testing.T) {
	p := newTestPlane(t)
	entries, err := p.ListWorkers()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStopWorkersUnknownIDIsNotFound(t *testing.T) {
	p := newTestPlane(t)
	_, err := p.StopWorkers(context.Background(), StopWorkersRequest{ID: "worker-missing"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, qerr.ErrNotFound))
}

func TestStopWorkersEmptyRegistryIsNoOp(t *testing.T) {
	p := newTestPlane(t)
	res, err := p.StopWorkers(context.Background(), StopWorkersRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Survivors)
}

func TestWorkerLogsMissingIsNotFound(t *testing.T) {
	p := newTestPlane(t)
	_, err := p.WorkerLogs("worker-missing", 10)
	require.Error(t, err)
	assert.True(t, errors.Is(err, qerr.ErrNotFound))
}

func TestTailLines(t *testing.T) {
	content := "a\nb\nc\nd\n"
	assert.Equal(t, []string{"c", "d"}, tailLines(content, 2))
	assert.Equal(t, []string{"a", "b", "c", "d"}, tailLines(content, 0))
	assert.Equal(t, []string{"a", "b", "c", "d"}, tailLines(content, 100))
}
