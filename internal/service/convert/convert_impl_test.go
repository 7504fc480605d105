package convert

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doongeon/good-filings/internal/cache"
	"github.com/doongeon/good-filings/internal/engine"
	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/internal/sec"
	"github.com/doongeon/good-filings/pkg/logger"
	"github.com/doongeon/good-filings/pkg/queue"
)

type fakeEngine struct {
	name string
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Convert(ctx context.Context, chunk models.Chunk) (string, error) {
	return "", nil
}

func newTestService(t *testing.T) *conversionService {
	t.Helper()
	engines := engine.NewRegistry()
	engines.Register(&fakeEngine{name: DefaultEngine})
	engines.Register(&fakeEngine{name: DefaultFallback})

	svc := NewService(
		nil,
		engines,
		cache.NewMemoryStore(logger.NewTestLogger()),
		nil, nil, nil, nil,
		logger.NewTestLogger(),
		&ServiceConfig{ProjectRoot: "/srv/filings", SegmentSize: 10},
	)
	return svc.(*conversionService)
}

func TestSelectEngines_Default(t *testing.T) {
	s := newTestService(t)

	primary, fallback, err := s.selectEngines("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEngine, primary.Name())
	require.NotNil(t, fallback)
	assert.Equal(t, DefaultFallback, fallback.Name())
}

func TestSelectEngines_PinnedToFallbackDisablesSecondTier(t *testing.T) {
	s := newTestService(t)

	primary, fallback, err := s.selectEngines(DefaultFallback)
	require.NoError(t, err)
	assert.Equal(t, DefaultFallback, primary.Name())
	assert.Nil(t, fallback)
}

func TestSelectEngines_Unknown(t *testing.T) {
	s := newTestService(t)
	_, _, err := s.selectEngines("docling")
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	s := newTestService(t)
	assert.Equal(t, "/srv/filings/pdf/f.pdf", s.resolvePath("pdf/f.pdf"))
	assert.Equal(t, "/abs/f.pdf", s.resolvePath("/abs/f.pdf"))

	s.config.ProjectRoot = ""
	assert.Equal(t, "pdf/f.pdf", s.resolvePath("pdf/f.pdf"))
}

func TestReadArtifact_ReassemblesSegments(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	content := strings.Repeat("segment content ", 20)
	id, err := s.store.Put(ctx, content)
	require.NoError(t, err)

	got, err := s.readArtifact(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReadArtifact_UnknownID(t *testing.T) {
	s := newTestService(t)
	_, err := s.readArtifact(context.Background(), "nope")
	assert.Error(t, err)
}

// fakeQueue records saved statuses and serves them back for status polls.
type fakeQueue struct {
	statuses  map[string]*queue.TaskStatus
	cancelled []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{statuses: make(map[string]*queue.TaskStatus)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *queue.Task) error { return nil }

func (q *fakeQueue) GetTaskStatus(ctx context.Context, taskID string) (*queue.TaskStatus, error) {
	status, ok := q.statuses[taskID]
	if !ok {
		return nil, fmt.Errorf("task not found: %s", taskID)
	}
	return status, nil
}

func (q *fakeQueue) CancelTask(ctx context.Context, taskID string) error {
	q.cancelled = append(q.cancelled, taskID)
	return nil
}

func (q *fakeQueue) SaveStatus(ctx context.Context, status *queue.TaskStatus) error {
	q.statuses[status.TaskID] = status
	return nil
}

func TestCancelTask_RecordsCancelledStatus(t *testing.T) {
	s := newTestService(t)
	q := newFakeQueue()
	s.queue = q
	ctx := context.Background()

	require.NoError(t, q.SaveStatus(ctx, &queue.TaskStatus{TaskID: "task-1", Status: "pending"}))

	require.NoError(t, s.CancelTask(ctx, "task-1"))
	assert.Equal(t, []string{"task-1"}, q.cancelled)

	task, err := s.GetTaskStatus(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, task.Status)
	assert.False(t, q.statuses["task-1"].FinishedAt.IsZero())
}

func TestAsyncOperationsUnconfigured(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.SubmitConversion(ctx, "pdf/f.pdf", "")
	assert.Error(t, err)

	err = s.CancelTask(ctx, "task-1")
	assert.Error(t, err)

	_, err = s.GetTaskResult(ctx, "task-1")
	assert.Error(t, err)

	_, err = s.DownloadFiling(ctx, sec.FilingRequest{})
	assert.Error(t, err)

	err = s.RenderPDF(ctx, "html/a.htm", "pdf/a.pdf")
	assert.Error(t, err)
}
