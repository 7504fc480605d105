package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	// TaskTypeFilingConvert converts a filing document to markdown.
	TaskTypeFilingConvert = "filing:convert"
)

// Task priorities. An unset priority enqueues on the default queue.
const (
	PriorityDefault  = 0
	PriorityCritical = 1
	PriorityLow      = 3
)

// Queue enqueues conversion tasks and tracks their status.
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveStatus(ctx context.Context, status *TaskStatus) error
}

// Task is the queued unit of work.
type Task struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Payload   ConvertPayload    `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
}

// ConvertPayload carries the conversion parameters.
type ConvertPayload struct {
	Path   string `json:"path"`
	Engine string `json:"engine"`
}

// TaskStatus is the externally visible job state.
type TaskStatus struct {
	TaskID      string    `json:"taskId"`
	Status      string    `json:"status"`
	Progress    float64   `json:"progress"`
	Error       string    `json:"error,omitempty"`
	CacheID     string    `json:"cacheId,omitempty"`
	TotalLength int       `json:"totalLength,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt,omitempty"`
}

// AsynqQueue implements Queue on asynq, with raw redis alongside for status
// records that outlive the asynq task retention window.
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	statusTTL time.Duration
}

// QueueConfig defines queue configuration.
type QueueConfig struct {
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	MaxRetries     int
	ProcessTimeout time.Duration
	StatusTTL      time.Duration
}

// NewAsynqQueue creates a queue instance.
func NewAsynqQueue(cfg *QueueConfig) (*AsynqQueue, error) {
	if cfg.StatusTTL <= 0 {
		cfg.StatusTTL = 24 * time.Hour
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis:     redisClient,
		statusTTL: cfg.StatusTTL,
	}, nil
}

// Redis exposes the underlying client for components that share the
// connection, like the redis-backed segment cache.
func (q *AsynqQueue) Redis() *redis.Client {
	return q.redis
}

// Enqueue adds the task to the queue matching its priority.
func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	opts := []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(30 * time.Minute),
		asynq.TaskID(task.ID),
	}

	opts = append(opts, asynq.Queue(queueForPriority(task.Priority)))

	t := asynq.NewTask(task.Type, payload, opts...)
	if _, err := q.client.EnqueueContext(ctx, t); err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// GetTaskStatus prefers the saved status record and falls back to asking
// asynq directly for tasks that have not reported yet.
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	key := statusKey(taskID)
	data, err := q.redis.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	if err == nil {
		var status TaskStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	}

	queues := []string{"critical", "default", "low"}
	var info *asynq.TaskInfo
	var lastErr error

	for _, queueName := range queues {
		info, err = q.inspector.GetTaskInfo(queueName, taskID)
		if err == nil {
			break
		}
		lastErr = err
	}

	if info == nil {
		return nil, fmt.Errorf("task not found in any queue: %w", lastErr)
	}

	return convertAsynqStatus(info), nil
}

// CancelTask removes a pending task from whichever queue holds it.
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	queues := []string{"critical", "default", "low"}
	var lastErr error

	for _, queueName := range queues {
		err := q.inspector.DeleteTask(queueName, taskID)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("failed to cancel task: %w", lastErr)
}

// SaveStatus persists the task status with a TTL.
func (q *AsynqQueue) SaveStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	if err := q.redis.Set(ctx, statusKey(status.TaskID), data, q.statusTTL).Err(); err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}

	return nil
}

// queueForPriority maps a task priority to an asynq queue name. The zero
// value lands on the default queue so callers that never set a priority do
// not get starved behind weighted queues.
func queueForPriority(priority int) string {
	switch priority {
	case PriorityCritical:
		return "critical"
	case PriorityLow:
		return "low"
	default:
		return "default"
	}
}

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStatePending:
		status.Status = "pending"
	case asynq.TaskStateActive:
		status.Status = "running"
		status.Progress = 0.5
	case asynq.TaskStateCompleted:
		status.Status = "completed"
		status.Progress = 1.0
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateRetry, asynq.TaskStateArchived:
		status.Status = "failed"
		status.Error = info.LastErr
	default:
		status.Status = "pending"
	}

	return status
}
