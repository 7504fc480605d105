package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/doongeon/good-filings/internal/service/convert"
	"github.com/doongeon/good-filings/pkg/logger"
	"github.com/doongeon/good-filings/pkg/queue"
)

// ConversionWorker consumes queued filing conversions and runs them through
// the conversion service.
type ConversionWorker struct {
	BaseWorker
	svc convert.Service
}

func NewConversionWorker(cfg *Config, svc convert.Service, log logger.Logger) (*ConversionWorker, error) {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &ConversionWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		svc: svc,
	}

	w.registerHandlers()
	return w, nil
}

func (w *ConversionWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeFilingConvert, w.handleFilingConvert)
}

func (w *ConversionWorker) handleFilingConvert(ctx context.Context, t *asynq.Task) error {
	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}

	if task.ID == "" || task.Payload.Path == "" {
		w.logger.Error("Invalid task data",
			logger.String("taskId", task.ID),
			logger.Any("payload", task.Payload),
		)
		return fmt.Errorf("invalid task data: missing required fields")
	}

	w.logger.Info("Processing conversion task",
		logger.String("taskId", task.ID),
		logger.String("path", task.Payload.Path),
		logger.String("engine", task.Payload.Engine),
	)

	info := t.ResultWriter()

	if _, err := info.Write([]byte(`{"status":"running","progress":0}`)); err != nil {
		w.logger.Error("Failed to write task status", logger.Error(err))
	}

	if err := w.svc.HandleConvertTask(ctx, &task); err != nil {
		if _, writeErr := info.Write([]byte(fmt.Sprintf(`{"status":"failed","error":%q}`, err.Error()))); writeErr != nil {
			w.logger.Error("Failed to write task failure", logger.Error(writeErr))
		}
		return err
	}

	if _, err := info.Write([]byte(`{"status":"completed","progress":100}`)); err != nil {
		w.logger.Error("Failed to write task completion", logger.Error(err))
	}

	return nil
}

func (w *ConversionWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
