package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/doongeon/good-filings/config"
	"github.com/doongeon/good-filings/internal/cache"
	"github.com/doongeon/good-filings/internal/engine"
	"github.com/doongeon/good-filings/internal/engine/llamaparse"
	"github.com/doongeon/good-filings/internal/engine/pdftext"
	"github.com/doongeon/good-filings/internal/engine/textractocr"
	"github.com/doongeon/good-filings/internal/models"
	"github.com/doongeon/good-filings/internal/pipeline"
	"github.com/doongeon/good-filings/internal/renderer"
	"github.com/doongeon/good-filings/internal/sec"
	"github.com/doongeon/good-filings/internal/splitter"
	"github.com/doongeon/good-filings/internal/utils/validator"
	"github.com/doongeon/good-filings/pkg/logger"
	"github.com/doongeon/good-filings/pkg/queue"
	"github.com/doongeon/good-filings/pkg/storage"
)

// DefaultEngine is what conversions run on when the caller states no
// preference; DefaultFallback picks up its failed chunks.
const (
	DefaultEngine   = llamaparse.EngineName
	DefaultFallback = pdftext.EngineName
)

type ServiceConfig struct {
	ProjectRoot     string
	PagesPerChunk   int
	MaxConcurrent   int
	SegmentSize     int
	InlineThreshold int
	QueuePriority   int
}

type conversionService struct {
	splitter  *splitter.Splitter
	engines   *engine.Registry
	store     cache.Store
	queue     queue.Queue
	storage   storage.Storage
	secClient *sec.Client
	renderer  renderer.Renderer
	validator *validator.DocumentValidator
	logger    logger.Logger
	config    *ServiceConfig
}

// NewService wires a conversion service from injected collaborators. queue
// and storage may be nil for a purely synchronous deployment; the async
// operations then report themselves unavailable.
func NewService(
	sp *splitter.Splitter,
	engines *engine.Registry,
	store cache.Store,
	q queue.Queue,
	st storage.Storage,
	secClient *sec.Client,
	rend renderer.Renderer,
	log logger.Logger,
	cfg *ServiceConfig,
) Service {
	if cfg == nil {
		cfg = &ServiceConfig{}
	}
	if cfg.PagesPerChunk <= 0 {
		cfg.PagesPerChunk = 40
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = 100000
	}
	if cfg.InlineThreshold <= 0 {
		cfg.InlineThreshold = 100000
	}

	return &conversionService{
		splitter:  sp,
		engines:   engines,
		store:     store,
		queue:     q,
		storage:   st,
		secClient: secClient,
		renderer:  rend,
		validator: validator.NewDocumentValidator(log, nil),
		logger:    log,
		config:    cfg,
	}
}

// GetService builds the default production wiring.
func GetService(log logger.Logger) (Service, error) {
	serverCfg := config.GetServerConfig()
	redisCfg := config.GetRedisConfig()

	q, err := queue.NewAsynqQueue(&queue.QueueConfig{
		RedisAddr:     redisCfg.Addr,
		RedisPassword: redisCfg.Password,
		RedisDB:       redisCfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	store, err := storage.NewStorage(storage.StorageType(os.Getenv("STORAGE_BACKEND")), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	sp := splitter.NewSplitter(serverCfg.PagesPerChunk, log)

	engines := engine.NewRegistry()
	engines.Register(llamaparse.NewEngine(config.GetLlamaParseConfig(), log))
	engines.Register(pdftext.NewEngine(log))

	// Textract is optional; only registered when credentials are present.
	textractCfg := config.GetTextractConfig()
	if textractCfg.AccessKey != "" {
		ocr, err := textractocr.NewEngine(context.Background(), textractCfg, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create textract engine: %w", err)
		}
		engines.Register(ocr)
	}

	var artifacts cache.Store
	if os.Getenv("CACHE_BACKEND") == "redis" {
		artifacts = cache.NewRedisStore(q.Redis(), redisCfg.CacheTTL, log)
	} else {
		artifacts = cache.NewMemoryStore(log)
	}

	return NewService(
		sp,
		engines,
		artifacts,
		q,
		store,
		sec.NewClient(config.GetSECConfig(), log),
		renderer.NewChromeRenderer(2*time.Minute, log),
		log,
		&ServiceConfig{
			ProjectRoot:     serverCfg.ProjectRoot,
			PagesPerChunk:   serverCfg.PagesPerChunk,
			MaxConcurrent:   serverCfg.MaxConcurrent,
			SegmentSize:     serverCfg.SegmentSize,
			InlineThreshold: serverCfg.InlineThreshold,
		},
	), nil
}

func (s *conversionService) Convert(ctx context.Context, path, enginePreference string) (*Output, error) {
	resolved := s.resolvePath(path)
	if err := s.validateInput(path, resolved); err != nil {
		return nil, err
	}

	doc, err := s.splitter.Inspect(resolved)
	if err != nil {
		return nil, err
	}

	primary, fallback, err := s.selectEngines(enginePreference)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Starting conversion",
		logger.String("path", path),
		logger.Int("pages", doc.Pages),
		logger.String("engine", primary.Name()),
	)

	pl := pipeline.NewPipeline(s.splitter, primary, fallback, s.config.MaxConcurrent, s.logger)
	text, results, err := pl.Convert(ctx, doc)
	if err != nil {
		return nil, err
	}

	out := &Output{
		TotalLength: len(text),
		Results:     results,
	}

	if len(text) <= s.config.InlineThreshold {
		out.FullText = text
		return out, nil
	}

	cacheID, err := s.store.Put(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to cache artifact: %w", err)
	}
	out.CacheID = cacheID
	out.Cached = true

	return out, nil
}

func (s *conversionService) ReadSegment(ctx context.Context, cacheID string, offset int) (models.SegmentResponse, error) {
	return s.store.GetSegment(ctx, cacheID, offset, s.config.SegmentSize)
}

func (s *conversionService) SubmitConversion(ctx context.Context, path, enginePreference string) (*models.ConversionTask, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("async conversion is not configured")
	}

	resolved := s.resolvePath(path)
	if err := s.validateInput(path, resolved); err != nil {
		return nil, err
	}
	if enginePreference == "" {
		enginePreference = DefaultEngine
	}
	if _, err := s.engines.Get(enginePreference); err != nil {
		return nil, err
	}

	taskID := uuid.New().String()
	now := time.Now()

	task := &models.ConversionTask{
		ID:       taskID,
		Status:   models.StatusPending,
		Type:     queue.TaskTypeFilingConvert,
		Priority: s.config.QueuePriority,
		Metadata: map[string]string{
			"path":   path,
			"engine": enginePreference,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	queueTask := &queue.Task{
		ID:       taskID,
		Type:     queue.TaskTypeFilingConvert,
		Priority: task.Priority,
		Payload: queue.ConvertPayload{
			Path:   path,
			Engine: enginePreference,
		},
		Metadata:  task.Metadata,
		CreatedAt: now,
	}

	if err := s.queue.Enqueue(ctx, queueTask); err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	if err := s.queue.SaveStatus(ctx, &queue.TaskStatus{
		TaskID:    taskID,
		Status:    "pending",
		StartedAt: now,
	}); err != nil {
		s.logger.Error("Failed to save initial status",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
	}

	s.logger.Info("Conversion task created",
		logger.String("taskId", taskID),
		logger.String("path", path),
	)

	return task, nil
}

// HandleConvertTask runs one queued conversion to completion: convert, cache
// for segmented retrieval, persist the artifact, record the final status.
func (s *conversionService) HandleConvertTask(ctx context.Context, task *queue.Task) error {
	if task == nil || task.Payload.Path == "" {
		return fmt.Errorf("invalid task: missing payload")
	}

	out, err := s.Convert(ctx, task.Payload.Path, task.Payload.Engine)
	if err != nil {
		finalStatus := &queue.TaskStatus{
			TaskID:     task.ID,
			Status:     "failed",
			Error:      err.Error(),
			StartedAt:  task.CreatedAt,
			FinishedAt: time.Now(),
		}
		if saveErr := s.queue.SaveStatus(ctx, finalStatus); saveErr != nil {
			s.logger.Error("Failed to save failure status",
				logger.String("taskId", task.ID),
				logger.Error(saveErr),
			)
		}
		return err
	}

	// Async callers read through the segment cache regardless of size.
	text := out.FullText
	cacheID := out.CacheID
	if !out.Cached {
		cacheID, err = s.store.Put(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to cache artifact: %w", err)
		}
	}

	if s.storage != nil {
		if text == "" {
			// The artifact went straight to the cache; read it back for the
			// durable copy.
			text, err = s.readArtifact(ctx, cacheID)
			if err != nil {
				return err
			}
		}
		if _, err := s.storage.Store(ctx, strings.NewReader(text), resultKey(task.ID)); err != nil {
			return fmt.Errorf("failed to store result: %w", err)
		}
	}

	finalStatus := &queue.TaskStatus{
		TaskID:      task.ID,
		Status:      "completed",
		Progress:    1.0,
		CacheID:     cacheID,
		TotalLength: out.TotalLength,
		StartedAt:   task.CreatedAt,
		FinishedAt:  time.Now(),
	}
	if err := s.queue.SaveStatus(ctx, finalStatus); err != nil {
		s.logger.Error("Failed to save final status",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
	}

	s.logger.Info("Conversion task completed",
		logger.String("taskId", task.ID),
		logger.String("cacheId", cacheID),
		logger.Int("chars", out.TotalLength),
	)

	return nil
}

func (s *conversionService) GetTaskStatus(ctx context.Context, taskID string) (*models.ConversionTask, error) {
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	var taskStatus models.TaskStatus
	switch status.Status {
	case "pending":
		taskStatus = models.StatusPending
	case "running", "active":
		taskStatus = models.StatusRunning
	case "completed":
		taskStatus = models.StatusCompleted
	case "failed":
		taskStatus = models.StatusFailed
	case "cancelled":
		taskStatus = models.StatusCancelled
	default:
		taskStatus = models.StatusPending
	}

	metadata := map[string]string{}
	if status.CacheID != "" {
		metadata["cacheId"] = status.CacheID
		metadata["totalLength"] = strconv.Itoa(status.TotalLength)
	}

	return &models.ConversionTask{
		ID:        status.TaskID,
		Status:    taskStatus,
		Type:      queue.TaskTypeFilingConvert,
		Progress:  status.Progress,
		Error:     status.Error,
		Metadata:  metadata,
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}, nil
}

func (s *conversionService) GetTaskResult(ctx context.Context, taskID string) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("result storage is not configured")
	}

	status, err := s.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if status.Status != models.StatusCompleted {
		return nil, fmt.Errorf("task is not completed: %s", status.Status)
	}

	reader, err := s.storage.Get(ctx, resultKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	return reader, nil
}

func (s *conversionService) CancelTask(ctx context.Context, taskID string) error {
	if s.queue == nil {
		return fmt.Errorf("async conversion is not configured")
	}
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}

	// Status polls must see the cancellation, not the stale pending record.
	if err := s.queue.SaveStatus(ctx, &queue.TaskStatus{
		TaskID:     taskID,
		Status:     "cancelled",
		FinishedAt: time.Now(),
	}); err != nil {
		s.logger.Error("Failed to save cancelled status",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
	}

	s.logger.Info("Task cancelled",
		logger.String("taskId", taskID),
	)

	return nil
}

func (s *conversionService) DownloadFiling(ctx context.Context, req sec.FilingRequest) (*sec.Filing, error) {
	if s.secClient == nil {
		return nil, fmt.Errorf("SEC client is not configured")
	}
	if err := sec.ValidateOutputDir(req.OutputDir); err != nil {
		return nil, err
	}
	req.OutputDir = s.resolvePath(req.OutputDir)
	return s.secClient.Download(ctx, req)
}

func (s *conversionService) RenderPDF(ctx context.Context, inputPath, outputPath string) error {
	if s.renderer == nil {
		return fmt.Errorf("renderer is not configured")
	}
	return s.renderer.RenderPDF(ctx, s.resolvePath(inputPath), s.resolvePath(outputPath))
}

// selectEngines resolves the caller preference to a primary engine and its
// fallback. Pinning to the fallback engine itself disables the second tier.
func (s *conversionService) selectEngines(preference string) (engine.Engine, engine.Engine, error) {
	if preference == "" {
		preference = DefaultEngine
	}

	primary, err := s.engines.Get(preference)
	if err != nil {
		return nil, nil, err
	}

	if preference == DefaultFallback {
		return primary, nil, nil
	}

	fallback, err := s.engines.Get(DefaultFallback)
	if err != nil {
		return primary, nil, nil
	}
	return primary, fallback, nil
}

// validateInput checks the resolved path and folds any validation failure
// into an InvalidDocumentError carrying the caller's original path.
func (s *conversionService) validateInput(path, resolved string) error {
	result, err := s.validator.ValidateFile(resolved)
	if err != nil {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	if !result.IsValid {
		return &models.InvalidDocumentError{Path: path, Reason: result.Errors[0].Message}
	}
	return nil
}

func (s *conversionService) resolvePath(path string) string {
	if filepath.IsAbs(path) || s.config.ProjectRoot == "" {
		return path
	}
	return filepath.Join(s.config.ProjectRoot, path)
}

func (s *conversionService) readArtifact(ctx context.Context, cacheID string) (string, error) {
	var sb strings.Builder
	offset := 0
	for {
		seg, err := s.store.GetSegment(ctx, cacheID, offset, s.config.SegmentSize)
		if err != nil {
			return "", fmt.Errorf("failed to read cached artifact: %w", err)
		}
		sb.WriteString(seg.Segment)
		if !seg.HasMore {
			return sb.String(), nil
		}
		offset = *seg.NextOffset
	}
}

func resultKey(taskID string) string {
	return fmt.Sprintf("result:%s", taskID)
}
