package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"wisefido-sleepstage/internal/classifier"
	"wisefido-sleepstage/internal/config"
	"wisefido-sleepstage/internal/consumer"
	"wisefido-sleepstage/internal/feature"
	httpapi "wisefido-sleepstage/internal/http"
	"wisefido-sleepstage/internal/lock"
	"wisefido-sleepstage/internal/merger"
	"wisefido-sleepstage/internal/models"
	"wisefido-sleepstage/internal/objectstore"
	"wisefido-sleepstage/internal/prediction"
	"wisefido-sleepstage/internal/readiness"
	"wisefido-sleepstage/internal/repository"
	"wisefido-sleepstage/internal/store"
	"wisefido-sleepstage/owl-common/database"
	mqttcommon "wisefido-sleepstage/owl-common/mqtt"
	rediscommon "wisefido-sleepstage/owl-common/redis"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// sessionStateTTL 会话状态保留时长
const sessionStateTTL = 30 * 24 * time.Hour

// SleepStageService 睡眠分期服务（整合各层）
type SleepStageService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqttcommon.Client
	logger      *zap.Logger

	processor *SessionProcessor
	server    *Server
	consumer  *consumer.NotificationConsumer
}

// NewSleepStageService 创建睡眠分期服务
func NewSleepStageService(cfg *config.Config, logger *zap.Logger) (*SleepStageService, error) {
	ctx := context.Background()
	s := &SleepStageService{config: cfg, logger: logger}

	// 1. 会话锁与状态：redis 模式下多实例共享，local 模式仅限单进程
	var (
		locker    lock.Locker
		states    store.SessionStateStore
		publisher PredictionPublisher
	)
	switch cfg.Lock.Mode {
	case "local":
		locker = lock.NewLocalLocker()
		states = store.NewMemoryStateStore()
	case "redis":
		s.redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		if err := rediscommon.Ping(ctx, s.redisClient); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		locker = lock.NewRedisLocker(s.redisClient, cfg.Lock.TTL)
		states = store.NewRedisStateStore(s.redisClient, sessionStateTTL)
		publisher = NewStreamPublisher(s.redisClient, cfg.PredictionStream, logger)
	default:
		return nil, fmt.Errorf("unknown lock mode: %s", cfg.Lock.Mode)
	}

	// 2. 审计数据库（可选）
	var auditor SessionAuditor
	var sessionRepo *repository.SessionRepository
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		sessionRepo = repository.NewSessionRepository(db, logger)
		auditor = sessionRepo
	}

	// 3. 对象存储
	objects, err := objectstore.NewClient(&cfg.ObjectStore, logger)
	if err != nil {
		return nil, err
	}

	// 4. 分类器
	model, err := classifier.New(classifier.Options{
		Mode:      cfg.Classifier.Mode,
		ModelPath: cfg.Classifier.ModelPath,
		URL:       cfg.Classifier.URL,
		Timeout:   cfg.Classifier.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	// 5. 流水线各阶段
	files := store.NewFileStore(logger)
	s.processor = NewSessionProcessor(ProcessorOptions{
		DataRoot:           cfg.SleepStage.DataRoot,
		ArtifactPrefix:     cfg.SleepStage.ArtifactPrefix,
		PredictionsSegment: cfg.Pipeline.PredictionsSegment,
		ProcessTimeout:     cfg.SleepStage.ProcessTimeout,
	}, ProcessorDeps{
		Source:   objects,
		Streams:  files,
		Features: files,
		States:   states,
		Locker:   locker,
		Merger:   merger.NewChunkMerger(files, files, logger),
		Evaluator: readiness.NewEvaluator(files, states, readiness.Thresholds{
			MinSessionDuration: cfg.Pipeline.MinSessionDuration,
			DriftTolerance:     cfg.Pipeline.DriftTolerance,
		}, logger),
		Extractor: feature.NewExtractor(logger),
		Stage:     prediction.NewStage(model, files, logger),
		Sink:      prediction.NewSink(objects, cfg.Pipeline.PredictionsSegment, logger),
		Publisher: publisher,
		Auditor:   auditor,
		Metrics:   NewMetrics(),
	}, logger)

	// 6. 入站：HTTP webhook 与 MQTT 桶通知
	router := httpapi.NewRouter(logger)
	router.RegisterWebhookRoutes(httpapi.NewWebhookHandler(s.handleEvents, logger))
	if sessionRepo != nil {
		router.RegisterPredictionRoutes(httpapi.NewPredictionHandler(sessionRepo, logger))
	}
	s.server = NewServer(cfg.SleepStage.HTTPAddr, router, logger)

	if cfg.MQTT.Enabled {
		mqttClient, err := mqttcommon.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return nil, err
		}
		s.mqttClient = mqttClient
		s.consumer = consumer.NewNotificationConsumer(mqttClient, cfg.SleepStage.NotificationTopic, cfg.MQTT.QoS, s.handleEvents, logger)
	}

	return s, nil
}

// Start 启动服务，阻塞直到上下文取消或 HTTP 服务异常退出
func (s *SleepStageService) Start(ctx context.Context) error {
	s.logger.Info("Starting sleep stage service",
		zap.String("data_root", s.config.SleepStage.DataRoot),
		zap.String("lock_mode", s.config.Lock.Mode),
		zap.String("classifier_mode", s.config.Classifier.Mode),
		zap.Float64("min_session_duration", s.config.Pipeline.MinSessionDuration),
		zap.Float64("drift_tolerance", s.config.Pipeline.DriftTolerance),
	)

	go reportMetrics(ctx, s.processor.Metrics(), s.config.SleepStage.MetricsInterval, s.logger)

	if s.consumer != nil {
		go func() {
			if err := s.consumer.Start(ctx); err != nil {
				s.logger.Error("Notification consumer stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Start()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	}
}

// Stop 停止服务
func (s *SleepStageService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping sleep stage service")

	if err := s.server.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop http server", zap.Error(err))
	}
	if s.consumer != nil {
		_ = s.consumer.Stop(ctx)
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database", zap.Error(err))
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Error("Failed to close redis", zap.Error(err))
		}
	}
	return nil
}

func (s *SleepStageService) handleEvents(ctx context.Context, events []models.ObjectEvent) error {
	_, err := s.processor.HandleEvents(ctx, events)
	return err
}
