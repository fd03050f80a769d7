package config

import (
	"os"
	"strconv"
	"time"

	"wisefido-sleepstage/owl-common/config"

	"github.com/joho/godotenv"
)

// Config 睡眠分期服务配置
type Config struct {
	Database    config.DatabaseConfig
	Redis       config.RedisConfig
	MQTT        config.MQTTConfig
	ObjectStore config.ObjectStoreConfig

	// 睡眠分期服务特定配置
	SleepStage struct {
		// 本地会话数据根目录（对象 key 的 users/ 映射到 <DataRoot>/user_data/）
		DataRoot string
		// 规范产物文件名前缀，如 <prefix>_heartrate.npy
		ArtifactPrefix string

		// HTTP 监听地址（S3/SNS webhook）
		HTTPAddr string
		// MQTT 桶通知主题（MinIO 等 S3 兼容存储的事件转发）
		NotificationTopic string

		// 单次处理超时，超时按 NOT-READY 处理，等待下一次事件重试
		ProcessTimeout time.Duration

		// 指标上报间隔
		MetricsInterval time.Duration
	}

	// Pipeline 会话就绪判定参数（单位：秒）
	Pipeline Pipeline

	// 会话锁
	Lock struct {
		Mode string        // "redis" 或 "local"
		TTL  time.Duration // Redis 租约时长
	}

	// 分类器
	Classifier struct {
		Mode      string // "linear"（本地 JSON 模型）或 "remote"（HTTP 模型服务）
		ModelPath string
		URL       string
		Timeout   time.Duration
	}

	// 预测结果输出 Stream（下游服务订阅）
	PredictionStream string

	Log struct {
		Level  string
		Format string
	}
}

// Pipeline 就绪判定与产物命名参数，按值传入各组件
type Pipeline struct {
	MinSessionDuration float64 // 两路流最后时间戳的最小值，默认 300
	DriftTolerance     float64 // 两路流结束时间允许的漂移，默认 40
	PredictionsSegment string  // 回环过滤的保留路径段，默认 "predictions"
}

// Load 加载配置
func Load() (*Config, error) {
	// 可选的 .env 文件，不存在时忽略
	_ = godotenv.Load()

	cfg := &Config{}

	// 共享配置段：先写默认值，再由环境变量覆盖
	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "owlrd",
		SSLMode:  "disable",
		MaxConns: 10,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = config.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = config.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "wisefido-sleepstage",
		QoS:      1,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.ObjectStore = config.ObjectStoreConfig{
		Endpoint: "s3.amazonaws.com",
		Region:   "us-east-1",
		Bucket:   "s3-smart-alarm-app",
		UseSSL:   true,
	}
	cfg.ObjectStore.LoadFromEnv("OBJECT_STORE")

	cfg.SleepStage.DataRoot = getEnv("SLEEPSTAGE_DATA_ROOT", "data")
	cfg.SleepStage.ArtifactPrefix = getEnv("SLEEPSTAGE_ARTIFACT_PREFIX", "0721")
	cfg.SleepStage.HTTPAddr = getEnv("HTTP_ADDR", ":5000")
	cfg.SleepStage.NotificationTopic = getEnv("SLEEPSTAGE_NOTIFICATION_TOPIC", "sleepstage/bucket-events")
	cfg.SleepStage.ProcessTimeout = getEnvDuration("SLEEPSTAGE_PROCESS_TIMEOUT", 2*time.Minute)
	cfg.SleepStage.MetricsInterval = getEnvDuration("SLEEPSTAGE_METRICS_INTERVAL", time.Minute)

	cfg.Pipeline.MinSessionDuration = getEnvFloat("SESSION_MIN_DURATION", 300)
	cfg.Pipeline.DriftTolerance = getEnvFloat("SESSION_DRIFT_TOLERANCE", 40)
	cfg.Pipeline.PredictionsSegment = getEnv("SLEEPSTAGE_PREDICTIONS_SEGMENT", "predictions")

	cfg.Lock.Mode = getEnv("SLEEPSTAGE_LOCK_MODE", "redis")
	cfg.Lock.TTL = getEnvDuration("SLEEPSTAGE_LOCK_TTL", 5*time.Minute)

	cfg.Classifier.Mode = getEnv("CLASSIFIER_MODE", "linear")
	cfg.Classifier.ModelPath = getEnv("CLASSIFIER_MODEL_PATH", "models/sleep_stage_model.json")
	cfg.Classifier.URL = getEnv("CLASSIFIER_URL", "http://localhost:8500")
	cfg.Classifier.Timeout = getEnvDuration("CLASSIFIER_TIMEOUT", 30*time.Second)

	cfg.PredictionStream = getEnv("SLEEPSTAGE_PREDICTION_STREAM", "sleepstage:predictions")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil && v >= 0 {
		return v
	}
	return defaultValue
}

// getEnvDuration 支持 "90s" 形式，也兼容纯数字（秒）
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
