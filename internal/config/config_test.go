package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_DefaultValues(t *testing.T) {
	// 清除环境变量
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Database.Enabled {
		t.Errorf("Expected DB_ENABLED default false")
	}

	if cfg.Database.Port != 5432 {
		t.Errorf("Expected DB_PORT default 5432, got %d", cfg.Database.Port)
	}

	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected REDIS_ADDR default 'localhost:6379', got '%s'", cfg.Redis.Addr)
	}

	if cfg.Pipeline.MinSessionDuration != 300 {
		t.Errorf("Expected SESSION_MIN_DURATION default 300, got %v", cfg.Pipeline.MinSessionDuration)
	}

	if cfg.Pipeline.DriftTolerance != 40 {
		t.Errorf("Expected SESSION_DRIFT_TOLERANCE default 40, got %v", cfg.Pipeline.DriftTolerance)
	}

	if cfg.Pipeline.PredictionsSegment != "predictions" {
		t.Errorf("Expected predictions segment default 'predictions', got '%s'", cfg.Pipeline.PredictionsSegment)
	}

	if cfg.SleepStage.ArtifactPrefix != "0721" {
		t.Errorf("Expected artifact prefix default '0721', got '%s'", cfg.SleepStage.ArtifactPrefix)
	}

	if cfg.SleepStage.ProcessTimeout != 2*time.Minute {
		t.Errorf("Expected process timeout default 2m, got %v", cfg.SleepStage.ProcessTimeout)
	}

	if cfg.Lock.Mode != "redis" {
		t.Errorf("Expected lock mode default 'redis', got '%s'", cfg.Lock.Mode)
	}

	if cfg.MQTT.QoS != 1 {
		t.Errorf("Expected MQTT QoS default 1, got %d", cfg.MQTT.QoS)
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_ENABLED", "true")
	os.Setenv("DB_HOST", "test-host")
	os.Setenv("DB_PORT", "6543")
	os.Setenv("REDIS_ADDR", "redis:6380")
	os.Setenv("MQTT_QOS", "2")
	os.Setenv("SESSION_MIN_DURATION", "600")
	os.Setenv("SESSION_DRIFT_TOLERANCE", "12.5")
	os.Setenv("SLEEPSTAGE_PROCESS_TIMEOUT", "45")
	os.Setenv("SLEEPSTAGE_LOCK_TTL", "90s")
	os.Setenv("AWS_ACCESS_KEY_ID", "AKIA_TEST")
	os.Setenv("CLASSIFIER_MODE", "remote")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !cfg.Database.Enabled || cfg.Database.Host != "test-host" || cfg.Database.Port != 6543 {
		t.Errorf("Unexpected database config: %+v", cfg.Database)
	}

	if cfg.Redis.Addr != "redis:6380" {
		t.Errorf("Expected REDIS_ADDR 'redis:6380', got '%s'", cfg.Redis.Addr)
	}

	if cfg.MQTT.QoS != 2 {
		t.Errorf("Expected MQTT QoS 2, got %d", cfg.MQTT.QoS)
	}

	if cfg.Pipeline.MinSessionDuration != 600 || cfg.Pipeline.DriftTolerance != 12.5 {
		t.Errorf("Unexpected pipeline thresholds: %+v", cfg.Pipeline)
	}

	// 纯数字按秒解析
	if cfg.SleepStage.ProcessTimeout != 45*time.Second {
		t.Errorf("Expected process timeout 45s, got %v", cfg.SleepStage.ProcessTimeout)
	}

	if cfg.Lock.TTL != 90*time.Second {
		t.Errorf("Expected lock TTL 90s, got %v", cfg.Lock.TTL)
	}

	if cfg.ObjectStore.AccessKeyID != "AKIA_TEST" {
		t.Errorf("Expected access key from AWS_ACCESS_KEY_ID, got '%s'", cfg.ObjectStore.AccessKeyID)
	}

	if cfg.Classifier.Mode != "remote" {
		t.Errorf("Expected classifier mode 'remote', got '%s'", cfg.Classifier.Mode)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	os.Clearenv()
	os.Setenv("SESSION_MIN_DURATION", "-5")
	os.Setenv("SESSION_DRIFT_TOLERANCE", "abc")
	os.Setenv("SLEEPSTAGE_LOCK_TTL", "soon")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Pipeline.MinSessionDuration != 300 {
		t.Errorf("Expected fallback 300, got %v", cfg.Pipeline.MinSessionDuration)
	}
	if cfg.Pipeline.DriftTolerance != 40 {
		t.Errorf("Expected fallback 40, got %v", cfg.Pipeline.DriftTolerance)
	}
	if cfg.Lock.TTL != 5*time.Minute {
		t.Errorf("Expected fallback 5m, got %v", cfg.Lock.TTL)
	}
}
