package main

import (
	"fmt"
	"strings"
	"time"

	"olymp/internal/common/cache"
	"olymp/internal/common/db"
	"olymp/internal/common/mq"
	"olymp/internal/common/storage"
	judgeconfig "olymp/internal/judge/config"

	"github.com/segmentio/kafka-go"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8085"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	defaultStatusTTL       = 24 * time.Hour
	defaultStatusTimeout   = 3 * time.Second
	defaultLockTTL         = 30 * time.Minute
	defaultRunTopic        = "judge.runs"
	defaultFinalTopic      = "judge.status.final"
	defaultReportBucket    = "olymp-reports"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// KafkaConfig holds Kafka settings. Without brokers the service runs HTTP only.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ClientID      string        `yaml:"clientID"`
	MinBytes      int           `yaml:"minBytes"`
	MaxBytes      int           `yaml:"maxBytes"`
	MaxWait       time.Duration `yaml:"maxWait"`
	BatchSize     int           `yaml:"batchSize"`
	BatchTimeout  time.Duration `yaml:"batchTimeout"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	RequiredAcks  int           `yaml:"requiredAcks"`
	Compression   string        `yaml:"compression"`
	RunTopic      string        `yaml:"runTopic"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	Concurrency   int           `yaml:"concurrency"`
	MaxRetries    int           `yaml:"maxRetries"`
	RetryDelay    time.Duration `yaml:"retryDelay"`
	DeadLetter    string        `yaml:"deadLetterTopic"`
	MessageTTL    time.Duration `yaml:"messageTTL"`
}

// WorkerConfig holds worker pool settings.
type WorkerConfig struct {
	PoolSize  int           `yaml:"poolSize"`
	Timeout   time.Duration `yaml:"timeout"`
	QueueWait time.Duration `yaml:"queueWait"`
}

// StatusConfig holds status persistence settings.
type StatusConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	Timeout    time.Duration `yaml:"timeout"`
	FinalTopic string        `yaml:"finalTopic"`
}

// ProblemsConfig locates problem directories and guards them.
type ProblemsConfig struct {
	Root    string        `yaml:"root"`
	LockTTL time.Duration `yaml:"lockTTL"`
}

// AppConfig holds judge-service config.
type AppConfig struct {
	judgeconfig.Config `yaml:",inline"`

	Server   ServerConfig      `yaml:"server"`
	Kafka    KafkaConfig       `yaml:"kafka"`
	Redis    cache.RedisConfig `yaml:"redis"`
	Worker   WorkerConfig      `yaml:"worker"`
	Status   StatusConfig      `yaml:"status"`
	Problems ProblemsConfig    `yaml:"problems"`
	// Database and Storage are optional; without them finished runs live
	// only as long as the cached status.
	Database db.Config           `yaml:"database"`
	Storage  storage.MinIOConfig `yaml:"storage"`
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := judgeconfig.LoadYAML(path, &cfg); err != nil {
		return nil, err
	}
	cfg.Config.ApplyDefaults()
	if err := cfg.Config.Validate(); err != nil {
		return nil, err
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if cfg.Problems.Root == "" {
		return nil, fmt.Errorf("problems root is required")
	}
	cfg.Redis.ApplyDefaults()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 1
	}
	if cfg.Status.TTL == 0 {
		cfg.Status.TTL = defaultStatusTTL
	}
	if cfg.Status.Timeout == 0 {
		cfg.Status.Timeout = defaultStatusTimeout
	}
	if cfg.Status.FinalTopic == "" {
		cfg.Status.FinalTopic = defaultFinalTopic
	}
	if cfg.Kafka.RunTopic == "" {
		cfg.Kafka.RunTopic = defaultRunTopic
	}
	if cfg.Kafka.Concurrency <= 0 {
		cfg.Kafka.Concurrency = cfg.Worker.PoolSize
	}
	if cfg.Problems.LockTTL == 0 {
		cfg.Problems.LockTTL = defaultLockTTL
	}
	if cfg.Storage.Enabled() && cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = defaultReportBucket
	}
	return &cfg, nil
}

func (k KafkaConfig) enabled() bool {
	return len(k.Brokers) > 0
}

func (k KafkaConfig) toMQConfig() mq.KafkaConfig {
	return mq.KafkaConfig{
		Brokers:      k.Brokers,
		ClientID:     k.ClientID,
		MinBytes:     k.MinBytes,
		MaxBytes:     k.MaxBytes,
		MaxWait:      k.MaxWait,
		BatchSize:    k.BatchSize,
		BatchTimeout: k.BatchTimeout,
		DialTimeout:  k.DialTimeout,
		RequiredAcks: kafka.RequiredAcks(k.RequiredAcks),
		Compression:  parseCompression(k.Compression),
	}
}

func (k KafkaConfig) subscribeOptions() *mq.SubscribeOptions {
	return &mq.SubscribeOptions{
		ConsumerGroup:   k.ConsumerGroup,
		Concurrency:     k.Concurrency,
		MaxRetries:      k.MaxRetries,
		RetryDelay:      k.RetryDelay,
		DeadLetterTopic: k.DeadLetter,
		MessageTTL:      k.MessageTTL,
	}
}

func parseCompression(raw string) kafka.Compression {
	switch strings.ToLower(raw) {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return kafka.Compression(0)
	}
}
