package config

import (
	"errors"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the relay.
// Values come from the environment, optionally seeded from a .env file.
type Config struct {
	AppPort         string        `env:"APP_PORT" envDefault:"8080"`
	AppMode         string        `env:"APP_MODE" envDefault:"debug"`
	LogMode         string        `env:"LOG_MODE" envDefault:"development"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	// LambdaSecretKey is the shared secret every ingested event must carry.
	LambdaSecretKey string `env:"LAMBDA_SECRET_KEY"`

	AWS       AWSConfig
	WebSocket WebSocketConfig
	Cache     CacheConfig
	Kafka     KafkaConfig
	Process   ProcessConfig
	Tracing   TracingConfig
}

type AWSConfig struct {
	Region     string        `env:"AWS_REGION" envDefault:"us-east-1"`
	AccessKey  string        `env:"AWS_ACCESS_KEY_ID"`
	SecretKey  string        `env:"AWS_SECRET_ACCESS_KEY"`
	Bucket     string        `env:"S3_BUCKET_NAME"`
	Endpoint   string        `env:"S3_ENDPOINT"`
	PresignTTL time.Duration `env:"S3_PRESIGN_TTL" envDefault:"1h"`
}

type WebSocketConfig struct {
	SendTimeout time.Duration `env:"WS_SEND_TIMEOUT" envDefault:"5s"`
	PingPeriod  time.Duration `env:"WS_PING_PERIOD" envDefault:"30s"`
	PongWait    time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
}

type CacheConfig struct {
	EventTTL time.Duration `env:"EVENT_CACHE_TTL" envDefault:"1h"`
}

type KafkaConfig struct {
	Brokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	Topic        string        `env:"KAFKA_TOPIC" envDefault:"s3.events"`
	Compression  string        `env:"KAFKA_COMPRESSION" envDefault:"snappy"`
	BatchTimeout time.Duration `env:"KAFKA_BATCH_TIMEOUT" envDefault:"10ms"`
	MaxAttempts  int           `env:"KAFKA_MAX_ATTEMPTS" envDefault:"3"`

	ForwardInterval    time.Duration `env:"KAFKA_FORWARD_INTERVAL" envDefault:"1s"`
	ForwardBatchSize   int           `env:"KAFKA_FORWARD_BATCH_SIZE" envDefault:"100"`
	ForwardMaxAttempts int           `env:"KAFKA_FORWARD_MAX_ATTEMPTS" envDefault:"5"`
}

// ProcessConfig controls post-ingest object processing. Without key patterns
// nothing is processed automatically; POST /events/:event_id/process still works.
type ProcessConfig struct {
	KeyPatterns []string      `env:"PROCESS_KEY_PATTERNS" envSeparator:","`
	Timeout     time.Duration `env:"PROCESS_TIMEOUT" envDefault:"30s"`
	Concurrency int           `env:"PROCESS_CONCURRENCY" envDefault:"4"`
}

type TracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_RATIO" envDefault:"1.0"`
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the relay cannot run without.
func (c *Config) Validate() error {
	if c.LambdaSecretKey == "" {
		return errors.New("LAMBDA_SECRET_KEY is required")
	}
	if c.WebSocket.SendTimeout <= 0 {
		return errors.New("WS_SEND_TIMEOUT must be positive")
	}
	if c.WebSocket.PingPeriod >= c.WebSocket.PongWait {
		return errors.New("WS_PING_PERIOD must be shorter than WS_PONG_WAIT")
	}
	if len(c.Kafka.Brokers) > 0 {
		if c.Kafka.ForwardInterval <= 0 || c.Kafka.ForwardBatchSize <= 0 || c.Kafka.ForwardMaxAttempts <= 0 {
			return errors.New("KAFKA_FORWARD_* settings must be positive")
		}
	}
	if len(c.Process.KeyPatterns) > 0 && (c.Process.Timeout <= 0 || c.Process.Concurrency <= 0) {
		return errors.New("PROCESS_TIMEOUT and PROCESS_CONCURRENCY must be positive")
	}
	return nil
}
