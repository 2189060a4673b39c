package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const defaultRetryBackoff = "1s,3s,10s"

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`

	// Queue bootstrap address and topology.
	QueueURL         string `env:"QUEUE_URL,required=true"`
	JobsQueue        string `env:"JOBS_QUEUE,default=notifications.jobs"`
	DLQQueue         string `env:"DLQ_QUEUE,default=notifications.dlq"`
	ConsumerGroup    string `env:"CONSUMER_GROUP,default=notification-worker"`
	ConsumerPrefetch int    `env:"CONSUMER_PREFETCH,default=1"`

	// Delivery policy.
	MaxAttempts     int    `env:"MAX_ATTEMPTS,default=3"`
	RetryBackoff    string `env:"RETRY_BACKOFF"`
	MaxSendDelaySec int    `env:"MAX_SEND_DELAY_SEC,default=300"`

	AuthBaseURL string `env:"AUTH_BASE_URL,default=http://auth:8000"`

	// Optional Redis-backed per-channel rate limiting; disabled when empty.
	RedisURL        string `env:"REDIS_URL"`
	RateLimitPerSec int    `env:"RATE_LIMIT_PER_SEC,default=100"`

	WorkerConcurrency    int    `env:"WORKER_CONCURRENCY,default=1"`
	SchedulerIntervalSec int    `env:"SCHEDULER_INTERVAL_SEC,default=30"`
	APIPort              int    `env:"API_PORT,default=8080"`
	LogLevel             string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// go-env cannot default a comma-separated value, so apply it here.
	if strings.TrimSpace(cfg.RetryBackoff) == "" {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	if _, err := cfg.BackoffDelays(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// BackoffDelays parses RETRY_BACKOFF into the ordered delay sequence used
// between failed attempts; the last value repeats for later attempts.
func (c *Config) BackoffDelays() ([]time.Duration, error) {
	parts := strings.Split(c.RetryBackoff, ",")
	delays := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("invalid retry backoff %q: %w", c.RetryBackoff, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid retry backoff %q: negative delay", c.RetryBackoff)
		}
		delays = append(delays, d)
	}
	if len(delays) == 0 {
		return nil, fmt.Errorf("invalid retry backoff %q: no delays", c.RetryBackoff)
	}
	return delays, nil
}

func (c *Config) MaxSendDelay() time.Duration {
	return time.Duration(c.MaxSendDelaySec) * time.Second
}

func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerIntervalSec) * time.Second
}
