package types

import "time"

type DLQRetryConfig struct {
	BatchSize      int           `json:"batch_size"`
	RetryInterval  time.Duration `json:"retry_interval"`
	MaxRetryCount  int           `json:"max_retry_count"`
	BackoffFactor  float64       `json:"backoff_factor"`
	CollectionName string        `json:"collection_name"`
}

func DefaultDLQRetryConfig() DLQRetryConfig {
	return DLQRetryConfig{
		BatchSize:      50,
		RetryInterval:  time.Minute,
		MaxRetryCount:  3,
		BackoffFactor:  2,
		CollectionName: "dlq_jobs",
	}
}
