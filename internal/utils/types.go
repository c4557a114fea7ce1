package utils

import (
	"context"
	"time"
)

type Uploader interface {
	ValidateJob(job *DropJob) error
	BuildJob(job *DropJob) error
	Upload(ctx context.Context, job *DropJob) error
}

type DropJob struct {
	ID               string
	JobType          string
	FilePath         string
	ContentType      string
	UploadType       string
	RfiID            string
	PresignedURL     string
	APIBaseURL       string
	APIRetries       int
	Concurrency      int
	Retry            RetryConfig
	ProgressFunc     func(snapshot ProgressSnapshot)
	StatusFunc       func(message string)
	Metadata         map[string]any
	HTTPClientConfig HTTPClientConfig
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// ProgressSnapshot is the aggregated view of a job's transfer state at one instant.
// ETA is only meaningful when ETAKnown is set.
type ProgressSnapshot struct {
	Transferred    int64
	Total          int64
	Percent        int
	Elapsed        time.Duration
	Throughput     float64
	ETA            time.Duration
	ETAKnown       bool
	CompletedParts int
	TotalParts     int
}

type BatchEntry struct {
	FilePath    string `yaml:"file"`
	RfiID       string `yaml:"rfi"`
	ContentType string `yaml:"content_type,omitempty"`
}
