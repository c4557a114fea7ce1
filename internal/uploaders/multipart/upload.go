package multipart

import (
	"context"
	"fmt"
	"time"

	"github.com/tanq16/rfidrop/internal/utils"
)

func (u *MultipartUploader) Upload(ctx context.Context, job *utils.DropJob) error {
	src, err := OpenLocalFile(job.FilePath, job.ContentType)
	if err != nil {
		return err
	}
	defer src.Close()
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	job.Metadata["contentType"] = src.ContentType()

	orchestrator := &Orchestrator{
		Coordinator: NewAPICoordinator(job.APIBaseURL, utils.NewAPIClient(job.HTTPClientConfig), job.APIRetries),
		Parts:       NewPartTransfer(utils.NewHTTPClient(job.HTTPClientConfig), NewRetryPolicy(job.Retry, nil)),
		Pool:        NewWorkerPool(job.Concurrency),
		Sink:        &JobSink{Job: job},
	}
	_, err = orchestrator.Upload(ctx, src, InitMetadata{UploadType: job.UploadType, RfiID: job.RfiID})
	return err
}

// JobSink forwards the upload status stream to a scheduler job's callbacks
type JobSink struct {
	Job *utils.DropJob
}

func (s *JobSink) Progress(snapshot utils.ProgressSnapshot) {
	if s.Job.ProgressFunc != nil {
		s.Job.ProgressFunc(snapshot)
	}
}

func (s *JobSink) Succeeded(result Result) {
	s.Job.Metadata["location"] = result.Location
	s.Job.Metadata["key"] = result.Key
	s.Job.Metadata["duration"] = result.Duration
	if s.Job.StatusFunc != nil {
		s.Job.StatusFunc(fmt.Sprintf("Uploaded %s in %d parts (%s)", utils.FormatBytes(result.Size), result.Parts, result.Duration.Round(10*time.Millisecond)))
	}
}

func (s *JobSink) Failed(err error, message string) {
	s.Job.Metadata["failure"] = message
	if s.Job.StatusFunc != nil {
		s.Job.StatusFunc(message)
	}
}
