package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/rfidrop/internal/output"
	"github.com/tanq16/rfidrop/internal/uploaders/multipart"
	"github.com/tanq16/rfidrop/internal/uploaders/presigned"
	"github.com/tanq16/rfidrop/internal/utils"
)

// uploaderRegistry maps job types to their uploader implementations
var uploaderRegistry = map[string]utils.Uploader{
	utils.JobTypeMultipart: &multipart.MultipartUploader{},
	utils.JobTypePresigned: &presigned.PresignedUploader{},
}

// Run uploads every job over numWorkers parallel workers and reports a summary.
// It returns an error when at least one job failed.
func Run(ctx context.Context, jobs []utils.DropJob, numWorkers int) error {
	outputMgr := output.NewManager()
	outputMgr.StartDisplay()
	failures := runWithManager(ctx, jobs, numWorkers, outputMgr, uploaderRegistry)
	outputMgr.StopDisplay()
	if failures > 0 {
		return fmt.Errorf("%d of %d uploads failed", failures, len(jobs))
	}
	return nil
}

func runWithManager(ctx context.Context, jobs []utils.DropJob, numWorkers int, outputMgr *output.Manager, registry map[string]utils.Uploader) int {
	jobCh := make(chan utils.DropJob, len(jobs))
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	var wg sync.WaitGroup
	for range max(numWorkers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processJobs(ctx, jobCh, outputMgr, registry)
		}()
	}
	wg.Wait()
	return outputMgr.Failures()
}

func processJobs(ctx context.Context, jobCh <-chan utils.DropJob, outputMgr *output.Manager, registry map[string]utils.Uploader) {
	for job := range jobCh {
		funcID := outputMgr.RegisterJob(filepath.Base(job.FilePath))
		if ctx.Err() != nil {
			outputMgr.SetMessage(funcID, "Upload cancelled")
			outputMgr.ReportError(funcID, ctx.Err())
			continue
		}

		uploader, exists := registry[job.JobType]
		if !exists {
			outputMgr.SetMessage(funcID, fmt.Sprintf("Error: Unknown job type %s", job.JobType))
			outputMgr.ReportError(funcID, fmt.Errorf("unknown job type: %s", job.JobType))
			continue
		}
		if job.Metadata == nil {
			job.Metadata = make(map[string]any)
		}

		outputMgr.SetMessage(funcID, fmt.Sprintf("Validating %s", job.FilePath))
		if err := uploader.ValidateJob(&job); err != nil {
			log.Error().Str("op", "scheduler").Err(err).Msgf("validation failed for %s", job.FilePath)
			outputMgr.SetMessage(funcID, fmt.Sprintf("Validation failed for %s", job.FilePath))
			outputMgr.ReportError(funcID, fmt.Errorf("validation failed: %v", err))
			continue
		}
		if err := uploader.BuildJob(&job); err != nil {
			outputMgr.SetMessage(funcID, fmt.Sprintf("Build failed for %s", job.FilePath))
			outputMgr.ReportError(funcID, fmt.Errorf("build failed: %v", err))
			continue
		}

		size, _ := job.Metadata["size"].(int64)
		parts, _ := job.Metadata["partCount"].(int)
		outputMgr.SetStatus(funcID, output.StatusActive)
		outputMgr.SetMessage(funcID, fmt.Sprintf("Uploading %s (%s, %d parts)", filepath.Base(job.FilePath), utils.FormatBytes(size), parts))

		var statusMessage string
		job.ProgressFunc = func(snapshot utils.ProgressSnapshot) {
			outputMgr.SetProgress(funcID, snapshot)
		}
		job.StatusFunc = func(message string) {
			statusMessage = message
		}

		if err := uploader.Upload(ctx, &job); err != nil {
			if statusMessage == "" {
				statusMessage = multipart.UserMessage(err)
			}
			outputMgr.SetMessage(funcID, statusMessage)
			outputMgr.ReportError(funcID, err)
			continue
		}
		if location, _ := job.Metadata["location"].(string); location != "" {
			statusMessage = fmt.Sprintf("%s %s %s", statusMessage, output.StyleSymbols["arrow"], location)
		}
		outputMgr.Complete(funcID, statusMessage)
	}
}
