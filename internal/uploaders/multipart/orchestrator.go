package multipart

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/rfidrop/internal/utils"
)

// Sink receives the status stream of one upload
type Sink interface {
	Progress(snapshot utils.ProgressSnapshot)
	Succeeded(result Result)
	Failed(err error, message string)
}

type Result struct {
	Location string
	Key      string
	UploadID string
	Size     int64
	Parts    int
	Duration time.Duration
}

// Job is the state of one committed upload; it lives only as long as Upload runs
type Job struct {
	File     SourceFile
	Plan     Plan
	UploadID string
	Key      string
	Metadata InitMetadata
}

type Orchestrator struct {
	Coordinator Coordinator
	Parts       PartUploader
	Pool        *WorkerPool
	Sink        Sink
	Clock       Clock
}

// Upload plans src, opens a multipart session, transfers every part through the pool
// and finalizes the session. Failures reset progress and reach the sink with a
// readable message. Cancellation of ctx silences the sink instead.
func (o *Orchestrator) Upload(ctx context.Context, src SourceFile, meta InitMetadata) (Result, error) {
	clock := o.Clock
	if clock == nil {
		clock = SystemClock
	}
	pool := o.Pool
	if pool == nil {
		pool = NewWorkerPool(utils.DefaultConcurrency)
	}
	start := clock.Now()
	job := &Job{File: src, Plan: PlanParts(src.Size()), Metadata: meta}
	agg := NewAggregator(job.Plan, clock, o.progress)
	stopAbort := context.AfterFunc(ctx, agg.Abort)
	defer stopAbort()

	result, err := o.run(ctx, job, pool, agg)
	if err != nil {
		if ctx.Err() != nil {
			agg.Abort()
			log.Warn().Str("op", "multipart/orchestrator").Msgf("upload of %s cancelled", src.Name())
			return Result{}, err
		}
		agg.Reset()
		log.Error().Str("op", "multipart/orchestrator").Err(err).Msgf("upload of %s failed", src.Name())
		if o.Sink != nil {
			o.Sink.Failed(err, UserMessage(err))
		}
		return Result{}, err
	}
	agg.Finish()
	result.Duration = clock.Now().Sub(start)
	if o.Sink != nil {
		o.Sink.Succeeded(result)
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, job *Job, pool *WorkerPool, agg *Aggregator) (Result, error) {
	if job.Plan.PartCount == 0 {
		return Result{}, utils.ErrEmptyFile
	}

	session, err := o.Coordinator.Initiate(ctx, job.File.Name(), job.File.ContentType(), job.Metadata)
	if err != nil {
		return Result{}, err
	}
	job.UploadID, job.Key = session.UploadID, session.Key
	log.Debug().Str("op", "multipart/orchestrator").Msgf("started %s, part size %s", job, utils.FormatBytes(job.Plan.PartSize))

	destinations, err := o.Coordinator.GetPartDestinations(ctx, job.Key, job.UploadID, job.Plan.PartCount)
	if err != nil {
		return Result{}, err
	}
	parts, err := buildDescriptors(job.Plan, destinations)
	if err != nil {
		return Result{}, err
	}

	receipts, err := pool.Run(ctx, parts, func(partCtx context.Context, part PartDescriptor) (PartReceipt, error) {
		receipt, err := o.Parts.Upload(partCtx, part, job.File, agg.UpdateFunc(partCtx))
		if err != nil {
			return PartReceipt{}, err
		}
		// a part that raced a cancellation to its 2xx is not acknowledged
		if err := partCtx.Err(); err != nil {
			return PartReceipt{}, err
		}
		agg.CompletePart(part.Number)
		return receipt, nil
	})
	if err != nil {
		return Result{}, err
	}

	location, err := o.Coordinator.Complete(ctx, job.Key, job.UploadID, receipts)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Location: location,
		Key:      job.Key,
		UploadID: job.UploadID,
		Size:     job.Plan.FileSize,
		Parts:    job.Plan.PartCount,
	}, nil
}

func (o *Orchestrator) progress(snapshot utils.ProgressSnapshot) {
	if o.Sink != nil {
		o.Sink.Progress(snapshot)
	}
}

// buildDescriptors binds each planned range to its destination. It requires exactly
// one destination per part number 1..N.
func buildDescriptors(plan Plan, destinations []PartDestination) ([]PartDescriptor, error) {
	urls := make(map[int]string, len(destinations))
	var duplicates []int
	unexpected := 0
	for _, d := range destinations {
		if d.PartNumber < 1 || d.PartNumber > plan.PartCount {
			unexpected++
			continue
		}
		if _, seen := urls[d.PartNumber]; seen {
			if !slices.Contains(duplicates, d.PartNumber) {
				duplicates = append(duplicates, d.PartNumber)
			}
			continue
		}
		urls[d.PartNumber] = d.URL
	}
	var missing []int
	for _, r := range plan.Ranges {
		if u, ok := urls[r.Number]; !ok || u == "" {
			missing = append(missing, r.Number)
		}
	}
	if len(missing) > 0 || len(duplicates) > 0 || unexpected > 0 {
		slices.Sort(duplicates)
		return nil, &IncompleteDestinationSetError{
			Expected:   plan.PartCount,
			Got:        len(destinations),
			Missing:    missing,
			Duplicates: duplicates,
		}
	}
	parts := make([]PartDescriptor, 0, plan.PartCount)
	for _, r := range plan.Ranges {
		parts = append(parts, PartDescriptor{PartRange: r, URL: urls[r.Number]})
	}
	return parts, nil
}

func (j *Job) String() string {
	return fmt.Sprintf("%s (%s, %d parts, upload %s)", j.File.Name(), utils.FormatBytes(j.Plan.FileSize), j.Plan.PartCount, j.UploadID)
}
