package presigned

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/rfidrop/internal/uploaders/multipart"
	"github.com/tanq16/rfidrop/internal/utils"
)

func (u *PresignedUploader) Upload(ctx context.Context, job *utils.DropJob) error {
	src, err := multipart.OpenLocalFile(job.FilePath, job.ContentType)
	if err != nil {
		return err
	}
	defer src.Close()
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	transfer := multipart.NewPartTransfer(utils.NewHTTPClient(job.HTTPClientConfig), multipart.NewRetryPolicy(job.Retry, nil))
	_, err = Put(ctx, transfer, src, job.PresignedURL, nil, &multipart.JobSink{Job: job})
	return err
}

// Put uploads src as one part to url, reporting through sink the same way a
// multipart upload does.
func Put(ctx context.Context, transfer multipart.PartUploader, src multipart.SourceFile, url string, clock multipart.Clock, sink multipart.Sink) (multipart.Result, error) {
	if clock == nil {
		clock = multipart.SystemClock
	}
	start := clock.Now()
	plan := multipart.SinglePartPlan(src.Size())
	agg := multipart.NewAggregator(plan, clock, sink.Progress)
	stopAbort := context.AfterFunc(ctx, agg.Abort)
	defer stopAbort()
	if plan.PartCount == 0 {
		agg.Reset()
		sink.Failed(utils.ErrEmptyFile, multipart.UserMessage(utils.ErrEmptyFile))
		return multipart.Result{}, utils.ErrEmptyFile
	}

	part := multipart.PartDescriptor{PartRange: plan.Ranges[0], URL: url}
	receipt, err := transfer.Upload(ctx, part, src, agg.UpdateFunc(ctx))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if ctx.Err() != nil {
			agg.Abort()
			return multipart.Result{}, err
		}
		agg.Reset()
		log.Error().Str("op", "presigned/upload").Err(err).Msgf("single PUT of %s failed", src.Name())
		sink.Failed(err, multipart.UserMessage(err))
		return multipart.Result{}, err
	}
	agg.CompletePart(part.Number)
	agg.Finish()

	result := multipart.Result{
		Location: stripQuery(url),
		Size:     plan.FileSize,
		Parts:    1,
		Duration: clock.Now().Sub(start),
	}
	log.Info().Str("op", "presigned/upload").Msgf("uploaded %s (ETag %s) in %s", src.Name(), receipt.ETag, result.Duration.Round(time.Millisecond))
	sink.Succeeded(result)
	return result, nil
}

// stripQuery drops the signature so the reported location can be logged safely
func stripQuery(raw string) string {
	location, _, _ := strings.Cut(raw, "?")
	return location
}
