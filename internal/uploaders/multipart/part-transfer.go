package multipart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/rfidrop/internal/utils"
	"github.com/tanq16/rfidrop/pkg/uploadproto"
)

// PartDescriptor is a planned part bound to its destination URL
type PartDescriptor struct {
	PartRange
	URL string
}

type PartReceipt struct {
	PartNumber int
	ETag       string
}

// ProgressFunc receives the bytes sent so far for a part within the current attempt
type ProgressFunc func(partNumber int, sent int64)

type PartUploader interface {
	Upload(ctx context.Context, part PartDescriptor, src SourceFile, onProgress ProgressFunc) (PartReceipt, error)
}

type PartTransfer struct {
	client utils.HTTPDoer
	policy RetryPolicy
}

func NewPartTransfer(client utils.HTTPDoer, policy RetryPolicy) *PartTransfer {
	return &PartTransfer{client: client, policy: policy}
}

// Upload PUTs the part's byte range, re-sending the whole payload on each retry.
// Cancellation of ctx ends the transfer without further retries.
func (t *PartTransfer) Upload(ctx context.Context, part PartDescriptor, src SourceFile, onProgress ProgressFunc) (PartReceipt, error) {
	var lastStatus int
	var lastErr error
	attempts := t.policy.Attempts()
	for attempt := range attempts {
		if attempt > 0 {
			log.Warn().Str("op", "multipart/part-transfer").Msgf("retrying part %d in %s (attempt %d/%d)", part.Number, t.policy.Backoff(attempt), attempt+1, attempts)
			if err := t.policy.Wait(ctx, attempt); err != nil {
				return PartReceipt{}, err
			}
		}
		etag, status, err := t.attempt(ctx, part, src, onProgress)
		if err == nil {
			log.Debug().Str("op", "multipart/part-transfer").Msgf("part %d uploaded (%s), ETag %s", part.Number, utils.FormatBytes(part.Size()), etag)
			return PartReceipt{PartNumber: part.Number, ETag: etag}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return PartReceipt{}, ctxErr
		}
		lastStatus, lastErr = status, err
		log.Error().Str("op", "multipart/part-transfer").Err(err).Int("status", status).Msgf("part %d attempt %d failed", part.Number, attempt+1)
	}
	return PartReceipt{}, &PartTransferError{
		PartNumber: part.Number,
		LastStatus: lastStatus,
		Attempts:   attempts,
		Err:        lastErr,
	}
}

func (t *PartTransfer) attempt(ctx context.Context, part PartDescriptor, src SourceFile, onProgress ProgressFunc) (string, int, error) {
	body, err := src.Slice(part.Start, part.End)
	if err != nil {
		return "", 0, fmt.Errorf("error reading part %d: %v", part.Number, err)
	}
	reader := &progressReader{r: body, onRead: func(sent int64) {
		if onProgress != nil {
			onProgress(part.Number, sent)
		}
	}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, part.URL, reader)
	if err != nil {
		return "", 0, fmt.Errorf("error creating PUT request: %v", err)
	}
	req.ContentLength = part.Size()
	req.Header.Set("Content-Type", src.ContentType())
	resp, err := t.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", resp.StatusCode, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	io.Copy(io.Discard, resp.Body)
	etag := resp.Header.Get(uploadproto.HeaderETag)
	if etag == "" {
		return "", resp.StatusCode, errors.New("no ETag in response")
	}
	if reader.sent != part.Size() {
		return "", resp.StatusCode, fmt.Errorf("size mismatch: sent %d of %d bytes", reader.sent, part.Size())
	}
	return etag, resp.StatusCode, nil
}

type progressReader struct {
	r      io.Reader
	sent   int64
	onRead func(sent int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.onRead(p.sent)
	}
	return n, err
}
