package multipart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/rfidrop/internal/utils"
	"github.com/tanq16/rfidrop/pkg/uploadproto"
)

// InitMetadata is the job context sent along with an initiation request
type InitMetadata struct {
	UploadType string
	RfiID      string
}

type InitResult struct {
	UploadID string
	Key      string
}

type PartDestination struct {
	PartNumber int
	URL        string
}

// Coordinator speaks the init / part-urls / complete exchange with the authorization service
type Coordinator interface {
	Initiate(ctx context.Context, fileName, contentType string, meta InitMetadata) (InitResult, error)
	GetPartDestinations(ctx context.Context, key, uploadID string, partCount int) ([]PartDestination, error)
	Complete(ctx context.Context, key, uploadID string, receipts []PartReceipt) (string, error)
}

type APICoordinator struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewAPICoordinator wraps httpClient in a retrying client. retryMax of 0 sends each
// call exactly once.
func NewAPICoordinator(baseURL string, httpClient *http.Client, retryMax int) *APICoordinator {
	client := retryablehttp.NewClient()
	if httpClient != nil {
		client.HTTPClient = httpClient
	}
	client.RetryMax = max(retryMax, 0)
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = utils.LeveledLogger{Op: "multipart/coordinator"}
	return &APICoordinator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

func (c *APICoordinator) Initiate(ctx context.Context, fileName, contentType string, meta InitMetadata) (InitResult, error) {
	request := uploadproto.InitRequest{
		FileName:   fileName,
		FileType:   contentType,
		UploadType: meta.UploadType,
		RfiID:      meta.RfiID,
	}
	var response uploadproto.InitResponse
	if err := c.postJSON(ctx, uploadproto.InitPath, request, &response); err != nil {
		return InitResult{}, &InitiationError{FileName: fileName, Err: err}
	}
	if response.UploadID == "" || response.Key == "" {
		return InitResult{}, &InitiationError{FileName: fileName, Err: fmt.Errorf("response is missing uploadId or key")}
	}
	log.Info().Str("op", "multipart/coordinator").Msgf("initiated upload %s for %s", response.UploadID, response.Key)
	return InitResult{UploadID: response.UploadID, Key: response.Key}, nil
}

func (c *APICoordinator) GetPartDestinations(ctx context.Context, key, uploadID string, partCount int) ([]PartDestination, error) {
	request := uploadproto.PartURLsRequest{Key: key, UploadID: uploadID, Parts: partCount}
	var response uploadproto.PartURLsResponse
	if err := c.postJSON(ctx, uploadproto.PartURLsPath, request, &response); err != nil {
		return nil, &DestinationError{UploadID: uploadID, Err: err}
	}
	destinations := make([]PartDestination, 0, len(response.URLs))
	for _, u := range response.URLs {
		destinations = append(destinations, PartDestination{PartNumber: u.PartNumber, URL: u.URL})
	}
	return destinations, nil
}

// Complete submits receipts in ascending part number order regardless of input order
func (c *APICoordinator) Complete(ctx context.Context, key, uploadID string, receipts []PartReceipt) (string, error) {
	sorted := slices.Clone(receipts)
	slices.SortFunc(sorted, func(a, b PartReceipt) int { return a.PartNumber - b.PartNumber })
	parts := make([]uploadproto.CompletedPart, 0, len(sorted))
	for _, r := range sorted {
		parts = append(parts, uploadproto.CompletedPart{ETag: r.ETag, PartNumber: r.PartNumber})
	}
	request := uploadproto.CompleteRequest{Key: key, UploadID: uploadID, Parts: parts}
	var response uploadproto.CompleteResponse
	if err := c.postJSON(ctx, uploadproto.CompletePath, request, &response); err != nil {
		return "", &FinalizationError{UploadID: uploadID, Err: err}
	}
	log.Info().Str("op", "multipart/coordinator").Msgf("completed upload %s with %d parts", uploadID, len(parts))
	return response.URL, nil
}

func (c *APICoordinator) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("error encoding request: %w", err)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody uploadproto.ErrorResponse
		if json.Unmarshal(data, &errBody) == nil && errBody.Error != "" {
			apiErr.Message = errBody.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
