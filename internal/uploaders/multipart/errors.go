package multipart

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type InitiationError struct {
	FileName string
	Err      error
}

func (e *InitiationError) Error() string {
	return fmt.Sprintf("initiate upload of %s: %v", e.FileName, e.Err)
}

func (e *InitiationError) Unwrap() error { return e.Err }

type DestinationError struct {
	UploadID string
	Err      error
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("get part destinations for upload %s: %v", e.UploadID, e.Err)
}

func (e *DestinationError) Unwrap() error { return e.Err }

// IncompleteDestinationSetError means the service did not return exactly one
// destination per planned part number.
type IncompleteDestinationSetError struct {
	Expected   int
	Got        int
	Missing    []int
	Duplicates []int
}

func (e *IncompleteDestinationSetError) Error() string {
	msg := fmt.Sprintf("expected %d part destinations, got %d", e.Expected, e.Got)
	if len(e.Missing) > 0 {
		msg += fmt.Sprintf(" (missing parts %v)", e.Missing)
	}
	if len(e.Duplicates) > 0 {
		msg += fmt.Sprintf(" (duplicate parts %v)", e.Duplicates)
	}
	return msg
}

// PartTransferError is returned once a part has exhausted its retries.
// LastStatus is 0 when the last attempt failed at the transport level.
type PartTransferError struct {
	PartNumber int
	LastStatus int
	Attempts   int
	Err        error
}

func (e *PartTransferError) Error() string {
	if e.LastStatus == 0 {
		return fmt.Sprintf("part %d failed after %d attempts: %v", e.PartNumber, e.Attempts, e.Err)
	}
	return fmt.Sprintf("part %d failed after %d attempts (last status %d): %v", e.PartNumber, e.Attempts, e.LastStatus, e.Err)
}

func (e *PartTransferError) Unwrap() error { return e.Err }

type FinalizationError struct {
	UploadID string
	Err      error
}

func (e *FinalizationError) Error() string {
	return fmt.Sprintf("complete upload %s: %v", e.UploadID, e.Err)
}

func (e *FinalizationError) Unwrap() error { return e.Err }

// APIError is a non-2xx answer from the authorization service
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// UserMessage turns a job failure into the one-line message shown to the user
func UserMessage(err error) string {
	var (
		initErr     *InitiationError
		destErr     *DestinationError
		setErr      *IncompleteDestinationSetError
		partErr     *PartTransferError
		finalizeErr *FinalizationError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Upload cancelled"
	case errors.As(err, &initErr):
		return fmt.Sprintf("Could not start the upload: %v", initErr.Err)
	case errors.As(err, &setErr):
		return fmt.Sprintf("Upload service returned an incomplete set of part URLs: %v", setErr)
	case errors.As(err, &destErr):
		return fmt.Sprintf("Could not get upload URLs: %v", destErr.Err)
	case errors.As(err, &partErr):
		if partErr.LastStatus != 0 {
			return fmt.Sprintf("Part %d failed to upload (status %d)", partErr.PartNumber, partErr.LastStatus)
		}
		return fmt.Sprintf("Part %d failed to upload: network error", partErr.PartNumber)
	case errors.As(err, &finalizeErr):
		return fmt.Sprintf("Could not finalize the upload: %v", finalizeErr.Err)
	default:
		return fmt.Sprintf("File upload failed: %v", err)
	}
}
