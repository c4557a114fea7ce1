package presigned

import (
	"fmt"

	"github.com/tanq16/rfidrop/internal/uploaders/multipart"
	"github.com/tanq16/rfidrop/internal/utils"
)

// PresignedUploader sends the whole file with a single PUT to a presigned URL
type PresignedUploader struct{}

func (u *PresignedUploader) ValidateJob(job *utils.DropJob) error {
	if _, err := multipart.CheckArchive(job.FilePath); err != nil {
		return err
	}
	if err := multipart.CheckHTTPURL(job.PresignedURL); err != nil {
		return fmt.Errorf("invalid presigned URL: %v", err)
	}
	return nil
}

func (u *PresignedUploader) BuildJob(job *utils.DropJob) error {
	size, err := multipart.CheckArchive(job.FilePath)
	if err != nil {
		return err
	}
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	job.Metadata["size"] = size
	job.Metadata["partSize"] = size
	job.Metadata["partCount"] = 1
	return nil
}
