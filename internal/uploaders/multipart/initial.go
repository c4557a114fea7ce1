package multipart

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/tanq16/rfidrop/internal/rfi"
	"github.com/tanq16/rfidrop/internal/utils"
)

type MultipartUploader struct{}

func (u *MultipartUploader) ValidateJob(job *utils.DropJob) error {
	if _, err := CheckArchive(job.FilePath); err != nil {
		return err
	}
	option, err := rfi.Resolve(job.UploadType, job.RfiID)
	if err != nil {
		return err
	}
	job.UploadType = rfi.NormalizeType(job.UploadType)
	job.RfiID = option.Value
	if err := CheckHTTPURL(job.APIBaseURL); err != nil {
		return fmt.Errorf("invalid API URL: %v", err)
	}
	return nil
}

func (u *MultipartUploader) BuildJob(job *utils.DropJob) error {
	size, err := CheckArchive(job.FilePath)
	if err != nil {
		return err
	}
	plan := PlanParts(size)
	if job.Metadata == nil {
		job.Metadata = make(map[string]any)
	}
	job.Metadata["size"] = size
	job.Metadata["partSize"] = plan.PartSize
	job.Metadata["partCount"] = plan.PartCount
	if job.Concurrency <= 0 {
		job.Concurrency = utils.DefaultConcurrency
	}
	return nil
}

// CheckArchive verifies path is a non-empty regular file with an accepted archive
// extension and returns its size.
func CheckArchive(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("error reading file: %v", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	if !utils.IsArchive(path) {
		return 0, fmt.Errorf("%w: %s (accepted: %v)", utils.ErrUnsupportedArchive, filepath.Ext(path), utils.ArchiveExtensions)
	}
	if info.Size() == 0 {
		return 0, fmt.Errorf("%w: %s", utils.ErrEmptyFile, path)
	}
	return info.Size(), nil
}

func CheckHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("no URL set")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
