package utils

import (
	"errors"
	"time"

	"github.com/docker/go-units"
)

const (
	JobTypeMultipart = "multipart"
	JobTypePresigned = "presigned"
)

const (
	DefaultConcurrency     = 6
	DefaultMaxRetries      = 3
	DefaultRetryBaseDelay  = 1 * time.Second
	ProgressThrottle       = 100 * time.Millisecond
	MinPartSize            = 5 * units.MiB
	DefaultContentType     = "application/octet-stream"
	LogFile                = ".rfidrop.log"
	ToolUserAgent          = "rfidrop/1.0"
	DefaultRequestTimeout  = 3 * time.Minute
	DefaultKeepAlive       = 90 * time.Second
	DefaultDialTimeout     = 30 * time.Second
	DefaultTLSTimeout      = 10 * time.Second
	DefaultAPIRetries      = 0
	DefaultPresignedExpiry = 1 * time.Hour
)

var (
	ErrUnsupportedArchive = errors.New("unsupported archive type")
	ErrEmptyFile          = errors.New("file is empty")
	ErrUnknownUploadType  = errors.New("unknown upload type")
	ErrUnknownRFI         = errors.New("unknown RFI")
)

// Archive formats accepted for RFI evidence
var ArchiveExtensions = []string{".zip", ".rar", ".7z", ".tar", ".gz"}
