package multipart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/tanq16/rfidrop/internal/utils"
)

// SourceFile is the byte-range-readable file handed over by the caller.
// Slice may be called repeatedly for the same range, once per attempt.
type SourceFile interface {
	Name() string
	Size() int64
	ContentType() string
	Slice(start, end int64) (io.Reader, error)
}

type LocalFile struct {
	file        *os.File
	name        string
	size        int64
	contentType string
}

// OpenLocalFile opens path for ranged reads. An empty contentType is sniffed from the
// file header, falling back to application/octet-stream.
func OpenLocalFile(path, contentType string) (*LocalFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening file: %v", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error reading file info: %v", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if contentType == "" {
		contentType = DetectContentType(f, info.Size())
	}
	return &LocalFile{
		file:        f,
		name:        filepath.Base(path),
		size:        info.Size(),
		contentType: contentType,
	}, nil
}

func DetectContentType(r io.ReaderAt, size int64) string {
	mt, err := mimetype.DetectReader(io.NewSectionReader(r, 0, size))
	if err != nil || mt == nil || mt.Is("application/octet-stream") || mt.Is("text/plain") {
		return utils.DefaultContentType
	}
	return mt.String()
}

func (l *LocalFile) Name() string        { return l.name }
func (l *LocalFile) Size() int64         { return l.size }
func (l *LocalFile) ContentType() string { return l.contentType }

func (l *LocalFile) Slice(start, end int64) (io.Reader, error) {
	if start < 0 || end > l.size || start > end {
		return nil, fmt.Errorf("range [%d, %d) outside file of %d bytes", start, end, l.size)
	}
	return io.NewSectionReader(l.file, start, end-start), nil
}

func (l *LocalFile) Close() error {
	return l.file.Close()
}
