package multipart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tanq16/rfidrop/internal/utils"
)

type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After records the wait and fires immediately, moving the clock forward
func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

type memSource struct {
	name        string
	data        []byte
	contentType string
}

func newMemSource(size int) *memSource {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return &memSource{name: "evidence.zip", data: data, contentType: "application/zip"}
}

func (m *memSource) Name() string        { return m.name }
func (m *memSource) Size() int64         { return int64(len(m.data)) }
func (m *memSource) ContentType() string { return m.contentType }
func (m *memSource) Slice(start, end int64) (io.Reader, error) {
	if start < 0 || end > int64(len(m.data)) || start > end {
		return nil, fmt.Errorf("bad range [%d, %d)", start, end)
	}
	return bytes.NewReader(m.data[start:end]), nil
}

// sizedSource reports a size without holding the bytes, for plans no test reads
type sizedSource struct {
	size int64
}

func (s sizedSource) Name() string        { return "large.tar" }
func (s sizedSource) Size() int64         { return s.size }
func (s sizedSource) ContentType() string { return "application/x-tar" }
func (s sizedSource) Slice(start, end int64) (io.Reader, error) {
	return strings.NewReader(""), nil
}

// destination is a part endpoint that stores bodies and can fail chosen parts
type destination struct {
	*httptest.Server
	mu        sync.Mutex
	bodies    map[int][]byte
	attempts  map[int]int
	failTimes map[int]int
	failCode  int
	noETag    map[int]bool
	types     map[string]int
	active    atomic.Int32
	maxActive atomic.Int32
}

func newDestination(t *testing.T) *destination {
	d := &destination{
		bodies:    make(map[int][]byte),
		attempts:  make(map[int]int),
		failTimes: make(map[int]int),
		failCode:  http.StatusInternalServerError,
		noETag:    make(map[int]bool),
		types:     make(map[string]int),
	}
	d.Server = httptest.NewServer(http.HandlerFunc(d.handle))
	t.Cleanup(d.Close)
	return d
}

func (d *destination) handle(w http.ResponseWriter, r *http.Request) {
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		cur := d.maxActive.Load()
		if n <= cur || d.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	part, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/part/"))
	if err != nil || r.Method != http.MethodPut {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	body, _ := io.ReadAll(r.Body)
	d.mu.Lock()
	d.attempts[part]++
	d.types[r.Header.Get("Content-Type")]++
	fail := d.attempts[part] <= d.failTimes[part]
	noETag := d.noETag[part]
	if !fail {
		d.bodies[part] = body
	}
	d.mu.Unlock()
	if fail {
		w.WriteHeader(d.failCode)
		return
	}
	if !noETag {
		w.Header().Set("ETag", fmt.Sprintf(`"etag-%d"`, part))
	}
	w.WriteHeader(http.StatusOK)
}

func (d *destination) partURL(n int) string {
	return fmt.Sprintf("%s/part/%d", d.URL, n)
}

func (d *destination) attemptsFor(part int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts[part]
}

func (d *destination) assembled(parts int) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []byte
	for n := 1; n <= parts; n++ {
		out = append(out, d.bodies[n]...)
	}
	return out
}

// fakeCoordinator hands out destinations from a template and records completion
type fakeCoordinator struct {
	mu           sync.Mutex
	urlFor       func(n int) string
	dropParts    map[int]bool
	initErr      error
	destErr      error
	completeErr  error
	completed    []PartReceipt
	destRequests int
}

func (f *fakeCoordinator) Initiate(ctx context.Context, fileName, contentType string, meta InitMetadata) (InitResult, error) {
	if f.initErr != nil {
		return InitResult{}, &InitiationError{FileName: fileName, Err: f.initErr}
	}
	return InitResult{UploadID: "upload-1", Key: "tbml/tbml-001/" + fileName}, nil
}

func (f *fakeCoordinator) GetPartDestinations(ctx context.Context, key, uploadID string, partCount int) ([]PartDestination, error) {
	f.mu.Lock()
	f.destRequests++
	f.mu.Unlock()
	if f.destErr != nil {
		return nil, &DestinationError{UploadID: uploadID, Err: f.destErr}
	}
	var out []PartDestination
	for n := 1; n <= partCount; n++ {
		if f.dropParts[n] {
			continue
		}
		out = append(out, PartDestination{PartNumber: n, URL: f.urlFor(n)})
	}
	return out, nil
}

func (f *fakeCoordinator) Complete(ctx context.Context, key, uploadID string, receipts []PartReceipt) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append([]PartReceipt(nil), receipts...)
	if f.completeErr != nil {
		return "", &FinalizationError{UploadID: uploadID, Err: f.completeErr}
	}
	return "https://bucket.example/" + key, nil
}

// recordingSink keeps everything the orchestrator reports
type recordingSink struct {
	mu        sync.Mutex
	snapshots []utils.ProgressSnapshot
	results   []Result
	failures  []string
	errs      []error
}

func (s *recordingSink) Progress(snapshot utils.ProgressSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snapshot)
}

func (s *recordingSink) Succeeded(result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
}

func (s *recordingSink) Failed(err error, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
	s.failures = append(s.failures, message)
}

func (s *recordingSink) Snapshots() []utils.ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]utils.ProgressSnapshot(nil), s.snapshots...)
}
