package authsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/rfidrop/pkg/uploadproto"
)

type fakeStore struct {
	mu          sync.Mutex
	created     []*s3.CreateMultipartUploadInput
	completed   []*s3.CompleteMultipartUploadInput
	aborted     []string
	createErr   error
	completeErr error
}

func (f *fakeStore) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String(fmt.Sprintf("upload-%d", len(f.created)))}, nil
}

func (f *fakeStore) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, in)
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &s3.CompleteMultipartUploadOutput{Location: aws.String("https://evidence.s3.amazonaws.com/" + aws.ToString(in.Key))}, nil
}

func (f *fakeStore) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, aws.ToString(in.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

// fakePresigner points every part at base, carrying the part number in the query
type fakePresigner struct {
	base string
}

func (f *fakePresigner) PresignUploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{
		URL:    fmt.Sprintf("%s/%s?partNumber=%d&uploadId=%s", f.base, aws.ToString(in.Key), aws.ToInt32(in.PartNumber), aws.ToString(in.UploadId)),
		Method: http.MethodPut,
	}, nil
}

func newTestServer(store *fakeStore) *httptest.Server {
	srv := NewServer(store, &fakePresigner{base: "https://evidence.s3.amazonaws.com"}, Config{Bucket: "evidence", Prefix: "rfi-uploads"})
	return httptest.NewServer(srv.Routes())
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	var body uploadproto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestInitUpload(t *testing.T) {
	store := &fakeStore{}
	server := newTestServer(store)
	defer server.Close()

	resp := post(t, server.URL+uploadproto.InitPath, uploadproto.InitRequest{FileName: "../q3 ledger.zip", FileType: "application/zip", UploadType: "tbml", RfiID: "tbml-002"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var init uploadproto.InitResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&init))
	assert.Equal(t, "upload-1", init.UploadID)
	assert.True(t, strings.HasPrefix(init.Key, "rfi-uploads/tbml/tbml-002/"), init.Key)
	assert.True(t, strings.HasSuffix(init.Key, "-q3 ledger.zip"), init.Key)

	require.Len(t, store.created, 1)
	assert.Equal(t, "evidence", aws.ToString(store.created[0].Bucket))
	assert.Equal(t, "application/zip", aws.ToString(store.created[0].ContentType))
	assert.Equal(t, "tbml-002", store.created[0].Metadata["rfi-id"])
}

func TestInitUploadValidation(t *testing.T) {
	server := newTestServer(&fakeStore{})
	defer server.Close()

	resp := post(t, server.URL+uploadproto.InitPath, uploadproto.InitRequest{FileName: "a.zip", UploadType: "tbml", RfiID: "cc-001"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "unknown RFI")

	resp = post(t, server.URL+uploadproto.InitPath, uploadproto.InitRequest{UploadType: "tbml", RfiID: "tbml-001"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	raw, err := http.Post(server.URL+uploadproto.InitPath, "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestPartURLs(t *testing.T) {
	server := newTestServer(&fakeStore{})
	defer server.Close()

	resp := post(t, server.URL+uploadproto.PartURLsPath, uploadproto.PartURLsRequest{Key: "k.zip", UploadID: "u-9", Parts: 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body uploadproto.PartURLsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.URLs, 3)
	for i, u := range body.URLs {
		assert.Equal(t, i+1, u.PartNumber)
		assert.Contains(t, u.URL, fmt.Sprintf("partNumber=%d&uploadId=u-9", i+1))
	}

	for _, parts := range []int{0, MaxParts + 1} {
		resp = post(t, server.URL+uploadproto.PartURLsPath, uploadproto.PartURLsRequest{Key: "k", UploadID: "u", Parts: parts})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestCompleteUpload(t *testing.T) {
	store := &fakeStore{}
	server := newTestServer(store)
	defer server.Close()

	resp := post(t, server.URL+uploadproto.CompletePath, uploadproto.CompleteRequest{Key: "k.zip", UploadID: "u-1", Parts: []uploadproto.CompletedPart{
		{ETag: `"a"`, PartNumber: 1}, {ETag: `"b"`, PartNumber: 2},
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body uploadproto.CompleteResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "https://evidence.s3.amazonaws.com/k.zip", body.URL)
	parts := store.completed[0].MultipartUpload.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, int32(2), aws.ToInt32(parts[1].PartNumber))

	resp = post(t, server.URL+uploadproto.CompletePath, uploadproto.CompleteRequest{Key: "k.zip", UploadID: "u-1", Parts: []uploadproto.CompletedPart{
		{ETag: `"b"`, PartNumber: 2}, {ETag: `"a"`, PartNumber: 1},
	}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeError(t, resp), "ascending")
}

func TestCompleteUploadStoreFailureAborts(t *testing.T) {
	store := &fakeStore{completeErr: &smithy.GenericAPIError{Code: "InvalidPart", Message: "part 2 missing"}}
	server := newTestServer(store)
	defer server.Close()

	resp := post(t, server.URL+uploadproto.CompletePath, uploadproto.CompleteRequest{Key: "k", UploadID: "u-7", Parts: []uploadproto.CompletedPart{{ETag: "a", PartNumber: 1}}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, []string{"u-7"}, store.aborted)
}

func TestStatusForStoreError(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusForStoreError(&smithy.GenericAPIError{Code: "NoSuchUpload"}))
	assert.Equal(t, http.StatusBadRequest, StatusForStoreError(fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "InvalidPartOrder"})))
	assert.Equal(t, http.StatusForbidden, StatusForStoreError(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.Equal(t, http.StatusBadGateway, StatusForStoreError(errors.New("dial tcp: timeout")))
}
