package multipart

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/rfidrop/pkg/uploadproto"
)

func TestAPICoordinatorExchange(t *testing.T) {
	var completeReq uploadproto.CompleteRequest
	var initReq uploadproto.InitRequest
	mux := http.NewServeMux()
	mux.HandleFunc(uploadproto.InitPath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&initReq))
		json.NewEncoder(w).Encode(uploadproto.InitResponse{UploadID: "u-1", Key: "k/evidence.zip"})
	})
	mux.HandleFunc(uploadproto.PartURLsPath, func(w http.ResponseWriter, r *http.Request) {
		var req uploadproto.PartURLsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "k/evidence.zip", req.Key)
		assert.Equal(t, "u-1", req.UploadID)
		resp := uploadproto.PartURLsResponse{}
		for n := 1; n <= req.Parts; n++ {
			resp.URLs = append(resp.URLs, uploadproto.PartURL{PartNumber: n, URL: "https://dest/" + string(rune('0'+n))})
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc(uploadproto.CompletePath, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&completeReq))
		json.NewEncoder(w).Encode(uploadproto.CompleteResponse{URL: "https://bucket/k/evidence.zip"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	coord := NewAPICoordinator(server.URL+"/", server.Client(), 0)
	ctx := context.Background()

	session, err := coord.Initiate(ctx, "evidence.zip", "application/zip", InitMetadata{UploadType: "tbml", RfiID: "tbml-002"})
	require.NoError(t, err)
	assert.Equal(t, InitResult{UploadID: "u-1", Key: "k/evidence.zip"}, session)
	assert.Equal(t, uploadproto.InitRequest{FileName: "evidence.zip", FileType: "application/zip", UploadType: "tbml", RfiID: "tbml-002"}, initReq)

	dests, err := coord.GetPartDestinations(ctx, session.Key, session.UploadID, 3)
	require.NoError(t, err)
	require.Len(t, dests, 3)
	assert.Equal(t, PartDestination{PartNumber: 2, URL: "https://dest/2"}, dests[1])

	location, err := coord.Complete(ctx, session.Key, session.UploadID, []PartReceipt{
		{PartNumber: 3, ETag: "c"}, {PartNumber: 1, ETag: "a"}, {PartNumber: 2, ETag: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://bucket/k/evidence.zip", location)
	assert.Equal(t, []uploadproto.CompletedPart{
		{ETag: "a", PartNumber: 1}, {ETag: "b", PartNumber: 2}, {ETag: "c", PartNumber: 3},
	}, completeReq.Parts, "receipts are submitted in part number order")
}

func TestAPICoordinatorErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(uploadproto.ErrorResponse{Error: "storage offline"})
	}))
	defer server.Close()
	coord := NewAPICoordinator(server.URL, server.Client(), 0)
	ctx := context.Background()

	_, err := coord.Initiate(ctx, "a.zip", "application/zip", InitMetadata{})
	var initErr *InitiationError
	require.ErrorAs(t, err, &initErr)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "storage offline", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load(), "no retry at this layer by default")

	_, err = coord.GetPartDestinations(ctx, "k", "u", 2)
	var destErr *DestinationError
	assert.ErrorAs(t, err, &destErr)

	_, err = coord.Complete(ctx, "k", "u", []PartReceipt{{PartNumber: 1, ETag: "a"}})
	var finErr *FinalizationError
	assert.ErrorAs(t, err, &finErr)
	assert.Equal(t, "Could not finalize the upload: server returned 503: storage offline", UserMessage(err))
}

func TestAPICoordinatorRejectsIncompleteInit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(uploadproto.InitResponse{UploadID: "u-1"})
	}))
	defer server.Close()
	_, err := NewAPICoordinator(server.URL, server.Client(), 0).Initiate(context.Background(), "a.zip", "", InitMetadata{})
	var initErr *InitiationError
	assert.ErrorAs(t, err, &initErr)
}
