// Package authsvc is a reference upload-authorization service. It opens S3 multipart
// sessions, presigns part destinations and finalizes sessions for the rfidrop client.
package authsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/rfidrop/internal/rfi"
	"github.com/tanq16/rfidrop/internal/utils"
	"github.com/tanq16/rfidrop/pkg/uploadproto"
)

// S3 never accepts more parts than this in one upload
const MaxParts = 10000

type Config struct {
	Bucket    string
	Prefix    string
	URLExpiry time.Duration
}

type Server struct {
	store     ObjectStore
	presigner PartPresigner
	cfg       Config
}

func NewServer(store ObjectStore, presigner PartPresigner, cfg Config) *Server {
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = utils.DefaultPresignedExpiry
	}
	return &Server{store: store, presigner: presigner, cfg: cfg}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Post(uploadproto.InitPath, s.initUpload)
	r.Post(uploadproto.PartURLsPath, s.partURLs)
	r.Post(uploadproto.CompletePath, s.completeUpload)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	return r
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

// ObjectKey places an upload under <prefix>/<uploadType>/<rfiId>/<uuid>-<name>
func (s *Server) ObjectKey(uploadType, rfiID, fileName string) string {
	name := unsafeName.ReplaceAllString(path.Base(strings.ReplaceAll(fileName, `\`, "/")), "_")
	return path.Join(s.cfg.Prefix, uploadType, rfiID, uuid.NewString()+"-"+name)
}

func (s *Server) initUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadproto.InitRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.FileName) == "" {
		writeError(w, http.StatusBadRequest, "fileName is required")
		return
	}
	option, err := rfi.Resolve(req.UploadType, req.RfiID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	contentType := req.FileType
	if contentType == "" {
		contentType = utils.DefaultContentType
	}
	key := s.ObjectKey(rfi.NormalizeType(req.UploadType), option.Value, req.FileName)
	out, err := s.store.CreateMultipartUpload(r.Context(), &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"upload-type": rfi.NormalizeType(req.UploadType),
			"rfi-id":      option.Value,
		},
	})
	if err != nil {
		s.storeError(w, "create multipart upload", err)
		return
	}
	log.Info().Str("op", "authsvc/server").Msgf("opened upload %s for %s", aws.ToString(out.UploadId), key)
	writeJSON(w, http.StatusOK, uploadproto.InitResponse{UploadID: aws.ToString(out.UploadId), Key: key})
}

func (s *Server) partURLs(w http.ResponseWriter, r *http.Request) {
	var req uploadproto.PartURLsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Key == "" || req.UploadID == "" {
		writeError(w, http.StatusBadRequest, "key and uploadId are required")
		return
	}
	if req.Parts < 1 || req.Parts > MaxParts {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("parts must be between 1 and %d", MaxParts))
		return
	}
	urls := make([]uploadproto.PartURL, 0, req.Parts)
	for n := 1; n <= req.Parts; n++ {
		presigned, err := s.presigner.PresignUploadPart(r.Context(), &s3.UploadPartInput{
			Bucket:     aws.String(s.cfg.Bucket),
			Key:        aws.String(req.Key),
			UploadId:   aws.String(req.UploadID),
			PartNumber: aws.Int32(int32(n)),
		}, s3.WithPresignExpires(s.cfg.URLExpiry))
		if err != nil {
			s.storeError(w, fmt.Sprintf("presign part %d", n), err)
			return
		}
		urls = append(urls, uploadproto.PartURL{PartNumber: n, URL: presigned.URL})
	}
	writeJSON(w, http.StatusOK, uploadproto.PartURLsResponse{URLs: urls})
}

func (s *Server) completeUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadproto.CompleteRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Key == "" || req.UploadID == "" {
		writeError(w, http.StatusBadRequest, "key and uploadId are required")
		return
	}
	if len(req.Parts) == 0 {
		writeError(w, http.StatusBadRequest, "parts are required")
		return
	}
	parts := make([]types.CompletedPart, 0, len(req.Parts))
	for i, p := range req.Parts {
		if p.ETag == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("part %d has no ETag", p.PartNumber))
			return
		}
		if i > 0 && p.PartNumber <= req.Parts[i-1].PartNumber {
			writeError(w, http.StatusBadRequest, "parts must be in ascending part number order")
			return
		}
		parts = append(parts, types.CompletedPart{ETag: aws.String(p.ETag), PartNumber: aws.Int32(int32(p.PartNumber))})
	}
	out, err := s.store.CompleteMultipartUpload(r.Context(), &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.cfg.Bucket),
		Key:             aws.String(req.Key),
		UploadId:        aws.String(req.UploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		s.abort(r.Context(), req.Key, req.UploadID)
		s.storeError(w, "complete multipart upload", err)
		return
	}
	location := aws.ToString(out.Location)
	if location == "" {
		location = fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, req.Key)
	}
	log.Info().Str("op", "authsvc/server").Msgf("completed upload %s with %d parts", req.UploadID, len(parts))
	writeJSON(w, http.StatusOK, uploadproto.CompleteResponse{URL: location})
}

// abort discards the stored parts of a session that could not be completed
func (s *Server) abort(ctx context.Context, key, uploadID string) {
	_, err := s.store.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.cfg.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		log.Warn().Str("op", "authsvc/server").Err(err).Msgf("could not abort upload %s", uploadID)
	}
}

func (s *Server) storeError(w http.ResponseWriter, action string, err error) {
	status := StatusForStoreError(err)
	log.Error().Str("op", "authsvc/server").Err(err).Int("status", status).Msg(action)
	writeError(w, status, fmt.Sprintf("%s: %v", action, err))
}

// StatusForStoreError maps S3 API error codes onto the status returned to clients
func StatusForStoreError(err error) int {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchUpload", "NoSuchBucket":
			return http.StatusNotFound
		case "InvalidPart", "InvalidPartOrder", "EntityTooSmall", "InvalidArgument":
			return http.StatusBadRequest
		case "AccessDenied":
			return http.StatusForbidden
		}
	}
	return http.StatusBadGateway
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Str("op", "authsvc/server").Err(err).Msg("error writing response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, uploadproto.ErrorResponse{Error: message})
}
