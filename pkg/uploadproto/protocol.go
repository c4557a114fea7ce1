// Package uploadproto holds the wire contract between the upload client and the
// authorization service that issues multipart sessions and part destinations.
package uploadproto

const (
	InitPath     = "/api/multipart/init"
	PartURLsPath = "/api/multipart/part-urls"
	CompletePath = "/api/multipart/complete"
)

// HeaderETag is the response header carrying a part's integrity token
const HeaderETag = "ETag"

type InitRequest struct {
	FileName   string `json:"fileName"`
	FileType   string `json:"fileType"`
	UploadType string `json:"uploadType"`
	RfiID      string `json:"rfiId"`
}

type InitResponse struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

type PartURLsRequest struct {
	Key      string `json:"key"`
	UploadID string `json:"uploadId"`
	Parts    int    `json:"parts"`
}

type PartURL struct {
	PartNumber int    `json:"partNumber"`
	URL        string `json:"url"`
}

type PartURLsResponse struct {
	URLs []PartURL `json:"urls"`
}

type CompletedPart struct {
	ETag       string `json:"ETag"`
	PartNumber int    `json:"PartNumber"`
}

type CompleteRequest struct {
	Key      string          `json:"key"`
	UploadID string          `json:"uploadId"`
	Parts    []CompletedPart `json:"parts"`
}

type CompleteResponse struct {
	URL string `json:"url"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
