package handlers

import (
	"encoding/json"
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/AnshRaj112/videotube-backend/internal/apperror"
	"github.com/AnshRaj112/videotube-backend/internal/logging"
)

const (
	maxJSONBody   = 1 << 20
	maxUploadSize = 10 << 20
)

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// handle turns a returned error into the JSON error body. Internal causes are
// logged and replaced by a generic message.
func handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		appErr := apperror.From(err)
		if appErr.Kind == apperror.KindInternal {
			logging.FromContext(r.Context()).Error("request failed",
				"method", r.Method, "path", r.URL.Path, "error", err)
		}
		writeJSON(w, appErr.StatusCode(), MessageResponse{Success: false, Message: appErr.Message})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// verbatimFields are never trimmed: surrounding spaces are part of a password.
var verbatimFields = map[string]bool{
	"password":    true,
	"oldPassword": true,
	"newPassword": true,
}

func fieldValue(name, v string) string {
	if verbatimFields[name] {
		return v
	}
	return strings.TrimSpace(v)
}

// readFields fills the named string fields from a JSON, urlencoded or
// multipart body. Values other than verbatimFields are trimmed; non-string
// JSON values are ignored.
func readFields(w http.ResponseWriter, r *http.Request, fields map[string]*string) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		var body map[string]any
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(&body); err != nil {
			return apperror.BadRequest("Invalid request body")
		}
		for name, dst := range fields {
			if s, ok := body[name].(string); ok {
				*dst = fieldValue(name, s)
			}
		}
		return nil
	case "multipart/form-data":
		if err := parseMultipart(w, r); err != nil {
			return err
		}
	default:
		r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
		if err := r.ParseForm(); err != nil {
			return apperror.BadRequest("Invalid request body")
		}
	}

	for name, dst := range fields {
		*dst = fieldValue(name, r.FormValue(name))
	}
	return nil
}

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	if r.MultipartForm != nil {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.BadRequest("Upload is too large")
		}
		return apperror.BadRequest("Invalid form data")
	}
	return nil
}

// formFile returns the first file sent under field, or nil.
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 || files[0].Size == 0 {
		return nil
	}
	return files[0]
}

func anyEmpty(values ...string) bool {
	for _, v := range values {
		if v == "" {
			return true
		}
	}
	return false
}
