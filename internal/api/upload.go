package api

import (
	"encoding/base64"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"thumbexpert/internal/apperror"
)

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

// parseUploads reads the named file fields of a multipart request as data URLs.
func (s *server) parseUploads(w http.ResponseWriter, r *http.Request, field string) ([]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := r.ParseMultipartForm(s.maxBody); err != nil {
		return nil, apperror.ValidationFailed(field, "invalid multipart form")
	}

	var out []string
	for _, fh := range r.MultipartForm.File[field] {
		url, err := fileDataURL(fh)
		if err != nil {
			return nil, apperror.ValidationFailed(field, "failed to read image")
		}
		out = append(out, url)
	}
	return out, nil
}

func fileDataURL(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return "data:" + sniffMIME(fh.Header.Get("Content-Type"), data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func sniffMIME(declared string, data []byte) string {
	mimeType := stripParams(declared)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = stripParams(http.DetectContentType(data))
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = "image/jpeg"
	}
	return mimeType
}

func stripParams(mimeType string) string {
	mimeType, _, _ = strings.Cut(mimeType, ";")
	return strings.TrimSpace(mimeType)
}
