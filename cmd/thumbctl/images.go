package main

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"thumbexpert/internal/gemini"
)

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:")
}

// readImage loads a local file as a base64 data URL.
func readImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%s is not an image (%s)", path, mimeType)
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// saveImage writes a data URL to dir/name.<ext> and returns the path. Hosted
// images are not downloaded; their URL is returned as is.
func saveImage(dir, name, ref string) (string, error) {
	if !strings.HasPrefix(ref, "data:") {
		return ref, nil
	}
	img, err := gemini.ParseDataURL(ref)
	if err != nil {
		return "", err
	}
	data, err := img.Bytes()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+extension(img.MimeType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

func describeImage(ref string) string {
	if !strings.HasPrefix(ref, "data:") {
		return ref
	}
	img, err := gemini.ParseDataURL(ref)
	if err != nil {
		return "(invalid image)"
	}
	return fmt.Sprintf("inline %s, %d bytes", img.MimeType, base64.StdEncoding.DecodedLen(len(img.Data)))
}
