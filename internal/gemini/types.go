package gemini

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Request is one call to the model: a prompt plus optional reference images.
type Request struct {
	Prompt      string
	Images      []ImageInput
	WantImage   bool
	AspectRatio string
	// Schema constrains the response to JSON of this shape.
	Schema *Schema
}

type ImageInput struct {
	Data     string
	MimeType string
}

func (i ImageInput) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MimeType, i.Data)
}

func (i ImageInput) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(i.Data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return b, nil
}

type Response struct {
	Text   string
	Images []string
}

const (
	TypeObject  = "OBJECT"
	TypeArray   = "ARRAY"
	TypeString  = "STRING"
	TypeInteger = "INTEGER"
)

type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

var ErrInvalidDataURL = errors.New("invalid data URL format")

var dataURLRegex = regexp.MustCompile(`^data:([^;,]+);base64,(.+)$`)

// ParseDataURL splits a base64 data URL into its MIME type and payload.
func ParseDataURL(value string) (ImageInput, error) {
	matches := dataURLRegex.FindStringSubmatch(strings.TrimSpace(value))
	if len(matches) != 3 {
		return ImageInput{}, ErrInvalidDataURL
	}
	return ImageInput{MimeType: matches[1], Data: matches[2]}, nil
}

// ParseDataURLs parses every value, failing on the first malformed one.
func ParseDataURLs(values []string) ([]ImageInput, error) {
	out := make([]ImageInput, 0, len(values))
	for _, v := range values {
		img, err := ParseDataURL(v)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}
