package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const (
	defaultTextModel  = "gemini-2.5-flash"
	defaultImageModel = "gemini-2.5-flash-image"
)

type Options struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	TextModel  string
	ImageModel string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	textModel  string
	imageModel string
	httpClient *http.Client
	logger     *slog.Logger
}

// APIError is a non-2xx answer from the model endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API %d: %s", e.Status, e.Body)
}

func New(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}

	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = "v1beta"
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		apiVersion: apiVersion,
		textModel:  orDefault(opts.TextModel, defaultTextModel),
		imageModel: orDefault(opts.ImageModel, defaultImageModel),
		httpClient: opts.HTTPClient,
		logger:     logger,
	}
}

// Generate sends one request. Image requests go to the image model, everything else to the text model.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	model := c.textModel
	var cfg generationConfig

	if req.WantImage {
		model = c.imageModel
		cfg.ResponseModalities = []string{"IMAGE", "TEXT"}
		if ar := strings.TrimSpace(req.AspectRatio); ar != "" {
			cfg.ImageConfig = &imageConfig{AspectRatio: ar}
		}
	}
	if req.Schema != nil {
		cfg.ResponseMimeType = "application/json"
		cfg.ResponseSchema = req.Schema
	}

	parts := make([]part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, part{InlineData: &blob{Data: img.Data, MimeType: img.MimeType}})
	}
	parts = append(parts, part{Text: strings.TrimSpace(req.Prompt)})

	return c.generateContent(ctx, model, generateContentRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: cfg,
	})
}

// GenerateJSON sends a schema-constrained request and decodes the answer into out.
func (c *Client) GenerateJSON(ctx context.Context, req Request, out any) error {
	if req.Schema == nil {
		return errors.New("gemini: structured request without schema")
	}
	req.WantImage = false

	resp, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}

	raw := strings.TrimSpace(resp.Text)
	if raw == "" {
		return errors.New("gemini: empty structured response")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("gemini: decode structured response: %w", err)
	}
	return nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (Response, error) {
	if c.httpClient == nil {
		return Response{}, errors.New("http client is nil")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, c.apiVersion, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("request: %w", err)
	}
	defer httpResp.Body.Close()

	rawBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode >= 400 {
		return Response{}, &APIError{Status: httpResp.StatusCode, Body: strings.TrimSpace(string(rawBody))}
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(rawBody, &decoded); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}

	resp := extractParts(decoded)
	c.logger.Debug("gemini response", "model", model, "images", len(resp.Images), "text_len", len(resp.Text))
	return resp, nil
}

func extractParts(resp generateContentResponse) Response {
	if len(resp.Candidates) == 0 {
		return Response{}
	}

	var textBuilder strings.Builder
	var images []string

	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			textBuilder.WriteString(p.Text)
		}
		if p.InlineData != nil && p.InlineData.Data != "" && p.InlineData.MimeType != "" {
			images = append(images, ImageInput{Data: p.InlineData.Data, MimeType: p.InlineData.MimeType}.DataURL())
		}
	}

	return Response{Text: textBuilder.String(), Images: images}
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities,omitempty"`
	ResponseMimeType   string       `json:"responseMimeType,omitempty"`
	ResponseSchema     *Schema      `json:"responseSchema,omitempty"`
	ImageConfig        *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

type candidate struct {
	Content content `json:"content"`
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
