// Package apiclient talks to the ThumbExpert HTTP API on behalf of the bot and the CLI.
package apiclient

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

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/catalog"
	"thumbexpert/internal/model"
	"thumbexpert/internal/prompt"
)

const maxErrorBody = 4 << 10

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Session is returned by register and login.
type Session struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type EditResult struct {
	ImageURL string `json:"imageUrl"`
	Text     string `json:"text"`
}

type CatchphraseRequest struct {
	Topic     string            `json:"topic"`
	Audience  string            `json:"audience,omitempty"`
	Tone      catalog.TextTone  `json:"textTone,omitempty"`
	TextStyle catalog.TextStyle `json:"textStyle,omitempty"`
}

// Error is a non-2xx answer from the API. It unwraps to the matching apperror kind.
type Error struct {
	Status  int
	Kind    string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return apperror.ErrValidation
	case http.StatusUnauthorized:
		return apperror.ErrUnauthorized
	case http.StatusForbidden:
		return apperror.ErrForbidden
	case http.StatusNotFound:
		return apperror.ErrNotFound
	case http.StatusConflict:
		return apperror.ErrConflict
	case http.StatusBadGateway:
		return apperror.ErrUpstream
	}
	return nil
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api base url is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{baseURL: baseURL, httpClient: opts.HTTPClient, logger: logger}, nil
}

func (c *Client) Register(ctx context.Context, reg model.Registration) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/auth/register", "", reg, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	var out Session
	body := map[string]string{"email": email, "password": password}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", "", body, &out)
	return out, err
}

func (c *Client) Me(ctx context.Context, token string) (model.User, error) {
	var out model.User
	err := c.do(ctx, http.MethodGet, "/api/auth/me", token, nil, &out)
	return out, err
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", token, nil, nil)
}

func (c *Client) Upgrade(ctx context.Context, token string) (model.User, error) {
	var out model.User
	err := c.do(ctx, http.MethodPost, "/api/auth/upgrade", token, nil, &out)
	return out, err
}

func (c *Client) BrandKit(ctx context.Context, token string) (*model.BrandKit, error) {
	var out struct {
		Kit *model.BrandKit `json:"kit"`
	}
	err := c.do(ctx, http.MethodGet, "/api/data/brandkit", token, nil, &out)
	return out.Kit, err
}

func (c *Client) SaveBrandKit(ctx context.Context, token string, kit model.BrandKit) (model.BrandKit, error) {
	var out struct {
		Kit model.BrandKit `json:"kit"`
	}
	err := c.do(ctx, http.MethodPost, "/api/data/brandkit", token, map[string]any{"kit": kit}, &out)
	return out.Kit, err
}

func (c *Client) History(ctx context.Context, token string) ([]model.HistoryItem, error) {
	var out struct {
		History []model.HistoryItem `json:"history"`
	}
	err := c.do(ctx, http.MethodGet, "/api/data/history", token, nil, &out)
	return out.History, err
}

func (c *Client) SaveHistory(ctx context.Context, token string, items []model.HistoryItem) ([]model.HistoryItem, error) {
	var out struct {
		History []model.HistoryItem `json:"history"`
	}
	err := c.do(ctx, http.MethodPost, "/api/data/history", token, map[string]any{"history": items}, &out)
	return out.History, err
}

func (c *Client) Favorites(ctx context.Context, token string) ([]string, error) {
	var out struct {
		Favorites []string `json:"favorites"`
	}
	err := c.do(ctx, http.MethodGet, "/api/data/favorites", token, nil, &out)
	return out.Favorites, err
}

func (c *Client) SaveFavorites(ctx context.Context, token string, urls []string) ([]string, error) {
	var out struct {
		Favorites []string `json:"favorites"`
	}
	err := c.do(ctx, http.MethodPost, "/api/data/favorites", token, map[string]any{"favorites": urls}, &out)
	return out.Favorites, err
}

func (c *Client) Catalog(ctx context.Context) (catalog.Listing, error) {
	var out catalog.Listing
	err := c.do(ctx, http.MethodGet, "/api/catalog", "", nil, &out)
	return out, err
}

func (c *Client) Variants(ctx context.Context, token string, form prompt.Form, images []string) ([]string, error) {
	var out struct {
		Images []string `json:"images"`
	}
	body := map[string]any{"form": form, "images": images}
	err := c.do(ctx, http.MethodPost, "/api/generate/variants", token, body, &out)
	return out.Images, err
}

func (c *Client) Edit(ctx context.Context, token, image, instruction string) (EditResult, error) {
	var out EditResult
	body := map[string]string{"image": image, "prompt": instruction}
	err := c.do(ctx, http.MethodPost, "/api/generate/edit", token, body, &out)
	return out, err
}

func (c *Client) Catchphrases(ctx context.Context, token string, req CatchphraseRequest) ([]string, error) {
	var out struct {
		Catchphrases []string `json:"catchphrases"`
	}
	err := c.do(ctx, http.MethodPost, "/api/generate/catchphrases", token, req, &out)
	return out.Catchphrases, err
}

func (c *Client) Titles(ctx context.Context, token, topic string) ([]string, error) {
	var out struct {
		Titles []string `json:"titles"`
	}
	err := c.do(ctx, http.MethodPost, "/api/generate/titles", token, map[string]string{"topic": topic}, &out)
	return out.Titles, err
}

func (c *Client) EstimateCTR(ctx context.Context, token, image, title string) (model.CTRScore, error) {
	var out model.CTRScore
	body := map[string]string{"image": image, "title": title}
	err := c.do(ctx, http.MethodPost, "/api/generate/ctr", token, body, &out)
	return out, err
}

func (c *Client) Bulk(ctx context.Context, token string, items []model.BulkItem) ([]model.BulkResult, error) {
	var out struct {
		Results []model.BulkResult `json:"results"`
	}
	err := c.do(ctx, http.MethodPost, "/api/generate/bulk", token, map[string]any{"items": items}, &out)
	return out.Results, err
}

// Checkout returns the hosted payment page for the Premium plan.
func (c *Client) Checkout(ctx context.Context, token string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, http.MethodPost, "/api/billing/checkout", token, nil, &out)
	return out.URL, err
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, apiErr) != nil {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		c.logger.Debug("api error", "method", method, "path", path, "status", resp.StatusCode, "err", apiErr)
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
