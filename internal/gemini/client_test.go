package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	path   string
	apiKey string
	body   generateContentRequest
}

func newTestServer(t *testing.T, status int, reply any) (*Client, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.apiKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got.body))
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(srv.Close)

	return New(Options{APIKey: "k-123", BaseURL: srv.URL, HTTPClient: srv.Client()}), got
}

func reply(parts ...part) generateContentResponse {
	return generateContentResponse{Candidates: []candidate{{Content: content{Role: "model", Parts: parts}}}}
}

func TestGenerateImageRequest(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK, reply(
		part{Text: "here you go"},
		part{InlineData: &blob{Data: "QUJD", MimeType: "image/png"}},
	))

	resp, err := c.Generate(context.Background(), Request{
		Prompt:      "  make a thumbnail ",
		Images:      []ImageInput{{Data: "eHl6", MimeType: "image/jpeg"}},
		WantImage:   true,
		AspectRatio: "16:9",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash-image:generateContent", got.path)
	assert.Equal(t, "k-123", got.apiKey)
	require.Len(t, got.body.Contents, 1)
	parts := got.body.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "eHl6", parts[0].InlineData.Data)
	assert.Equal(t, "make a thumbnail", parts[1].Text)
	assert.Equal(t, []string{"IMAGE", "TEXT"}, got.body.GenerationConfig.ResponseModalities)
	assert.Equal(t, "16:9", got.body.GenerationConfig.ImageConfig.AspectRatio)

	assert.Equal(t, "here you go", resp.Text)
	assert.Equal(t, []string{"data:image/png;base64,QUJD"}, resp.Images)
}

func TestGenerateJSON(t *testing.T) {
	c, got := newTestServer(t, http.StatusOK, reply(part{Text: ` {"score": 72, "feedback": ["bigger text"]} `}))

	schema := &Schema{
		Type: TypeObject,
		Properties: map[string]*Schema{
			"score":    {Type: TypeInteger},
			"feedback": {Type: TypeArray, Items: &Schema{Type: TypeString}},
		},
		Required: []string{"score", "feedback"},
	}
	var out struct {
		Score    int      `json:"score"`
		Feedback []string `json:"feedback"`
	}
	err := c.GenerateJSON(context.Background(), Request{Prompt: "rate it", Schema: schema, WantImage: true}, &out)
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", got.path)
	assert.Equal(t, "application/json", got.body.GenerationConfig.ResponseMimeType)
	require.NotNil(t, got.body.GenerationConfig.ResponseSchema)
	assert.Equal(t, TypeObject, got.body.GenerationConfig.ResponseSchema.Type)
	assert.Empty(t, got.body.GenerationConfig.ResponseModalities)
	assert.Equal(t, 72, out.Score)
	assert.Equal(t, []string{"bigger text"}, out.Feedback)
}

func TestGenerateJSONMalformed(t *testing.T) {
	c, _ := newTestServer(t, http.StatusOK, reply(part{Text: "not json"}))
	var out map[string]any
	err := c.GenerateJSON(context.Background(), Request{Prompt: "x", Schema: &Schema{Type: TypeObject}}, &out)
	assert.ErrorContains(t, err, "decode structured response")
}

func TestGenerateJSONRequiresSchema(t *testing.T) {
	c := New(Options{HTTPClient: http.DefaultClient})
	var out map[string]any
	assert.Error(t, c.GenerateJSON(context.Background(), Request{Prompt: "x"}, &out))
}

func TestGenerateAPIError(t *testing.T) {
	c, _ := newTestServer(t, http.StatusTooManyRequests, map[string]string{"error": "quota"})
	_, err := c.Generate(context.Background(), Request{Prompt: "x"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Contains(t, apiErr.Body, "quota")
}

func TestParseDataURL(t *testing.T) {
	img, err := ParseDataURL("data:image/webp;base64,AAAA")
	require.NoError(t, err)
	assert.Equal(t, ImageInput{MimeType: "image/webp", Data: "AAAA"}, img)
	assert.Equal(t, "data:image/webp;base64,AAAA", img.DataURL())

	for _, bad := range []string{"", "AAAA", "data:image/png,AAAA", "https://example.com/a.png"} {
		_, err := ParseDataURL(bad)
		assert.ErrorIs(t, err, ErrInvalidDataURL, bad)
	}

	_, err = ParseDataURLs([]string{"data:image/png;base64,AA==", "nope"})
	assert.ErrorIs(t, err, ErrInvalidDataURL)
}
