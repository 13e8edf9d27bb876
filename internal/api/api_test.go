package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thumbexpert/internal/auth"
	"thumbexpert/internal/billing"
	"thumbexpert/internal/gemini"
	"thumbexpert/internal/generate"
	"thumbexpert/internal/logging"
	"thumbexpert/internal/model"
	"thumbexpert/internal/service"
	"thumbexpert/internal/store"
)

const testPassword = "Passw0rd!"

type scriptedModel struct{}

func (scriptedModel) Generate(context.Context, gemini.Request) (gemini.Response, error) {
	return gemini.Response{Images: []string{"data:image/png;base64,T1VU"}, Text: "done"}, nil
}

func (scriptedModel) GenerateJSON(_ context.Context, req gemini.Request, out any) error {
	raw := `{"catchphrase": "WOW", "catchphrases": ["ONE", "TWO"], "titles": ["T1"]}`
	if _, ok := req.Schema.Properties["score"]; ok {
		raw = `{"score": 72, "feedback": ["Bigger text", "More contrast"]}`
	}
	return json.Unmarshal([]byte(raw), out)
}

type testEnv struct {
	handler http.Handler
	users   *store.Memory
}

func newTestEnv(t *testing.T, mods ...func(*Options)) *testEnv {
	t.Helper()

	mem := store.NewMemory(store.MemoryOptions{})
	tokens, err := auth.NewTokenService("test-secret-at-least-16", 0)
	require.NoError(t, err)
	revoker := auth.NewMemoryRevoker()
	v := service.NewValidator()
	logger := logging.Discard()

	authSvc := service.NewAuthService(service.AuthOptions{
		Users:     mem,
		Tokens:    tokens,
		Passwords: auth.NewPasswordServiceWithCost(4),
		Revoker:   revoker,
		Validator: v,
		Logger:    logger,
	})
	gen := service.NewGenerationService(service.GenerationOptions{
		Users:        mem,
		Data:         mem,
		Orchestrator: generate.New(generate.Options{Model: scriptedModel{}}),
		Validator:    v,
		Logger:       logger,
	})

	opts := Options{
		Auth:         authSvc,
		Data:         service.NewDataService(mem, v),
		Generation:   gen,
		Tokens:       tokens,
		Revoker:      revoker,
		Providers:    auth.Providers{},
		FrontendURL:  "https://app.example",
		MaxBodyBytes: 1 << 20,
		Logger:       logger,
	}
	for _, mod := range mods {
		mod(&opts)
	}
	return &testEnv{handler: NewRouter(opts), users: mem}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, email string) service.Session {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", model.Registration{
		FullName: "Test User",
		Username: "tester",
		Email:    email,
		Password: testPassword,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sess service.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	return sess
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRegisterLoginMe(t *testing.T) {
	env := newTestEnv(t)
	sess := env.register(t, "Creator@Example.com")
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "creator@example.com", sess.User.Email)
	assert.Equal(t, model.PlanFree, sess.User.Plan)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", model.Registration{
		FullName: "Other", Username: "other", Email: "creator@example.com", Password: testPassword,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "creator@example.com", Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decode[service.Session](t, rec)

	rec = env.do(t, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[model.User](t, rec)
	assert.Equal(t, sess.User.ID, me.ID)
}

func TestLoginFailuresLookIdentical(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "a@example.com")

	wrongPassword := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "a@example.com", Password: "nope"})
	unknownEmail := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: "b@example.com", Password: testPassword})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.JSONEq(t, `{"error":"unauthorized","message":"invalid credentials"}`, wrongPassword.Body.String())
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestRegisterPasswordPolicy(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/register", "", model.Registration{
		FullName: "x", Username: "x", Email: "x@example.com", Password: "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "validation_error", body.Error)
	assert.Contains(t, body.Message, "contain a number")
}

func TestLogoutRevokesToken(t *testing.T) {
	env := newTestEnv(t)
	sess := env.register(t, "a@example.com")

	rec := env.do(t, http.MethodPost, "/api/auth/logout", sess.Token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/auth/me", sess.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/auth/me", "/api/data/history", "/api/data/favorites", "/api/data/brandkit"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := env.do(t, http.MethodGet, "/api/auth/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDataRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "a@example.com").Token

	rec := env.do(t, http.MethodGet, "/api/data/brandkit", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"kit":null}`, rec.Body.String())

	kit := model.BrandKit{BrandName: "Acme", PrimaryColor: "#ff0000", SecondaryColor: "#00ff00"}
	rec = env.do(t, http.MethodPost, "/api/data/brandkit", token, brandKitBody{Kit: &kit})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/data/brandkit", token, nil)
	got := decode[brandKitBody](t, rec)
	require.NotNil(t, got.Kit)
	assert.Equal(t, kit, *got.Kit)

	rec = env.do(t, http.MethodPost, "/api/data/brandkit", token, brandKitBody{Kit: &model.BrandKit{BrandName: "x", PrimaryColor: "red"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/data/history", token, nil)
	assert.JSONEq(t, `{"history":[]}`, rec.Body.String())

	var history []model.HistoryItem
	for i := 0; i < model.MaxHistory+5; i++ {
		history = append(history, model.HistoryItem{Prompt: fmt.Sprintf("p%d", i), ImageURLs: []string{"u"}})
	}
	rec = env.do(t, http.MethodPost, "/api/data/history", token, historyBody{History: history})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[historyBody](t, rec).History, model.MaxHistory)

	rec = env.do(t, http.MethodGet, "/api/data/history", token, nil)
	saved := decode[historyBody](t, rec).History
	require.Len(t, saved, model.MaxHistory)
	assert.Equal(t, "p0", saved[0].Prompt)

	rec = env.do(t, http.MethodPost, "/api/data/favorites", token, favoritesBody{Favorites: []string{"a", "b"}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/data/favorites", token, nil)
	assert.JSONEq(t, `{"favorites":["a","b"]}`, rec.Body.String())
}

func TestVariantsPremiumStyleForbidden(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "a@example.com").Token

	body := map[string]any{
		"form":   map[string]any{"prompt": "My video", "style": "Cinematic"},
		"images": []string{"data:image/png;base64,SU4="},
	}
	rec := env.do(t, http.MethodPost, "/api/generate/variants", token, body)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	assert.Contains(t, decode[errorResponse](t, rec).Message, "Premium")

	body["form"] = map[string]any{"prompt": "My video", "style": "Gaming"}
	rec = env.do(t, http.MethodPost, "/api/generate/variants", token, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[imagesResponse](t, rec).Images, 3)
}

func TestVariantsMultipart(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "a@example.com").Token

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("form", `{"prompt":"Upload test"}`))
	fw, err := mw.CreateFormFile("images", "ref.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/generate/variants", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[imagesResponse](t, rec).Images, 3)
}

func TestPremiumOnlyFeatures(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "a@example.com").Token

	ctr := service.CTRRequest{Image: "data:image/png;base64,SU4=", Title: "My video"}
	rec := env.do(t, http.MethodPost, "/api/generate/ctr", token, ctr)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/upgrade", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.PlanPremium, decode[model.User](t, rec).Plan)

	rec = env.do(t, http.MethodPost, "/api/generate/ctr", token, ctr)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	score := decode[model.CTRScore](t, rec)
	assert.Equal(t, 72, score.Score)
	assert.Len(t, score.Feedback, 2)
}

func TestBulkCSV(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "a@example.com").Token
	env.do(t, http.MethodPost, "/api/auth/upgrade", token, nil)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/generate/bulk", strings.NewReader(body))
		req.Header.Set("Content-Type", "text/csv")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send("title,style\nTitle1,styleA\nonlytitle\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Video Title,Style,Suggested Text\n\"Title1\",\"styleA\",\"WOW\"\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "thumbnail_suggestions.csv")

	rec = send("title,style\nonlytitle\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Message, "No valid")
}

func TestBulkJSON(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "a@example.com").Token
	env.do(t, http.MethodPost, "/api/auth/upgrade", token, nil)

	rec := env.do(t, http.MethodPost, "/api/generate/bulk", token, bulkBody{Items: []model.BulkItem{{Title: "A", Style: "Gaming"}}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []model.BulkResult{{Title: "A", Style: "Gaming", Suggestion: "WOW"}}, decode[bulkBody](t, rec).Results)
}

func TestBodyLimit(t *testing.T) {
	env := newTestEnv(t)
	big := strings.Repeat("x", 2<<20)
	rec := env.do(t, http.MethodPost, "/api/auth/login", "", loginRequest{Email: big, Password: "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Message, "exceeds")
}

func TestBillingUnavailableWithoutService(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "a@example.com").Token

	rec := env.do(t, http.MethodPost, "/api/billing/checkout", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/billing/webhook", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDirectUpgradeRefusedWhenBillingConfigured(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Billing = billing.New(billing.Options{
			SecretKey:   "sk_test_dummy",
			PriceID:     "price_test",
			FrontendURL: "https://app.example",
			Logger:      logging.Discard(),
		})
	})
	sess := env.register(t, "a@example.com")

	rec := env.do(t, http.MethodPost, "/api/auth/upgrade", sess.Token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	u, err := env.users.UserByID(context.Background(), sess.User.ID)
	require.NoError(t, err)
	assert.NotEqual(t, model.PlanPremium, u.Plan)
}

func TestOAuthUnknownProviderAndState(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/auth/oauth/myspace", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h := NewRouter(Options{
		Providers:   auth.Providers{auth.ProviderGoogle: auth.NewGoogleProvider("id", "secret", "https://api.example/cb")},
		FrontendURL: "https://app.example",
		Logger:      logging.Discard(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/oauth/google", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Contains(t, rec.Header().Get("Location"), "accounts.google.com")
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/oauth/google/callback?state=wrong&code=c", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/oauth/google/callback?state="+cookies[0].Value+"&error=access_denied", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), "https://app.example/auth/callback#error="))
}

func TestHealthAndCatalog(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/catalog", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Cinematic"`)

	down := NewRouter(Options{Logger: logging.Discard(), Health: func(context.Context) error { return errors.New("db down") }})
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnexpectedErrorIsOpaque(t *testing.T) {
	s := &server{logger: logging.Discard()}
	rec := httptest.NewRecorder()
	s.writeError(rec, httptest.NewRequest(http.MethodGet, "/x", nil), errors.New("secret detail"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}
