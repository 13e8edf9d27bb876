package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thumbexpert/internal/apperror"
	"thumbexpert/internal/auth"
	"thumbexpert/internal/gemini"
	"thumbexpert/internal/generate"
	"thumbexpert/internal/model"
	"thumbexpert/internal/prompt"
	"thumbexpert/internal/store"
)

const testSecret = "service-test-secret-0123456789"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newAuthService(t *testing.T, users store.Users) *AuthService {
	t.Helper()
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	return NewAuthService(AuthOptions{
		Users:     users,
		Tokens:    tokens,
		Passwords: auth.NewPasswordServiceWithCost(4),
		Logger:    discard,
	})
}

func validRegistration() model.Registration {
	return model.Registration{
		FullName: "Ada Lovelace",
		Username: "ada",
		Email:    "Ada@Example.com",
		Password: "engine#1843",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	s := newAuthService(t, store.NewMemory(store.MemoryOptions{}))
	ctx := context.Background()

	sess, err := s.Register(ctx, validRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, "ada@example.com", sess.User.Email)
	assert.Equal(t, model.PlanFree, sess.User.Plan)
	assert.Equal(t, "YouTuber", sess.User.Role)
	assert.Equal(t, "English", sess.User.PreferredLanguage)

	raw, err := json.Marshal(sess.User)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "engine#1843")
	assert.NotContains(t, string(raw), sess.User.PasswordHash)

	again, err := s.Login(ctx, "ADA@example.com ", "engine#1843")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, again.User.ID)
}

func TestRegisterRejections(t *testing.T) {
	s := newAuthService(t, store.NewMemory(store.MemoryOptions{}))
	ctx := context.Background()

	_, err := s.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, err = s.Register(ctx, validRegistration())
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, "An account with this email already exists.", apperror.Message(err, ""))

	weak := validRegistration()
	weak.Email = "weak@example.com"
	weak.Password = "password"
	_, err = s.Register(ctx, weak)
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Equal(t, "Password must meet all requirements: contain a number, contain a symbol.", apperror.Message(err, ""))

	bad := validRegistration()
	bad.Email = "not-an-email"
	_, err = s.Register(ctx, bad)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	role := validRegistration()
	role.Email = "role@example.com"
	role.Role = "Streamer"
	_, err = s.Register(ctx, role)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUnknownEmailLoginPaysForBcrypt(t *testing.T) {
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	s := NewAuthService(AuthOptions{
		Users:     store.NewMemory(store.MemoryOptions{}),
		Tokens:    tokens,
		Passwords: auth.NewPasswordServiceWithCost(10),
		Logger:    discard,
	})
	ctx := context.Background()
	_, err = s.Login(ctx, "warmup@example.com", "engine#1843")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	start := time.Now()
	_, err = s.Login(ctx, "ghost@example.com", "engine#1843")
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrInvalidCredentials)
	// A cost-10 bcrypt comparison takes tens of milliseconds; a bare map miss does not.
	assert.Greater(t, elapsed, 5*time.Millisecond)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newAuthService(t, store.NewMemory(store.MemoryOptions{}))
	ctx := context.Background()
	_, err := s.Register(ctx, validRegistration())
	require.NoError(t, err)

	_, unknown := s.Login(ctx, "ghost@example.com", "engine#1843")
	_, wrong := s.Login(ctx, "ada@example.com", "wrong#1234")

	assert.ErrorIs(t, unknown, ErrInvalidCredentials)
	assert.ErrorIs(t, wrong, ErrInvalidCredentials)
	assert.ErrorIs(t, wrong, apperror.ErrUnauthorized)
	assert.Equal(t, unknown.Error(), wrong.Error())
}

func TestSocialLogin(t *testing.T) {
	users := store.NewMemory(store.MemoryOptions{})
	s := newAuthService(t, users)
	ctx := context.Background()

	profile := auth.SocialProfile{Provider: auth.ProviderGoogle, Subject: "g-1", Email: "Sam@Example.com", Name: "Sam", Picture: "https://pic"}
	first, err := s.SocialLogin(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, "sam@example.com", first.User.Email)
	assert.Equal(t, "https://pic", first.User.ProfilePhoto)

	second, err := s.SocialLogin(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)

	_, err = s.Login(ctx, "sam@example.com", "anything#1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpgradeIsOneWayAndIdempotent(t *testing.T) {
	s := newAuthService(t, store.NewMemory(store.MemoryOptions{}))
	ctx := context.Background()
	sess, err := s.Register(ctx, validRegistration())
	require.NoError(t, err)

	u, err := s.Upgrade(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.True(t, u.Premium())

	u, err = s.Upgrade(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.True(t, u.Premium())

	me, err := s.Me(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PlanPremium, me.Plan)

	_, err = s.Me(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestLogoutRevokes(t *testing.T) {
	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	require.NoError(t, err)
	revoker := auth.NewMemoryRevoker()
	s := NewAuthService(AuthOptions{
		Users:     store.NewMemory(store.MemoryOptions{}),
		Tokens:    tokens,
		Passwords: auth.NewPasswordServiceWithCost(4),
		Revoker:   revoker,
		Logger:    discard,
	})

	sess, err := s.Register(context.Background(), validRegistration())
	require.NoError(t, err)
	claims, err := tokens.Validate(sess.Token)
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background(), claims))
	revoked, err := revoker.Revoked(context.Background(), claims.TokenID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func newUser(t *testing.T, m *store.Memory, plan model.Plan) model.User {
	t.Helper()
	u, err := m.CreateUser(context.Background(), model.User{Name: "U", Email: t.Name() + "@example.com", Plan: plan})
	require.NoError(t, err)
	return u
}

func TestDataServiceDefaultsAndCap(t *testing.T) {
	m := store.NewMemory(store.MemoryOptions{})
	s := NewDataService(m, nil)
	ctx := context.Background()
	u := newUser(t, m, model.PlanFree)

	history, err := s.History(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)

	favs, err := s.Favorites(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, favs)

	var items []model.HistoryItem
	for i := range 30 {
		items = append(items, model.HistoryItem{Prompt: fmt.Sprintf("p%d", i), ImageURLs: []string{"u"}})
	}
	saved, err := s.SaveHistory(ctx, u.ID, items)
	require.NoError(t, err)
	assert.Len(t, saved, model.MaxHistory)

	_, err = s.History(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestDataServiceBrandKitValidation(t *testing.T) {
	m := store.NewMemory(store.MemoryOptions{})
	s := NewDataService(m, nil)
	ctx := context.Background()
	u := newUser(t, m, model.PlanPremium)

	_, err := s.SaveBrandKit(ctx, u.ID, model.BrandKit{BrandName: "Acme", PrimaryColor: "red", SecondaryColor: "#fff"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Contains(t, apperror.Message(err, ""), "primaryColor must be a hex color")

	kit, err := s.SaveBrandKit(ctx, u.ID, model.BrandKit{BrandName: " Acme ", PrimaryColor: "#ff0000", SecondaryColor: "#fff"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", kit.BrandName)

	got, err := s.BrandKit(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, kit, *got)
}

type recordingModel struct {
	mu      sync.Mutex
	prompts []string
	reply   string
}

func (r *recordingModel) Generate(_ context.Context, req gemini.Request) (gemini.Response, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, req.Prompt)
	r.mu.Unlock()
	return gemini.Response{Images: []string{"data:image/png;base64,OUT"}}, nil
}

func (r *recordingModel) GenerateJSON(_ context.Context, req gemini.Request, out any) error {
	r.mu.Lock()
	r.prompts = append(r.prompts, req.Prompt)
	r.mu.Unlock()
	return json.Unmarshal([]byte(r.reply), out)
}

func newGenerationService(m *store.Memory, fm *recordingModel) *GenerationService {
	return NewGenerationService(GenerationOptions{
		Users:        m,
		Data:         m,
		Orchestrator: generate.New(generate.Options{Model: fm, Logger: discard}),
		Logger:       discard,
	})
}

func TestVariantsPremiumStyleGate(t *testing.T) {
	m := store.NewMemory(store.MemoryOptions{})
	fm := &recordingModel{}
	s := newGenerationService(m, fm)
	free := newUser(t, m, model.PlanFree)

	req := VariantsRequest{
		Form:   prompt.Form{Title: "Space documentary", Style: "Cinematic"},
		Images: []string{"data:image/png;base64,AAAA"},
	}
	_, err := s.Variants(context.Background(), free.ID, req)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	assert.Empty(t, fm.prompts)

	req.Form.Style = "gaming"
	urls, err := s.Variants(context.Background(), free.ID, req)
	require.NoError(t, err)
	assert.Len(t, urls, prompt.VariantCount)
	for _, p := range fm.prompts {
		assert.Contains(t, p, `Art Style: "Gaming"`)
		assert.Contains(t, p, prompt.Watermark)
	}
}

func TestVariantsPremiumUsesBrandKit(t *testing.T) {
	m := store.NewMemory(store.MemoryOptions{})
	fm := &recordingModel{}
	s := newGenerationService(m, fm)
	u := newUser(t, m, model.PlanPremium)
	require.NoError(t, m.SaveBrandKit(context.Background(), u.ID, model.BrandKit{
		BrandName: "Orbit", PrimaryColor: "#000000", SecondaryColor: "#ffffff",
	}))

	_, err := s.Variants(context.Background(), u.ID, VariantsRequest{
		Form:   prompt.Form{Title: "Space", Style: "Cinematic"},
		Images: []string{"data:image/png;base64,AAAA"},
	})
	require.NoError(t, err)
	require.Len(t, fm.prompts, prompt.VariantCount)
	for _, p := range fm.prompts {
		assert.Contains(t, p, "Orbit")
		assert.NotContains(t, p, prompt.Watermark)
	}
}

func TestVariantsRequiresImages(t *testing.T) {
	m := store.NewMemory(store.MemoryOptions{})
	s := newGenerationService(m, &recordingModel{})
	u := newUser(t, m, model.PlanFree)

	_, err := s.Variants(context.Background(), u.ID, VariantsRequest{Form: prompt.Form{Title: "x"}})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	five := make([]string, 5)
	for i := range five {
		five[i] = "data:image/png;base64,AAAA"
	}
	_, err = s.Variants(context.Background(), u.ID, VariantsRequest{Form: prompt.Form{Title: "x"}, Images: five})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestPremiumOnlyFeatures(t *testing.T) {
	m := store.NewMemory(store.MemoryOptions{})
	fm := &recordingModel{reply: `{"score":55,"feedback":["tighter crop"]}`}
	s := newGenerationService(m, fm)
	free := newUser(t, m, model.PlanFree)

	_, err := s.EstimateCTR(context.Background(), free.ID, CTRRequest{Image: "data:image/png;base64,AAAA", Title: "t"})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = s.Bulk(context.Background(), free.ID, []model.BulkItem{{Title: "a", Style: "b"}})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = s.Bulk(context.Background(), free.ID, nil)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestCTRForPremium(t *testing.T) {
	m := store.NewMemory(store.MemoryOptions{})
	fm := &recordingModel{reply: `{"score":55,"feedback":["tighter crop"]}`}
	s := newGenerationService(m, fm)
	u := newUser(t, m, model.PlanPremium)

	score, err := s.EstimateCTR(context.Background(), u.ID, CTRRequest{Image: "data:image/png;base64,AAAA", Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, model.CTRScore{Score: 55, Feedback: []string{"tighter crop"}}, score)
}

func TestCatchphrasesCountFollowsPlan(t *testing.T) {
	m := store.NewMemory(store.MemoryOptions{})
	fm := &recordingModel{reply: `{"catchphrases":["A"]}`}
	s := newGenerationService(m, fm)
	free := newUser(t, m, model.PlanFree)

	got, err := s.Catchphrases(context.Background(), free.ID, CatchphrasesRequest{Topic: "baking", Tone: "Humorous"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, got)
	require.Len(t, fm.prompts, 1)
	assert.Contains(t, fm.prompts[0], "generate 3 short")
	assert.NotContains(t, fm.prompts[0], "Humorous")
}
