package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thumbexpert/internal/api"
	"thumbexpert/internal/apiclient"
	"thumbexpert/internal/auth"
	"thumbexpert/internal/catalog"
	"thumbexpert/internal/gemini"
	"thumbexpert/internal/generate"
	"thumbexpert/internal/logging"
	"thumbexpert/internal/mediagroup"
	"thumbexpert/internal/service"
	"thumbexpert/internal/store"
	"thumbexpert/internal/telegram"
)

const (
	chatID = int64(100)
	userID = int64(7)
)

type stubModel struct{}

func (stubModel) Generate(context.Context, gemini.Request) (gemini.Response, error) {
	return gemini.Response{Images: []string{"data:image/png;base64,T1VU"}}, nil
}

func (stubModel) GenerateJSON(_ context.Context, _ gemini.Request, out any) error {
	return json.Unmarshal([]byte(`{"catchphrases": ["GO BIG", "NO WAY"]}`), out)
}

type sentPhoto struct {
	image   string
	caption string
}

type fakeMessenger struct {
	mu       sync.Mutex
	texts    []string
	photos   []sentPhoto
	answers  []string
	deleted  []int
	keyboard tgbotapi.InlineKeyboardMarkup
}

func (f *fakeMessenger) SendText(_ int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeMessenger) SendTextWithKeyboard(_ int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.keyboard = kb
	return 99, nil
}

func (f *fakeMessenger) EditTextWithKeyboard(_ int64, _ int, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	f.keyboard = kb
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ string, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) DeleteMessage(_ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) SendPhoto(_ int64, image, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos = append(f.photos, sentPhoto{image: image, caption: caption})
	return nil
}

func (f *fakeMessenger) SendTyping(int64) {}

func (f *fakeMessenger) DownloadFileDataURL(_ context.Context, fileID string) (string, error) {
	return "data:image/png;base64," + fileID, nil
}

func (f *fakeMessenger) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

func (f *fakeMessenger) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return ""
	}
	return f.answers[len(f.answers)-1]
}

func (f *fakeMessenger) photoCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.photos)
}

// newTestHandler wires the bot to a real API server backed by the memory store.
func newTestHandler(t *testing.T) (*Handler, *fakeMessenger) {
	t.Helper()

	mem := store.NewMemory(store.MemoryOptions{})
	tokens, err := auth.NewTokenService("test-secret-at-least-16", 0)
	require.NoError(t, err)
	revoker := auth.NewMemoryRevoker()
	v := service.NewValidator()
	logger := logging.Discard()

	router := api.NewRouter(api.Options{
		Auth: service.NewAuthService(service.AuthOptions{
			Users:     mem,
			Tokens:    tokens,
			Passwords: auth.NewPasswordServiceWithCost(4),
			Revoker:   revoker,
			Validator: v,
			Logger:    logger,
		}),
		Data: service.NewDataService(mem, v),
		Generation: service.NewGenerationService(service.GenerationOptions{
			Users:        mem,
			Data:         mem,
			Orchestrator: generate.New(generate.Options{Model: stubModel{}}),
			Validator:    v,
			Logger:       logger,
		}),
		Tokens:    tokens,
		Revoker:   revoker,
		Providers: auth.Providers{},
		Logger:    logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	backend, err := apiclient.New(apiclient.Options{BaseURL: srv.URL, HTTPClient: srv.Client()})
	require.NoError(t, err)

	tg := &fakeMessenger{}
	return New(Options{Telegram: tg, Backend: backend, Logger: logger}), tg
}

var nextMessageID int

func command(text string) telegram.Update {
	nextMessageID++
	name, _, _ := strings.Cut(text, " ")
	return telegram.Update{Message: &tgbotapi.Message{
		MessageID: nextMessageID,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: userID, UserName: "creator"},
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func plain(text string) telegram.Update {
	nextMessageID++
	return telegram.Update{Message: &tgbotapi.Message{
		MessageID: nextMessageID,
		Text:      text,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: userID},
	}}
}

func photo(fileID string) telegram.Update {
	nextMessageID++
	return telegram.Update{Message: &tgbotapi.Message{
		MessageID: nextMessageID,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{ID: userID},
		Photo:     []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: fileID}},
	}}
}

// callback presses a button of a menu owned by userID.
func callback(from int64, parts ...string) telegram.Update {
	return telegram.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "q",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{MessageID: 99, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    cb(userID, parts...),
	}}
}

func send(t *testing.T, h *Handler, u telegram.Update) {
	t.Helper()
	require.NoError(t, h.HandleUpdate(context.Background(), u))
}

// customize signs up and moves to the customize step with one photo and a title.
func customize(t *testing.T, h *Handler, tg *fakeMessenger) {
	t.Helper()
	send(t, h, command("/signup creator@example.com Passw0rd! Test Creator"))
	require.Contains(t, tg.lastText(), "Welcome, Test Creator")
	send(t, h, command("/new"))
	send(t, h, photo("UkVG"))
	require.Equal(t, "Got 1/4 images. Send more or /done to continue.", tg.lastText())
	send(t, h, command("/done"))
	send(t, h, plain("My first video"))
	require.Equal(t, "Title saved. Pick a /style or send /generate.", tg.lastText())
}

func styleIndex(premium bool) string {
	for i, s := range catalog.Styles() {
		if s.Premium() == premium {
			return strconv.Itoa(i)
		}
	}
	return "-1"
}

func TestStartShowsHelp(t *testing.T) {
	h, tg := newTestHandler(t)
	send(t, h, command("/start"))
	assert.Contains(t, tg.lastText(), "/generate")
}

func TestGenerateRequiresLogin(t *testing.T) {
	h, tg := newTestHandler(t)
	send(t, h, command("/new"))
	send(t, h, photo("UkVG"))
	send(t, h, command("/done"))
	send(t, h, command("/generate Anonymous video"))
	assert.Equal(t, "Please /login or /signup first.", tg.lastText())
	assert.Zero(t, tg.photoCount())
}

func TestDoneWithoutImages(t *testing.T) {
	h, tg := newTestHandler(t)
	send(t, h, command("/done"))
	assert.Equal(t, "Send at least one reference photo first.", tg.lastText())
}

func TestCredentialsMessageIsDeleted(t *testing.T) {
	h, tg := newTestHandler(t)
	u := command("/login nobody@example.com wrong-password")
	send(t, h, u)
	assert.Equal(t, []int{u.Message.MessageID}, tg.deleted)
	assert.NotContains(t, tg.lastText(), "Welcome")
}

func TestGenerateEditAndFavorite(t *testing.T) {
	h, tg := newTestHandler(t)
	customize(t, h, tg)

	send(t, h, command("/generate"))
	require.Equal(t, 3, tg.photoCount())
	assert.Equal(t, "Variant 1. /edit 1 <changes> or /fav 1", tg.photos[0].caption)

	send(t, h, command("/fav 1"))
	assert.Equal(t, "Added to favorites.", tg.lastText())
	send(t, h, command("/fav 9"))
	assert.Equal(t, "Pick a variant between 1 and 3.", tg.lastText())

	send(t, h, command("/history"))
	assert.Contains(t, tg.lastText(), "My first video, 3 images")

	send(t, h, command("/edit 1 make the text yellow"))
	require.Equal(t, 4, tg.photoCount())
	assert.Equal(t, "Edited variant 1", tg.photos[3].caption)

	send(t, h, command("/favorites"))
	assert.Equal(t, 5, tg.photoCount())

	send(t, h, command("/me"))
	assert.Contains(t, tg.lastText(), "Plan: Free")
	assert.Contains(t, tg.lastText(), "Favorites: 1")
}

func TestEditNeedsResults(t *testing.T) {
	h, tg := newTestHandler(t)
	customize(t, h, tg)
	send(t, h, command("/edit 1 brighter"))
	assert.Equal(t, "Generate thumbnails first with /generate.", tg.lastText())
	send(t, h, command("/edit"))
	assert.Contains(t, tg.lastText(), "Usage: /edit")
}

func TestOptionsMenuAndPremiumStyles(t *testing.T) {
	h, tg := newTestHandler(t)
	customize(t, h, tg)

	send(t, h, command("/options"))
	assert.Contains(t, tg.lastText(), "Title: My first video")
	require.NotEmpty(t, tg.keyboard.InlineKeyboard)

	send(t, h, callback(userID, "pick", fieldStyle))
	locked := 0
	for _, row := range tg.keyboard.InlineKeyboard {
		for _, b := range row {
			if strings.HasPrefix(b.Text, "🔒") {
				locked++
			}
		}
	}
	assert.Equal(t, len(catalog.PremiumStyles()), locked)

	send(t, h, callback(userID, "set", fieldStyle, styleIndex(true)))
	assert.Equal(t, "This style is a Premium feature. Send /upgrade to unlock it.", tg.lastAnswer())

	send(t, h, callback(userID, "set", fieldStyle, styleIndex(false)))
	assert.Contains(t, tg.lastText(), "Style: "+string(catalog.FreeStyles()[0]))

	send(t, h, callback(userID+1, "menu"))
	assert.Equal(t, "This menu is not for you.", tg.lastAnswer())

	send(t, h, command("/upgrade"))
	assert.Equal(t, "You are now on Premium. All styles are unlocked.", tg.lastText())
	send(t, h, callback(userID, "set", fieldStyle, styleIndex(true)))
	assert.Contains(t, tg.lastText(), "Style: "+string(catalog.PremiumStyles()[0]))

	send(t, h, command("/upgrade"))
	assert.Equal(t, "You are already on Premium.", tg.lastText())
}

func TestSuggestAndBrandKit(t *testing.T) {
	h, tg := newTestHandler(t)
	customize(t, h, tg)

	send(t, h, command("/suggest budget travel"))
	assert.Equal(t, "1. GO BIG\n2. NO WAY", tg.lastText())

	send(t, h, command("/brandkit Acme #ff0000 #00ff00 Build fast"))
	assert.Equal(t, "Brand kit saved. It is applied to generations on Premium.", tg.lastText())
	send(t, h, command("/brandkit Acme red blue"))
	assert.NotContains(t, tg.lastText(), "saved")

	send(t, h, command("/me"))
	assert.Contains(t, tg.lastText(), "Brand kit: Acme")
}

func TestLogoutResetsChat(t *testing.T) {
	h, tg := newTestHandler(t)
	customize(t, h, tg)
	send(t, h, command("/logout"))
	assert.Equal(t, "Signed out.", tg.lastText())
	send(t, h, command("/me"))
	assert.Equal(t, "Please /login or /signup first.", tg.lastText())

	send(t, h, command("/login creator@example.com Passw0rd!"))
	assert.Contains(t, tg.lastText(), "Welcome, Test Creator")
}

func TestMediaGroupCapsImages(t *testing.T) {
	h, tg := newTestHandler(t)
	group := mediagroup.Group{ChatID: chatID, UserID: userID}
	for i := range 5 {
		group.FileIDs = append(group.FileIDs, fmt.Sprintf("img%d", i))
	}
	h.HandleMediaGroup(context.Background(), group)
	assert.Equal(t, "Only 4 images can be used; 1 of yours were skipped. Send /done to continue.", tg.lastText())
}

func TestTextOutsideCustomize(t *testing.T) {
	h, tg := newTestHandler(t)
	send(t, h, plain("hello"))
	assert.Equal(t, "Send reference images first, or /help for the list of commands.", tg.lastText())
}
