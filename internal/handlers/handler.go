// Package handlers implements the Telegram front end: each chat drives its own
// session controller and generator workflow.
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"thumbexpert/internal/apiclient"
	"thumbexpert/internal/mediagroup"
	"thumbexpert/internal/session"
	"thumbexpert/internal/telegram"
	"thumbexpert/internal/workflow"
)

// Messenger is the part of the Telegram client the handlers use.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error)
	EditTextWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID, text string, alert bool) error
	DeleteMessage(chatID int64, messageID int) error
	SendPhoto(chatID int64, image, caption string) error
	SendTyping(chatID int64)
	DownloadFileDataURL(ctx context.Context, fileID string) (string, error)
}

// Backend is the API surface used by the bot, beyond what the session controller needs.
type Backend interface {
	session.Backend
	Catchphrases(ctx context.Context, token string, req apiclient.CatchphraseRequest) ([]string, error)
	Checkout(ctx context.Context, token string) (string, error)
}

type Options struct {
	Telegram Messenger
	Backend  Backend
	Logger   *slog.Logger
}

type Handler struct {
	tg         Messenger
	backend    Backend
	chats      *chats
	logger     *slog.Logger
	aggregator *mediagroup.Aggregator
}

func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		tg:      opts.Telegram,
		backend: opts.Backend,
		chats: newChats(func() *session.Controller {
			return session.New(session.Options{Backend: opts.Backend, Logger: logger})
		}),
		logger: logger,
	}
}

func (h *Handler) SetMediaGroupAggregator(ag *mediagroup.Aggregator) {
	h.aggregator = ag
}

func (h *Handler) HandleUpdate(ctx context.Context, update telegram.Update) error {
	if update.CallbackQuery != nil {
		return h.handleCallback(ctx, update.CallbackQuery)
	}
	if update.Message == nil || update.Message.From == nil {
		return nil
	}

	msg := update.Message
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		return h.handleCommand(ctx, chatID, msg)
	}

	if len(msg.Photo) > 0 {
		return h.handlePhoto(ctx, chatID, msg)
	}

	if msg.Text != "" {
		return h.handleText(chatID, msg.Text)
	}

	return nil
}

// HandleMediaGroup adds a whole album to the upload step.
func (h *Handler) HandleMediaGroup(ctx context.Context, group mediagroup.Group) {
	if err := h.addPhotos(ctx, group.ChatID, group.FileIDs); err != nil {
		h.logger.Error("media group processing failed", "err", err)
	}
}

func (h *Handler) handlePhoto(ctx context.Context, chatID int64, msg *tgbotapi.Message) error {
	fileID := msg.Photo[len(msg.Photo)-1].FileID

	if msg.MediaGroupID != "" && h.aggregator != nil {
		h.aggregator.Add(mediagroup.Item{
			ChatID:       chatID,
			UserID:       msg.From.ID,
			MediaGroupID: msg.MediaGroupID,
			Caption:      msg.Caption,
			FileID:       fileID,
		})
		return nil
	}

	return h.addPhotos(ctx, chatID, []string{fileID})
}

func (h *Handler) addPhotos(ctx context.Context, chatID int64, fileIDs []string) error {
	h.tg.SendTyping(chatID)

	images := make([]string, len(fileIDs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, fileID := range fileIDs {
		eg.Go(func() error {
			dataURL, err := h.tg.DownloadFileDataURL(egCtx, fileID)
			if err != nil {
				return err
			}
			images[i] = dataURL
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		h.logger.Error("photo download failed", "err", err)
		return h.tg.SendText(chatID, "Failed to read the image. Please send it again.")
	}

	c := h.chats.get(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flow.Step() != workflow.StepUpload {
		return h.tg.SendText(chatID, "You are customizing already. Send /back to change the images or /new to start over.")
	}
	added := 0
	for _, img := range images {
		if err := c.flow.AddImage(img); err != nil {
			break
		}
		added++
	}

	total := len(c.flow.Images())
	switch {
	case added < len(images):
		return h.tg.SendText(chatID, fmt.Sprintf("Only %d images can be used; %d of yours were skipped. Send /done to continue.", workflow.MaxImages, len(images)-added))
	case total == workflow.MaxImages:
		return h.tg.SendText(chatID, fmt.Sprintf("Got %d/%d images. Send /done to continue.", total, workflow.MaxImages))
	default:
		return h.tg.SendText(chatID, fmt.Sprintf("Got %d/%d images. Send more or /done to continue.", total, workflow.MaxImages))
	}
}

// handleText treats free text in the customize step as the video title.
func (h *Handler) handleText(chatID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c := h.chats.get(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flow.Step() != workflow.StepCustomize {
		return h.tg.SendText(chatID, "Send reference images first, or /help for the list of commands.")
	}
	if err := c.flow.SetTitle(text); err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	return h.tg.SendText(chatID, "Title saved. Pick a /style or send /generate.")
}
