package telegram

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"thumbexpert/internal/gemini"
)

type Options struct {
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Debug      bool
}

type Client struct {
	bot        *tgbotapi.BotAPI
	httpClient *http.Client
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is nil")
	}

	bot, err := tgbotapi.NewBotAPIWithClient(opts.Token, tgbotapi.APIEndpoint, opts.HTTPClient)
	if err != nil {
		return nil, err
	}
	bot.Debug = opts.Debug

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		bot:        bot,
		httpClient: opts.HTTPClient,
		logger:     logger,
	}, nil
}

func (c *Client) Username() string {
	return c.bot.Self.UserName
}

type Update = tgbotapi.Update

type UpdatesOptions struct {
	Timeout time.Duration
}

func (c *Client) Updates(opts UpdatesOptions) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.AllowedUpdates = []string{"message", "callback_query"}
	if opts.Timeout > 0 {
		u.Timeout = int(opts.Timeout.Seconds())
	} else {
		u.Timeout = 30
	}
	return c.bot.GetUpdatesChan(u)
}

func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

func (c *Client) SendTyping(chatID int64) {
	_, _ = c.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
}

func (c *Client) SendText(chatID int64, text string) error {
	parts := splitByBytes(text, 4096)
	for _, p := range parts {
		msg := tgbotapi.NewMessage(chatID, p)
		if _, err := c.bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) SendTextWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, truncateByBytes(text, 4096))
	msg.ReplyMarkup = kb
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *Client) EditTextWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, truncateByBytes(text, 4096), kb)
	_, err := c.bot.Send(edit)
	return err
}

func (c *Client) AnswerCallback(callbackID, text string, alert bool) error {
	cfg := tgbotapi.NewCallback(callbackID, text)
	cfg.ShowAlert = alert
	_, err := c.bot.Request(cfg)
	return err
}

// DeleteMessage removes a message, used to drop chat lines that carried a password.
func (c *Client) DeleteMessage(chatID int64, messageID int) error {
	_, err := c.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	return err
}

// SendPhoto sends an image given as a data URL, or by URL when it is already hosted.
func (c *Client) SendPhoto(chatID int64, image string, caption string) error {
	var file tgbotapi.RequestFileData
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		file = tgbotapi.FileURL(image)
	} else {
		img, err := gemini.ParseDataURL(image)
		if err != nil {
			return err
		}
		data, err := img.Bytes()
		if err != nil {
			return fmt.Errorf("decode base64: %w", err)
		}
		file = tgbotapi.FileBytes{Name: "thumbnail" + extension(img.MimeType), Bytes: data}
	}

	photo := tgbotapi.NewPhoto(chatID, file)
	if caption != "" {
		photo.Caption = truncateByBytes(caption, 1024)
	}
	_, err := c.bot.Send(photo)
	return err
}

// DownloadFileDataURL fetches a Telegram file and returns it as a data URL.
func (c *Client) DownloadFileDataURL(ctx context.Context, fileID string) (string, error) {
	fileURL, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("telegram file download %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	img := gemini.ImageInput{
		MimeType: detectMIME(resp.Header.Get("content-type"), data),
		Data:     base64.StdEncoding.EncodeToString(data),
	}
	return img.DataURL(), nil
}

func detectMIME(declared string, data []byte) string {
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

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

func splitByBytes(text string, maxBytes int) []string {
	if len([]byte(text)) <= maxBytes || maxBytes <= 0 {
		return []string{text}
	}

	var out []string
	var buf strings.Builder
	buf.Grow(maxBytes)

	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len([]byte(string(r)))
		}

		if buf.Len() > 0 && buf.Len()+runeBytes > maxBytes {
			out = append(out, buf.String())
			buf.Reset()
		}
		buf.WriteRune(r)
	}

	if buf.Len() > 0 {
		out = append(out, buf.String())
	}

	return out
}

func truncateByBytes(text string, maxBytes int) string {
	if len([]byte(text)) <= maxBytes || maxBytes <= 0 {
		return text
	}

	var buf strings.Builder
	buf.Grow(maxBytes)
	for _, r := range text {
		runeBytes := utf8.RuneLen(r)
		if runeBytes < 0 {
			runeBytes = len([]byte(string(r)))
		}

		if buf.Len()+runeBytes > maxBytes {
			break
		}
		buf.WriteRune(r)
	}
	return buf.String()
}
