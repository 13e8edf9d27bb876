package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"thumbexpert/internal/apiclient"
	"thumbexpert/internal/apperror"
	"thumbexpert/internal/model"
	"thumbexpert/internal/session"
	"thumbexpert/internal/workflow"
)

const helpText = `ThumbExpert AI turns your reference photos into YouTube thumbnails.

1. /new, then send up to 4 photos (an album works too)
2. /done, then type your video title
3. /options to pick style, language and text tone
4. /generate to get your variants

Account:
/signup <email> <password> <full name>
/login <email> <password>
/logout, /me, /upgrade
/brandkit <name> <#primary> <#secondary> [slogan]

Results:
/edit <n> <changes> edits variant n
/fav <n> toggles a favorite
/favorites, /history
/suggest <topic> suggests catchphrases`

const maxListed = 10

func (h *Handler) handleCommand(ctx context.Context, chatID int64, msg *tgbotapi.Message) error {
	args := strings.TrimSpace(msg.CommandArguments())
	c := h.chats.get(chatID)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Command() {
	case "start", "help":
		return h.tg.SendText(chatID, helpText)
	case "login":
		h.forgetSecret(chatID, msg.MessageID, args)
		return h.login(ctx, chatID, c, args)
	case "signup":
		h.forgetSecret(chatID, msg.MessageID, args)
		return h.signup(ctx, chatID, c, msg.From, args)
	case "logout":
		if err := c.ctrl.Logout(ctx); err != nil {
			h.logger.Warn("logout failed", "err", err)
		}
		c.flow = workflow.New(false)
		return h.tg.SendText(chatID, "Signed out.")
	case "me":
		return h.me(chatID, c)
	case "upgrade":
		return h.upgrade(ctx, chatID, c)
	case "new":
		c.flow.Reset()
		return h.tg.SendText(chatID, fmt.Sprintf("Send up to %d reference photos, then /done.", workflow.MaxImages))
	case "done":
		if err := c.flow.Next(); err != nil {
			return h.tg.SendText(chatID, userMessage(err))
		}
		return h.tg.SendText(chatID, "Now type your video title, then /options or /generate.")
	case "back":
		if err := c.flow.Back(); err != nil {
			return h.tg.SendText(chatID, userMessage(err))
		}
		return h.tg.SendText(chatID, "Back to uploads. Your photos are kept; send more or /done.")
	case "options", "style":
		return h.showOptions(chatID, msg.From.ID, c)
	case "generate":
		if args != "" {
			if err := c.flow.SetTitle(args); err != nil {
				return h.tg.SendText(chatID, userMessage(err))
			}
		}
		return h.generate(ctx, chatID, c)
	case "edit":
		return h.edit(ctx, chatID, c, args)
	case "fav":
		return h.toggleFavorite(ctx, chatID, c, args)
	case "favorites":
		return h.favorites(chatID, c)
	case "history":
		return h.history(chatID, c)
	case "suggest":
		return h.suggest(ctx, chatID, c, args)
	case "brandkit":
		return h.brandKit(ctx, chatID, c, args)
	default:
		return h.tg.SendText(chatID, "Unknown command. Send /help.")
	}
}

// forgetSecret removes a message carrying a password from the chat.
func (h *Handler) forgetSecret(chatID int64, messageID int, args string) {
	if args == "" {
		return
	}
	if err := h.tg.DeleteMessage(chatID, messageID); err != nil {
		h.logger.Debug("delete credentials message failed", "err", err)
	}
}

func (h *Handler) login(ctx context.Context, chatID int64, c *chat, args string) error {
	fields := strings.Fields(args)
	var err error
	switch len(fields) {
	case 1:
		err = c.ctrl.AdoptToken(ctx, fields[0])
	case 2:
		err = c.ctrl.Login(ctx, fields[0], fields[1])
	default:
		return h.tg.SendText(chatID, "Usage: /login <email> <password>")
	}
	if err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	return h.welcome(chatID, c)
}

func (h *Handler) signup(ctx context.Context, chatID int64, c *chat, from *tgbotapi.User, args string) error {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return h.tg.SendText(chatID, "Usage: /signup <email> <password> <full name>")
	}
	email := fields[0]
	username := ""
	if from != nil {
		username = from.UserName
	}
	if username == "" {
		username, _, _ = strings.Cut(email, "@")
	}
	reg := model.Registration{
		FullName: strings.Join(fields[2:], " "),
		Username: username,
		Email:    email,
		Password: fields[1],
	}
	if err := c.ctrl.Signup(ctx, reg); err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	return h.welcome(chatID, c)
}

func (h *Handler) welcome(chatID int64, c *chat) error {
	snap := c.ctrl.Snapshot()
	if snap.User == nil {
		return h.tg.SendText(chatID, "Signed in.")
	}
	c.flow.SetPremium(snap.User.Premium())
	return h.tg.SendText(chatID, fmt.Sprintf("Welcome, %s! Plan: %s. Send /new to start.", snap.User.Name, snap.User.Plan))
}

func (h *Handler) me(chatID int64, c *chat) error {
	snap := c.ctrl.Snapshot()
	if snap.User == nil {
		return h.tg.SendText(chatID, userMessage(session.ErrNotAuthenticated))
	}
	u := snap.User
	lines := []string{
		u.Name + " (@" + u.Username + ")",
		"Email: " + u.Email,
		"Plan: " + string(u.Plan),
		"Generations saved: " + strconv.Itoa(len(snap.History)),
		"Favorites: " + strconv.Itoa(len(snap.Favorites)),
	}
	if snap.BrandKit != nil && snap.BrandKit.BrandName != "" {
		lines = append(lines, "Brand kit: "+snap.BrandKit.BrandName)
	}
	return h.tg.SendText(chatID, strings.Join(lines, "\n"))
}

// upgrade prefers a hosted checkout and falls back to the direct upgrade when
// payments are not configured.
func (h *Handler) upgrade(ctx context.Context, chatID int64, c *chat) error {
	token, err := c.ctrl.Token()
	if err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	if c.ctrl.Premium() {
		return h.tg.SendText(chatID, "You are already on Premium.")
	}

	url, err := h.backend.Checkout(ctx, token)
	if err == nil {
		return h.tg.SendText(chatID, "Complete your upgrade here: "+url)
	}
	var apiErr *apiclient.Error
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		return h.tg.SendText(chatID, userMessage(err))
	}

	user, err := c.ctrl.Upgrade(ctx)
	if err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	c.flow.SetPremium(user.Premium())
	return h.tg.SendText(chatID, "You are now on Premium. All styles are unlocked.")
}

func (h *Handler) showOptions(chatID, ownerID int64, c *chat) error {
	if c.flow.Step() != workflow.StepCustomize {
		return h.tg.SendText(chatID, userMessage(workflow.ErrWrongStep))
	}
	_, err := h.tg.SendTextWithKeyboard(chatID, optionsText(c.flow.Form(), len(c.flow.Images())), optionsKeyboard(ownerID))
	return err
}

// generate runs with c.mu held.
func (h *Handler) generate(ctx context.Context, chatID int64, c *chat) error {
	form, images, err := c.flow.Request()
	if err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	if form.Title == "" {
		return h.tg.SendText(chatID, "Please type your video title first.")
	}
	if c.ctrl.State() != session.Authenticated {
		return h.tg.SendText(chatID, userMessage(session.ErrNotAuthenticated))
	}

	h.tg.SendTyping(chatID)
	_ = h.tg.SendText(chatID, "Generating variants, this can take a minute...")

	urls, err := c.ctrl.Generate(ctx, form, images)
	if len(urls) == 0 {
		if err == nil {
			return h.tg.SendText(chatID, "No thumbnails came back. Please try again.")
		}
		return h.tg.SendText(chatID, userMessage(err))
	}
	if err != nil {
		h.logger.Warn("history save failed", "err", err)
	}

	for i, u := range urls {
		caption := fmt.Sprintf("Variant %d. /edit %d <changes> or /fav %d", i+1, i+1, i+1)
		if err := h.tg.SendPhoto(chatID, u, caption); err != nil {
			h.logger.Error("send variant failed", "err", err, "variant", i+1)
		}
	}
	return nil
}

func (h *Handler) edit(ctx context.Context, chatID int64, c *chat, args string) error {
	num, instruction, _ := strings.Cut(args, " ")
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return h.tg.SendText(chatID, "Usage: /edit <n> <changes>, for example /edit 2 make the text yellow")
	}
	url, problem := displayed(c, num)
	if problem != "" {
		return h.tg.SendText(chatID, problem)
	}

	h.tg.SendTyping(chatID)
	newURL, err := c.ctrl.Edit(ctx, url, instruction)
	if newURL == "" {
		return h.tg.SendText(chatID, userMessage(err))
	}
	if err != nil {
		h.logger.Warn("saving edit failed", "err", err)
	}
	return h.tg.SendPhoto(chatID, newURL, "Edited variant "+strings.TrimSpace(num))
}

func (h *Handler) toggleFavorite(ctx context.Context, chatID int64, c *chat, args string) error {
	url, problem := displayed(c, args)
	if problem != "" {
		return h.tg.SendText(chatID, problem)
	}
	favs, err := c.ctrl.ToggleFavorite(ctx, url)
	if err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	for _, f := range favs {
		if f == url {
			return h.tg.SendText(chatID, "Added to favorites.")
		}
	}
	return h.tg.SendText(chatID, "Removed from favorites.")
}

func (h *Handler) favorites(chatID int64, c *chat) error {
	snap := c.ctrl.Snapshot()
	if snap.State != session.Authenticated {
		return h.tg.SendText(chatID, userMessage(session.ErrNotAuthenticated))
	}
	if len(snap.Favorites) == 0 {
		return h.tg.SendText(chatID, "No favorites yet. Use /fav <n> after generating.")
	}
	shown := snap.Favorites[:min(len(snap.Favorites), maxListed)]
	for i, u := range shown {
		if err := h.tg.SendPhoto(chatID, u, fmt.Sprintf("Favorite %d of %d", i+1, len(snap.Favorites))); err != nil {
			h.logger.Error("send favorite failed", "err", err)
		}
	}
	return nil
}

func (h *Handler) history(chatID int64, c *chat) error {
	snap := c.ctrl.Snapshot()
	if snap.State != session.Authenticated {
		return h.tg.SendText(chatID, userMessage(session.ErrNotAuthenticated))
	}
	if len(snap.History) == 0 {
		return h.tg.SendText(chatID, "No generations yet.")
	}
	lines := []string{"Recent generations:"}
	for i, item := range snap.History[:min(len(snap.History), maxListed)] {
		lines = append(lines, fmt.Sprintf("%d. %s, %d images, %s",
			i+1, truncateLine(item.Prompt, 60), len(item.ImageURLs), item.Timestamp.Format("2006-01-02 15:04")))
	}
	return h.tg.SendText(chatID, strings.Join(lines, "\n"))
}

func (h *Handler) suggest(ctx context.Context, chatID int64, c *chat, topic string) error {
	if topic == "" {
		return h.tg.SendText(chatID, "Usage: /suggest <topic>")
	}
	token, err := c.ctrl.Token()
	if err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	form := c.flow.Form().Normalized()
	phrases, err := h.backend.Catchphrases(ctx, token, apiclient.CatchphraseRequest{
		Topic:     topic,
		Audience:  form.Audience,
		Tone:      form.Tone,
		TextStyle: form.TextStyle,
	})
	if err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	if len(phrases) == 0 {
		return h.tg.SendText(chatID, "No ideas this time. Try a different topic.")
	}
	lines := make([]string, len(phrases))
	for i, p := range phrases {
		lines[i] = fmt.Sprintf("%d. %s", i+1, p)
	}
	return h.tg.SendText(chatID, strings.Join(lines, "\n"))
}

func (h *Handler) brandKit(ctx context.Context, chatID int64, c *chat, args string) error {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return h.tg.SendText(chatID, "Usage: /brandkit <name> <#primary> <#secondary> [slogan]")
	}
	kit := model.BrandKit{
		BrandName:      fields[0],
		PrimaryColor:   fields[1],
		SecondaryColor: fields[2],
		Slogan:         strings.Join(fields[3:], " "),
	}
	if err := c.ctrl.SaveBrandKit(ctx, kit); err != nil {
		return h.tg.SendText(chatID, userMessage(err))
	}
	if !c.ctrl.Premium() {
		return h.tg.SendText(chatID, "Brand kit saved. It is applied to generations on Premium.")
	}
	return h.tg.SendText(chatID, "Brand kit saved.")
}

// displayed resolves a 1-based variant number from the last generation. problem
// is the reply for the user when it cannot.
func displayed(c *chat, arg string) (url, problem string) {
	display := c.ctrl.Snapshot().Display
	if len(display) == 0 {
		return "", "Generate thumbnails first with /generate."
	}
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 || n > len(display) {
		return "", fmt.Sprintf("Pick a variant between 1 and %d.", len(display))
	}
	return display[n-1], ""
}

func userMessage(err error) string {
	var apiErr *apiclient.Error
	switch {
	case err == nil:
		return "Done."
	case errors.Is(err, session.ErrNotAuthenticated):
		return "Please /login or /signup first."
	case errors.Is(err, session.ErrSessionChanged):
		return "Your session changed. Please try again."
	case errors.Is(err, workflow.ErrNoImages):
		return "Send at least one reference photo first."
	case errors.Is(err, workflow.ErrTooManyImages):
		return fmt.Sprintf("You can use at most %d reference photos.", workflow.MaxImages)
	case errors.Is(err, workflow.ErrWrongStep):
		return "That does not fit the current step. Send /new to start over."
	case errors.Is(err, workflow.ErrPremiumStyle):
		return "This style is a Premium feature. Send /upgrade to unlock it."
	case errors.Is(err, workflow.ErrUnknownStyle):
		return "Unknown style."
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, apperror.ErrUnauthorized):
		return "Your session has expired. Please /login again."
	default:
		return "Something went wrong. Please try again."
	}
}
