package handlers

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"thumbexpert/internal/workflow"
)

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q == nil || q.Message == nil || q.From == nil {
		return nil
	}
	data := strings.TrimSpace(q.Data)
	if !strings.HasPrefix(data, callbackPrefix+":") {
		return nil
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 {
		return nil
	}

	ownerID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return nil
	}
	if ownerID != q.From.ID {
		_ = h.tg.AnswerCallback(q.ID, "This menu is not for you.", true)
		return nil
	}

	action := parts[2]
	args := parts[3:]
	chatID := q.Message.Chat.ID
	msgID := q.Message.MessageID

	c := h.chats.get(chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.flow.Step() != workflow.StepCustomize {
		_ = h.tg.AnswerCallback(q.ID, "This menu has expired. Send /options again.", true)
		return nil
	}

	switch action {
	case "menu":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.tg.EditTextWithKeyboard(chatID, msgID, optionsText(c.flow.Form(), len(c.flow.Images())), optionsKeyboard(ownerID))

	case "pick":
		if len(args) != 1 || fieldValues(args[0]) == nil {
			return nil
		}
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.tg.EditTextWithKeyboard(chatID, msgID, "Choose one:", pickKeyboard(ownerID, args[0], c.ctrl.Premium()))

	case "set":
		if len(args) != 2 {
			return nil
		}
		values := fieldValues(args[0])
		idx, err := strconv.Atoi(args[1])
		if err != nil || idx < 0 || idx >= len(values) {
			return nil
		}
		form, ok := applyField(c.flow.Form(), args[0], values[idx])
		if !ok {
			return nil
		}
		if err := c.flow.SetForm(form); err != nil {
			_ = h.tg.AnswerCallback(q.ID, userMessage(err), true)
			return nil
		}
		_ = h.tg.AnswerCallback(q.ID, values[idx], false)
		return h.tg.EditTextWithKeyboard(chatID, msgID, optionsText(c.flow.Form(), len(c.flow.Images())), optionsKeyboard(ownerID))

	case "gen":
		_ = h.tg.AnswerCallback(q.ID, "", false)
		return h.generate(ctx, chatID, c)
	}

	return nil
}
