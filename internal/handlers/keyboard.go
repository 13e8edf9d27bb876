package handlers

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"thumbexpert/internal/catalog"
	"thumbexpert/internal/prompt"
)

const callbackPrefix = "te"

// Option fields that can be picked from the menu.
const (
	fieldStyle     = "s"
	fieldLanguage  = "l"
	fieldTone      = "t"
	fieldTextStyle = "x"
)

func cb(ownerID int64, parts ...string) string {
	return fmt.Sprintf("%s:%d:%s", callbackPrefix, ownerID, strings.Join(parts, ":"))
}

func optionsText(form prompt.Form, images int) string {
	form = form.Normalized()
	title := form.Title
	if title == "" {
		title = "(not set, just type it)"
	}
	return strings.Join([]string{
		"Thumbnail settings",
		"",
		"Title: " + truncateLine(title, 80),
		"Style: " + string(form.Style),
		"Language: " + string(form.Language),
		"Text tone: " + string(form.Tone),
		"Text style: " + string(form.TextStyle),
		"Reference images: " + strconv.Itoa(images),
	}, "\n")
}

func optionsKeyboard(ownerID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Style", cb(ownerID, "pick", fieldStyle)),
			tgbotapi.NewInlineKeyboardButtonData("Language", cb(ownerID, "pick", fieldLanguage)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Text tone", cb(ownerID, "pick", fieldTone)),
			tgbotapi.NewInlineKeyboardButtonData("Text style", cb(ownerID, "pick", fieldTextStyle)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Generate", cb(ownerID, "gen")),
		),
	)
}

// fieldValues lists the choices of a field in menu order.
func fieldValues(field string) []string {
	switch field {
	case fieldStyle:
		return asStrings(catalog.Styles())
	case fieldLanguage:
		return asStrings(catalog.Languages())
	case fieldTone:
		return asStrings(catalog.Tones())
	case fieldTextStyle:
		return asStrings(catalog.TextStyles())
	}
	return nil
}

// pickKeyboard uses value indexes in the callback data to stay under Telegram's 64 byte limit.
func pickKeyboard(ownerID int64, field string, premium bool) tgbotapi.InlineKeyboardMarkup {
	values := fieldValues(field)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(values)/2+2)
	var row []tgbotapi.InlineKeyboardButton
	for i, v := range values {
		label := v
		if !premium && premiumValue(field, v) {
			label = "🔒 " + v
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cb(ownerID, "set", field, strconv.Itoa(i))))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("« Back", cb(ownerID, "menu")),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// premiumValue mirrors the premium flags of the catalog listing.
func premiumValue(field, value string) bool {
	switch field {
	case fieldStyle:
		return catalog.Style(value).Premium()
	case fieldTone:
		return catalog.TextTone(value) != catalog.ToneDefault
	case fieldTextStyle:
		return catalog.TextStyle(value) != catalog.TextStyleDefault
	}
	return false
}

func applyField(form prompt.Form, field, value string) (prompt.Form, bool) {
	switch field {
	case fieldStyle:
		s, ok := catalog.ParseStyle(value)
		form.Style = s
		return form, ok
	case fieldLanguage:
		l, ok := catalog.ParseLanguage(value)
		form.Language = l
		return form, ok
	case fieldTone:
		t, ok := catalog.ParseTone(value)
		form.Tone = t
		return form, ok
	case fieldTextStyle:
		s, ok := catalog.ParseTextStyle(value)
		form.TextStyle = s
		return form, ok
	}
	return form, false
}

func asStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func truncateLine(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
