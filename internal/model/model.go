package model

import (
	"slices"
	"time"
)

type Plan string

const (
	PlanFree    Plan = "Free"
	PlanPremium Plan = "Premium"
)

// MaxHistory bounds the per-user generation history.
const MaxHistory = 20

type User struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	Plan              Plan      `json:"plan"`
	ProfilePhoto      string    `json:"profilePhoto,omitempty"`
	Role              string    `json:"role,omitempty"`
	PreferredLanguage string    `json:"preferredLanguage,omitempty"`
	PasswordHash      string    `json:"-"`
	CreatedAt         time.Time `json:"createdAt"`
}

func (u User) Premium() bool {
	return u.Plan == PlanPremium
}

type BrandKit struct {
	BrandName      string `json:"brandName" validate:"required,max=80"`
	Slogan         string `json:"slogan" validate:"max=160"`
	PrimaryColor   string `json:"primaryColor" validate:"required,hexcolor"`
	SecondaryColor string `json:"secondaryColor" validate:"required,hexcolor"`
	FontPreference string `json:"fontPreference" validate:"max=80"`
}

type HistoryItem struct {
	Prompt    string    `json:"prompt"`
	ImageURLs []string  `json:"imageUrls"`
	Timestamp time.Time `json:"timestamp"`
}

type Registration struct {
	FullName          string `json:"fullName" validate:"required,max=120"`
	Username          string `json:"username" validate:"required,max=60"`
	Email             string `json:"email" validate:"required,email"`
	Password          string `json:"password" validate:"required"`
	ProfilePhoto      string `json:"profilePhoto,omitempty"`
	Role              string `json:"role,omitempty" validate:"omitempty,oneof=YouTuber Gamer Educator Vlogger"`
	PreferredLanguage string `json:"preferredLanguage,omitempty" validate:"omitempty,oneof=English Spanish Hindi"`
}

type BulkItem struct {
	Title string `json:"title"`
	Style string `json:"style"`
}

type BulkResult struct {
	Title      string `json:"title"`
	Style      string `json:"style"`
	Suggestion string `json:"suggestion"`
}

type CTRScore struct {
	Score    int      `json:"score"`
	Feedback []string `json:"feedback"`
}

// PrependHistory puts item first and drops the oldest entries beyond max.
func PrependHistory(history []HistoryItem, item HistoryItem, max int) []HistoryItem {
	if max <= 0 {
		max = MaxHistory
	}
	out := make([]HistoryItem, 0, min(len(history)+1, max))
	out = append(out, item)
	for _, h := range history {
		if len(out) == max {
			break
		}
		out = append(out, h)
	}
	return out
}

// CapHistory truncates an already ordered history to max entries.
func CapHistory(history []HistoryItem, max int) []HistoryItem {
	if max <= 0 {
		max = MaxHistory
	}
	if len(history) > max {
		history = history[:max]
	}
	return history
}

// ReplaceImage swaps every occurrence of from with to. It reports whether anything changed.
func ReplaceImage(urls []string, from, to string) ([]string, bool) {
	out := make([]string, len(urls))
	changed := false
	for i, u := range urls {
		if u == from {
			u = to
			changed = true
		}
		out[i] = u
	}
	return out, changed
}

// ReplaceHistoryImage applies ReplaceImage to every history entry.
func ReplaceHistoryImage(history []HistoryItem, from, to string) ([]HistoryItem, bool) {
	out := make([]HistoryItem, len(history))
	changed := false
	for i, h := range history {
		urls, ok := ReplaceImage(h.ImageURLs, from, to)
		h.ImageURLs = urls
		out[i] = h
		changed = changed || ok
	}
	return out, changed
}

// ToggleFavorite removes url when present, otherwise appends it.
func ToggleFavorite(favorites []string, url string) []string {
	if i := slices.Index(favorites, url); i >= 0 {
		out := make([]string, 0, len(favorites)-1)
		out = append(out, favorites[:i]...)
		return append(out, favorites[i+1:]...)
	}
	out := make([]string, 0, len(favorites)+1)
	out = append(out, favorites...)
	return append(out, url)
}

func CloneHistory(history []HistoryItem) []HistoryItem {
	if history == nil {
		return nil
	}
	out := make([]HistoryItem, len(history))
	for i, h := range history {
		h.ImageURLs = slices.Clone(h.ImageURLs)
		out[i] = h
	}
	return out
}
