package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrependHistoryCapsNewestFirst(t *testing.T) {
	var history []HistoryItem
	for i := 0; i < 45; i++ {
		history = PrependHistory(history, HistoryItem{Prompt: fmt.Sprintf("p%d", i), Timestamp: time.Unix(int64(i), 0)}, MaxHistory)
		require.LessOrEqual(t, len(history), MaxHistory)
		assert.Equal(t, fmt.Sprintf("p%d", i), history[0].Prompt)
	}
	require.Len(t, history, MaxHistory)
	assert.Equal(t, "p25", history[MaxHistory-1].Prompt)
}

func TestPrependHistoryDoesNotAliasInput(t *testing.T) {
	history := []HistoryItem{{Prompt: "a"}, {Prompt: "b"}}
	out := PrependHistory(history, HistoryItem{Prompt: "c"}, 2)
	assert.Equal(t, []string{"c", "a"}, prompts(out))
	assert.Equal(t, []string{"a", "b"}, prompts(history))
}

func TestToggleFavoriteRoundTrip(t *testing.T) {
	start := []string{"x", "y"}
	once := ToggleFavorite(start, "z")
	assert.Equal(t, []string{"x", "y", "z"}, once)
	assert.Equal(t, start, ToggleFavorite(once, "z"))

	removed := ToggleFavorite(start, "x")
	assert.Equal(t, []string{"y"}, removed)
	assert.Equal(t, []string{"y", "x"}, ToggleFavorite(removed, "x"))
}

func TestReplaceImageAcrossCollections(t *testing.T) {
	history := []HistoryItem{{ImageURLs: []string{"A", "B"}}}
	favorites := []string{"A"}

	newHistory, changed := ReplaceHistoryImage(history, "A", "C")
	require.True(t, changed)
	newFavorites, changed := ReplaceImage(favorites, "A", "C")
	require.True(t, changed)

	assert.Equal(t, []string{"C", "B"}, newHistory[0].ImageURLs)
	assert.Equal(t, []string{"C"}, newFavorites)
	assert.Equal(t, []string{"A", "B"}, history[0].ImageURLs)
}

func TestReplaceImageMissing(t *testing.T) {
	out, changed := ReplaceImage([]string{"A"}, "Z", "C")
	assert.False(t, changed)
	assert.Equal(t, []string{"A"}, out)
}

func prompts(items []HistoryItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Prompt
	}
	return out
}
