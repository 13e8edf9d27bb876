package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStylePartition(t *testing.T) {
	all := Styles()
	require.Len(t, all, len(FreeStyles())+len(PremiumStyles()))

	for _, s := range FreeStyles() {
		assert.False(t, s.Premium(), s)
		assert.True(t, Allowed(s, false), s)
	}
	for _, s := range PremiumStyles() {
		assert.True(t, s.Premium(), s)
		assert.False(t, Allowed(s, false), s)
		assert.True(t, Allowed(s, true), s)
	}
}

func TestParseIsCaseInsensitive(t *testing.T) {
	s, ok := ParseStyle("  comic book ")
	require.True(t, ok)
	assert.Equal(t, StyleComicBook, s)

	_, ok = ParseStyle("Watercolor")
	assert.False(t, ok)

	lang, ok := ParseLanguage("hindi")
	require.True(t, ok)
	assert.Equal(t, LanguageHindi, lang)

	tone, ok := ParseTone("URGENT")
	require.True(t, ok)
	assert.Equal(t, ToneUrgent, tone)
}

func TestTemplateRender(t *testing.T) {
	tpl, ok := TemplateByID("gaming-1")
	require.True(t, ok)

	out := tpl.Render("Boss Rush", "GG EZ")
	assert.Contains(t, out, `titled "Boss Rush"`)
	assert.Contains(t, out, `The text "GG EZ"`)
	assert.NotContains(t, out, "[VIDEO_TITLE]")
	assert.NotContains(t, out, "[THUMBNAIL_TEXT]")
}

func TestOptionsFlagsPremium(t *testing.T) {
	l := Options()
	require.NotEmpty(t, l.Styles)
	for _, o := range l.Styles {
		s, ok := ParseStyle(o.Key)
		require.True(t, ok)
		assert.Equal(t, s.Premium(), o.Premium)
	}
	assert.False(t, l.Tones[0].Premium)
	assert.Len(t, l.Templates, 6)
}
