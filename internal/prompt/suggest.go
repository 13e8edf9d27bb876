package prompt

import (
	"fmt"
	"strings"

	"thumbexpert/internal/catalog"
	"thumbexpert/internal/model"
)

const (
	catchphrasesFree    = 3
	catchphrasesPremium = 5
	titleCount          = 5
)

// CatchphraseCount is the number of phrases requested for the plan.
func CatchphraseCount(premium bool) int {
	if premium {
		return catchphrasesPremium
	}
	return catchphrasesFree
}

// Catchphrases builds the overlay-text suggestion prompt and returns it with the requested count.
// Tone and text style only shape the request for premium accounts.
func Catchphrases(topic, audience string, tone catalog.TextTone, style catalog.TextStyle, premium bool) (string, int) {
	n := CatchphraseCount(premium)
	audience = strings.TrimSpace(audience)
	if audience == "" {
		audience = DefaultAudience
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a YouTube marketing expert. For a video about %q targeted at a %q audience, generate %d short, catchy, high-impact catchphrases (1-4 words) to put on a thumbnail. Include relevant emojis where appropriate.",
		strings.TrimSpace(topic), audience, n)

	if premium {
		if tone != "" && tone != catalog.ToneDefault {
			fmt.Fprintf(&b, " The tone should be %s.", tone)
		}
		if style != "" && style != catalog.TextStyleDefault {
			fmt.Fprintf(&b, " The style should be a %s.", style)
		}
	}
	return b.String(), n
}

func Titles(topic string) string {
	return fmt.Sprintf("You are a YouTube expert specializing in viral titles. Given the video topic %q, generate %d catchy, high-CTR YouTube titles.",
		strings.TrimSpace(topic), titleCount)
}

func BulkCatchphrase(item model.BulkItem) string {
	return fmt.Sprintf("For a YouTube video titled %q with a %q visual style, generate a single, short, catchy, high-impact catchphrase (1-4 words) to put on a thumbnail.",
		strings.TrimSpace(item.Title), strings.TrimSpace(item.Style))
}

func CTR(title string) string {
	return fmt.Sprintf("You are a YouTube thumbnail expert. Analyze the provided thumbnail image and the video title: %q. Provide an estimated Click-Through Rate (CTR) score out of 100 based on its potential to attract clicks. Also, provide a list of 2-3 specific, actionable suggestions for improvement. Focus on clarity, emotional impact, and visual composition.",
		strings.TrimSpace(title))
}
