package prompt

import (
	"fmt"
	"strings"

	"thumbexpert/internal/catalog"
	"thumbexpert/internal/model"
)

// Watermark is appended to every image prompt of a non-premium account.
const Watermark = "Important: Add a small, semi-transparent watermark in the bottom-right corner with the text 'ThumbExpert AI'."

const (
	DefaultAudience = "General Audience"

	noDetails  = "The user did not provide detailed instructions, so be creative based on the title."
	inventText = "Generate a short, catchy, high-CTR text overlay based on the video title."
)

// Form is the input of one generation request.
type Form struct {
	Title         string            `json:"prompt" validate:"required,max=300"`
	ThumbnailText string            `json:"thumbnailText" validate:"max=120"`
	Style         catalog.Style     `json:"style"`
	Language      catalog.Language  `json:"language"`
	Audience      string            `json:"audience" validate:"max=120"`
	Tone          catalog.TextTone  `json:"textTone"`
	TextStyle     catalog.TextStyle `json:"textStyle"`
	Details       string            `json:"detailedPrompt" validate:"max=2000"`
}

// Normalized trims free text and fills unset enums with their defaults.
func (f Form) Normalized() Form {
	f.Title = strings.TrimSpace(f.Title)
	f.ThumbnailText = strings.TrimSpace(f.ThumbnailText)
	f.Audience = strings.TrimSpace(f.Audience)
	f.Details = strings.TrimSpace(f.Details)
	if f.Style == "" {
		f.Style = catalog.StyleDefault
	}
	if f.Language == "" {
		f.Language = catalog.LanguageEnglish
	}
	if f.Audience == "" {
		f.Audience = DefaultAudience
	}
	if f.Tone == "" {
		f.Tone = catalog.ToneDefault
	}
	if f.TextStyle == "" {
		f.TextStyle = catalog.TextStyleDefault
	}
	return f
}

var variations = [...]string{
	"Create a version with a bright, high-contrast color scheme to make it pop.",
	"Create a version with more dramatic, cinematic lighting for a moody feel.",
	"Create a version with an alternative, creative text placement or a different, stylish font.",
}

// VariantCount is the number of prompts returned by Variants.
const VariantCount = len(variations)

// Compose builds the shared body of the multi-image composition prompt.
func Compose(f Form, kit *model.BrandKit) string {
	f = f.Normalized()

	details := f.Details
	if details == "" {
		details = noDetails
	}

	var b strings.Builder
	b.Grow(1536)

	b.WriteString("Task: Create a 16:9 YouTube thumbnail by combining subjects from all provided images into a single, cohesive scene.\n")
	writeField(&b, "Video Title", quote(f.Title))
	writeField(&b, "Detailed Instructions", quote(details))
	writeField(&b, "Art Style", quote(string(f.Style)))
	writeField(&b, "Core Task", "Identify the main person/subject in each of the uploaded photos. Expertly cut them out, redraw them in the specified art style, and arrange them together naturally within a new, dynamic background that fits the video's theme and detailed instructions.")
	writeField(&b, "Text", TextInstruction(f.ThumbnailText))
	writeField(&b, "Language for Text", string(f.Language))
	writeField(&b, "Target Audience", f.Audience)
	writeField(&b, "Design Principles", fmt.Sprintf("Choose a color palette and font style that are emotionally resonant with the video's topic AND fit the '%s' theme to maximize click-through rate.", f.Style))
	if kit != nil {
		writeBrandKit(&b, *kit)
	}
	writeField(&b, "Final Output", "A single, complete, polished thumbnail image featuring all subjects.")

	return strings.TrimRight(b.String(), "\n")
}

// Variants returns one prompt per design variation. They share the body built by Compose.
func Variants(f Form, kit *model.BrandKit) []string {
	base := Compose(f, kit)
	out := make([]string, 0, len(variations))
	for _, v := range variations {
		out = append(out, base+"\n- Design Variation: "+v)
	}
	return out
}

// TextInstruction quotes literal overlay text, or asks the model to invent one.
func TextInstruction(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return inventText
	}
	return "The thumbnail text MUST be: " + quote(text) + ". Make it prominent and easy to read."
}

// Edit builds the single-image edit prompt.
func Edit(instruction string) string {
	return strings.TrimSpace(instruction)
}

// WithWatermark appends the watermark instruction for non-premium accounts.
func WithWatermark(p string, premium bool) string {
	if premium {
		return p
	}
	return p + ". " + Watermark
}

func writeField(b *strings.Builder, name, value string) {
	b.WriteString("- " + name + ": " + value + "\n")
}

func writeBrandKit(b *strings.Builder, kit model.BrandKit) {
	lines := uniq([]string{
		labeled("Brand name", kit.BrandName),
		labeled("Slogan", kit.Slogan),
		labeled("Primary color", kit.PrimaryColor),
		labeled("Secondary color", kit.SecondaryColor),
		labeled("Font preference", kit.FontPreference),
	})
	if len(lines) == 0 {
		return
	}
	b.WriteString("- Brand Kit (keep consistent with the channel identity):\n")
	for _, line := range lines {
		b.WriteString("  - " + line + "\n")
	}
}

func labeled(label, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return label + ": " + value
}

func quote(s string) string {
	return `"` + s + `"`
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
