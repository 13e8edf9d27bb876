package catalog

import "strings"

type Style string

const (
	StyleDefault   Style = "Default"
	StyleGaming    Style = "Gaming"
	StyleVlogging  Style = "Vlogging"
	StyleTech      Style = "Tech"
	StyleMusic     Style = "Music"
	StyleFitness   Style = "Fitness"
	StyleEducation Style = "Educational"
	StyleMinimal   Style = "Minimalist"
	StyleLifestyle Style = "Lifestyle"
	StyleCinematic Style = "Cinematic"
	StyleCartoon   Style = "Cartoon"
	StyleAnime     Style = "Anime"
	StyleComicBook Style = "Comic Book"
	StyleNeon      Style = "Neon Glow"
	StyleLuxury    Style = "Luxury & Elegant"
	StyleTravel    Style = "Travel & Adventure"
	StyleAction    Style = "High-Action"
	StyleAbstract  Style = "Abstract"
	StyleVintage   Style = "Vintage"
	StyleSciFi     Style = "Sci-Fi"
)

var freeStyles = []Style{
	StyleDefault,
	StyleGaming,
	StyleVlogging,
	StyleTech,
	StyleMusic,
	StyleFitness,
}

var premiumStyles = []Style{
	StyleEducation,
	StyleMinimal,
	StyleLifestyle,
	StyleCinematic,
	StyleCartoon,
	StyleAnime,
	StyleComicBook,
	StyleNeon,
	StyleLuxury,
	StyleTravel,
	StyleAction,
	StyleAbstract,
	StyleVintage,
	StyleSciFi,
}

var premiumSet = func() map[Style]struct{} {
	m := make(map[Style]struct{}, len(premiumStyles))
	for _, s := range premiumStyles {
		m[s] = struct{}{}
	}
	return m
}()

func FreeStyles() []Style {
	return append([]Style(nil), freeStyles...)
}

func PremiumStyles() []Style {
	return append([]Style(nil), premiumStyles...)
}

// Styles lists every style, free ones first.
func Styles() []Style {
	out := make([]Style, 0, len(freeStyles)+len(premiumStyles))
	out = append(out, freeStyles...)
	return append(out, premiumStyles...)
}

func (s Style) Premium() bool {
	_, ok := premiumSet[s]
	return ok
}

// Allowed reports whether a user on the given plan may pick s.
func Allowed(s Style, premium bool) bool {
	return premium || !s.Premium()
}

func ParseStyle(value string) (Style, bool) {
	return parse(value, Styles())
}

type Language string

const (
	LanguageEnglish Language = "English"
	LanguageSpanish Language = "Spanish"
	LanguageHindi   Language = "Hindi"
)

func Languages() []Language {
	return []Language{LanguageEnglish, LanguageSpanish, LanguageHindi}
}

func ParseLanguage(value string) (Language, bool) {
	return parse(value, Languages())
}

type TextTone string

const (
	ToneDefault      TextTone = "Catchy"
	ToneProfessional TextTone = "Professional"
	ToneCasual       TextTone = "Casual"
	ToneHumorous     TextTone = "Humorous"
	ToneUrgent       TextTone = "Urgent"
)

func Tones() []TextTone {
	return []TextTone{ToneDefault, ToneProfessional, ToneCasual, ToneHumorous, ToneUrgent}
}

func ParseTone(value string) (TextTone, bool) {
	return parse(value, Tones())
}

type TextStyle string

const (
	TextStyleDefault     TextStyle = "Statement"
	TextStyleQuestion    TextStyle = "Question"
	TextStyleExclamation TextStyle = "Exclamation"
	TextStyleList        TextStyle = "List"
)

func TextStyles() []TextStyle {
	return []TextStyle{TextStyleDefault, TextStyleQuestion, TextStyleExclamation, TextStyleList}
}

func ParseTextStyle(value string) (TextStyle, bool) {
	return parse(value, TextStyles())
}

type Role string

const (
	RoleYouTuber Role = "YouTuber"
	RoleGamer    Role = "Gamer"
	RoleEducator Role = "Educator"
	RoleVlogger  Role = "Vlogger"
)

func Roles() []Role {
	return []Role{RoleYouTuber, RoleGamer, RoleEducator, RoleVlogger}
}

type NamedOption struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Premium bool   `json:"premium,omitempty"`
}

type Listing struct {
	Styles     []NamedOption `json:"styles"`
	Languages  []NamedOption `json:"languages"`
	Tones      []NamedOption `json:"tones"`
	TextStyles []NamedOption `json:"textStyles"`
	Presets    []Preset      `json:"presets"`
	Templates  []Template    `json:"templates"`
}

// Options returns every selectable option for the generator form.
func Options() Listing {
	var l Listing
	for _, s := range Styles() {
		l.Styles = append(l.Styles, NamedOption{Key: string(s), Name: string(s), Premium: s.Premium()})
	}
	for _, v := range Languages() {
		l.Languages = append(l.Languages, NamedOption{Key: string(v), Name: string(v)})
	}
	for _, v := range Tones() {
		l.Tones = append(l.Tones, NamedOption{Key: string(v), Name: string(v), Premium: v != ToneDefault})
	}
	for _, v := range TextStyles() {
		l.TextStyles = append(l.TextStyles, NamedOption{Key: string(v), Name: string(v), Premium: v != TextStyleDefault})
	}
	l.Presets = Presets()
	l.Templates = Templates()
	return l
}

func parse[T ~string](value string, all []T) (T, bool) {
	value = strings.TrimSpace(value)
	for _, v := range all {
		if strings.EqualFold(string(v), value) {
			return v, true
		}
	}
	var zero T
	return zero, false
}
