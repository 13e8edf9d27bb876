package catalog

import "strings"

type Preset struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Style       Style  `json:"style"`
	Description string `json:"description"`
}

type Template struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	Style    Style  `json:"style"`
	Prompt   string `json:"prompt"`
}

const (
	placeholderTitle = "[VIDEO_TITLE]"
	placeholderText  = "[THUMBNAIL_TEXT]"
)

// Render fills the title and overlay text placeholders.
func (t Template) Render(title, text string) string {
	return strings.NewReplacer(
		placeholderTitle, strings.TrimSpace(title),
		placeholderText, strings.TrimSpace(text),
	).Replace(t.Prompt)
}

var presets = []Preset{
	{Name: "Gaming", Icon: "🎮", Style: StyleGaming, Description: "Bold, neon, and high-energy for gaming content."},
	{Name: "Movie/Drama", Icon: "🎥", Style: StyleCinematic, Description: "Dark, elegant, and cinematic for reviews or analysis."},
	{Name: "Education", Icon: "📚", Style: StyleEducation, Description: "Clean, bright, and clear for educational videos."},
	{Name: "Music", Icon: "🎤", Style: StyleMusic, Description: "Vibrant, glowing, and stylish for music videos or covers."},
	{Name: "Fitness", Icon: "💪", Style: StyleFitness, Description: "Energetic, bright, and impactful for fitness channels."},
	{Name: "Tech Review", Icon: "⚙️", Style: StyleTech, Description: "Sleek, modern, and clean for tech content."},
	{Name: "Travel Vlog", Icon: "🌴", Style: StyleTravel, Description: "Vibrant, scenic, and adventurous for travel vlogs."},
	{Name: "Action Scene", Icon: "💥", Style: StyleAction, Description: "Dynamic, explosive, and intense for action-packed videos."},
	{Name: "Minimalist", Icon: "🔳", Style: StyleMinimal, Description: "Clean, simple, and elegant for a modern look."},
	{Name: "Abstract", Icon: "🌀", Style: StyleAbstract, Description: "Artistic and non-representational for creative videos."},
	{Name: "Vintage", Icon: "🎞️", Style: StyleVintage, Description: "Retro and classic feel for historical or nostalgic content."},
	{Name: "Sci-Fi", Icon: "🚀", Style: StyleSciFi, Description: "Futuristic and otherworldly for science fiction themes."},
}

var templates = []Template{
	{
		ID:       "gaming-1",
		Name:     "Neon Gaming Showdown",
		ImageURL: "https://i.ytimg.com/vi/S8DmHPs1d-M/maxresdefault.jpg",
		Style:    StyleGaming,
		Prompt:   `Create a vibrant 16:9 YouTube thumbnail for a video titled "[VIDEO_TITLE]". The style is 'Neon Gaming'. A central, dynamic character in futuristic armor holds a glowing weapon. The background is a dark, abstract digital landscape with neon grids and particle effects. The text "[THUMBNAIL_TEXT]" should be in a bold, futuristic font with a bright neon glow, positioned for maximum impact. The color palette should be electric blues, purples, and pinks.`,
	},
	{
		ID:       "finance-1",
		Name:     "Stock Market Growth",
		ImageURL: "https://i.ytimg.com/vi/YfC6ab-bN_c/maxresdefault.jpg",
		Style:    StyleMinimal,
		Prompt:   `Create a clean, professional 16:9 YouTube thumbnail for a finance video titled "[VIDEO_TITLE]". The style is 'Minimalist & Tech'. It should feature a stylized, glowing green stock market chart with a strong upward trend on a dark, sleek background. The text "[THUMBNAIL_TEXT]" should be in a modern, sans-serif font, placed clearly in the upper part of the thumbnail. Use a color palette of green, white, and dark gray.`,
	},
	{
		ID:       "podcast-1",
		Name:     "Modern Podcast Interview",
		ImageURL: "https://i.ytimg.com/vi/uFLOe_20i9Q/maxresdefault.jpg",
		Style:    StyleLifestyle,
		Prompt:   `Create a modern, engaging 16:9 YouTube thumbnail for a podcast episode titled "[VIDEO_TITLE]". The style is 'Lifestyle & Clean'. The image should feature a split screen with professional, illustrated headshots of two people in conversation. The background is a simple, modern studio setting with a soft color gradient. The podcast title or episode number is prominent. The text "[THUMBNAIL_TEXT]" is overlaid in a stylish, readable font.`,
	},
	{
		ID:       "tutorial-1",
		Name:     "Coding Tutorial",
		ImageURL: "https://i.ytimg.com/vi/PkZNo7MFNFg/maxresdefault.jpg",
		Style:    StyleTech,
		Prompt:   `Create a clear and informative 16:9 YouTube thumbnail for a coding tutorial titled "[VIDEO_TITLE]". The style is 'Tech & Educational'. The background should be a stylized, dark-themed code editor with glowing syntax highlighting. A large, prominent logo of the programming language (e.g., Python, JavaScript) should be visible. The text "[THUMBNAIL_TEXT]" must be very clear, in a clean, sans-serif font, perhaps with a background shape to make it pop.`,
	},
	{
		ID:       "travel-1",
		Name:     "Adventure Travel Vlog",
		ImageURL: "https://i.ytimg.com/vi/v7pldt_k_RU/maxresdefault.jpg",
		Style:    StyleTravel,
		Prompt:   `Create a stunning, vibrant 16:9 YouTube thumbnail for a travel vlog titled "[VIDEO_TITLE]". The style is 'Travel & Adventure'. The image should be a breathtaking, hyper-realistic landscape of a tropical beach or a mountain peak at sunset. The colors should be highly saturated and warm. The text "[THUMBNAIL_TEXT]" should be in a fun, handwritten-style font, integrated naturally into the scene.`,
	},
	{
		ID:       "fitness-1",
		Name:     "High-Intensity Workout",
		ImageURL: "https://i.ytimg.com/vi/UItWltVZZmE/maxresdefault.jpg",
		Style:    StyleFitness,
		Prompt:   `Create a high-energy, motivational 16:9 YouTube thumbnail for a fitness video titled "[VIDEO_TITLE]". The style is 'High-Action Fitness'. It should feature a dynamic, athletic person in mid-workout, with a focus on muscle definition and motion. The background should be a modern gym with dramatic lighting. The text "[THUMBNAIL_TEXT]" should be bold, impactful, and slightly distressed, using colors like bright orange or yellow to convey energy.`,
	},
}

func Presets() []Preset {
	return append([]Preset(nil), presets...)
}

func Templates() []Template {
	return append([]Template(nil), templates...)
}

func TemplateByID(id string) (Template, bool) {
	id = strings.TrimSpace(id)
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
