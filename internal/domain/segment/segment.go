// Package segment provides the labeled segment domain entity.
package segment

// Category represents a segment category.
type Category int

const (
	CategorySponsor       Category = iota // Paid promotion
	CategorySelfPromo                     // Unpaid/self promotion
	CategoryInteraction                   // Subscribe/like reminders
	CategoryIntro                         // Intro animation or recap
	CategoryOutro                         // End cards and credits
	CategoryPreview                       // Preview of upcoming content
	CategoryMusicOfftopic                 // Non-music section of a music item
	CategoryFiller                        // Tangential filler content
)

// Categories lists all known categories in declaration order.
var Categories = []Category{
	CategorySponsor,
	CategorySelfPromo,
	CategoryInteraction,
	CategoryIntro,
	CategoryOutro,
	CategoryPreview,
	CategoryMusicOfftopic,
	CategoryFiller,
}

// String returns the wire name of the category.
func (c Category) String() string {
	switch c {
	case CategorySponsor:
		return "sponsor"
	case CategorySelfPromo:
		return "selfpromo"
	case CategoryInteraction:
		return "interaction"
	case CategoryIntro:
		return "intro"
	case CategoryOutro:
		return "outro"
	case CategoryPreview:
		return "preview"
	case CategoryMusicOfftopic:
		return "music_offtopic"
	case CategoryFiller:
		return "filler"
	default:
		return "unknown"
	}
}

// DefaultLabel returns the built-in display name of the category, used when
// no display-name override is configured.
func (c Category) DefaultLabel() string {
	switch c {
	case CategorySponsor:
		return "Sponsor"
	case CategorySelfPromo:
		return "Self promotion"
	case CategoryInteraction:
		return "Interaction reminder"
	case CategoryIntro:
		return "Intro"
	case CategoryOutro:
		return "Outro"
	case CategoryPreview:
		return "Preview"
	case CategoryMusicOfftopic:
		return "Non-music section"
	case CategoryFiller:
		return "Filler"
	default:
		return "Segment"
	}
}

// ParseCategory parses a wire category name.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if c.String() == s {
			return c, true
		}
	}
	return 0, false
}

// Segment represents a labeled time range within one media item.
// Start and End are offsets in seconds, the same unit as playback position.
type Segment struct {
	UUID     string   // Unique identifier, tracks per-item skip/shown state
	Category Category // Category tag
	Start    float64  // Range start in seconds (inclusive)
	End      float64  // Range end in seconds (inclusive)
	Label    string   // Display name override ("" to use the category label)
}

// Contains reports whether pos falls inside the segment's [Start, End] range.
func (s Segment) Contains(pos float64) bool {
	return pos >= s.Start && pos <= s.End
}

// DisplayName returns the segment label, falling back to the category's
// built-in label.
func (s Segment) DisplayName() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Category.DefaultLabel()
}
