// Package media provides the playable item domain entity.
package media

import (
	"time"

	"github.com/google/uuid"
)

// Extras keys for provider-specific side-channel data carried on an Item.
const (
	// ExtraContinuation is a provider reference used to resolve a follow-up
	// item when the queue is about to run out (playlist, album or radio URL).
	ExtraContinuation = "continuation"
	// ExtraSegmentSource is the reference used to fetch labeled segments for
	// the item (typically the provider video/track ID).
	ExtraSegmentSource = "segment_source"
	// ExtraStreamURL is an alternate stream URL for the item.
	ExtraStreamURL = "stream_url"
)

// Item represents one playable unit placed in the playback queue.
// MediaID identifies the content and may appear multiple times in a queue;
// InstanceID identifies one specific occurrence.
type Item struct {
	MediaID    string            // Stable content identifier (equality/lookup)
	InstanceID string            // Unique per insertion
	Title      string            // Display title (optional)
	Artist     string            // Display artist (optional)
	ArtworkURL string            // Artwork reference (optional)
	Duration   time.Duration     // Duration estimate (0 if unknown)
	Source     string            // Source service identifier (optional)
	Extras     map[string]string // Provider-specific side-channel data
}

// NewItem creates an Item with a fresh instance tag.
func NewItem(mediaID string) Item {
	return Item{
		MediaID:    mediaID,
		InstanceID: uuid.New().String(),
	}
}

// WithInstanceID returns a copy of the item carrying a fresh instance tag.
// Used when the same content is added to the queue again.
func (i Item) WithInstanceID() Item {
	i.InstanceID = uuid.New().String()
	return i
}

// Extra returns the extras value for key, or "" if absent.
func (i Item) Extra(key string) string {
	if i.Extras == nil {
		return ""
	}
	return i.Extras[key]
}

// ContinuationRef returns the follow-up resolution reference, if any.
func (i Item) ContinuationRef() string {
	return i.Extra(ExtraContinuation)
}

// SegmentSourceRef returns the segment-list reference, if any.
func (i Item) SegmentSourceRef() string {
	return i.Extra(ExtraSegmentSource)
}

// IsZero reports whether the item is the zero value (no content).
func (i Item) IsZero() bool {
	return i.MediaID == "" && i.InstanceID == ""
}

// RepeatMode represents the queue repeat policy.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota // Linear playback, stop at the end
	RepeatAll                   // Wrap around to the first item
	RepeatOne                   // Repeat the current item
)

// String returns the string representation of the repeat mode.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "off"
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "unknown"
	}
}

// ParseRepeatMode parses a repeat mode name. Unknown names map to RepeatOff.
func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "all":
		return RepeatAll
	case "one":
		return RepeatOne
	default:
		return RepeatOff
	}
}
