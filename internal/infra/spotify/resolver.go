// Package spotify provides a Spotify-backed continuation resolver.
package spotify

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/mostafaalagamy/playd/internal/app/autoplay"
	"github.com/mostafaalagamy/playd/internal/domain/media"
)

// Source is the source-service identifier attached to resolved items.
const Source = "spotify"

// Settings represents the resolver settings block.
type Settings struct {
	ClientID     string `mapstructure:"client_id" validate:"required"`
	ClientSecret string `mapstructure:"client_secret" validate:"required"`
	RefreshToken string `mapstructure:"refresh_token" validate:"required"`
	Market       string `mapstructure:"market" default:"US" validate:"len=2"`
	RelatedCount int    `mapstructure:"related_count" default:"10" validate:"gte=1,lte=50"`
}

// Resolver resolves continuation references against the Spotify API.
// Playlist and album references yield ordered partition lists; track
// references yield related candidates via recommendations.
// Implements autoplay.Resolver.
type Resolver struct {
	client     *spotify.Client
	settings   Settings
	maxRetries int
	retryDelay time.Duration
}

// NewFromSettings creates a resolver from a raw settings map, decoding it
// with mapstructure, applying defaults and validating.
func NewFromSettings(ctx context.Context, raw map[string]any) (*Resolver, error) {
	if len(raw) == 0 {
		return nil, errors.New("resolver settings are required")
	}

	var s Settings
	if err := mapstructure.Decode(raw, &s); err != nil {
		return nil, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&s); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(s); err != nil {
		return nil, errors.Wrap(err, "validation failed")
	}

	auth := spotifyauth.New(
		spotifyauth.WithClientID(s.ClientID),
		spotifyauth.WithClientSecret(s.ClientSecret),
	)
	token := &oauth2.Token{RefreshToken: s.RefreshToken}
	httpClient := auth.Client(ctx, token)

	return &Resolver{
		client:     spotify.New(httpClient),
		settings:   s,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Resolve fetches follow-up information for a continuation reference.
func (r *Resolver) Resolve(ctx context.Context, ref string, source string) (*autoplay.ResolveResult, error) {
	switch {
	case isPlaylistRef(ref):
		parts, err := r.playlistPartitions(ctx, ref)
		if err != nil {
			return nil, err
		}
		return &autoplay.ResolveResult{Partitions: parts}, nil
	case isAlbumRef(ref):
		parts, err := r.albumPartitions(ctx, ref)
		if err != nil {
			return nil, err
		}
		return &autoplay.ResolveResult{Partitions: parts}, nil
	default:
		related, err := r.relatedItems(ctx, ref)
		if err != nil {
			return nil, err
		}
		return &autoplay.ResolveResult{Related: related}, nil
	}
}

// playlistPartitions retrieves the ordered contents of a playlist. Each
// partition keeps the playlist as its own continuation reference so the
// chain can advance past it.
func (r *Resolver) playlistPartitions(ctx context.Context, ref string) ([]media.Item, error) {
	id := extractID(ref, "playlist")
	if id == "" {
		return nil, errors.New("invalid playlist reference")
	}

	var items []media.Item
	offset := 0
	limit := 100

	for {
		var page *spotify.PlaylistItemPage
		err := r.retry(func() error {
			p, err := r.client.GetPlaylistItems(ctx, spotify.ID(id),
				spotify.Limit(limit),
				spotify.Offset(offset),
				spotify.Market(r.settings.Market),
			)
			if err != nil {
				return err
			}
			page = p
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to get playlist items")
		}

		for _, entry := range page.Items {
			// Episodes have no track payload.
			if entry.Track.Track == nil || entry.Track.Track.ID == "" {
				continue
			}
			item := r.convertFullTrack(entry.Track.Track)
			item.Extras[media.ExtraContinuation] = ref
			items = append(items, item)
		}

		if len(page.Items) < limit {
			break
		}
		offset += limit
	}

	return items, nil
}

// albumPartitions retrieves the ordered tracks of an album.
func (r *Resolver) albumPartitions(ctx context.Context, ref string) ([]media.Item, error) {
	id := extractID(ref, "album")
	if id == "" {
		return nil, errors.New("invalid album reference")
	}

	var page *spotify.SimpleTrackPage
	err := r.retry(func() error {
		p, err := r.client.GetAlbumTracks(ctx, spotify.ID(id), spotify.Market(r.settings.Market))
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get album tracks")
	}

	items := make([]media.Item, 0, len(page.Tracks))
	for i := range page.Tracks {
		item := r.convertSimpleTrack(&page.Tracks[i])
		item.Extras[media.ExtraContinuation] = ref
		items = append(items, item)
	}
	return items, nil
}

// relatedItems retrieves recommendation candidates seeded by a track
// reference. Each candidate carries its own track URI as the continuation
// reference so the chain keeps going.
func (r *Resolver) relatedItems(ctx context.Context, ref string) ([]media.Item, error) {
	id := extractID(ref, "track")
	if id == "" {
		return nil, errors.New("invalid track reference")
	}

	var recs *spotify.Recommendations
	err := r.retry(func() error {
		rec, err := r.client.GetRecommendations(ctx,
			spotify.Seeds{Tracks: []spotify.ID{spotify.ID(id)}},
			nil,
			spotify.Limit(r.settings.RelatedCount),
		)
		if err != nil {
			return err
		}
		recs = rec
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get recommendations")
	}

	items := make([]media.Item, 0, len(recs.Tracks))
	for i := range recs.Tracks {
		item := r.convertSimpleTrack(&recs.Tracks[i])
		item.Extras[media.ExtraContinuation] = "spotify:track:" + item.MediaID
		items = append(items, item)
	}
	return items, nil
}

// convertFullTrack converts a Spotify FullTrack to a media item.
func (r *Resolver) convertFullTrack(t *spotify.FullTrack) media.Item {
	item := r.convertSimpleTrack(&t.SimpleTrack)
	if len(t.Album.Images) > 0 {
		item.ArtworkURL = t.Album.Images[0].URL
	}
	return item
}

// convertSimpleTrack converts a Spotify SimpleTrack to a media item.
func (r *Resolver) convertSimpleTrack(t *spotify.SimpleTrack) media.Item {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	item := media.NewItem(string(t.ID))
	item.Title = t.Name
	item.Artist = strings.Join(artists, ", ")
	item.Duration = time.Duration(t.Duration) * time.Millisecond
	item.Source = Source
	item.Extras = map[string]string{}
	return item
}

// retry retries an operation with linear backoff on rate-limit and server
// errors.
func (r *Resolver) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < r.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < r.maxRetries-1 {
			time.Sleep(r.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// isPlaylistRef reports whether the reference denotes a playlist.
func isPlaylistRef(ref string) bool {
	return strings.Contains(ref, "playlist")
}

// isAlbumRef reports whether the reference denotes an album.
func isAlbumRef(ref string) bool {
	return strings.Contains(ref, "album")
}

// extractID extracts the resource ID from a Spotify URL or URI of the given
// kind ("playlist", "album", "track"). Bare IDs pass through.
func extractID(input, kind string) string {
	input = strings.TrimSpace(input)

	if strings.HasPrefix(input, "spotify:"+kind+":") {
		return strings.TrimPrefix(input, "spotify:"+kind+":")
	}

	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/"+kind+"/") {
		parts := strings.Split(input, "/"+kind+"/")
		if len(parts) >= 2 {
			id := strings.Split(parts[len(parts)-1], "?")[0]
			return strings.TrimRight(id, "/")
		}
	}

	return input
}
