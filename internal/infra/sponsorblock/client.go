// Package sponsorblock provides a client for the SponsorBlock API.
package sponsorblock

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/mostafaalagamy/playd/internal/domain/media"
	"github.com/mostafaalagamy/playd/internal/domain/segment"
)

// DefaultBaseURL is the public SponsorBlock instance.
const DefaultBaseURL = "https://sponsor.ajay.app"

// Client is a SponsorBlock API client. Results are cached per media ID for
// the lifetime of the client.
type Client struct {
	baseURL    string
	httpClient *http.Client

	cache   map[string][]segment.Segment
	cacheMu sync.RWMutex
}

// Config represents SponsorBlock client configuration.
type Config struct {
	BaseURL string // "" for the public instance
}

// skipSegment is one entry of the skipSegments response.
type skipSegment struct {
	Category    string    `json:"category"`
	Segment     []float64 `json:"segment"` // [start, end] in seconds
	UUID        string    `json:"UUID"`
	Description string    `json:"description"`
}

// New creates a new SponsorBlock client.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cache:      make(map[string][]segment.Segment),
	}
}

// Segments fetches the labeled segments for one media item, keyed by the
// item's segment-source reference. A 404 response means no segments are
// known and yields an empty list. Implements skip.Source.
func (c *Client) Segments(ctx context.Context, item media.Item) ([]segment.Segment, error) {
	ref := item.SegmentSourceRef()
	if ref == "" {
		return []segment.Segment{}, nil
	}

	c.cacheMu.RLock()
	if cached, ok := c.cache[ref]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	params := url.Values{}
	params.Set("videoID", ref)
	categories, err := json.Marshal(categoryNames())
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode categories")
	}
	params.Set("categories", string(categories))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/skipSegments?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		empty := []segment.Segment{}
		c.store(ref, empty)
		return empty, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	var wire []skipSegment
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}

	segs := make([]segment.Segment, 0, len(wire))
	for _, w := range wire {
		cat, ok := segment.ParseCategory(w.Category)
		if !ok || len(w.Segment) < 2 {
			continue
		}
		segs = append(segs, segment.Segment{
			UUID:     w.UUID,
			Category: cat,
			Start:    w.Segment[0],
			End:      w.Segment[1],
			Label:    w.Description,
		})
	}

	c.store(ref, segs)
	return segs, nil
}

func (c *Client) store(ref string, segs []segment.Segment) {
	c.cacheMu.Lock()
	c.cache[ref] = segs
	c.cacheMu.Unlock()
}

func categoryNames() []string {
	names := make([]string, len(segment.Categories))
	for i, cat := range segment.Categories {
		names[i] = cat.String()
	}
	return names
}
