// Package aniskip fetches opening and ending windows from the AniSkip API.
package aniskip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/kitsune-cli/kitsune/filesystem"
	"github.com/kitsune-cli/kitsune/log"
	"github.com/kitsune-cli/kitsune/skip"
	"github.com/metafates/gache"
	"github.com/samber/mo"
)

// BaseURL is the AniSkip v1 skip-times endpoint.
const BaseURL = "https://api.aniskip.com/v1/skip-times"

type apiResponse struct {
	Found   bool `json:"found"`
	Results []struct {
		Interval struct {
			StartTime float64 `json:"start_time"`
			EndTime   float64 `json:"end_time"`
		} `json:"interval"`
		SkipType string `json:"skip_type"`
	} `json:"results"`
}

// entry is the cached form of skip.Windows.
type entry struct {
	Intro *skip.Window `json:"intro,omitempty"`
	Outro *skip.Window `json:"outro,omitempty"`
}

func (e entry) windows() skip.Windows {
	var w skip.Windows
	if e.Intro != nil {
		w.Intro = mo.Some(*e.Intro)
	}
	if e.Outro != nil {
		w.Outro = mo.Some(*e.Outro)
	}
	return w
}

// Client looks up skip windows and caches what it finds.
type Client struct {
	http    *http.Client
	baseURL string

	mu    sync.Mutex
	cache *gache.Cache[map[string]entry]
}

// New returns a client caching lookups in cachePath.
func New(client *http.Client, baseURL, cachePath string) *Client {
	return &Client{
		http:    client,
		baseURL: baseURL,
		cache: gache.New[map[string]entry](&gache.Options{
			Path:       cachePath,
			Lifetime:   time.Hour * 24 * 7,
			FileSystem: &filesystem.GacheFs{},
		}),
	}
}

func cacheKey(malID, episode int) string {
	return strconv.Itoa(malID) + ":" + strconv.Itoa(episode)
}

// Windows returns the intro and outro windows of an episode.
// An unavailable API or an unknown episode yields empty windows, not an error.
func (c *Client) Windows(ctx context.Context, malID, episode int) (skip.Windows, error) {
	if malID <= 0 || episode <= 0 {
		return skip.Windows{}, nil
	}

	k := cacheKey(malID, episode)
	if cached, ok := c.cached(k); ok {
		return cached.windows(), nil
	}

	url := fmt.Sprintf("%s/%d/%d?types=op&types=ed", c.baseURL, malID, episode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return skip.Windows{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warnf("aniskip request failed: %v", err)
		return skip.Windows{}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.store(k, entry{})
		return skip.Windows{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		log.Warnf("aniskip returned status %d", resp.StatusCode)
		return skip.Windows{}, nil
	}

	var data apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return skip.Windows{}, fmt.Errorf("parse aniskip response: %w", err)
	}

	var found entry
	if data.Found {
		for _, r := range data.Results {
			w := &skip.Window{Start: r.Interval.StartTime, End: r.Interval.EndTime}
			switch r.SkipType {
			case "op":
				found.Intro = w
			case "ed":
				found.Outro = w
			}
		}
	}

	c.store(k, found)
	return found.windows(), nil
}

func (c *Client) cached(k string) (entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	saved, expired, err := c.cache.Get()
	if err != nil || expired || saved == nil {
		return entry{}, false
	}
	e, ok := saved[k]
	return e, ok
}

func (c *Client) store(k string, e entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	saved, expired, err := c.cache.Get()
	if err != nil || expired || saved == nil {
		saved = make(map[string]entry)
	}
	saved[k] = e
	if err := c.cache.Set(saved); err != nil {
		log.Warnf("cache skip windows: %v", err)
	}
}
