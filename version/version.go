// Package version checks for newer releases and compares version strings.
package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/kitsune-cli/kitsune/filesystem"
	"github.com/kitsune-cli/kitsune/util"
	"github.com/kitsune-cli/kitsune/where"
	"github.com/metafates/gache"
)

// ReleasesURL is the GitHub endpoint of the latest release.
const ReleasesURL = "https://api.github.com/repos/kitsune-cli/kitsune/releases/latest"

var cacher = sync.OnceValue(func() *gache.Cache[string] {
	return gache.New[string](&gache.Options{
		Path:       filepath.Join(where.Cache(), "version.json"),
		Lifetime:   time.Hour * 24 * 2,
		FileSystem: &filesystem.GacheFs{},
	})
})

// Latest returns the newest released version, cached for two days.
func Latest(ctx context.Context, client *http.Client) (string, error) {
	ver, expired, err := cacher().Get()
	if err != nil {
		return "", err
	}
	if !expired && ver != "" {
		return ver, nil
	}

	ver, err = fetch(ctx, client, ReleasesURL)
	if err != nil {
		return "", err
	}
	_ = cacher().Set(ver)
	return ver, nil
}

func fetch(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer util.Ignore(resp.Body.Close)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("releases: unexpected status %s", resp.Status)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", err
	}
	if release.TagName == "" {
		return "", errors.New("empty tag name")
	}

	return strings.TrimPrefix(release.TagName, "v"), nil
}
