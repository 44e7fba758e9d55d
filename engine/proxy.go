package engine

import (
	"net/url"
	"strings"
)

// ProxyURI routes raw through an m3u8 proxy at base. A blank base returns raw unchanged.
// The referer is only added when set.
func ProxyURI(base, raw, referer string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return raw
	}

	params := url.Values{}
	params.Set("url", raw)
	if referer != "" {
		params.Set("referer", referer)
	}
	return base + "/m3u8-proxy?" + params.Encode()
}
