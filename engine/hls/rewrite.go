package hls

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/kitsune-cli/kitsune/engine"
)

var uriAttribute = regexp.MustCompile(`URI="([^"]*)"`)

// router builds loopback URLs for upstream resources.
type router interface {
	levelURL(index int, upstream string) string
	fragURL(upstream string) string
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// rewriteMultivariant points every variant and rendition at the level route.
// Variants are numbered in playlist order; renditions get -1.
func rewriteMultivariant(body []byte, base *url.URL, r router) []byte {
	var out bytes.Buffer
	index := 0
	pendingVariant := false

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), maxPlaylistSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXT-X-STREAM-INF"):
			pendingVariant = true
		case strings.HasPrefix(line, "#EXT-X-MEDIA"), strings.HasPrefix(line, "#EXT-X-I-FRAME-STREAM-INF"):
			line = uriAttribute.ReplaceAllStringFunc(line, func(m string) string {
				ref := uriAttribute.FindStringSubmatch(m)[1]
				return fmt.Sprintf(`URI="%s"`, r.levelURL(-1, resolve(base, ref)))
			})
		case strings.HasPrefix(line, "#"):
		default:
			i := -1
			if pendingVariant {
				i = index
				index++
				pendingVariant = false
			}
			line = r.levelURL(i, resolve(base, line))
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// rewriteMedia points segments, keys and init sections at the fragment route.
func rewriteMedia(body []byte, base *url.URL, r router) []byte {
	var out bytes.Buffer

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), maxPlaylistSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == "":
		case strings.HasPrefix(line, "#EXT-X-KEY"), strings.HasPrefix(line, "#EXT-X-MAP"), strings.HasPrefix(line, "#EXT-X-PART"):
			line = uriAttribute.ReplaceAllStringFunc(line, func(m string) string {
				ref := uriAttribute.FindStringSubmatch(m)[1]
				return fmt.Sprintf(`URI="%s"`, r.fragURL(resolve(base, ref)))
			})
		case strings.HasPrefix(line, "#"):
		default:
			line = r.fragURL(resolve(base, line))
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// isMultivariant reports whether body is a master playlist.
func isMultivariant(body []byte) bool {
	return bytes.Contains(body, []byte("#EXT-X-STREAM-INF"))
}

// tracksOf enumerates quality levels and audio renditions of a parsed playlist.
func tracksOf(body []byte) (engine.TrackInfo, error) {
	pl, err := playlist.Unmarshal(body)
	if err != nil {
		return engine.TrackInfo{}, err
	}

	var info engine.TrackInfo
	switch p := pl.(type) {
	case *playlist.Multivariant:
		for i, v := range p.Variants {
			height := heightOf(v.Resolution)
			info.Levels = append(info.Levels, engine.Level{
				Index:     i,
				Label:     levelLabel(height),
				Bandwidth: v.Bandwidth,
				Height:    height,
			})
		}
		for _, r := range p.Renditions {
			if r.Type != playlist.MultivariantRenditionTypeAudio {
				continue
			}
			name := r.Name
			if name == "" {
				name = "Unknown"
			}
			info.Audio = append(info.Audio, engine.AudioTrack{
				Index:    len(info.Audio),
				Name:     name,
				Language: r.Language,
			})
		}
	case *playlist.Media:
		info.Levels = []engine.Level{{Index: 0, Label: levelLabel(0)}}
	}
	return info, nil
}

// detailsOf summarizes a media playlist.
func detailsOf(level int, body []byte) (engine.LevelDetails, error) {
	pl, err := playlist.Unmarshal(body)
	if err != nil {
		return engine.LevelDetails{}, err
	}
	media, ok := pl.(*playlist.Media)
	if !ok {
		return engine.LevelDetails{}, fmt.Errorf("expected media playlist")
	}

	var total time.Duration
	for _, seg := range media.Segments {
		total += seg.Duration
	}
	return engine.LevelDetails{
		Level:     level,
		Duration:  total.Seconds(),
		Fragments: len(media.Segments),
		Live:      !media.Endlist,
	}, nil
}

func heightOf(resolution string) int {
	_, h, ok := strings.Cut(resolution, "x")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(h)
	if err != nil {
		return 0
	}
	return n
}

func levelLabel(height int) string {
	if height > 0 {
		return strconv.Itoa(height) + "P"
	}
	return "Auto"
}
