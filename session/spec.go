package session

import (
	"strconv"
	"strings"

	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/kitsune-cli/kitsune/skip"
	"github.com/samber/mo"
)

// Audio variants of an episode.
const (
	AudioSub = "sub"
	AudioDub = "dub"
)

const defaultSubtitleLang = "English"

// SubtitleTrack is an external subtitle file.
type SubtitleTrack struct {
	Lang string `json:"lang" jsonschema:"description=Language label, e.g. English"`
	URL  string `json:"url" jsonschema:"format=uri"`
}

// Spec is the immutable input of one session. A new Spec replaces the previous one as a whole.
type Spec struct {
	ContentID     string `json:"content_id" jsonschema:"description=Identifier of the show"`
	EpisodeID     string `json:"episode_id"`
	EpisodeNumber int    `json:"episode_number,omitempty"`
	Title         string `json:"title,omitempty"`
	Thumbnail     string `json:"thumbnail,omitempty"`
	Server        string `json:"server,omitempty"`
	Audio         string `json:"audio,omitempty" jsonschema:"enum=sub,enum=dub"`
	// MalID is used to look up skip windows when none are given.
	MalID int `json:"mal_id,omitempty"`

	Sources   []engine.Source   `json:"sources"`
	Headers   map[string]string `json:"headers"`
	Subtitles []SubtitleTrack   `json:"subtitles,omitempty"`

	Intro *skip.Window `json:"intro,omitempty"`
	Outro *skip.Window `json:"outro,omitempty" jsonschema:"description=An end of 0 means until the end of the stream"`

	InitialSeekSeconds *float64 `json:"initial_seek_seconds,omitempty"`
}

// Referer returns the Referer header, matched case-insensitively.
func (s *Spec) Referer() string {
	for k, v := range s.Headers {
		if strings.EqualFold(k, "Referer") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// ManifestURI returns the first source URL, or "".
func (s *Spec) ManifestURI() string {
	if len(s.Sources) == 0 {
		return ""
	}
	return strings.TrimSpace(s.Sources[0].URL)
}

// Complete reports whether a session can start from the episode spec.
// A present but empty source list is complete; the engine reports it as unplayable.
func (s *Spec) Complete() bool {
	if s == nil || s.Sources == nil || s.Referer() == "" {
		return false
	}
	return len(s.Sources) == 0 || s.ManifestURI() != ""
}

// Identity names the (content, episode, server, audio) tuple this episode spec was built for.
func (s *Spec) Identity() string {
	return strings.Join([]string{s.ContentID, s.EpisodeID, s.Server, s.Audio}, "/")
}

// Windows returns the skip windows carried by the episode spec.
func (s *Spec) Windows() skip.Windows {
	var w skip.Windows
	if s.Intro != nil {
		w.Intro = mo.Some(*s.Intro)
	}
	if s.Outro != nil {
		w.Outro = mo.Some(*s.Outro)
	}
	return w
}

// InitialSeek returns the requested start position, if any.
func (s *Spec) InitialSeek() mo.Option[float64] {
	if s.InitialSeekSeconds == nil {
		return mo.None[float64]()
	}
	return mo.Some(*s.InitialSeekSeconds)
}

// AttachSpec builds what the engine adapter needs. With a proxy base, sources and
// subtitles are routed through it. English subtitles are selected unless the audio is dubbed.
func (s *Spec) AttachSpec(proxy string) engine.AttachSpec {
	referer := s.Referer()

	sources := make([]engine.Source, 0, len(s.Sources))
	for _, src := range s.Sources {
		src.URL = engine.ProxyURI(proxy, strings.TrimSpace(src.URL), referer)
		sources = append(sources, src)
	}

	subtitles := make([]player.Subtitle, 0, len(s.Subtitles))
	for _, t := range s.Subtitles {
		subtitles = append(subtitles, player.Subtitle{
			Lang:    t.Lang,
			URL:     engine.ProxyURI(proxy, t.URL, ""),
			Default: s.Audio != AudioDub && t.Lang == defaultSubtitleLang,
		})
	}

	return engine.AttachSpec{
		Sources:   sources,
		Headers:   s.Headers,
		Subtitles: subtitles,
		Title:     s.title(),
	}
}

func (s *Spec) title() string {
	switch {
	case s.Title != "" && s.EpisodeNumber > 0:
		return s.Title + " - Episode " + strconv.Itoa(s.EpisodeNumber)
	case s.Title != "":
		return s.Title
	case s.EpisodeNumber > 0:
		return "Episode " + strconv.Itoa(s.EpisodeNumber)
	default:
		return ""
	}
}
