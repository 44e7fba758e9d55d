package hls

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/kitsune-cli/kitsune/player/playertest"
	. "github.com/smartystreets/goconvey/convey"
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID="aud",NAME="Japanese",LANGUAGE="ja",DEFAULT=YES,AUTOSELECT=YES,URI="audio/ja.m3u8"
#EXT-X-STREAM-INF:BANDWIDTH=1400000,RESOLUTION=1280x720,CODECS="avc1.64001f,mp4a.40.2",AUDIO="aud"
720/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1920x1080,CODECS="avc1.640028,mp4a.40.2",AUDIO="aud"
1080/index.m3u8
`

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXTINF:10.000,
seg0.ts
#EXTINF:4.500,
seg1.ts
#EXT-X-ENDLIST
`

type upstream struct {
	*httptest.Server
	mu       sync.Mutex
	referers []string
	agents   []string
	flaky    int
}

func newUpstream() *upstream {
	u := &upstream{}
	mux := http.NewServeMux()
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, masterPlaylist)
	})
	mux.HandleFunc("/720/index.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, mediaPlaylist)
	})
	mux.HandleFunc("/720/seg0.ts", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "segment-0")
	})
	mux.HandleFunc("/flaky.ts", func(w http.ResponseWriter, _ *http.Request) {
		u.mu.Lock()
		u.flaky++
		n := u.flaky
		u.mu.Unlock()
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, "recovered")
	})
	mux.HandleFunc("/broken.ts", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/en.vtt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "WEBVTT\n")
	})

	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.referers = append(u.referers, r.Header.Get("Referer"))
		u.agents = append(u.agents, r.Header.Get("User-Agent"))
		u.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	return u
}

func (u *upstream) seen() ([]string, []string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.referers...), append([]string(nil), u.agents...)
}

func fastConfig() engine.Config {
	cfg := engine.DefaultConfig()
	policy := engine.RetryPolicy{MaxRetry: 2, RetryDelay: time.Millisecond, MaxRetryDelay: 5 * time.Millisecond}
	cfg.Manifest, cfg.Level, cfg.Fragment = policy, policy, policy
	return cfg
}

// waitFor reads events until one of kind arrives and returns everything read.
func waitFor(e *Engine, kind engine.RawKind) []engine.RawEvent {
	var seen []engine.RawEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-e.Events():
			if !ok {
				return seen
			}
			seen = append(seen, ev)
			if ev.Kind == kind {
				return seen
			}
		case <-timeout:
			return seen
		}
	}
}

func fatalCount(events []engine.RawEvent) (fatal, nonFatal int) {
	for _, ev := range events {
		if ev.Kind != engine.RawError {
			continue
		}
		if ev.Err.Fatal {
			fatal++
		} else {
			nonFatal++
		}
	}
	return fatal, nonFatal
}

func get(raw string) (int, string) {
	resp, err := http.Get(raw)
	if err != nil {
		return 0, err.Error()
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestEngine(t *testing.T) {
	Convey("Given an upstream and a loaded engine", t, func() {
		up := newUpstream()
		Reset(up.Close)

		e := New(fastConfig(), up.Client())
		Reset(func() { _ = e.Destroy() })

		surface := playertest.NewSurface("s1")
		source := engine.Source{
			URL:     up.URL + "/master.m3u8",
			Headers: map[string]string{"Referer": "https://example.org/"},
		}
		So(e.LoadSource(context.Background(), source), ShouldBeNil)

		events := waitFor(e, engine.RawManifestLoaded)
		So(events, ShouldNotBeEmpty)
		loaded := events[len(events)-1]
		So(loaded.Kind, ShouldEqual, engine.RawManifestLoaded)

		Convey("Then qualities and audio renditions are enumerated", func() {
			levels := loaded.Tracks.Levels
			So(levels, ShouldHaveLength, 2)
			So(levels[0].Height, ShouldEqual, 720)
			So(levels[0].Label, ShouldEqual, "720P")
			So(levels[1].Bandwidth, ShouldEqual, 2800000)

			So(loaded.Tracks.Audio, ShouldHaveLength, 1)
			So(loaded.Tracks.Audio[0].Name, ShouldEqual, "Japanese")
			So(loaded.Tracks.Audio[0].Language, ShouldEqual, "ja")
		})

		Convey("Then upstream requests carry the source headers and a user agent", func() {
			referers, agents := up.seen()
			So(referers, ShouldNotBeEmpty)
			So(referers[0], ShouldEqual, "https://example.org/")
			So(agents[0], ShouldContainSubstring, "Mozilla/5.0")
		})

		Convey("When media is attached", func() {
			So(e.AttachMedia(context.Background(), surface, player.LoadOptions{Title: "Episode 1"}), ShouldBeNil)

			Convey("Then the surface plays from the proxy", func() {
				So(surface.Loaded(), ShouldResemble, []string{e.base + "/master.m3u8"})
				So(surface.LastLoad().Title, ShouldEqual, "Episode 1")
			})

			Convey("Then the surface receives the configured buffer limits", func() {
				So(surface.LastLoad().Buffer, ShouldResemble, player.Buffer{
					Ahead:    10 * time.Second,
					MaxAhead: 30 * time.Second,
					MaxBytes: 20 * 1000 * 1000,
					Behind:   30 * time.Second,
				})
			})

			Convey("Then the master playlist points back at the proxy", func() {
				status, body := get(e.base + "/master.m3u8")
				So(status, ShouldEqual, http.StatusOK)
				So(body, ShouldContainSubstring, e.base+"/level?i=0&u="+url.QueryEscape(up.URL+"/720/index.m3u8"))
				So(body, ShouldContainSubstring, e.base+"/level?i=1&u="+url.QueryEscape(up.URL+"/1080/index.m3u8"))
				So(body, ShouldContainSubstring, `URI="`+e.base+"/level?i=-1&u="+url.QueryEscape(up.URL+"/audio/ja.m3u8")+`"`)
				So(body, ShouldNotContainSubstring, "\n720/index.m3u8")
			})

			Convey("Then a level load is summarized and its segments are rewritten", func() {
				status, body := get(e.levelURL(0, up.URL+"/720/index.m3u8"))
				So(status, ShouldEqual, http.StatusOK)
				So(body, ShouldContainSubstring, e.fragURL(up.URL+"/720/seg0.ts"))

				events := waitFor(e, engine.RawLevelLoaded)
				level := events[len(events)-1]
				So(level.Kind, ShouldEqual, engine.RawLevelLoaded)
				So(level.Level.Level, ShouldEqual, 0)
				So(level.Level.Fragments, ShouldEqual, 2)
				So(level.Level.Duration, ShouldAlmostEqual, 14.5, 0.001)
				So(level.Level.Live, ShouldBeFalse)
			})

			Convey("Then fragments are relayed and reported", func() {
				status, body := get(e.fragURL(up.URL + "/720/seg0.ts"))
				So(status, ShouldEqual, http.StatusOK)
				So(body, ShouldEqual, "segment-0")
				events := waitFor(e, engine.RawFragLoaded)
				So(events[len(events)-1].Kind, ShouldEqual, engine.RawFragLoaded)
			})

			Convey("Then transient fragment failures are retried as non-fatal errors", func() {
				status, body := get(e.fragURL(up.URL + "/flaky.ts"))
				So(status, ShouldEqual, http.StatusOK)
				So(body, ShouldEqual, "recovered")

				fatal, nonFatal := fatalCount(waitFor(e, engine.RawFragLoaded))
				So(fatal, ShouldEqual, 0)
				So(nonFatal, ShouldEqual, 2)
			})

			Convey("Then an exhausted retry budget is fatal", func() {
				status, _ := get(e.fragURL(up.URL + "/broken.ts"))
				So(status, ShouldEqual, http.StatusBadGateway)

				var events []engine.RawEvent
				for len(events) < 3 {
					more := waitFor(e, engine.RawError)
					if len(more) == 0 {
						break
					}
					events = append(events, more...)
				}
				fatal, nonFatal := fatalCount(events)
				So(nonFatal, ShouldEqual, 2)
				So(fatal, ShouldEqual, 1)
				So(events[len(events)-1].Err.Kind, ShouldEqual, engine.KindNetwork)
			})

			Convey("Then missing resources fail without retries", func() {
				status, _ := get(e.fragURL(up.URL + "/missing.ts"))
				So(status, ShouldEqual, http.StatusBadGateway)
				events := waitFor(e, engine.RawError)
				fatal, nonFatal := fatalCount(events)
				So(fatal, ShouldEqual, 1)
				So(nonFatal, ShouldEqual, 0)
			})

			Convey("Then fragments answer HEAD without a body and refuse other methods", func() {
				resp, err := http.Head(e.fragURL(up.URL + "/720/seg0.ts"))
				So(err, ShouldBeNil)
				body, _ := io.ReadAll(resp.Body)
				_ = resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(body, ShouldBeEmpty)

				resp, err = http.Post(e.fragURL(up.URL+"/720/seg0.ts"), "text/plain", strings.NewReader("x"))
				So(err, ShouldBeNil)
				_ = resp.Body.Close()
				So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
			})

			Convey("Then subtitles are routed through the proxy", func() {
				proxied := e.SubtitleURL(up.URL + "/en.vtt")
				So(proxied, ShouldStartWith, e.base+"/sub?u=")
				status, body := get(proxied)
				So(status, ShouldEqual, http.StatusOK)
				So(body, ShouldEqual, "WEBVTT\n")
			})

			Convey("When loading is stopped", func() {
				So(e.StopLoad(), ShouldBeNil)

				Convey("Then the proxy refuses requests", func() {
					status, _ := get(e.fragURL(up.URL + "/720/seg0.ts"))
					So(status, ShouldEqual, http.StatusServiceUnavailable)
				})

				Convey("Then starting again reloads the surface at its position", func() {
					surface.SetPlayhead(30, 1400)
					So(e.StartLoad(), ShouldBeNil)
					So(surface.Loaded(), ShouldHaveLength, 2)
					So(surface.LastLoad().Start, ShouldEqual, 30)
					So(surface.LastLoad().Buffer, ShouldResemble, fastConfig().Buffer())

					status, _ := get(e.fragURL(up.URL + "/720/seg0.ts"))
					So(status, ShouldEqual, http.StatusOK)
				})
			})

			Convey("When the media is detached and the engine destroyed", func() {
				So(e.DetachMedia(), ShouldBeNil)
				So(e.Destroy(), ShouldBeNil)
				So(e.Destroy(), ShouldBeNil)

				Convey("Then the surface is reset and the event stream closed", func() {
					So(surface.Resets(), ShouldEqual, 1)
					for range e.Events() {
					}
					_, ok := <-e.Events()
					So(ok, ShouldBeFalse)
				})

				Convey("Then the proxy no longer answers", func() {
					status, _ := get(e.base + "/master.m3u8")
					So(status, ShouldEqual, 0)
				})

				Convey("Then recovery is a no-op", func() {
					So(e.RecoverMediaError(), ShouldBeNil)
					So(surface.Loaded(), ShouldHaveLength, 1)
				})
			})
		})
	})

	Convey("Given engines configured with different buffer limits", t, func() {
		up := newUpstream()
		Reset(up.Close)

		attach := func(ahead time.Duration, maxBytes int64) player.LoadOptions {
			cfg := fastConfig()
			cfg.MaxBufferLength = ahead
			cfg.MaxBufferSize = maxBytes
			e := New(cfg, up.Client())
			Reset(func() { _ = e.Destroy() })

			surface := playertest.NewSurface("buffered")
			So(e.LoadSource(context.Background(), engine.Source{URL: up.URL + "/master.m3u8"}), ShouldBeNil)
			So(e.AttachMedia(context.Background(), surface, player.LoadOptions{}), ShouldBeNil)
			return surface.LastLoad()
		}

		short := attach(time.Second, 1)
		long := attach(600*time.Second, 50*1000*1000)

		Convey("Then each surface load carries its own limits", func() {
			So(short.Buffer.Ahead, ShouldEqual, time.Second)
			So(short.Buffer.MaxBytes, ShouldEqual, int64(1))
			So(long.Buffer.Ahead, ShouldEqual, 600*time.Second)
			So(long.Buffer.MaxBytes, ShouldEqual, int64(50*1000*1000))
		})
	})

	Convey("Given an unreachable manifest", t, func() {
		up := newUpstream()
		Reset(up.Close)

		e := New(fastConfig(), up.Client())
		Reset(func() { _ = e.Destroy() })

		So(e.LoadSource(context.Background(), engine.Source{URL: up.URL + "/gone.m3u8"}), ShouldBeNil)

		Convey("Then a fatal network error is reported", func() {
			events := waitFor(e, engine.RawError)
			So(events, ShouldNotBeEmpty)
			last := events[len(events)-1]
			So(last.Err.Fatal, ShouldBeTrue)
			So(last.Err.Kind, ShouldEqual, engine.KindNetwork)

			status, _ := get(e.base + "/master.m3u8")
			So(status, ShouldEqual, http.StatusBadGateway)
		})
	})
}

type fakeRouter struct{}

func (fakeRouter) levelURL(index int, upstream string) string {
	return "L" + strings.Repeat("+", index+1) + upstream
}

func (fakeRouter) fragURL(upstream string) string { return "F" + upstream }

func TestRewrite(t *testing.T) {
	base, _ := url.Parse("https://cdn.example/show/ep1/master.m3u8")

	Convey("Media playlists rewrite segments, keys and init sections", t, func() {
		body := []byte("#EXTM3U\r\n#EXT-X-KEY:METHOD=AES-128,URI=\"key.bin\"\r\n#EXT-X-MAP:URI=\"/init.mp4\"\r\n#EXTINF:4,\r\nseg.ts\r\n\r\n#EXTINF:4,\r\nhttps://other.example/seg2.ts\r\n")
		out := string(rewriteMedia(body, base, fakeRouter{}))

		So(out, ShouldContainSubstring, `URI="Fhttps://cdn.example/show/ep1/key.bin"`)
		So(out, ShouldContainSubstring, `URI="Fhttps://cdn.example/init.mp4"`)
		So(out, ShouldContainSubstring, "\nFhttps://cdn.example/show/ep1/seg.ts\n")
		So(out, ShouldContainSubstring, "\nFhttps://other.example/seg2.ts\n")
		So(out, ShouldNotContainSubstring, "\r")
	})

	Convey("Multivariant playlists number variants in order", t, func() {
		out := string(rewriteMultivariant([]byte(masterPlaylist), base, fakeRouter{}))
		So(out, ShouldContainSubstring, "\nL+https://cdn.example/show/ep1/720/index.m3u8\n")
		So(out, ShouldContainSubstring, "\nL++https://cdn.example/show/ep1/1080/index.m3u8\n")
		So(out, ShouldContainSubstring, `URI="Lhttps://cdn.example/show/ep1/audio/ja.m3u8"`)
	})

	Convey("Resolutions map to labels", t, func() {
		So(heightOf("1920x1080"), ShouldEqual, 1080)
		So(heightOf("bogus"), ShouldEqual, 0)
		So(levelLabel(720), ShouldEqual, "720P")
		So(levelLabel(0), ShouldEqual, "Auto")
	})
}
