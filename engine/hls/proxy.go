package hls

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kitsune-cli/kitsune/engine"
)

const playlistContentType = "application/vnd.apple.mpegurl"

func (e *Engine) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Use(e.bindLifetime)

	r.Get("/master.m3u8", e.serveMaster)
	r.Get("/level", e.serveLevel)
	r.Get("/frag", e.serveFragment)
	r.Get("/sub", e.serveSubtitle)
	return r
}

// bindLifetime rejects requests once loading is stopped and cancels them when the engine is destroyed.
func (e *Engine) bindLifetime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if e.stopped.Load() {
			http.Error(w, errStopped.Error(), http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		stop := context.AfterFunc(e.ctx, cancel)
		defer stop()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func upstreamOf(r *http.Request) (string, bool) {
	raw := r.URL.Query().Get("u")
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return raw, true
}

func (e *Engine) serveMaster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m := e.currentManifest()
	if m == nil {
		http.Error(w, "no source", http.StatusNotFound)
		return
	}

	select {
	case <-m.ready:
	case <-ctx.Done():
		http.Error(w, ctx.Err().Error(), http.StatusServiceUnavailable)
		return
	}
	if m.err != nil {
		http.Error(w, m.err.Error(), http.StatusBadGateway)
		return
	}

	var body []byte
	if isMultivariant(m.body) {
		body = rewriteMultivariant(m.body, m.base, e)
	} else {
		body = rewriteMedia(m.body, m.base, e)
	}
	writePlaylist(w, body)
}

func (e *Engine) serveLevel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	upstream, ok := upstreamOf(r)
	if !ok {
		http.Error(w, "bad upstream", http.StatusBadRequest)
		return
	}
	index, _ := strconv.Atoi(r.URL.Query().Get("i"))

	body, final, err := e.fetchPlaylist(ctx, engine.CategoryLevel, upstream)
	if err != nil {
		e.upstreamFailed(ctx, w, "level load failed", true, err)
		return
	}
	base, err := url.Parse(final)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	if details, err := detailsOf(index, body); err == nil {
		e.emit(engine.RawEvent{Kind: engine.RawLevelLoaded, Level: details})
	} else {
		e.emit(engine.RawEvent{Kind: engine.RawError, Err: engine.MediaError("level parse failed", false, err)})
	}

	writePlaylist(w, rewriteMedia(body, base, e))
}

func (e *Engine) serveFragment(w http.ResponseWriter, r *http.Request) {
	if e.relay(r.Context(), w, r, engine.CategoryFragment) {
		e.emit(engine.RawEvent{Kind: engine.RawFragLoaded})
	}
}

func (e *Engine) serveSubtitle(w http.ResponseWriter, r *http.Request) {
	e.relay(r.Context(), w, r, engine.CategorySubtitle)
}

// relay streams an upstream body to the surface. It reports whether the body was copied in full.
func (e *Engine) relay(ctx context.Context, w http.ResponseWriter, r *http.Request, category engine.Category) bool {
	upstream, ok := upstreamOf(r)
	if !ok {
		http.Error(w, "bad upstream", http.StatusBadRequest)
		return false
	}

	resp, err := e.fetch(ctx, category, upstream)
	if err != nil {
		e.upstreamFailed(ctx, w, category.String()+" load failed", category != engine.CategorySubtitle, err)
		return false
	}
	defer resp.Body.Close()

	for _, h := range []string{"Content-Type", "Content-Length"} {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return true
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		if ctx.Err() == nil {
			e.emit(engine.RawEvent{Kind: engine.RawError, Err: engine.NetworkError(category.String()+" transfer interrupted", false, err)})
		}
		return false
	}
	return true
}

// upstreamFailed reports an exhausted retry budget unless the request was abandoned.
// Subtitles never stop playback, so their failures are not fatal.
func (e *Engine) upstreamFailed(ctx context.Context, w http.ResponseWriter, detail string, fatal bool, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		http.Error(w, "cancelled", http.StatusServiceUnavailable)
		return
	}
	e.log.WithError(err).Warn(detail)
	e.emit(engine.RawEvent{Kind: engine.RawError, Err: engine.NetworkError(detail, fatal, err)})
	http.Error(w, err.Error(), http.StatusBadGateway)
}

func writePlaylist(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", playlistContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}
