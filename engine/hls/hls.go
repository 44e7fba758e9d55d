// Package hls is the stream engine used by sessions. It serves a loopback HLS proxy that
// the surface plays from: playlists are fetched upstream with the source headers, rewritten
// to point back at the proxy, and every fragment request is retried within its budget.
package hls

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/log"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/sirupsen/logrus"
)

const (
	shutdownTimeout = time.Second
	reloadTimeout   = 5 * time.Second
)

var (
	errStopped   = errors.New("loading stopped")
	errDestroyed = errors.New("engine destroyed")
)

// manifest is one attempt at loading the source playlist.
type manifest struct {
	ready chan struct{}
	body  []byte
	base  *url.URL
	err   error
}

// Engine implements engine.Engine.
type Engine struct {
	cfg    engine.Config
	client *http.Client
	log    *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	events chan engine.RawEvent
	evMu   sync.RWMutex
	closed bool

	listener net.Listener
	server   *http.Server
	base     string

	mu       sync.Mutex
	source   engine.Source
	surface  player.Surface
	opts     player.LoadOptions
	manifest *manifest

	stopped     atomic.Bool
	destroyOnce sync.Once
}

// New returns an engine that fetches upstream with client.
func New(cfg engine.Config, client *http.Client) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:    cfg,
		client: client,
		log:    log.WithFields(logrus.Fields{"component": "hls"}),
		ctx:    ctx,
		cancel: cancel,
		events: make(chan engine.RawEvent, 64),
	}
}

// Factory returns an engine.Factory sharing client between instances.
func Factory(client *http.Client) engine.Factory {
	return func(cfg engine.Config) (engine.Engine, error) {
		return New(cfg, client), nil
	}
}

func (e *Engine) Events() <-chan engine.RawEvent {
	return e.events
}

// LoadSource starts the proxy and begins fetching the source playlist in the background.
func (e *Engine) LoadSource(ctx context.Context, source engine.Source) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.ctx.Err() != nil {
		return errDestroyed
	}

	e.mu.Lock()
	if e.listener != nil {
		e.mu.Unlock()
		return errors.New("source already loaded")
	}
	e.source = source
	e.mu.Unlock()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return engine.NetworkError("start proxy", true, err)
	}

	e.mu.Lock()
	e.listener = listener
	e.base = "http://" + listener.Addr().String()
	e.server = &http.Server{
		Handler:           e.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.log.WithError(err).Warn("proxy stopped")
		}
	}()

	e.loadManifest()
	e.log.Infof("proxy listening on %s", e.base)
	return nil
}

// loadManifest starts a fresh manifest attempt.
func (e *Engine) loadManifest() {
	m := &manifest{ready: make(chan struct{})}

	e.mu.Lock()
	e.manifest = m
	raw := e.source.URL
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(m.ready)

		body, final, err := e.fetchPlaylist(e.ctx, engine.CategoryManifest, raw)
		if err != nil {
			m.err = err
			if e.ctx.Err() == nil {
				e.emit(engine.RawEvent{Kind: engine.RawError, Err: engine.NetworkError("manifest load failed", true, err)})
			}
			return
		}

		base, err := url.Parse(final)
		if err != nil {
			m.err = err
			e.emit(engine.RawEvent{Kind: engine.RawError, Err: engine.FatalError("manifest url", err)})
			return
		}

		tracks, err := tracksOf(body)
		if err != nil {
			m.err = err
			e.emit(engine.RawEvent{Kind: engine.RawError, Err: engine.FatalError("manifest parse failed", err)})
			return
		}

		m.body, m.base = body, base
		e.emit(engine.RawEvent{Kind: engine.RawManifestLoaded, Tracks: tracks})
	}()
}

func (e *Engine) currentManifest() *manifest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.manifest
}

// AttachMedia points the surface at the proxy.
func (e *Engine) AttachMedia(ctx context.Context, surface player.Surface, opts player.LoadOptions) error {
	e.mu.Lock()
	if e.base == "" {
		e.mu.Unlock()
		return errors.New("no source loaded")
	}
	if opts.Buffer == (player.Buffer{}) {
		opts.Buffer = e.cfg.Buffer()
	}
	e.surface = surface
	e.opts = player.LoadOptions{Title: opts.Title, Start: opts.Start, Buffer: opts.Buffer}
	target := e.base + "/master.m3u8"
	e.mu.Unlock()

	if err := surface.Load(ctx, target, opts); err != nil {
		return engine.MediaError("load surface", true, err)
	}
	return nil
}

// StartLoad resumes loading. A failed manifest is fetched again and the surface reloads
// at its current position.
func (e *Engine) StartLoad() error {
	e.stopped.Store(false)
	if m := e.currentManifest(); m != nil {
		select {
		case <-m.ready:
			if m.err != nil {
				e.loadManifest()
			}
		default:
		}
	}
	return e.reload()
}

// RecoverMediaError reloads the surface so it rebuilds its decoders.
func (e *Engine) RecoverMediaError() error {
	return e.reload()
}

func (e *Engine) reload() error {
	e.mu.Lock()
	surface, opts, base := e.surface, e.opts, e.base
	e.mu.Unlock()
	if surface == nil {
		return nil
	}

	if pos, err := surface.Position(); err == nil && pos > 0 {
		opts.Start = pos
	}

	ctx, cancel := context.WithTimeout(e.ctx, reloadTimeout)
	defer cancel()
	return surface.Load(ctx, base+"/master.m3u8", opts)
}

// StopLoad makes the proxy refuse further requests.
func (e *Engine) StopLoad() error {
	e.stopped.Store(true)
	return nil
}

// DetachMedia releases the surface.
func (e *Engine) DetachMedia() error {
	e.mu.Lock()
	surface := e.surface
	e.surface = nil
	e.mu.Unlock()

	if surface == nil {
		return nil
	}
	return surface.Reset()
}

// Destroy shuts the proxy down and closes the event channel.
func (e *Engine) Destroy() error {
	var err error
	e.destroyOnce.Do(func() {
		e.cancel()

		e.mu.Lock()
		server := e.server
		e.mu.Unlock()

		if server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err = server.Shutdown(ctx); err != nil {
				err = server.Close()
			}
			cancel()
		}
		e.wg.Wait()

		e.evMu.Lock()
		e.closed = true
		close(e.events)
		e.evMu.Unlock()
	})
	return err
}

// SubtitleURL routes a subtitle through the proxy so it gets the source headers.
func (e *Engine) SubtitleURL(raw string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.base == "" {
		return raw
	}
	return e.base + "/sub?u=" + url.QueryEscape(raw)
}

func (e *Engine) levelURL(index int, upstream string) string {
	return e.base + "/level?i=" + strconv.Itoa(index) + "&u=" + url.QueryEscape(upstream)
}

func (e *Engine) fragURL(upstream string) string {
	return e.base + "/frag?u=" + url.QueryEscape(upstream)
}

func (e *Engine) headers() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source.Headers
}

func (e *Engine) emit(ev engine.RawEvent) {
	e.evMu.RLock()
	defer e.evMu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
	}
}

func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
