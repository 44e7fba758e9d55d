package engine

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/kitsune-cli/kitsune/constant"
	"github.com/kitsune-cli/kitsune/log"
	"github.com/kitsune-cli/kitsune/metrics"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// AttachSpec is what the adapter needs to start a stream.
type AttachSpec struct {
	Sources   []Source
	Headers   map[string]string
	Subtitles []player.Subtitle
	Title     string
}

// Adapter creates handles and tracks how many are live per surface.
type Adapter struct {
	factory Factory
	cfg     Config
	log     *logrus.Entry

	mu   sync.Mutex
	live map[string]int
}

// NewAdapter returns an adapter building engines with factory.
func NewAdapter(factory Factory, cfg Config) *Adapter {
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = DefaultConfig().MaxConsecutiveErrors
	}
	return &Adapter{
		factory: factory,
		cfg:     cfg,
		log:     log.WithFields(logrus.Fields{"component": "engine"}),
		live:    make(map[string]int),
	}
}

// Live returns the number of attached handles on the surface. It is 0 or 1.
func (a *Adapter) Live(surfaceID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.live[surfaceID]
}

func (a *Adapter) reserve(surfaceID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.live[surfaceID] > 0 {
		return ErrSurfaceBusy
	}
	a.live[surfaceID] = 1
	metrics.LiveHandles.WithLabelValues(surfaceID).Set(1)
	return nil
}

func (a *Adapter) release(surfaceID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.live[surfaceID] > 0 {
		a.live[surfaceID]--
	}
	metrics.LiveHandles.WithLabelValues(surfaceID).Set(float64(a.live[surfaceID]))
}

// Attach configures a new engine on surface and starts loading the first usable source.
// On any failure nothing stays attached and the returned error is an *Error.
func (a *Adapter) Attach(ctx context.Context, surface player.Surface, spec AttachSpec) (*Handle, error) {
	sources := UsableSources(spec.Sources)
	if len(sources) == 0 {
		metrics.EngineErrors.WithLabelValues(KindFatal.String(), "true").Inc()
		return nil, FatalError(constant.NoSourcesMessage, ErrNoSources)
	}

	if err := a.reserve(surface.ID()); err != nil {
		return nil, FatalError("attach", err)
	}

	eng, err := a.factory(a.cfg)
	if err != nil {
		a.release(surface.ID())
		return nil, FatalError("create engine", err)
	}

	source := sources[0]
	source.Headers = mergeHeaders(spec.Headers, source.Headers)

	h := newHandle(a, surface, eng, spec)

	if err := eng.LoadSource(ctx, source); err != nil {
		h.abort()
		return nil, asEngineError(err, KindNetwork, "load source")
	}
	if err := eng.AttachMedia(ctx, surface, player.LoadOptions{Title: spec.Title}); err != nil {
		h.abort()
		return nil, asEngineError(err, KindMedia, "attach media")
	}

	h.start()
	a.log.WithField("surface", surface.ID()).Infof("attached engine to %s", redact(source.URL))
	return h, nil
}

// UsableSources filters out sources that cannot be requested.
func UsableSources(sources []Source) []Source {
	return lo.Filter(sources, func(s Source, _ int) bool {
		u, err := url.Parse(strings.TrimSpace(s.URL))
		if err != nil {
			return false
		}
		return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	})
}

func mergeHeaders(base, override map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

func asEngineError(err error, kind Kind, detail string) *Error {
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: kind, Detail: detail, Fatal: true, Err: err}
}

// redact drops the query, which often carries signed tokens.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	u.RawQuery = ""
	return u.String()
}
