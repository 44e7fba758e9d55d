package hls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kitsune-cli/kitsune/constant"
	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/metrics"
)

const maxPlaylistSize = 8 << 20

type statusError struct {
	url    string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.url, e.status)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func newBackOff(ctx context.Context, policy engine.RetryPolicy) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.RetryDelay
	b.MaxInterval = policy.MaxRetryDelay
	b.MaxElapsedTime = 0

	retries := policy.MaxRetry
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// fetch requests raw with the source headers, retrying within the category budget.
// Every failed attempt is reported as a non-fatal error. The caller owns the response body.
func (e *Engine) fetch(ctx context.Context, category engine.Category, raw string) (*http.Response, error) {
	headers := e.headers()
	label := category.String()

	var resp *http.Response
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", constant.UserAgent)
		}

		started := time.Now()
		r, err := e.client.Do(req)
		metrics.UpstreamDuration.WithLabelValues(label).Observe(time.Since(started).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}

		if r.StatusCode >= http.StatusBadRequest {
			_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, 4096))
			r.Body.Close()
			serr := &statusError{url: redact(raw), status: r.StatusCode}
			if !retryable(r.StatusCode) {
				return backoff.Permanent(serr)
			}
			return serr
		}

		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		metrics.UpstreamRequests.WithLabelValues(label, "retry").Inc()
		e.emit(engine.RawEvent{
			Kind: engine.RawError,
			Err:  engine.NetworkError(label+" request failed, retrying in "+wait.Round(time.Millisecond).String(), false, err),
		})
	}

	if err := backoff.RetryNotify(op, newBackOff(ctx, e.cfg.Policy(category)), notify); err != nil {
		metrics.UpstreamRequests.WithLabelValues(label, "failed").Inc()
		return nil, err
	}

	metrics.UpstreamRequests.WithLabelValues(label, "ok").Inc()
	return resp, nil
}

// fetchPlaylist reads a whole playlist and returns it with the final URL after redirects.
func (e *Engine) fetchPlaylist(ctx context.Context, category engine.Category, raw string) ([]byte, string, error) {
	resp, err := e.fetch(ctx, category, raw)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistSize+1))
	if err != nil {
		return nil, "", err
	}
	if len(body) > maxPlaylistSize {
		return nil, "", errors.New("playlist too large")
	}
	return body, resp.Request.URL.String(), nil
}
