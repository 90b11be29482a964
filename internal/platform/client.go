package platform

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"chessmate/internal/core"
	"chessmate/internal/metrics"
)

const (
	userAgent       = "chessmate/1.0 (+game analysis)"
	defaultTimeout  = 60 * time.Second
	defaultRetries  = 3
	defaultWait     = 500 * time.Millisecond
	maxPayloadBytes = 64 << 20
)

// Deps are the shared collaborators handed to every adapter constructor
type Deps struct {
	Client    *http.Client
	Logger    *slog.Logger
	Metrics   *metrics.Manager
	Retries   uint
	RetryWait time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Client == nil {
		d.Client = &http.Client{Timeout: defaultTimeout}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Retries == 0 {
		d.Retries = defaultRetries
	}
	if d.RetryWait <= 0 {
		d.RetryWait = defaultWait
	}
	return d
}

// fetcher issues paced, retried GETs against one platform
type fetcher struct {
	platform  string
	client    *http.Client
	limiter   *rate.Limiter
	token     string
	retries   uint
	retryWait time.Duration
	log       *slog.Logger
}

func newFetcher(platform string, s Settings, deps Deps) *fetcher {
	limit := rate.Inf
	if s.RatePerSecond > 0 {
		limit = rate.Limit(s.RatePerSecond)
	}
	return &fetcher{
		platform:  platform,
		client:    deps.Client,
		limiter:   rate.NewLimiter(limit, 1),
		token:     s.Token,
		retries:   deps.Retries,
		retryWait: deps.RetryWait,
		log:       deps.Logger,
	}
}

// get returns a 2xx response; the caller closes the body. 404 maps to
// NotFound, everything else that fails maps to IOError.
func (f *fetcher) get(ctx context.Context, url, accept string) (*http.Response, error) {
	op := func() (*http.Response, error) {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", userAgent)
		if f.token != "" {
			req.Header.Set("Authorization", "Bearer "+f.token)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case resp.StatusCode == http.StatusNotFound:
			drain(resp)
			return nil, backoff.Permanent(core.Errorf(core.KindNotFound, f.platform, "%s not found", url))
		case resp.StatusCode == http.StatusTooManyRequests:
			wait := resp.Header.Get("Retry-After")
			drain(resp)
			if secs, err := strconv.Atoi(wait); err == nil && secs > 0 {
				return nil, backoff.RetryAfter(secs)
			}
			return nil, fmt.Errorf("%s: rate limited", url)
		case resp.StatusCode >= 500:
			drain(resp)
			return nil, fmt.Errorf("%s: %s", url, resp.Status)
		default:
			drain(resp)
			return nil, backoff.Permanent(fmt.Errorf("%s: %s", url, resp.Status))
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.retryWait

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(f.retries),
		backoff.WithNotify(func(err error, next time.Duration) {
			f.log.Warn("request failed, retrying", "platform", f.platform, "error", err, "retry_in", next)
		}))
	if err != nil {
		if core.KindOf(err) != core.KindUnknown {
			return nil, err
		}
		return nil, core.Wrap(core.KindIO, f.platform, err)
	}
	return resp, nil
}

// getBody reads a whole 2xx response
func (f *fetcher) getBody(ctx context.Context, url, accept string) ([]byte, error) {
	resp, err := f.get(ctx, url, accept)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, core.Wrap(core.KindIO, f.platform, fmt.Errorf("read %s: %w", url, err))
	}
	return body, nil
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
}
