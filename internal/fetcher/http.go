package fetcher

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxBackoff caps both exponential backoff and server Retry-After hints.
const maxBackoff = 30 * time.Second

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent    string
	Timeout      time.Duration
	MaxRetries   int
	BaseBackoff  time.Duration
	RateLimiters map[string]*rate.Limiter // by host, merged over DefaultRateLimiters
}

// HTTPFetcher downloads raw data over HTTP(S). Requests to one host share a
// rate limiter; 408, 429 and 5xx responses and transport errors are retried.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// DefaultRateLimiters returns the per-host limits for the public data hosts.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"ramp0storage.blob.core.windows.net": rate.NewLimiter(8, 8),
		"download.geofabrik.de":              rate.NewLimiter(2, 2),
		"www.gstatic.com":                    rate.NewLimiter(4, 4),
	}
}

// NewHTTPFetcher fills zero options with defaults: a 10 minute timeout, 3
// attempts and a one second base backoff.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "spc/1.0"
	}

	limiters := DefaultRateLimiters()
	for host, lim := range opts.RateLimiters {
		limiters[host] = lim
	}

	// Shapefile archives are large; keep few connections per host open.
	transport := &http.Transport{
		MaxIdleConnsPerHost: 2,
		MaxConnsPerHost:     4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: opts.Timeout, Transport: transport},
		opts:     opts,
		limiters: limiters,
	}
}

func (f *HTTPFetcher) limiterFor(rawURL string) *rate.Limiter {
	var host string
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(20, 20)
	f.limiters[host] = lim
	return lim
}

// retryable reports whether a response status is worth another attempt.
func retryable(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}

// retryAfter parses a Retry-After header given in seconds. HTTP dates are ignored.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.Atoi(h.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxBackoff)
}

// get performs the request with rate limiting and retries. The returned
// response always has status 200.
func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	log := zap.L().With(zap.String("component", "fetcher.http"), zap.String("url", rawURL))
	lim := f.limiterFor(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	var lastErr error
	last := f.opts.MaxRetries - 1
	for attempt := range f.opts.MaxRetries {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		resp, err := f.client.Do(req.Clone(ctx))
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, eris.Wrap(ctx.Err(), "http request cancelled")
		case err != nil:
			lastErr = err
			if attempt < last {
				log.Warn("request failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
				f.backoff(ctx, attempt)
			}
		case resp.StatusCode == http.StatusOK:
			return resp, nil
		case retryable(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, rawURL)
			if attempt == last {
				continue
			}
			log.Warn("server busy, retrying", zap.Int("status", resp.StatusCode), zap.Int("attempt", attempt+1))
			if wait := retryAfter(resp.Header); wait > 0 {
				sleep(ctx, wait)
			} else {
				f.backoff(ctx, attempt)
			}
		default:
			_ = resp.Body.Close()
			return nil, eris.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
		}
	}
	if lastErr == nil {
		lastErr = eris.New("no attempts made")
	}
	return nil, eris.Wrapf(lastErr, "all retries exhausted after %d attempts", f.opts.MaxRetries)
}

// backoff sleeps for the exponential delay of attempt plus up to 50% jitter.
func (f *HTTPFetcher) backoff(ctx context.Context, attempt int) {
	d := min(f.opts.BaseBackoff<<min(attempt, 16), maxBackoff)
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Download fetches the URL and returns the response body.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	return resp.Body, nil
}

// DownloadToFile fetches the URL into path. A body shorter than the
// advertised Content-Length is an error.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return 0, eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	n, err := writeFile(path, resp.Body)
	if err != nil {
		return n, err
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, eris.Errorf("download: %s truncated at %d of %d bytes", rawURL, n, resp.ContentLength)
	}
	return n, nil
}
