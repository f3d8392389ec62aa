package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Options configures remote downloads.
type Options struct {
	Timeout        time.Duration // default 30s
	RequestsPerSec float64       // 0 = unthrottled
}

func (o Options) timeout() time.Duration {
	if o.Timeout == 0 {
		return 30 * time.Second
	}
	return o.Timeout
}

// HTTPFetcher downloads files over HTTP(S), throttled so repeated polling of
// a PBX export endpoint stays polite.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTP creates an HTTPFetcher with the given options.
func NewHTTP(opts Options) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{Timeout: opts.timeout()},
	}
	if opts.RequestsPerSec > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1)
	}
	return f
}

func (f *HTTPFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "http: rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "http: build request %s", url)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "http: get %s", url)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, eris.Errorf("http: get %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}
