package tilecache

import (
	"context"
	"fmt"
	"os/exec"

	"golang.org/x/time/rate"
)

// DefaultURLBase is the tile server used when the script doesn't name one.
const DefaultURLBase = "http://a.tile.thunderforest.com/cycle/"

// FetchError reports a failed tile download.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("error fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CurlFetcher downloads tiles with a curl subprocess. The optional limiter
// keeps the request rate polite towards the tile server.
type CurlFetcher struct {
	URLBase string
	APIKey  string
	Limiter *rate.Limiter
}

func NewCurlFetcher(urlBase, apiKey string) *CurlFetcher {
	if urlBase == "" {
		urlBase = DefaultURLBase
	}

	return &CurlFetcher{
		URLBase: urlBase,
		APIKey:  apiKey,
		Limiter: rate.NewLimiter(rate.Limit(4), 1),
	}
}

func (f *CurlFetcher) tileURL(key Key) string {
	url := fmt.Sprintf("%s%d/%d/%d.png",
		f.URLBase, key.Zoom, key.X, key.Y)

	if f.APIKey != "" {
		url += "?apikey=" + f.APIKey
	}

	return url
}

func (f *CurlFetcher) Fetch(ctx context.Context, key Key, path string) error {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	url := f.tileURL(key)

	cmd := exec.CommandContext(ctx, "curl",
		"--fail",
		"--location",
		"--silent",
		"--output", path,
		url)

	if err := cmd.Run(); err != nil {
		return &FetchError{URL: url, Err: err}
	}

	return nil
}
