package httputil

import (
	"fmt"
	"net/url"

	"github.com/pbs/tvshows/internal/errs"
)

// FindHost returns "scheme://host" for the given URL.
func FindHost(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", errs.ErrParse, rawURL, err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("%w: no host name in %q", errs.ErrParse, rawURL)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// NormalizeURL returns rawURL unchanged when it is absolute; otherwise it is
// resolved against base.
func NormalizeURL(rawURL, base string) (string, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", errs.ErrParse, rawURL, err)
	}
	if ref.IsAbs() {
		return rawURL, nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: base %q: %v", errs.ErrParse, base, err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}
