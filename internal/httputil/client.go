package httputil

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/errs"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/98.0.4758.109 Safari/537.36"

const maxFetchRetries = 2

// Clients bundles the primary HTTP client with a fallback whose TLS/HTTP
// stack is accepted by hosts that reject the primary one.
type Clients struct {
	Primary  *http.Client
	Fallback *http.Client
	logger   *logrus.Logger
}

// NewClients creates the shared HTTP clients. Both carry a cookie jar and the
// same timeout; the fallback skips certificate verification and is pinned to
// HTTP/1.1.
func NewClients(timeout time.Duration, logger *logrus.Logger) (*Clients, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	fallbackJar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	fallbackTransport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		// An empty map disables HTTP/2 negotiation.
		TLSNextProto: map[string]func(string, *tls.Conn) http.RoundTripper{},
	}

	return &Clients{
		Primary: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		Fallback: &http.Client{
			Timeout:   timeout,
			Jar:       fallbackJar,
			Transport: fallbackTransport,
		},
		logger: logger,
	}, nil
}

// Do executes the request with the primary client, setting the shared
// User-Agent when none is present.
func (c *Clients) Do(req *http.Request) (*http.Response, error) {
	return c.DoWith(c.Primary, req)
}

// DoWith executes the request with the given client, setting the shared
// User-Agent when none is present.
func (c *Clients) DoWith(client *http.Client, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return client.Do(req)
}

// FetchText GETs url with the given Referer and returns the response body as
// a string. Transient failures are retried with exponential backoff.
func (c *Clients) FetchText(ctx context.Context, url, referer string) (string, error) {
	var body string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		if referer != "" {
			req.Header.Set("Referer", referer)
		}
		resp, err := c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("status %d from %s", resp.StatusCode, url)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = string(data)
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxFetchRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", fmt.Errorf("%w: GET %s: %v", errs.ErrFetch, url, err)
	}
	return body, nil
}

// FetchDocument GETs url with the given Referer and parses the body into a
// goquery document.
func (c *Clients) FetchDocument(ctx context.Context, url, referer string) (*goquery.Document, error) {
	body, err := c.FetchText(ctx, url, referer)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", errs.ErrParse, url, err)
	}
	return doc, nil
}

// PostText POSTs to url with the given headers and returns the response body.
// Used by provider endpoints that expect an XHR-shaped request; not retried,
// callers have their own fallback path.
func (c *Clients) PostText(ctx context.Context, url string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: POST %s: %v", errs.ErrFetch, url, err)
	}
	for key, val := range headers {
		req.Header.Set(key, val)
	}
	resp, err := c.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: POST %s: %v", errs.ErrFetch, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: POST %s: status %d", errs.ErrFetch, url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: POST %s: %v", errs.ErrFetch, url, err)
	}
	return string(data), nil
}
