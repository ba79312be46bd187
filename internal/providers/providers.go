// Package providers implements one resolution strategy per hosting backend.
// Each strategy consumes an embed page and produces the raw media URL
// together with the Referer the origin expects on subsequent requests.
package providers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/errs"
	"github.com/pbs/tvshows/internal/httputil"
	"github.com/pbs/tvshows/internal/models"
)

// Resolver turns an embed page into a playable media URL.
type Resolver interface {
	// Resolve returns the media URL and the Referer that must accompany
	// requests for it.
	Resolve(ctx context.Context, embedHTML, referer string) (mediaURL, effectiveReferer string, err error)
}

// Registry maps providers to their resolution strategies.
type Registry struct {
	resolvers map[models.VideoProvider]Resolver
}

// NewRegistry wires every known provider strategy.
func NewRegistry(clients *httputil.Clients, logger *logrus.Logger) *Registry {
	return &Registry{resolvers: map[models.VideoProvider]Resolver{
		models.ProviderTVLogy:        &TVLogy{http: clients, logger: logger},
		models.ProviderFlashPlayer:   &SourceObject{http: clients, logger: logger, name: models.ProviderFlashPlayer, field: "file"},
		models.ProviderDailyMotion:   &SourceObject{http: clients, logger: logger, name: models.ProviderDailyMotion, field: "src"},
		models.ProviderNetflixPlayer: &SourceObject{http: clients, logger: logger, name: models.ProviderNetflixPlayer, field: "src"},
		models.ProviderSpeed:         &Speed{http: clients, logger: logger, name: models.ProviderSpeed},
		models.ProviderVkprime:       &Speed{http: clients, logger: logger, name: models.ProviderVkprime},
	}}
}

// For returns the strategy for a provider.
func (r *Registry) For(p models.VideoProvider) (Resolver, error) {
	resolver, ok := r.resolvers[p]
	if !ok {
		return nil, fmt.Errorf("%w: no resolver for provider %q", errs.ErrNotFound, p)
	}
	return resolver, nil
}

// findIframe extracts the embed player iframe src from the page and resolves
// it against baseURL.
func findIframe(html, baseURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrParse, err)
	}
	src, ok := doc.Find("iframe[allowfullscreen]").First().Attr("src")
	if !ok {
		return "", fmt.Errorf("%w: failed to find iframe", errs.ErrParse)
	}
	return httputil.NormalizeURL(src, baseURL)
}

// findEval returns the eval(...) call embedded in the page, located by a
// balanced-parenthesis scan from the first "eval(".
func findEval(html string) (string, bool) {
	start := strings.Index(html, "eval(")
	if start < 0 {
		return "", false
	}
	text := html[start:]
	depth := 0
	for i, ch := range text {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		default:
			continue
		}
		if depth == 0 {
			return text[:i+1], true
		}
	}
	return "", false
}

// findSource returns the object literal following "sources:", located by a
// balanced-brace scan. The literal uses unquoted keys, so it is not JSON.
func findSource(html string) (string, bool) {
	idx := strings.Index(html, "sources:")
	if idx < 0 {
		return "", false
	}
	text := html[idx:]
	open := strings.IndexByte(text, '{')
	if open < 0 {
		return "", false
	}
	text = text[open:]
	depth := 0
	for i, ch := range text {
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
		default:
			continue
		}
		if depth == 0 {
			return text[:i+1], true
		}
	}
	return "", false
}

// extractField pulls a quoted string value out of a JS object literal whose
// keys may be unquoted.
func extractField(obj, field string) (string, error) {
	re := regexp.MustCompile(`(?:"` + field + `"|` + field + `)\s*:\s*"((?:[^"\\]|\\.)*)"`)
	match := re.FindStringSubmatch(obj)
	if match == nil {
		return "", fmt.Errorf("%w: field %q not found in source object", errs.ErrParse, field)
	}
	return strings.ReplaceAll(match[1], `\/`, "/"), nil
}
