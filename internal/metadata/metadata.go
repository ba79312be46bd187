// Package metadata turns a source link into a cached, proxy-relative playable
// location: a rewritten HLS manifest for segmented providers or a single
// proxied file URL for direct-file providers.
package metadata

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/cache"
	"github.com/pbs/tvshows/internal/errs"
	"github.com/pbs/tvshows/internal/httputil"
	"github.com/pbs/tvshows/internal/models"
	"github.com/pbs/tvshows/internal/providers"
)

const (
	streamInfoMarker = "#EXT-X-STREAM-INF"
	segmentMarker    = "#EXTINF"
)

// Service resolves source links and caches the result keyed by link hash.
type Service struct {
	cache    *cache.Store
	http     *httputil.Clients
	registry *providers.Registry
	source   string // Referer sent when fetching embed pages
	logger   *logrus.Logger
}

// NewService creates the metadata service. source is the listing site URL
// whose host the embed pages expect as Referer.
func NewService(store *cache.Store, clients *httputil.Clients, registry *providers.Registry, source string, logger *logrus.Logger) *Service {
	return &Service{
		cache:    store,
		http:     clients,
		registry: registry,
		source:   source,
		logger:   logger,
	}
}

// FetchMetadata resolves one source link into a proxy-relative URL. The
// result is cached under hash(link); later calls are idempotent cache hits
// that never touch upstream.
func (s *Service) FetchMetadata(ctx context.Context, provider models.VideoProvider, link string) (string, error) {
	s.logger.WithFields(logrus.Fields{
		"provider": provider,
		"link":     link,
	}).Debug("Loading metadata")

	hash := cache.Hash(link)
	key := hash + "/" + cache.MetadataFile
	if data, ok := s.cache.Get(key); ok {
		if provider.DirectFile() {
			return string(data), nil
		}
		return metadataPath(hash), nil
	}

	embedHTML, err := s.http.FetchText(ctx, link, s.source)
	if err != nil {
		return "", err
	}
	resolver, err := s.registry.For(provider)
	if err != nil {
		return "", err
	}
	mediaURL, referer, err := resolver.Resolve(ctx, embedHTML, link)
	if err != nil {
		return "", err
	}
	s.logger.WithFields(logrus.Fields{
		"media_url": mediaURL,
		"referer":   referer,
	}).Info("Found media URL")

	if provider.DirectFile() {
		proxyURL := fmt.Sprintf("/media?is_mp4=true&hash=%s&url=%s&referer=%s",
			hash, url.QueryEscape(mediaURL), url.QueryEscape(referer))
		if err := s.cache.Put(key, []byte(proxyURL)); err != nil {
			return "", err
		}
		return proxyURL, nil
	}

	rewritten, err := s.buildManifest(ctx, mediaURL, referer, hash)
	if err != nil {
		return "", err
	}
	if err := s.cache.Put(key, []byte(rewritten)); err != nil {
		return "", err
	}
	return metadataPath(hash), nil
}

// buildManifest fetches the master playlist, follows its highest-bitrate
// variant and rewrites that variant so every segment flows through the proxy.
func (s *Service) buildManifest(ctx context.Context, masterURL, referer, hash string) (string, error) {
	master, err := s.http.FetchText(ctx, masterURL, referer)
	if err != nil {
		return "", err
	}
	variantLine, err := bestVariant(master)
	if err != nil {
		return "", err
	}
	variantURL, err := httputil.NormalizeURL(variantLine, masterURL)
	if err != nil {
		return "", err
	}
	s.logger.WithField("variant", variantURL).Info("Selected variant stream")

	variant, err := s.http.FetchText(ctx, variantURL, referer)
	if err != nil {
		return "", err
	}
	return rewriteManifest(variant, variantURL, referer, hash)
}

// bestVariant returns the URL line of the highest-bitrate variant: the line
// immediately following the last stream-info marker, scanning from the end.
func bestVariant(master string) (string, error) {
	lines := strings.Split(master, "\n")
	for i := len(lines) - 1; i > 0; i-- {
		if strings.HasPrefix(lines[i-1], streamInfoMarker) {
			return strings.TrimSpace(lines[i]), nil
		}
	}
	return "", fmt.Errorf("%w: no variant stream in manifest", errs.ErrParse)
}

// rewriteManifest replaces every segment URL (the line after a segment
// duration marker) with a proxy-relative media URL, normalizing segments
// against the variant manifest's own URL first.
func rewriteManifest(manifest, variantURL, referer, hash string) (string, error) {
	encodedReferer := url.QueryEscape(referer)
	lines := strings.Split(manifest, "\n")
	result := make([]string, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		result = append(result, line)
		if !strings.HasPrefix(line, segmentMarker) || i+1 >= len(lines) {
			continue
		}
		i++
		segment, err := httputil.NormalizeURL(strings.TrimSpace(lines[i]), variantURL)
		if err != nil {
			return "", err
		}
		result = append(result, fmt.Sprintf("/media?hash=%s&url=%s&referer=%s",
			hash, url.QueryEscape(segment), encodedReferer))
	}
	return strings.Join(result, "\n"), nil
}

func metadataPath(hash string) string {
	return "/metadata/" + hash + "/" + cache.MetadataFile
}
