// Package channels scrapes the source home page into the channel/show
// catalogue. The catalogue changes rarely, so it is cached in memory for a
// week and persisted to disk across restarts.
package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pbs/tvshows/internal/cache"
	"github.com/pbs/tvshows/internal/errs"
	"github.com/pbs/tvshows/internal/httputil"
	"github.com/pbs/tvshows/internal/models"
)

// StateFileName is the channel catalogue file inside the cache root. The
// cache sweeper must never remove it.
const StateFileName = "channels.json"

const (
	stateFile = StateFileName
	cacheKey  = "channels"
	expiry    = 7 * 24 * time.Hour
)

// Service owns the channel catalogue.
type Service struct {
	http        *httputil.Clients
	cache       *cache.Store
	memory      *gocache.Cache
	source      string
	parallelism int
	logger      *logrus.Logger
}

// NewService creates the channel catalogue service, priming the in-memory
// cache from the persisted file when it is still within its weekly TTL.
func NewService(clients *httputil.Clients, store *cache.Store, source string, parallelism int, logger *logrus.Logger) *Service {
	s := &Service{
		http:        clients,
		cache:       store,
		memory:      gocache.New(expiry, time.Hour),
		source:      source,
		parallelism: parallelism,
		logger:      logger,
	}
	s.loadPersisted()
	return s
}

func (s *Service) loadPersisted() {
	data, ok := s.cache.Get(stateFile)
	if !ok {
		s.logger.Info("No persisted channel catalogue")
		return
	}
	info, err := os.Stat(s.cache.Path(stateFile))
	if err != nil {
		return
	}
	remaining := time.Until(info.ModTime().Add(expiry))
	if remaining <= 0 {
		s.logger.Info("Persisted channel catalogue has expired")
		return
	}
	var channels []models.TvChannel
	if err := json.Unmarshal(data, &channels); err != nil {
		s.logger.WithError(err).Warn("Persisted channel catalogue is corrupt, ignoring it")
		return
	}
	s.memory.Set(cacheKey, channels, remaining)
	s.logger.WithField("channels", len(channels)).Info("Loaded channel catalogue")
}

// Channels returns the catalogue, scraping the source home page when the
// cached copy has expired.
func (s *Service) Channels(ctx context.Context) ([]models.TvChannel, error) {
	if cached, ok := s.memory.Get(cacheKey); ok {
		return cached.([]models.TvChannel), nil
	}
	s.logger.WithField("source", s.source).Info("Refreshing channel catalogue")
	start := time.Now()
	channels, err := s.scrape(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(channels, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(stateFile, data); err != nil {
		return nil, err
	}
	s.memory.Set(cacheKey, channels, gocache.DefaultExpiration)
	s.logger.WithFields(logrus.Fields{
		"channels": len(channels),
		"took":     time.Since(start).Round(time.Millisecond),
	}).Info("Channel catalogue refreshed")
	return channels, nil
}

// Find locates a show by channel and show title, searching the running shows
// first and the completed ones after.
func (s *Service) Find(ctx context.Context, channel, show string) (models.TvShow, bool) {
	channels, err := s.Channels(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Channel lookup failed")
		return models.TvShow{}, false
	}
	for _, ch := range channels {
		if ch.Title != channel {
			continue
		}
		for _, candidate := range append(append([]models.TvShow{}, ch.Shows...), ch.CompletedShows...) {
			if candidate.Title == show {
				return candidate, true
			}
		}
	}
	return models.TvShow{}, false
}

// Logo fetches the channel's icon bytes for relaying to the client.
func (s *Service) Logo(ctx context.Context, channel string) ([]byte, string, error) {
	channels, err := s.Channels(ctx)
	if err != nil {
		return nil, "", err
	}
	var iconURL string
	for _, ch := range channels {
		if ch.Title == channel {
			iconURL = ch.Icon
			break
		}
	}
	if iconURL == "" {
		return nil, "", fmt.Errorf("%w: no icon for channel %q", errs.ErrNotFound, channel)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.ErrFetch, err)
	}
	req.Header.Set("Referer", s.source)
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: GET %s: %v", errs.ErrFetch, iconURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: GET %s: status %d", errs.ErrFetch, iconURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errs.ErrFetch, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func (s *Service) scrape(ctx context.Context) ([]models.TvChannel, error) {
	doc, err := s.http.FetchDocument(ctx, s.source, "")
	if err != nil {
		return nil, err
	}
	channels, completedLinks := s.parseHome(doc)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	completed := make([][]models.TvShow, len(channels))
	for i := range channels {
		link, ok := completedLinks[channels[i].Title]
		if !ok {
			continue
		}
		i, link := i, link
		g.Go(func() error {
			shows, err := s.scrapeCompleted(ctx, link)
			if err != nil {
				s.logger.WithError(err).WithField("url", link).Warn("Skipping completed shows")
				return nil
			}
			completed[i] = shows
			return nil
		})
	}
	g.Wait()
	for i := range channels {
		channels[i].CompletedShows = completed[i]
	}
	return channels, nil
}

// parseHome extracts each channel column: its icon, title, show links and,
// when present, the link to its completed-shows page (which terminates the
// channel's own show list).
func (s *Service) parseHome(doc *goquery.Document) ([]models.TvChannel, map[string]string) {
	var channels []models.TvChannel
	completedLinks := make(map[string]string)
	doc.Find(".section.group .colm.span_1_of_3").Each(func(_ int, col *goquery.Selection) {
		channel := models.TvChannel{
			Title: strings.TrimSpace(col.Find("strong").First().Text()),
		}
		if src, ok := col.Find("p img").First().Attr("src"); ok {
			if icon, err := httputil.NormalizeURL(src, s.source); err == nil {
				channel.Icon = icon
			}
		}
		col.Find("ul li.cat-item a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, ok := a.Attr("href")
			if !ok || href == "" {
				return true
			}
			showURL, err := httputil.NormalizeURL(href, s.source)
			if err != nil {
				return true
			}
			title := strings.TrimSpace(a.Text())
			if strings.HasSuffix(title, "Completed Shows") {
				completedLinks[channel.Title] = showURL
				return false
			}
			channel.Shows = append(channel.Shows, models.TvShow{Title: title, URL: showURL})
			return true
		})
		channels = append(channels, channel)
	})
	return channels, completedLinks
}

func (s *Service) scrapeCompleted(ctx context.Context, pageURL string) ([]models.TvShow, error) {
	doc, err := s.http.FetchDocument(ctx, pageURL, s.source)
	if err != nil {
		return nil, err
	}
	var shows []models.TvShow
	doc.Find(".entry_content ul li ul.children li.cat-item a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		showURL, err := httputil.NormalizeURL(href, pageURL)
		if err != nil {
			return
		}
		shows = append(shows, models.TvShow{Title: strings.TrimSpace(a.Text()), URL: showURL})
	})
	return shows, nil
}
