package listings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pbs/tvshows/internal/httputil"
	"github.com/pbs/tvshows/internal/models"
)

// Scraper turns one listing page of a show into episode groups: it collects
// the episode links on the page, then fetches every episode page concurrently
// to extract the per-provider part links.
type Scraper struct {
	http        *httputil.Clients
	parallelism int
	logger      *logrus.Logger
}

func NewScraper(clients *httputil.Clients, parallelism int, logger *logrus.Logger) *Scraper {
	return &Scraper{http: clients, parallelism: parallelism, logger: logger}
}

// ScrapePage loads one listing page and returns its episode groups plus the
// pagination state found on the page. Episode pages that fail to load or
// carry no provider sections are skipped, not fatal.
func (s *Scraper) ScrapePage(ctx context.Context, pageURL string) ([]models.EpisodeGroup, int, int, error) {
	referer, err := httputil.FindHost(pageURL)
	if err != nil {
		return nil, 0, 0, err
	}
	doc, err := s.http.FetchDocument(ctx, pageURL, referer)
	if err != nil {
		return nil, 0, 0, err
	}
	links, curPage, lastPage := parseEpisodeLinks(doc)
	s.logger.WithFields(logrus.Fields{
		"page":      pageURL,
		"episodes":  len(links),
		"cur_page":  curPage,
		"last_page": lastPage,
	}).Info("Parsed listing page")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	scraped := make([]models.EpisodeGroup, len(links))
	for i, link := range links {
		i, link := i, link
		g.Go(func() error {
			group, err := s.scrapeEpisode(ctx, link, pageURL)
			if err != nil {
				s.logger.WithError(err).WithField("episode", link).Warn("Skipping episode page")
				return nil
			}
			scraped[i] = group
			return nil
		})
	}
	g.Wait()

	groups := make([]models.EpisodeGroup, 0, len(scraped))
	counts := make(map[string]int, len(scraped))
	for _, group := range scraped {
		if len(group.Episodes) == 0 {
			continue
		}
		counts[group.Title]++
		if n := counts[group.Title]; n > 1 {
			group.Title = fmt.Sprintf("%s - %d", group.Title, n)
		}
		groups = append(groups, group)
	}
	return groups, curPage, lastPage, nil
}

// parseEpisodeLinks extracts the episode page links, skipping text-only posts,
// and the pagination numbers. A page past the last numbered link (the final
// page shows no trailing page links) reports itself as the last page.
func parseEpisodeLinks(doc *goquery.Document) ([]string, int, int) {
	var links []string
	doc.Find(".post .item_content h4 a").Each(func(_ int, a *goquery.Selection) {
		title := strings.TrimSpace(a.Text())
		if strings.HasSuffix(title, "Written Update") || strings.Contains(title, "Preview") {
			return
		}
		if href, ok := a.Attr("href"); ok {
			links = append(links, href)
		}
	})

	curPage := 1
	if text := doc.Find("ul.page-numbers li span.page-numbers.current").First().Text(); text != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			curPage = n
		}
	}
	lastPage := curPage
	if text := doc.Find("ul.page-numbers li a.page-numbers:not(.prev):not(.next)").Last().Text(); text != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			lastPage = n
		}
	}
	if curPage == lastPage+1 {
		lastPage = curPage
	}
	return links, curPage, lastPage
}

func (s *Scraper) scrapeEpisode(ctx context.Context, episodeURL, referer string) (models.EpisodeGroup, error) {
	doc, err := s.http.FetchDocument(ctx, episodeURL, referer)
	if err != nil {
		return models.EpisodeGroup{}, err
	}
	return parseEpisode(doc), nil
}

// parseEpisode walks the episode page's paragraphs as a little state machine:
// a paragraph with a bolded span names the provider of the part links in the
// paragraphs that follow, until the next provider heading or an empty
// paragraph closes the section.
func parseEpisode(doc *goquery.Document) models.EpisodeGroup {
	var (
		episodes    []models.Episode
		curProvider models.VideoProvider
		haveCur     bool
		parts       []models.PartLink
	)
	flush := func() {
		if haveCur && len(parts) > 0 {
			episodes = append(episodes, models.Episode{Provider: curProvider, Links: parts})
		}
		haveCur = false
		parts = nil
	}

	doc.Find(".post .shortcode-content .entry_content p:not(#replace1)").Each(func(_ int, p *goquery.Selection) {
		if span := p.Find("b span"); span.Length() > 0 {
			flush()
			if provider := models.FindProvider(span.First().Text()); provider != "" {
				curProvider, haveCur = provider, true
			}
			return
		}
		if !haveCur {
			return
		}
		anchors := p.Find("a")
		if anchors.Length() == 0 {
			flush()
			return
		}
		anchors.Each(func(_ int, a *goquery.Selection) {
			if href, ok := a.Attr("href"); ok {
				parts = append(parts, models.PartLink{Title: strings.TrimSpace(a.Text()), URL: href})
			}
		})
	})
	flush()

	title := strings.TrimSpace(doc.Find("h1.name.entry_title span").First().Text())
	if title == "" {
		title = "NA"
	}
	return models.EpisodeGroup{Title: title, Episodes: episodes}
}
