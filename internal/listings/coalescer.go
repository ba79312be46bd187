package listings

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/models"
)

type request struct {
	show  models.TvShow
	reply chan models.EpisodeListing
}

// requestQueue is an unbounded backlog. Enqueues never block; the worker
// pops the newest entry first.
type requestQueue struct {
	mu     sync.Mutex
	items  []request
	notify chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{notify: make(chan struct{}, 1)}
}

func (q *requestQueue) push(req request) {
	q.mu.Lock()
	q.items = append(q.items, req)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *requestQueue) popNewest() (request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return request{}, false
	}
	req := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return req, true
}

// Coalescer serializes listing scrapes through a single worker goroutine.
// Concurrent requests for the same show all queue up; the first one scrapes
// and the rest are answered from the freshly cached listing. The backlog is
// served LIFO so the most recently requested show, the one a user is looking
// at right now, is scraped first.
type Coalescer struct {
	store   *Store
	scraper *Scraper
	queue   *requestQueue
	logger  *logrus.Logger
}

func NewCoalescer(store *Store, scraper *Scraper, logger *logrus.Logger) *Coalescer {
	return &Coalescer{
		store:   store,
		scraper: scraper,
		queue:   newRequestQueue(),
		logger:  logger,
	}
}

// Episodes returns the listing for show, scraping one more page when the
// cached listing is absent or incomplete. Enqueueing never blocks no matter
// how deep the backlog is.
func (c *Coalescer) Episodes(ctx context.Context, show models.TvShow) (models.EpisodeListing, error) {
	reply := make(chan models.EpisodeListing, 1)
	c.queue.push(request{show: show, reply: reply})
	select {
	case listing := <-reply:
		return listing, nil
	case <-ctx.Done():
		return models.EpisodeListing{}, ctx.Err()
	}
}

// Run is the worker loop, popping the newest backlog entry until ctx is done.
func (c *Coalescer) Run(ctx context.Context) {
	for {
		req, ok := c.queue.popNewest()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-c.queue.notify:
			}
			continue
		}
		req.reply <- c.process(ctx, req.show)
	}
}

func (c *Coalescer) process(ctx context.Context, show models.TvShow) models.EpisodeListing {
	key := show.Key()
	listing, cached := c.store.Get(key)
	if cached && listing.Complete() {
		c.logger.WithField("show", show.Title).Info("Every page already scraped")
		return listing
	}

	pageURL := show.URL
	if cached {
		pageURL = fmt.Sprintf("%spage/%d/", show.URL, listing.CurPage+1)
	}
	c.logger.WithFields(logrus.Fields{
		"show": show.Title,
		"page": pageURL,
	}).Info("Scraping listing page")

	groups, curPage, lastPage, err := c.scraper.ScrapePage(ctx, pageURL)
	if err != nil {
		// Keep and answer with whatever we had; the next request retries.
		c.logger.WithError(err).WithField("show", show.Title).Warn("Listing scrape failed")
		return listing
	}
	listing.Episodes = append(listing.Episodes, groups...)
	listing.CurPage = curPage
	listing.LastPage = lastPage
	c.store.Put(key, listing)
	return listing
}
