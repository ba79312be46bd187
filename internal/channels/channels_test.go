package channels

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/cache"
	"github.com/pbs/tvshows/internal/httputil"
)

func homeServer(t *testing.T, homeHits *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt64(homeHits, 1)
		fmt.Fprint(w, `
<div class="section group">
  <div class="colm span_1_of_3">
    <p><img src="/icons/star.png"></p>
    <strong>Star Plus</strong>
    <ul>
      <li class="cat-item"><a href="/category/show-a/">Show A</a></li>
      <li class="cat-item"><a href="category/show-b/">Show B</a></li>
      <li class="cat-item"><a href="/category/star-completed/">Star Plus Completed Shows</a></li>
      <li class="cat-item"><a href="/category/ignored/">After Completed</a></li>
    </ul>
  </div>
  <div class="colm span_1_of_3">
    <strong>Colors</strong>
    <ul>
      <li class="cat-item"><a href="/category/show-c/">Show C</a></li>
    </ul>
  </div>
</div>`)
	})
	mux.HandleFunc("/category/star-completed/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `
<div class="entry_content"><ul><li>
  <ul class="children">
    <li class="cat-item"><a href="/category/old-show/">Old Show</a></li>
  </ul>
</li></ul></div>`)
	})
	mux.HandleFunc("/icons/star.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 'P', 'N', 'G'})
	})
	return server
}

func newTestService(t *testing.T, source string, dir string) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	clients, err := httputil.NewClients(5*time.Second, logger)
	if err != nil {
		t.Fatalf("NewClients() error = %v", err)
	}
	store, err := cache.New(dir)
	if err != nil {
		t.Fatalf("cache.New() error = %v", err)
	}
	return NewService(clients, store, source, 4, logger)
}

func TestChannelsScrape(t *testing.T) {
	var homeHits int64
	server := homeServer(t, &homeHits)
	service := newTestService(t, server.URL+"/", t.TempDir())

	channels, err := service.Channels(context.Background())
	if err != nil {
		t.Fatalf("Channels() error = %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("got %d channels, want 2", len(channels))
	}

	star := channels[0]
	if star.Title != "Star Plus" {
		t.Errorf("title = %q", star.Title)
	}
	if star.Icon != server.URL+"/icons/star.png" {
		t.Errorf("icon = %q", star.Icon)
	}
	if len(star.Shows) != 2 {
		t.Fatalf("got %d shows, want 2 (links after Completed Shows must be dropped): %+v", len(star.Shows), star.Shows)
	}
	// Relative hrefs are normalized against the source.
	if star.Shows[1].URL != server.URL+"/category/show-b/" {
		t.Errorf("show URL = %q", star.Shows[1].URL)
	}
	if len(star.CompletedShows) != 1 || star.CompletedShows[0].Title != "Old Show" {
		t.Errorf("completed shows = %+v", star.CompletedShows)
	}
	if len(channels[1].CompletedShows) != 0 {
		t.Errorf("Colors should have no completed shows: %+v", channels[1].CompletedShows)
	}
}

func TestChannelsCachedInMemoryAndOnDisk(t *testing.T) {
	var homeHits int64
	server := homeServer(t, &homeHits)
	dir := t.TempDir()
	service := newTestService(t, server.URL+"/", dir)
	ctx := context.Background()

	if _, err := service.Channels(ctx); err != nil {
		t.Fatalf("Channels() error = %v", err)
	}
	if _, err := service.Channels(ctx); err != nil {
		t.Fatalf("Channels() error = %v", err)
	}
	if n := atomic.LoadInt64(&homeHits); n != 1 {
		t.Errorf("home page fetched %d times, want 1", n)
	}

	// A fresh service over the same directory loads the persisted file.
	reloaded := newTestService(t, server.URL+"/", dir)
	channels, err := reloaded.Channels(ctx)
	if err != nil {
		t.Fatalf("Channels() after restart error = %v", err)
	}
	if len(channels) != 2 {
		t.Errorf("got %d channels after restart, want 2", len(channels))
	}
	if n := atomic.LoadInt64(&homeHits); n != 1 {
		t.Errorf("restart refetched the home page (%d hits)", n)
	}
}

func TestFind(t *testing.T) {
	var homeHits int64
	server := homeServer(t, &homeHits)
	service := newTestService(t, server.URL+"/", t.TempDir())
	ctx := context.Background()

	show, ok := service.Find(ctx, "Star Plus", "Show A")
	if !ok || show.URL != server.URL+"/category/show-a/" {
		t.Errorf("Find(Show A) = %+v, %v", show, ok)
	}
	// Completed shows are searched too.
	if _, ok := service.Find(ctx, "Star Plus", "Old Show"); !ok {
		t.Error("Find() missed a completed show")
	}
	if _, ok := service.Find(ctx, "Star Plus", "Nope"); ok {
		t.Error("Find() invented a show")
	}
	if _, ok := service.Find(ctx, "Nope", "Show A"); ok {
		t.Error("Find() invented a channel")
	}
}

func TestLogo(t *testing.T) {
	var homeHits int64
	server := homeServer(t, &homeHits)
	service := newTestService(t, server.URL+"/", t.TempDir())
	ctx := context.Background()

	data, contentType, err := service.Logo(ctx, "Star Plus")
	if err != nil {
		t.Fatalf("Logo() error = %v", err)
	}
	if contentType != "image/png" || len(data) != 4 {
		t.Errorf("Logo() = %d bytes of %q", len(data), contentType)
	}

	if _, _, err := service.Logo(ctx, "Colors"); err == nil {
		t.Error("Logo() for an icon-less channel should fail")
	}
}
