package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pbs/tvshows/internal/errs"
	"github.com/pbs/tvshows/internal/models"
)

// episodeServer serves embed pages whose behavior is keyed by path: "good"
// pages resolve to a playable manifest, "broken" embed pages carry no iframe,
// "empty" player pages carry no source object.
func episodeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/embed/good/", func(w http.ResponseWriter, r *http.Request) {
		part := strings.TrimPrefix(r.URL.Path, "/embed/good/")
		fmt.Fprintf(w, `<iframe allowfullscreen src="/player/good/%s"></iframe>`, part)
	})
	mux.HandleFunc("/embed/broken/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>no player here</body></html>`)
	})
	mux.HandleFunc("/embed/empty/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<iframe allowfullscreen src="/player/empty"></iframe>`)
	})
	mux.HandleFunc("/player/empty", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<script>console.log("nothing to see")</script>`)
	})
	mux.HandleFunc("/player/good/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<script>var p = { sources: [{file:"%s/master.m3u8", "src":"%s/master.m3u8"}] };</script>`,
			server.URL, server.URL)
	})
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\nindex.m3u8")
	})
	mux.HandleFunc("/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n#EXTINF:10.0,\nseg0.ts\n#EXT-X-ENDLIST")
	})
	return server
}

func TestResolveEpisodeFallsBackByPriority(t *testing.T) {
	server := episodeServer(t)
	service, _ := newTestService(t, server.URL)

	group := models.EpisodeGroup{
		Title: "Episode 1",
		Episodes: []models.Episode{
			// Listed out of priority order on purpose.
			{Provider: models.ProviderFlashPlayer, Links: []models.PartLink{
				{Title: "Part 1", URL: server.URL + "/embed/good/p1"},
				{Title: "Part 2", URL: server.URL + "/embed/good/p2"},
			}},
			{Provider: models.ProviderTVLogy, Links: []models.PartLink{
				{Title: "Part 1", URL: server.URL + "/embed/broken/p1"},
			}},
		},
	}

	parts, err := service.ResolveEpisode(context.Background(), group)
	if err != nil {
		t.Fatalf("ResolveEpisode() error = %v", err)
	}
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if parts[0].Title != "Part 1" || parts[1].Title != "Part 2" {
		t.Errorf("part order lost: %+v", parts)
	}
	for _, part := range parts {
		if !strings.HasPrefix(part.URL, "/metadata/") {
			t.Errorf("part %q not resolved to a proxied manifest: %q", part.Title, part.URL)
		}
	}
}

func TestResolveEpisodeDiscardsPartialProvider(t *testing.T) {
	server := episodeServer(t)
	service, _ := newTestService(t, server.URL)

	group := models.EpisodeGroup{
		Title: "Episode 2",
		Episodes: []models.Episode{
			// Higher-priority provider has one dead part out of two.
			{Provider: models.ProviderFlashPlayer, Links: []models.PartLink{
				{Title: "Part 1", URL: server.URL + "/embed/good/x1"},
				{Title: "Part 2", URL: server.URL + "/embed/broken/x2"},
			}},
			{Provider: models.ProviderDailyMotion, Links: []models.PartLink{
				{Title: "Part 1", URL: server.URL + "/embed/good/x3"},
			}},
		},
	}

	parts, err := service.ResolveEpisode(context.Background(), group)
	if err != nil {
		t.Fatalf("ResolveEpisode() error = %v", err)
	}
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want the single fallback part", len(parts))
	}
	if !strings.HasPrefix(parts[0].URL, "/metadata/") {
		t.Errorf("fallback part not resolved: %q", parts[0].URL)
	}
}

func TestResolveEpisodeExhausted(t *testing.T) {
	server := episodeServer(t)
	service, _ := newTestService(t, server.URL)

	group := models.EpisodeGroup{
		Title: "Episode 3",
		Episodes: []models.Episode{
			{Provider: models.ProviderFlashPlayer, Links: []models.PartLink{
				{Title: "Part 1", URL: server.URL + "/embed/empty/y1"},
			}},
		},
	}

	_, err := service.ResolveEpisode(context.Background(), group)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("ResolveEpisode() error = %v, want ErrNotFound", err)
	}
}
