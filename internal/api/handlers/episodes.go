package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/channels"
	"github.com/pbs/tvshows/internal/listings"
	"github.com/pbs/tvshows/internal/models"
)

// EpisodesHandler serves the episode listing of a show
type EpisodesHandler struct {
	channels  *channels.Service
	store     *listings.Store
	coalescer *listings.Coalescer
	logger    *logrus.Logger
}

// NewEpisodesHandler creates a new episodes handler
func NewEpisodesHandler(channels *channels.Service, store *listings.Store, coalescer *listings.Coalescer, logger *logrus.Logger) *EpisodesHandler {
	return &EpisodesHandler{channels: channels, store: store, coalescer: coalescer, logger: logger}
}

type episodesResponse struct {
	Episodes []string `json:"episodes"`
	HasMore  bool     `json:"has_more"`
}

func toEpisodesResponse(listing models.EpisodeListing) episodesResponse {
	episodes := make([]string, 0, len(listing.Episodes))
	for _, group := range listing.Episodes {
		episodes = append(episodes, group.Title)
	}
	return episodesResponse{Episodes: episodes, HasMore: !listing.Complete()}
}

// ServeHTTP handles the episodes endpoint. Without load_more a cached
// listing, complete or not, is answered directly; load_more=true queues a
// scrape of the next page.
func (h *EpisodesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	showTitle := r.PathValue("show")
	loadMore := r.URL.Query().Get("load_more") == "true"
	h.logger.WithFields(logrus.Fields{
		"channel":   channel,
		"show":      showTitle,
		"load_more": loadMore,
	}).Info("Fetching episodes")

	show, ok := h.channels.Find(r.Context(), channel, showTitle)
	if !ok {
		writeError(w, http.StatusNotFound, "no show "+showTitle+" on "+channel)
		return
	}

	if listing, ok := h.store.Get(show.Key()); ok && !loadMore {
		writeJSON(w, http.StatusOK, toEpisodesResponse(listing))
		return
	}

	start := time.Now()
	listing, err := h.coalescer.Episodes(r.Context(), show)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.WithField("took", time.Since(start).Round(time.Millisecond)).
		Info("Episode listing served")
	writeJSON(w, http.StatusOK, toEpisodesResponse(listing))
}
