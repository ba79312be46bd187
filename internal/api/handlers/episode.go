package handlers

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/channels"
	"github.com/pbs/tvshows/internal/errs"
	"github.com/pbs/tvshows/internal/listings"
	"github.com/pbs/tvshows/internal/metadata"
	"github.com/pbs/tvshows/internal/models"
)

// EpisodeHandler resolves a single episode's parts to playable URLs
type EpisodeHandler struct {
	channels *channels.Service
	store    *listings.Store
	metadata *metadata.Service
	logger   *logrus.Logger
}

// NewEpisodeHandler creates a new episode handler
func NewEpisodeHandler(channels *channels.Service, store *listings.Store, metadata *metadata.Service, logger *logrus.Logger) *EpisodeHandler {
	return &EpisodeHandler{channels: channels, store: store, metadata: metadata, logger: logger}
}

// ServeHTTP handles the episode endpoint
func (h *EpisodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")
	showTitle := r.PathValue("show")
	episodeTitle := r.PathValue("episode")
	h.logger.WithFields(logrus.Fields{
		"channel": channel,
		"show":    showTitle,
		"episode": episodeTitle,
	}).Info("Resolving episode")

	show, ok := h.channels.Find(r.Context(), channel, showTitle)
	if !ok {
		writeError(w, http.StatusNotFound, "no show "+showTitle+" on "+channel)
		return
	}
	listing, ok := h.store.Get(show.Key())
	if !ok {
		writeError(w, http.StatusNotFound, "no listing for "+showTitle)
		return
	}
	episodes := listing.Find(episodeTitle)
	if len(episodes) == 0 {
		writeError(w, http.StatusNotFound, "no episode "+episodeTitle)
		return
	}

	parts, err := h.metadata.ResolveEpisode(r.Context(), models.EpisodeGroup{
		Title:    episodeTitle,
		Episodes: episodes,
	})
	if err != nil {
		h.logger.WithError(err).WithField("episode", episodeTitle).Error("Episode resolution failed")
		status := http.StatusInternalServerError
		if errors.Is(err, errs.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, parts)
}
