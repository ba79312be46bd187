package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/channels"
	"github.com/pbs/tvshows/internal/models"
)

// HomeHandler serves the channel catalogue
type HomeHandler struct {
	channels *channels.Service
	logger   *logrus.Logger
}

// NewHomeHandler creates a new home handler
func NewHomeHandler(channels *channels.Service, logger *logrus.Logger) *HomeHandler {
	return &HomeHandler{channels: channels, logger: logger}
}

type channelResponse struct {
	Title     string   `json:"title"`
	Icon      string   `json:"icon,omitempty"`
	Shows     []string `json:"shows"`
	Completed []string `json:"completed"`
}

func titles(shows []models.TvShow) []string {
	out := make([]string, 0, len(shows))
	for _, show := range shows {
		out = append(out, show.Title)
	}
	return out
}

// ServeHTTP handles the home endpoint
func (h *HomeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	catalogue, err := h.channels.Channels(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to load channel catalogue")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response := make([]channelResponse, 0, len(catalogue))
	for _, channel := range catalogue {
		response = append(response, channelResponse{
			Title:     channel.Title,
			Icon:      channel.Icon,
			Shows:     titles(channel.Shows),
			Completed: titles(channel.CompletedShows),
		})
	}
	writeJSON(w, http.StatusOK, response)
}
