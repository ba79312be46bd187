package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/channels"
	"github.com/pbs/tvshows/internal/errs"
)

// LogoHandler relays channel icon bytes
type LogoHandler struct {
	channels *channels.Service
	logger   *logrus.Logger
}

// NewLogoHandler creates a new logo handler
func NewLogoHandler(channels *channels.Service, logger *logrus.Logger) *LogoHandler {
	return &LogoHandler{channels: channels, logger: logger}
}

// ServeHTTP handles the logo endpoint
func (h *LogoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := strings.TrimSpace(r.PathValue("channel"))
	data, contentType, err := h.channels.Logo(r.Context(), channel)
	if err != nil {
		h.logger.WithError(err).WithField("channel", channel).Warn("Logo fetch failed")
		status := http.StatusBadGateway
		if errors.Is(err, errs.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Write(data)
}
