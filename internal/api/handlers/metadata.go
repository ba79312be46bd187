package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/cache"
)

// MetadataHandler serves rewritten manifests straight from the disk cache
type MetadataHandler struct {
	cache  *cache.Store
	logger *logrus.Logger
}

// NewMetadataHandler creates a new metadata handler
func NewMetadataHandler(store *cache.Store, logger *logrus.Logger) *MetadataHandler {
	return &MetadataHandler{cache: store, logger: logger}
}

// ServeHTTP handles the metadata endpoint
func (h *MetadataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	data, ok := h.cache.Get(hash + "/" + cache.MetadataFile)
	if !ok {
		h.logger.WithField("hash", hash).Warn("Manifest not in cache")
		writeError(w, http.StatusNotFound, "no manifest for "+hash)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.Write(data)
}
