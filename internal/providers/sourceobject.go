package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/errs"
	"github.com/pbs/tvshows/internal/httputil"
	"github.com/pbs/tvshows/internal/models"
)

// SourceObject resolves players that declare their stream in a plain
// "sources:" object literal in the iframe page. FlashPlayer keeps the URL in
// a "file" field; DailyMotion and NetflixPlayer use "src". No script runs.
type SourceObject struct {
	http   *httputil.Clients
	logger *logrus.Logger
	name   models.VideoProvider
	field  string
}

func (s *SourceObject) Resolve(ctx context.Context, embedHTML, referer string) (string, string, error) {
	start := time.Now()
	iframeSrc, err := findIframe(embedHTML, referer)
	if err != nil {
		return "", "", err
	}
	s.logger.WithField("iframe", iframeSrc).Debug("Got iframe src")

	host, err := httputil.FindHost(referer)
	if err != nil {
		return "", "", err
	}
	html, err := s.http.FetchText(ctx, iframeSrc, host)
	if err != nil {
		return "", "", err
	}
	obj, ok := findSource(html)
	if !ok {
		return "", "", fmt.Errorf("%w: failed to find video source in %s", errs.ErrParse, iframeSrc)
	}
	mediaURL, err := extractField(obj, s.field)
	if err != nil {
		return "", "", err
	}

	s.logger.WithFields(logrus.Fields{
		"provider":    s.name,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Resolved stream from source object")
	return mediaURL, iframeSrc, nil
}
