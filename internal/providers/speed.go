package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/errs"
	"github.com/pbs/tvshows/internal/httputil"
	"github.com/pbs/tvshows/internal/models"
	"github.com/pbs/tvshows/internal/sandbox"
)

// Speed resolves Speed/Vkprime players: the iframe's unpacker script is run
// through the player-setup sandbox flavor, which yields a single playable
// file rather than a manifest.
type Speed struct {
	http   *httputil.Clients
	logger *logrus.Logger
	name   models.VideoProvider
}

func (s *Speed) Resolve(ctx context.Context, embedHTML, referer string) (string, string, error) {
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
	evalSrc, ok := findEval(html)
	if !ok {
		return "", "", fmt.Errorf("%w: couldn't find eval script in %s", errs.ErrParse, iframeSrc)
	}
	src, err := sandbox.EvaluatePlayerSetup(evalSrc)
	if err != nil {
		return "", "", err
	}
	mediaURL, err := httputil.NormalizeURL(src, iframeSrc)
	if err != nil {
		return "", "", err
	}

	s.logger.WithFields(logrus.Fields{
		"provider":    s.name,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Resolved single-file stream")
	return mediaURL, iframeSrc, nil
}
