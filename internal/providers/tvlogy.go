package providers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/errs"
	"github.com/pbs/tvshows/internal/httputil"
	"github.com/pbs/tvshows/internal/sandbox"
)

// TVLogy resolves streams served via the TVLogy player. A same-origin JSON
// endpoint is tried first; on any failure the obfuscated unpacker script in
// the iframe page is run through the sandbox instead.
type TVLogy struct {
	http   *httputil.Clients
	logger *logrus.Logger
}

func (t *TVLogy) Resolve(ctx context.Context, embedHTML, referer string) (string, string, error) {
	start := time.Now()
	iframeSrc, err := findIframe(embedHTML, referer)
	if err != nil {
		return "", "", err
	}
	t.logger.WithField("iframe", iframeSrc).Debug("Got iframe src")

	mediaURL, err := t.resolveEndpoint(ctx, iframeSrc)
	if err != nil {
		t.logger.WithError(err).Warn("TVLogy endpoint resolution failed, trying unpacker script")
		mediaURL, err = t.resolveScript(ctx, iframeSrc, referer)
		if err != nil {
			return "", "", err
		}
	}

	t.logger.WithField("duration_ms", time.Since(start).Milliseconds()).Info("Resolved TVLogy stream")
	return mediaURL, iframeSrc, nil
}

// resolveEndpoint asks the player's own XHR endpoint for the video source.
func (t *TVLogy) resolveEndpoint(ctx context.Context, iframeSrc string) (string, error) {
	body, err := t.http.PostText(ctx, iframeSrc+"&do=getVideo", map[string]string{
		"Referer":          iframeSrc,
		"X-Requested-With": "XMLHttpRequest",
	})
	if err != nil {
		return "", err
	}
	var payload struct {
		VideoSource string `json:"videoSource"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return "", fmt.Errorf("%w: decoding getVideo response: %v", errs.ErrParse, err)
	}
	if payload.VideoSource == "" {
		return "", fmt.Errorf("%w: getVideo response had no videoSource", errs.ErrParse)
	}
	return payload.VideoSource, nil
}

// resolveScript runs the iframe's eval(...) unpacker in the sandbox and
// rebuilds the media URL from its output variables.
func (t *TVLogy) resolveScript(ctx context.Context, iframeSrc, referer string) (string, error) {
	host, err := httputil.FindHost(referer)
	if err != nil {
		return "", err
	}
	html, err := t.http.FetchText(ctx, iframeSrc, host)
	if err != nil {
		return "", err
	}
	evalSrc, ok := findEval(html)
	if !ok {
		return "", fmt.Errorf("%w: couldn't find eval script in %s", errs.ErrParse, iframeSrc)
	}
	res, err := sandbox.Evaluate(evalSrc)
	if err != nil {
		return "", err
	}
	mediaURL, err := httputil.NormalizeURL(res.VideoURL, iframeSrc)
	if err != nil {
		return "", err
	}
	disk := base64.StdEncoding.EncodeToString([]byte(res.Disk))
	return fmt.Sprintf("%s?s=%s&d=%s", mediaURL, res.Server, disk), nil
}
