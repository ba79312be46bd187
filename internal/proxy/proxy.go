// Package proxy relays media bytes between upstream video hosts and the
// player, filtering headers through an allow-list and buffering the stream
// through a bounded channel so a slow client does not stall the upstream
// read immediately.
package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/httputil"
)

const readChunkSize = 64 * 1024

// Headers copied between client and upstream in both directions. Anything
// else is dropped unless the request is flagged is_mp4.
var allowedHeaders = map[string]struct{}{
	"access-control-allow-origin":      {},
	"access-control-allow-credentials": {},
	"accept":                           {},
	"accept-charset":                   {},
	"accept-encoding":                  {},
	"accept-ranges":                    {},
	"cache-control":                    {},
	"connection":                       {},
	"content-type":                     {},
	"content-length":                   {},
	"cookie":                           {},
	"date":                             {},
	"expires":                          {},
	"etag":                             {},
	"last-modified":                    {},
	"range":                            {},
	"vary":                             {},
}

func headerAllowed(name string) bool {
	_, ok := allowedHeaders[strings.ToLower(name)]
	return ok
}

// Relay streams upstream media responses to the client. Hosts that fail on
// the primary transport are remembered and served through the fallback
// transport for the rest of the process lifetime.
type Relay struct {
	clients   *httputil.Clients
	telemetry *Telemetry
	chunks    int
	logger    *logrus.Logger

	mu       sync.Mutex
	badHosts map[string]struct{}
}

// NewRelay creates the relay. chunks is the capacity of the per-request
// buffer channel between the upstream reader and the client writer.
func NewRelay(clients *httputil.Clients, telemetry *Telemetry, chunks int, logger *logrus.Logger) *Relay {
	return &Relay{
		clients:   clients,
		telemetry: telemetry,
		chunks:    chunks,
		logger:    logger,
		badHosts:  make(map[string]struct{}),
	}
}

func (p *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	rawURL := query.Get("url")
	if rawURL == "" {
		writeJSONError(w, http.StatusBadRequest, "no url found in query params")
		return
	}
	isMP4 := query.Get("is_mp4") == "true"
	p.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"url":    rawURL,
		"is_mp4": isMP4,
	}).Info("Relaying media")

	upstream, err := http.NewRequestWithContext(r.Context(), r.Method, rawURL, nil)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("bad upstream url: %v", err))
		return
	}
	for name, vals := range r.Header {
		if isMP4 || headerAllowed(name) {
			upstream.Header[name] = vals
		}
	}
	if referer := query.Get("referer"); referer != "" {
		upstream.Header.Set("Referer", referer)
	}

	resp, err := p.fetch(upstream)
	if err != nil {
		relayErrors.Inc()
		p.logger.WithError(err).WithField("url", rawURL).Error("Upstream fetch failed")
		writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("failed to fetch %s: %v", rawURL, err))
		return
	}
	defer resp.Body.Close()

	for name, vals := range resp.Header {
		if isMP4 || headerAllowed(name) {
			w.Header()[name] = vals
		}
	}
	w.WriteHeader(resp.StatusCode)
	p.stream(w, r, resp.Body)
}

// fetch sends the request on the primary transport, falling back to the
// permissive transport when the primary fails or the host is already known
// bad. The request body is always nil, so retrying with a clone is safe.
func (p *Relay) fetch(req *http.Request) (*http.Response, error) {
	host := req.URL.Hostname()
	if p.isBadHost(host) {
		relayRequests.WithLabelValues("fallback").Inc()
		return p.clients.DoWith(p.clients.Fallback, req)
	}

	resp, err := p.clients.DoWith(p.clients.Primary, req)
	if err == nil {
		relayRequests.WithLabelValues("primary").Inc()
		return resp, nil
	}
	if req.Context().Err() != nil {
		// The client went away or timed out; the host did nothing wrong and
		// a fallback retry would fail the same way.
		return nil, err
	}
	p.logger.WithError(err).WithField("host", host).
		Warn("Primary transport failed, switching to fallback")
	p.markBadHost(host)
	relayRequests.WithLabelValues("fallback").Inc()
	return p.clients.DoWith(p.clients.Fallback, req.Clone(req.Context()))
}

func (p *Relay) isBadHost(host string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.badHosts[host]
	return ok
}

func (p *Relay) markBadHost(host string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.badHosts[host] = struct{}{}
}

// stream pumps body to the client through a bounded channel. The reader
// goroutine keeps draining upstream while the client consumes; when the
// buffer fills it blocks until the client catches up or goes away.
func (p *Relay) stream(w http.ResponseWriter, r *http.Request, body io.Reader) {
	chunks := make(chan []byte, p.chunks)
	done := r.Context().Done()

	go func() {
		defer close(chunks)
		start := time.Now()
		var total int64
		for {
			buf := make([]byte, readChunkSize)
			n, err := body.Read(buf)
			if n > 0 {
				total += int64(n)
				p.telemetry.Add(n)
				select {
				case chunks <- buf[:n]:
				default:
					// Buffer full: block until the client drains or leaves.
					select {
					case chunks <- buf[:n]:
					case <-done:
						p.logger.Debug("Client went away, abandoning stream")
						return
					}
				}
			}
			if err != nil {
				if err != io.EOF {
					p.logger.WithError(err).Debug("Upstream read ended")
				}
				p.logger.WithField("rate", bytesPerSecond(total, time.Since(start))).
					Debug("Done reading from upstream")
				return
			}
		}
	}()

	flusher, _ := w.(http.Flusher)
	for chunk := range chunks {
		if _, err := w.Write(chunk); err != nil {
			p.logger.WithError(err).Debug("Client write failed")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
