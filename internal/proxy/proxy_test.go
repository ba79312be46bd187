package proxy

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pbs/tvshows/internal/httputil"
)

func newTestRelay(t *testing.T) *Relay {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	clients, err := httputil.NewClients(5*time.Second, logger)
	if err != nil {
		t.Fatalf("NewClients() error = %v", err)
	}
	return NewRelay(clients, NewTelemetry(time.Minute, logger), 32, logger)
}

func TestRelayFiltersHeaders(t *testing.T) {
	var gotHeaders http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("Content-Type", "video/mp2t")
		w.Header().Set("X-Upstream-Secret", "1")
		w.Header().Set("Accept-Ranges", "bytes")
		io.WriteString(w, "segment-bytes")
	}))
	defer upstream.Close()

	relay := newTestRelay(t)
	req := httptest.NewRequest(http.MethodGet, "/media?url="+url.QueryEscape(upstream.URL)+"&referer="+url.QueryEscape("https://origin.example.com/"), nil)
	req.Header.Set("Range", "bytes=0-")
	req.Header.Set("X-Client-Secret", "1")
	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "segment-bytes" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if gotHeaders.Get("Range") != "bytes=0-" {
		t.Error("allow-listed Range header was not forwarded")
	}
	if gotHeaders.Get("X-Client-Secret") != "" {
		t.Error("disallowed client header leaked upstream")
	}
	if gotHeaders.Get("Referer") != "https://origin.example.com/" {
		t.Errorf("Referer = %q, want the query override", gotHeaders.Get("Referer"))
	}
	if gotHeaders.Get("User-Agent") == "" {
		t.Error("User-Agent was not set")
	}
	if rec.Header().Get("Content-Type") != "video/mp2t" {
		t.Error("allow-listed response header was dropped")
	}
	if rec.Header().Get("X-Upstream-Secret") != "" {
		t.Error("disallowed upstream header leaked to client")
	}
}

func TestRelayMP4BypassesFilter(t *testing.T) {
	var gotHeaders http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		w.Header().Set("X-Upstream-Secret", "1")
		io.WriteString(w, "mp4-bytes")
	}))
	defer upstream.Close()

	relay := newTestRelay(t)
	req := httptest.NewRequest(http.MethodGet, "/media?is_mp4=true&url="+url.QueryEscape(upstream.URL), nil)
	req.Header.Set("X-Client-Secret", "1")
	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, req)

	if gotHeaders.Get("X-Client-Secret") != "1" {
		t.Error("is_mp4 request should forward every client header")
	}
	if rec.Header().Get("X-Upstream-Secret") != "1" {
		t.Error("is_mp4 response should carry every upstream header")
	}
}

func TestRelayBodyFidelity(t *testing.T) {
	payload := make([]byte, 4*1024*1024)
	if _, err := rand.Read(payload); err != nil {
		t.Fatal(err)
	}
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer upstream.Close()

	relay := newTestRelay(t)
	req := httptest.NewRequest(http.MethodGet, "/media?url="+url.QueryEscape(upstream.URL), nil)
	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, req)

	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Errorf("relayed body diverged: got %d bytes, want %d", rec.Body.Len(), len(payload))
	}
}

func TestRelayMissingURL(t *testing.T) {
	relay := newTestRelay(t)
	req := httptest.NewRequest(http.MethodGet, "/media", nil)
	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRelayRemembersBadHosts(t *testing.T) {
	relay := newTestRelay(t)
	if relay.isBadHost("cdn.example.com") {
		t.Fatal("fresh relay should have no bad hosts")
	}
	relay.markBadHost("cdn.example.com")
	if !relay.isBadHost("cdn.example.com") {
		t.Error("marked host not remembered")
	}
	if relay.isBadHost("other.example.com") {
		t.Error("unrelated host flagged bad")
	}
}

func TestRelayClientCancellationLeavesHostAlone(t *testing.T) {
	// Healthy but slow upstream: the client's deadline fires first.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()

	relay := newTestRelay(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/media?url="+url.QueryEscape(upstream.URL), nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	parsed, _ := url.Parse(upstream.URL)
	if relay.isBadHost(parsed.Hostname()) {
		t.Error("client-side cancellation marked a healthy host bad")
	}
}

func TestRelayUpstreamGone(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close()

	relay := newTestRelay(t)
	req := httptest.NewRequest(http.MethodGet, "/media?url="+url.QueryEscape(upstream.URL), nil)
	rec := httptest.NewRecorder()
	relay.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	// Both transports failed, so the host is now remembered as bad.
	parsed, _ := url.Parse(upstream.URL)
	if !relay.isBadHost(parsed.Hostname()) {
		t.Error("failed host was not remembered")
	}
}

func TestBytesPerSecond(t *testing.T) {
	tests := []struct {
		count   int64
		elapsed time.Duration
		want    string
	}{
		{2049000, time.Second, "1.95 MB/s"},
		{2000, 500 * time.Millisecond, "3.91 KB/s"},
		{2 * 1024 * 1024, 500 * time.Millisecond, "4.00 MB/s"},
		{2, 200 * time.Millisecond, "10.00 B/s"},
	}
	for _, tt := range tests {
		if got := bytesPerSecond(tt.count, tt.elapsed); got != tt.want {
			t.Errorf("bytesPerSecond(%d, %v) = %q, want %q", tt.count, tt.elapsed, got, tt.want)
		}
	}
}
