package httputil

import "testing"

func TestFindHost(t *testing.T) {
	host, err := FindHost("https://www.desitellybox.me/category/star-plus/")
	if err != nil {
		t.Fatalf("FindHost failed: %v", err)
	}
	if host != "https://www.desitellybox.me" {
		t.Errorf("Expected host URL, got %q", host)
	}

	if _, err := FindHost("not a url at all\x00"); err == nil {
		t.Error("Expected error for invalid URL")
	}
	if _, err := FindHost("/relative/path"); err == nil {
		t.Error("Expected error for URL without host")
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		raw  string
		base string
		want string
	}{
		{"https://cdn.example.com/seg1.ts", "https://host.example.com/play/index.m3u8", "https://cdn.example.com/seg1.ts"},
		{"seg1.ts", "https://host.example.com/play/index.m3u8", "https://host.example.com/play/seg1.ts"},
		{"/seg1.ts", "https://host.example.com/play/index.m3u8", "https://host.example.com/seg1.ts"},
		{"category/star-plus/star-plus-awards-concerts/", "https://www.desitellybox.me/", "https://www.desitellybox.me/category/star-plus/star-plus-awards-concerts/"},
		{"/category/star-plus/star-plus-awards-concerts/", "https://www.desitellybox.me/", "https://www.desitellybox.me/category/star-plus/star-plus-awards-concerts/"},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.raw, tt.base)
		if err != nil {
			t.Fatalf("NormalizeURL(%q, %q) failed: %v", tt.raw, tt.base, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeURL(%q, %q) = %q, want %q", tt.raw, tt.base, got, tt.want)
		}
	}
}
