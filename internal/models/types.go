package models

import "strings"

// VideoProvider identifies the hosting backend behind an episode part link.
type VideoProvider string

const (
	ProviderTVLogy        VideoProvider = "TVLogy"
	ProviderFlashPlayer   VideoProvider = "FlashPlayer"
	ProviderDailyMotion   VideoProvider = "DailyMotion"
	ProviderNetflixPlayer VideoProvider = "NetflixPlayer"
	ProviderSpeed         VideoProvider = "Speed"
	ProviderVkprime       VideoProvider = "Vkprime"
)

// ProviderPriority is the order in which providers are tried when an episode
// offers more than one. Earlier entries win.
var ProviderPriority = []VideoProvider{
	ProviderTVLogy,
	ProviderFlashPlayer,
	ProviderDailyMotion,
	ProviderNetflixPlayer,
	ProviderSpeed,
	ProviderVkprime,
}

// FindProvider recognizes a provider from the label text on an episode page.
// Returns "" when the text matches no known provider.
func FindProvider(text string) VideoProvider {
	switch {
	case strings.Contains(text, "TVLogy"):
		return ProviderTVLogy
	case strings.Contains(text, "Flash Player"):
		return ProviderFlashPlayer
	case strings.Contains(text, "Dailymotion"):
		return ProviderDailyMotion
	case strings.Contains(text, "Netflix Player"):
		return ProviderNetflixPlayer
	case strings.Contains(text, "Speed"):
		return ProviderSpeed
	case strings.Contains(text, "Vkprime"):
		return ProviderVkprime
	}
	return ""
}

// DirectFile reports whether the provider resolves to a single playable file
// rather than a segmented manifest.
func (p VideoProvider) DirectFile() bool {
	return p == ProviderSpeed || p == ProviderVkprime
}

// Priority returns the provider's position in ProviderPriority; unknown
// providers sort last.
func (p VideoProvider) Priority() int {
	for i, known := range ProviderPriority {
		if p == known {
			return i
		}
	}
	return len(ProviderPriority)
}
