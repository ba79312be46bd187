package models

// TvChannel is a broadcaster with its current and completed shows.
type TvChannel struct {
	Title          string   `json:"title"`
	Icon           string   `json:"icon,omitempty"`
	Shows          []TvShow `json:"shows"`
	CompletedShows []TvShow `json:"completed_shows"`
}

// TvShow is a single show with its canonical listing URL.
type TvShow struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Key is the listing-cache key for the show.
func (s TvShow) Key() string {
	return s.Title + ":" + s.URL
}

// PartLink is one part of an episode: its on-page title and source link.
type PartLink struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Episode groups the part links one provider offers for an episode.
type Episode struct {
	Provider VideoProvider `json:"provider"`
	Links    []PartLink    `json:"links"`
}

// EpisodeGroup is one episode title with every provider entry scraped for it.
type EpisodeGroup struct {
	Title    string    `json:"title"`
	Episodes []Episode `json:"episodes"`
}

// EpisodeListing is the paginated episode catalogue of one show.
// CurPage never exceeds LastPage; the listing is complete when they are equal.
type EpisodeListing struct {
	Episodes []EpisodeGroup `json:"episodes"`
	CurPage  int            `json:"cur_page"`
	LastPage int            `json:"last_page"`
}

// Complete reports whether every page of the listing has been scraped.
func (l EpisodeListing) Complete() bool {
	return l.CurPage >= l.LastPage
}

// Find returns the provider entries for the episode with the given title.
func (l EpisodeListing) Find(title string) []Episode {
	for _, group := range l.Episodes {
		if group.Title == title {
			return group.Episodes
		}
	}
	return nil
}
