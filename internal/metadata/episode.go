package metadata

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pbs/tvshows/internal/errs"
	"github.com/pbs/tvshows/internal/models"
)

// ResolveEpisode walks the episode's provider variants in priority order and
// returns the parts of the first provider whose links all resolve. A provider
// is all-or-nothing: one failed part discards the whole variant.
func (s *Service) ResolveEpisode(ctx context.Context, group models.EpisodeGroup) ([]models.PartLink, error) {
	episodes := make([]models.Episode, len(group.Episodes))
	copy(episodes, group.Episodes)
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].Provider.Priority() < episodes[j].Provider.Priority()
	})

	for _, episode := range episodes {
		parts, err := s.resolveParts(ctx, episode)
		if err != nil {
			s.logger.WithField("provider", string(episode.Provider)).
				WithError(err).Warn("Provider failed, trying next")
			continue
		}
		return parts, nil
	}
	return nil, fmt.Errorf("%w: no provider could resolve %q", errs.ErrNotFound, group.Title)
}

func (s *Service) resolveParts(ctx context.Context, episode models.Episode) ([]models.PartLink, error) {
	g, ctx := errgroup.WithContext(ctx)
	parts := make([]models.PartLink, len(episode.Links))
	for i, link := range episode.Links {
		i, link := i, link
		g.Go(func() error {
			resolved, err := s.FetchMetadata(ctx, episode.Provider, link.URL)
			if err != nil {
				return err
			}
			parts[i] = models.PartLink{Title: link.Title, URL: resolved}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}
