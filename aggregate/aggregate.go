// Package aggregate wires the upstream client, the normalizer, and the
// profile cache into the pipeline's single entry point.
package aggregate

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chillgits/chillgits/cache"
	"github.com/chillgits/chillgits/github"
	"github.com/chillgits/chillgits/normalize"
	"github.com/chillgits/chillgits/profile"
)

// fetchTimeout bounds one whole aggregation's upstream round trips so
// a hanging upstream call cannot stall the request indefinitely.
const fetchTimeout = 8 * time.Second

// Fetcher is the slice of the GitHub client the service consumes.
type Fetcher interface {
	FetchUser(ctx context.Context, handle string) (github.RawUser, error)
	FetchRepos(ctx context.Context, handle string) ([]github.RawRepo, error)
	FetchEvents(ctx context.Context, handle string) ([]github.RawEvent, error)
	FetchPinned(ctx context.Context, handle string) ([]github.RawRepo, error)
	Authenticated() bool
}

// Service serves aggregated profiles, read-through against the cache.
type Service struct {
	fetcher Fetcher
	cache   *cache.ProfileCache
	logger  *slog.Logger
}

// New creates a Service.
func New(fetcher Fetcher, pc *cache.ProfileCache, logger *slog.Logger) *Service {
	return &Service{fetcher: fetcher, cache: pc, logger: logger}
}

// GetOrFetch returns the aggregation for a handle. Unless forceRefresh
// is set, a fresh cache entry short-circuits the upstream fetches; a
// miss triggers the concurrent fetch group, normalization, and a
// best-effort cache write. Partial upstream results are never
// normalized or cached.
func (s *Service) GetOrFetch(ctx context.Context, handle string, forceRefresh bool) (profile.Aggregated, error) {
	if handle == "" {
		return profile.Aggregated{}, &profile.ValidationError{Field: "handle", Reason: "must not be empty"}
	}
	if !github.ValidHandle(handle) {
		return profile.Aggregated{}, &profile.ValidationError{Field: "handle", Reason: "not a valid GitHub handle"}
	}

	if !forceRefresh {
		if agg, ok := s.cache.Get(ctx, handle); ok {
			s.logger.Debug("cache hit", "handle", handle)
			return agg, nil
		}
	}

	agg, err := s.fetch(ctx, handle)
	if err != nil {
		return profile.Aggregated{}, err
	}

	s.cache.Set(ctx, handle, agg)
	return agg, nil
}

// fetch runs the upstream calls for one aggregation concurrently and
// joins them before normalization. Any single failure fails the whole
// aggregation.
func (s *Service) fetch(ctx context.Context, handle string) (profile.Aggregated, error) {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	s.logger.InfoContext(ctx, "fetching profile", "handle", handle, "authenticated", s.fetcher.Authenticated())

	var (
		user   github.RawUser
		repos  []github.RawRepo
		events []github.RawEvent
		pinned []github.RawRepo
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.fetcher.FetchUser(gctx, handle)
		return err
	})
	g.Go(func() error {
		var err error
		repos, err = s.fetcher.FetchRepos(gctx, handle)
		return err
	})
	g.Go(func() error {
		var err error
		events, err = s.fetcher.FetchEvents(gctx, handle)
		return err
	})

	// The pinned-items query needs auth; without a token the
	// recently-updated listing stands in, fork-filtered by the
	// normalizer.
	curated := s.fetcher.Authenticated()
	if curated {
		g.Go(func() error {
			var err error
			pinned, err = s.fetcher.FetchPinned(gctx, handle)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return profile.Aggregated{}, err
	}

	if !curated {
		return normalize.Aggregate(user, repos, false, events), nil
	}

	// Curated path: pins come from the GraphQL query, but the activity
	// fallback still needs the recently-updated listing's timestamps.
	p := normalize.User(user)
	return profile.Aggregated{
		Profile:        p,
		PinnedRepos:    normalize.Repos(pinned, true),
		RecentActivity: normalize.Activity(events, repos),
		ChillScore:     profile.ChillScore(p),
	}, nil
}
