package profile

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// DefaultCacheSize bounds the profile cache; least-recently-used entries are
// evicted beyond this.
const DefaultCacheSize = 1000

// Service caches profile lookups keyed by identifier digest. Load failures
// return absent and are never cached, so a profile-service outage does not
// poison the cache.
type Service struct {
	cache  *lru.Cache[string, Profile]
	loader Loader
	logger zerolog.Logger
}

// NewService creates a profile service over the given loader. size <= 0 uses
// DefaultCacheSize.
func NewService(loader Loader, size int, logger zerolog.Logger) (*Service, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, Profile](size)
	if err != nil {
		return nil, err
	}
	return &Service{
		cache:  cache,
		loader: loader,
		logger: logger.With().Str("component", "profile-cache").Logger(),
	}, nil
}

// GetOrLoad returns the profile for a raw customer ID, consulting the cache
// first. The raw ID is used only for the external load; the cache key is its
// digest.
func (s *Service) GetOrLoad(ctx context.Context, rawID string) (Profile, bool) {
	if rawID == "" {
		return Profile{}, false
	}
	key := Digest(rawID)
	if p, ok := s.cache.Get(key); ok {
		return p, true
	}

	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	p, err := s.loader.LoadProfile(loadCtx, rawID)
	if err != nil {
		s.logger.Error().Err(err).Str("customer_id", rawID).Msg("Failed to load profile")
		return Profile{}, false
	}
	s.cache.Add(key, p)
	return p, true
}
