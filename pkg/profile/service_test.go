package profile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/illmade-knight/message-gateway/pkg/profile"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLoader implements profile.Loader with a controllable response.
type mockLoader struct {
	loadFunc func(ctx context.Context, customerID string) (profile.Profile, error)
	calls    int
}

func (m *mockLoader) LoadProfile(ctx context.Context, customerID string) (profile.Profile, error) {
	m.calls++
	return m.loadFunc(ctx, customerID)
}

func TestDigest(t *testing.T) {
	// Deterministic and stable across calls.
	first := profile.Digest("1001")
	second := profile.Digest("1001")
	assert.Equal(t, first, second)
	assert.NotEqual(t, first, profile.Digest("1002"))

	// URL-safe unpadded base64 of a SHA-256 sum is always 43 characters.
	assert.Len(t, first, 43)
	assert.NotContains(t, first, "=")
	assert.NotContains(t, first, "+")
	assert.NotContains(t, first, "/")
}

func TestService_GetOrLoad(t *testing.T) {
	ctx := context.Background()
	expected := profile.Profile{CustomerID: 1001, Mobile: "+15550001", FirstName: "Ada", LastName: "Lovelace"}

	t.Run("miss then hit", func(t *testing.T) {
		loader := &mockLoader{
			loadFunc: func(_ context.Context, customerID string) (profile.Profile, error) {
				require.Equal(t, "1001", customerID)
				return expected, nil
			},
		}
		svc, err := profile.NewService(loader, 10, zerolog.Nop())
		require.NoError(t, err)

		p, ok := svc.GetOrLoad(ctx, "1001")
		require.True(t, ok)
		assert.Equal(t, expected, p)

		// Second lookup is served from the cache.
		p, ok = svc.GetOrLoad(ctx, "1001")
		require.True(t, ok)
		assert.Equal(t, expected, p)
		assert.Equal(t, 1, loader.calls)
	})

	t.Run("load failure is not cached", func(t *testing.T) {
		failing := true
		loader := &mockLoader{
			loadFunc: func(_ context.Context, _ string) (profile.Profile, error) {
				if failing {
					return profile.Profile{}, errors.New("profile service down")
				}
				return expected, nil
			},
		}
		svc, err := profile.NewService(loader, 10, zerolog.Nop())
		require.NoError(t, err)

		_, ok := svc.GetOrLoad(ctx, "1001")
		assert.False(t, ok)

		// The service recovers; the failure must not have been cached.
		failing = false
		p, ok := svc.GetOrLoad(ctx, "1001")
		require.True(t, ok)
		assert.Equal(t, expected, p)
		assert.Equal(t, 2, loader.calls)
	})

	t.Run("empty ID is absent", func(t *testing.T) {
		loader := &mockLoader{
			loadFunc: func(_ context.Context, _ string) (profile.Profile, error) {
				return expected, nil
			},
		}
		svc, err := profile.NewService(loader, 10, zerolog.Nop())
		require.NoError(t, err)

		_, ok := svc.GetOrLoad(ctx, "")
		assert.False(t, ok)
		assert.Zero(t, loader.calls)
	})
}
