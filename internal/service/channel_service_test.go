package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maheshrc27/reelpilot/internal/repository"
	"github.com/maheshrc27/reelpilot/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const channelSeedYAML = `
channels:
  - id: main
    name: Brand Main
    handle: "@brand"
    account_id: "17841400000000000"
    access_token: "EAAG-plain"
    token_expires_at: 2026-05-01T09:10:00Z
  - id: promo
    name: Promo
`

func newTestChannelService(t *testing.T, cipher *utils.TokenCipher) (ChannelService, repository.ChannelRepository) {
	t.Helper()
	store, err := repository.NewFileStore(filepath.Join(t.TempDir(), "posts.json"))
	require.NoError(t, err)
	repo := repository.NewFileChannelRepository(store)
	return NewChannelService(repo, cipher, newFakeClock(testNow), "main"), repo
}

func TestChannelSeedFromFileSealsTokens(t *testing.T) {
	ctx := context.Background()
	cipher := utils.NewTokenCipher("0123456789abcdef")
	svc, repo := newTestChannelService(t, cipher)

	path := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(channelSeedYAML), 0o644))

	n, err := svc.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	main, err := repo.GetByID(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "Brand Main", main.Name)
	assert.True(t, utils.IsSealed(main.AccessToken))
	plain, err := cipher.Open(main.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "EAAG-plain", plain)
	assert.True(t, main.Configured())

	promo, err := svc.Resolve(ctx, "promo")
	require.NoError(t, err)
	assert.False(t, promo.Configured())
}

func TestChannelResolve(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestChannelService(t, nil)

	def, err := svc.Resolve(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "main", def.ID)

	_, err = svc.Resolve(ctx, "nope")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChannelExpiringWithin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestChannelService(t, nil)

	path := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(channelSeedYAML), 0o644))
	_, err := svc.SeedFromFile(ctx, path)
	require.NoError(t, err)

	expiring, err := svc.ExpiringWithin(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, "main", expiring[0].ID)

	expiring, err = svc.ExpiringWithin(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, expiring)
}

func TestChannelSeedRejectsMissingID(t *testing.T) {
	svc, _ := newTestChannelService(t, nil)
	path := filepath.Join(t.TempDir(), "channels.yaml")
	require.NoError(t, os.WriteFile(path, []byte("channels:\n  - name: nameless\n"), 0o644))

	_, err := svc.SeedFromFile(context.Background(), path)
	assert.Error(t, err)
}

func TestChannelEnsureDefaultsAdoptsProcessCredentials(t *testing.T) {
	ctx := context.Background()
	cipher := utils.NewTokenCipher("0123456789abcdef")
	svc, repo := newTestChannelService(t, cipher)

	require.NoError(t, svc.EnsureDefaults(ctx, "env-account", "env-token"))

	main, err := repo.GetByID(ctx, "main")
	require.NoError(t, err)
	assert.True(t, main.Configured())
	assert.Equal(t, "env-account", main.AccountID)
	plain, err := cipher.Open(main.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "env-token", plain)

	secondary, err := repo.GetByID(ctx, "secondary")
	require.NoError(t, err)
	assert.False(t, secondary.Configured())

	require.NoError(t, svc.EnsureDefaults(ctx, "other-account", "other-token"))
	again, err := repo.GetByID(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, "env-account", again.AccountID, "a channel token is never replaced")
}

func TestChannelEnsureDefaultsWithoutCredentials(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestChannelService(t, nil)

	require.NoError(t, svc.EnsureDefaults(ctx, "", ""))
	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, ch := range all {
		assert.False(t, ch.Configured())
	}
}
