package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "posts.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	return s, path
}

func TestFileStoreRepairsShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	posts, err := NewFilePostRepository(s).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, posts)

	channels, err := NewFileChannelRepository(s).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, channels, 3)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"posts": []`)
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := NewFileStore(path)
	assert.Error(t, err)
}

func TestFilePostRepositoryUpsertAndVersioning(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	repo := NewFilePostRepository(s)

	created, err := repo.Upsert(ctx, &models.Post{ID: "p1", Status: models.PostStatusScheduled, ScheduledAt: time.Now()})
	require.NoError(t, err)
	assert.EqualValues(t, 1, created.Version)

	_, err = repo.Upsert(ctx, &models.Post{ID: "p1", Status: models.PostStatusScheduled})
	assert.ErrorIs(t, err, ErrVersionConflict, "inserting an existing id must conflict")

	claimed := created.Clone()
	claimed.Status = models.PostStatusPublishing
	claimed, err = repo.Upsert(ctx, claimed)
	require.NoError(t, err)
	assert.EqualValues(t, 2, claimed.Version)

	stale := created.Clone()
	stale.Status = models.PostStatusPublishing
	_, err = repo.Upsert(ctx, stale)
	assert.ErrorIs(t, err, ErrVersionConflict)

	got, err := repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusPublishing, got.Status)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFilePostRepositoryListSortedBySchedule(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	repo := NewFilePostRepository(s)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"late", "early", "middle"} {
		offsets := []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour}
		_, err := repo.Upsert(ctx, &models.Post{ID: id, Status: models.PostStatusScheduled, ScheduledAt: base.Add(offsets[i])})
		require.NoError(t, err)
	}

	posts, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"early", "middle", "late"}, []string{posts[0].ID, posts[1].ID, posts[2].ID})
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)
	_, err := NewFilePostRepository(s).Upsert(ctx, &models.Post{ID: "keep", CommentPool: []string{"hi"}})
	require.NoError(t, err)
	require.NoError(t, NewFileChannelRepository(s).Upsert(ctx, &models.Channel{ID: "extra", Name: "Extra"}))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)

	p, err := NewFilePostRepository(reopened).GetByID(ctx, "keep")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, []string{"hi"}, p.CommentPool)

	ch, err := NewFileChannelRepository(reopened).GetByID(ctx, "extra")
	require.NoError(t, err)
	require.NotNil(t, ch)
	assert.Equal(t, "Extra", ch.Name)
}
