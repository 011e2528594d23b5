package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/reelpilot/internal/models"
)

type fileDB struct {
	Posts    []*models.Post    `json:"posts"`
	Channels []*models.Channel `json:"channels"`
}

// FileStore keeps posts and channels in a single JSON document. Every
// operation reads the whole file and writes it back under one mutex.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

// read loads the document, repairing missing collections and creating the file if needed.
func (s *FileStore) read() (*fileDB, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	var db fileDB
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &db); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.path, err)
		}
	}

	repaired := len(raw) == 0
	if db.Posts == nil {
		db.Posts = []*models.Post{}
		repaired = true
	}
	if len(db.Channels) == 0 {
		db.Channels = models.DefaultChannels(time.Now().UTC())
		repaired = true
	}

	if repaired {
		if err := s.write(&db); err != nil {
			return nil, err
		}
	}
	return &db, nil
}

func (s *FileStore) write(db *fileDB) error {
	raw, err := json.MarshalIndent(db, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

type filePostRepository struct {
	s *FileStore
}

func NewFilePostRepository(s *FileStore) PostRepository {
	return &filePostRepository{s: s}
}

func (r *filePostRepository) Upsert(ctx context.Context, post *models.Post) (*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	db, err := r.s.read()
	if err != nil {
		return nil, err
	}

	next := post.Clone()
	next.Version = post.Version + 1

	idx := -1
	for i, p := range db.Posts {
		if p.ID == post.ID {
			idx = i
			break
		}
	}

	switch {
	case idx == -1 && post.Version == 0:
		db.Posts = append(db.Posts, next)
	case idx >= 0 && db.Posts[idx].Version == post.Version:
		db.Posts[idx] = next
	default:
		return nil, ErrVersionConflict
	}

	if err := r.s.write(db); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (r *filePostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	db, err := r.s.read()
	if err != nil {
		return nil, err
	}
	for _, p := range db.Posts {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (r *filePostRepository) List(ctx context.Context) ([]*models.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	db, err := r.s.read()
	if err != nil {
		return nil, err
	}
	posts := db.Posts
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].ScheduledAt.Before(posts[j].ScheduledAt)
	})
	return posts, nil
}

type fileChannelRepository struct {
	s *FileStore
}

func NewFileChannelRepository(s *FileStore) ChannelRepository {
	return &fileChannelRepository{s: s}
}

func (r *fileChannelRepository) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	db, err := r.s.read()
	if err != nil {
		return nil, err
	}
	for _, ch := range db.Channels {
		if ch.ID == id {
			return ch, nil
		}
	}
	return nil, nil
}

func (r *fileChannelRepository) List(ctx context.Context) ([]*models.Channel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	db, err := r.s.read()
	if err != nil {
		return nil, err
	}
	return db.Channels, nil
}

func (r *fileChannelRepository) Upsert(ctx context.Context, ch *models.Channel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	db, err := r.s.read()
	if err != nil {
		return err
	}

	v := *ch
	for i, existing := range db.Channels {
		if existing.ID == ch.ID {
			db.Channels[i] = &v
			return r.s.write(db)
		}
	}
	db.Channels = append(db.Channels, &v)
	return r.s.write(db)
}
