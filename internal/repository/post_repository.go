package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/reelpilot/internal/models"
)

// ErrVersionConflict means the stored record changed since it was read.
var ErrVersionConflict = errors.New("post was modified concurrently")

// PostRepository stores whole post records. Upsert compares Post.Version with
// the stored version and returns the written copy with the version bumped.
type PostRepository interface {
	Upsert(ctx context.Context, post *models.Post) (*models.Post, error)
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context) ([]*models.Post, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Upsert(ctx context.Context, post *models.Post) (*models.Post, error) {
	next := post.Clone()
	next.Version = post.Version + 1

	data, err := json.Marshal(next)
	if err != nil {
		return nil, err
	}

	var result sql.Result
	if post.Version == 0 {
		query := `
			INSERT INTO posts (id, status, scheduled_at, version, data, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`
		result, err = r.db.ExecContext(ctx, query, next.ID, next.Status, next.ScheduledAt, next.Version, data, time.Now())
	} else {
		query := `
			UPDATE posts
			SET status = $2,
				scheduled_at = $3,
				version = $4,
				data = $5,
				updated_at = $6
			WHERE id = $1 AND version = $7
		`
		result, err = r.db.ExecContext(ctx, query, next.ID, next.Status, next.ScheduledAt, next.Version, data, time.Now(), post.Version)
	}
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	if affected != 1 {
		return nil, ErrVersionConflict
	}

	return next, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT data FROM posts WHERE id = $1`

	var data []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	var post models.Post
	if err := json.Unmarshal(data, &post); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context) ([]*models.Post, error) {
	query := `SELECT data FROM posts ORDER BY scheduled_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		var post models.Post
		if err := json.Unmarshal(data, &post); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}
