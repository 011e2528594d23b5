package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/maheshrc27/reelpilot/internal/models"
)

type ChannelRepository interface {
	GetByID(ctx context.Context, id string) (*models.Channel, error)
	List(ctx context.Context) ([]*models.Channel, error)
	Upsert(ctx context.Context, ch *models.Channel) error
}

type channelRepository struct {
	db *sql.DB
}

func NewChannelRepository(db *sql.DB) ChannelRepository {
	return &channelRepository{db: db}
}

func (r *channelRepository) GetByID(ctx context.Context, id string) (*models.Channel, error) {
	query := `SELECT data FROM channels WHERE id = $1`

	var data []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	var ch models.Channel
	if err := json.Unmarshal(data, &ch); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &ch, nil
}

func (r *channelRepository) List(ctx context.Context) ([]*models.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM channels ORDER BY id ASC`)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	channels := []*models.Channel{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		var ch models.Channel
		if err := json.Unmarshal(data, &ch); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		channels = append(channels, &ch)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return channels, nil
}

func (r *channelRepository) Upsert(ctx context.Context, ch *models.Channel) error {
	data, err := json.Marshal(ch)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO channels (id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, ch.ID, data, time.Now()); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
