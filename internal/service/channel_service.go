package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/repository"
	"github.com/maheshrc27/reelpilot/pkg/utils"
	"gopkg.in/yaml.v3"
)

type channelSeedFile struct {
	Channels []*models.Channel `yaml:"channels"`
}

type ChannelService interface {
	List(ctx context.Context) ([]*models.Channel, error)
	// Resolve returns the channel a post is bound to; an empty id means the default channel.
	Resolve(ctx context.Context, id string) (*models.Channel, error)
	EnsureDefaults(ctx context.Context, accountID, accessToken string) error
	SeedFromFile(ctx context.Context, path string) (int, error)
	ExpiringWithin(ctx context.Context, d time.Duration) ([]*models.Channel, error)
	Save(ctx context.Context, ch *models.Channel) error
}

type channelService struct {
	channels  repository.ChannelRepository
	cipher    *utils.TokenCipher
	clock     Clock
	defaultID string
}

func NewChannelService(channels repository.ChannelRepository, cipher *utils.TokenCipher, clock Clock, defaultID string) ChannelService {
	if clock == nil {
		clock = SystemClock()
	}
	return &channelService{
		channels:  channels,
		cipher:    cipher,
		clock:     clock,
		defaultID: defaultID,
	}
}

func (s *channelService) List(ctx context.Context) ([]*models.Channel, error) {
	return s.channels.List(ctx)
}

func (s *channelService) Resolve(ctx context.Context, id string) (*models.Channel, error) {
	if id == "" {
		id = s.defaultID
	}
	ch, err := s.channels.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, validationError("unknown channel %q", id)
	}
	return ch, nil
}

// EnsureDefaults provisions the fixed channel set into an empty store and hands the
// process-wide credentials to the default channel when it has none of its own.
func (s *channelService) EnsureDefaults(ctx context.Context, accountID, accessToken string) error {
	existing, err := s.channels.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		for _, ch := range models.DefaultChannels(s.clock.Now()) {
			if err := s.channels.Upsert(ctx, ch); err != nil {
				return err
			}
		}
	}

	if accessToken == "" || s.defaultID == "" {
		return nil
	}
	def, err := s.channels.GetByID(ctx, s.defaultID)
	if err != nil {
		return err
	}
	if def == nil || def.AccessToken != "" {
		return nil
	}
	def.AccessToken = accessToken
	if def.AccountID == "" {
		def.AccountID = accountID
	}
	return s.Save(ctx, def)
}

// SeedFromFile upserts the channels listed in a YAML file, sealing their tokens.
func (s *channelService) SeedFromFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	var seed channelSeedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	for _, ch := range seed.Channels {
		if ch == nil || ch.ID == "" {
			return 0, fmt.Errorf("parse %s: channel without id", path)
		}
		if err := s.Save(ctx, ch); err != nil {
			return 0, err
		}
	}
	return len(seed.Channels), nil
}

func (s *channelService) ExpiringWithin(ctx context.Context, d time.Duration) ([]*models.Channel, error) {
	all, err := s.channels.List(ctx)
	if err != nil {
		return nil, err
	}
	deadline := s.clock.Now().Add(d)
	out := []*models.Channel{}
	for _, ch := range all {
		if ch.AccessToken == "" || ch.TokenExpiresAt == nil {
			continue
		}
		if !ch.TokenExpiresAt.After(deadline) {
			out = append(out, ch)
		}
	}
	return out, nil
}

// Save seals the access token and keeps the original creation time.
func (s *channelService) Save(ctx context.Context, ch *models.Channel) error {
	next := *ch
	sealed, err := s.cipher.Seal(next.AccessToken)
	if err != nil {
		return err
	}
	next.AccessToken = sealed

	now := s.clock.Now()
	existing, err := s.channels.GetByID(ctx, ch.ID)
	if err != nil {
		return err
	}
	if existing != nil && !existing.CreatedAt.IsZero() {
		next.CreatedAt = existing.CreatedAt
	} else if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}
	next.UpdatedAt = now
	return s.channels.Upsert(ctx, &next)
}
