package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/service"
)

const refreshWindow = 30 * time.Minute

type TokenRefreshJob struct {
	cs service.ChannelService
	ig service.InstagramService
}

func NewTokenRefreshJob(cs service.ChannelService, ig service.InstagramService) *TokenRefreshJob {
	return &TokenRefreshJob{
		cs: cs,
		ig: ig,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	c.Run(context.Background())
}

// Run refreshes every channel token that expires within the next 30 minutes
// and returns how many were renewed.
func (c *TokenRefreshJob) Run(ctx context.Context) int {
	channels, err := c.cs.ExpiringWithin(ctx, refreshWindow)
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		refreshed int
	)

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, ch := range channels {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(ch *models.Channel) {
			defer wg.Done()
			defer func() { <-semaphore }()

			renewed, err := c.ig.RefreshToken(ctx, ch)
			if err != nil {
				slog.Info("unable to refresh Instagram token", "channel_id", ch.ID, "error", err.Error())
				return
			}
			if err := c.cs.Save(ctx, renewed); err != nil {
				slog.Info("unable to store refreshed token", "channel_id", ch.ID, "error", err.Error())
				return
			}

			mu.Lock()
			refreshed++
			mu.Unlock()
		}(ch)
	}

	wg.Wait()
	if len(channels) > 0 {
		slog.Info("token refresh finished", "due", len(channels), "refreshed", refreshed)
	}
	return refreshed
}
