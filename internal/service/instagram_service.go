package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	config "github.com/maheshrc27/reelpilot/configs"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/telemetry"
	"github.com/maheshrc27/reelpilot/internal/transfer"
	"github.com/maheshrc27/reelpilot/pkg/utils"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	PollInterval    = 2500 * time.Millisecond
	MaxPollAttempts = 12
	MaxCommentPool  = 20

	graphTimeout = 20 * time.Second
)

var (
	ErrContainerTimeout = errors.New("Instagram media container was not ready in time")
	ErrLocalMediaURL    = errors.New("live Instagram publish requires a public SERVER_BASE_URL. Localhost URLs are not reachable by Meta Graph API")

	localhostURL = regexp.MustCompile(`(?i)^https?://(localhost|127\.0\.0\.1)(:\d+)?(/|$)`)
)

type PublishResult struct {
	Mode         string
	RemotePostID string
	// AutoComment is nil when no follow-up comment was attempted.
	AutoComment *CommentResult
}

type CommentResult struct {
	Attempted bool
	Posted    bool
	CommentID string
	Message   string
	Error     string
}

type InstagramService interface {
	Publish(ctx context.Context, post *models.Post) (*PublishResult, error)
	PostComment(ctx context.Context, post *models.Post, message string) CommentResult
	RefreshToken(ctx context.Context, ch *models.Channel) (*models.Channel, error)
}

type instagramService struct {
	cfg     *config.Config
	cipher  *utils.TokenCipher
	metrics *telemetry.Metrics
	client  *http.Client
	clock   Clock
	intn    func(n int) int

	pollInterval    time.Duration
	maxPollAttempts int
}

func NewInstagramService(cfg *config.Config, cipher *utils.TokenCipher, metrics *telemetry.Metrics) InstagramService {
	return &instagramService{
		cfg:             cfg,
		cipher:          cipher,
		metrics:         metrics,
		client:          &http.Client{Timeout: graphTimeout},
		clock:           SystemClock(),
		intn:            rand.IntN,
		pollInterval:    PollInterval,
		maxPollAttempts: MaxPollAttempts,
	}
}

func (s *instagramService) Publish(ctx context.Context, post *models.Post) (result *PublishResult, err error) {
	ctx, span := telemetry.Tracer().Start(ctx, "instagram.publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("post.id", post.ID),
		attribute.String("post.type", string(post.PostType)),
		attribute.String("publish.mode", s.cfg.PublishMode),
	)

	started := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		s.metrics.RecordPublish(ctx, s.cfg.PublishMode, outcome, time.Since(started).Seconds())
	}()

	if s.cfg.PublishMode != config.PublishModeLive {
		return s.publishMock(ctx, post), nil
	}
	return s.publishLive(ctx, post)
}

func (s *instagramService) publishMock(ctx context.Context, post *models.Post) *PublishResult {
	result := &PublishResult{
		Mode:         models.PublishModeMock,
		RemotePostID: "mock_" + post.ID,
	}
	if wantsAutoComment(post) {
		published := post.Clone()
		published.RemotePostID = result.RemotePostID
		comment := s.PostComment(ctx, published, pickComment(NormalizeCommentPool(post.CommentPool), s.intn))
		result.AutoComment = &comment
	}
	return result
}

func (s *instagramService) publishLive(ctx context.Context, post *models.Post) (*PublishResult, error) {
	token, err := s.accessToken(post)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	mediaURL := s.publicMediaURL(post.MediaPath)
	if mediaURL == "" || localhostURL.MatchString(mediaURL) {
		return nil, ErrLocalMediaURL
	}

	accountID, err := s.accountID(ctx, post, token)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("access_token", token)
	isStory := post.PostType == models.PostTypeStory
	if isVideo(mediaURL) {
		params.Set("video_url", mediaURL)
		params.Set("media_type", "REELS")
	} else {
		params.Set("image_url", mediaURL)
	}
	if isStory {
		params.Set("media_type", "STORIES")
	} else {
		params.Set("caption", post.EffectiveCaption())
	}

	var container transfer.InstagramIDResponse
	if err := s.graphCall(ctx, http.MethodPost, s.cfg.GraphAPIBaseURL+"/"+accountID+"/media", params, &container); err != nil {
		return nil, fmt.Errorf("Meta /media failed: %w", err)
	}
	if container.ID == "" {
		return nil, errors.New("could not create Instagram media container")
	}

	if err := s.waitForContainer(ctx, container.ID, token); err != nil {
		return nil, err
	}

	publishParams := url.Values{}
	publishParams.Set("creation_id", container.ID)
	publishParams.Set("access_token", token)

	var published transfer.InstagramIDResponse
	if err := s.graphCall(ctx, http.MethodPost, s.cfg.GraphAPIBaseURL+"/"+accountID+"/media_publish", publishParams, &published); err != nil {
		return nil, fmt.Errorf("Meta /media_publish failed: %w", err)
	}
	if published.ID == "" {
		return nil, errors.New("Meta /media_publish failed: no media id returned")
	}

	result := &PublishResult{
		Mode:         models.PublishModeLive,
		RemotePostID: published.ID,
	}
	if wantsAutoComment(post) {
		publishedPost := post.Clone()
		publishedPost.RemotePostID = published.ID
		comment := s.PostComment(ctx, publishedPost, pickComment(NormalizeCommentPool(post.CommentPool), s.intn))
		result.AutoComment = &comment
	}
	return result, nil
}

// waitForContainer polls the container until it is FINISHED, failing fast on
// ERROR or EXPIRED and giving up after maxPollAttempts reads.
func (s *instagramService) waitForContainer(ctx context.Context, containerID, token string) error {
	params := url.Values{}
	params.Set("fields", "status_code")
	params.Set("access_token", token)

	for attempt := 1; attempt <= s.maxPollAttempts; attempt++ {
		var status transfer.InstagramContainerStatus
		if err := s.graphCall(ctx, http.MethodGet, s.cfg.GraphAPIBaseURL+"/"+containerID, params, &status); err != nil {
			return fmt.Errorf("Meta container status check failed: %w", err)
		}

		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("Instagram media container status is %s", status.StatusCode)
		}

		if attempt == s.maxPollAttempts {
			break
		}
		if err := s.clock.Sleep(ctx, s.pollInterval); err != nil {
			return fmt.Errorf("Meta container status check failed: %w", err)
		}
	}
	return ErrContainerTimeout
}

func (s *instagramService) PostComment(ctx context.Context, post *models.Post, message string) CommentResult {
	if post.RemotePostID == "" || strings.TrimSpace(message) == "" {
		return CommentResult{}
	}

	if s.cfg.PublishMode != config.PublishModeLive {
		return CommentResult{
			Attempted: true,
			Posted:    true,
			CommentID: "mock_comment_" + post.RemotePostID,
			Message:   message,
		}
	}

	result := CommentResult{Attempted: true, Message: message}
	token, err := s.accessToken(post)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	params := url.Values{}
	params.Set("message", message)
	params.Set("access_token", token)

	var created transfer.InstagramIDResponse
	if err := s.graphCall(ctx, http.MethodPost, s.cfg.GraphAPIBaseURL+"/"+post.RemotePostID+"/comments", params, &created); err != nil {
		slog.Info(err.Error())
		result.Error = err.Error()
		return result
	}

	result.Posted = true
	result.CommentID = created.ID
	return result
}

func (s *instagramService) RefreshToken(ctx context.Context, ch *models.Channel) (*models.Channel, error) {
	token, err := s.cipher.Open(ch.AccessToken)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("channel %q has no access token", ch.ID)
	}

	params := url.Values{}
	params.Set("grant_type", "ig_refresh_token")
	params.Set("access_token", token)

	var refreshed transfer.InstagramRefreshedToken
	if err := s.graphCall(ctx, http.MethodGet, s.cfg.InstagramAPIBaseURL+"/refresh_access_token", params, &refreshed); err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if refreshed.AccessToken == "" {
		return nil, errors.New("token refresh failed: empty access token")
	}

	sealed, err := s.cipher.Seal(refreshed.AccessToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := GetExpiresAt(now, refreshed.ExpiresIn)
	next := *ch
	next.AccessToken = sealed
	next.TokenExpiresAt = &expiresAt
	next.UpdatedAt = now
	return &next, nil
}

// accessToken returns the post's channel token. The process-wide token only
// serves posts that are not bound to a channel.
func (s *instagramService) accessToken(post *models.Post) (string, error) {
	if post.ChannelID != "" {
		if post.ChannelAccessToken == "" {
			name := post.ChannelName
			if name == "" {
				name = post.ChannelID
			}
			return "", fmt.Errorf("channel %q is not configured: missing access token", name)
		}
		return s.cipher.Open(post.ChannelAccessToken)
	}
	if s.cfg.InstagramAccessToken == "" {
		return "", errors.New("live mode requires INSTAGRAM_ACCESS_TOKEN and INSTAGRAM_ACCOUNT_ID environment variables")
	}
	return s.cipher.Open(s.cfg.InstagramAccessToken)
}

// accountID never pairs a channel token with the process-wide account: a bound
// post without an account id discovers it with its own token.
func (s *instagramService) accountID(ctx context.Context, post *models.Post, token string) (string, error) {
	if post.ChannelAccountID != "" {
		return post.ChannelAccountID, nil
	}
	if post.ChannelID == "" && s.cfg.InstagramAccountID != "" {
		return s.cfg.InstagramAccountID, nil
	}

	params := url.Values{}
	params.Set("fields", "id,name,instagram_business_account{id,username}")
	params.Set("access_token", token)

	var pages transfer.InstagramPagesResponse
	if err := s.graphCall(ctx, http.MethodGet, s.cfg.GraphAPIBaseURL+"/me/accounts", params, &pages); err != nil {
		return "", fmt.Errorf("Meta /me/accounts failed: %w", err)
	}
	for _, page := range pages.Data {
		if page.InstagramBusinessAccount != nil && page.InstagramBusinessAccount.ID != "" {
			return page.InstagramBusinessAccount.ID, nil
		}
	}
	return "", errors.New("no accessible Instagram Business account found: /me/accounts has no linked page with an instagram_business_account for this token")
}

// publicMediaURL rewrites a local upload path to the URL it is served at.
func (s *instagramService) publicMediaURL(mediaPath string) string {
	if mediaPath == "" {
		return ""
	}
	lower := strings.ToLower(mediaPath)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return mediaPath
	}
	relative := strings.TrimPrefix(mediaPath, "/")
	relative = strings.TrimPrefix(relative, strings.Trim(s.cfg.UploadDir, "/")+"/")
	return s.cfg.ServerBaseURL + "/uploads/" + relative
}

func (s *instagramService) graphCall(ctx context.Context, method, endpoint string, params url.Values, out any) error {
	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+params.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(params.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var metaErr transfer.InstagramErrorResponse
		if json.Unmarshal(body, &metaErr) == nil {
			if details := metaErr.Details(); details != "" {
				return errors.New(details)
			}
		}
		return fmt.Errorf("unexpected status code from Instagram: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}

func wantsAutoComment(post *models.Post) bool {
	return post.AutoCommentEnabled && post.PostType != models.PostTypeStory
}

// NormalizeCommentPool trims entries, drops empty ones and keeps at most 20.
func NormalizeCommentPool(pool []string) []string {
	out := make([]string, 0, len(pool))
	for _, item := range pool {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == MaxCommentPool {
			break
		}
	}
	return out
}

func pickComment(pool []string, intn func(int) int) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[intn(len(pool))]
}

func isVideo(mediaURL string) bool {
	u, err := url.Parse(mediaURL)
	p := mediaURL
	if err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".mp4", ".mov":
		return true
	}
	return false
}
