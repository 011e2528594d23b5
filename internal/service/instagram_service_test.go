package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	config "github.com/maheshrc27/reelpilot/configs"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/telemetry"
	"github.com/maheshrc27/reelpilot/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps++
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

// graphStub is a minimal Graph API: container statuses are served in order.
type graphStub struct {
	mu             sync.Mutex
	statuses       []string
	statusCalls    int
	mediaParams    map[string]string
	mediaCalls     int
	mediaAccount   string
	publishCalls   int
	comments       []string
	failMedia      bool
	failComment    bool
	discoverCalls  int
	discoverToken  string
	refreshedToken string
}

func (g *graphStub) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		_ = r.ParseForm()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/me/accounts":
			g.discoverCalls++
			g.discoverToken = r.Form.Get("access_token")
			w.Write([]byte(`{"data":[{"id":"page1","name":"No IG"},{"id":"page2","instagram_business_account":{"id":"ig-discovered","username":"x"}}]}`))
		case r.URL.Path == "/refresh_access_token":
			w.Write([]byte(`{"access_token":"` + g.refreshedToken + `","token_type":"bearer","expires_in":5184000}`))
		case strings.HasSuffix(r.URL.Path, "/media"):
			g.mediaCalls++
			g.mediaAccount = strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/"), "/media")
			g.mediaParams = map[string]string{}
			for k := range r.PostForm {
				g.mediaParams[k] = r.PostForm.Get(k)
			}
			if g.failMedia {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"Invalid parameter","type":"OAuthException","code":100,"error_subcode":2207052}}`))
				return
			}
			w.Write([]byte(`{"id":"container-1"}`))
		case strings.HasSuffix(r.URL.Path, "/media_publish"):
			g.publishCalls++
			w.Write([]byte(`{"id":"ig-media-9"}`))
		case strings.HasSuffix(r.URL.Path, "/comments"):
			if g.failComment {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"Comments disabled","code":10}}`))
				return
			}
			g.comments = append(g.comments, r.PostForm.Get("message"))
			w.Write([]byte(`{"id":"comment-1"}`))
		case r.URL.Path == "/container-1":
			status := "IN_PROGRESS"
			if g.statusCalls < len(g.statuses) {
				status = g.statuses[g.statusCalls]
			}
			g.statusCalls++
			w.Write([]byte(`{"id":"container-1","status_code":"` + status + `"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newLiveGateway(t *testing.T, stub *graphStub) (*instagramService, *fakeClock) {
	t.Helper()
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		PublishMode:          config.PublishModeLive,
		ServerBaseURL:        "https://media.example.com",
		UploadDir:            "uploads",
		GraphAPIBaseURL:      srv.URL,
		InstagramAPIBaseURL:  srv.URL,
		InstagramAccessToken: "env-token",
	}
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewInstagramService(cfg, utils.NewTokenCipher(""), telemetry.NewNoopMetrics()).(*instagramService)
	svc.clock = clock
	svc.intn = func(int) int { return 0 }
	return svc, clock
}

func livePost() *models.Post {
	return &models.Post{
		ID:               "p-1",
		PostType:         models.PostTypeFeed,
		Caption:          "raw",
		OptimizedCaption: "better",
		MediaPath:        "uploads/1700000000000-abc.jpg",
		ChannelID:        "main",
		ChannelName:      "Main",
		ChannelAccountID:   "ig-123",
		ChannelAccessToken: "channel-token",
		Status:           models.PostStatusPublishing,
	}
}

func TestPublishMockIsDeterministic(t *testing.T) {
	svc := NewInstagramService(&config.Config{PublishMode: config.PublishModeMock}, nil, nil)

	first, err := svc.Publish(context.Background(), &models.Post{ID: "abc"})
	require.NoError(t, err)
	second, err := svc.Publish(context.Background(), &models.Post{ID: "abc"})
	require.NoError(t, err)

	assert.Equal(t, "mock", first.Mode)
	assert.Equal(t, "mock_abc", first.RemotePostID)
	assert.Equal(t, first.RemotePostID, second.RemotePostID)
	assert.Nil(t, first.AutoComment)
}

func TestPublishLiveFinishedOnThirdPoll(t *testing.T) {
	stub := &graphStub{statuses: []string{"IN_PROGRESS", "IN_PROGRESS", "FINISHED"}}
	svc, clock := newLiveGateway(t, stub)

	result, err := svc.Publish(context.Background(), livePost())
	require.NoError(t, err)

	assert.Equal(t, "live", result.Mode)
	assert.Equal(t, "ig-media-9", result.RemotePostID)
	assert.Equal(t, 3, stub.statusCalls)
	assert.Equal(t, 2, clock.Sleeps())
	assert.Equal(t, 1, stub.publishCalls)
	assert.Equal(t, "better", stub.mediaParams["caption"])
	assert.Equal(t, "https://media.example.com/uploads/1700000000000-abc.jpg", stub.mediaParams["image_url"])
	assert.Equal(t, "channel-token", stub.mediaParams["access_token"])
	assert.Equal(t, "ig-123", stub.mediaAccount)
	assert.Nil(t, result.AutoComment)
}

func TestPublishLiveContainerErrorFailsImmediately(t *testing.T) {
	for _, status := range []string{"ERROR", "EXPIRED"} {
		t.Run(status, func(t *testing.T) {
			stub := &graphStub{statuses: []string{"IN_PROGRESS", status, "FINISHED"}}
			svc, _ := newLiveGateway(t, stub)

			_, err := svc.Publish(context.Background(), livePost())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "status is "+status)
			assert.Equal(t, 2, stub.statusCalls)
			assert.Zero(t, stub.publishCalls)
		})
	}
}

func TestPublishLiveContainerTimeout(t *testing.T) {
	stub := &graphStub{}
	svc, clock := newLiveGateway(t, stub)

	_, err := svc.Publish(context.Background(), livePost())
	assert.ErrorIs(t, err, ErrContainerTimeout)
	assert.Equal(t, MaxPollAttempts, stub.statusCalls)
	assert.Equal(t, MaxPollAttempts-1, clock.Sleeps())
	assert.Zero(t, stub.publishCalls)
}

func TestPublishLiveRejectsLocalhostMedia(t *testing.T) {
	stub := &graphStub{statuses: []string{"FINISHED"}}
	svc, _ := newLiveGateway(t, stub)
	svc.cfg.ServerBaseURL = "http://localhost:4000"

	_, err := svc.Publish(context.Background(), livePost())
	assert.ErrorIs(t, err, ErrLocalMediaURL)
	assert.Zero(t, stub.mediaCalls)

	post := livePost()
	post.MediaPath = "http://127.0.0.1:9000/a.jpg"
	_, err = svc.Publish(context.Background(), post)
	assert.ErrorIs(t, err, ErrLocalMediaURL)
}

func TestPublishLiveFoldsMetaErrorDetails(t *testing.T) {
	stub := &graphStub{failMedia: true}
	svc, _ := newLiveGateway(t, stub)

	_, err := svc.Publish(context.Background(), livePost())
	require.Error(t, err)
	assert.Equal(t, "Meta /media failed: Invalid parameter | code=100 | subcode=2207052", err.Error())
}

func TestPublishLiveMissingChannelToken(t *testing.T) {
	stub := &graphStub{}
	svc, _ := newLiveGateway(t, stub)
	post := livePost()
	post.ChannelAccessToken = ""

	_, err := svc.Publish(context.Background(), post)
	require.Error(t, err)
	assert.Equal(t, `channel "Main" is not configured: missing access token`, err.Error())
	assert.Zero(t, stub.mediaCalls)
}

func TestPublishLiveUnconfiguredChannelIgnoresProcessCredentials(t *testing.T) {
	stub := &graphStub{statuses: []string{"FINISHED"}}
	svc, _ := newLiveGateway(t, stub)
	post := livePost()
	post.ChannelID = "secondary"
	post.ChannelName = ""
	post.ChannelAccountID = ""
	post.ChannelAccessToken = ""

	res, err := svc.Publish(context.Background(), post)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, `channel "secondary" is not configured: missing access token`, err.Error())
	assert.Zero(t, stub.mediaCalls)
	assert.Zero(t, stub.publishCalls)
	assert.Zero(t, stub.discoverCalls)
}

func TestPublishLiveDiscoversAccount(t *testing.T) {
	stub := &graphStub{statuses: []string{"FINISHED"}}
	svc, _ := newLiveGateway(t, stub)
	post := livePost()
	post.ChannelAccountID = ""

	_, err := svc.Publish(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.discoverCalls)
	assert.Equal(t, "channel-token", stub.discoverToken)
	assert.Equal(t, "ig-discovered", stub.mediaAccount)
	assert.Equal(t, "channel-token", stub.mediaParams["access_token"])
}

func TestPublishLiveUnboundPostUsesProcessCredentials(t *testing.T) {
	stub := &graphStub{statuses: []string{"FINISHED"}}
	svc, _ := newLiveGateway(t, stub)
	post := livePost()
	post.ChannelID = ""
	post.ChannelName = ""
	post.ChannelAccountID = ""
	post.ChannelAccessToken = ""

	_, err := svc.Publish(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, "env-account", stub.mediaAccount)
	assert.Equal(t, "env-token", stub.mediaParams["access_token"])
	assert.Zero(t, stub.discoverCalls)
}

func TestPublishLiveStoryOmitsCaption(t *testing.T) {
	stub := &graphStub{statuses: []string{"FINISHED"}}
	svc, _ := newLiveGateway(t, stub)
	post := livePost()
	post.PostType = models.PostTypeStory
	post.AutoCommentEnabled = true
	post.CommentPool = []string{"hello"}

	result, err := svc.Publish(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, "STORIES", stub.mediaParams["media_type"])
	_, hasCaption := stub.mediaParams["caption"]
	assert.False(t, hasCaption)
	assert.Nil(t, result.AutoComment, "stories never get an auto comment")
}

func TestPublishLiveReelUsesVideoURL(t *testing.T) {
	stub := &graphStub{statuses: []string{"FINISHED"}}
	svc, _ := newLiveGateway(t, stub)
	post := livePost()
	post.PostType = models.PostTypeReel
	post.MediaPath = "https://cdn.example.com/clip.mp4"

	_, err := svc.Publish(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, "REELS", stub.mediaParams["media_type"])
	assert.Equal(t, "https://cdn.example.com/clip.mp4", stub.mediaParams["video_url"])
}

func TestPublishLiveAutoCommentIsBestEffort(t *testing.T) {
	stub := &graphStub{statuses: []string{"FINISHED"}, failComment: true}
	svc, _ := newLiveGateway(t, stub)
	post := livePost()
	post.AutoCommentEnabled = true
	post.CommentPool = []string{"  ", "first pick", "second"}

	result, err := svc.Publish(context.Background(), post)
	require.NoError(t, err)
	require.NotNil(t, result.AutoComment)
	assert.True(t, result.AutoComment.Attempted)
	assert.False(t, result.AutoComment.Posted)
	assert.Equal(t, "first pick", result.AutoComment.Message)
	assert.Contains(t, result.AutoComment.Error, "Comments disabled")
	assert.Equal(t, "ig-media-9", result.RemotePostID)
}

func TestPostCommentLive(t *testing.T) {
	stub := &graphStub{}
	svc, _ := newLiveGateway(t, stub)
	post := livePost()
	post.RemotePostID = "ig-media-9"

	res := svc.PostComment(context.Background(), post, "see you soon")
	assert.True(t, res.Posted)
	assert.Equal(t, "comment-1", res.CommentID)
	assert.Equal(t, []string{"see you soon"}, stub.comments)

	empty := svc.PostComment(context.Background(), post, "   ")
	assert.False(t, empty.Attempted)
}

func TestRefreshTokenSealsNewToken(t *testing.T) {
	stub := &graphStub{refreshedToken: "fresh"}
	svc, clock := newLiveGateway(t, stub)
	svc.cipher = utils.NewTokenCipher("0123456789abcdef")

	sealed, err := svc.cipher.Seal("old")
	require.NoError(t, err)

	ch, err := svc.RefreshToken(context.Background(), &models.Channel{ID: "main", AccessToken: sealed})
	require.NoError(t, err)
	assert.True(t, utils.IsSealed(ch.AccessToken))

	plain, err := svc.cipher.Open(ch.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "fresh", plain)
	require.NotNil(t, ch.TokenExpiresAt)
	assert.Equal(t, clock.Now().Add(5184000*time.Second), *ch.TokenExpiresAt)
}

func TestNormalizeCommentPool(t *testing.T) {
	pool := []string{" a ", "", "  "}
	for i := 0; i < 30; i++ {
		pool = append(pool, "x")
	}
	got := NormalizeCommentPool(pool)
	assert.Len(t, got, MaxCommentPool)
	assert.Equal(t, "a", got[0])
}
