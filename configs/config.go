package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	PublishModeMock = "mock"
	PublishModeLive = "live"

	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
	// Endpoint overrides the Cloudflare endpoint derived from AccountID.
	Endpoint string
}

// Enabled reports whether enough credentials are present to upload media to R2.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKey != "" && r.SecretKey != "" && r.BucketName != "" && r.PublicURL != ""
}

type Config struct {
	Port          string
	ServerBaseURL string
	UploadDir     string
	DataDir       string
	DBFile        string

	StoreDriver   string
	PostgresURI   string
	MongoURI      string
	MongoDatabase string
	RedisURI      string

	PublishMode          string
	InstagramAccessToken string
	InstagramAccountID   string
	GraphAPIBaseURL      string
	InstagramAPIBaseURL  string

	CaptionProvider string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	GeminiModel     string

	AutopilotEnabled         bool
	AutopilotIntervalMinutes int
	AutopilotDelayMinutes    int
	AutopilotMedia           string
	FFmpegPath               string

	ChannelsFile     string
	DefaultChannelID string

	SchedulerInterval    time.Duration
	TokenRefreshInterval time.Duration

	R2         R2
	SecretKey  string
	CookieName string

	LogLevel  string
	LogFormat string
	LogFile   string
}

func LoadConfig() *Config {
	return &Config{
		Port:          getEnv("PORT", "4000"),
		ServerBaseURL: strings.TrimRight(getEnv("SERVER_BASE_URL", "http://localhost:4000"), "/"),
		UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
		DataDir:       getEnv("DATA_DIR", "data"),
		DBFile:        getEnv("DB_FILE", "posts.json"),

		StoreDriver:   strings.ToLower(getEnv("STORE_DRIVER", StoreDriverFile)),
		PostgresURI:   getEnv("POSTGRES_URI", ""),
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "reelpilot"),
		RedisURI:      getEnv("REDIS_URI", ""),

		PublishMode:          strings.ToLower(getEnv("PUBLISH_MODE", PublishModeMock)),
		InstagramAccessToken: getEnv("INSTAGRAM_ACCESS_TOKEN", ""),
		InstagramAccountID:   getEnv("INSTAGRAM_ACCOUNT_ID", ""),
		GraphAPIBaseURL:      strings.TrimRight(getEnv("GRAPH_API_BASE_URL", "https://graph.facebook.com/v20.0"), "/"),
		InstagramAPIBaseURL:  strings.TrimRight(getEnv("INSTAGRAM_API_BASE_URL", "https://graph.instagram.com"), "/"),

		CaptionProvider: strings.ToLower(getEnv("CAPTION_PROVIDER", "openai")),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:   strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),

		AutopilotEnabled:         getEnvBool("AUTOPILOT_ENABLED", false),
		AutopilotIntervalMinutes: getEnvInt("AUTOPILOT_INTERVAL_MINUTES", 180),
		AutopilotDelayMinutes:    getEnvInt("AUTOPILOT_DELAY_MINUTES", 10),
		AutopilotMedia:           strings.ToLower(getEnv("AUTOPILOT_MEDIA", "reel")),
		FFmpegPath:               getEnv("FFMPEG_PATH", "ffmpeg"),

		ChannelsFile:     getEnv("CHANNELS_FILE", ""),
		DefaultChannelID: getEnv("DEFAULT_CHANNEL_ID", "main"),

		SchedulerInterval:    getEnvDuration("SCHEDULER_INTERVAL", 15*time.Second),
		TokenRefreshInterval: getEnvDuration("TOKEN_REFRESH_INTERVAL", 10*time.Minute),

		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicURL:  strings.TrimRight(getEnv("R2_PUBLIC_URL", ""), "/"),
			Endpoint:   getEnv("R2_ENDPOINT", ""),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", "reelpilot_session"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogFile:   getEnv("LOG_FILE", ""),
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.PublishMode {
	case PublishModeMock, PublishModeLive:
	default:
		return fmt.Errorf("unknown PUBLISH_MODE %q", c.PublishMode)
	}

	switch c.StoreDriver {
	case StoreDriverFile:
	case StoreDriverPostgres:
		if c.PostgresURI == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_URI")
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("STORE_DRIVER=mongo requires MONGO_URI")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.AutopilotIntervalMinutes <= 0 {
		return fmt.Errorf("AUTOPILOT_INTERVAL_MINUTES must be positive")
	}
	if c.SchedulerInterval <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL must be positive")
	}
	return nil
}

// HasInstagramCredentials reports whether process-wide live credentials are configured.
func (c *Config) HasInstagramCredentials() bool {
	return c.InstagramAccessToken != "" && c.InstagramAccountID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
