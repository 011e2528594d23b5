package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/reelpilot/configs"
	"github.com/maheshrc27/reelpilot/internal/api"
	job "github.com/maheshrc27/reelpilot/internal/jobs"
	"github.com/maheshrc27/reelpilot/internal/logging"
	"github.com/maheshrc27/reelpilot/internal/queue"
	"github.com/maheshrc27/reelpilot/internal/repository"
	"github.com/maheshrc27/reelpilot/internal/service"
	"github.com/maheshrc27/reelpilot/internal/telemetry"
	"github.com/maheshrc27/reelpilot/pkg/utils"
	"github.com/robfig/cron"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type stores struct {
	posts    repository.PostRepository
	channels repository.ChannelRepository
	close    func()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logFile, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	ctx := context.Background()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		slog.Warn("metrics disabled", "error", err.Error())
		metrics = telemetry.NewNoopMetrics()
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer st.close()

	clock := service.SystemClock()
	cipher := utils.NewTokenCipher(cfg.SecretKey)

	channelService := service.NewChannelService(st.channels, cipher, clock, cfg.DefaultChannelID)
	if cfg.ChannelsFile != "" {
		n, err := channelService.SeedFromFile(ctx, cfg.ChannelsFile)
		if err != nil {
			log.Fatalf("Failed to seed channels: %v", err)
		}
		slog.Info("channels seeded", "file", cfg.ChannelsFile, "count", n)
	}
	if err := channelService.EnsureDefaults(ctx, cfg.InstagramAccountID, cfg.InstagramAccessToken); err != nil {
		log.Fatalf("Failed to provision default channels: %v", err)
	}

	var r2Service *service.R2Service
	if cfg.R2.Enabled() {
		r2Service, err = service.NewR2Service(ctx, cfg.R2)
		if err != nil {
			log.Fatalf("Failed to configure R2: %v", err)
		}
	}

	captionService, err := service.NewCaptionService(ctx, cfg, metrics)
	if err != nil {
		log.Fatalf("Failed to configure caption provider: %v", err)
	}
	defer captionService.Close()

	generator, err := service.NewMediaGenerator(cfg.AutopilotMedia, cfg.FFmpegPath)
	if err != nil {
		log.Fatalf("Invalid autopilot media: %v", err)
	}

	mediaService := service.NewMediaService(cfg.UploadDir, r2Service, clock)
	instagramService := service.NewInstagramService(cfg, cipher, metrics)
	lifecycleService := service.NewLifecycleService(st.posts, instagramService, clock, metrics)
	postService := service.NewPostService(st.posts, channelService, mediaService, captionService, clock)
	autopilotService := service.NewAutopilotService(
		service.AutopilotConfig{
			Enabled:  cfg.AutopilotEnabled,
			Interval: time.Duration(cfg.AutopilotIntervalMinutes) * time.Minute,
			Delay:    time.Duration(cfg.AutopilotDelayMinutes) * time.Minute,
		},
		st.posts, channelService, mediaService, captionService, generator, clock, metrics)

	var (
		asynqClient *asynq.Client
		asynqServer *asynq.Server
		enqueuer    queue.Enqueuer
	)
	if cfg.RedisURI != "" {
		redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
		asynqClient = asynq.NewClient(redisConn)
		defer asynqClient.Close()
		enqueuer = asynqClient

		queueW := queue.NewQueue(lifecycleService, autopilotService)
		asynqServer = asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 4,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				slog.Info("task failed", "type", task.Type(), "error", err.Error())
			}),
		})
		go func() {
			slog.Info("starting the asynq server")
			if err := asynqServer.Run(queueW.ServeMux()); err != nil {
				log.Fatalf("Could not start Asynq server: %v", err)
			}
		}()
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload dir: %v", err)
	}

	app := api.NewApp(cfg, api.Services{
		Posts:     postService,
		Lifecycle: lifecycleService,
		Channels:  channelService,
		Autopilot: autopilotService,
		Queue:     enqueuer,
	})

	// cron jobs
	schedulerJob := job.NewSchedulerJob(lifecycleService, metrics)
	refreshTokenJob := job.NewTokenRefreshJob(channelService, instagramService)

	c := cron.New()
	if err := c.AddFunc("@every "+cfg.SchedulerInterval.String(), schedulerJob.Tick); err != nil {
		log.Fatalf("Failed to schedule publisher: %v", err)
	}
	if err := c.AddFunc("@every "+cfg.TokenRefreshInterval.String(), refreshTokenJob.RefreshTokens); err != nil {
		log.Fatalf("Failed to schedule token refresh: %v", err)
	}
	c.Start()

	var autopilotJob *job.AutopilotJob
	if cfg.AutopilotEnabled {
		autopilotJob = job.NewAutopilotJob(autopilotService, time.Duration(cfg.AutopilotIntervalMinutes)*time.Minute)
		if err := autopilotJob.Start(); err != nil {
			log.Fatalf("Failed to start autopilot: %v", err)
		}
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	slog.Info("server is running", "url", cfg.ServerBaseURL, "publish_mode", cfg.PublishMode, "store", cfg.StoreDriver)

	gracefulShutdown(app, func() {
		c.Stop()
		if autopilotJob != nil {
			autopilotJob.Stop()
		}
		if asynqServer != nil {
			asynqServer.Shutdown()
		}
	})
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		db, err := sql.Open("postgres", cfg.PostgresURI)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			closeDB(db)
			return nil, fmt.Errorf("database is unreachable: %w", err)
		}
		if err := repository.EnsureSchema(ctx, db); err != nil {
			closeDB(db)
			return nil, err
		}
		return &stores{
			posts:    repository.NewPostRepository(db),
			channels: repository.NewChannelRepository(db),
			close:    func() { closeDB(db) },
		}, nil

	case config.StoreDriverMongo:
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("mongo is unreachable: %w", err)
		}
		mdb := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureMongoIndexes(ctx, mdb); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &stores{
			posts:    repository.NewMongoPostRepository(mdb),
			channels: repository.NewMongoChannelRepository(mdb),
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					slog.Info(err.Error())
				}
			},
		}, nil

	default:
		fs, err := repository.NewFileStore(filepath.Join(cfg.DataDir, cfg.DBFile))
		if err != nil {
			return nil, err
		}
		return &stores{
			posts:    repository.NewFilePostRepository(fs),
			channels: repository.NewFileChannelRepository(fs),
			close:    func() {},
		}, nil
	}
}

func closeDB(db io.Closer) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, stopJobs func()) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("shutting down server")

	stopJobs()
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		slog.Error("failed to shut down server", "error", err.Error())
	}

	slog.Info("server shutdown complete")
}
