package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	config "github.com/maheshrc27/reelpilot/configs"
	"github.com/maheshrc27/reelpilot/internal/api/handlers"
	"github.com/maheshrc27/reelpilot/internal/api/middleware"
	"github.com/maheshrc27/reelpilot/internal/queue"
	"github.com/maheshrc27/reelpilot/internal/service"
)

type Services struct {
	Posts     service.PostService
	Lifecycle service.LifecycleService
	Channels  service.ChannelService
	Autopilot service.AutopilotService
	// Queue is nil when REDIS_URI is not set.
	Queue queue.Enqueuer
}

func NewApp(cfg *config.Config, s Services) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		BodyLimit:    service.MaxUploadSize + 1024*1024,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		MaxAge:       3600,
	}))

	app.Static("/uploads", cfg.UploadDir)

	health := handlers.NewHealthHandler(cfg.PublishMode)
	app.Get("/api/health", health.Health)

	authMiddleware := middleware.NewAuthMiddleware(cfg)
	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(s.Posts, s.Lifecycle, s.Queue)
	api.Get("/posts", post.ListPosts)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts/:id", post.GetPost)
	api.Patch("/posts/:id", post.UpdatePost)
	api.Post("/posts/:id/optimize-caption", post.OptimizeCaption)
	api.Post("/posts/:id/publish-now", post.PublishNow)
	api.Post("/posts/:id/cancel", post.CancelPost)
	api.Post("/posts/:id/duplicate", post.DuplicatePost)

	channels := handlers.NewChannelHandler(s.Channels)
	api.Get("/channels", channels.ListChannels)

	autopilot := handlers.NewAutopilotHandler(s.Autopilot, s.Queue)
	api.Get("/autopilot", autopilot.Status)
	api.Post("/autopilot/trigger", autopilot.Trigger)

	return app
}
