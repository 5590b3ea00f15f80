package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/recallhq/memobot-backend/database"
	"github.com/recallhq/memobot-backend/internal/config"
	"github.com/recallhq/memobot-backend/internal/handlers"
	"github.com/recallhq/memobot-backend/internal/models"
	"github.com/recallhq/memobot-backend/internal/routes"
	"github.com/recallhq/memobot-backend/internal/services"
	"github.com/recallhq/memobot-backend/internal/storage"
)

func main() {
	// Load .env file for local development
	if os.Getenv("INSTANCE_CONNECTION_NAME") == "" {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("⚠️  No .env file found - checking environment variables")
		}
	}

	settings := config.Load()

	// Initialize storage
	var store storage.Store

	if os.Getenv("USE_MEMORY_STORE") == "true" {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to database...")
		database.Connect(settings.DatabaseURL)

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.User{},
			&models.Interaction{},
			&models.MediaAsset{},
			&models.Memory{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
	}

	// Initialize gateways
	twilioService := services.NewTwilioService(settings.TwilioAccountSID, settings.TwilioAuthToken, settings.TwilioWhatsAppFrom)
	mem0Service := services.NewMem0Service(settings.Mem0APIKey, settings.Mem0BaseURL)
	transcriptionService := services.NewTranscriptionService(settings.OpenAIAPIKey, settings.OpenAIBaseURL)
	mediaService := services.NewMediaService(settings.TwilioAccountSID, settings.TwilioAuthToken, settings.StorageDir)

	ingestService := services.NewIngestService(store, mediaService, transcriptionService, mem0Service, settings.DefaultTimezone)

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Memobot Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, settings, routes.Handlers{
		Webhook:      handlers.NewWebhookHandler(ingestService),
		Memories:     handlers.NewMemoryHandler(store, mem0Service),
		Interactions: handlers.NewInteractionHandler(store),
		Analytics:    handlers.NewAnalyticsHandler(store),
		Health:       handlers.NewHealthHandler(database.DB, twilioService, mem0Service),
	})

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	log.Println("========================================")
	log.Printf("🚀 Memobot Backend starting on port %s", settings.AppPort)
	log.Printf("🌍 Environment: %s", settings.Env)
	log.Printf("📂 Storage dir: %s", settings.StorageDir)
	log.Printf("📱 WhatsApp outbound: %s", configuredLabel(twilioService.IsConfigured()))
	log.Printf("🧠 Memory service: %s", configuredLabel(mem0Service.IsConfigured()))
	log.Printf("🎙️  Transcription: %s", configuredLabel(transcriptionService.IsConfigured()))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + settings.AppPort))
}

func configuredLabel(configured bool) string {
	if configured {
		return "Configured"
	}
	return "Not configured"
}
