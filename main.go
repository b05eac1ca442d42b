package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"actify-backend/handlers"
	"actify-backend/middleware"
	"actify-backend/models"
	"actify-backend/services"
	"actify-backend/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 20 * 1024 * 1024, // 20MB — proof-file uploads
	})

	// 🔐 GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Printf("⚠️  R2 init failed, proof-file uploads disabled: %v", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Profile{},
		&models.Mission{},
		&models.Application{},
		&models.Evidence{},
		&models.PointHistory{},
		&models.Payment{},
		&models.SiteContent{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	notifier := services.NewNotifier()
	if adminEmail := os.Getenv("ADMIN_NOTIFY_EMAIL"); adminEmail != "" {
		services.AdminNotifyEmail = adminEmail
	}

	profileService := services.NewProfileService(db)
	missionService := services.NewMissionService(db)
	applicationService := services.NewApplicationService(db, notifier)
	pointService := services.NewPointService(db)
	paymentService := services.NewPaymentService(db, notifier)
	contentService := services.NewContentService(db)

	missionService.StartCloseScheduler()

	// 🔐 Secured routes — require user context from the Gateway
	secured := app.Group("/s", middleware.UserContextMiddleware())

	handlers.SetupProfileRoutes(secured, db, profileService)
	handlers.SetupMissionRoutes(secured, db, missionService, applicationService)
	handlers.SetupPointRoutes(secured, db, pointService)
	handlers.SetupPaymentRoutes(secured, db, paymentService)
	handlers.SetupContentRoutes(app, secured, db, contentService)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := app.Listen(":5300"); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("✅ Server running on http://localhost:5300")
	log.Println("✅ Mission close scheduler running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come through Gateway")
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
