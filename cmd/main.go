package main

import (
	"fmt"
	"os"

	"github.com/projecthub/projecthub-backend/internal/clients/redis"
	"github.com/projecthub/projecthub-backend/internal/config"
	"github.com/projecthub/projecthub-backend/internal/db"
	"github.com/projecthub/projecthub-backend/internal/handlers"
	"github.com/projecthub/projecthub-backend/internal/logger"
	"github.com/projecthub/projecthub-backend/internal/middleware"
	"github.com/projecthub/projecthub-backend/internal/repos"
	"github.com/projecthub/projecthub-backend/internal/server"
	"github.com/projecthub/projecthub-backend/internal/services"
	"github.com/projecthub/projecthub-backend/internal/utils"
)

func main() {
	// Config
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Logger
	log, err := logger.New(cfg.Server.Mode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres
	postgresService, err := db.NewPostgresService(cfg.DB, log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis
	var cache redis.Cache
	if cfg.Redis.Addr != "" {
		cache, err = redis.NewCache(cfg.Redis.Addr, log)
		if err != nil {
			log.Warn("Redis init failed, continuing without cache", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	projectRepo := repos.NewProjectRepo(thePG, log)
	templateRepo := repos.NewTemplateRepo(thePG, log)
	versionRepo := repos.NewTemplateVersionRepo(thePG, log)
	effectivenessRepo := repos.NewEffectivenessRepo(thePG, log)
	calendarEventRepo := repos.NewCalendarEventRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	audit := services.NewLogAuditor(log)
	analyticsService := services.NewAnalyticsService(thePG, log, templateRepo, effectivenessRepo, cache)
	versionService := services.NewVersionService(thePG, log, templateRepo, versionRepo, userRepo)
	templateService := services.NewTemplateService(thePG, log, templateRepo, userRepo, versionService, audit, analyticsService)
	effectivenessService := services.NewEffectivenessService(thePG, log, effectivenessRepo, templateRepo, projectRepo, analyticsService)
	calendarService := services.NewCalendarService(thePG, log, calendarEventRepo)
	optimizerService := services.NewOptimizerService(thePG, log, templateRepo, effectivenessRepo, userRepo, versionService, calendarService, audit)

	// Handlers
	log.Info("Setting up handlers from main...")
	templateHandler := handlers.NewTemplateHandler(templateService)
	versionHandler := handlers.NewVersionHandler(versionService)
	effectivenessHandler := handlers.NewEffectivenessHandler(effectivenessService)
	calendarHandler := handlers.NewCalendarHandler(calendarService)
	optimizerHandler := handlers.NewOptimizerHandler(optimizerService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)

	// Middleware
	jwtSecretKey := cfg.JWT.Secret
	if jwtSecretKey == "" {
		jwtSecretKey = utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	}
	authMiddleware := middleware.NewAuthMiddleware(log, jwtSecretKey)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthMiddleware:       authMiddleware,
		TemplateHandler:      templateHandler,
		VersionHandler:       versionHandler,
		EffectivenessHandler: effectivenessHandler,
		CalendarHandler:      calendarHandler,
		OptimizerHandler:     optimizerHandler,
		AnalyticsHandler:     analyticsHandler,
	})

	port := cfg.Server.Port
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
