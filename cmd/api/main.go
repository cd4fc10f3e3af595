package main

import (
	"log"
	"os"

	_ "github.com/dgappsadmin/OpEx-Main-sub000/api/swagger" // swagger docs
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/database"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/handler"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/middleware"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/repository"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/service"
	"github.com/dgappsadmin/OpEx-Main-sub000/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           OpEx Initiative Tracker API
// @version         1.0
// @description     Operational-excellence initiative tracker with an 11-stage approval workflow.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	initiativeRepo := repository.NewInitiativeRepository(db)
	workflowRepo := repository.NewWorkflowTransactionRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	monitoringRepo := repository.NewMonitoringRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	userService := service.NewUserService(userRepo, refreshRepo)
	initiativeService := service.NewInitiativeService(db, txManager, initiativeRepo, workflowRepo, userRepo)
	workflowService := service.NewWorkflowService(db, txManager, initiativeRepo, workflowRepo, timelineRepo, monitoringRepo, userRepo, wsHub)
	timelineService := service.NewTimelineService(db, txManager, timelineRepo, initiativeRepo)
	monitoringService := service.NewMonitoringService(db, txManager, monitoringRepo, initiativeRepo)
	auditService := service.NewAuditService(auditRepo)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService)
	initiativeHandler := handler.NewInitiativeHandler(initiativeService)
	workflowHandler := handler.NewWorkflowHandler(workflowService)
	timelineHandler := handler.NewTimelineHandler(timelineService)
	monitoringHandler := handler.NewMonitoringHandler(monitoringService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	api := router.Group("/api")
	userHandler.RegisterRoutes(api)
	initiativeHandler.RegisterRoutes(api)
	workflowHandler.RegisterRoutes(api)
	timelineHandler.RegisterRoutes(api)
	monitoringHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
