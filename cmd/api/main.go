package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/yashturmbekar/PMCRMS-sub002/api/swagger" // swagger docs
	"github.com/yashturmbekar/PMCRMS-sub002/internal/database"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/handler"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/hsm"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/repository"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/service"
	"github.com/yashturmbekar/PMCRMS-sub002/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Licence Review API
// @version         1.0
// @description     Application review orchestration for municipal licence cases.
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

	if err := database.SeedAssignmentRules(db); err != nil {
		log.Fatalf("Seeding assignment rules failed: %v", err)
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// HSM gateway client
	hsmURL := os.Getenv("HSM_GATEWAY_URL")
	if hsmURL == "" {
		hsmURL = "http://localhost:9090"
	}
	hsmTimeout := 30 * time.Second
	if raw := os.Getenv("HSM_TIMEOUT_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			hsmTimeout = time.Duration(secs) * time.Second
		}
	}
	gateway := hsm.NewClient(hsmURL, hsmTimeout)

	// Set up dependencies (Repository -> Service -> Handler)
	txm := repository.NewTransactionManager(db)
	appRepo := repository.NewApplicationRepository(db)
	officerRepo := repository.NewOfficerRepository(db)
	ruleRepo := repository.NewAssignmentRuleRepository(db)
	historyRepo := repository.NewAssignmentHistoryRepository(db)
	attemptRepo := repository.NewSignatureAttemptRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)

	assignmentService := service.NewAssignmentService(txm, appRepo, officerRepo, ruleRepo, historyRepo, outboxRepo, auditRepo)
	workflowService := service.NewWorkflowService(txm, appRepo, docRepo, auditRepo, assignmentService)
	signatureService := service.NewSignatureService(txm, appRepo, officerRepo, attemptRepo, docRepo, auditRepo, gateway, workflowService, nil)
	officerService := service.NewOfficerService(officerRepo, tokenRepo, appRepo)
	auditService := service.NewAuditService(auditRepo)

	// Outbox dispatcher pushes assignment notifications over the hub
	dispatcher := service.NewOutboxDispatcher(outboxRepo, service.NewHubNotifier(wsHub), 0)
	go dispatcher.Run(context.Background())

	// Initialize Handlers
	applicationHandler := handler.NewApplicationHandler(workflowService)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService)
	signatureHandler := handler.NewSignatureHandler(signatureService, docRepo)
	officerHandler := handler.NewOfficerHandler(officerService)
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
		websocket.ServeWs(wsHub, c)
	})

	// Register API Routes
	applicationHandler.RegisterRoutes(router.Group(""))
	assignmentHandler.RegisterRoutes(router.Group(""))
	signatureHandler.RegisterRoutes(router.Group(""))
	officerHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
