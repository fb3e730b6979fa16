package main

import (
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/harborline/stockpilot/internal/config"
	"github.com/harborline/stockpilot/internal/conversation"
	"github.com/harborline/stockpilot/internal/executor"
	"github.com/harborline/stockpilot/internal/handler"
	"github.com/harborline/stockpilot/internal/llm"
	"github.com/harborline/stockpilot/internal/logging"
	"github.com/harborline/stockpilot/internal/nlp"
	"github.com/harborline/stockpilot/internal/parser"
)

func main() {
	// Load configuration
	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.Init(config.AppConfig.Debug); err != nil {
		log.Fatalf("Failed to initialise logging: %v", err)
	}
	defer logging.Sync()

	logging.Infof("configuration loaded, listening on port %s", config.AppConfig.Port)

	// Set Gin mode
	if config.AppConfig.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Wire the pipeline
	completer := llm.NewClient(llm.Options{
		APIKey:      config.AppConfig.LLMAPIKey,
		BaseURL:     config.AppConfig.LLMBaseURL,
		Model:       config.AppConfig.LLMModel,
		MaxTokens:   config.AppConfig.LLMMaxTokens,
		Temperature: config.AppConfig.LLMTemperature,
		Timeout:     config.AppConfig.LLMTimeout,
	})

	sessions := conversation.NewManager(
		config.AppConfig.SessionStoragePath,
		config.AppConfig.SessionMaxMessages,
		config.AppConfig.MessageTTL,
		config.AppConfig.PendingCommandTTL,
	)

	p := parser.New(
		nlp.NewClassifier(completer),
		nlp.NewExtractor(completer),
		sessions,
		parser.Thresholds{
			Fallback:              config.AppConfig.FallbackThreshold,
			OverrideClassifierMax: config.AppConfig.OverrideClassifierMax,
			OverrideExtractorMin:  config.AppConfig.OverrideExtractorMin,
		},
	)

	e := executor.NewExecutor()
	if err := e.Validate(); err != nil {
		log.Fatalf("Action handler table is inconsistent: %v", err)
	}

	h := handler.NewHandler(p, e, sessions)

	// Create router
	r := gin.Default()

	// CORS middleware
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	// Routes
	api := r.Group("/api")
	{
		// Health check
		api.GET("/health", h.HealthCheck)

		// Command interpretation
		api.POST("/command", h.Command)

		// Action catalogue
		api.GET("/actions", h.Actions)

		// Session management
		api.GET("/session/:id", h.SessionInfo)
		api.DELETE("/session/:id", h.ClearSession)

		// Conversational WebSocket
		api.GET("/ws", h.Chat)
	}

	// Background session cleanup
	h.StartSessionCleanup(config.AppConfig.SessionCleanupTick)
	defer h.StopSessionCleanup()

	// Start server
	addr := ":" + config.AppConfig.Port
	logging.Infof("starting StockPilot server on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
