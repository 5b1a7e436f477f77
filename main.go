package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"guild-chat-service/internal/config"
	"guild-chat-service/internal/db"
	"guild-chat-service/internal/gateway"
	"guild-chat-service/internal/handlers"
	"guild-chat-service/internal/identity"
	"guild-chat-service/internal/middleware"
	"guild-chat-service/internal/observability"
	"guild-chat-service/internal/pipeline"
	"guild-chat-service/internal/rabbitmq"
	"guild-chat-service/internal/ratelimit"
	"guild-chat-service/internal/repositories"
	"guild-chat-service/internal/snowflake"
	"guild-chat-service/internal/telemetry"
	"guild-chat-service/internal/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	allocator, err := snowflake.NewAllocator(cfg.WorkerID)
	if err != nil {
		log.Fatalf("failed to build id allocator: %v", err)
	}

	aliasRepo := repositories.NewAliasRepo(database)
	topologyRepo := repositories.NewTopologyRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	profileRepo := repositories.NewProfileRepo(database)
	inviteRepo := repositories.NewInvitationRepo(database)
	auditRepo := repositories.NewAuditRepo(database)

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.Exchange)
	defer publisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(publisher))
	if reason := rabbitmq.PublisherNoopReason(publisher); reason != "" {
		log.Printf("audit publisher noop reason: %s", reason)
	}
	recorder := telemetry.NewRecorder(auditRepo, publisher, "audit.chat", "guild-chat-service", cfg.Environment)

	if eventsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange); err == nil {
		observability.SetPublisher(eventsPublisher)
		defer eventsPublisher.Close()
	} else {
		log.Printf("ws event publishing disabled: %v", err)
	}

	stop := make(chan struct{})
	defer close(stop)

	limiter := ratelimit.NewLimiter(cfg.RateLimit, cfg.RateWindow)
	limiter.StartSweeper(cfg.RateIdleTTL, cfg.RateIdleTTL, stop)

	registry := gateway.NewRegistry()
	registry.StartSweeper(cfg.SweepEvery, cfg.StaleWindow, stop)

	anonymizer := identity.NewAnonymizer(aliasRepo)
	hub := ws.NewHub()
	pipe := pipeline.New(limiter, anonymizer, topologyRepo, messageRepo, hub, recorder)

	guildHandler := handlers.NewGuildHandler(topologyRepo)
	channelHandler := handlers.NewChannelHandler(topologyRepo, pipe, recorder)
	conversationHandler := handlers.NewConversationHandler(topologyRepo, profileRepo, anonymizer)
	inviteHandler := handlers.NewInviteHandler(inviteRepo, topologyRepo, allocator)
	gatewayWS := ws.NewGatewayHandler(hub, registry, pipe, topologyRepo, profileRepo, cfg.JWTSecret)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware("guild-chat-service"))

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.POST("/guilds", authMiddleware, guildHandler.CreateGuild)
	router.GET("/guilds", authMiddleware, guildHandler.ListGuilds)
	router.GET("/guilds/:guild_id", authMiddleware, guildHandler.GetGuildHierarchy)

	router.POST("/channels", authMiddleware, channelHandler.CreateChannel)
	router.PATCH("/channels/:channel_id", authMiddleware, channelHandler.RenameChannel)
	router.PATCH("/channels/:channel_id/privacy", authMiddleware, channelHandler.TogglePrivacy)
	router.GET("/channels/:channel_id/messages", authMiddleware, channelHandler.GetMessages)
	router.GET("/channels/:channel_id/members", authMiddleware, channelHandler.ListMembers)
	router.POST("/channels/:channel_id/join", authMiddleware, channelHandler.JoinChannel)

	router.GET("/conversations", authMiddleware, conversationHandler.ListConversations)
	router.POST("/dms", authMiddleware, conversationHandler.CreateDM)
	router.GET("/me", authMiddleware, conversationHandler.Me)

	router.POST("/invites", authMiddleware, inviteHandler.CreateInvite)
	router.GET("/invites/pending", authMiddleware, inviteHandler.ListPending)
	router.POST("/invites/handle", authMiddleware, inviteHandler.HandleInvite)

	router.GET("/ws", gatewayWS.Handle)

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.Ping(); err != nil {
			c.JSON(503, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, recorder, auditRepo, cfg.Debug)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
