package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/EatingIting/DRAW-IT/config"
	"github.com/EatingIting/DRAW-IT/gallery"
	"github.com/EatingIting/DRAW-IT/logger"
	"github.com/EatingIting/DRAW-IT/migrations"
	"github.com/EatingIting/DRAW-IT/ranking"
	"github.com/EatingIting/DRAW-IT/session"
	"github.com/EatingIting/DRAW-IT/storage"
	"github.com/EatingIting/DRAW-IT/transport"
	"github.com/EatingIting/DRAW-IT/web"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.SetTrustedProxies([]string{"127.0.0.1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	r.GET("/health", func(ctx *gin.Context) { ctx.String(200, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		// No Origin means same-origin or a non-browser client.
		if origin == "" || slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	config.Load()
	logger.SetDebug(config.Envs.DEBUG)

	if config.Envs.GIN_MODE != "" {
		gin.SetMode(config.Envs.GIN_MODE)
	}
	if config.Envs.POSTGRES_URL == "" {
		logger.Fatal("Missing POSTGRES_URL")
	}

	migrations.Migrate(config.Envs.POSTGRES_URL)

	pgRepo, err := storage.NewPostgresRepo(context.Background(), config.Envs.POSTGRES_URL)
	if err != nil {
		logger.Fatalf("Connecting to postgres: %v", err)
	}
	defer pgRepo.Close()

	galleryStore := gallery.NewStore(config.Envs.GAME_TEMP_DIR)
	if err := galleryStore.Recover(); err != nil {
		logger.Warningf("Recovering gallery from disk: %v", err)
	}
	rankingService := ranking.NewService(pgRepo, config.Envs.MONTHLY_RNK_DIR, nil)

	scheduler := session.NewDelayScheduler()
	go scheduler.Run()
	defer scheduler.Stop()

	hub := transport.NewHub()
	coordinator := session.NewCoordinator(session.CoordinatorDeps{
		Scheduler:   scheduler,
		Broadcaster: hub,
		Directory:   pgRepo,
		Dictionary:  pgRepo,
		Gallery:     galleryStore,
		Ranking:     rankingService,
	})
	hub.Bind(coordinator)

	stopTickers := coordinator.StartTickers()
	defer stopTickers()

	allowedOrigins := strings.Split(config.Envs.FRONTEND_ORIGIN, ",")
	r := CreateServer(allowedOrigins)

	r.GET("/ws", hub.Serve)

	lobbyHandler := web.NewLobbyHandler(pgRepo, coordinator.Presence())
	galleryHandler := web.NewGalleryHandler(galleryStore)
	rankingHandler := web.NewRankingHandler(pgRepo, rankingService)
	{
		api := r.Group("/api")

		api.POST("/rooms", lobbyHandler.CreateRoomHandler)
		api.GET("/rooms", lobbyHandler.ListRoomsHandler)
		api.PUT("/rooms/:roomId", lobbyHandler.UpdateRoomHandler)
		api.POST("/rooms/:roomId/join", lobbyHandler.JoinCheckHandler)

		api.POST("/rooms/:roomId/gallery", galleryHandler.SaveImageHandler)
		api.GET("/rooms/:roomId/gallery", galleryHandler.ListImagesHandler)
		api.GET("/rooms/:roomId/gallery/:filename", galleryHandler.ServeImageHandler)

		api.GET("/ranking", rankingHandler.ListMonthHandler)
		api.POST("/ranking/:imgId/recommend", rankingHandler.RecommendHandler)
		api.GET("/ranking/images/:month/:name", rankingHandler.ServeImageHandler)
	}

	go r.Run(":5000")
	logger.Info("Server started on :5000")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, os.Interrupt)
	<-sigCh
	logger.Info("SIGTERM or SIGINT received, shutting down")
}
