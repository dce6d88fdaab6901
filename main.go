package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"membership-service/internal/config"
	"membership-service/internal/db"
	"membership-service/internal/events"
	"membership-service/internal/grpcserver"
	"membership-service/internal/handlers"
	"membership-service/internal/identity"
	"membership-service/internal/invitecode"
	"membership-service/internal/logger"
	"membership-service/internal/middleware"
	"membership-service/internal/observability"
	"membership-service/internal/rabbitmq"
	"membership-service/internal/ratelimit"
	"membership-service/internal/repositories"
	"membership-service/internal/services"
	"membership-service/internal/telemetry"
	"membership-service/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	migrateLegacy := flag.Bool("migrate-legacy-roles", false, "move legacy member role maps into memberships and exit")
	batchSize := flag.Int("migrate-batch-size", 100, "groups per page for -migrate-legacy-roles")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logg.Sync() }()

	if err := run(cfg, logg, *migrateLegacy, *batchSize); err != nil {
		logg.Fatal("membership-service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logg *zap.Logger, migrateLegacy bool, batchSize int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Telemetry, cfg.Server.Environment, logg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Connect(cfg.Database, logg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer database.Close()

	store := repositories.NewStore(database, cfg.Tx.LockTimeout)

	if migrateLegacy {
		report, err := services.NewMigrationService(store, logg).MigrateLegacyRoles(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("migrate legacy roles: %w", err)
		}
		logg.Info("legacy roles migrated", zap.Int("groups", report.Groups), zap.Int("inserted", report.Inserted))
		return nil
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logg)
	defer publisher.Close()
	logg.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)),
	)
	observability.SetPublisher(publisher)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditKey, cfg.Telemetry.ServiceName, cfg.Server.Environment, logg)

	limiter, err := ratelimit.Connect(cfg.Redis, logg)
	if err != nil {
		return err
	}

	verifier := identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	hub := ws.NewHub(logg)
	dispatcher := events.NewDispatcher(hub, logg)
	retry := services.NewRetryPolicy(cfg.Tx, logg)

	groupService := services.NewGroupService(store, retry, dispatcher)
	inviteService := services.NewInviteService(store, invitecode.NewRandomGenerator(), cfg.Invite, retry, dispatcher)
	requestService := services.NewJoinRequestService(store, retry, dispatcher)
	likeService := services.NewLikeService(store, retry, dispatcher)

	groupHandler := handlers.NewGroupHandler(groupService, audit)
	inviteHandler := handlers.NewInviteHandler(inviteService, audit)
	requestHandler := handlers.NewJoinRequestHandler(requestService, audit)
	likeHandler := handlers.NewLikeHandler(likeService, audit)
	groupWS := ws.NewGroupWebSocketHandler(hub, groupService, verifier)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(logg),
		otelgin.Middleware(cfg.Telemetry.ServiceName),
		observability.HTTPMetricsMiddleware(),
	)

	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws/groups/:group_id", groupWS.Handle)

	authed := router.Group("/", middleware.AuthMiddleware(verifier))
	handlers.RegisterDebugRoutes(authed, audit, cfg.Server.DebugRoutes)

	authed.POST("/groups", groupHandler.CreateGroup)
	authed.GET("/groups", groupHandler.ListGroups)
	authed.GET("/groups/:group_id", groupHandler.GetGroup)
	authed.PATCH("/groups/:group_id/settings", groupHandler.UpdateSettings)
	authed.DELETE("/groups/:group_id", groupHandler.DeactivateGroup)
	authed.POST("/groups/:group_id/join", groupHandler.JoinGroup)
	authed.GET("/groups/:group_id/members", groupHandler.ListMembers)
	authed.DELETE("/groups/:group_id/members/:user_id", groupHandler.RemoveMember)

	authed.POST("/groups/:group_id/invites", inviteHandler.CreateInvite)
	authed.GET("/groups/:group_id/invites", inviteHandler.ListInvites)
	authed.GET("/invites/:code", inviteHandler.GetInvite)
	authed.DELETE("/invites/:invite_id", inviteHandler.RevokeInvite)
	authed.POST("/invites/redeem", middleware.RateLimit(limiter, logg), inviteHandler.RedeemInvite)

	authed.POST("/groups/:group_id/requests", requestHandler.CreateRequest)
	authed.GET("/groups/:group_id/requests", requestHandler.ListPending)
	authed.POST("/groups/:group_id/requests/:request_id/decision", requestHandler.Decide)

	authed.POST("/videos/:video_id/like", likeHandler.ToggleLike)

	grpcSrv := grpcserver.New(logg)
	grpcLis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() { errCh <- grpcSrv.Serve(grpcLis) }()
	go func() {
		logg.Info("http server listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	grpcSrv.SetServing(true)

	select {
	case <-ctx.Done():
		logg.Info("shutting down")
	case err = <-errCh:
		logg.Error("server failed", zap.Error(err))
	}

	grpcSrv.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := httpSrv.Shutdown(shutdownCtx); shutdownErr != nil {
		logg.Warn("http shutdown", zap.Error(shutdownErr))
	}
	grpcSrv.Stop()
	return err
}
