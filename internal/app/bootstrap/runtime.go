package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/livechat/internal/adapters/cache"
	eventadapter "github.com/viralforge/livechat/internal/adapters/events"
	"github.com/viralforge/livechat/internal/adapters/flows"
	grpcadapter "github.com/viralforge/livechat/internal/adapters/grpc"
	httpadapter "github.com/viralforge/livechat/internal/adapters/http"
	"github.com/viralforge/livechat/internal/adapters/postgres"
	"github.com/viralforge/livechat/internal/adapters/security"
	wsadapter "github.com/viralforge/livechat/internal/adapters/ws"
	"github.com/viralforge/livechat/internal/application"
	"github.com/viralforge/livechat/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	outbox     *eventadapter.OutboxWorker
	cleanupFn  func(context.Context)
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping livechat engine", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}

	if err := postgres.RunMigrations(ctx, db); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	repos := postgres.NewRepositories(db)
	txManager := postgres.NewTxManager(db)

	surveySigner, err := security.NewSurveyTokenSigner(cfg.SurveySecret)
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init survey signer: %w", err)
	}
	identity := security.NewOIDCVerifier(cfg.OIDCUserinfoURL, cfg.OIDCHTTPTimeout)

	var flowsClient ports.FlowsClient
	if cfg.FlowsBaseURL != "" {
		flowsClient = flows.NewClient(cfg.FlowsBaseURL, flows.StaticToken(cfg.FlowsToken), cfg.FlowsHTTPTimeout)
	} else {
		logger.Warn("flows engine not configured; flow integrations disabled")
	}

	bus := eventadapter.NewGroupBus(cfg.EventBusBuffer)

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:         cfg.ServiceID,
			PresenceTTL:         cfg.PresenceTTL,
			QueueLockTTL:        cfg.QueueLockTTL,
			BulkBatchSize:       cfg.BulkBatchSize,
			SurveyTokenTTL:      cfg.SurveyTokenTTL,
			SurveyWebhookURL:    cfg.SurveyWebhookURL,
			FlowUUIDCacheTTL:    cfg.FlowUUIDCacheTTL,
			FlowUUIDFallbackTTL: cfg.FlowUUIDFallbackTTL,
			FlowUUIDNegativeTTL: cfg.FlowUUIDNegativeTTL,
			ReportTTL:           cfg.ReportTTL,
			DefaultMaxPins:      cfg.DefaultMaxPins,
		},
		Tx:           txManager,
		Rooms:        repos.Rooms,
		Messages:     repos.Messages,
		Metrics:      repos.Metrics,
		Pins:         repos.Pins,
		Notes:        repos.Notes,
		Permissions:  repos.Permissions,
		Directory:    repos.Directory,
		Contacts:     repos.Contacts,
		Statuses:     repos.Statuses,
		Surveys:      repos.Surveys,
		Outbox:       repos.Outbox,
		Presence:     cacheadapter.NewRedisPresenceStore(redisClient),
		QueueLocks:   cacheadapter.NewRedisQueueLocker(redisClient),
		ConfigCache:  cacheadapter.NewRedisConfigCache(redisClient),
		Reports:      cacheadapter.NewRedisReportGuard(redisClient),
		Bus:          bus,
		Flows:        flowsClient,
		SurveySigner: surveySigner,
	})

	socketHandler := wsadapter.NewHandler(svc, bus, identity, repos.Permissions)
	handler := httpadapter.NewHandler(svc, identity, repos.Permissions, cfg.InternalToken)
	router := httpadapter.NewRouter(handler, socketHandler.Routes())
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	grpcadapter.Register(grpcServer, grpcadapter.NewChatInternalServer(repos.Rooms, cfg.InternalToken))

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		_ = sqlDB.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("listen gRPC: %w", err)
	}

	var exporter ports.ExportPublisher
	var closeExporter func() error
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			"livechat.room.assigned": cfg.RoomEventsTopic,
			"livechat.room.closed":   cfg.RoomEventsTopic,
		})
		if err != nil {
			_ = sqlDB.Close()
			_ = redisClient.Close()
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		exporter = kafkaPublisher
		closeExporter = kafkaPublisher.Close
	} else {
		logger.Warn("kafka not configured; export events are logged only")
		exporter = eventadapter.NewLoggingPublisher(logger)
	}

	outbox := eventadapter.NewOutboxWorker(
		logger,
		repos.Outbox,
		exporter,
		cfg.OutboxPollInterval,
		cfg.OutboxBatchSize,
		cfg.OutboxClaimTTL,
		cfg.OutboxMaxRetries,
	)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		outbox:     outbox,
		cleanupFn: func(ctx context.Context) {
			if closeExporter != nil {
				_ = closeExporter()
			}
			_ = redisClient.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", r.httpServer.Addr)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", r.grpcLis.Addr().String())
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.logger.Info("outbox worker started")
	err := r.outbox.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	return nil
}
