package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"peakpartner/backend/internal/config"
	"peakpartner/backend/internal/lock"
	"peakpartner/backend/internal/ratelimit"
	"peakpartner/backend/internal/service/sessions"
	"peakpartner/backend/internal/store"
	"peakpartner/backend/internal/store/memory"
	"peakpartner/backend/internal/store/postgres"
	grpcTransport "peakpartner/backend/internal/transport/grpc"
	"peakpartner/backend/internal/transport/rest"
)

const serviceName = "peakpartner-server"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("lock_backend", cfg.LockBackend),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, log, cfg)
	if err != nil {
		os.Exit(1)
	}
	defer closeStore()

	opts := []sessions.Option{
		sessions.WithLogger(log),
		sessions.WithCancelPendingOnClose(cfg.CancelPendingOnClose),
	}
	if cfg.LockBackend == config.LockBackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}()
		opts = append(opts, sessions.WithLocker(lock.NewRedisLocker(client, "peakpartner:", cfg.LockLeaseTTL)))
		log.Info("redis slot leases enabled", slog.String("redis_addr", cfg.RedisAddr), slog.Duration("ttl", cfg.LockLeaseTTL))
	}
	svc := sessions.NewService(st, opts...)

	limiter := ratelimit.New(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 10*time.Minute)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcTransport.RequestTimeout(cfg.GRPCRequestTimeout),
			grpcTransport.RateLimit(limiter, log),
		),
	)
	grpcTransport.RegisterSessionsServiceServer(grpcServer, grpcTransport.NewSessionsServer(svc, log))
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))

	var httpServer *http.Server
	if cfg.HTTPEnabled {
		gin.SetMode(gin.ReleaseMode)
		router := rest.NewRouter(svc, rest.RouterConfig{
			JWTSecret: cfg.JWTSecret,
			Limiter:   limiter,
			Logger:    log,
		})
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		log.Info("http gateway started", slog.String("http_addr", cfg.HTTPAddr))
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
			os.Exit(1)
		}
	}
}

// openStore logs its own failures.
func openStore(ctx context.Context, log *slog.Logger, cfg config.Config) (store.SessionStore, func(), error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(memory.WithLockTimeout(cfg.DBLockTimeout)), func() {}, nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		SlowQuery:       time.Second,
	}, log)
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, nil, err
	}
	closeDB := func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}

	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Error("database migration failed", slog.Any("err", err))
			closeDB()
			return nil, nil, err
		}
		if v, err := postgres.MigrationVersion(ctx, db); err == nil {
			log.Info("database migrated", slog.Int64("version", v))
		}
	}

	return postgres.NewSessionRepo(db, cfg.DBLockTimeout), closeDB, nil
}

func shutdown(log *slog.Logger, s *grpc.Server, h *http.Server, timeout time.Duration) {
	log.Info("shutting down", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if h != nil {
		if err := h.Shutdown(ctx); err != nil {
			log.Warn("http gateway shutdown failed", slog.Any("err", err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
