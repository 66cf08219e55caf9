package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	cacheadapter "github.com/smallbiznis/decisionlog/internal/adapter/cache"
	"github.com/smallbiznis/decisionlog/internal/bootstrap"
	"github.com/smallbiznis/decisionlog/internal/config"
	httptransport "github.com/smallbiznis/decisionlog/internal/http"
	"github.com/smallbiznis/decisionlog/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/decisionlog/internal/http/middleware"
	"github.com/smallbiznis/decisionlog/internal/jwt"
	"github.com/smallbiznis/decisionlog/internal/localauth"
	apimiddleware "github.com/smallbiznis/decisionlog/internal/middleware"
	"github.com/smallbiznis/decisionlog/internal/migrations"
	"github.com/smallbiznis/decisionlog/internal/password"
	"github.com/smallbiznis/decisionlog/internal/repository"
	"github.com/smallbiznis/decisionlog/internal/server"
	"github.com/smallbiznis/decisionlog/internal/service"
	"github.com/smallbiznis/decisionlog/internal/supabase"
	"github.com/smallbiznis/decisionlog/internal/telemetry"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := newConfig()
		if err != nil {
			return err
		}
		app := fx.New(
			fx.Supply(cfg),
			fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
				return &fxevent.ZapLogger{Logger: logger.Named("fx")}
			}),
			storeModule(cfg),
			fx.Provide(
				newLogger,
				newTelemetry,
				newRevocationStore,
				newRateLimiter,
				service.NewAuthService,
				service.NewRoleGuard,
				service.NewDecisionService,
				newOptionService,
				service.NewAdminService,
				handler.NewAuthHandler,
				handler.NewDecisionHandler,
				handler.NewOptionHandler,
				handler.NewAdminHandler,
				newHandlers,
				httpmiddleware.NewAuth,
				httptransport.NewRouter,
				server.NewHTTPServer,
			),
			fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
		)
		if err := app.Err(); err != nil {
			return err
		}
		app.Run()
		return nil
	},
}

// storeModule selects the auth backend and repositories for STORE_DRIVER.
func storeModule(cfg config.Config) fx.Option {
	if cfg.StoreDriver == config.DriverPostgres {
		return fx.Module("postgres",
			fx.Provide(
				newPGXPool,
				newSnowflake,
				newLocalVerifier,
				newLocalAuth,
				func(pool *pgxpool.Pool) repository.UserRepository { return repository.NewPostgresUserRepo(pool) },
				func(pool *pgxpool.Pool) repository.DecisionRepository { return repository.NewPostgresDecisionRepo(pool) },
				func(pool *pgxpool.Pool) repository.OptionRepository { return repository.NewPostgresOptionRepo(pool) },
			),
			fx.Invoke(migrateOnStart),
		)
	}
	return fx.Module("supabase",
		fx.Provide(
			newSupabaseClient,
			newSupabaseVerifier,
			func(c *supabase.Client) repository.AuthBackend { return supabase.NewAuth(c) },
			func(c *supabase.Client) repository.UserRepository { return supabase.NewUserRepo(c) },
			func(c *supabase.Client) repository.DecisionRepository { return supabase.NewDecisionRepo(c) },
			func(c *supabase.Client) repository.OptionRepository { return supabase.NewOptionRepo(c) },
		),
	)
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSupabaseClient(cfg config.Config) *supabase.Client {
	return supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, &http.Client{Timeout: 15 * time.Second})
}

// newSupabaseVerifier accepts project-secret tokens and, for projects using
// asymmetric signing keys, tokens verifiable against the published key set.
func newSupabaseVerifier(cfg config.Config) *jwt.Verifier {
	keys := jwt.NewKeySetCache(&http.Client{Timeout: cfg.JWKSTimeout})
	return jwt.NewVerifier(cfg.JWTSecret, cfg.SupabaseURL, keys)
}

func newLocalVerifier(cfg config.Config) *jwt.Verifier {
	return jwt.NewVerifier(cfg.JWTSecret, cfg.SupabaseURL, nil)
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func migrateOnStart(lc fx.Lifecycle, cfg config.Config, pool *pgxpool.Pool, logger *zap.Logger) {
	if !cfg.MigrateOnStart {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			db := stdlib.OpenDBFromPool(pool)
			defer db.Close()
			return migrations.Up(ctx, db, logger)
		},
	})
}

func newLocalAuth(cfg config.Config, pool *pgxpool.Pool, verifier *jwt.Verifier, node *snowflake.Node, logger *zap.Logger) (repository.AuthBackend, error) {
	generator, err := jwt.NewGenerator([]byte(cfg.JWTSecret), cfg.Issuer(), cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	return localauth.New(
		repository.NewPostgresIdentityRepo(pool),
		repository.NewPostgresRefreshTokenRepo(pool),
		password.NewHasher(password.DefaultParams),
		generator,
		verifier,
		node,
		cfg,
		logger,
	)
}

// newRevocationStore returns nil when Redis is not configured; logout then
// relies on token expiry alone.
func newRevocationStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (repository.RevocationStore, error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, access token revocation disabled")
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return cacheadapter.NewRedisRevocationStore(client), nil
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newOptionService(options repository.OptionRepository, decisions *service.DecisionService, logger *zap.Logger) *service.OptionService {
	return service.NewOptionService(options, decisions, logger)
}

func newHandlers(auth *handler.AuthHandler, decisions *handler.DecisionHandler, options *handler.OptionHandler, admin *handler.AdminHandler) httptransport.Handlers {
	return httptransport.Handlers{Auth: auth, Decisions: decisions, Options: options, Admin: admin}
}

// startHTTPServer binds the listener inside OnStart so a busy or invalid
// port fails application start.
func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", addr, err)
			}

			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Serve(runCtx, ln); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
