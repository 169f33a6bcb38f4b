package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baechuer/totp-auth/internal/application/auth"
	"github.com/baechuer/totp-auth/internal/audit"
	"github.com/baechuer/totp-auth/internal/config"
	"github.com/baechuer/totp-auth/internal/domain"
	mongostore "github.com/baechuer/totp-auth/internal/infrastructure/db/mongo"
	"github.com/baechuer/totp-auth/internal/infrastructure/db/postgres"
	"github.com/baechuer/totp-auth/internal/infrastructure/memory"
	rabbitmq_pub "github.com/baechuer/totp-auth/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/totp-auth/internal/infrastructure/redis"
	"github.com/baechuer/totp-auth/internal/infrastructure/security"
	"github.com/baechuer/totp-auth/internal/infrastructure/totp"
	"github.com/baechuer/totp-auth/internal/logger"
	http_handlers "github.com/baechuer/totp-auth/internal/transport/http/handlers"
	"github.com/baechuer/totp-auth/internal/transport/http/middleware"
	"github.com/baechuer/totp-auth/internal/transport/http/response"
	"github.com/baechuer/totp-auth/internal/transport/http/router"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

// Store is a credential store backend with a readiness probe.
type Store interface {
	auth.UserRepo
	Ping(ctx context.Context) error
}

type Deps struct {
	LoadConfig func() (*config.Config, error)

	// OpenStore connects the backend named by cfg.StoreKind, prepares its
	// schema/indexes and returns a close func.
	OpenStore func(ctx context.Context, cfg *config.Config) (Store, func(), error)

	NewRedis func(opts redis.Options) *redis.Client

	NewPublisher func(url, exchange string) (Publisher, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

type Publisher interface {
	auth.EventPublisher
	Close() error
}

const startupTimeout = 10 * time.Second

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	var cleanupFns []func()
	fail := func(err error) (*http.Server, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}

	// 1) credential store
	store, closeStore, err := deps.OpenStore(ctx, cfg)
	if err != nil {
		return fail(fmt.Errorf("open %s store: %w", cfg.StoreKind, err))
	}
	cleanupFns = append(cleanupFns, closeStore)
	logger.Logger.Info().Str("store", cfg.StoreKind).Msg("credential store ready")

	// 2) security
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	logger.Logger.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt signer")
	signer := security.NewJWTSigner(cfg.JWTSecret, cfg.JWTIssuer)

	// seed (dev only)
	if cfg.IsDev() {
		seed(ctx, store, hasher)
	}

	// 3) redis (best-effort)
	var limiter *redis.FixedWindowLimiter
	if cfg.RateLimitEnabled && cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := c.Ping(ctx); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; using in-process rate limits")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			limiter = redis.NewFixedWindowLimiter(c)
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
		}
	}

	// 4) publisher
	var pub auth.EventPublisher = memory.NewNoopPublisher(logger.Logger)
	if cfg.RabbitURL != "" {
		p, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		switch {
		case err == nil:
			pub = p
			cleanupFns = append(cleanupFns, func() { _ = p.Close() })
		case cfg.IsDev():
			logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
		default:
			return fail(fmt.Errorf("rabbitmq: %w", err))
		}
	}

	// 5) service
	codes := totp.NewManager(cfg.TOTPIssuer, cfg.TOTPWindow)
	authSvc := auth.NewService(
		store,
		hasher,
		signer,
		codes,
		codes,
		totp.NewQRRenderer(cfg.QRSize),
		pub,
		auth.Config{
			AccessTTL:           cfg.AccessTokenTTL,
			StoreTimeout:        cfg.StoreTimeout,
			RenderTimeout:       cfg.QRRenderTimeout,
			RotateSecretOnLogin: cfg.RotateSecretOnLogin,
			ReplayProtection:    cfg.TOTPReplayProtection,
		},
	)
	authSvc = authSvc.
		WithAudit(audit.New(logger.Logger).Record).
		WithLogger(logger.Logger)

	// 6) handlers + middleware
	authH := http_handlers.NewAuthHandler(authSvc)
	healthH := http_handlers.NewHealthHandler(store)
	dashH := http_handlers.NewDashboardHandler()

	authMW := middleware.Auth(signer, response.WriteError)
	secondFactorMW := middleware.RequireSecondFactor(authSvc, response.WriteError)

	rl := func(key string, limit int, window time.Duration) router.Middleware {
		if !cfg.RateLimitEnabled {
			return nil
		}
		if limiter != nil {
			return middleware.RateLimitFixedWindow(
				limiter,
				middleware.FixedWindowConfig{
					RouteKey: key,
					Limit:    limit,
					Window:   window,
				},
				response.WriteError,
			)
		}
		// single-instance fallback
		return httprate.Limit(
			limit,
			window,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				response.WriteError(w, r, domain.WithMeta(domain.ErrRateLimited(key), map[string]string{
					"scope":               key,
					"retry_after_seconds": fmt.Sprintf("%d", int(window.Seconds())),
				}))
			}),
		)
	}

	// 7) router
	mux, err := deps.NewRouter(router.Deps{
		Health:         healthH,
		Auth:           authH,
		Dashboard:      dashH,
		AuthMW:         authMW,
		SecondFactorMW: secondFactorMW,

		RLRegister:  rl("auth.register", 3, time.Minute),
		RLLogin:     rl("auth.login", 5, time.Minute),
		RLVerify2FA: rl("auth.2fa.verify", 5, time.Minute),
		RLSetup2FA:  rl("auth.2fa.setup", 5, time.Minute),

		Metrics: promhttp.Handler(),
	})
	if err != nil {
		return fail(err)
	}

	// 8) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
	}

	return srv, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		OpenStore:  openStore,
		NewRedis:   redis.New,
		NewPublisher: func(url, exchange string) (Publisher, error) {
			return rabbitmq_pub.NewPublisher(url, exchange)
		},
		NewRouter: router.New,
	}
}

func openStore(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	switch cfg.StoreKind {
	case config.StoreMemory:
		return memory.NewUserRepo(), func() {}, nil

	case config.StorePostgres:
		db, err := config.NewDB(ctx, cfg.StoreURI, cfg.DBDebug)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return postgres.NewUserRepo(db), func() { _ = db.Close() }, nil

	case config.StoreMongo:
		client, err := mongostore.Connect(ctx, cfg.StoreURI)
		if err != nil {
			return nil, nil, err
		}
		repo := mongostore.NewUserRepo(client.Database(cfg.MongoDB))
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return repo, func() { _ = client.Disconnect(context.Background()) }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported store kind %q", cfg.StoreKind)
	}
}

// seed creates the development account on whichever backend is active.
func seed(ctx context.Context, store Store, hasher *security.BcryptHasher) {
	switch s := store.(type) {
	case *memory.UserRepo:
		memory.SeedUsers(ctx, s, hasher, logger.Logger)
	case *postgres.UserRepo:
		postgres.SeedUsers(ctx, s, hasher, memory.DevUserEmail, memory.DevUserPassword, logger.Logger)
	case *mongostore.UserRepo:
		mongostore.SeedUsers(ctx, s, hasher, memory.DevUserEmail, memory.DevUserPassword, logger.Logger)
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
