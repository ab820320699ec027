package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/uptrace/bun"

	"ms-invites/internal/analytics"
	analytics_api "ms-invites/internal/analytics/api"
	"ms-invites/internal/auth"
	"ms-invites/internal/card"
	"ms-invites/internal/checkin"
	"ms-invites/internal/checkin/checkin_api"
	"ms-invites/internal/config"
	"ms-invites/internal/database"
	"ms-invites/internal/invites"
	"ms-invites/internal/invites/invite_api"
	"ms-invites/internal/kafka"
	"ms-invites/internal/logger"
	"ms-invites/internal/sse"
	"ms-invites/internal/store"
)

// app holds everything the HTTP server and background jobs share
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	bunDB    *bun.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer

	emitter  *sse.CheckInEventEmitter
	engine   *checkin.Engine
	sessions *checkin.SessionManager
	verifier auth.Verifier

	invites   *invites.InviteService
	renderer  *card.Renderer
	analytics *analytics.Service
}

func connectRedis(ctx context.Context, addr string, logger *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 10,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	logger.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", addr, client.Options().DB))
	return client, nil
}

func buildVerifier(ctx context.Context, cfg config.AuthConfig, rdb *redis.Client, logger *logger.Logger) (auth.Verifier, error) {
	var verifier auth.Verifier
	switch {
	case cfg.OIDCIssuer != "":
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
		if err != nil {
			return nil, err
		}
		logger.Info("AUTH", fmt.Sprintf("Verifying OIDC tokens from %s", cfg.OIDCIssuer))
		verifier = v
	case cfg.JWTSecret != "":
		v, err := auth.NewHMACVerifier(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		logger.Info("AUTH", "Verifying HS256 tokens with the configured secret")
		verifier = v
	default:
		return nil, errors.New("AUTH_ENABLED is set but neither OIDC_ISSUER nor JWT_SECRET is configured")
	}
	if rdb != nil && cfg.TokenCacheTTL > 0 {
		logger.Info("AUTH", "Caching verified tokens in Redis")
		verifier = auth.NewCachingVerifier(verifier, rdb, cfg.TokenCacheTTL, logger)
	}
	return verifier, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, emitter: sse.NewCheckInEventEmitter()}

	bunDB, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a.bunDB = bunDB
	db := store.New(bunDB)

	opts := []checkin.Option{checkin.WithLogger(logger)}

	if cfg.Redis.Enabled {
		a.redis, err = connectRedis(ctx, cfg.Redis.Addr, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		opts = append(opts, checkin.WithLocker(checkin.NewRedisLocker(a.redis, cfg.Redis.LockTTL)))
		logger.Info("CHECKIN", "Using Redis lock for check-ins")
	}

	// With Kafka every replica's feed is fed from the topic, including this one's.
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topics.CheckIns}, logger); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		a.producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CheckIns, logger)
		groupID := kafka.InstanceGroupID(cfg.Kafka.GroupID)
		a.consumer = kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CheckIns, groupID, logger)
		logger.Info("KAFKA", fmt.Sprintf("Live feed consumer group %s", groupID))
		opts = append(opts, checkin.WithNotifier(a.producer))
		logger.Info("KAFKA", "Kafka producer initialized successfully")
	} else {
		opts = append(opts, checkin.WithNotifier(a.emitter))
	}

	if cfg.Auth.Enabled {
		a.verifier, err = buildVerifier(ctx, cfg.Auth, a.redis, logger)
		if err != nil {
			a.close()
			return nil, err
		}
	} else {
		logger.Warn("AUTH", "Authentication disabled, every request is accepted")
	}

	a.engine = checkin.NewEngine(db, opts...)
	a.sessions = checkin.NewSessionManager(a.engine)

	a.invites = invites.NewInviteService(db, logger)
	a.invites.DefaultQRSize = cfg.Card.DefaultQRSize
	a.renderer = card.NewRenderer(db, card.NewComposer(cfg.Card.QRRenderSize), cfg.Card.ExportConcurrency, logger)
	a.analytics = analytics.NewService(analytics.NewDB(bunDB))
	return a, nil
}

func (a *app) close() {
	if a.producer != nil {
		a.producer.Close()
	}
	if a.consumer != nil {
		a.consumer.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.bunDB != nil {
		a.bunDB.Close()
	}
}

// requestLogger logs one line per request in the service log format
func requestLogger(logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.LogAPI(r.Method, r.URL.Path, fmt.Sprint(ww.Status()), time.Since(start).String())
		})
	}
}

func (a *app) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(a.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// --- Public Routes ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.bunDB.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	})

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		if a.verifier != nil {
			r.Use(auth.Middleware(a.verifier, a.logger))
		} else {
			r.Use(auth.Anonymous("local"))
		}

		r.Route("/api", func(r chi.Router) {
			invite_api.NewHandler(a.invites, a.renderer, a.logger).RegisterRoutes(r)
			checkin_api.NewHandler(a.engine, a.sessions, a.emitter, a.logger).RegisterRoutes(r)
			analytics_api.NewHandler(a.analytics, store.New(a.bunDB), a.logger).RegisterRoutes(r)
		})
		a.logger.Info("ROUTER", "Invite, check-in and analytics routes registered under /api")
	})
	return r
}

// startJobs runs the scan session sweep and, with Kafka, the feed consumer. The returned
// function stops them and waits for running work.
func (a *app) startJobs(ctx context.Context) (func(), error) {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(a.cfg.Scan.SweepSchedule, func() {
		if n := a.sessions.Sweep(a.cfg.Scan.SessionIdle); n > 0 {
			a.logger.Info("SCAN", fmt.Sprintf("Closed %d idle scan sessions", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid scan session sweep schedule %q: %w", a.cfg.Scan.SweepSchedule, err)
	}
	c.Start()

	consumerDone := make(chan struct{})
	ctx, cancel := context.WithCancel(ctx)
	if a.consumer != nil {
		go func() {
			defer close(consumerDone)
			if err := a.consumer.Start(ctx, a.emitter.EmitCheckIn); err != nil {
				a.logger.Error("KAFKA", err.Error())
			}
		}()
	} else {
		close(consumerDone)
	}

	return func() {
		cancel()
		<-c.Stop().Done()
		<-consumerDone
	}, nil
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		os.Exit(runMigrate(os.Args[2:]))
	}

	_ = godotenv.Load() // Loads .env file if present
	cfg := config.Load()

	logger := logger.NewLogger(cfg.LogDir)
	defer logger.Close()
	logger.Info("APP", "Starting Invite Service initialization")

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("APP", fmt.Sprintf("Initialization failed: %v", err))
	}
	defer a.close()

	stopJobs, err := a.startJobs(ctx)
	if err != nil {
		logger.Fatal("APP", err.Error())
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      a.router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Invite Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Shutdown error: %v", err))
	}
	stopJobs()
	logger.Info("APP", "✅ Invite service shutdown complete")
}
