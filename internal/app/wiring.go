package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "walletbot/internal/api/http"
	"walletbot/internal/api/http/handlers"
	"walletbot/internal/api/http/mw"
	"walletbot/internal/bot"
	"walletbot/internal/config"
	"walletbot/internal/dedupe"
	rdbdedupe "walletbot/internal/dedupe/redis"
	"walletbot/internal/graph"
	"walletbot/internal/metrics"
	"walletbot/internal/pubsub/nats"
	"walletbot/internal/ratelimit"
	"walletbot/internal/report"
	"walletbot/internal/security"
	"walletbot/internal/service"
	"walletbot/internal/stores/clickhouse"
	"walletbot/internal/stores/redis"

	"github.com/grafana/pyroscope-go"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

const (
	rateLimitPrefix     = "walletbot:rl:"
	memoryDedupeJanitor = time.Minute
)

type Container struct {
	app *App
	log logger.Logger

	// infra, nil when not configured
	redis    *redis.Client
	ch       *clickhouse.Conn
	chWriter *clickhouse.Writer
	nc       *nats.Client

	memDedupe *dedupe.MemoryDedupe

	// metrics
	metrics  *metrics.Metrics
	profiler *pyroscope.Profiler
}

func (c *Container) Start(ctx context.Context) error {
	return c.app.Start(ctx)
}

func (c *Container) Stop(ctx context.Context) error {
	return c.app.Shutdown(ctx)
}

// Build Construct image app. Redis, ClickHouse, NATS and the HTTP API are optional:
// an empty address leaves the dependency out.
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	c := &Container{log: lg}
	cleanup := c.cleanup

	var err error
	c.profiler, err = metrics.InitPProf(lg, &cfg.Metrics.Pyroscope, cfg.App.InstanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("pyroscope initialize failed, error=%w", err)
	}
	if c.profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s as %s", cfg.Metrics.Pyroscope.ServerAddr, cfg.Metrics.Pyroscope.AppName)
	}

	c.metrics = metrics.New()
	lg.Info("Successfully initialize metrics")

	checks := map[string]handlers.CheckFunc{}

	// Redis client
	if cfg.Stores.Redis.Addr != "" {
		if c.redis, err = redis.New(ctx, &cfg.Stores.Redis); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize redis client, error=%w", err)
		}
		checks["redis"] = c.redis.Health
		lg.Infof("Successfully initialize redis client, addr=%s", cfg.Stores.Redis.Addr)
	}

	// Rate limiter
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled && c.redis != nil {
		if limiter, err = ratelimit.New(c.redis, rateLimitPrefix); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize rate limiter, error=%w", err)
		}
		lg.Infof("Successfully initialize rate limiter by prefix %s", rateLimitPrefix)
	}

	// Dedupe: redis first, in-memory when redis is absent or failing
	c.memDedupe = dedupe.NewInMemoryDedupe(lg, cfg.Dedupe.TTL, memoryDedupeJanitor)
	var deduper dedupe.Deduper = c.memDedupe
	if c.redis != nil {
		rd, derr := rdbdedupe.NewRedisDeduper(lg, &cfg.Dedupe, c.redis)
		if derr != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize redis deduper, error=%w", derr)
		}
		deduper = dedupe.NewFallback(lg, rd, c.memDedupe)
		lg.Infof("Successfully initialize Deduper redis_client by prefix %s", cfg.Dedupe.Prefix)
	}

	// ClickHouse client + writer
	if cfg.Stores.ClickHouse.DSN != "" {
		if c.ch, err = clickhouse.New(ctx, &cfg.Stores.ClickHouse); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize clickhouse client, error=%w", err)
		}
		url := strings.Split(cfg.Stores.ClickHouse.DSN, "?")
		lg.Infof("Successfully initialize clickhouse client, url=%s", url[0])

		if err = c.ch.EnsureTable(ctx, cfg.Stores.ClickHouse.Table); err != nil {
			cleanup()
			return nil, nil, err
		}
		checks["clickhouse"] = c.ch.Health

		c.chWriter = clickhouse.NewWriter(lg, c.ch.Native, cfg.Stores.ClickHouse)
		lg.Infof("Successfully initialize clickhouse writer, table=%s", cfg.Stores.ClickHouse.Table)
	}

	// NATS Broadcaster
	if cfg.PubSub.NATS.URL != "" {
		if c.nc, err = nats.New(lg, &cfg.PubSub.NATS); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to initialize nats client, error=%w", err)
		}
		checks["nats"] = c.nc.Health
	}

	// Service Layer
	graphCl, err := graph.NewClient(lg, &cfg.Graph)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize graph client, error=%w", err)
	}
	lg.Infof("Successfully initialize graph client, endpoint=%s", cfg.Graph.Endpoint)

	reporter := report.NewReporter(cfg.Telegram.Command, int(cfg.Graph.Lookback/(24*time.Hour)))

	svc, err := service.NewWalletReportService(lg, graphCl, reporter, service.Options{
		Lookback:      cfg.Graph.Lookback,
		StrictAddress: cfg.Telegram.StrictAddress,
		ChatBucket:    cfg.RateLimit.ByChat,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize wallet report service, error=%w", err)
	}
	svc.WithMetrics(c.metrics)
	if limiter != nil {
		svc.WithLimiter(limiter)
	}
	if c.chWriter != nil {
		svc.WithAudit(c.chWriter)
	}
	if c.nc != nil {
		svc.WithBroadcaster(c.nc)
	}
	lg.Info("Successfully initialize wallet report service")

	// Telegram
	tgBot, err := bot.New(lg, &cfg.Telegram, svc)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	tgBot.WithDeduper(deduper).WithMetrics(c.metrics)

	// HTTP API
	var httpSrv HTTPServer
	if cfg.API.HTTP.Addr != "" {
		srv, herr := buildHTTP(lg, cfg, svc, checks, limiter, c.metrics)
		if herr != nil {
			cleanup()
			return nil, nil, herr
		}
		httpSrv = srv
		lg.Info("Successfully initialize HTTP server")
	}

	c.app = NewApp(lg, tgBot, httpSrv)

	lg.Info("Successfully initialize Wiring")
	return c, cleanup, nil
}

func buildHTTP(
	lg logger.Logger,
	cfg *config.Config,
	svc handlers.ReportService,
	checks map[string]handlers.CheckFunc,
	limiter *ratelimit.Limiter,
	m *metrics.Metrics,
) (*api.Server, error) {
	h, err := handlers.NewHandler(lg, svc, checks)
	if err != nil {
		return nil, err
	}

	mws := api.Middlewares{
		Logging: mw.NewLogging(lg),
		Gzip:    mw.NewGzip(cfg.API.HTTP.GzipLevel, lg),
	}

	if cfg.API.HTTP.CORS.Enabled {
		if mws.CORS, err = mw.NewCORS(&cfg.API.HTTP.CORS); err != nil {
			return nil, fmt.Errorf("failed to initialize cors, error=%w", err)
		}
	}

	if limiter != nil {
		mws.RateLimit = mw.NewRateLimit(lg, limiter, cfg.RateLimit)
	}

	if cfg.Security.JWT.Enabled {
		verifier, verr := security.NewRS256Verifier(&cfg.Security.JWT)
		if verr != nil {
			return nil, fmt.Errorf("failed to initialize JWT verifier, error=%w", verr)
		}
		if mws.JWT, err = mw.NewJWTMiddleware(verifier); err != nil {
			return nil, err
		}
		lg.Info("Successfully initialize JWT-Verifier")
	}

	router := api.BuildRouter(h, m.Handler(), mws)

	return api.NewServer(lg, &cfg.API.HTTP, router)
}

// cleanup closes what Build opened, safe on a partially built container.
// The writer is closed before its connection so the last batch is flushed.
func (c *Container) cleanup() {
	ctxClean, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.chWriter != nil {
		if err := c.chWriter.Close(ctxClean); err != nil {
			c.log.Errorf("Failed to close by cleanupF clickhouse writer: %v", err)
		}
	}

	if c.ch != nil {
		if err := c.ch.Close(); err != nil {
			c.log.Errorf("Failed to close by cleanupF clickhouse client: %v", err)
		}
	}

	if c.nc != nil {
		if err := c.nc.Close(); err != nil {
			c.log.Errorf("Failed to close by cleanupF nats client: %v", err)
		}
	}

	if c.memDedupe != nil {
		c.memDedupe.Close()
	}

	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Errorf("Failed to close by cleanupF redis client: %v", err)
		}
	}

	if c.profiler != nil {
		if err := c.profiler.Stop(); err != nil {
			c.log.Errorf("Failed to stop profiler: %v", err)
		}
	}

	c.log.Info("Successfully cleaned up dependency")
}
