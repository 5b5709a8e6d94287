package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/insightflow/insightflow/config"
	"github.com/insightflow/insightflow/internal/chat"
	"github.com/insightflow/insightflow/internal/chat/session"
	sessmem "github.com/insightflow/insightflow/internal/chat/session/inmemory"
	sessredis "github.com/insightflow/insightflow/internal/chat/session/redis"
	"github.com/insightflow/insightflow/internal/connectors"
	"github.com/insightflow/insightflow/internal/index"
	"github.com/insightflow/insightflow/internal/pipeline"
	"github.com/insightflow/insightflow/internal/store"
	"github.com/insightflow/insightflow/provider"
)

// Run wires the whole service together and serves HTTP until the
// process exits.
func Run(addr string, cfgPath string) error {
	cfg := config.LoadConfig(cfgPath)

	e := newEcho(cfg.Server)

	if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
		log.Printf("[MIGRATE] skipped: %v", err)
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Storage.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}

	conns, err := connectors.Build(cfg.Sources)
	if err != nil {
		return fmt.Errorf("connectors: %w", err)
	}

	indexer := index.New(llm, st, cfg.Research.EmbedConcurrency)
	orch := pipeline.NewOrchestrator(cfg.Research, conns, indexer, st, llm)
	orch.OnStage(observeStage)

	var rdb *redis.Client
	if cfg.Storage.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Addr(),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
		}
	}

	var sessions session.Store
	if cfg.Chat.SessionStore == "redis" {
		if rdb == nil {
			return fmt.Errorf("chat.session_store=redis requires storage.redis")
		}
		sessions = sessredis.New(rdb, cfg.Chat.MaxHistoryTurns, cfg.Chat.SessionTTL)
	} else {
		sessions = sessmem.New(cfg.Chat.MaxHistoryTurns, cfg.Chat.SessionTTL)
	}

	engine := chat.NewEngine(llm, st, sessions, cfg.Chat)

	srv := &Server{
		Store:  st,
		Orch:   orch,
		Chat:   engine,
		Logger: log.New(log.Writer(), "[HTTP] ", log.LstdFlags),
	}
	srv.Register(e)

	if cfg.Scheduler.Enabled {
		sched := &Scheduler{
			Store:    st,
			Orch:     orch,
			Rdb:      rdb,
			Interval: cfg.Scheduler.Interval,
			Stop:     make(chan struct{}),
		}
		sched.Start()
	}

	if addr == "" {
		addr = cfg.Server.Address
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// newEcho builds the echo instance with recovery, CORS and the unified
// JSON error handler.
func newEcho(cfg config.ServerConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}
