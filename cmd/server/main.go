// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/tycoon/internal/agent"
	"github.com/jason-s-yu/tycoon/internal/auth"
	"github.com/jason-s-yu/tycoon/internal/board"
	"github.com/jason-s-yu/tycoon/internal/cache"
	"github.com/jason-s-yu/tycoon/internal/config"
	"github.com/jason-s-yu/tycoon/internal/database"
	"github.com/jason-s-yu/tycoon/internal/game"
	"github.com/jason-s-yu/tycoon/internal/handlers"
	"github.com/jason-s-yu/tycoon/internal/middleware"
	"github.com/sirupsen/logrus"
)

const reapInterval = 30 * time.Second

func main() {
	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.Production {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if err := auth.Init(cfg.TokenExpire); err != nil {
		logger.Fatalf("auth: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer store.Close()

	deps := game.SessionDeps{Store: store, Logger: logger}
	if cfg.RedisAddr != "" {
		client, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Warnf("redis unavailable, action history disabled: %v", err)
		} else {
			defer client.Close()
			deps.Actions = cache.NewPublisher(client, cfg.Historian.Queue)
			logger.Infof("publishing actions to %s on %s", cfg.Historian.Queue, cfg.RedisAddr)
		}
	}

	games := game.NewGameStore(board.ProviderFromPath(cfg.BoardFile), deps)
	defer games.CloseAll()

	srv := handlers.NewGameServer(ctx, games, store, logger)
	if cfg.Production {
		srv.OriginPatterns = cfg.AllowedOrigins
	} else {
		srv.OriginPatterns = []string{"*"}
	}
	if cfg.AgentCompletionURL != "" {
		completer := agent.NewHTTPCompleter(cfg.AgentCompletionURL)
		srv.NewPolicy = func() agent.Policy {
			return agent.NewLanguageModelPolicy(completer, cfg.AgentDecisionsPerSec, logger)
		}
	}

	resume(ctx, store, games, srv, logger)
	go games.RunReaper(ctx, reapInterval, cfg.InactivityTimeout)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(logger))
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: func() []string {
			// allow only configured origins in production
			if cfg.Production {
				return cfg.AllowedOrigins
			}
			return []string{"https://*", "http://*"}
		}(),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	srv.Routes(r)

	addr := "localhost:" + cfg.Port
	if cfg.Production {
		// bind to all hosts in production mode
		addr = ":" + cfg.Port
	}
	httpSrv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	srv.Wait()
	logger.Info("server stopped")
}

// resume reloads every game that was pending or running when the process last stopped.
func resume(ctx context.Context, store database.Store, games *game.GameStore, srv *handlers.GameServer, logger *logrus.Logger) {
	ids, err := store.Unfinished(ctx)
	if err != nil {
		logger.Warnf("could not list unfinished games: %v", err)
		return
	}
	for _, id := range ids {
		sess, err := games.Load(ctx, id)
		if err != nil {
			logger.WithField("game_id", id).Warnf("not resuming game: %v", err)
			continue
		}
		agents := srv.LaunchAgents(sess)
		logger.WithField("game_id", id).Infof("resumed game with %d agent seats", agents)
	}
}
