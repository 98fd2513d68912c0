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

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"statwizard/internal/api"
	"statwizard/internal/config"
	"statwizard/internal/conversation"
	"statwizard/internal/logging"
	"statwizard/internal/redis"
	"statwizard/internal/service/ai"
	"statwizard/internal/service/assistant"
	"statwizard/internal/session"
	"statwizard/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		cfgPath string
		addr    string
	)
	cmd := &cobra.Command{
		Use:           "statwizard",
		Short:         "Statistical consultant chat server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if addr != "" {
				cfg.BasicConfig.ServerAddress = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", os.Getenv("STATWIZARD_CONFIG"), "path to config.json")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server_address")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.BasicConfig.LogLevel, cfg.BasicConfig.LogFormat, cfg.BasicConfig.Environment)
	if cfg.BasicConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	completer, err := ai.NewAiService(cfg.ActiveProvider, cfg.Provider())
	if err != nil {
		return fmt.Errorf("init completion provider: %w", err)
	}
	orchestrator := assistant.NewService(completer, cfg.ActiveProvider, cfg.BasicConfig.MaxOutputTokens, logger)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	manager := conversation.NewManager(store, orchestrator, cfg.CompletionTimeout(), logger)
	sessions := session.NewService(cfg.SessionTTL())
	handlers := api.NewHandler(orchestrator, manager, sessions, cfg.CompletionTimeout(), logger)

	router := gin.New()
	router.Use(gin.Recovery())
	if err := handlers.RegisterRoutes(router); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}

	logger.Info().
		Str("provider", cfg.ActiveProvider).
		Str("model", completer.Model()).
		Str("session_store", cfg.SessionStore).
		Msg("starting statwizard")
	return serve(ctx, cfg.BasicConfig.ServerAddress, router, logger)
}

// openStore builds the configured conversation store and starts its cleaner.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (conversation.Store, func(), error) {
	ttl := cfg.SessionTTL()
	switch cfg.SessionStore {
	case "redis":
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("create redis client: %w", err)
		}
		return conversation.NewRedisStore(rdb, ttl), func() { rdb.Close() }, nil
	case "sql":
		db, err := storage.Open(cfg.DatabaseType, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		if err := storage.Migrate(db, cfg.DatabaseType); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
		store := conversation.NewSQLStore(db, cfg.DatabaseType, ttl)
		store.StartCleaner(ctx, cfg.CleanInterval(), logger)
		return store, func() { db.Close() }, nil
	default:
		store := conversation.NewMemoryStore(ttl)
		store.StartCleaner(ctx, cfg.CleanInterval(), logger)
		return store, func() {}, nil
	}
}

func serve(ctx context.Context, addr string, handler http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
