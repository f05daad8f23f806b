package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jamroom/server/internal/controller"
	redisrepo "github.com/jamroom/server/internal/repository/redis"
	"github.com/jamroom/server/internal/scheduler"
	"github.com/jamroom/server/internal/service/room"
	"github.com/jamroom/server/pkg/broker"
	"github.com/jamroom/server/pkg/ctxlogger"
	"github.com/jamroom/server/pkg/redisclient"
)

type AppConfig struct {
	Host          string `json:"host"`
	Port          int    `json:"port"`
	LogLevel      string `json:"log_level"`
	Workers       int    `json:"workers"`
	MessagesLimit int    `json:"messages_limit"`
	HistoryLimit  int    `json:"history_limit"`
	TickInterval  int    `json:"tick_interval_seconds"`
	SyncInterval  int    `json:"sync_interval_seconds"`
	RedisPort     int    `json:"redis_port"`
	RedisHost     string `json:"redis_host"`
	RedisPassword string `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if cfg.MessagesLimit < 1 {
		return fmt.Errorf("messages limit must be greater than 0")
	}
	if cfg.HistoryLimit < 1 {
		return fmt.Errorf("history limit must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	repo := redisrepo.NewRepo(rc)

	// each scheduled task runs on its own connection, released when the
	// task exits
	scope := func(ctx context.Context) (context.Context, func()) {
		conn := rc.Conn()
		return redisrepo.WithConn(ctx, conn), func() { conn.Close() }
	}

	sched := scheduler.NewScheduler(&scheduler.Config{
		Workers: cfg.Workers,
		Scope:   scope,
	}, logger)

	messageBroker := broker.New[room.Message](16)

	registry := room.NewRegistry(repo, repo, room.NewMessageCodec(), sched, messageBroker, &room.Config{
		MessagesLimit: cfg.MessagesLimit,
		HistoryLimit:  cfg.HistoryLimit,
		TickInterval:  time.Duration(cfg.TickInterval) * time.Second,
		SyncInterval:  time.Duration(cfg.SyncInterval) * time.Second,
	}, logger)

	if err := registry.InitializeRooms(ctx); err != nil {
		return fmt.Errorf("failed to initialize rooms: %w", err)
	}

	c := controller.NewController(registry, messageBroker, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: c.Mux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	// dirty rooms are flushed before the scheduler stops
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := registry.Shutdown(flushCtx); err != nil {
		logger.Error("failed to shut down registry", "err", err)
	}

	return nil
}
