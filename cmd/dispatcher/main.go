// Command taskmesh-dispatcher runs the coordinator process: it accepts
// worker announcements and heartbeats over TCP, schedules queued tasks onto
// idle workers, and serves an HTTP query surface (REST + WebSocket +
// Prometheus) in front of that state.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/taskmesh/coordinator/internal/api"
	"github.com/taskmesh/coordinator/internal/config"
	"github.com/taskmesh/coordinator/internal/dispatcher"
	"github.com/taskmesh/coordinator/internal/events"
	"github.com/taskmesh/coordinator/internal/history"
	"github.com/taskmesh/coordinator/internal/logger"
)

func main() {
	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskmesh",
		Short: "taskmesh distributed command execution coordinator",
	}
	root.AddCommand(buildDispatcherCmd())
	return root
}

func buildDispatcherCmd() *cobra.Command {
	var (
		bind      string
		port      int
		workdir   string
		uiAddr    string
		httpAddr  string
		metrics   bool
		historyDB string
	)

	cmd := &cobra.Command{
		Use:     "dispatcher",
		Aliases: []string{"d"},
		Short:   "Run the taskmesh dispatcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatcher(dispatcherFlags{
				bind:      bind,
				port:      port,
				workdir:   workdir,
				uiAddr:    uiAddr,
				httpAddr:  httpAddr,
				metrics:   metrics,
				historyDB: historyDB,
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "address to bind the worker-facing TCP listener (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "port for the worker-facing TCP listener (overrides config, combined with --bind)")
	cmd.Flags().StringVar(&workdir, "workdir", "", "unused on the dispatcher; present for symmetry with the worker command")
	cmd.Flags().StringVar(&uiAddr, "ui", "", "alias for --http-addr, kept for operators used to the dashboard flag")
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "address to serve the REST/WebSocket/metrics surface on (overrides config)")
	cmd.Flags().BoolVar(&metrics, "metrics", true, "expose the Prometheus /metrics endpoint")
	cmd.Flags().StringVar(&historyDB, "history-db", "", "path to the SQLite history database (overrides config)")

	return cmd
}

type dispatcherFlags struct {
	bind      string
	port      int
	workdir   string
	uiAddr    string
	httpAddr  string
	metrics   bool
	historyDB string
}

func runDispatcher(flags dispatcherFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyDispatcherFlags(cfg, flags)

	logger.Init(cfg.LogLevel, true)
	log := logger.WithComponent("dispatcher")

	historyStore, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer historyStore.Close()
	log.Info().Str("path", cfg.History.DBPath).Msg("history store opened")

	var publisher *events.RedisPubSub
	var sink dispatcher.EventSink
	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, dashboard event bus disabled")
		_ = redisClient.Close()
	} else {
		publisher = events.NewRedisPubSub(redisClient)
		sink = events.NewSink(publisher)
		defer publisher.Close()
	}

	d := dispatcher.New(dispatcher.Config{
		SchedulerTick:    cfg.Dispatcher.SchedulerTick,
		ReaperTick:       cfg.Dispatcher.ReaperTick,
		WorkerStaleAfter: cfg.Dispatcher.WorkerStaleAfter,
	}, historyStore, sink)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tcpErrCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Dispatcher.ListenAddr).Msg("listening for workers")
		tcpErrCh <- d.Run(ctx, cfg.Dispatcher.ListenAddr)
	}()

	httpServer := &http.Server{
		Addr:         cfg.Dispatcher.HTTPAddr,
		Handler:      api.NewServer(cfg, d, historyStore, publisher),
		ReadTimeout:  cfg.Dispatcher.ReadTimeout,
		WriteTimeout: cfg.Dispatcher.WriteTimeout,
		IdleTimeout:  cfg.Dispatcher.IdleTimeout,
	}
	apiServer := httpServer.Handler.(*api.Server)
	apiServer.Start(ctx)

	httpErrCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Dispatcher.HTTPAddr).Msg("serving HTTP query surface")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
			return
		}
		httpErrCh <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-tcpErrCh:
		if err != nil {
			log.Error().Err(err).Msg("dispatcher TCP listener failed")
			stop()
			return err
		}
	case err := <-httpErrCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	apiServer.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown did not complete cleanly")
	}

	log.Info().Msg("dispatcher stopped")
	return nil
}

func applyDispatcherFlags(cfg *config.Config, flags dispatcherFlags) {
	if flags.bind != "" || flags.port != 0 {
		host := flags.bind
		if host == "" {
			host = "0.0.0.0"
		}
		port := flags.port
		if port == 0 {
			port = 7500
		}
		cfg.Dispatcher.ListenAddr = host + ":" + strconv.Itoa(port)
	}
	if flags.httpAddr != "" {
		cfg.Dispatcher.HTTPAddr = flags.httpAddr
	} else if flags.uiAddr != "" {
		cfg.Dispatcher.HTTPAddr = flags.uiAddr
	}
	cfg.Metrics.Enabled = flags.metrics
	if flags.historyDB != "" {
		cfg.History.DBPath = flags.historyDB
	}
}
