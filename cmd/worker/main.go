// Command taskmesh-worker registers with a dispatcher, executes the shell
// commands assigned to it, and reports results back over TCP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/taskmesh/coordinator/internal/config"
	"github.com/taskmesh/coordinator/internal/logger"
	"github.com/taskmesh/coordinator/internal/worker"
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
	root.AddCommand(buildWorkerCmd())
	return root
}

func buildWorkerCmd() *cobra.Command {
	var (
		name           string
		allowShell     bool
		maxJobs        int
		dispatcherAddr string
	)

	cmd := &cobra.Command{
		Use:     "worker",
		Aliases: []string{"w"},
		Short:   "Run a taskmesh worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(workerFlags{
				name:           name,
				allowShell:     allowShell,
				maxJobs:        maxJobs,
				dispatcherAddr: dispatcherAddr,
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "worker name advertised to the dispatcher (defaults to a generated id)")
	cmd.Flags().BoolVar(&allowShell, "allow-shell", true, "permit this worker to execute arbitrary shell commands")
	cmd.Flags().IntVar(&maxJobs, "max-jobs", 0, "maximum concurrent jobs the dispatcher assigns to this worker (overrides config)")
	cmd.Flags().StringVar(&dispatcherAddr, "dispatcher", "", "dispatcher address to announce to and heartbeat against (overrides config)")

	return cmd
}

type workerFlags struct {
	name           string
	allowShell     bool
	maxJobs        int
	dispatcherAddr string
}

func runWorker(flags workerFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyWorkerFlags(cfg, flags)
	if cfg.Worker.Name == "" {
		cfg.Worker.Name = "worker-" + uuid.NewString()[:8]
	}

	logger.Init(cfg.LogLevel, true)
	log := logger.WithComponent("worker")

	runner, err := worker.NewRunner(worker.Config{
		Name:              cfg.Worker.Name,
		DispatcherAddr:    cfg.Worker.DispatcherAddr,
		BindHost:          cfg.Worker.BindHost,
		BasePort:          cfg.Worker.BasePort,
		PortScanRange:     cfg.Worker.PortScanRange,
		MaxJobs:           cfg.Worker.MaxJobs,
		AllowShell:        cfg.Worker.AllowShell,
		WorkDir:           cfg.Worker.WorkDir,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize worker")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- runner.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("worker stopped unexpectedly")
			return err
		}
	}

	shutdownDone := make(chan struct{})
	go func() {
		runner.Stop()
		close(shutdownDone)
	}()

	select {
	case <-shutdownDone:
	case <-time.After(cfg.Worker.ShutdownTimeout):
		log.Warn().Msg("shutdown timed out waiting for in-flight task")
	}

	log.Info().Msg("worker stopped")
	return nil
}

func applyWorkerFlags(cfg *config.Config, flags workerFlags) {
	if flags.name != "" {
		cfg.Worker.Name = flags.name
	}
	cfg.Worker.AllowShell = flags.allowShell
	if flags.maxJobs > 0 {
		cfg.Worker.MaxJobs = flags.maxJobs
	}
	if flags.dispatcherAddr != "" {
		cfg.Worker.DispatcherAddr = flags.dispatcherAddr
	}
}
