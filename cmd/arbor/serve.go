package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/runtime"
	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/adapters/process"
	redisAdapter "github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/dispatch"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [graph]",
		Short: "Start the HTTP server",
		Long:  `Serves the graph and a registry of live machines as a JSON API over HTTP, with Prometheus metrics and optional Redis event publishing and locking.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			return serve(cfg, logger)
		},
	}
	cmd.Flags().StringP("addr", "a", "", "Address to listen on (default :8080)")
	return cmd
}

// stack is everything a running server owns.
type stack struct {
	handler    http.Handler
	engine     *arbor.Engine
	machines   *session.Manager
	dispatcher *dispatch.Dispatcher
	redis      *redis.Client
}

// buildStack wires the engine, the shared dispatcher and its listeners, the
// session manager and the HTTP handler from cfg.
func buildStack(cfg config.Config, logger *slog.Logger) (*stack, error) {
	var engineOpts []arbor.Option
	if cfg.Operations != "" {
		ops, err := process.LoadOperations(cfg.Operations)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, arbor.WithExecutor(process.NewRunner(
			process.WithRegistry(ops),
			process.WithFallback(unboundExecutor(logger)),
			process.WithBaseDir(filepath.Dir(cfg.Operations)),
			process.WithLogger(logger),
		)))
	}
	engine, err := newEngine(cfg, logger, engineOpts...)
	if err != nil {
		return nil, err
	}

	s := &stack{
		engine:     engine,
		dispatcher: dispatch.New(dispatch.WithLogger(logger), dispatch.WithBuffer(cfg.Dispatcher.Buffer)),
	}
	s.dispatcher.Subscribe(observability.NewLogListener(logger, slog.LevelDebug))

	handlerOpts := []httpAdapter.Option{httpAdapter.WithLogger(logger)}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			s.dispatcher.Close()
			return nil, err
		}
		s.dispatcher.Subscribe(metrics)
		handlerOpts = append(handlerOpts, httpAdapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	managerOpts := []session.Option{session.WithLogger(logger), session.WithLockTTL(cfg.Redis.LockTTL)}
	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pubOpts := []redisAdapter.PublisherOption{
			redisAdapter.WithChannel(cfg.Redis.Channel),
			redisAdapter.WithLogger(logger),
		}
		if cfg.Redis.StatePrefix != "" {
			pubOpts = append(pubOpts, redisAdapter.WithStateMirror(cfg.Redis.StatePrefix))
		}
		s.dispatcher.Subscribe(redisAdapter.NewPublisher(s.redis, pubOpts...))
		managerOpts = append(managerOpts, session.WithLocker(redisAdapter.NewLocker(s.redis, "arbor:lock:")))
	}

	s.machines = session.NewManager(func(id string) (*runtime.Machine, error) {
		return engine.NewMachine(arbor.WithMachineID(id), arbor.WithMachineDispatcher(s.dispatcher))
	}, managerOpts...)

	streams := httpAdapter.NewStreamManager(logger)
	s.dispatcher.Subscribe(streams)
	handlerOpts = append(handlerOpts, httpAdapter.WithStreamManager(streams))

	s.handler = httpAdapter.NewHandler(engine, s.machines, handlerOpts...)
	return s, nil
}

// unboundExecutor accepts operations that have no command, so graphs can
// declare more operations than the server knows how to run.
func unboundExecutor(logger *slog.Logger) ports.OperationExecutor {
	return ports.ExecutorFunc(func(_ context.Context, op *domain.Operation, _ any) error {
		logger.Warn("operation has no command, skipping", "operation", op.Name())
		return nil
	})
}

// Close disposes every machine, then stops event delivery and Redis.
func (s *stack) Close(ctx context.Context) error {
	err := s.machines.Close(ctx)
	if flushErr := s.dispatcher.Flush(ctx); flushErr != nil && err == nil {
		err = flushErr
	}
	s.dispatcher.Close()
	if s.redis != nil {
		if closeErr := s.redis.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func serve(cfg config.Config, logger *slog.Logger) error {
	st, err := buildStack(cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           st.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Starting Arbor Server", "addr", srv.Addr, "graph", cfg.Graph, "redis", cfg.Redis.Addr != "")
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt or terminate signals.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		st.Close(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("Start shutdown", "signal", sig.String())

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		// Asking listener to shut down and shed load.
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
			if err := srv.Close(); err != nil {
				logger.Error("Error killing server", "err", err)
			}
		}
		if err := st.Close(ctx); err != nil {
			logger.Warn("Machines did not shut down cleanly", "err", err)
		}
		logger.Info("Arbor Server stopped gracefully")
	}
	return nil
}
