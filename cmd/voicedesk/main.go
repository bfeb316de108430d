package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/voicedesk-io/voicedesk/internal/dotenv"
	openaiprovider "github.com/voicedesk-io/voicedesk/pkg/core/providers/openai"
	"github.com/voicedesk-io/voicedesk/pkg/core/voice"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/checkpoint"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/config"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/ivr"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/live"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/orchestrator"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/sessionstore"
	gatewayserver "github.com/voicedesk-io/voicedesk/pkg/gateway/server"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/taskstore"
	"github.com/voicedesk-io/voicedesk/pkg/gateway/tools"
)

// gateway holds the assembled components and whatever needs closing
// at shutdown.
type gateway struct {
	server  *gatewayserver.Server
	tracker *live.Tracker
	pool    *pgxpool.Pool
}

func (g *gateway) close() {
	if g.pool != nil {
		g.pool.Close()
	}
}

func buildGateway(ctx context.Context, cfg config.Config, logger *slog.Logger) (*gateway, error) {
	g := &gateway{tracker: live.NewTracker()}

	// Task store: Postgres when configured, in-memory otherwise.
	var tasks taskstore.Store
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := taskstore.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		g.pool = pool
		tasks = taskstore.NewPostgres(pool)
		logger.Info("task store connected", "backend", "postgres")
	} else {
		logger.Warn("no database configured, using in-memory task store")
		tasks = taskstore.NewMemory()
	}

	sessions := sessionstore.NewWithFallback(ctx, sessionstore.FallbackOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.SessionTTL,
		Logger:   logger,
	})

	// Thread history rides the same degradation story as sessions but
	// never expires on its own.
	var checkpoints checkpoint.Store
	if redisStore, ok := sessions.(*sessionstore.RedisStore); ok {
		checkpoints = checkpoint.NewRedisStore(redisStore.Client())
	} else {
		checkpoints = checkpoint.NewMemoryStore()
	}

	provider := openaiprovider.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL,
		openaiprovider.WithModel(cfg.Model))
	pipeline := voice.NewPipeline(cfg.OpenAIAPIKey, voice.Config{
		Voice:  cfg.TTSVoice,
		Format: cfg.AudioFormat,
	})

	executors := tools.TaskExecutors(tasks)
	executors = append(executors,
		tools.NewTransferExecutor(cfg.TransferExtensions, cfg.DefaultDepartment),
		tools.NewDepartmentsExecutor(cfg.TransferExtensions),
	)
	registry := tools.NewRegistry(executors...)

	metrics := gatewayserver.NewMetrics(g.tracker.Count)

	orch := orchestrator.New(orchestrator.Dependencies{
		Provider:    provider,
		Registry:    registry,
		Checkpoints: checkpoints,
		Logger:      logger,
		Metrics:     metrics,
	}, orchestrator.Config{
		Model:         cfg.Model,
		TurnTimeout:   cfg.TurnTimeout,
		ToolTimeout:   cfg.ToolTimeout,
		MaxModelCalls: cfg.MaxModelCallsPerTurn,
	})

	ivrHandler := ivr.NewHandler(ivr.Dependencies{
		Sessions:  sessions,
		Directory: tasks,
		Runner:    orch,
		Logger:    logger,
	}, ivr.Config{
		GatherTimeout:  cfg.GatherTimeout,
		ExitPhrases:    cfg.ExitPhrases,
		MaxPINAttempts: cfg.MaxPINAttempts,
	})

	liveHandler := live.NewHandler(live.Dependencies{
		Sessions:  sessions,
		Directory: tasks,
		Runner:    orch,
		Pipeline:  pipeline,
		Tracker:   g.tracker,
		Logger:    logger,
	}, live.Config{
		MinAudioBytes:       cfg.MinAudioBytes,
		MaxAudioBufferBytes: cfg.MaxAudioBufferBytes,
		MaxJSONMessageBytes: cfg.MaxJSONMessageBytes,
		WriteTimeout:        cfg.WSWriteTimeout,
		ReadTimeout:         cfg.WSReadTimeout,
		PingInterval:        cfg.WSPingInterval,
		MaxSessionDuration:  cfg.MaxSessionDuration,
	})

	g.server = gatewayserver.New(gatewayserver.Dependencies{
		IVR:     ivrHandler,
		Live:    liveHandler,
		Metrics: metrics,
		Logger:  logger,
		Ready: func(ctx context.Context) error {
			if g.pool != nil {
				return g.pool.Ping(ctx)
			}
			return nil
		},
	})
	return g, nil
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.OpenAIAPIKey == "" {
		return errors.New("VOICEDESK_OPENAI_API_KEY is required")
	}

	g, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer g.close()

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           g.server.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}

	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting gateway", "addr", cfg.Addr, "model", cfg.Model)

	group, groupCtx := errgroup.WithContext(signalCtx)
	group.Go(func() error {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down", "open_sessions", g.tracker.Count())

		g.tracker.NotifyAll("The assistant is restarting. Please reconnect in a moment.")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		if !g.tracker.Wait(shutdownCtx) {
			logger.Warn("drain deadline reached, cancelling live sessions")
			g.tracker.CancelAll()
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("gateway stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := dotenv.LoadFile(".env"); err != nil {
		fmt.Fprintf(stderr, "voicedesk: %v\n", err)
		return 1
	}

	if err := run(ctx, logger); err != nil {
		fmt.Fprintf(stderr, "voicedesk: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr))
}
