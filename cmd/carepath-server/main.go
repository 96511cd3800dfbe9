// cmd/carepath-server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"carepath/internal/agents/adherence"
	"carepath/internal/agents/docinterpreter"
	"carepath/internal/agents/escalation"
	"carepath/internal/agents/patientcomms"
	"carepath/internal/agents/riskstratifier"
	"carepath/internal/common/config"
	"carepath/internal/common/database"
	"carepath/internal/common/logger"
	"carepath/internal/common/observability"
	"carepath/internal/genai"
	"carepath/internal/inference"
	"carepath/internal/notify"
	"carepath/internal/pipeline"
	"carepath/internal/server"
)

// retryWithBackoff attempts an operation with exponential backoff.
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting carepath server",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	// --- Store ---
	store := database.New(cfg.Database.Redis)
	defer store.Close()

	err = retryWithBackoff(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return store.Ping(ctx)
	}, 5, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("could not connect to Redis", zap.Error(err))
	}

	// --- Inference callers ---
	// Extraction runs against the real inference API behind the resilient
	// client and retry policy. The downstream analyses run on deterministic
	// responders until their model-backed prompts ship.
	client := genai.NewClient(cfg.GenAI, obs, log)
	extractionCaller := genai.NewRetrier(client, cfg.GenAI.MaxRetries, log)

	stub := inference.NewStub()
	stub.Register(riskstratifier.CallerLabel, riskstratifier.StubResponder)
	stub.Register(patientcomms.CallerLabel, patientcomms.StubResponder)
	stub.Register(adherence.CallerLabel, adherence.StubResponder)
	stub.Register(escalation.CallerLabel, escalation.StubResponder)

	// --- Notifier ---
	var notifier pipeline.EscalationNotifier = notify.NopNotifier{}
	if cfg.Notifications.Enabled {
		careTeam, err := notify.NewCareTeamNotifier(context.Background(), cfg.Notifications, log)
		if err != nil {
			zapLog.Fatal("notifier init failed", zap.Error(err))
		}
		notifier = careTeam
	}

	// --- Pipelines ---
	docs := pipeline.NewDocumentPipeline(
		docinterpreter.New(extractionCaller, log),
		riskstratifier.New(stub, log),
		patientcomms.New(stub, log),
		store, obs, log,
	)
	adherencePipeline := pipeline.NewAdherencePipeline(
		adherence.New(stub, log),
		escalation.New(stub, log),
		store, notifier, obs, log,
		cfg.Pipelines.HistoryWindowDays,
	)

	// --- HTTP server ---
	srv, err := server.New(*cfg, docs, adherencePipeline, store, log)
	if err != nil {
		zapLog.Fatal("server init failed", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			zapLog.Fatal("server failed", zap.Error(err))
		}
	case sig := <-stop:
		zapLog.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			zapLog.Error("shutdown error", zap.Error(err))
		}
	}

	zapLog.Info("carepath server stopped")
}
