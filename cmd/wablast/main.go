package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wablast/internal/broadcast"
	"wablast/internal/config"
	"wablast/internal/constants"
	"wablast/internal/database"
	"wablast/internal/models"
	"wablast/internal/service"
	"wablast/internal/tracing"
	"wablast/pkg/messaging"
	"wablast/pkg/messaging/types"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("wablast %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting wablast")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else if level, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)

	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	db, err := openDatabase(ctx, cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	hub := broadcast.NewHub(logger)

	timeout := time.Duration(cfg.Messaging.TimeoutSec) * time.Second
	factory := types.ClientFactory(func(tenantID string) types.Client {
		return messaging.NewClient(types.ClientConfig{
			BaseURL:  cfg.Messaging.APIBaseURL,
			APIKey:   cfg.Messaging.APIKey,
			TenantID: tenantID,
			Timeout:  timeout,
		})
	})

	registry := service.NewSessionRegistry(factory, db, hub, logger, service.RegistryOptions{
		IdleTTL:         time.Duration(cfg.Sessions.IdleTTLMinutes) * time.Minute,
		PurgeGraceDelay: time.Duration(cfg.Sessions.AuthPurgeGraceDelaySec) * time.Second,
		AuthDir:         cfg.Messaging.AuthDir,
	})

	contacts := service.NewContactService(db, logger)

	dispatcher := service.NewCampaignDispatcher(registry, db, contacts, hub, logger, service.DispatcherOptions{
		MinDelay:      time.Duration(cfg.Campaigns.MinDelaySec) * time.Second,
		DelaySpread:   time.Duration(cfg.Campaigns.DelaySpreadSec) * time.Second,
		MaxRecipients: cfg.Campaigns.MaxRecipients,
		AttachmentDir: cfg.Campaigns.AttachmentDir,
	})

	var rules *models.RuleSet
	if cfg.Bot.RulesPath != "" {
		rules, err = config.LoadRules(cfg.Bot.RulesPath)
		if err != nil {
			return fmt.Errorf("failed to load responder rules: %w", err)
		}
		logger.WithField("rules", len(rules.Rules)).Info("Responder rules loaded")
	} else {
		logger.Info("No responder rules configured, auto-replies disabled")
	}
	responder := service.NewAutoResponder(registry, rules, db, hub, logger)

	webhook := messaging.NewWebhookHandler()
	registerGatewayEvents(webhook, registry, responder)

	server := NewServer(cfg, registry, dispatcher, responder, contacts, hub, webhook, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Server shutdown error: %v", err)
	}

	dispatcher.Stop()
	dispatcher.Wait()
	logger.Info("Shutdown complete")
	return nil
}

// openDatabase retries startup a few times; the data directory may still be
// mounting when the container comes up.
func openDatabase(ctx context.Context, path string, logger *logrus.Logger) (*database.Database, error) {
	var db *database.Database
	var err error

	backoff := time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond
	for attempt := 1; attempt <= constants.DefaultDatabaseRetryAttempts; attempt++ {
		db, err = database.New(path)
		if err == nil {
			return db, nil
		}
		logger.Warnf("Failed to open database (attempt %d): %v", attempt, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil, err
}

// registerGatewayEvents wires webhook events into the session registry and
// the auto responder.
func registerGatewayEvents(webhook types.WebhookHandler, registry *service.SessionRegistry, responder *service.AutoResponder) {
	webhook.RegisterEventHandler(types.EventQRChallenge, func(ctx context.Context, tenantID string, payload json.RawMessage) error {
		var p types.QRChallengePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("malformed challenge payload: %w", err)
		}
		return registry.HandleChallenge(ctx, tenantID, p.Code)
	})

	ready := func(ctx context.Context, tenantID string, _ json.RawMessage) error {
		return registry.HandleReady(ctx, tenantID)
	}
	webhook.RegisterEventHandler(types.EventAuthenticated, ready)
	webhook.RegisterEventHandler(types.EventReady, ready)

	webhook.RegisterEventHandler(types.EventAuthFailed, func(ctx context.Context, tenantID string, payload json.RawMessage) error {
		var p types.ReasonPayload
		_ = json.Unmarshal(payload, &p)
		return registry.HandleAuthFailed(ctx, tenantID, p.Reason)
	})

	webhook.RegisterEventHandler(types.EventDisconnected, func(ctx context.Context, tenantID string, payload json.RawMessage) error {
		var p types.ReasonPayload
		_ = json.Unmarshal(payload, &p)
		return registry.HandleDisconnected(ctx, tenantID, p.Reason)
	})

	webhook.RegisterEventHandler(types.EventMessage, func(ctx context.Context, tenantID string, payload json.RawMessage) error {
		return responder.HandleInbound(ctx, tenantID, payload)
	})
}
