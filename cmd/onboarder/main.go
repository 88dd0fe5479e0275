// onboarder provisions accounts for new hires from onboarding tickets.
//
// By default it performs one pass over the ticket queue and exits. With
// --serve it exposes an authenticated HTTP trigger and, when
// RUN_INTERVAL_MINUTES is set, also runs passes on that interval.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"code.cloudfoundry.org/clock"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/onboarding-service/internal/api/http"
	"github.com/spec-kit/onboarding-service/internal/api/http/handlers"
	"github.com/spec-kit/onboarding-service/internal/auth"
	"github.com/spec-kit/onboarding-service/internal/clients/okta"
	"github.com/spec-kit/onboarding-service/internal/clients/rackspace"
	"github.com/spec-kit/onboarding-service/internal/clients/samanage"
	"github.com/spec-kit/onboarding-service/internal/clients/slack"
	"github.com/spec-kit/onboarding-service/internal/config"
	"github.com/spec-kit/onboarding-service/internal/domain"
	"github.com/spec-kit/onboarding-service/internal/events"
	"github.com/spec-kit/onboarding-service/internal/mailer"
	"github.com/spec-kit/onboarding-service/internal/observability"
	"github.com/spec-kit/onboarding-service/internal/persistence"
	"github.com/spec-kit/onboarding-service/internal/repository"
	"github.com/spec-kit/onboarding-service/internal/service"
	"github.com/spec-kit/onboarding-service/internal/worker"
)

const exitTicketFailures = 2

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var coded *exitError
		if errors.As(err, &coded) {
			os.Exit(coded.ExitCode())
		}
		os.Exit(1)
	}
}

func run() error {
	var serve, failOnTicketError bool
	var issueToken string

	flagSet := pflag.NewFlagSet("onboarder", pflag.ContinueOnError)
	flagSet.BoolVar(&serve, "serve", false, "serve the HTTP trigger instead of running one pass")
	flagSet.StringVar(&issueToken, "issue-token", "", "print a trigger token for this subject and exit")
	flagSet.BoolVar(&failOnTicketError, "fail-on-ticket-error", false, "exit with status 2 when any ticket failed")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if issueToken != "" {
		tokens, err := auth.NewTokenManager(cfg.Trigger.JWTSecret, cfg.Trigger.TokenTTL(), nil)
		if err != nil {
			return err
		}
		token, expiresAt, err := tokens.GenerateToken(issueToken)
		if err != nil {
			return err
		}
		fmt.Println(token)
		fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
		return nil
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	routing, err := config.LoadRouting(cfg.Run.RoutingFile)
	if err != nil {
		return err
	}
	if err := routing.CheckChatTokens(cfg.Chat); err != nil {
		return err
	}

	clk := clock.NewClock()

	ledger, closeLedger, err := openLedger(ctx, cfg, clk, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	tickets, err := samanage.NewClient(samanage.Config{
		BaseURL:     cfg.Ticketing.BaseURL,
		Token:       cfg.Ticketing.Token,
		PerPage:     cfg.Ticketing.PerPage,
		PageTimeout: cfg.Run.CallTimeout(),
		Logger:      logger.Named("samanage"),
	})
	if err != nil {
		return err
	}
	identity, err := okta.NewClient(okta.Config{BaseURL: cfg.Identity.BaseURL, Token: cfg.Identity.Token})
	if err != nil {
		return err
	}
	cloud, err := rackspace.NewClient(rackspace.Config{
		IdentityURL: cfg.Cloud.IdentityURL,
		Username:    cfg.Cloud.Username,
		APIKey:      cfg.Cloud.APIKey,
	})
	if err != nil {
		return err
	}
	chat, err := slack.NewClient(slack.Config{Tokens: cfg.Chat.Tokens})
	if err != nil {
		return err
	}

	mailAWS, err := persistence.LoadAWSConfig(ctx, cfg.Mail.Region)
	if err != nil {
		return err
	}
	renderer, err := mailer.NewRenderer()
	if err != nil {
		return err
	}
	notifier := mailer.New(ses.NewFromConfig(mailAWS), renderer, cfg.Mail.Source, logger.Named("mailer"))

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	timeout := cfg.Run.CallTimeout()
	runner := service.NewRunner(service.RunnerDependencies{
		Tickets:   tickets,
		Extractor: service.NewExtractor(tickets, timeout),
		Builder:   service.NewProfileBuilder(identity, routing, timeout),
		Orchestrator: service.NewOrchestrator(service.OrchestratorDependencies{
			Identity:        identity,
			Cloud:           cloud,
			Chat:            chat,
			Notifier:        notifier,
			Clock:           clk,
			Logger:          logger,
			ActivationDelay: cfg.Run.ActivationDelay(),
			CallTimeout:     timeout,
			CloudPortalURL:  cfg.Cloud.PortalURL,
			VPN: domain.VPNLinks{
				WindowsDownload: cfg.VPN.WindowsDownload,
				MacDownload:     cfg.VPN.MacDownload,
				LinuxDownload:   cfg.VPN.LinuxDownload,
				RemoteGateway:   cfg.VPN.RemoteGateway,
				Port:            cfg.VPN.Port,
			},
		}),
		Ledger:         ledger,
		Dispatcher:     dispatcher,
		Clock:          clk,
		Logger:         logger,
		OnboardingType: cfg.Run.OnboardingType,
		WindowDays:     cfg.Run.WindowDays,
		CallTimeout:    timeout,
	})
	coordinator := service.NewRunCoordinator(runner, logger)

	if serve {
		return serveHTTP(ctx, cfg, coordinator, ledger, metrics, clk, logger)
	}

	summary, err := coordinator.TryRun(ctx, "cli")
	if err != nil {
		logger.Error("run failed", zap.Error(err))
		return err
	}
	if failOnTicketError && summary.Failed+summary.Invalid > 0 {
		return &exitError{
			code: exitTicketFailures,
			err:  fmt.Errorf("%d ticket(s) failed", summary.Failed+summary.Invalid),
		}
	}
	return nil
}

// openLedger connects the configured ledger backend and returns a close func.
func openLedger(ctx context.Context, cfg *config.Config, clk clock.Clock, logger *zap.Logger) (repository.LedgerRepository, func(), error) {
	retry := cfg.Ledger.RetryFailed
	switch cfg.Ledger.Backend {
	case config.LedgerPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				pg.Close()
				return nil, nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		return repository.NewPostgresLedger(pg.PoolHandle(), retry), pg.Close, nil
	case config.LedgerRedis:
		rdb, err := persistence.NewRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewRedisLedger(rdb.Client, cfg.Ledger.KeyPrefix, clk, retry), rdb.Close, nil
	case config.LedgerDynamoDB:
		awsCfg, err := persistence.LoadAWSConfig(ctx, cfg.DynamoDB.Region)
		if err != nil {
			return nil, nil, err
		}
		client := persistence.NewDynamoDB(awsCfg, cfg.DynamoDB, logger)
		return repository.NewDynamoDBLedger(client, cfg.DynamoDB.Table, clk, retry), func() {}, nil
	default:
		logger.Warn("using in-memory ledger, processed tickets are forgotten on exit")
		return repository.NewMemoryLedger(clk, retry), func() {}, nil
	}
}

func serveHTTP(ctx context.Context, cfg *config.Config, coordinator *service.RunCoordinator, ledger repository.LedgerRepository, metrics *observability.Metrics, clk clock.Clock, logger *zap.Logger) error {
	tokens, err := auth.NewTokenManager(cfg.Trigger.JWTSecret, cfg.Trigger.TokenTTL(), clk)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"ledger": ledger,
		}),
		Runs:           handlers.NewRunsHandler(coordinator),
		Metrics:        handlers.NewMetricsHandler(metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go worker.NewScheduler(coordinator, clk, cfg.Run.Interval(), logger).Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.App.Addr())
	}()
	logger.Info("serving", zap.String("addr", cfg.App.Addr()))

	select {
	case err := <-errCh:
		return fmt.Errorf("fiber listen: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	return app.Shutdown()
}
