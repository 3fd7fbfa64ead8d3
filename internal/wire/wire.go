// Package wire builds the application graph from configuration.
//
// Optional integrations degrade rather than fail: no Stripe key leaves the
// payment endpoints answering 503, no verification endpoint fails each
// submission task, no mail transport logs emails, and no NATS URL drops events.
package wire

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	cliadapter "github.com/example/intake/internal/adapters/cli"
	"github.com/example/intake/internal/adapters/email"
	"github.com/example/intake/internal/adapters/events"
	"github.com/example/intake/internal/adapters/httpapi"
	"github.com/example/intake/internal/adapters/sqlite"
	stripeadapter "github.com/example/intake/internal/adapters/stripe"
	"github.com/example/intake/internal/adapters/verification"
	"github.com/example/intake/internal/app"
	"github.com/example/intake/internal/config"
	"github.com/example/intake/internal/core/outbox"
	"github.com/example/intake/internal/db"
	"github.com/example/intake/internal/metrics"
	"github.com/example/intake/internal/ports/primary"
	"github.com/example/intake/internal/ports/secondary"
	"github.com/example/intake/internal/secrets"
)

// App holds the constructed services. Close releases the database and any
// broker connection.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	DB      *sql.DB

	Instructions primary.InstructionService
	Payments     primary.PaymentService
	Outbox       primary.OutboxService
	Worker       *app.OutboxWorker
	Server       *httpapi.Server

	closers []func() error
}

// Build opens the store and constructs every component. Secrets are resolved
// once through a memoising cache over provider.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, provider secrets.Provider) (*App, error) {
	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.New(),
		DB:      conn,
		closers: []func() error{conn.Close},
	}
	if err := a.build(ctx, secrets.NewCache(provider)); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context, sec *secrets.Cache) error {
	cfg, logger := a.Config, a.Logger

	// 1. Repositories
	instructions := sqlite.NewInstructionRepository(a.DB)
	deals := sqlite.NewDealRepository(a.DB)
	payments := sqlite.NewPaymentRepository(a.DB)
	verifications := sqlite.NewVerificationRepository(a.DB)
	outboxRepo := sqlite.NewOutboxRepository(a.DB)

	// 2. Outbound integrations
	gateway, err := buildGateway(ctx, cfg, sec, logger)
	if err != nil {
		return err
	}
	verifier, err := buildVerifier(ctx, cfg, sec, logger)
	if err != nil {
		return err
	}
	mailer, err := buildMailer(ctx, cfg, sec, logger)
	if err != nil {
		return err
	}
	publisher, err := a.buildPublisher(cfg, logger)
	if err != nil {
		return err
	}
	renderer, err := email.NewRenderer(cfg.Email.FirmName)
	if err != nil {
		return err
	}

	// 3. Application services
	queue := app.NewOutboxQueue(outboxRepo, cfg.Outbox.MaxAttempts, a.Metrics)
	executor := app.NewEffectExecutor(instructions, deals, queue, logger)
	locks := app.NewKeyedMutex()

	a.Instructions = app.NewInstructionService(instructions, deals, executor, queue, locks, app.InstructionServiceConfig{
		PaymentsDisabled:  cfg.Payments.Disabled,
		FeeEarnerDomain:   cfg.Email.FeeEarnerDomain,
		FeeEarnerFallback: cfg.Email.FeeEarnerFallback,
		AccountsAddress:   cfg.Email.AccountsAddress,
	}, a.Metrics, logger)

	a.Payments = app.NewPaymentService(gateway, payments, instructions, executor, locks, app.PaymentServiceConfig{
		Disabled: cfg.Payments.Disabled,
		Currency: cfg.Payments.Currency,
	}, logger)

	a.Worker = app.NewOutboxWorker(outboxRepo, map[string]app.TaskHandler{
		outbox.KindVerificationSubmit: app.NewVerificationHandler(instructions, verifier, verifications, logger),
		outbox.KindEmailSend:          app.NewEmailHandler(instructions, renderer, mailer, a.Metrics),
		outbox.KindEventPublish:       app.NewEventHandler(publisher),
	}, queue.Notify(), app.OutboxWorkerConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		RetryBase:    cfg.Outbox.RetryBase,
		StaleAfter:   cfg.Outbox.StaleAfter,
	}, a.Metrics, logger)

	a.Outbox = app.NewOutboxService(outboxRepo, a.Worker)

	// 4. Driving adapters
	a.Server = httpapi.NewServer(a.Instructions, a.Payments, a.Metrics, logger)

	return nil
}

// buildGateway returns a nil interface when no Stripe key is configured.
func buildGateway(ctx context.Context, cfg *config.Config, sec *secrets.Cache, logger *zap.Logger) (secondary.PaymentGateway, error) {
	key, err := secrets.Optional(ctx, sec, cfg.Stripe.SecretKeyRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stripe key: %w", err)
	}
	if key == "" {
		logger.Warn("stripe secret key not configured, card payments unavailable")
		return nil, nil
	}

	webhookSecret, err := secrets.Optional(ctx, sec, cfg.Stripe.WebhookSecretRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve stripe webhook secret: %w", err)
	}
	if webhookSecret == "" {
		logger.Warn("stripe webhook secret not configured, webhooks will be rejected")
	}

	return stripeadapter.New(stripeadapter.Config{SecretKey: key, WebhookSecret: webhookSecret}), nil
}

func buildVerifier(ctx context.Context, cfg *config.Config, sec *secrets.Cache, logger *zap.Logger) (secondary.VerificationClient, error) {
	vc := cfg.Verification
	if vc.BaseURL == "" {
		logger.Warn("verification provider not configured, submissions will fail")
		return verification.Disabled{}, nil
	}

	secret, err := secrets.Optional(ctx, sec, vc.ClientSecretRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve verification client secret: %w", err)
	}

	return verification.New(context.WithoutCancel(ctx), verification.Config{
		Provider:     vc.Provider,
		BaseURL:      vc.BaseURL,
		TokenURL:     vc.TokenURL,
		ClientID:     vc.ClientID,
		ClientSecret: secret,
		Scopes:       vc.Scopes,
		Timeout:      vc.Timeout,
	}), nil
}

// buildMailer prefers Graph, falls back to SMTP, and logs when neither is set.
func buildMailer(ctx context.Context, cfg *config.Config, sec *secrets.Cache, logger *zap.Logger) (secondary.Mailer, error) {
	ec := cfg.Email
	debug := &email.DebugMailer{Logger: logger.Named("mail")}
	if ec.Debug {
		return debug, nil
	}

	var transports []secondary.Mailer
	if ec.Graph.TenantID != "" {
		secret, err := secrets.Optional(ctx, sec, ec.Graph.ClientSecretRef)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve graph client secret: %w", err)
		}
		transports = append(transports, email.NewGraphMailer(context.WithoutCancel(ctx), email.GraphConfig{
			TenantID:     ec.Graph.TenantID,
			ClientID:     ec.Graph.ClientID,
			ClientSecret: secret,
			From:         ec.From,
			BaseURL:      ec.Graph.BaseURL,
			TokenURL:     ec.Graph.TokenURL,
			Timeout:      ec.Graph.Timeout,
		}))
	}
	if ec.SMTP.Host != "" {
		password, err := secrets.Optional(ctx, sec, ec.SMTP.PasswordRef)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve smtp password: %w", err)
		}
		transports = append(transports, email.NewSMTPMailer(email.SMTPConfig{
			Host:     ec.SMTP.Host,
			Port:     ec.SMTP.Port,
			Username: ec.SMTP.Username,
			Password: password,
			From:     ec.From,
		}))
	}

	switch len(transports) {
	case 0:
		logger.Warn("no mail transport configured, emails will only be logged")
		return debug, nil
	case 1:
		return transports[0], nil
	default:
		return &email.FallbackMailer{Primary: transports[0], Fallback: transports[1], Logger: logger.Named("mail")}, nil
	}
}

func (a *App) buildPublisher(cfg *config.Config, logger *zap.Logger) (secondary.EventPublisher, error) {
	if cfg.NATS.URL == "" {
		return events.Noop{}, nil
	}

	publisher, nc, err := events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger.Named("nats"))
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, nc.Drain)
	return publisher, nil
}

// InstructionAdapter returns a CLI adapter writing to out, or stdout when out is nil.
func (a *App) InstructionAdapter(out io.Writer) *cliadapter.InstructionAdapter {
	if out == nil {
		out = os.Stdout
	}
	return cliadapter.NewInstructionAdapter(a.Instructions, out)
}

// OutboxAdapter returns a CLI adapter writing to out, or stdout when out is nil.
func (a *App) OutboxAdapter(out io.Writer) *cliadapter.OutboxAdapter {
	if out == nil {
		out = os.Stdout
	}
	return cliadapter.NewOutboxAdapter(a.Outbox, out)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
