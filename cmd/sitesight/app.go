// cmd/sitesight/app.go
package main

import (
	"context"
	"fmt"
	"time"

	"sitesight/internal/common/aws"
	"sitesight/internal/common/config"
	"sitesight/internal/common/database"
	"sitesight/internal/common/errors"
	"sitesight/internal/common/logger"
	"sitesight/internal/common/observability"
	"sitesight/internal/common/validation"
	"sitesight/internal/model"
	"sitesight/internal/pipeline"
	"sitesight/internal/sink"

	"go.uber.org/zap"
)

// app holds the process-wide collaborators shared by every command.
type app struct {
	cfg     *config.Config
	zapLog  *zap.Logger
	log     logger.Logger
	obs     *observability.Observability
	checks  database.Checks
	closers []func() error
}

func newApp(flags *globalFlags) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFromFile(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: cfg.App.Name,
	})

	a := &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    logger.NewZapAdapter(zapLog),
		obs:    observability.New(cfg.App.Name),
		checks: database.Checks{},
	}

	if err := a.obs.EnableTracing(cfg.App.Name, cfg.Observability.JaegerEndpoint); err != nil {
		a.log.Warn("tracing disabled", map[string]interface{}{"error": err})
	}
	return a, nil
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("error during shutdown", map[string]interface{}{"error": err})
		}
	}
	a.obs.Shutdown()
	_ = a.zapLog.Sync()
}

// buildService loads the models and sinks and wires the pipeline. extra
// sinks are appended after the configured ones.
func (a *app) buildService(ctx context.Context, extra ...pipeline.Sink) (*pipeline.Service, error) {
	bundle, err := model.Load(a.cfg.Models, a.log)
	if err != nil {
		return nil, err
	}

	sinks, err := a.buildSinks(ctx)
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, extra...)

	var out pipeline.Sink
	if len(sinks) > 0 {
		out = sink.NewMulti(a.log, sinks...)
	}

	return pipeline.NewServiceFromConfig(a.cfg, bundle, out, a.obs, a.log)
}

func (a *app) buildSinks(ctx context.Context) ([]pipeline.Sink, error) {
	cfg := a.cfg
	var sinks []pipeline.Sink

	if cfg.Sinks.File.Enabled {
		sinks = append(sinks, sink.NewFile(cfg.Sinks.File.Path))
	}

	if cfg.Sinks.Postgres.Enabled {
		pg, err := connectWithBackoff(ctx, func() (*database.PostgresClient, error) {
			return database.NewPostgres(cfg.Database.Postgres)
		}, a.log, "PostgreSQL connection")
		if err != nil {
			return nil, err
		}
		a.onClose(pg.Close)
		a.checks["postgres"] = pg

		pgSink, err := sink.NewPostgres(pg.DB, cfg.Sinks.Postgres.Table)
		if err != nil {
			return nil, err
		}
		if err := pgSink.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		sinks = append(sinks, pgSink)
	}

	if cfg.Sinks.Redis.Enabled {
		rc, err := connectWithBackoff(ctx, func() (*database.RedisClient, error) {
			return database.NewRedis(cfg.Database.Redis)
		}, a.log, "Redis connection")
		if err != nil {
			return nil, err
		}
		a.onClose(rc.Close)
		a.checks["redis"] = rc

		ttl := time.Duration(cfg.Sinks.Redis.RunTTL) * time.Second
		sinks = append(sinks, sink.NewRedis(rc.Client, cfg.Sinks.Redis.KeyPrefix, ttl))
	}

	if cfg.Sinks.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err := retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, connectAttempts, connectRetryDelay, a.log, "Elasticsearch connection")
		if err != nil {
			return nil, err
		}
		a.checks["elasticsearch"] = es
		sinks = append(sinks, sink.NewElasticsearch(es.Client, cfg.Sinks.Elasticsearch.Index))
	}

	if cfg.Sinks.Kafka.Enabled {
		writer := sink.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.onClose(writer.Close)
		sinks = append(sinks, sink.NewKafka(writer))
	}

	if cfg.Sinks.Notify.Enabled {
		notifier, err := a.buildNotifier(ctx)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, notifier)
	}

	names := make([]string, len(sinks))
	for i, s := range sinks {
		names[i] = s.Name()
	}
	a.log.Info("result sinks configured", map[string]interface{}{"sinks": names})

	return sinks, nil
}

func (a *app) buildNotifier(ctx context.Context) (*sink.Notifier, error) {
	awsCfg := a.cfg.Integrations.AWS

	var publisher sink.Publisher
	if awsCfg.SNS.Enabled {
		client, err := aws.NewSNSClient(ctx, awsCfg.Region)
		if err != nil {
			return nil, fmt.Errorf("sns client: %w", err)
		}
		publisher = client
	}

	var mailer sink.Mailer
	if awsCfg.SES.Enabled {
		for _, addr := range append([]string{awsCfg.SES.FromEmail}, awsCfg.SES.To...) {
			if !validation.ValidateEmail(addr) {
				return nil, errors.NewConfigurationError(fmt.Sprintf("invalid notification email %q", addr))
			}
		}
		client, err := aws.NewSESClient(ctx, awsCfg.Region)
		if err != nil {
			return nil, fmt.Errorf("ses client: %w", err)
		}
		mailer = client
	}

	return sink.NewNotifier(sink.NotifierConfig{
		MinLabel: a.cfg.Sinks.Notify.MinLabel,
		TopicARN: awsCfg.SNS.TopicARN,
		From:     awsCfg.SES.FromEmail,
		To:       awsCfg.SES.To,
	}, publisher, mailer), nil
}

const connectAttempts = 5

// connectRetryDelay is the first backoff between connection attempts.
var connectRetryDelay = 2 * time.Second

type pingCloser interface {
	Ping(ctx context.Context) error
	Close() error
}

// connectWithBackoff opens a backend client and pings it until it answers.
// A client whose ping failed is closed before the next attempt.
func connectWithBackoff[T pingCloser](ctx context.Context, open func() (T, error), log logger.Logger, name string) (T, error) {
	var client T
	err := retryWithBackoff(func() error {
		c, err := open()
		if err != nil {
			return err
		}
		if err := c.Ping(ctx); err != nil {
			_ = c.Close()
			return err
		}
		client = c
		return nil
	}, connectAttempts, connectRetryDelay, log, name)
	return client, err
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}
