package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/kapu/greeting-push-go/internal/adapter"
	"github.com/kapu/greeting-push-go/internal/apiclient"
	"github.com/kapu/greeting-push-go/internal/config"
	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/domain"
	"github.com/kapu/greeting-push-go/internal/greeter"
	"github.com/kapu/greeting-push-go/internal/service/cache"
	"github.com/kapu/greeting-push-go/internal/service/database"
	"github.com/kapu/greeting-push-go/internal/service/dispatch"
	"github.com/kapu/greeting-push-go/internal/service/epidemic"
	"github.com/kapu/greeting-push-go/internal/service/pushplus"
	"github.com/kapu/greeting-push-go/internal/service/recipient"
	"github.com/kapu/greeting-push-go/internal/service/wechat"
	"github.com/kapu/greeting-push-go/internal/service/weather"
	"github.com/kapu/greeting-push-go/internal/util"
)

// Container holds the assembled greeting pipeline for one run.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Greeter    *greeter.Greeter
	Recipients []domain.Recipient

	closers []func()
}

// Run greets every loaded recipient.
func (c *Container) Run(ctx context.Context) *domain.RunReport {
	return c.Greeter.Run(ctx, c.Recipients)
}

// Close releases infrastructure connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build assembles clients, channels and the optional Redis ledger and
// Postgres recipient source. ctx must outlive the run: the WeChat token
// source is bound to it.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	location := util.LoadLocation(cfg.Run.TimeZone)

	// Upstream APIs
	api := apiclient.NewClient(apiclient.Options{
		Timeout:        cfg.HTTP.Timeout,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
	}, logger)
	weatherClient := weather.NewClient(api, cfg.Endpoints.Weather, logger)
	epidemicClient := epidemic.NewClient(api, cfg.Endpoints.Epidemic, logger)

	formatter, err := adapter.NewGreetingFormatter(location)
	if err != nil {
		return nil, err
	}

	// Delivery channels, each enabled by its own credentials
	var channels []dispatch.Channel
	if cfg.WeChat.Enabled() {
		provider := wechat.NewTokenProvider(api, cfg.Endpoints.WeChat, cfg.WeChat.AppID, cfg.WeChat.AppSecret, logger)
		tokens := oauth2.ReuseTokenSource(nil, provider.TokenSource(ctx))
		channels = append(channels, wechat.NewTemplateChannel(api, tokens, wechat.TemplateConfig{
			BaseURL:    cfg.Endpoints.WeChat,
			TemplateID: cfg.WeChat.TemplateID,
			TargetURL:  cfg.WeChat.TargetURL,
		}, logger))
	}
	if cfg.PushPlus.Enabled() {
		channels = append(channels, pushplus.NewRelay(api, cfg.Endpoints.PushPlus, cfg.PushPlus.Token, cfg.PushPlus.Title, logger))
	}

	// Optional delivery ledger
	var ledger dispatch.Ledger
	if cfg.Ledger.Enabled {
		cacheSvc, cacheErr := cache.NewCacheService(ctx, cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if cacheErr != nil {
			logger.Warn("Delivery ledger disabled, Redis unavailable", zap.Error(cacheErr))
		} else {
			closers = append(closers, func() {
				_ = cacheSvc.Close()
			})
			ledger = cache.NewDeliveryLedger(cacheSvc, constants.LedgerConfig.TTL, logger)
		}
	}

	recipients, err := loadRecipients(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	dispatcher := dispatch.NewDispatcher(channels, logger, dispatch.Options{
		Ledger:   ledger,
		DryRun:   cfg.Run.DryRun,
		Location: location,
	})

	logger.Info("Greeting pipeline assembled",
		zap.Strings("channels", dispatcher.ChannelNames()),
		zap.Int("recipients", len(recipients)),
		zap.String("recipient_source", cfg.Run.RecipientSource),
		zap.String("timezone", location.String()),
		zap.Bool("ledger", ledger != nil),
		zap.Bool("dry_run", cfg.Run.DryRun),
	)

	return &Container{
		Config:     cfg,
		Logger:     logger,
		Greeter:    greeter.New(weatherClient, epidemicClient, formatter, dispatcher, logger),
		Recipients: recipients,
		closers:    closers,
	}, nil
}

func loadRecipients(ctx context.Context, cfg *config.Config, logger *zap.Logger) ([]domain.Recipient, error) {
	if cfg.Run.RecipientSource != config.RecipientSourcePostgres {
		return cfg.Recipients, nil
	}

	postgresSvc, err := database.NewPostgresService(ctx, database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres service: %w", err)
	}
	defer func() {
		_ = postgresSvc.Close()
	}()

	recipients, err := recipient.NewRepository(postgresSvc.DB(), logger).FindEnabled(ctx)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("no enabled recipients in greeting_recipients")
	}
	if err := config.ValidateRecipients(recipients, cfg.WeChat.Enabled()); err != nil {
		return nil, fmt.Errorf("invalid recipient in database: %w", err)
	}
	return recipients, nil
}
