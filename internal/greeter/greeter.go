package greeter

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/adapter"
	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/domain"
	"github.com/kapu/greeting-push-go/internal/util"
	"github.com/kapu/greeting-push-go/pkg/errors"
)

type WeatherFetcher interface {
	FetchWeather(ctx context.Context, city string) domain.Optional[domain.WeatherSnapshot]
}

type EpidemicFetcher interface {
	FetchEpidemic(ctx context.Context, province, city string) domain.Optional[domain.EpidemicSnapshot]
}

type ContentBuilder interface {
	Build(recipient domain.Recipient, weather domain.Optional[domain.WeatherSnapshot], epidemic domain.Optional[domain.EpidemicSnapshot]) (*domain.RenderedContent, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, recipient domain.Recipient, content *domain.RenderedContent) []domain.DeliveryResult
}

// Greeter runs the daily greeting for every recipient, one after another.
type Greeter struct {
	weather    WeatherFetcher
	epidemic   EpidemicFetcher
	builder    ContentBuilder
	dispatcher Dispatcher
	logger     *zap.Logger
}

func New(weather WeatherFetcher, epidemic EpidemicFetcher, builder ContentBuilder, dispatcher Dispatcher, logger *zap.Logger) *Greeter {
	return &Greeter{
		weather:    weather,
		epidemic:   epidemic,
		builder:    builder,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Run greets each recipient in order. A failure or panic while handling
// one recipient is recorded in the report and the run moves on.
func (g *Greeter) Run(ctx context.Context, recipients []domain.Recipient) *domain.RunReport {
	report := &domain.RunReport{}
	started := time.Now()

	g.logger.Info("Greeting run started", zap.Int("recipients", len(recipients)))

	for _, recipient := range recipients {
		rec := &domain.RecipientReport{Recipient: recipient.Key()}
		report.Add(rec)

		if err := ctx.Err(); err != nil {
			rec.Err = fmt.Errorf("run aborted: %w", err)
			continue
		}

		var catcher panics.Catcher
		catcher.Try(func() {
			rec.Results, rec.Err = g.greet(ctx, recipient)
		})
		if recovered := catcher.Recovered(); recovered != nil {
			rec.Err = recovered.AsError()
			g.logger.Error("Recipient processing panicked",
				zap.String("recipient", rec.Recipient),
				zap.Any("panic", recovered.Value),
				zap.ByteString("stack", recovered.Stack),
			)
		} else if rec.Err != nil {
			g.logger.Error("Recipient processing failed",
				zap.String("recipient", rec.Recipient),
				zap.Error(rec.Err),
			)
		}
	}

	failed := 0
	for _, rec := range report.Recipients {
		if rec.Failed() {
			failed++
		}
	}

	g.logger.Info("Greeting run finished",
		zap.Int("recipients", len(report.Recipients)),
		zap.Int("recipients_failed", failed),
		zap.Int("delivered", report.Count(domain.DeliveryDelivered)),
		zap.Int("failed", report.Count(domain.DeliveryFailed)),
		zap.Int("skipped", report.Count(domain.DeliverySkipped)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return report
}

func (g *Greeter) greet(ctx context.Context, recipient domain.Recipient) ([]domain.DeliveryResult, error) {
	weather := g.weather.FetchWeather(ctx, recipient.City)

	epidemic := domain.None[domain.EpidemicSnapshot]()
	if snapshot, ok := weather.Get(); ok {
		epidemic = g.epidemic.FetchEpidemic(ctx, snapshot.Province, recipient.City)
	}

	content, err := g.builder.Build(recipient, weather, epidemic)
	if err != nil {
		return nil, errors.NewServiceError("failed to build greeting", "formatter", "build", err)
	}

	g.logger.Debug("Greeting built",
		zap.String("recipient", recipient.Key()),
		zap.Bool("weather", weather.IsPresent()),
		zap.Bool("epidemic", epidemic.IsPresent()),
		zap.Int("fields", content.Fields.Len()),
		zap.String("preview", util.TruncateString(adapter.PlainText(content.HTML()), constants.RunConfig.PreviewLength)),
	)

	return g.dispatcher.Dispatch(ctx, recipient, content), nil
}
