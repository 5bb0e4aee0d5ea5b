package dispatch

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/adapter"
	"github.com/kapu/greeting-push-go/internal/constants"
	"github.com/kapu/greeting-push-go/internal/domain"
	"github.com/kapu/greeting-push-go/internal/util"
)

// ErrSkipped marks a channel that chose not to send. Wrap it to attach a reason.
var ErrSkipped = stderrors.New("delivery skipped")

// ErrCredentialUnavailable is a skip that still counts against the
// recipient: the channel was configured but could not authenticate.
var ErrCredentialUnavailable = fmt.Errorf("%w: credential unavailable", ErrSkipped)

// Channel delivers rendered content to one recipient over one transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, recipient domain.Recipient, content *domain.RenderedContent) error
}

// Ledger remembers which (day, channel, recipient) combinations were
// already delivered.
type Ledger interface {
	WasDelivered(ctx context.Context, day, channel, recipientKey string) (bool, error)
	MarkDelivered(ctx context.Context, day, channel, recipientKey string) error
}

type Options struct {
	Ledger   Ledger
	DryRun   bool
	Location *time.Location
	Now      func() time.Time
}

// Dispatcher attempts every configured channel for a recipient, in order,
// independently of each other's outcome.
type Dispatcher struct {
	channels []Channel
	ledger   Ledger
	dryRun   bool
	location *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

func NewDispatcher(channels []Channel, logger *zap.Logger, opts Options) *Dispatcher {
	location := opts.Location
	if location == nil {
		location = util.LoadLocation(util.DefaultTimeZone)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{
		channels: channels,
		ledger:   opts.Ledger,
		dryRun:   opts.DryRun,
		location: location,
		now:      now,
		logger:   logger,
	}
}

// ChannelNames lists the configured channels in dispatch order.
func (d *Dispatcher) ChannelNames() []string {
	names := make([]string, 0, len(d.channels))
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	return names
}

// Dispatch returns one result per configured channel.
func (d *Dispatcher) Dispatch(ctx context.Context, recipient domain.Recipient, content *domain.RenderedContent) []domain.DeliveryResult {
	results := make([]domain.DeliveryResult, 0, len(d.channels))
	key := recipient.Key()

	if d.dryRun {
		d.logger.Info("Dry run, greeting not sent",
			zap.String("recipient", key),
			zap.String("preview", adapter.PlainText(content.HTML())),
		)
		for _, ch := range d.channels {
			results = append(results, domain.DeliveryResult{
				Channel: ch.Name(),
				Status:  domain.DeliverySkipped,
				Detail:  "dry run",
			})
		}
		return results
	}

	day := d.now().In(d.location).Format(domain.DateLayout)

	for _, ch := range d.channels {
		if ctx.Err() != nil {
			results = append(results, domain.DeliveryResult{
				Channel: ch.Name(),
				Status:  domain.DeliveryFailed,
				Detail:  ctx.Err().Error(),
			})
			continue
		}
		results = append(results, d.deliver(ctx, ch, day, recipient, content))
	}

	return results
}

func (d *Dispatcher) deliver(ctx context.Context, ch Channel, day string, recipient domain.Recipient, content *domain.RenderedContent) domain.DeliveryResult {
	name := ch.Name()
	key := recipient.Key()
	result := domain.DeliveryResult{Channel: name}

	if d.ledger != nil {
		delivered, err := d.ledger.WasDelivered(ctx, day, name, key)
		if err != nil {
			d.logger.Warn("Delivery ledger lookup failed",
				zap.String("channel", name),
				zap.String("recipient", key),
				zap.Error(err),
			)
		} else if delivered {
			d.logger.Info("Already delivered today",
				zap.String("channel", name),
				zap.String("recipient", key),
			)
			result.Status = domain.DeliverySkipped
			result.Detail = "already delivered today"
			return result
		}
	}

	var sendErr error
	var catcher panics.Catcher
	catcher.Try(func() {
		sendErr = ch.Send(ctx, recipient, content)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		sendErr = recovered.AsError()
	}

	switch {
	case sendErr == nil:
		result.Status = domain.DeliveryDelivered
		d.logger.Info("Greeting delivered",
			zap.String("channel", name),
			zap.String("recipient", key),
		)
		if d.ledger != nil {
			if err := d.ledger.MarkDelivered(ctx, day, name, key); err != nil {
				d.logger.Warn("Delivery ledger update failed",
					zap.String("channel", name),
					zap.String("recipient", key),
					zap.Error(err),
				)
			}
		}
	case stderrors.Is(sendErr, ErrSkipped):
		result.Status = domain.DeliverySkipped
		result.Detail = sendErr.Error()
		result.Blocked = stderrors.Is(sendErr, ErrCredentialUnavailable)
		d.logger.Warn("Channel skipped",
			zap.String("channel", name),
			zap.String("recipient", key),
			zap.Error(sendErr),
		)
	default:
		result.Status = domain.DeliveryFailed
		result.Detail = util.TruncateString(sendErr.Error(), constants.RunConfig.ResponseLength)
		d.logger.Error("Channel delivery failed",
			zap.String("channel", name),
			zap.String("recipient", key),
			zap.Error(sendErr),
		)
	}

	return result
}
