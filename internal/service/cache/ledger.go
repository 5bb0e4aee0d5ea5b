package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/greeting-push-go/internal/constants"
)

// DeliveryLedger records successful deliveries per day so a second run on
// the same day does not greet anyone twice on the same channel.
type DeliveryLedger struct {
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

type deliveryRecord struct {
	DeliveredAt time.Time `json:"delivered_at"`
}

func NewDeliveryLedger(cache *CacheService, ttl time.Duration, logger *zap.Logger) *DeliveryLedger {
	if ttl <= 0 {
		ttl = constants.LedgerConfig.TTL
	}
	return &DeliveryLedger{cache: cache, ttl: ttl, logger: logger}
}

// LedgerKey builds greeting:delivered:{day}:{channel}:{recipient}.
func LedgerKey(day, channel, recipientKey string) string {
	return constants.LedgerConfig.KeyPrefix + day + ":" + channel + ":" + recipientKey
}

func (l *DeliveryLedger) WasDelivered(ctx context.Context, day, channel, recipientKey string) (bool, error) {
	var record deliveryRecord
	if err := l.cache.Get(ctx, LedgerKey(day, channel, recipientKey), &record); err != nil {
		return false, err
	}
	if record.DeliveredAt.IsZero() {
		return false, nil
	}

	l.logger.Info("Earlier delivery found",
		zap.String("channel", channel),
		zap.String("recipient", recipientKey),
		zap.Time("delivered_at", record.DeliveredAt),
	)
	return true, nil
}

func (l *DeliveryLedger) MarkDelivered(ctx context.Context, day, channel, recipientKey string) error {
	record := deliveryRecord{DeliveredAt: time.Now().UTC()}
	return l.cache.Set(ctx, LedgerKey(day, channel, recipientKey), record, l.ttl)
}
