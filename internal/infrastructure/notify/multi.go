package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirana/posreport/internal/domain/report"
	"github.com/kirana/posreport/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Channel is a named delivery target
type Channel struct {
	Name     string
	Notifier report.Notifier
}

// MultiNotifier delivers to every channel. Each channel is attempted even
// when an earlier one fails; the failures are joined.
type MultiNotifier struct {
	channels []Channel
	logger   *zap.Logger
}

// NewMultiNotifier creates a MultiNotifier
func NewMultiNotifier(logger *zap.Logger, channels ...Channel) *MultiNotifier {
	return &MultiNotifier{channels: channels, logger: logger}
}

// Len returns the number of channels
func (m *MultiNotifier) Len() int {
	return len(m.channels)
}

// Deliver sends msg on every channel
func (m *MultiNotifier) Deliver(ctx context.Context, msg report.Message) error {
	if len(m.channels) == 0 {
		return fmt.Errorf("%w: no delivery channel configured", report.ErrDeliveryFailed)
	}

	var errs []error
	for _, ch := range m.channels {
		if err := m.deliverOne(ctx, ch, msg); err != nil {
			m.logger.Error("Delivery channel failed", zap.String("channel", ch.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", ch.Name, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		if !errors.Is(err, report.ErrDeliveryFailed) {
			return fmt.Errorf("%w: %w", report.ErrDeliveryFailed, err)
		}
		return err
	}
	return nil
}

func (m *MultiNotifier) deliverOne(ctx context.Context, ch Channel, msg report.Message) error {
	ctx, span := telemetry.StartSpan(ctx, "notify."+ch.Name, telemetry.SpanAttrChannel, ch.Name)
	defer span.End()

	if err := ch.Notifier.Deliver(ctx, msg); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	telemetry.SetOK(span)
	return nil
}
