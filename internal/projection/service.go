// Package projection keeps the order status cache in step with the order
// event stream, for readers that never hit the API that wrote the order.
package projection

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/port"
	kafkago "github.com/segmentio/kafka-go"
)

type Deduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type Service struct {
	Cache port.StatusCache
	Dedup Deduper
	Log   *slog.Logger
}

// HandleMessage is installed as the consumer handler.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// a malformed message would block the partition forever
		s.logger().Error("dropping undecodable message", "topic", m.Topic, "offset", m.Offset, "error", err)
		return nil
	}
	return s.Handle(ctx, env)
}

func (s *Service) Handle(ctx context.Context, env orders.Envelope) error {
	if env.EventID != "" {
		seen, err := s.Dedup.Seen(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup.Seen: %w", err)
		}
		if seen {
			return nil
		}
	}

	snap, ok, err := orders.SnapshotOf(env)
	if err != nil {
		s.logger().Error("dropping event with bad payload",
			"event_id", env.EventID, "event_type", env.EventType, "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	if err := s.Cache.SetStatus(ctx, snap); err != nil {
		return fmt.Errorf("cache.SetStatus: %w", err)
	}

	if env.EventID != "" {
		if err := s.Dedup.Mark(ctx, env.EventID); err != nil {
			return fmt.Errorf("dedup.Mark: %w", err)
		}
	}

	s.logger().Debug("status projected",
		"order_id", snap.OrderID, "status", snap.Status, "event_type", env.EventType, "trace_id", env.TraceID)
	return nil
}

func (s *Service) logger() *slog.Logger {
	if s.Log == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Log
}
