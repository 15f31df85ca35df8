package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConfig holds the configuration for the NATS connection.
type NATSConfig struct {
	URL string
	// Name identifies the connection to the server, typically the client id
	// plus replica id.
	Name string
	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration
}

// NATSBroker implements Bus over a core NATS connection. Core (non-JetStream)
// subjects give exactly the delivery contract the mirror wants: at-most-once,
// no durability, wildcard subscription on the shard token.
type NATSBroker struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSBroker connects to the broker, verifying connectivity before
// returning. Reconnect handling is left to the NATS client's own retry loop;
// connection-level failures surface as logged callbacks only.
func NewNATSBroker(cfg *NATSConfig, logger zerolog.Logger) (*NATSBroker, error) {
	connLogger := logger.With().Str("component", "NATSBroker").Logger()

	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			connLogger.Warn().Err(err).Msg("NATS connection lost, reconnecting...")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			connLogger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS connection re-established.")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			connLogger.Error().Err(err).Msg("NATS asynchronous error.")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", cfg.URL, err)
	}

	connLogger.Info().Str("url", conn.ConnectedUrl()).Msg("Successfully connected to NATS.")
	return &NATSBroker{conn: conn, logger: connLogger}, nil
}

// Publish sends one message to a subject. Core NATS publishes are buffered
// writes; there is no delivery confirmation to wait on.
func (b *NATSBroker) Publish(_ context.Context, subject string, payload []byte) error {
	if err := b.conn.Publish(subject, payload); err != nil {
		return fmt.Errorf("nats publish to %s failed: %w", subject, err)
	}
	return nil
}

// PublishWithCorrelation publishes with the correlation token in the message
// header.
func (b *NATSBroker) PublishWithCorrelation(_ context.Context, subject, correlationID string, payload []byte) error {
	msg := nats.NewMsg(subject)
	msg.Data = payload
	if correlationID != "" {
		msg.Header.Set(CorrelationHeader, correlationID)
	}
	if err := b.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish to %s failed: %w", subject, err)
	}
	return nil
}

// Subscribe binds a handler to a subject. Handlers run on the NATS client's
// delivery goroutine; the subscription lives until the returned Unsubscribe
// is called or the connection closes.
func (b *NATSBroker) Subscribe(ctx context.Context, subject string, handler MsgHandler) (Unsubscribe, error) {
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(ctx, msg.Header.Get(CorrelationHeader), msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe to %s failed: %w", subject, err)
	}
	b.logger.Debug().Str("subject", subject).Msg("Subscribed to subject.")
	return sub.Unsubscribe, nil
}

// Close drains the connection, flushing buffered publishes before closing.
func (b *NATSBroker) Close() error {
	if b.conn == nil || b.conn.IsClosed() {
		return nil
	}
	b.logger.Info().Msg("Draining NATS connection...")
	return b.conn.Drain()
}
