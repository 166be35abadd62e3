package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"
)

// WelcomeHandler procesa un evento de bienvenida ya deserializado.
type WelcomeHandler interface {
	HandleWelcome(ctx context.Context, evt WelcomeEmailEvent) error
}

// Consumer lee eventos de bienvenida desde Kafka y los delega al handler.
type Consumer struct {
	reader  *kafka.Reader
	handler WelcomeHandler
	logger  *zap.Logger
}

func NewConsumer(broker, topic, groupID, username, password string, handler WelcomeHandler, logger *zap.Logger) *Consumer {
	readerCfg := kafka.ReaderConfig{
		Brokers:  []string{broker},
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	}
	if username != "" {
		readerCfg.Dialer = &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
			SASLMechanism: plain.Mechanism{
				Username: username,
				Password: password,
			},
		}
	}
	return &Consumer{
		reader:  kafka.NewReader(readerCfg),
		handler: handler,
		logger:  logger,
	}
}

// Listen consume hasta que el contexto se cancele. Un evento malformado se
// descarta con log; un error del handler no detiene el loop.
func (c *Consumer) Listen(ctx context.Context) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("read message failed", zap.Error(err))
			continue
		}

		var evt WelcomeEmailEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			c.logger.Warn("malformed welcome event", zap.Error(err))
			continue
		}

		if err := c.handler.HandleWelcome(ctx, evt); err != nil {
			c.logger.Warn("welcome handler failed", zap.Error(err), zap.String("email", evt.Email))
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
