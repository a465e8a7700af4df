package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"paperbrain/internal/model"
)

// ExtractionPublisher enqueues extraction requests. The pipeline answers on
// the result queue with the chunk count.
type ExtractionPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewExtractionPublisher(conn *amqp.Connection, queueName string) *ExtractionPublisher {
	return &ExtractionPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *ExtractionPublisher) PublishExtraction(ctx context.Context, req model.ExtractionRequest) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal extraction request failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			MessageId:    req.DocumentID,
			Timestamp:    time.Now().UTC(),
		},
	); err != nil {
		return fmt.Errorf("publish extraction request failed: %w", err)
	}
	return nil
}
