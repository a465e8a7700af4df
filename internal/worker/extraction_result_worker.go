package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"paperbrain/internal/app"
	"paperbrain/internal/model"
	"paperbrain/internal/platform/rabbitmq"
)

type ChunkCountSetter interface {
	SetChunkCount(ctx context.Context, documentID string, chunkCount int) error
}

type disposition int

const (
	ack disposition = iota
	dropMessage
	requeue
)

// ExtractionResultWorker consumes extraction results and records the chunk
// count on the document.
type ExtractionResultWorker struct {
	conn      *amqp.Connection
	documents ChunkCountSetter
	queueName string
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewExtractionResultWorker(conn *amqp.Connection, documents ChunkCountSetter, queueName string, logger *zap.Logger) *ExtractionResultWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExtractionResultWorker{
		conn:      conn,
		documents: documents,
		queueName: queueName,
		logger:    logger.Named("extraction_worker"),
	}
}

func (w *ExtractionResultWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				switch w.handle(workerCtx, d.Body) {
				case ack:
					_ = d.Ack(false)
				case dropMessage:
					_ = d.Nack(false, false)
				case requeue:
					_ = d.Nack(false, true)
				}
			}
		}
	}()

	w.logger.Info("worker started", zap.String("queue", w.queueName))
	return nil
}

func (w *ExtractionResultWorker) handle(ctx context.Context, body []byte) disposition {
	var result model.ExtractionResult
	if err := json.Unmarshal(body, &result); err != nil {
		w.logger.Error("decode extraction result failed", zap.Error(err))
		return dropMessage
	}
	if result.DocumentID == "" || result.ChunkCount == nil {
		w.logger.Error("extraction result missing fields", zap.ByteString("body", body))
		return dropMessage
	}

	logger := w.logger.With(zap.String("document_id", result.DocumentID), zap.Int("chunk_count", *result.ChunkCount))
	err := w.documents.SetChunkCount(ctx, result.DocumentID, *result.ChunkCount)
	switch {
	case err == nil:
		logger.Info("chunk count recorded")
		return ack
	case errors.Is(err, app.ErrNotFound):
		logger.Info("document gone before extraction finished")
		return ack
	case errors.Is(err, app.ErrConflict):
		logger.Warn("conflicting extraction result ignored", zap.Error(err))
		return ack
	case errors.Is(err, app.ErrValidation):
		logger.Error("invalid extraction result", zap.Error(err))
		return dropMessage
	default:
		logger.Error("record chunk count failed", zap.Error(err))
		return requeue
	}
}

func (w *ExtractionResultWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
