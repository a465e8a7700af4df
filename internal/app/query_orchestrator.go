package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"paperbrain/internal/model"
	"paperbrain/internal/retrieval"
)

const DefaultRetrievalTimeout = 30 * time.Second

type RetrievalGateway interface {
	Query(ctx context.Context, doc retrieval.DocumentRef, text string) (*retrieval.Answer, error)
}

// TurnState is the progress of one user turn.
type TurnState string

const (
	TurnPending       TurnState = "pending"
	TurnUserPersisted TurnState = "user_persisted"
	TurnRetrieving    TurnState = "retrieving"
	TurnCompleted     TurnState = "completed"
	TurnFailed        TurnState = "failed"
)

type HandleInput struct {
	OwnerID   string
	SessionID string
	Text      string
	// IdempotencyKey is the id of the user message. Retrying a failed turn
	// with the id from TurnError.UserMessage reuses that message.
	IdempotencyKey string
}

// QueryOrchestrator turns a user message into an answered turn. The user
// message is always stored; the assistant message only when retrieval
// answers within the timeout.
type QueryOrchestrator struct {
	core    *Core
	gateway RetrievalGateway
	timeout time.Duration
	logger  *zap.Logger
}

func NewQueryOrchestrator(core *Core, gateway RetrievalGateway, timeout time.Duration, logger *zap.Logger) *QueryOrchestrator {
	if timeout <= 0 {
		timeout = DefaultRetrievalTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryOrchestrator{
		core:    core,
		gateway: gateway,
		timeout: timeout,
		logger:  logger.Named("orchestrator"),
	}
}

// Handle runs one turn and returns the assistant message. When retrieval
// fails or times out the error is a *TurnError carrying the stored user
// message.
func (o *QueryOrchestrator) Handle(ctx context.Context, input HandleInput) (*model.Message, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, validationError("message text is empty")
	}
	messageID, err := normalizeKey(input.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	logger := o.logger.With(zap.String("session_id", input.SessionID))
	state := TurnPending

	userMessage, created, err := o.core.Log.append(ctx, input.OwnerID, input.SessionID, model.Message{
		ID:   messageID,
		Role: model.RoleUser,
		Text: text,
	})
	if err != nil {
		logger.Debug("turn rejected", zap.String("state", string(state)), zap.Error(err))
		return nil, err
	}
	state = TurnUserPersisted
	logger = logger.With(zap.String("user_message_id", userMessage.ID), zap.Int64("user_sequence", userMessage.Sequence))

	if !created {
		reply, err := o.core.repos().messages.GetReplyTo(ctx, userMessage.ID)
		if err != nil {
			return nil, err
		}
		if reply != nil {
			logger.Info("turn already completed", zap.String("assistant_message_id", reply.ID))
			return reply, nil
		}
		logger.Info("retrying turn")
	}

	doc, err := o.documentOf(ctx, input.OwnerID, input.SessionID)
	if err != nil {
		return nil, err
	}

	state = TurnRetrieving
	answer, err := o.retrieve(ctx, doc, text)
	if err != nil {
		state = TurnFailed
		logger.Warn("turn failed", zap.String("state", string(state)), zap.Error(err))
		return nil, &TurnError{UserMessage: userMessage, Err: err}
	}

	replyTo := userMessage.ID
	// stored even if the caller has gone away
	assistant, _, err := o.core.Log.append(context.WithoutCancel(ctx), input.OwnerID, input.SessionID, model.Message{
		Role:      model.RoleAssistant,
		Text:      answer.Text,
		Sources:   answer.Sources,
		ReplyToID: &replyTo,
	})
	if err != nil {
		logger.Error("store answer failed", zap.Error(err))
		return nil, err
	}

	state = TurnCompleted
	logger.Info("turn completed",
		zap.String("state", string(state)),
		zap.String("assistant_message_id", assistant.ID),
		zap.Int64("assistant_sequence", assistant.Sequence),
		zap.Int("sources", len(assistant.Sources)),
	)
	return assistant, nil
}

func (o *QueryOrchestrator) retrieve(ctx context.Context, doc *model.Document, text string) (*retrieval.Answer, error) {
	rctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	answer, err := o.gateway.Query(rctx, retrieval.DocumentRef{
		ID:       doc.ID,
		BlobRef:  doc.BlobRef,
		Filename: doc.Filename,
	}, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(rctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrRetrievalTimeout, o.timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailure, err)
	}
	if answer == nil || strings.TrimSpace(answer.Text) == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrRetrievalFailure)
	}
	if answer.Sources == nil {
		answer.Sources = []model.Source{}
	}
	return answer, nil
}

func (o *QueryOrchestrator) documentOf(ctx context.Context, ownerID, sessionID string) (*model.Document, error) {
	session, err := o.core.Sessions.Get(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	return o.core.Documents.Get(ctx, ownerID, session.DocumentID)
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", nil
	}
	id, err := uuid.Parse(key)
	if err != nil {
		return "", validationError("idempotency key must be a uuid")
	}
	return id.String(), nil
}
