package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paperbrain/internal/model"
)

// ConversationLog is the ordered message record of each session. Appends to
// one session are serialized and get consecutive sequence numbers starting at
// 1. Messages are only removed together with their session.
type ConversationLog struct {
	repos    coreRepos
	sessions *SessionManager
	locks    *sessionLocks
	cache    HistoryCache
	logger   *zap.Logger
	now      func() time.Time
}

func (l *ConversationLog) Append(ctx context.Context, ownerID, sessionID, role, text string, sources []model.Source) (*model.Message, error) {
	msg, _, err := l.append(ctx, ownerID, sessionID, model.Message{
		Role:    role,
		Text:    text,
		Sources: sources,
	})
	return msg, err
}

// append stores draft as the next message of the session. A draft whose ID
// is already stored in this session, or whose ReplyToID is already answered,
// returns the stored message with created=false. An ID taken anywhere else is
// a conflict.
func (l *ConversationLog) append(ctx context.Context, ownerID, sessionID string, draft model.Message) (*model.Message, bool, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, false, err
	}

	unlock := l.locks.Lock(sessionID)
	defer unlock()

	var (
		result  *model.Message
		created bool
	)
	err := l.repos.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := l.repos.withTx(tx)
		session, err := l.sessions.lockOwned(ctx, repos, ownerID, sessionID)
		if err != nil {
			return err
		}

		if draft.ID != "" {
			existing, err := repos.messages.GetByIDAndSessionID(ctx, draft.ID, sessionID)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.Role != draft.Role || existing.Text != draft.Text {
					return conflictError("message %s already exists with different content", draft.ID)
				}
				result = existing
				return nil
			}
		}
		if draft.ReplyToID != nil {
			existing, err := repos.messages.GetReplyTo(ctx, *draft.ReplyToID)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.SessionID != sessionID {
					return conflictError("message %s is answered in another session", *draft.ReplyToID)
				}
				result = existing
				return nil
			}
		}

		msg := draft
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		msg.SessionID = sessionID
		msg.Sequence = session.LastSequence + 1
		msg.CreatedAt = l.now()
		if err := repos.messages.Create(ctx, &msg); err != nil {
			if draft.ID != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflictError("message id %s is already in use", draft.ID)
			}
			return err
		}
		if err := l.sessions.touch(ctx, repos, sessionID, msg.Sequence, msg.CreatedAt, 1); err != nil {
			return err
		}
		result = &msg
		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		l.invalidate(ctx, sessionID)
		l.logger.Debug("message appended",
			zap.String("session_id", sessionID),
			zap.String("message_id", result.ID),
			zap.String("role", result.Role),
			zap.Int64("sequence", result.Sequence),
		)
	}
	return result, created, nil
}

func validateDraft(draft *model.Message) error {
	switch draft.Role {
	case model.RoleUser:
		if len(draft.Sources) > 0 {
			return validationError("user messages carry no sources")
		}
	case model.RoleAssistant:
	default:
		return validationError("unknown role %q", draft.Role)
	}
	if strings.TrimSpace(draft.Text) == "" {
		return validationError("message text is empty")
	}
	if draft.Sources == nil {
		draft.Sources = []model.Source{}
	}
	return nil
}

// List returns the session's messages in sequence order.
func (l *ConversationLog) List(ctx context.Context, ownerID, sessionID string) ([]model.Message, error) {
	session, err := l.repos.sessions.GetByIDAndOwnerID(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	if l.cache != nil {
		dirty, err := l.cache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := l.cache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	messages, err := l.repos.messages.ListBySessionID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		if dirty, dirtyErr := l.cache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			if err := l.cache.SetHistory(ctx, sessionID, messages); err != nil {
				l.logger.Warn("cache history failed", zap.String("session_id", sessionID), zap.Error(err))
			}
		}
	}
	return messages, nil
}

// deleteAll removes the session's messages inside the caller's transaction.
// Only the session delete paths call it; the session row goes with them.
func (l *ConversationLog) deleteAll(ctx context.Context, repos coreRepos, sessionID string) (int64, error) {
	return repos.messages.DeleteBySessionID(ctx, sessionID)
}

// invalidate runs after a commit, so it must not be cut short by the caller
// going away.
func (l *ConversationLog) invalidate(ctx context.Context, sessionID string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(context.WithoutCancel(ctx), sessionID); err != nil {
		l.logger.Warn("invalidate history failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
