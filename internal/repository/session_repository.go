package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paperbrain/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

func (r *SessionRepository) Create(ctx context.Context, session *model.ChatSession) error {
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.ChatSession, error) {
	var session model.ChatSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

// GetByIDAndOwnerID resolves a session through its document's owner.
func (r *SessionRepository) GetByIDAndOwnerID(ctx context.Context, id, ownerID string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.WithContext(ctx).
		Select("chat_sessions.*").
		Joins("JOIN documents ON documents.id = chat_sessions.document_id").
		Where("chat_sessions.id = ? AND documents.owner_id = ?", id, ownerID).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

// GetByIDForUpdate reads the session row under a write lock. SQLite has no
// row locks; its single writer connection serializes instead.
func (r *SessionRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.ChatSession, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var session model.ChatSession
	if err := query.Where("id = ?", id).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock session failed: %w", err)
	}
	return &session, nil
}

// ListByDocumentID orders by most recent activity. A session without
// messages counts its creation time as its activity.
func (r *SessionRepository) ListByDocumentID(ctx context.Context, documentID string) ([]model.ChatSession, error) {
	sessions := make([]model.ChatSession, 0)
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("COALESCE(last_message_at, created_at) DESC").
		Order("created_at DESC").
		Order("id DESC").
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	return sessions, nil
}

// Touch records an append: the sequence handed out, the new last message
// time and the count delta.
func (r *SessionRepository) Touch(ctx context.Context, id string, lastSequence int64, lastMessageAt time.Time, incrementBy int) error {
	result := r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_sequence":   lastSequence,
			"last_message_at": lastMessageAt,
			"message_count":   gorm.Expr("message_count + ?", incrementBy),
		})
	if result.Error != nil {
		return fmt.Errorf("touch session failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("touch session failed: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ChatSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete session failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *SessionRepository) ListIDsByDocumentID(ctx context.Context, documentID string) ([]string, error) {
	ids := make([]string, 0)
	if err := r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("document_id = ?", documentID).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list session ids failed: %w", err)
	}
	return ids, nil
}

func (r *SessionRepository) DeleteByDocumentID(ctx context.Context, documentID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.ChatSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete sessions by document failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}
