package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"paperbrain/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

func (r *MessageRepository) Create(ctx context.Context, message *model.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return fmt.Errorf("create message failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) GetByIDAndSessionID(ctx context.Context, id, sessionID string) (*model.Message, error) {
	var message model.Message
	if err := r.db.WithContext(ctx).Where("id = ? AND session_id = ?", id, sessionID).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message failed: %w", err)
	}
	return &message, nil
}

// GetReplyTo returns the assistant message answering userMessageID, if any.
func (r *MessageRepository) GetReplyTo(ctx context.Context, userMessageID string) (*model.Message, error) {
	var message model.Message
	if err := r.db.WithContext(ctx).Where("reply_to_id = ?", userMessageID).First(&message).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reply failed: %w", err)
	}
	return &message, nil
}

func (r *MessageRepository) ListBySessionID(ctx context.Context, sessionID string) ([]model.Message, error) {
	messages := make([]model.Message, 0)
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("sequence ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return count, nil
}

func (r *MessageRepository) DeleteBySessionID(ctx context.Context, sessionID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete messages failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *MessageRepository) DeleteByDocumentID(ctx context.Context, documentID string) (int64, error) {
	sessions := r.db.Model(&model.ChatSession{}).Select("id").Where("document_id = ?", documentID)
	result := r.db.WithContext(ctx).Where("session_id IN (?)", sessions).Delete(&model.Message{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete messages by document failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}
