package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paperbrain/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *DocumentRepository) WithTx(tx *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByIDAndOwnerID(ctx context.Context, id, ownerID string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// GetByIDAndOwnerIDForUpdate reads the owner's document under a write lock,
// holding off a concurrent delete until the transaction ends.
func (r *DocumentRepository) GetByIDAndOwnerIDForUpdate(ctx context.Context, id, ownerID string) (*model.Document, error) {
	query := r.db.WithContext(ctx)
	if query.Dialector.Name() != "sqlite" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var doc model.Document
	if err := query.Where("id = ? AND owner_id = ?", id, ownerID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByOwnerID(ctx context.Context, ownerID string) ([]model.Document, error) {
	docs := make([]model.Document, 0)
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("uploaded_at DESC").
		Order("id DESC").
		Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) UpdateChunkCount(ctx context.Context, id string, chunkCount int) error {
	if err := r.db.WithContext(ctx).
		Model(&model.Document{}).
		Where("id = ?", id).
		Update("chunk_count", chunkCount).Error; err != nil {
		return fmt.Errorf("update document chunk count failed: %w", err)
	}
	return nil
}

// Delete reports how many rows were removed so callers can detect a
// concurrent delete.
func (r *DocumentRepository) Delete(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Document{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete document failed: %w", result.Error)
	}
	return result.RowsAffected, nil
}
