package app

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"paperbrain/internal/model"
)

// DocumentStore persists document metadata. Deleting a document removes its
// sessions and their messages in the same transaction.
type DocumentStore struct {
	repos    coreRepos
	sessions *SessionManager
	blobs    BlobStore
	logger   *zap.Logger
	now      func() time.Time
}

type CreateDocumentInput struct {
	OwnerID   string
	Filename  string
	SizeBytes int64
	PageCount int
	BlobRef   string
}

const maxFilenameBytes = 256

func (s *DocumentStore) Create(ctx context.Context, input CreateDocumentInput) (*model.Document, error) {
	doc, err := s.newDocument(input)
	if err != nil {
		return nil, err
	}
	if err := s.repos.documents.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.logCreated(doc)
	return doc, nil
}

// CreateWithSession stores the document together with its first session.
// Either both rows exist afterwards or neither does.
func (s *DocumentStore) CreateWithSession(ctx context.Context, input CreateDocumentInput, title string) (*model.Document, *model.ChatSession, error) {
	doc, err := s.newDocument(input)
	if err != nil {
		return nil, nil, err
	}
	title, err = normalizeTitle(title)
	if err != nil {
		return nil, nil, err
	}

	var session *model.ChatSession
	err = s.repos.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.withTx(tx)
		if err := repos.documents.Create(ctx, doc); err != nil {
			return err
		}
		session, err = s.sessions.create(ctx, repos, doc.ID, title)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.logCreated(doc)
	return doc, session, nil
}

func (s *DocumentStore) newDocument(input CreateDocumentInput) (*model.Document, error) {
	ownerID := strings.TrimSpace(input.OwnerID)
	filename := strings.TrimSpace(input.Filename)
	if ownerID == "" {
		return nil, validationError("owner id is required")
	}
	if filename == "" {
		return nil, validationError("filename is required")
	}
	if len(filename) > maxFilenameBytes {
		return nil, validationError("filename longer than %d bytes", maxFilenameBytes)
	}
	if input.SizeBytes <= 0 {
		return nil, validationError("size must be positive, got %d", input.SizeBytes)
	}
	if input.PageCount < 0 {
		return nil, validationError("page count must not be negative")
	}

	return &model.Document{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Filename:   filename,
		SizeBytes:  input.SizeBytes,
		PageCount:  input.PageCount,
		BlobRef:    input.BlobRef,
		UploadedAt: s.now(),
	}, nil
}

func (s *DocumentStore) logCreated(doc *model.Document) {
	s.logger.Info("document created",
		zap.String("document_id", doc.ID),
		zap.String("owner_id", doc.OwnerID),
		zap.Int64("size_bytes", doc.SizeBytes),
	)
}

func (s *DocumentStore) Get(ctx context.Context, ownerID, id string) (*model.Document, error) {
	doc, err := s.repos.documents.GetByIDAndOwnerID(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// List returns the owner's documents, newest upload first.
func (s *DocumentStore) List(ctx context.Context, ownerID string) ([]model.Document, error) {
	return s.repos.documents.ListByOwnerID(ctx, ownerID)
}

// SetChunkCount records the extraction result. Repeating the same count is a
// no-op; a different count once one is set is a conflict.
func (s *DocumentStore) SetChunkCount(ctx context.Context, id string, chunkCount int) error {
	if chunkCount < 0 {
		return validationError("chunk count must not be negative")
	}

	return s.repos.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.withTx(tx)
		doc, err := repos.documents.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if doc == nil {
			return ErrDocumentNotFound
		}
		if doc.ChunkCount != nil {
			if *doc.ChunkCount == chunkCount {
				return nil
			}
			return conflictError("document %s already has %d chunks", id, *doc.ChunkCount)
		}
		return repos.documents.UpdateChunkCount(ctx, id, chunkCount)
	})
}

// Delete removes the document with all of its sessions and messages, or
// nothing at all.
func (s *DocumentStore) Delete(ctx context.Context, ownerID, id string) error {
	var (
		doc      *model.Document
		sessions []string
	)
	err := s.repos.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := s.repos.withTx(tx)
		var err error
		doc, err = repos.documents.GetByIDAndOwnerIDForUpdate(ctx, id, ownerID)
		if err != nil {
			return err
		}
		if doc == nil {
			return ErrDocumentNotFound
		}

		sessions, err = s.sessions.deleteForDocument(ctx, repos, id)
		if err != nil {
			return err
		}

		removed, err := repos.documents.Delete(ctx, id)
		if err != nil {
			return err
		}
		if removed == 0 {
			return ErrDocumentNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, sessionID := range sessions {
		s.sessions.log.invalidate(ctx, sessionID)
	}
	if s.blobs != nil && doc.BlobRef != "" {
		if err := s.blobs.Delete(ctx, doc.BlobRef); err != nil {
			s.logger.Warn("delete document blob failed",
				zap.String("document_id", id),
				zap.String("blob_ref", doc.BlobRef),
				zap.Error(err),
			)
		}
	}
	s.logger.Info("document deleted",
		zap.String("document_id", id),
		zap.Int("sessions", len(sessions)),
	)
	return nil
}
