package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"paperbrain/internal/model"
	"paperbrain/internal/repository"
)

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID string, messages []model.Message) error
	IsDirty(ctx context.Context, sessionID string) (bool, error)
	Invalidate(ctx context.Context, sessionID string) error
}

type BlobStore interface {
	Store(ctx context.Context, data []byte) (string, error)
	Delete(ctx context.Context, ref string) error
}

type CoreOptions struct {
	// Cache is optional.
	Cache HistoryCache
	// Blobs is optional; when set, a deleted document's blob is removed
	// after the delete commits.
	Blobs  BlobStore
	Logger *zap.Logger
}

// Core holds the document, session and message components. They share one
// database handle and one set of per-session locks.
type Core struct {
	Documents *DocumentStore
	Sessions  *SessionManager
	Log       *ConversationLog
}

func NewCore(db *gorm.DB, opts CoreOptions) *Core {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	repos := coreRepos{
		db:        db,
		documents: repository.NewDocumentRepository(db),
		sessions:  repository.NewSessionRepository(db),
		messages:  repository.NewMessageRepository(db),
	}
	clock := func() time.Time { return time.Now().UTC() }

	sessions := &SessionManager{
		repos:  repos,
		logger: logger.Named("sessions"),
		now:    clock,
	}
	log := &ConversationLog{
		repos:    repos,
		sessions: sessions,
		locks:    newSessionLocks(),
		cache:    opts.Cache,
		logger:   logger.Named("conversation"),
		now:      clock,
	}
	sessions.log = log

	documents := &DocumentStore{
		repos:    repos,
		sessions: sessions,
		blobs:    opts.Blobs,
		logger:   logger.Named("documents"),
		now:      clock,
	}

	return &Core{
		Documents: documents,
		Sessions:  sessions,
		Log:       log,
	}
}

// SetClock replaces the time source of every component.
func (c *Core) SetClock(now func() time.Time) {
	c.Documents.now = now
	c.Sessions.now = now
	c.Log.now = now
}

type coreRepos struct {
	db        *gorm.DB
	documents *repository.DocumentRepository
	sessions  *repository.SessionRepository
	messages  *repository.MessageRepository
}

func (r coreRepos) withTx(tx *gorm.DB) coreRepos {
	return coreRepos{
		db:        tx,
		documents: r.documents.WithTx(tx),
		sessions:  r.sessions.WithTx(tx),
		messages:  r.messages.WithTx(tx),
	}
}

func (c *Core) repos() coreRepos {
	return c.Log.repos
}
