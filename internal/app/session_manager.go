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

const (
	defaultSessionTitle = "New chat"
	maxTitleBytes       = 256
)

type SessionManager struct {
	repos  coreRepos
	log    *ConversationLog
	logger *zap.Logger
	now    func() time.Time
}

// Create opens a session on an existing document of ownerID. An empty title
// falls back to a default. The document row stays locked until the session is
// stored, so a concurrent document delete cannot strand it.
func (m *SessionManager) Create(ctx context.Context, ownerID, documentID, title string) (*model.ChatSession, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return nil, err
	}

	var session *model.ChatSession
	err = m.repos.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := m.repos.withTx(tx)
		doc, err := repos.documents.GetByIDAndOwnerIDForUpdate(ctx, documentID, ownerID)
		if err != nil {
			return err
		}
		if doc == nil {
			return ErrDocumentNotFound
		}
		session, err = m.create(ctx, repos, doc.ID, title)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.logger.Info("session created",
		zap.String("session_id", session.ID),
		zap.String("document_id", documentID),
	)
	return session, nil
}

// create inserts a session for a document the caller has already locked or
// created in the same transaction. title must be normalized.
func (m *SessionManager) create(ctx context.Context, repos coreRepos, documentID, title string) (*model.ChatSession, error) {
	session := &model.ChatSession{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Title:      title,
		CreatedAt:  m.now(),
	}
	if err := repos.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return defaultSessionTitle, nil
	}
	if len(title) > maxTitleBytes {
		return "", validationError("title longer than %d bytes", maxTitleBytes)
	}
	return title, nil
}

func (m *SessionManager) Get(ctx context.Context, ownerID, sessionID string) (*model.ChatSession, error) {
	session, err := m.repos.sessions.GetByIDAndOwnerID(ctx, sessionID, ownerID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// List returns the document's sessions by most recent activity, ties broken
// by creation time, both descending.
func (m *SessionManager) List(ctx context.Context, ownerID, documentID string) ([]model.ChatSession, error) {
	doc, err := m.repos.documents.GetByIDAndOwnerID(ctx, documentID, ownerID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return m.repos.sessions.ListByDocumentID(ctx, documentID)
}

// Delete removes the session and its messages. Deleting a session that is
// already gone reports ErrSessionNotFound.
func (m *SessionManager) Delete(ctx context.Context, ownerID, sessionID string) error {
	err := m.repos.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := m.repos.withTx(tx)
		if _, err := m.lockOwned(ctx, repos, ownerID, sessionID); err != nil {
			return err
		}

		if _, err := m.log.deleteAll(ctx, repos, sessionID); err != nil {
			return err
		}
		removed, err := repos.sessions.Delete(ctx, sessionID)
		if err != nil {
			return err
		}
		if removed == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.log.invalidate(ctx, sessionID)
	m.logger.Info("session deleted", zap.String("session_id", sessionID))
	return nil
}

// lockOwned reads the session row under a write lock and checks that its
// document belongs to ownerID.
func (m *SessionManager) lockOwned(ctx context.Context, repos coreRepos, ownerID, sessionID string) (*model.ChatSession, error) {
	session, err := repos.sessions.GetByIDForUpdate(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	doc, err := repos.documents.GetByIDAndOwnerID(ctx, session.DocumentID, ownerID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// touch updates the summary fields after an append. It runs inside the
// append transaction.
func (m *SessionManager) touch(ctx context.Context, repos coreRepos, sessionID string, sequence int64, lastMessageAt time.Time, incrementBy int) error {
	return repos.sessions.Touch(ctx, sessionID, sequence, lastMessageAt, incrementBy)
}

// deleteForDocument removes every session of documentID and their messages
// inside the caller's transaction and returns the removed session ids.
func (m *SessionManager) deleteForDocument(ctx context.Context, repos coreRepos, documentID string) ([]string, error) {
	ids, err := repos.sessions.ListIDsByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if _, err := repos.messages.DeleteByDocumentID(ctx, documentID); err != nil {
		return nil, err
	}
	if _, err := repos.sessions.DeleteByDocumentID(ctx, documentID); err != nil {
		return nil, err
	}
	return ids, nil
}
