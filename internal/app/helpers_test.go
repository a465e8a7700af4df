package app

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"paperbrain/internal/model"
	"paperbrain/internal/platform/sqlite"
	"paperbrain/internal/repository"
	"paperbrain/internal/retrieval"
)

const (
	ownerA = "owner-a"
	ownerB = "owner-b"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

type fakeGateway struct {
	mu      sync.Mutex
	answer  *retrieval.Answer
	err     error
	block   bool
	calls   int
	queries []string
}

func (g *fakeGateway) Query(ctx context.Context, doc retrieval.DocumentRef, text string) (*retrieval.Answer, error) {
	g.mu.Lock()
	g.calls++
	g.queries = append(g.queries, doc.ID+":"+text)
	block, answer, err := g.block, g.answer, g.err
	g.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	copied := *answer
	copied.Sources = append([]model.Source(nil), answer.Sources...)
	return &copied, nil
}

func (g *fakeGateway) set(answer *retrieval.Answer, err error, block bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answer, g.err, g.block = answer, err, block
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type fixture struct {
	db           *gorm.DB
	core         *Core
	gateway      *fakeGateway
	orchestrator *QueryOrchestrator
}

func newFixture(t *testing.T, opts CoreOptions) *fixture {
	t.Helper()
	db := newTestDB(t)
	core := NewCore(db, opts)
	core.SetClock(stepClock())
	gateway := &fakeGateway{answer: reportAnswer()}
	return &fixture{
		db:           db,
		core:         core,
		gateway:      gateway,
		orchestrator: NewQueryOrchestrator(core, gateway, 200*time.Millisecond, nil),
	}
}

func reportAnswer() *retrieval.Answer {
	return &retrieval.Answer{
		Text: "This document discusses X.",
		Sources: []model.Source{
			{ChunkID: "c1", Filename: "report.pdf", Snippet: "..."},
		},
	}
}

func (f *fixture) document(t *testing.T, owner, filename string) *model.Document {
	t.Helper()
	doc, err := f.core.Documents.Create(context.Background(), CreateDocumentInput{
		OwnerID:   owner,
		Filename:  filename,
		SizeBytes: 500000,
	})
	require.NoError(t, err)
	return doc
}

func (f *fixture) session(t *testing.T, owner, documentID string) *model.ChatSession {
	t.Helper()
	session, err := f.core.Sessions.Create(context.Background(), owner, documentID, "")
	require.NoError(t, err)
	return session
}

// requireConsistent checks the summary fields against the stored messages.
func (f *fixture) requireConsistent(t *testing.T, owner, sessionID string) []model.Message {
	t.Helper()
	ctx := context.Background()
	messages, err := f.core.Log.List(ctx, owner, sessionID)
	require.NoError(t, err)
	session, err := f.core.Sessions.Get(ctx, owner, sessionID)
	require.NoError(t, err)

	require.Equal(t, len(messages), session.MessageCount)
	for i, msg := range messages {
		require.Equal(t, int64(i+1), msg.Sequence, "sequence gap at index %d", i)
	}
	if len(messages) == 0 {
		require.Nil(t, session.LastMessageAt)
	} else {
		require.NotNil(t, session.LastMessageAt)
		require.True(t, messages[len(messages)-1].CreatedAt.Equal(*session.LastMessageAt))
	}
	return messages
}
