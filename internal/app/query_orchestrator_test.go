package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperbrain/internal/model"
	"paperbrain/internal/retrieval"
)

func TestHandle_SuccessfulTurn(t *testing.T) {
	f := newFixture(t, CoreOptions{})
	ctx := context.Background()
	doc := f.document(t, ownerA, "report.pdf")
	session := f.session(t, ownerA, doc.ID)

	assistant, err := f.orchestrator.Handle(ctx, HandleInput{
		OwnerID:   ownerA,
		SessionID: session.ID,
		Text:      "What is this about?",
	})
	require.NoError(t, err)

	assert.Equal(t, model.RoleAssistant, assistant.Role)
	assert.Equal(t, "This document discusses X.", assistant.Text)
	assert.Equal(t, reportAnswer().Sources, []model.Source(assistant.Sources))

	messages := f.requireConsistent(t, ownerA, session.ID)
	require.Len(t, messages, 2)
	assert.Equal(t, model.RoleUser, messages[0].Role)
	assert.Equal(t, "What is this about?", messages[0].Text)
	require.NotNil(t, messages[1].ReplyToID)
	assert.Equal(t, messages[0].ID, *messages[1].ReplyToID)
	assert.Len(t, messages[1].Sources, 1)

	assert.Equal(t, []string{doc.ID + ":What is this about?"}, f.gateway.queries)
}

func TestHandle_EmptyTextChangesNothing(t *testing.T) {
	f := newFixture(t, CoreOptions{})
	ctx := context.Background()
	doc := f.document(t, ownerA, "report.pdf")
	session := f.session(t, ownerA, doc.ID)

	_, err := f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: ""})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: " \n\t"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, f.requireConsistent(t, ownerA, session.ID))
	assert.Zero(t, f.gateway.callCount())
}

func TestHandle_MissingSession(t *testing.T) {
	f := newFixture(t, CoreOptions{})

	_, err := f.orchestrator.Handle(context.Background(), HandleInput{OwnerID: ownerA, SessionID: "missing", Text: "q"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	var turnErr *TurnError
	assert.False(t, errors.As(err, &turnErr))
	assert.Zero(t, f.gateway.callCount())
}

func TestHandle_TimeoutKeepsUserMessageAndRetryCompletes(t *testing.T) {
	f := newFixture(t, CoreOptions{})
	ctx := context.Background()
	doc := f.document(t, ownerA, "report.pdf")
	session := f.session(t, ownerA, doc.ID)

	f.gateway.set(nil, nil, true)
	_, err := f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: "slow question"})
	require.ErrorIs(t, err, ErrRetrievalTimeout)

	var turnErr *TurnError
	require.True(t, errors.As(err, &turnErr))
	require.NotNil(t, turnErr.UserMessage)

	messages := f.requireConsistent(t, ownerA, session.ID)
	require.Len(t, messages, 1)
	assert.Equal(t, turnErr.UserMessage.ID, messages[0].ID)
	assert.Equal(t, model.RoleUser, messages[0].Role)

	f.gateway.set(reportAnswer(), nil, false)
	assistant, err := f.orchestrator.Handle(ctx, HandleInput{
		OwnerID:        ownerA,
		SessionID:      session.ID,
		Text:           "slow question",
		IdempotencyKey: turnErr.UserMessage.ID,
	})
	require.NoError(t, err)

	messages = f.requireConsistent(t, ownerA, session.ID)
	require.Len(t, messages, 2)
	assert.Equal(t, turnErr.UserMessage.ID, messages[0].ID)
	assert.Equal(t, assistant.ID, messages[1].ID)
	assert.Equal(t, turnErr.UserMessage.ID, *messages[1].ReplyToID)
}

func TestHandle_FailureAddsOnlyUserMessage(t *testing.T) {
	f := newFixture(t, CoreOptions{})
	ctx := context.Background()
	doc := f.document(t, ownerA, "report.pdf")
	session := f.session(t, ownerA, doc.ID)

	f.gateway.set(nil, errors.New("index offline"), false)
	_, err := f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: "q1"})
	assert.ErrorIs(t, err, ErrRetrievalFailure)
	assert.NotErrorIs(t, err, ErrRetrievalTimeout)
	assert.Len(t, f.requireConsistent(t, ownerA, session.ID), 1)

	f.gateway.set(&retrieval.Answer{Text: "  "}, nil, false)
	_, err = f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: "q2"})
	assert.ErrorIs(t, err, ErrRetrievalFailure)

	messages := f.requireConsistent(t, ownerA, session.ID)
	require.Len(t, messages, 2)
	for _, msg := range messages {
		assert.Equal(t, model.RoleUser, msg.Role)
	}
}

func TestHandle_RetryOfCompletedTurnReturnsStoredReply(t *testing.T) {
	f := newFixture(t, CoreOptions{})
	ctx := context.Background()
	doc := f.document(t, ownerA, "report.pdf")
	session := f.session(t, ownerA, doc.ID)
	key := uuid.NewString()

	first, err := f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: "q", IdempotencyKey: key})
	require.NoError(t, err)
	second, err := f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: "q", IdempotencyKey: key})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.gateway.callCount())

	messages := f.requireConsistent(t, ownerA, session.ID)
	require.Len(t, messages, 2)
	assert.Equal(t, key, messages[0].ID)
}

func TestHandle_IdempotencyKeyConflicts(t *testing.T) {
	f := newFixture(t, CoreOptions{})
	ctx := context.Background()
	doc := f.document(t, ownerA, "report.pdf")
	session := f.session(t, ownerA, doc.ID)
	other := f.session(t, ownerA, doc.ID)
	key := uuid.NewString()

	_, err := f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: "q", IdempotencyKey: key})
	require.NoError(t, err)

	_, err = f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: "different", IdempotencyKey: key})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: other.ID, Text: "q", IdempotencyKey: key})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: "q", IdempotencyKey: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Len(t, f.requireConsistent(t, ownerA, session.ID), 2)
	assert.Empty(t, f.requireConsistent(t, ownerA, other.ID))
}

func TestHandle_ConcurrentTurnsOnOneSession(t *testing.T) {
	f := newFixture(t, CoreOptions{})
	ctx := context.Background()
	doc := f.document(t, ownerA, "report.pdf")
	session := f.session(t, ownerA, doc.ID)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orchestrator.Handle(ctx, HandleInput{OwnerID: ownerA, SessionID: session.ID, Text: "q"})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	messages := f.requireConsistent(t, ownerA, session.ID)
	require.Len(t, messages, 2*callers)

	seqs := make([]int, 0, len(messages))
	userBySeq := map[string]int64{}
	for _, msg := range messages {
		seqs = append(seqs, int(msg.Sequence))
		if msg.Role == model.RoleUser {
			userBySeq[msg.ID] = msg.Sequence
		}
	}
	assert.True(t, sort.IntsAreSorted(seqs))
	for _, msg := range messages {
		if msg.Role == model.RoleAssistant {
			require.NotNil(t, msg.ReplyToID)
			assert.Less(t, userBySeq[*msg.ReplyToID], msg.Sequence)
		}
	}
}

func TestHandle_OtherOwnerCannotPost(t *testing.T) {
	f := newFixture(t, CoreOptions{})
	doc := f.document(t, ownerA, "report.pdf")
	session := f.session(t, ownerA, doc.ID)

	_, err := f.orchestrator.Handle(context.Background(), HandleInput{OwnerID: ownerB, SessionID: session.ID, Text: "q"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Empty(t, f.requireConsistent(t, ownerA, session.ID))
}
