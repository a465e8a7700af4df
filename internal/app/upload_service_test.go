package app

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperbrain/internal/model"
	"paperbrain/internal/platform/blob"
)

type stubInspector struct {
	pages int
	err   error
}

func (s stubInspector) PageCount(data []byte) (int, error) {
	return s.pages, s.err
}

type recordingPublisher struct {
	requests []model.ExtractionRequest
	err      error
}

func (p *recordingPublisher) PublishExtraction(ctx context.Context, req model.ExtractionRequest) error {
	p.requests = append(p.requests, req)
	return p.err
}

func newUploadFixture(t *testing.T, inspector PDFInspector, publisher ExtractionPublisher) (*fixture, *UploadService, *blob.FileStore) {
	t.Helper()
	blobs, err := blob.NewFileStore(t.TempDir())
	require.NoError(t, err)
	f := newFixture(t, CoreOptions{Blobs: blobs})
	return f, NewUploadService(f.core, blobs, inspector, publisher, 1<<20, nil), blobs
}

func TestUpload_CreatesDocumentSessionAndRequest(t *testing.T) {
	publisher := &recordingPublisher{}
	f, svc, blobs := newUploadFixture(t, stubInspector{pages: 4}, publisher)
	ctx := context.Background()

	result, err := svc.Upload(ctx, UploadInput{OwnerID: ownerA, Filename: "dir/report.pdf", Data: []byte("%PDF-1.4 fake")})
	require.NoError(t, err)

	assert.Equal(t, "report.pdf", result.Document.Filename)
	assert.Equal(t, int64(len("%PDF-1.4 fake")), result.Document.SizeBytes)
	assert.Equal(t, 4, result.Document.PageCount)
	assert.Nil(t, result.Document.ChunkCount)
	assert.Equal(t, "Chat with report.pdf", result.Session.Title)
	assert.Equal(t, result.Document.ID, result.Session.DocumentID)

	file, err := blobs.Open(result.Document.BlobRef)
	require.NoError(t, err)
	require.NoError(t, file.Close())

	require.Len(t, publisher.requests, 1)
	assert.Equal(t, model.ExtractionRequest{
		DocumentID: result.Document.ID,
		BlobRef:    result.Document.BlobRef,
		Filename:   "report.pdf",
	}, publisher.requests[0])

	sessions, err := f.core.Sessions.List(ctx, ownerA, result.Document.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	require.NoError(t, f.core.Documents.Delete(ctx, ownerA, result.Document.ID))
	_, err = blobs.Open(result.Document.BlobRef)
	assert.Error(t, err)
}

func TestUpload_PublishFailureIsNotFatal(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("broker down")}
	_, svc, _ := newUploadFixture(t, stubInspector{pages: 1}, publisher)

	result, err := svc.Upload(context.Background(), UploadInput{OwnerID: ownerA, Filename: "a.pdf", Data: []byte("x")})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Document.ID)
}

func TestUpload_Rejects(t *testing.T) {
	f, svc, _ := newUploadFixture(t, stubInspector{pages: 1}, nil)
	_, badPDF, _ := newUploadFixture(t, stubInspector{err: errors.New("no xref")}, nil)
	ctx := context.Background()

	cases := map[string]struct {
		svc   *UploadService
		input UploadInput
	}{
		"no filename":   {svc, UploadInput{OwnerID: ownerA, Filename: " ", Data: []byte("x")}},
		"not pdf":       {svc, UploadInput{OwnerID: ownerA, Filename: "notes.txt", Data: []byte("x")}},
		"empty":         {svc, UploadInput{OwnerID: ownerA, Filename: "a.pdf"}},
		"too large":     {svc, UploadInput{OwnerID: ownerA, Filename: "a.pdf", Data: make([]byte, 1<<20+1)}},
		"unreadable":    {badPDF, UploadInput{OwnerID: ownerA, Filename: "a.pdf", Data: []byte("x")}},
		"missing owner": {svc, UploadInput{Filename: "a.pdf", Data: []byte("x")}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.svc.Upload(ctx, tc.input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	docs, err := f.core.Documents.List(ctx, ownerA)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUpload_LongFilenameKeepsTitleWithinLimit(t *testing.T) {
	_, svc, _ := newUploadFixture(t, stubInspector{pages: 1}, nil)
	filename := strings.Repeat("a", 250) + ".pdf"

	result, err := svc.Upload(context.Background(), UploadInput{OwnerID: ownerA, Filename: filename, Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, filename, result.Document.Filename)
	assert.Len(t, result.Session.Title, maxTitleBytes)
	assert.True(t, strings.HasPrefix(result.Session.Title, "Chat with aaa"))
}

func TestFirstSessionTitle_CutsOnRuneBoundary(t *testing.T) {
	title := firstSessionTitle(strings.Repeat("é", 200) + ".pdf")
	assert.LessOrEqual(t, len(title), maxTitleBytes)
	assert.True(t, utf8.ValidString(title))
	assert.Equal(t, "Chat with report.pdf", firstSessionTitle("report.pdf"))
}

func TestUpload_FailedRecordLeavesNothingBehind(t *testing.T) {
	root := t.TempDir()
	blobs, err := blob.NewFileStore(root)
	require.NoError(t, err)
	f := newFixture(t, CoreOptions{Blobs: blobs})
	svc := NewUploadService(f.core, blobs, stubInspector{pages: 1}, nil, 1<<20, nil)
	ctx := context.Background()

	_, err = svc.Upload(ctx, UploadInput{OwnerID: ownerA, Filename: strings.Repeat("b", 300) + ".pdf", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, f.db.Migrator().DropTable(&model.ChatSession{}))
	_, err = svc.Upload(ctx, UploadInput{OwnerID: ownerA, Filename: "report.pdf", Data: []byte("x")})
	require.Error(t, err)

	docs, err := f.core.Documents.List(ctx, ownerA)
	require.NoError(t, err)
	assert.Empty(t, docs)

	var files int
	require.NoError(t, filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files++
		}
		return err
	}))
	assert.Zero(t, files)
}
