package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"paperbrain/internal/model"
)

type PDFInspector interface {
	PageCount(data []byte) (int, error)
}

type ExtractionPublisher interface {
	PublishExtraction(ctx context.Context, req model.ExtractionRequest) error
}

type UploadInput struct {
	OwnerID  string
	Filename string
	Data     []byte
}

type UploadResult struct {
	Document *model.Document    `json:"document"`
	Session  *model.ChatSession `json:"session"`
}

// UploadService stores an uploaded PDF, records it and opens the first chat
// session on it.
type UploadService struct {
	core      *Core
	blobs     BlobStore
	inspector PDFInspector
	publisher ExtractionPublisher
	maxBytes  int64
	logger    *zap.Logger
}

func NewUploadService(
	core *Core,
	blobs BlobStore,
	inspector PDFInspector,
	publisher ExtractionPublisher,
	maxBytes int64,
	logger *zap.Logger,
) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UploadService{
		core:      core,
		blobs:     blobs,
		inspector: inspector,
		publisher: publisher,
		maxBytes:  maxBytes,
		logger:    logger.Named("upload"),
	}
}

func (s *UploadService) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	filename := filepath.Base(strings.TrimSpace(input.Filename))
	if filename == "" || filename == "." || filename == "/" {
		return nil, validationError("filename is required")
	}
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, validationError("only .pdf files are accepted")
	}
	size := int64(len(input.Data))
	if size == 0 {
		return nil, validationError("file is empty")
	}
	if s.maxBytes > 0 && size > s.maxBytes {
		return nil, validationError("file is %d bytes, limit is %d", size, s.maxBytes)
	}

	pages, err := s.inspector.PageCount(input.Data)
	if err != nil {
		return nil, validationError("unreadable pdf: %v", err)
	}

	blobRef, err := s.blobs.Store(ctx, input.Data)
	if err != nil {
		return nil, fmt.Errorf("store upload failed: %w", err)
	}

	doc, session, err := s.core.Documents.CreateWithSession(ctx, CreateDocumentInput{
		OwnerID:   input.OwnerID,
		Filename:  filename,
		SizeBytes: size,
		PageCount: pages,
		BlobRef:   blobRef,
	}, firstSessionTitle(filename))
	if err != nil {
		s.discardBlob(blobRef)
		return nil, err
	}

	if s.publisher != nil {
		req := model.ExtractionRequest{DocumentID: doc.ID, BlobRef: blobRef, Filename: filename}
		if err := s.publisher.PublishExtraction(ctx, req); err != nil {
			s.logger.Warn("publish extraction request failed",
				zap.String("document_id", doc.ID),
				zap.Error(err),
			)
		}
	}

	return &UploadResult{Document: doc, Session: session}, nil
}

// firstSessionTitle names the upload's session after the file, cut to the
// title limit on a rune boundary.
func firstSessionTitle(filename string) string {
	title := "Chat with " + filename
	if len(title) <= maxTitleBytes {
		return title
	}
	cut := maxTitleBytes
	for cut > 0 && !utf8.RuneStart(title[cut]) {
		cut--
	}
	return title[:cut]
}

func (s *UploadService) discardBlob(ref string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.blobs.Delete(ctx, ref); err != nil {
		s.logger.Warn("discard blob failed", zap.String("blob_ref", ref), zap.Error(err))
	}
}
