package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"paperbrain/internal/app"
	"paperbrain/internal/transport/http/response"
)

type DocumentHandler struct {
	documents *app.DocumentStore
	uploads   *app.UploadService
	maxBytes  int64
}

func NewDocumentHandler(documents *app.DocumentStore, uploads *app.UploadService, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		uploads:   uploads,
		maxBytes:  maxBytes,
	}
}

// Upload accepts a multipart form with the PDF in field "file" and answers
// with the new document and its first session.
func (h *DocumentHandler) Upload(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "multipart field \"file\" is required")
		return
	}
	if h.maxBytes > 0 && header.Size > h.maxBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest,
			fmt.Sprintf("file is %d bytes, limit is %d", header.Size, h.maxBytes))
		return
	}

	file, err := header.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read upload failed")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "read upload failed")
		return
	}

	result, err := h.uploads.Upload(c.Request.Context(), app.UploadInput{
		OwnerID:  ownerID,
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		respondError(c, err, "upload document failed")
		return
	}
	response.Created(c, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	docs, err := h.documents.List(c.Request.Context(), ownerID)
	if err != nil {
		respondError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	doc, err := h.documents.Get(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		respondError(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	if err := h.documents.Delete(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		respondError(c, err, "delete document failed")
		return
	}
	response.NoContent(c)
}
