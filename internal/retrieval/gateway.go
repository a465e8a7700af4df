package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"paperbrain/internal/model"
)

var ErrUpstream = errors.New("retrieval upstream error")

// DocumentRef identifies the document a query runs against.
type DocumentRef struct {
	ID       string
	BlobRef  string
	Filename string
}

type Answer struct {
	Text    string
	Sources []model.Source
}

// HTTPGateway calls a retrieval service that owns extraction, indexing and
// answer generation. It sets no timeout of its own; callers bound ctx.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPGateway(baseURL, apiKey string, httpClient *http.Client) *HTTPGateway {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type queryRequest struct {
	DocumentID string `json:"document_id"`
	BlobRef    string `json:"blob_ref"`
	Filename   string `json:"filename"`
	Query      string `json:"query"`
}

type queryResponse struct {
	Answer  string `json:"answer"`
	Sources []struct {
		ChunkID  string `json:"chunk_id"`
		Filename string `json:"filename"`
		Snippet  string `json:"snippet"`
	} `json:"sources"`
}

func (g *HTTPGateway) Query(ctx context.Context, doc DocumentRef, text string) (*Answer, error) {
	bodyBytes, err := json.Marshal(queryRequest{
		DocumentID: doc.ID,
		BlobRef:    doc.BlobRef,
		Filename:   doc.Filename,
		Query:      text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal retrieval request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/query", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build retrieval request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retrieval request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read retrieval response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, truncate(string(raw), 256))
	}

	var parsed queryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrUpstream, err)
	}
	answer := strings.TrimSpace(parsed.Answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: empty answer", ErrUpstream)
	}

	sources := make([]model.Source, 0, len(parsed.Sources))
	for _, src := range parsed.Sources {
		sources = append(sources, model.Source{
			ChunkID:  src.ChunkID,
			Filename: src.Filename,
			Snippet:  src.Snippet,
		})
	}
	return &Answer{Text: answer, Sources: sources}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
