package model

// ExtractionRequest asks the extraction pipeline to chunk and index a stored
// PDF.
type ExtractionRequest struct {
	DocumentID string `json:"documentId"`
	BlobRef    string `json:"blobRef"`
	Filename   string `json:"filename"`
}

// ExtractionResult is the pipeline's answer to an ExtractionRequest.
type ExtractionResult struct {
	DocumentID string `json:"documentId"`
	ChunkCount *int   `json:"chunkCount"`
}
