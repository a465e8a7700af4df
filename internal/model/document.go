package model

import "time"

// Document is the metadata of an uploaded PDF. The raw bytes live in the blob
// store under BlobRef.
type Document struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	OwnerID    string    `gorm:"size:36;not null;index:idx_documents_owner_uploaded,priority:1" json:"ownerId"`
	Filename   string    `gorm:"size:256;not null" json:"filename"`
	SizeBytes  int64     `gorm:"not null" json:"sizeBytes"`
	PageCount  int       `gorm:"not null;default:0" json:"pageCount"`
	BlobRef    string    `gorm:"size:64;not null;default:''" json:"-"`
	ChunkCount *int      `json:"chunkCount"` // nil until extraction completes
	UploadedAt time.Time `gorm:"not null;index:idx_documents_owner_uploaded,priority:2" json:"uploadedAt"`
}
