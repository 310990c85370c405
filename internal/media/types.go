// Package media persists inbound and generated payloads and hands out opaque
// storage references; raw bytes never travel past this package.
package media

import (
	"context"
	"io"
	"time"
)

// MediaType classifies the kind of media asset.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeAudio MediaType = "audio"
	MediaTypeFile  MediaType = "file"
)

// Asset is the domain representation of a persisted media object.
type Asset struct {
	ContentHash string    `json:"content_hash"`
	MediaType   MediaType `json:"media_type"`
	Mime        string    `json:"mime"`
	SizeBytes   int64     `json:"size_bytes"`
	// StorageKey is the opaque reference passed downstream in place of bytes.
	StorageKey string    `json:"storage_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// IngestInput carries the data needed to persist a new media asset.
type IngestInput struct {
	// Scope groups assets, typically by conversation id.
	Scope     string
	MediaType MediaType
	Mime      string
	Data      []byte
}

// StorageProvider abstracts object storage operations.
type StorageProvider interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader) error
	// Open returns a reader for the given storage key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error
	// AccessPath returns a consumer-accessible reference for a storage key.
	// The format depends on the backend (e.g. file path, signed URL).
	AccessPath(key string) string
}
