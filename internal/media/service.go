package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
)

// Service provides media asset persistence operations.
type Service struct {
	provider StorageProvider
	logger   *slog.Logger
}

// NewService creates a media service with the given storage provider.
func NewService(log *slog.Logger, provider StorageProvider) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider: provider,
		logger:   log.With(slog.String("service", "media")),
	}
}

// Ingest persists a media payload under a content-hash storage key and
// returns the asset. Re-ingesting identical bytes in the same scope yields
// the same key, so platform redeliveries do not duplicate storage.
func (s *Service) Ingest(ctx context.Context, input IngestInput) (Asset, error) {
	if s.provider == nil {
		return Asset{}, ErrProviderUnavailable
	}
	if strings.TrimSpace(input.Scope) == "" {
		return Asset{}, fmt.Errorf("scope is required")
	}
	if len(input.Data) == 0 {
		return Asset{}, fmt.Errorf("data is required")
	}
	if int64(len(input.Data)) > MaxAssetBytes {
		return Asset{}, fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, MaxAssetBytes)
	}

	sum := sha256.Sum256(input.Data)
	contentHash := hex.EncodeToString(sum[:])
	storageKey := path.Join(
		sanitizeKeyPart(input.Scope),
		string(input.MediaType),
		contentHash[:4],
		contentHash+ExtensionForMime(input.Mime),
	)

	if err := s.provider.Put(ctx, storageKey, bytes.NewReader(input.Data)); err != nil {
		return Asset{}, fmt.Errorf("store media: %w", err)
	}

	asset := Asset{
		ContentHash: contentHash,
		MediaType:   input.MediaType,
		Mime:        coalesce(input.Mime, "application/octet-stream"),
		SizeBytes:   int64(len(input.Data)),
		StorageKey:  storageKey,
		CreatedAt:   time.Now().UTC(),
	}
	s.logger.Info("media stored",
		slog.String("key", storageKey),
		slog.String("mime", asset.Mime),
		slog.Int64("size_bytes", asset.SizeBytes))
	return asset, nil
}

// Open returns a reader for the given storage key.
func (s *Service) Open(ctx context.Context, storageKey string) (io.ReadCloser, error) {
	if s.provider == nil {
		return nil, ErrProviderUnavailable
	}
	reader, err := s.provider.Open(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return reader, nil
}

// AccessPath resolves a storage key to a consumer-accessible reference.
func (s *Service) AccessPath(storageKey string) string {
	if s.provider == nil {
		return ""
	}
	return s.provider.AccessPath(storageKey)
}

// ExtensionForMime maps a MIME type to a file extension, defaulting to ".bin".
func ExtensionForMime(mime string) string {
	base := strings.ToLower(strings.TrimSpace(strings.Split(mime, ";")[0]))
	mapping := map[string]string{
		"audio/ogg":  ".ogg",
		"audio/opus": ".ogg",
		"audio/mpeg": ".mp3",
		"audio/mp4":  ".m4a",
		"audio/aac":  ".aac",
		"audio/wav":  ".wav",
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
		"image/webp": ".webp",
	}
	if ext, ok := mapping[base]; ok {
		return ext
	}
	return ".bin"
}

func sanitizeKeyPart(value string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

func coalesce(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
