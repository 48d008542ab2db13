package adapter

import "context"

// FileFetcher retrieves a channel-hosted binary by its opaque handle.
// Implementations must bound the download with a timeout and surface
// failures as domain.ErrExternalFetch so flows stay resumable.
type FileFetcher interface {
	Fetch(ctx context.Context, fileID string) ([]byte, error)
}

// AssetStore persists proof blobs under a content-namespaced path embedding a
// random token and timestamp, so concurrent writers never collide. The store
// is append-only; orphaned assets from abandoned flows are never reclaimed.
// MIME types outside the allow-list (JPEG, PNG, PDF) are rejected with
// domain.ErrUnsupportedInput.
type AssetStore interface {
	Save(ctx context.Context, data []byte, mimeType string) (path string, err error)
}
