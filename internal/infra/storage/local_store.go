package storage

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/model"
	"telegram-invoicing-crm/internal/domain/ports/adapter"
)

var _ adapter.AssetStore = (*LocalStore)(nil)

// LocalStore writes proof files under a base directory and returns paths
// relative to it. Paths, not bytes, travel through the rest of the system.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if baseDir == "" {
		return nil, domain.ErrInvalidArgument
	}
	if err := os.MkdirAll(filepath.Join(baseDir, "proofs"), 0o750); err != nil {
		return nil, fmt.Errorf("create asset dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

// Save persists data and returns "proofs/<ulid>_<unix>.<ext>". The extension
// comes from the MIME allow-list; anything else is refused before touching
// the disk.
func (s *LocalStore) Save(ctx context.Context, data []byte, mimeType string) (string, error) {
	ext, ok := model.AllowedProofMIME[strings.ToLower(mimeType)]
	if !ok {
		return "", domain.ErrUnsupportedInput
	}
	if len(data) == 0 {
		return "", domain.ErrInvalidArgument
	}

	now := time.Now()
	token := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	rel := filepath.Join("proofs", fmt.Sprintf("%s_%d.%s", token.String(), now.Unix(), ext))

	if err := os.WriteFile(filepath.Join(s.baseDir, rel), data, 0o640); err != nil {
		return "", fmt.Errorf("write asset: %w", err)
	}
	return rel, nil
}

// Open resolves a stored path back to an absolute filename for outbound
// sends. It refuses traversal outside the base directory.
func (s *LocalStore) Open(path string) (string, error) {
	abs := filepath.Join(s.baseDir, filepath.Clean(path))
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", err
	}
	full, err := filepath.Abs(abs)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(full, base+string(os.PathSeparator)) {
		return "", domain.ErrInvalidArgument
	}
	if _, err := os.Stat(full); err != nil {
		return "", domain.ErrNotFound
	}
	return full, nil
}
