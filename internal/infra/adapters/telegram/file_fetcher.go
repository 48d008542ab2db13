package telegram

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"telegram-invoicing-crm/internal/config"
	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/ports/adapter"
)

var _ adapter.FileFetcher = (*FileFetcher)(nil)

// fileLinker resolves a Telegram file id to a download URL. Implemented by
// RealBotAdapter; split out so tests can point Fetch at a local server.
type fileLinker interface {
	FileURL(fileID string) (string, error)
}

// FileFetcher downloads proof files from the Bot API file endpoint. Every
// download runs under the configured timeout; a slow or dead endpoint cannot
// pin a bot worker.
type FileFetcher struct {
	linker fileLinker
	client *resty.Client
}

func NewFileFetcher(linker fileLinker, cfg *config.ProofConfig) *FileFetcher {
	timeout := cfg.DownloadTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	if cfg.SkipTLSVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	return &FileFetcher{linker: linker, client: client}
}

func (f *FileFetcher) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	url, err := f.linker.FileURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve file %s: %v", domain.ErrExternalFetch, fileID, err)
	}

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: download file %s: %v", domain.ErrExternalFetch, fileID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: download file %s: status %d", domain.ErrExternalFetch, fileID, resp.StatusCode())
	}
	return resp.Body(), nil
}
