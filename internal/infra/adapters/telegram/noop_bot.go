package telegram

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-invoicing-crm/internal/domain"
	"telegram-invoicing-crm/internal/domain/ports/adapter"
)

var _ adapter.ChatBotAdapter = (*NoopBotAdapter)(nil)

// NoopBotAdapter logs outbound sends instead of talking to Telegram. Used by
// the seed command and local runs without a token.
type NoopBotAdapter struct {
	log *zerolog.Logger
}

func NewNoopBotAdapter(logger *zerolog.Logger) *NoopBotAdapter {
	l := logger.With().Str("component", "NoopBot").Logger()
	return &NoopBotAdapter{log: &l}
}

// FileURL satisfies the fetcher's linker; there is no Bot API to link
// against, so every download fails as an external fetch.
func (b *NoopBotAdapter) FileURL(fileID string) (string, error) {
	return "", domain.ErrExternalFetch
}

func (b *NoopBotAdapter) pause(ctx context.Context) error {
	select {
	case <-time.After(100 * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *NoopBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := b.pause(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Msg("noop send")
	return nil
}

func (b *NoopBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.Button) error {
	if err := b.pause(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("text", text).Int("rows", len(rows)).Msg("noop send buttons")
	return nil
}

func (b *NoopBotAdapter) SendPhoto(ctx context.Context, chatID int64, assetPath, caption string, rows [][]adapter.Button) error {
	if err := b.pause(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("asset", assetPath).Str("caption", caption).Msg("noop send photo")
	return nil
}

func (b *NoopBotAdapter) SendDocument(ctx context.Context, chatID int64, assetPath, caption string, rows [][]adapter.Button) error {
	if err := b.pause(ctx); err != nil {
		return err
	}
	b.log.Info().Int64("chat_id", chatID).Str("asset", assetPath).Str("caption", caption).Msg("noop send document")
	return nil
}
