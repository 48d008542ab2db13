package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-invoicing-crm/internal/application"
	"telegram-invoicing-crm/internal/config"
	"telegram-invoicing-crm/internal/domain/ports/adapter"
	"telegram-invoicing-crm/internal/infra/logging"
	red "telegram-invoicing-crm/internal/infra/redis"
)

var _ adapter.ChatBotAdapter = (*RealBotAdapter)(nil)

// AssetResolver turns a stored asset path into an absolute filename the bot
// client can upload.
type AssetResolver interface {
	Open(path string) (string, error)
}

// RealBotAdapter polls Telegram, normalizes updates into InboundEvents and
// hands them to the facade. Outbound sends implement the chat port.
type RealBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	facade      application.Facade
	rateLimiter *red.RateLimiter
	assets      AssetResolver
	log         *zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

// NewRealBotAdapter connects to the Bot API. The facade is attached later
// with Bind: outbound sends are needed to build the use cases that the
// facade itself wraps.
func NewRealBotAdapter(cfg *config.BotConfig, rateLimiter *red.RateLimiter, assets AssetResolver, logger *zerolog.Logger) (*RealBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 8
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealBotAdapter{
		bot:           bot,
		cfg:           cfg,
		rateLimiter:   rateLimiter,
		assets:        assets,
		log:           &l,
		updateWorkers: workers,
	}, nil
}

// Bind attaches the event sink. Must be called before StartPolling.
func (r *RealBotAdapter) Bind(facade application.Facade) {
	r.facade = facade
}

// Token exposes the bot token for the file download client.
func (r *RealBotAdapter) Token() string { return r.bot.Token }

// FileURL resolves a file id to its download URL via the Bot API.
func (r *RealBotAdapter) FileURL(fileID string) (string, error) {
	f, err := r.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", err
	}
	return f.Link(r.bot.Token), nil
}

func (r *RealBotAdapter) StartPolling(ctx context.Context) error {
	if r.facade == nil {
		return errors.New("bot facade not bound")
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-updateChan:
					if !ok {
						return
					}
					r.handleUpdate(ctx, up)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

func (r *RealBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		r.handleCallback(ctx, update.CallbackQuery)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID
	ctx = logging.WithTgID(ctx, userID)

	// Per-user per-command rate limiting, one window per command name.
	command := "message"
	if msg.IsCommand() {
		command = msg.Command()
	}
	if r.rateLimiter != nil {
		allowed, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(userID, command), 20, time.Minute)
		if err != nil {
			r.log.Error().Err(err).Int64("tg_id", userID).Msg("rate limiter unavailable")
		} else if !allowed {
			_ = r.SendMessage(ctx, chatID, "Too many requests. Please slow down.")
			return
		}
	}

	switch {
	case msg.IsCommand():
		r.facade.Dispatch(ctx, application.InboundEvent{
			Kind:    application.EventCommand,
			UserID:  userID,
			ChatID:  chatID,
			Command: strings.ToLower(msg.Command()),
			Args:    strings.TrimSpace(msg.CommandArguments()),
		})
	case len(msg.Photo) > 0:
		r.facade.Dispatch(ctx, application.InboundEvent{
			Kind:   application.EventPhoto,
			UserID: userID,
			ChatID: chatID,
			FileID: largestPhoto(msg.Photo).FileID,
		})
	case msg.Document != nil:
		r.facade.Dispatch(ctx, application.InboundEvent{
			Kind:     application.EventDocument,
			UserID:   userID,
			ChatID:   chatID,
			FileID:   msg.Document.FileID,
			MIMEType: msg.Document.MimeType,
		})
	case msg.Text != "":
		r.facade.Dispatch(ctx, application.InboundEvent{
			Kind:   application.EventText,
			UserID: userID,
			ChatID: chatID,
			Text:   msg.Text,
		})
	}
}

// largestPhoto picks the biggest size variant Telegram offers for a photo.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[0]
	for _, s := range sizes[1:] {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

func (r *RealBotAdapter) handleCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	if query.From == nil || query.Message == nil {
		return
	}
	// Ack first so the client stops its spinner, whatever routing does next.
	if _, err := r.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		r.log.Warn().Err(err).Msg("callback ack failed")
	}
	r.facade.Dispatch(logging.WithTgID(ctx, query.From.ID), application.InboundEvent{
		Kind:     application.EventCallback,
		UserID:   query.From.ID,
		ChatID:   query.Message.Chat.ID,
		Callback: query.Data,
	})
}

func (r *RealBotAdapter) SendMessage(ctx context.Context, chatID int64, text string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (r *RealBotAdapter) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.Button) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = buildKeyboard(rows)
	_, err := r.bot.Send(msg)
	return err
}

func (r *RealBotAdapter) SendPhoto(ctx context.Context, chatID int64, assetPath, caption string, rows [][]adapter.Button) error {
	full, err := r.assets.Open(assetPath)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(full))
	msg.Caption = caption
	if len(rows) > 0 {
		msg.ReplyMarkup = buildKeyboard(rows)
	}
	_, err = r.bot.Send(msg)
	return err
}

func (r *RealBotAdapter) SendDocument(ctx context.Context, chatID int64, assetPath, caption string, rows [][]adapter.Button) error {
	full, err := r.assets.Open(assetPath)
	if err != nil {
		return err
	}
	msg := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(full))
	msg.Caption = caption
	if len(rows) > 0 {
		msg.ReplyMarkup = buildKeyboard(rows)
	}
	_, err = r.bot.Send(msg)
	return err
}

func buildKeyboard(rows [][]adapter.Button) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kbRow := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			var kb tgbotapi.InlineKeyboardButton
			switch {
			case btn.URL != "":
				kb = tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL)
			case btn.Data != "":
				kb = tgbotapi.NewInlineKeyboardButtonData(label, btn.Data)
			default:
				kb = tgbotapi.NewInlineKeyboardButtonData(label, label)
			}
			kbRow = append(kbRow, kb)
		}
		kbRows = append(kbRows, kbRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}
