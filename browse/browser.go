// Package browse renders the published catalog to buyers and lets the
// operator delist lots.
package browse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/meowtytyshka/vintagebot/catalog"
	"github.com/meowtytyshka/vintagebot/internal/retryutil"
	"github.com/meowtytyshka/vintagebot/telegram"
	"github.com/meowtytyshka/vintagebot/texts"
)

const defaultPageSize = 8

var ErrNotAuthorized = errors.New("browse: not authorized")

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageKeyboard(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	SendMediaGroup(ctx context.Context, chatID int64, photoRefs []string, caption string) error
}

type BrowserOptions struct {
	Logger   *slog.Logger
	Store    *catalog.Store
	Sender   Sender
	Texts    *texts.Bundle
	AdminID  int64
	PageSize int

	RetryDelay   time.Duration
	RetryTimeout time.Duration
}

type Browser struct {
	logger       *slog.Logger
	store        *catalog.Store
	sender       Sender
	texts        *texts.Bundle
	adminID      int64
	pageSize     int
	retryDelay   time.Duration
	retryTimeout time.Duration
}

func NewBrowser(opts BrowserOptions) (*Browser, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if opts.Texts == nil {
		return nil, fmt.Errorf("texts bundle is required")
	}
	if opts.AdminID == 0 {
		return nil, fmt.Errorf("admin id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Browser{
		logger:       logger,
		store:        opts.Store,
		sender:       opts.Sender,
		texts:        opts.Texts,
		adminID:      opts.AdminID,
		pageSize:     pageSize,
		retryDelay:   opts.RetryDelay,
		retryTimeout: opts.RetryTimeout,
	}, nil
}

// SendCatalog renders one page of the catalog, newest lot first. Each
// lot gets its photo album followed by a buy button; a trailing button
// requests the next page when more lots remain. A failed send for one
// lot is logged and the rest of the page still goes out.
func (b *Browser) SendCatalog(ctx context.Context, chatID int64, offset int) error {
	lots, err := b.store.Lots(ctx)
	if err != nil {
		return err
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(lots) {
		return b.sender.SendMessage(ctx, chatID, b.texts.Get("catalog_empty"))
	}

	end := offset + b.pageSize
	if end > len(lots) {
		end = len(lots)
	}
	for _, lot := range lots[offset:end] {
		caption := b.texts.Format("lot_caption", lot.ID, lot.Title) + "\n" + b.texts.LotSummary(lot.Draft)
		if err := b.sender.SendMediaGroup(ctx, chatID, lot.Photos, caption); err != nil {
			b.logger.Warn("catalog_send_error", "chat_id", chatID, "lot_id", lot.ID, "error", err.Error())
			continue
		}
		markup := &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{
				{{Text: b.texts.Get("btn_buy"), CallbackData: fmt.Sprintf("buy:%d", lot.ID)}},
			},
		}
		if err := b.sender.SendMessageKeyboard(ctx, chatID, b.texts.Format("lot_caption", lot.ID, lot.Title), markup); err != nil {
			b.logger.Warn("catalog_send_error", "chat_id", chatID, "lot_id", lot.ID, "error", err.Error())
		}
	}

	if end < len(lots) {
		markup := &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{
				{{Text: b.texts.Get("btn_more"), CallbackData: fmt.Sprintf("more:%d", end)}},
			},
		}
		return b.sender.SendMessageKeyboard(ctx, chatID, b.texts.Get("btn_more"), markup)
	}
	return nil
}

// Delete delists a lot. Operator only; the owner gets a best-effort
// notice.
func (b *Browser) Delete(ctx context.Context, actorID int64, lotID int) (catalog.Lot, error) {
	if actorID != b.adminID {
		b.logger.Warn("catalog_delete_unauthorized", "actor_id", actorID, "lot_id", lotID)
		return catalog.Lot{}, ErrNotAuthorized
	}
	removed, err := b.store.RemoveLot(ctx, lotID)
	if err != nil {
		return catalog.Lot{}, err
	}
	b.logger.Info("catalog_delete_ok", "lot_id", removed.ID, "owner_id", removed.OwnerID)

	note := b.texts.Format("del_owner_note", removed.ID, removed.Title)
	if err := b.sender.SendMessage(ctx, removed.OwnerID, note); err != nil {
		b.logger.Warn("catalog_delete_notify_error", "owner_id", removed.OwnerID, "error", err.Error())
		ownerID := removed.OwnerID
		retryutil.AsyncRetry(b.logger, "catalog_delete_notify", b.retryDelay, b.retryTimeout, func(ctx context.Context) error {
			return b.sender.SendMessage(ctx, ownerID, note)
		})
	}
	return removed, nil
}
