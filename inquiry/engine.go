// Package inquiry collects a buyer's contact for a specific lot and
// relays it to the operator and the lot owner.
package inquiry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meowtytyshka/vintagebot/catalog"
	"github.com/meowtytyshka/vintagebot/internal/retryutil"
	"github.com/meowtytyshka/vintagebot/session"
	"github.com/meowtytyshka/vintagebot/texts"
)

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type EngineOptions struct {
	Logger   *slog.Logger
	Store    *catalog.Store
	Sessions *session.Manager
	Sender   Sender
	Texts    *texts.Bundle
	AdminID  int64

	RetryDelay   time.Duration
	RetryTimeout time.Duration
}

type Engine struct {
	logger       *slog.Logger
	store        *catalog.Store
	sessions     *session.Manager
	sender       Sender
	texts        *texts.Bundle
	adminID      int64
	retryDelay   time.Duration
	retryTimeout time.Duration
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("sessions manager is required")
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
	return &Engine{
		logger:       logger,
		store:        opts.Store,
		sessions:     opts.Sessions,
		sender:       opts.Sender,
		texts:        opts.Texts,
		adminID:      opts.AdminID,
		retryDelay:   opts.RetryDelay,
		retryTimeout: opts.RetryTimeout,
	}, nil
}

// Start opens the contact prompt for a lot. A lot that vanished since
// the buy button was rendered is a benign outcome: the buyer gets a
// notice and no session is created.
func (e *Engine) Start(ctx context.Context, chatID int64, lotID int) error {
	_, err := e.store.Lot(ctx, lotID)
	if errors.Is(err, catalog.ErrLotNotFound) {
		return e.sender.SendMessage(ctx, chatID, e.texts.Get("catalog_lot_missing"))
	}
	if err != nil {
		return err
	}
	e.sessions.Put(chatID, session.State{Step: session.StepBuyContact, LotID: lotID})
	e.logger.Info("inquiry_start", "chat_id", chatID, "lot_id", lotID)
	return e.sender.SendMessage(ctx, chatID, e.texts.Format("buy_prompt", lotID))
}

// HandleContact relays the buyer's contact text. The lot is re-checked
// so a delisting between prompt and answer closes the flow cleanly.
func (e *Engine) HandleContact(ctx context.Context, chatID int64, buyerID int64, contact string) error {
	state, ok := e.sessions.Get(chatID)
	if !ok || state.Step != session.StepBuyContact {
		return nil
	}
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return e.sender.SendMessage(ctx, chatID, e.texts.Format("buy_prompt", state.LotID))
	}

	lot, err := e.store.Lot(ctx, state.LotID)
	if errors.Is(err, catalog.ErrLotNotFound) {
		e.sessions.Clear(chatID)
		return e.sender.SendMessage(ctx, chatID, e.texts.Get("catalog_lot_missing"))
	}
	if err != nil {
		return err
	}

	ref := uuid.NewString()
	e.logger.Info("inquiry_submitted", "ref", ref, "lot_id", lot.ID, "buyer_id", buyerID, "owner_id", lot.OwnerID)

	adminNote := e.texts.Format("buy_admin_note", ref, lot.ID, lot.Title, buyerID, contact)
	e.notify(ctx, "inquiry_notify_admin", e.adminID, adminNote)
	if lot.OwnerID != e.adminID {
		ownerNote := e.texts.Format("buy_owner_note", lot.ID, lot.Title, contact)
		e.notify(ctx, "inquiry_notify_owner", lot.OwnerID, ownerNote)
	}

	e.sessions.Clear(chatID)
	return e.sender.SendMessage(ctx, chatID, e.texts.Get("buy_thanks"))
}

func (e *Engine) notify(ctx context.Context, name string, chatID int64, text string) {
	if err := e.sender.SendMessage(ctx, chatID, text); err != nil {
		e.logger.Warn(name+"_error", "chat_id", chatID, "error", err.Error())
		retryutil.AsyncRetry(e.logger, name, e.retryDelay, e.retryTimeout, func(ctx context.Context) error {
			return e.sender.SendMessage(ctx, chatID, text)
		})
	}
}
