// Package moderation gates seller submissions: every finalized draft
// enters a pending queue and only an operator decision publishes it to
// the catalog or drops it.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/meowtytyshka/vintagebot/catalog"
	"github.com/meowtytyshka/vintagebot/internal/retryutil"
	"github.com/meowtytyshka/vintagebot/telegram"
	"github.com/meowtytyshka/vintagebot/texts"
)

var (
	ErrNotAuthorized = errors.New("moderation: not authorized")
	// ErrPendingNotFound doubles as the idempotency signal: the second
	// decision on an already-decided submission sees it.
	ErrPendingNotFound = catalog.ErrPendingNotFound
)

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageKeyboard(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	SendMediaGroup(ctx context.Context, chatID int64, photoRefs []string, caption string) error
}

type GateOptions struct {
	Logger  *slog.Logger
	Store   *catalog.Store
	Sender  Sender
	Texts   *texts.Bundle
	AdminID int64

	// Best-effort notification retry knobs; zero uses the retryutil
	// defaults.
	RetryDelay   time.Duration
	RetryTimeout time.Duration
}

type Gate struct {
	logger       *slog.Logger
	store        *catalog.Store
	sender       Sender
	texts        *texts.Bundle
	adminID      int64
	retryDelay   time.Duration
	retryTimeout time.Duration
}

func NewGate(opts GateOptions) (*Gate, error) {
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
	return &Gate{
		logger:       logger,
		store:        opts.Store,
		sender:       opts.Sender,
		texts:        opts.Texts,
		adminID:      opts.AdminID,
		retryDelay:   opts.RetryDelay,
		retryTimeout: opts.RetryTimeout,
	}, nil
}

// Submit validates and persists the draft into the pending queue, then
// notifies the operator. The queue append is durable before any
// notification goes out; notification failures are logged and retried
// once, never surfaced to the seller.
func (g *Gate) Submit(ctx context.Context, draft catalog.Draft) (catalog.PendingSubmission, error) {
	submitted, err := g.store.AppendPending(ctx, draft)
	if err != nil {
		return catalog.PendingSubmission{}, err
	}
	g.logger.Info("moderation_submit",
		"pending_id", submitted.PendingID,
		"owner_id", submitted.OwnerID,
		"photos", len(submitted.Photos),
	)

	caption := g.texts.Format("mod_new_submission", submitted.PendingID) + "\n" + g.texts.LotSummary(submitted.Draft)
	if err := g.sender.SendMediaGroup(ctx, g.adminID, submitted.Photos, caption); err != nil {
		g.logger.Warn("moderation_notify_admin_error", "pending_id", submitted.PendingID, "error", err.Error())
		photos := submitted.Photos
		retryutil.AsyncRetry(g.logger, "moderation_notify_admin", g.retryDelay, g.retryTimeout, func(ctx context.Context) error {
			return g.sender.SendMediaGroup(ctx, g.adminID, photos, caption)
		})
	}
	hint := g.texts.Format("mod_decide_hint", submitted.PendingID)
	markup := g.decisionKeyboard(submitted.PendingID)
	if err := g.sender.SendMessageKeyboard(ctx, g.adminID, hint, markup); err != nil {
		g.logger.Warn("moderation_notify_admin_error", "pending_id", submitted.PendingID, "error", err.Error())
		retryutil.AsyncRetry(g.logger, "moderation_decide_hint", g.retryDelay, g.retryTimeout, func(ctx context.Context) error {
			return g.sender.SendMessageKeyboard(ctx, g.adminID, hint, markup)
		})
	}
	return submitted, nil
}

// Approve publishes a pending submission. Only the operator may call
// it; a second approval of the same id reports ErrPendingNotFound and
// changes nothing. The catalog append is persisted before the pending
// removal, so a crash between the two leaves a duplicate to re-decide
// rather than a lost item.
func (g *Gate) Approve(ctx context.Context, actorID int64, pendingID int) (catalog.Lot, error) {
	decisionID := uuid.NewString()
	if actorID != g.adminID {
		g.logger.Warn("moderation_unauthorized", "decision_id", decisionID, "actor_id", actorID, "pending_id", pendingID)
		return catalog.Lot{}, ErrNotAuthorized
	}
	pending, err := g.store.PendingByID(ctx, pendingID)
	if err != nil {
		return catalog.Lot{}, err
	}
	lot, err := g.store.AppendLot(ctx, pending.Draft)
	if err != nil {
		return catalog.Lot{}, err
	}
	if _, err := g.store.RemovePending(ctx, pendingID); err != nil {
		// The lot is already durable; the stale queue entry will show
		// up as a duplicate decision, which is the safe failure mode.
		g.logger.Error("moderation_pending_remove_error",
			"decision_id", decisionID, "pending_id", pendingID, "lot_id", lot.ID, "error", err.Error())
	}
	g.logger.Info("moderation_approve_ok",
		"decision_id", decisionID, "pending_id", pendingID, "lot_id", lot.ID, "owner_id", lot.OwnerID)

	g.notifyOwner(ctx, "moderation_notify_approved", lot.OwnerID, g.texts.Format("mod_approved_seller", lot.ID))
	return lot, nil
}

// Reject drops a pending submission with the same authz and
// idempotency rules as Approve.
func (g *Gate) Reject(ctx context.Context, actorID int64, pendingID int) (catalog.PendingSubmission, error) {
	decisionID := uuid.NewString()
	if actorID != g.adminID {
		g.logger.Warn("moderation_unauthorized", "decision_id", decisionID, "actor_id", actorID, "pending_id", pendingID)
		return catalog.PendingSubmission{}, ErrNotAuthorized
	}
	removed, err := g.store.RemovePending(ctx, pendingID)
	if err != nil {
		return catalog.PendingSubmission{}, err
	}
	g.logger.Info("moderation_reject_ok",
		"decision_id", decisionID, "pending_id", pendingID, "owner_id", removed.OwnerID)

	g.notifyOwner(ctx, "moderation_notify_rejected", removed.OwnerID, g.texts.Get("mod_rejected_seller"))
	return removed, nil
}

func (g *Gate) notifyOwner(ctx context.Context, name string, ownerID int64, text string) {
	if err := g.sender.SendMessage(ctx, ownerID, text); err != nil {
		g.logger.Warn(name+"_error", "owner_id", ownerID, "error", err.Error())
		retryutil.AsyncRetry(g.logger, name, g.retryDelay, g.retryTimeout, func(ctx context.Context) error {
			return g.sender.SendMessage(ctx, ownerID, text)
		})
	}
}

func (g *Gate) decisionKeyboard(pendingID int) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: g.texts.Get("btn_approve"), CallbackData: fmt.Sprintf("approve:%d", pendingID)},
				{Text: g.texts.Get("btn_reject"), CallbackData: fmt.Sprintf("reject:%d", pendingID)},
			},
		},
	}
}
