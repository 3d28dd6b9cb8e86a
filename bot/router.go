// Package bot decodes incoming Telegram updates at the boundary and
// dispatches them to the conversation engines. Slash commands and
// callback tokens are the only inputs it interprets; everything else is
// routed by the chat's current session step.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/meowtytyshka/vintagebot/browse"
	"github.com/meowtytyshka/vintagebot/catalog"
	"github.com/meowtytyshka/vintagebot/form"
	"github.com/meowtytyshka/vintagebot/inquiry"
	"github.com/meowtytyshka/vintagebot/moderation"
	"github.com/meowtytyshka/vintagebot/session"
	"github.com/meowtytyshka/vintagebot/telegram"
	"github.com/meowtytyshka/vintagebot/texts"
)

const defaultPollTimeout = 50 * time.Second

// Client is the slice of the Telegram API the router itself needs. The
// engines carry their own narrower sender interfaces.
type Client interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, int64, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageKeyboard(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
	SendMessageChunked(ctx context.Context, chatID int64, text string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
	AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error
	EditMessageText(ctx context.Context, chatID int64, messageID int64, text string) error
}

type RouterOptions struct {
	Logger   *slog.Logger
	Client   Client
	Sessions *session.Manager
	Texts    *texts.Bundle
	Form     *form.Engine
	Gate     *moderation.Gate
	Browser  *browse.Browser
	Inquiry  *inquiry.Engine
	AdminID  int64

	PollTimeout time.Duration
}

type Router struct {
	logger      *slog.Logger
	client      Client
	sessions    *session.Manager
	texts       *texts.Bundle
	form        *form.Engine
	gate        *moderation.Gate
	browser     *browse.Browser
	inquiry     *inquiry.Engine
	adminID     int64
	pollTimeout time.Duration
}

func NewRouter(opts RouterOptions) (*Router, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("sessions manager is required")
	}
	if opts.Texts == nil {
		return nil, fmt.Errorf("texts bundle is required")
	}
	if opts.Form == nil {
		return nil, fmt.Errorf("form engine is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("moderation gate is required")
	}
	if opts.Browser == nil {
		return nil, fmt.Errorf("catalog browser is required")
	}
	if opts.Inquiry == nil {
		return nil, fmt.Errorf("inquiry engine is required")
	}
	if opts.AdminID == 0 {
		return nil, fmt.Errorf("admin id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pollTimeout := opts.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Router{
		logger:      logger,
		client:      opts.Client,
		sessions:    opts.Sessions,
		texts:       opts.Texts,
		form:        opts.Form,
		gate:        opts.Gate,
		browser:     opts.Browser,
		inquiry:     opts.Inquiry,
		adminID:     opts.AdminID,
		pollTimeout: pollTimeout,
	}, nil
}

// Run long-polls for updates until the context is canceled. Updates are
// handled one at a time in arrival order; a handler error is logged and
// the loop moves on.
func (r *Router) Run(ctx context.Context) error {
	var offset int64
	for {
		updates, next, err := r.client.GetUpdates(ctx, offset, r.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				r.logger.Info("bot_stop")
				return nil
			}
			r.logger.Warn("bot_poll_error", "error", err.Error())
			select {
			case <-ctx.Done():
				r.logger.Info("bot_stop")
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		offset = next
		for _, u := range updates {
			event, ok := telegram.EventFromUpdate(u)
			if !ok {
				continue
			}
			if err := r.HandleEvent(ctx, event); err != nil {
				r.logger.Error("bot_handle_error",
					"chat_id", event.ChatID, "update_id", u.UpdateID, "error", err.Error())
			}
		}
	}
}

// HandleEvent dispatches one decoded event.
func (r *Router) HandleEvent(ctx context.Context, event telegram.Event) error {
	switch event.Kind {
	case telegram.EventCallback:
		return r.handleCallback(ctx, event)
	case telegram.EventPhoto:
		return r.handlePhoto(ctx, event)
	case telegram.EventText:
		return r.handleText(ctx, event)
	default:
		return nil
	}
}

func (r *Router) handleText(ctx context.Context, event telegram.Event) error {
	if strings.HasPrefix(event.Text, "/") {
		return r.handleCommand(ctx, event)
	}

	state, ok := r.sessions.Get(event.ChatID)
	switch {
	case ok && form.Owns(state.Step):
		return r.form.HandleText(ctx, event.ChatID, event.Text)
	case ok && state.Step == session.StepBuyContact:
		return r.inquiry.HandleContact(ctx, event.ChatID, event.FromUserID, event.Text)
	case ok && state.Step == session.StepSupportText:
		return r.handleSupportText(ctx, event)
	default:
		return r.client.SendMessage(ctx, event.ChatID, r.texts.Get("unknown_command"))
	}
}

func (r *Router) handlePhoto(ctx context.Context, event telegram.Event) error {
	state, ok := r.sessions.Get(event.ChatID)
	if !ok || !form.Owns(state.Step) {
		return nil
	}
	return r.form.HandlePhoto(ctx, event.ChatID, event.PhotoRef)
}

func (r *Router) handleCommand(ctx context.Context, event telegram.Event) error {
	cmd, rest := splitCommand(event.Text)
	switch normalizeSlashCommand(cmd) {
	case "/start":
		r.sessions.Clear(event.ChatID)
		return r.sendMenu(ctx, event.ChatID)
	case "/help":
		return r.client.SendMessage(ctx, event.ChatID, r.texts.Get("help"))
	case "/sell":
		return r.form.Start(ctx, event.ChatID, event.FromUserID)
	case "/catalog":
		return r.sendCatalogPage(ctx, event.ChatID, 0)
	case "/cancel":
		return r.cancel(ctx, event.ChatID)
	case "/del":
		return r.handleDelete(ctx, event, rest)
	case "/id":
		return r.client.SendMessage(ctx, event.ChatID, r.texts.Format("id_reply", event.ChatID))
	default:
		return r.client.SendMessage(ctx, event.ChatID, r.texts.Get("unknown_command"))
	}
}

func (r *Router) handleDelete(ctx context.Context, event telegram.Event, rest string) error {
	lotID, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || lotID <= 0 {
		return r.client.SendMessage(ctx, event.ChatID, r.texts.Get("del_usage"))
	}
	removed, err := r.browser.Delete(ctx, event.FromUserID, lotID)
	switch {
	case errors.Is(err, browse.ErrNotAuthorized):
		return r.client.SendMessage(ctx, event.ChatID, r.texts.Get("not_authorized"))
	case errors.Is(err, catalog.ErrLotNotFound):
		return r.client.SendMessage(ctx, event.ChatID, r.texts.Format("del_not_found", lotID))
	case err != nil:
		return err
	}
	return r.client.SendMessage(ctx, event.ChatID, r.texts.Format("del_ok", removed.ID))
}

func (r *Router) handleCallback(ctx context.Context, event telegram.Event) error {
	if err := r.client.AnswerCallbackQuery(ctx, event.CallbackID); err != nil {
		r.logger.Warn("bot_callback_answer_error", "chat_id", event.ChatID, "error", err.Error())
	}

	action, arg := parseToken(event.CallbackData)
	switch action {
	case "sell":
		return r.form.Start(ctx, event.ChatID, event.FromUserID)
	case "catalog":
		return r.sendCatalogPage(ctx, event.ChatID, 0)
	case "support":
		r.sessions.Put(event.ChatID, session.State{Step: session.StepSupportText})
		return r.client.SendMessage(ctx, event.ChatID, r.texts.Get("support_prompt"))
	case "cancel":
		return r.cancel(ctx, event.ChatID)
	case "ok", "edit", "done":
		return r.form.HandleAction(ctx, event.ChatID, action)
	case "buy":
		lotID, err := strconv.Atoi(arg)
		if err != nil || lotID <= 0 {
			r.logger.Warn("bot_callback_bad_token", "chat_id", event.ChatID, "data", event.CallbackData)
			return nil
		}
		return r.inquiry.Start(ctx, event.ChatID, lotID)
	case "more":
		offset, err := strconv.Atoi(arg)
		if err != nil || offset < 0 {
			r.logger.Warn("bot_callback_bad_token", "chat_id", event.ChatID, "data", event.CallbackData)
			return nil
		}
		return r.sendCatalogPage(ctx, event.ChatID, offset)
	case "approve", "reject":
		return r.handleDecision(ctx, event, action, arg)
	default:
		r.logger.Warn("bot_callback_bad_token", "chat_id", event.ChatID, "data", event.CallbackData)
		return nil
	}
}

func (r *Router) handleDecision(ctx context.Context, event telegram.Event, action string, arg string) error {
	pendingID, err := strconv.Atoi(arg)
	if err != nil || pendingID <= 0 {
		r.logger.Warn("bot_callback_bad_token", "chat_id", event.ChatID, "data", event.CallbackData)
		return nil
	}

	var feedback string
	switch action {
	case "approve":
		lot, err := r.gate.Approve(ctx, event.FromUserID, pendingID)
		switch {
		case errors.Is(err, moderation.ErrNotAuthorized):
			return r.client.SendMessage(ctx, event.ChatID, r.texts.Get("not_authorized"))
		case errors.Is(err, moderation.ErrPendingNotFound):
			return r.client.SendMessage(ctx, event.ChatID, r.texts.Format("mod_already_handled", pendingID))
		case err != nil:
			return err
		}
		feedback = r.texts.Format("mod_approved_admin", pendingID, lot.ID)
	case "reject":
		_, err := r.gate.Reject(ctx, event.FromUserID, pendingID)
		switch {
		case errors.Is(err, moderation.ErrNotAuthorized):
			return r.client.SendMessage(ctx, event.ChatID, r.texts.Get("not_authorized"))
		case errors.Is(err, moderation.ErrPendingNotFound):
			return r.client.SendMessage(ctx, event.ChatID, r.texts.Format("mod_already_handled", pendingID))
		case err != nil:
			return err
		}
		feedback = r.texts.Format("mod_rejected_admin", pendingID)
	}

	// Replace the decision buttons so the admin sees the outcome in
	// place; failure here is cosmetic.
	if event.CallbackMessageID != 0 {
		if err := r.client.EditMessageText(ctx, event.ChatID, event.CallbackMessageID, feedback); err != nil {
			r.logger.Warn("bot_decision_edit_error", "chat_id", event.ChatID, "error", err.Error())
			return r.client.SendMessage(ctx, event.ChatID, feedback)
		}
		return nil
	}
	return r.client.SendMessage(ctx, event.ChatID, feedback)
}

// sendCatalogPage shows an upload indicator while the photo albums go
// out; the action is cosmetic so its error is ignored.
func (r *Router) sendCatalogPage(ctx context.Context, chatID int64, offset int) error {
	_ = r.client.SendChatAction(ctx, chatID, "upload_photo")
	return r.browser.SendCatalog(ctx, chatID, offset)
}

func (r *Router) handleSupportText(ctx context.Context, event telegram.Event) error {
	note := r.texts.Format("support_admin_note", event.FromUserID, event.Text)
	if err := r.client.SendMessageChunked(ctx, r.adminID, note); err != nil {
		// The session stays open so the message can be resent.
		r.logger.Warn("bot_support_relay_error", "chat_id", event.ChatID, "error", err.Error())
		return err
	}
	r.sessions.Clear(event.ChatID)
	r.logger.Info("support_relayed", "chat_id", event.ChatID)
	return r.client.SendMessage(ctx, event.ChatID, r.texts.Get("support_sent"))
}

func (r *Router) cancel(ctx context.Context, chatID int64) error {
	if _, ok := r.sessions.Get(chatID); !ok {
		return r.client.SendMessage(ctx, chatID, r.texts.Get("nothing_to_cancel"))
	}
	r.sessions.Clear(chatID)
	return r.client.SendMessage(ctx, chatID, r.texts.Get("cancelled"))
}

func (r *Router) sendMenu(ctx context.Context, chatID int64) error {
	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: r.texts.Get("btn_sell"), CallbackData: "sell"},
				{Text: r.texts.Get("btn_catalog"), CallbackData: "catalog"},
			},
			{
				{Text: r.texts.Get("btn_support"), CallbackData: "support"},
			},
		},
	}
	return r.client.SendMessageKeyboard(ctx, chatID, r.texts.Get("start_greeting"), markup)
}
