// Package form drives the multi-step seller submission conversation:
// photos first, then one text field at a time, each with its own
// confirm loop, ending in a final review before the draft goes to
// moderation.
package form

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/meowtytyshka/vintagebot/catalog"
	"github.com/meowtytyshka/vintagebot/session"
	"github.com/meowtytyshka/vintagebot/telegram"
	"github.com/meowtytyshka/vintagebot/texts"
)

type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageKeyboard(ctx context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error
}

// Submitter hands a finalized draft to the moderation queue.
type Submitter interface {
	Submit(ctx context.Context, draft catalog.Draft) (catalog.PendingSubmission, error)
}

type EngineOptions struct {
	Logger    *slog.Logger
	Sessions  *session.Manager
	Sender    Sender
	Texts     *texts.Bundle
	Submitter Submitter
}

type Engine struct {
	logger    *slog.Logger
	sessions  *session.Manager
	sender    Sender
	texts     *texts.Bundle
	submitter Submitter
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("sessions manager is required")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if opts.Texts == nil {
		return nil, fmt.Errorf("texts bundle is required")
	}
	if opts.Submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		logger:    logger,
		sessions:  opts.Sessions,
		sender:    opts.Sender,
		texts:     opts.Texts,
		submitter: opts.Submitter,
	}, nil
}

// Owns reports whether the step belongs to the submission flow.
func Owns(step session.Step) bool {
	switch step {
	case session.StepPhotos, session.StepPhotosConfirm,
		session.StepTitle, session.StepTitleConfirm,
		session.StepEra, session.StepEraConfirm,
		session.StepCondition, session.StepConditionConfirm,
		session.StepSize, session.StepSizeConfirm,
		session.StepPrice, session.StepPriceConfirm,
		session.StepCity, session.StepCityConfirm,
		session.StepComment, session.StepFinalConfirm:
		return true
	default:
		return false
	}
}

// Start begins a fresh submission, replacing any in-flight
// conversation for the chat.
func (e *Engine) Start(ctx context.Context, chatID int64, ownerID int64) error {
	e.sessions.Put(chatID, session.State{
		Step:  session.StepPhotos,
		Draft: catalog.Draft{OwnerID: ownerID},
	})
	e.logger.Info("sell_start", "chat_id", chatID)
	return e.promptPhotos(ctx, chatID)
}

// HandlePhoto appends one photo reference. Album members arrive as
// separate updates sharing a media group id; each is appended in
// arrival order, so a burst is never split. Advancing waits for an
// explicit done signal.
func (e *Engine) HandlePhoto(ctx context.Context, chatID int64, photoRef string) error {
	state, ok := e.sessions.Get(chatID)
	if !ok || !Owns(state.Step) {
		return nil
	}
	if state.Step != session.StepPhotos {
		return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_text_expected"))
	}
	if len(state.Draft.Photos) >= catalog.MaxPhotos {
		return e.sender.SendMessage(ctx, chatID, e.texts.Format("sell_photo_limit", catalog.MaxPhotos))
	}
	state.Draft.Photos = append(state.Draft.Photos, photoRef)
	e.sessions.Put(chatID, state)
	return e.sender.SendMessage(ctx, chatID, e.texts.Format("sell_photo_added", len(state.Draft.Photos), catalog.MaxPhotos))
}

// HandleText consumes one text message for whichever entry step the
// conversation is in. Confirm steps and the photo step re-prompt in
// place without a transition.
func (e *Engine) HandleText(ctx context.Context, chatID int64, text string) error {
	state, ok := e.sessions.Get(chatID)
	if !ok || !Owns(state.Step) {
		return nil
	}

	switch state.Step {
	case session.StepPhotos:
		return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_photo_expected"))
	case session.StepTitle:
		return e.acceptField(ctx, chatID, state, text, func(d *catalog.Draft, v string) { d.Title = v },
			session.StepTitleConfirm, "sell_title_confirm", "sell_title_prompt")
	case session.StepEra:
		return e.acceptField(ctx, chatID, state, text, func(d *catalog.Draft, v string) { d.Era = v },
			session.StepEraConfirm, "sell_era_confirm", "sell_era_prompt")
	case session.StepCondition:
		return e.acceptField(ctx, chatID, state, text, func(d *catalog.Draft, v string) { d.Condition = v },
			session.StepConditionConfirm, "sell_condition_confirm", "sell_condition_prompt")
	case session.StepSize:
		return e.acceptField(ctx, chatID, state, text, func(d *catalog.Draft, v string) { d.Size = v },
			session.StepSizeConfirm, "sell_size_confirm", "sell_size_prompt")
	case session.StepPrice:
		price, err := catalog.NormalizePrice(text)
		if err != nil {
			return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_price_invalid"))
		}
		state.Draft.Price = price
		state.Step = session.StepPriceConfirm
		e.sessions.Put(chatID, state)
		return e.sender.SendMessageKeyboard(ctx, chatID, e.texts.Format("sell_price_confirm", price), confirmKeyboard(e.texts))
	case session.StepCity:
		return e.acceptField(ctx, chatID, state, text, func(d *catalog.Draft, v string) { d.City = v },
			session.StepCityConfirm, "sell_city_confirm", "sell_city_prompt")
	case session.StepComment:
		trimmed := trim(text)
		if trimmed == "" {
			return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_comment_prompt"))
		}
		state.Draft.Comment = trimmed
		state.Step = session.StepFinalConfirm
		e.sessions.Put(chatID, state)
		return e.promptFinal(ctx, chatID, state)
	default:
		// Confirm steps only react to buttons.
		return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_choice_expected"))
	}
}

// HandleAction consumes a decoded callback token: ok, edit or done.
func (e *Engine) HandleAction(ctx context.Context, chatID int64, action string) error {
	state, ok := e.sessions.Get(chatID)
	if !ok || !Owns(state.Step) {
		return nil
	}

	switch action {
	case "done":
		return e.handleDone(ctx, chatID, state)
	case "ok":
		return e.handleOK(ctx, chatID, state)
	case "edit":
		return e.handleEdit(ctx, chatID, state)
	default:
		return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_choice_expected"))
	}
}

func (e *Engine) handleDone(ctx context.Context, chatID int64, state session.State) error {
	switch state.Step {
	case session.StepPhotos:
		if len(state.Draft.Photos) == 0 {
			return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_photos_none"))
		}
		state.Step = session.StepPhotosConfirm
		e.sessions.Put(chatID, state)
		return e.sender.SendMessageKeyboard(ctx, chatID,
			e.texts.Format("sell_photos_confirm", len(state.Draft.Photos)), confirmKeyboard(e.texts))
	case session.StepComment:
		// Done skips the optional comment.
		state.Draft.Comment = ""
		state.Step = session.StepFinalConfirm
		e.sessions.Put(chatID, state)
		return e.promptFinal(ctx, chatID, state)
	default:
		return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_choice_expected"))
	}
}

func (e *Engine) handleOK(ctx context.Context, chatID int64, state session.State) error {
	switch state.Step {
	case session.StepPhotosConfirm:
		return e.advance(ctx, chatID, state, session.StepTitle, "sell_title_prompt")
	case session.StepTitleConfirm:
		return e.advance(ctx, chatID, state, session.StepEra, "sell_era_prompt")
	case session.StepEraConfirm:
		return e.advance(ctx, chatID, state, session.StepCondition, "sell_condition_prompt")
	case session.StepConditionConfirm:
		return e.advance(ctx, chatID, state, session.StepSize, "sell_size_prompt")
	case session.StepSizeConfirm:
		return e.advance(ctx, chatID, state, session.StepPrice, "sell_price_prompt")
	case session.StepPriceConfirm:
		return e.advance(ctx, chatID, state, session.StepCity, "sell_city_prompt")
	case session.StepCityConfirm:
		state.Step = session.StepComment
		e.sessions.Put(chatID, state)
		return e.sender.SendMessageKeyboard(ctx, chatID, e.texts.Get("sell_comment_prompt"), doneKeyboard(e.texts))
	case session.StepFinalConfirm:
		return e.finalize(ctx, chatID, state)
	default:
		return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_choice_expected"))
	}
}

func (e *Engine) handleEdit(ctx context.Context, chatID int64, state session.State) error {
	switch state.Step {
	case session.StepPhotosConfirm:
		// Re-entering the photo step starts the set over.
		state.Draft.Photos = nil
		state.Step = session.StepPhotos
		e.sessions.Put(chatID, state)
		return e.promptPhotos(ctx, chatID)
	case session.StepTitleConfirm:
		return e.advance(ctx, chatID, state, session.StepTitle, "sell_title_prompt")
	case session.StepEraConfirm:
		return e.advance(ctx, chatID, state, session.StepEra, "sell_era_prompt")
	case session.StepConditionConfirm:
		return e.advance(ctx, chatID, state, session.StepCondition, "sell_condition_prompt")
	case session.StepSizeConfirm:
		return e.advance(ctx, chatID, state, session.StepSize, "sell_size_prompt")
	case session.StepPriceConfirm:
		return e.advance(ctx, chatID, state, session.StepPrice, "sell_price_prompt")
	case session.StepCityConfirm:
		return e.advance(ctx, chatID, state, session.StepCity, "sell_city_prompt")
	case session.StepFinalConfirm:
		// Re-review from the first text field; everything entered so
		// far is preserved.
		return e.advance(ctx, chatID, state, session.StepTitle, "sell_title_prompt")
	default:
		return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_choice_expected"))
	}
}

func (e *Engine) finalize(ctx context.Context, chatID int64, state session.State) error {
	if err := state.Draft.Validate(); err != nil {
		e.logger.Warn("sell_finalize_invalid", "chat_id", chatID, "error", err.Error())
		// Broken draft, restart the review from the title.
		return e.advance(ctx, chatID, state, session.StepTitle, "sell_title_prompt")
	}
	submitted, err := e.submitter.Submit(ctx, state.Draft)
	if err != nil {
		e.logger.Error("sell_submit_error", "chat_id", chatID, "error", err.Error())
		return err
	}
	e.sessions.Clear(chatID)
	e.logger.Info("sell_submitted", "chat_id", chatID, "pending_id", submitted.PendingID)
	return e.sender.SendMessage(ctx, chatID, e.texts.Get("sell_submitted"))
}

func (e *Engine) acceptField(ctx context.Context, chatID int64, state session.State, text string,
	assign func(*catalog.Draft, string), confirmStep session.Step, confirmKey string, promptKey string) error {
	trimmed := trim(text)
	if trimmed == "" {
		return e.sender.SendMessage(ctx, chatID, e.texts.Get(promptKey))
	}
	assign(&state.Draft, trimmed)
	state.Step = confirmStep
	e.sessions.Put(chatID, state)
	return e.sender.SendMessageKeyboard(ctx, chatID, e.texts.Format(confirmKey, trimmed), confirmKeyboard(e.texts))
}

func (e *Engine) advance(ctx context.Context, chatID int64, state session.State, step session.Step, promptKey string) error {
	state.Step = step
	e.sessions.Put(chatID, state)
	return e.sender.SendMessage(ctx, chatID, e.texts.Get(promptKey))
}

func (e *Engine) promptPhotos(ctx context.Context, chatID int64) error {
	return e.sender.SendMessageKeyboard(ctx, chatID,
		e.texts.Format("sell_photos_prompt", catalog.MaxPhotos), doneKeyboard(e.texts))
}

func (e *Engine) promptFinal(ctx context.Context, chatID int64, state session.State) error {
	summary := e.texts.LotSummary(state.Draft)
	return e.sender.SendMessageKeyboard(ctx, chatID,
		e.texts.Format("sell_final_summary", summary), confirmKeyboard(e.texts))
}

func confirmKeyboard(bundle *texts.Bundle) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: bundle.Get("btn_ok"), CallbackData: "ok"},
				{Text: bundle.Get("btn_edit"), CallbackData: "edit"},
			},
			{
				{Text: bundle.Get("btn_cancel"), CallbackData: "cancel"},
			},
		},
	}
}

func doneKeyboard(bundle *texts.Bundle) *telegram.InlineKeyboardMarkup {
	return &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{
				{Text: bundle.Get("btn_done"), CallbackData: "done"},
				{Text: bundle.Get("btn_cancel"), CallbackData: "cancel"},
			},
		},
	}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
