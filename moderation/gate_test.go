package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/meowtytyshka/vintagebot/catalog"
	"github.com/meowtytyshka/vintagebot/telegram"
	"github.com/meowtytyshka/vintagebot/texts"
)

const adminID = int64(1)

type sentMessage struct {
	ChatID int64
	Text   string
	Markup *telegram.InlineKeyboardMarkup
	Photos []string
}

type recordingSender struct {
	sent    []sentMessage
	failFor map[int64]bool
}

func (r *recordingSender) SendMessage(_ context.Context, chatID int64, text string) error {
	if r.failFor[chatID] {
		return fmt.Errorf("send failed")
	}
	r.sent = append(r.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (r *recordingSender) SendMessageKeyboard(_ context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error {
	if r.failFor[chatID] {
		return fmt.Errorf("send failed")
	}
	r.sent = append(r.sent, sentMessage{ChatID: chatID, Text: text, Markup: markup})
	return nil
}

func (r *recordingSender) SendMediaGroup(_ context.Context, chatID int64, photoRefs []string, caption string) error {
	if r.failFor[chatID] {
		return fmt.Errorf("send failed")
	}
	r.sent = append(r.sent, sentMessage{ChatID: chatID, Text: caption, Photos: photoRefs})
	return nil
}

func (r *recordingSender) toChat(chatID int64) []sentMessage {
	var out []sentMessage
	for _, m := range r.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func validDraft() catalog.Draft {
	return catalog.Draft{
		OwnerID:   7,
		Photos:    []string{"photo-1", "photo-2"},
		Title:     "wool coat",
		Era:       "80s",
		Condition: "good",
		Size:      "M",
		City:      "Riga",
		Price:     "3500",
	}
}

func newTestGate(t *testing.T) (*Gate, *catalog.Store, *recordingSender) {
	t.Helper()
	store, err := catalog.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("catalog.NewStore() error = %v", err)
	}
	bundle, err := texts.Defaults()
	if err != nil {
		t.Fatalf("texts.Defaults() error = %v", err)
	}
	sender := &recordingSender{failFor: map[int64]bool{}}
	gate, err := NewGate(GateOptions{
		Store:   store,
		Sender:  sender,
		Texts:   bundle,
		AdminID: adminID,
	})
	if err != nil {
		t.Fatalf("NewGate() error = %v", err)
	}
	return gate, store, sender
}

func TestSubmitQueuesAndNotifiesAdmin(t *testing.T) {
	t.Parallel()

	gate, store, sender := newTestGate(t)
	ctx := context.Background()

	submitted, err := gate.Submit(ctx, validDraft())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if submitted.PendingID != 1 {
		t.Fatalf("Submit() pending id = %d, want 1", submitted.PendingID)
	}

	pending, err := store.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("Pending() len = %d, want 1", len(pending))
	}

	adminMsgs := sender.toChat(adminID)
	if len(adminMsgs) != 2 {
		t.Fatalf("admin messages = %d, want media group + decision hint", len(adminMsgs))
	}
	if len(adminMsgs[0].Photos) != 2 {
		t.Fatalf("media group photos = %d, want 2", len(adminMsgs[0].Photos))
	}
	markup := adminMsgs[1].Markup
	if markup == nil || len(markup.InlineKeyboard) == 0 {
		t.Fatalf("decision hint has no keyboard")
	}
	row := markup.InlineKeyboard[0]
	if row[0].CallbackData != "approve:1" || row[1].CallbackData != "reject:1" {
		t.Fatalf("decision tokens = %q %q", row[0].CallbackData, row[1].CallbackData)
	}
}

func TestSubmitNotifyFailureStillQueues(t *testing.T) {
	t.Parallel()

	gate, store, sender := newTestGate(t)
	sender.failFor[adminID] = true

	submitted, err := gate.Submit(context.Background(), validDraft())
	if err != nil {
		t.Fatalf("Submit() error = %v, notification failure must not abort", err)
	}
	pending, err := store.PendingByID(context.Background(), submitted.PendingID)
	if err != nil {
		t.Fatalf("PendingByID() error = %v", err)
	}
	if pending.PendingID != submitted.PendingID {
		t.Fatalf("pending id = %d, want %d", pending.PendingID, submitted.PendingID)
	}
}

func TestApprovePublishesThenRemovesPending(t *testing.T) {
	t.Parallel()

	gate, store, sender := newTestGate(t)
	ctx := context.Background()
	submitted, err := gate.Submit(ctx, validDraft())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	lot, err := gate.Approve(ctx, adminID, submitted.PendingID)
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if lot.ID != 1 {
		t.Fatalf("Approve() lot id = %d, want 1", lot.ID)
	}

	if _, err := store.Lot(ctx, lot.ID); err != nil {
		t.Fatalf("Lot() error = %v, want published", err)
	}
	if _, err := store.PendingByID(ctx, submitted.PendingID); !errors.Is(err, catalog.ErrPendingNotFound) {
		t.Fatalf("PendingByID() error = %v, want removed", err)
	}

	ownerMsgs := sender.toChat(7)
	if len(ownerMsgs) == 0 || !strings.Contains(ownerMsgs[len(ownerMsgs)-1].Text, "№1") {
		t.Fatalf("owner notification missing lot id: %+v", ownerMsgs)
	}
}

func TestApproveIdempotent(t *testing.T) {
	t.Parallel()

	gate, store, _ := newTestGate(t)
	ctx := context.Background()
	submitted, err := gate.Submit(ctx, validDraft())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if _, err := gate.Approve(ctx, adminID, submitted.PendingID); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if _, err := gate.Approve(ctx, adminID, submitted.PendingID); !errors.Is(err, ErrPendingNotFound) {
		t.Fatalf("Approve() second call error = %v, want ErrPendingNotFound", err)
	}

	lots, err := store.Lots(ctx)
	if err != nil {
		t.Fatalf("Lots() error = %v", err)
	}
	if len(lots) != 1 {
		t.Fatalf("Lots() len = %d, want exactly 1 after double approve", len(lots))
	}
}

func TestRejectRemovesWithoutPublishing(t *testing.T) {
	t.Parallel()

	gate, store, sender := newTestGate(t)
	ctx := context.Background()
	submitted, err := gate.Submit(ctx, validDraft())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	removed, err := gate.Reject(ctx, adminID, submitted.PendingID)
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if removed.PendingID != submitted.PendingID {
		t.Fatalf("Reject() id = %d, want %d", removed.PendingID, submitted.PendingID)
	}
	lots, err := store.Lots(ctx)
	if err != nil {
		t.Fatalf("Lots() error = %v", err)
	}
	if len(lots) != 0 {
		t.Fatalf("Lots() len = %d, want 0 after reject", len(lots))
	}
	if _, err := gate.Reject(ctx, adminID, submitted.PendingID); !errors.Is(err, ErrPendingNotFound) {
		t.Fatalf("Reject() second call error = %v, want ErrPendingNotFound", err)
	}
	if len(sender.toChat(7)) == 0 {
		t.Fatalf("owner rejection notice missing")
	}
}

func TestDecisionsRequireAdmin(t *testing.T) {
	t.Parallel()

	gate, store, _ := newTestGate(t)
	ctx := context.Background()
	submitted, err := gate.Submit(ctx, validDraft())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if _, err := gate.Approve(ctx, 999, submitted.PendingID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Approve() error = %v, want ErrNotAuthorized", err)
	}
	if _, err := gate.Reject(ctx, 999, submitted.PendingID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Reject() error = %v, want ErrNotAuthorized", err)
	}

	// No mutation happened.
	if _, err := store.PendingByID(ctx, submitted.PendingID); err != nil {
		t.Fatalf("PendingByID() error = %v, want still queued", err)
	}
	lots, err := store.Lots(ctx)
	if err != nil {
		t.Fatalf("Lots() error = %v", err)
	}
	if len(lots) != 0 {
		t.Fatalf("Lots() len = %d, want 0", len(lots))
	}
}
