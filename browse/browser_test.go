package browse

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
	ChatID  int64
	Text    string
	Markup  *telegram.InlineKeyboardMarkup
	IsAlbum bool
}

type recordingSender struct {
	sent []sentMessage
}

func (r *recordingSender) SendMessage(_ context.Context, chatID int64, text string) error {
	r.sent = append(r.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (r *recordingSender) SendMessageKeyboard(_ context.Context, chatID int64, text string, markup *telegram.InlineKeyboardMarkup) error {
	r.sent = append(r.sent, sentMessage{ChatID: chatID, Text: text, Markup: markup})
	return nil
}

func (r *recordingSender) SendMediaGroup(_ context.Context, chatID int64, _ []string, caption string) error {
	r.sent = append(r.sent, sentMessage{ChatID: chatID, Text: caption, IsAlbum: true})
	return nil
}

func validDraft(title string) catalog.Draft {
	return catalog.Draft{
		OwnerID:   7,
		Photos:    []string{"photo-1"},
		Title:     title,
		Era:       "80s",
		Condition: "good",
		Size:      "M",
		City:      "Riga",
		Price:     "3500",
	}
}

func newTestBrowser(t *testing.T, pageSize int) (*Browser, *catalog.Store, *recordingSender) {
	t.Helper()
	store, err := catalog.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("catalog.NewStore() error = %v", err)
	}
	bundle, err := texts.Defaults()
	if err != nil {
		t.Fatalf("texts.Defaults() error = %v", err)
	}
	sender := &recordingSender{}
	browser, err := NewBrowser(BrowserOptions{
		Store:    store,
		Sender:   sender,
		Texts:    bundle,
		AdminID:  adminID,
		PageSize: pageSize,
	})
	if err != nil {
		t.Fatalf("NewBrowser() error = %v", err)
	}
	return browser, store, sender
}

func TestSendCatalogEmpty(t *testing.T) {
	t.Parallel()

	browser, _, sender := newTestBrowser(t, 0)
	if err := browser.SendCatalog(context.Background(), 100, 0); err != nil {
		t.Fatalf("SendCatalog() error = %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1 empty notice", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].Text, "empty") {
		t.Fatalf("message = %q, want empty notice", sender.sent[0].Text)
	}
}

func TestSendCatalogNewestFirstWithBuyButtons(t *testing.T) {
	t.Parallel()

	browser, store, sender := newTestBrowser(t, 0)
	ctx := context.Background()
	for _, title := range []string{"first", "second"} {
		if _, err := store.AppendLot(ctx, validDraft(title)); err != nil {
			t.Fatalf("AppendLot() error = %v", err)
		}
	}

	if err := browser.SendCatalog(ctx, 100, 0); err != nil {
		t.Fatalf("SendCatalog() error = %v", err)
	}
	// Two lots, two messages each, no pagination button.
	if len(sender.sent) != 4 {
		t.Fatalf("sent = %d, want 4", len(sender.sent))
	}
	if !sender.sent[0].IsAlbum || !strings.Contains(sender.sent[0].Text, "second") {
		t.Fatalf("first album = %+v, want newest lot first", sender.sent[0])
	}
	if sender.sent[1].Markup == nil || sender.sent[1].Markup.InlineKeyboard[0][0].CallbackData != "buy:2" {
		t.Fatalf("buy button = %+v, want buy:2", sender.sent[1].Markup)
	}
	if sender.sent[3].Markup.InlineKeyboard[0][0].CallbackData != "buy:1" {
		t.Fatalf("second buy button = %+v, want buy:1", sender.sent[3].Markup)
	}
}

func TestSendCatalogPagination(t *testing.T) {
	t.Parallel()

	browser, store, sender := newTestBrowser(t, 2)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := store.AppendLot(ctx, validDraft(fmt.Sprintf("lot-%d", i))); err != nil {
			t.Fatalf("AppendLot() error = %v", err)
		}
	}

	if err := browser.SendCatalog(ctx, 100, 0); err != nil {
		t.Fatalf("SendCatalog() error = %v", err)
	}
	last := sender.sent[len(sender.sent)-1]
	if last.Markup == nil || last.Markup.InlineKeyboard[0][0].CallbackData != "more:2" {
		t.Fatalf("pagination button = %+v, want more:2", last.Markup)
	}

	// Last page carries no pagination button.
	sender.sent = nil
	if err := browser.SendCatalog(ctx, 100, 4); err != nil {
		t.Fatalf("SendCatalog() error = %v", err)
	}
	for _, m := range sender.sent {
		if m.Markup != nil && strings.HasPrefix(m.Markup.InlineKeyboard[0][0].CallbackData, "more:") {
			t.Fatalf("unexpected pagination button on final page: %+v", m)
		}
	}

	// Offset past the end reads as an empty catalog.
	sender.sent = nil
	if err := browser.SendCatalog(ctx, 100, 50); err != nil {
		t.Fatalf("SendCatalog() error = %v", err)
	}
	if len(sender.sent) != 1 || !strings.Contains(sender.sent[0].Text, "empty") {
		t.Fatalf("past-end page = %+v, want empty notice", sender.sent)
	}
}

func TestDeleteAdminOnly(t *testing.T) {
	t.Parallel()

	browser, store, sender := newTestBrowser(t, 0)
	ctx := context.Background()
	lot, err := store.AppendLot(ctx, validDraft("coat"))
	if err != nil {
		t.Fatalf("AppendLot() error = %v", err)
	}

	if _, err := browser.Delete(ctx, 999, lot.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("Delete() error = %v, want ErrNotAuthorized", err)
	}
	if _, err := store.Lot(ctx, lot.ID); err != nil {
		t.Fatalf("Lot() error = %v, want untouched after denied delete", err)
	}

	removed, err := browser.Delete(ctx, adminID, lot.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if removed.ID != lot.ID {
		t.Fatalf("Delete() id = %d, want %d", removed.ID, lot.ID)
	}
	if _, err := store.Lot(ctx, lot.ID); !errors.Is(err, catalog.ErrLotNotFound) {
		t.Fatalf("Lot() error = %v, want ErrLotNotFound", err)
	}
	if _, err := browser.Delete(ctx, adminID, lot.ID); !errors.Is(err, catalog.ErrLotNotFound) {
		t.Fatalf("Delete() second call error = %v, want ErrLotNotFound", err)
	}

	// Owner heard about the removal.
	found := false
	for _, m := range sender.sent {
		if m.ChatID == 7 && strings.Contains(m.Text, "removed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("owner removal notice missing: %+v", sender.sent)
	}
}
