package telegram

import "strings"

type EventKind string

const (
	EventText     EventKind = "text"
	EventPhoto    EventKind = "photo"
	EventCallback EventKind = "callback"
)

// Event is the normalized inbound shape handed to the router. One
// update produces at most one event; service updates (member joins,
// edits, channel posts) produce none.
type Event struct {
	Kind       EventKind
	ChatID     int64
	FromUserID int64
	MessageID  int64

	// Text events.
	Text string

	// Photo events. PhotoRef is the file id of the largest rendition;
	// MediaGroupID groups album members sent as one burst.
	PhotoRef     string
	MediaGroupID string

	// Callback events.
	CallbackID        string
	CallbackData      string
	CallbackMessageID int64
}

// EventFromUpdate normalizes one update. The boolean reports whether
// the update carried anything the storefront reacts to.
func EventFromUpdate(u Update) (Event, bool) {
	if cb := u.CallbackQuery; cb != nil {
		if cb.From == nil {
			return Event{}, false
		}
		ev := Event{
			Kind:         EventCallback,
			FromUserID:   cb.From.ID,
			CallbackID:   cb.ID,
			CallbackData: strings.TrimSpace(cb.Data),
		}
		if cb.Message != nil {
			ev.CallbackMessageID = cb.Message.MessageID
			if cb.Message.Chat != nil {
				ev.ChatID = cb.Message.Chat.ID
			}
		}
		if ev.ChatID == 0 {
			// Callbacks from inline-mode messages carry no chat; reply
			// to the user directly.
			ev.ChatID = cb.From.ID
		}
		return ev, true
	}

	msg := u.Message
	if msg == nil || msg.Chat == nil {
		return Event{}, false
	}
	ev := Event{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
	}
	if msg.From != nil {
		ev.FromUserID = msg.From.ID
	}

	if len(msg.Photo) > 0 {
		ev.Kind = EventPhoto
		ev.PhotoRef = msg.Photo[len(msg.Photo)-1].FileID
		ev.MediaGroupID = msg.MediaGroupID
		ev.Text = strings.TrimSpace(msg.Caption)
		return ev, true
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return Event{}, false
	}
	ev.Kind = EventText
	ev.Text = text
	return ev, true
}
