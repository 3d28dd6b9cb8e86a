package telegram

import "testing"

func TestEventFromUpdateText(t *testing.T) {
	t.Parallel()

	ev, ok := EventFromUpdate(Update{
		UpdateID: 1,
		Message: &Message{
			MessageID: 42,
			Chat:      &Chat{ID: 100, Type: "private"},
			From:      &User{ID: 7},
			Text:      "  hello  ",
		},
	})
	if !ok {
		t.Fatalf("EventFromUpdate() ok = false, want true")
	}
	if ev.Kind != EventText {
		t.Fatalf("EventFromUpdate() kind = %q, want %q", ev.Kind, EventText)
	}
	if ev.ChatID != 100 || ev.FromUserID != 7 || ev.MessageID != 42 {
		t.Fatalf("EventFromUpdate() ids = %+v", ev)
	}
	if ev.Text != "hello" {
		t.Fatalf("EventFromUpdate() text = %q, want %q", ev.Text, "hello")
	}
}

func TestEventFromUpdatePhotoPicksLargest(t *testing.T) {
	t.Parallel()

	ev, ok := EventFromUpdate(Update{
		Message: &Message{
			MessageID: 5,
			Chat:      &Chat{ID: 100},
			From:      &User{ID: 7},
			Photo: []PhotoSize{
				{FileID: "small", Width: 90},
				{FileID: "medium", Width: 320},
				{FileID: "large", Width: 1280},
			},
			MediaGroupID: "g1",
		},
	})
	if !ok {
		t.Fatalf("EventFromUpdate() ok = false, want true")
	}
	if ev.Kind != EventPhoto {
		t.Fatalf("EventFromUpdate() kind = %q, want %q", ev.Kind, EventPhoto)
	}
	if ev.PhotoRef != "large" {
		t.Fatalf("EventFromUpdate() photo ref = %q, want %q", ev.PhotoRef, "large")
	}
	if ev.MediaGroupID != "g1" {
		t.Fatalf("EventFromUpdate() media group = %q, want %q", ev.MediaGroupID, "g1")
	}
}

func TestEventFromUpdateCallback(t *testing.T) {
	t.Parallel()

	ev, ok := EventFromUpdate(Update{
		CallbackQuery: &CallbackQuery{
			ID:   "cb-1",
			From: &User{ID: 9},
			Data: " approve:3 ",
			Message: &Message{
				MessageID: 77,
				Chat:      &Chat{ID: 200},
			},
		},
	})
	if !ok {
		t.Fatalf("EventFromUpdate() ok = false, want true")
	}
	if ev.Kind != EventCallback {
		t.Fatalf("EventFromUpdate() kind = %q, want %q", ev.Kind, EventCallback)
	}
	if ev.CallbackData != "approve:3" {
		t.Fatalf("EventFromUpdate() data = %q, want %q", ev.CallbackData, "approve:3")
	}
	if ev.ChatID != 200 || ev.CallbackMessageID != 77 || ev.FromUserID != 9 {
		t.Fatalf("EventFromUpdate() ids = %+v", ev)
	}
}

func TestEventFromUpdateIgnored(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		u    Update
	}{
		{"empty", Update{}},
		{"no_chat", Update{Message: &Message{MessageID: 1}}},
		{"blank_text", Update{Message: &Message{MessageID: 1, Chat: &Chat{ID: 1}, Text: "   "}}},
		{"edited_only", Update{EditedMessage: &Message{MessageID: 1, Chat: &Chat{ID: 1}, Text: "x"}}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, ok := EventFromUpdate(tc.u); ok {
				t.Fatalf("EventFromUpdate(%s) ok = true, want false", tc.name)
			}
		})
	}
}
