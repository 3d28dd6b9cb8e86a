package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		token:   token,
	}, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("telegram %s: encode: %w", method, err)
		}
		body = bytes.NewReader(b)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	httpMethod := http.MethodPost
	if payload == nil {
		httpMethod = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, httpMethod, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("telegram %s: decode: %w", method, err)
	}
	if !envelope.OK {
		desc := strings.TrimSpace(envelope.Description)
		if desc == "" {
			desc = "ok=false"
		}
		return fmt.Errorf("telegram %s: %s", method, desc)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	payload := map[string]any{"timeout": secs}
	if offset > 0 {
		payload["offset"] = offset
	}
	var updates []Update
	if err := c.call(reqCtx, "getUpdates", payload, &updates); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return updates, next, nil
}

type sendMessageRequest struct {
	ChatID                int64                 `json:"chat_id"`
	Text                  string                `json:"text"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	return c.SendMessageKeyboard(ctx, chatID, text, nil)
}

func (c *Client) SendMessageKeyboard(ctx context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) error {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}
	return c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	}, nil)
}

func (c *Client) SendMessageChunked(ctx context.Context, chatID int64, text string) error {
	const max = 3500
	text = strings.TrimSpace(text)
	if text == "" {
		return c.SendMessage(ctx, chatID, "(empty)")
	}
	for len(text) > 0 {
		chunk := text
		if len(chunk) > max {
			chunk = chunk[:max]
		}
		if err := c.SendMessage(ctx, chatID, chunk); err != nil {
			return err
		}
		text = strings.TrimSpace(text[len(chunk):])
	}
	return nil
}

type sendMediaGroupRequest struct {
	ChatID int64             `json:"chat_id"`
	Media  []InputMediaPhoto `json:"media"`
}

// SendMediaGroup posts an album of photo file ids with the caption on
// the first member. A single photo falls back to sendPhoto so the
// caption still renders.
func (c *Client) SendMediaGroup(ctx context.Context, chatID int64, photoRefs []string, caption string) error {
	if len(photoRefs) == 0 {
		return fmt.Errorf("telegram sendMediaGroup: at least one photo is required")
	}
	if len(photoRefs) == 1 {
		return c.call(ctx, "sendPhoto", map[string]any{
			"chat_id": chatID,
			"photo":   photoRefs[0],
			"caption": caption,
		}, nil)
	}
	media := make([]InputMediaPhoto, 0, len(photoRefs))
	for i, ref := range photoRefs {
		m := InputMediaPhoto{Type: "photo", Media: ref}
		if i == 0 {
			m.Caption = caption
		}
		media = append(media, m)
	}
	return c.call(ctx, "sendMediaGroup", sendMediaGroupRequest{ChatID: chatID, Media: media}, nil)
}

func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int64, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		text = "(empty)"
	}
	return c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	callbackID = strings.TrimSpace(callbackID)
	if callbackID == "" {
		return fmt.Errorf("telegram answerCallbackQuery: callback id is required")
	}
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
	}, nil)
}

func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	action = strings.TrimSpace(action)
	if action == "" {
		action = "typing"
	}
	return c.call(ctx, "sendChatAction", map[string]any{
		"chat_id": chatID,
		"action":  action,
	}, nil)
}
