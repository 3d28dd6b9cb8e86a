package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/meowtytyshka/vintagebot/catalog"
)

// Step names the position of a conversation inside one of the flows.
// The zero value means no conversation is in progress.
type Step string

const (
	StepIdle Step = ""

	StepPhotos           Step = "photos"
	StepPhotosConfirm    Step = "photos_confirm"
	StepTitle            Step = "title"
	StepTitleConfirm     Step = "title_confirm"
	StepEra              Step = "era"
	StepEraConfirm       Step = "era_confirm"
	StepCondition        Step = "condition"
	StepConditionConfirm Step = "condition_confirm"
	StepSize             Step = "size"
	StepSizeConfirm      Step = "size_confirm"
	StepPrice            Step = "price"
	StepPriceConfirm     Step = "price_confirm"
	StepCity             Step = "city"
	StepCityConfirm      Step = "city_confirm"
	StepComment          Step = "comment"
	StepFinalConfirm     Step = "final_confirm"

	StepBuyContact  Step = "buy_contact"
	StepSupportText Step = "support_text"
)

// State is the volatile per-chat conversation scratchpad. It lives in
// memory only; a restart drops in-flight conversations.
type State struct {
	Step      Step
	Draft     catalog.Draft
	LotID     int
	UpdatedAt time.Time
}

const defaultTTL = 30 * time.Minute

// Manager owns the chat-id to state map. All access goes through its
// methods; callers receive value copies, never shared pointers.
type Manager struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	states map[int64]State
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Manager{
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		states: make(map[int64]State),
	}
}

func (m *Manager) Get(chatID int64) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[chatID]
	if !ok {
		return State{}, false
	}
	if m.expiredLocked(state, m.now()) {
		delete(m.states, chatID)
		return State{}, false
	}
	return state, true
}

func (m *Manager) Put(chatID int64, state State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.UpdatedAt = m.now()
	m.states[chatID] = state
}

func (m *Manager) Clear(chatID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, chatID)
}

// Sweep drops states idle past the TTL and reports how many it
// removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for chatID, state := range m.states {
		if m.expiredLocked(state, now) {
			delete(m.states, chatID)
			removed++
		}
	}
	return removed
}

// Run sweeps periodically until ctx is canceled.
func (m *Manager) Run(ctx context.Context, logger *slog.Logger) {
	interval := m.ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(); removed > 0 && logger != nil {
				logger.Info("session_sweep", "removed", removed)
			}
		}
	}
}

func (m *Manager) expiredLocked(state State, now time.Time) bool {
	if state.UpdatedAt.IsZero() {
		return false
	}
	return now.Sub(state.UpdatedAt) > m.ttl
}
