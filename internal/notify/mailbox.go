package notify

import (
	"context"
	"sync"
	"time"
)

// Popup staging constants: at most MaxPopups unread entries are shown,
// each offset by PopupStagger and dismissed after PopupDwell.
const (
	MaxPopups    = 5
	PopupStagger = 400 * time.Millisecond
	PopupDwell   = 6 * time.Second
)

// Mailbox is a read-through view over one user's notifications. Fetch
// replaces the local list wholesale; mutations update local state first and
// then push to the store. A failed store write is reported to the caller but
// the local flip is kept; the next Fetch reconciles.
type Mailbox struct {
	mu     sync.Mutex
	store  Store
	userID string
	items  []Notification
}

// NewMailbox creates an empty mailbox for a user. Call Fetch to populate it.
func NewMailbox(store Store, userID string) *Mailbox {
	return &Mailbox{store: store, userID: userID}
}

// Fetch replaces the local list with the store's current state.
func (m *Mailbox) Fetch(ctx context.Context) error {
	items, err := m.store.List(ctx, m.userID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items = items
	m.mu.Unlock()
	return nil
}

// Items returns a copy of the current list.
func (m *Mailbox) Items() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.items))
	copy(out, m.items)
	return out
}

// UnreadCount counts entries not yet read.
func (m *Mailbox) UnreadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, item := range m.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// MarkRead flips a notification to read locally, then pushes the change to
// the store and returns its error. Marking an already-read or unknown id is
// a no-op locally. Idempotent.
func (m *Mailbox) MarkRead(ctx context.Context, id string) error {
	m.mu.Lock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Read = true
			break
		}
	}
	m.mu.Unlock()
	return m.store.MarkRead(ctx, m.userID, id)
}

// MarkAllRead flips every entry to read locally, then pushes to the store.
func (m *Mailbox) MarkAllRead(ctx context.Context) error {
	m.mu.Lock()
	for i := range m.items {
		m.items[i].Read = true
	}
	m.mu.Unlock()
	return m.store.MarkAllRead(ctx, m.userID)
}

// Clear empties the mailbox locally, then pushes to the store.
func (m *Mailbox) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.items = nil
	m.mu.Unlock()
	return m.store.Clear(ctx, m.userID)
}

// Popup is one staged pop-up: show the notification at ShowAt, auto-dismiss
// at DismissAt. Dismissal marks the entry read; nothing else about the popup
// projection feeds back into unread counting.
type Popup struct {
	Notification Notification `json:"notification"`
	ShowAt       time.Time    `json:"show_at"`
	DismissAt    time.Time    `json:"dismiss_at"`
}

// StagePopups projects up to MaxPopups unread entries into a staggered
// display schedule anchored at now. Purely presentational: it does not
// mutate the mailbox.
func (m *Mailbox) StagePopups(now time.Time) []Popup {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Popup
	for _, item := range m.items {
		if item.Read {
			continue
		}
		i := len(out)
		out = append(out, Popup{
			Notification: item,
			ShowAt:       now.Add(time.Duration(i) * PopupStagger),
			DismissAt:    now.Add(PopupDwell + time.Duration(i)*PopupStagger),
		})
		if len(out) == MaxPopups {
			break
		}
	}
	return out
}
