package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory Store that can be told to fail writes.
type fakeStore struct {
	items     map[string][]Notification
	failWrite bool
	markCalls int
}

func newFakeStore(userID string, items []Notification) *fakeStore {
	return &fakeStore{items: map[string][]Notification{userID: items}}
}

func (f *fakeStore) List(_ context.Context, userID string) ([]Notification, error) {
	out := make([]Notification, len(f.items[userID]))
	copy(out, f.items[userID])
	return out, nil
}

func (f *fakeStore) MarkRead(_ context.Context, userID, id string) error {
	f.markCalls++
	if f.failWrite {
		return errors.New("backend unavailable")
	}
	list := f.items[userID]
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
		}
	}
	return nil
}

func (f *fakeStore) MarkAllRead(_ context.Context, userID string) error {
	if f.failWrite {
		return errors.New("backend unavailable")
	}
	list := f.items[userID]
	for i := range list {
		list[i].Read = true
	}
	return nil
}

func (f *fakeStore) Clear(_ context.Context, userID string) error {
	if f.failWrite {
		return errors.New("backend unavailable")
	}
	f.items[userID] = nil
	return nil
}

func fixtures() []Notification {
	base := time.Date(2025, time.October, 15, 8, 0, 0, 0, time.UTC)
	return []Notification{
		{ID: "n1", Title: "Absence recorded", Type: TypeWarning, Read: false, CreatedAt: base},
		{ID: "n2", Title: "Justification approved", Type: TypeSuccess, Read: false, CreatedAt: base.Add(time.Minute)},
		{ID: "n3", Title: "Welcome", Type: TypeInfo, Read: true, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "n4", Title: "Risk alert", Type: TypeError, Read: false, CreatedAt: base.Add(3 * time.Minute)},
		{ID: "n5", Title: "Schedule change", Type: TypeInfo, Read: true, CreatedAt: base.Add(4 * time.Minute)},
	}
}

func TestFetchReplacesList(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("u1", fixtures())
	mb := NewMailbox(store, "u1")

	require.NoError(t, mb.Fetch(ctx))
	assert.Len(t, mb.Items(), 5)
	assert.Equal(t, 3, mb.UnreadCount())

	// Store shrinks; fetch replaces, no merge.
	store.items["u1"] = store.items["u1"][:1]
	require.NoError(t, mb.Fetch(ctx))
	assert.Len(t, mb.Items(), 1)
}

func TestMarkReadIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("u1", fixtures())
	mb := NewMailbox(store, "u1")
	require.NoError(t, mb.Fetch(ctx))

	require.NoError(t, mb.MarkRead(ctx, "n1"))
	first := mb.Items()
	assert.Equal(t, 2, mb.UnreadCount())

	require.NoError(t, mb.MarkRead(ctx, "n1"))
	assert.Equal(t, first, mb.Items())
	assert.Equal(t, 2, mb.UnreadCount())
}

func TestMarkAllReadThenFetch(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("u1", fixtures())
	mb := NewMailbox(store, "u1")
	require.NoError(t, mb.Fetch(ctx))
	require.Equal(t, 3, mb.UnreadCount())

	require.NoError(t, mb.MarkAllRead(ctx))
	assert.Zero(t, mb.UnreadCount())

	// The store agreed, so a refetch keeps everything read.
	require.NoError(t, mb.Fetch(ctx))
	assert.Zero(t, mb.UnreadCount())
	for _, n := range mb.Items() {
		assert.True(t, n.Read)
	}
}

func TestMarkReadFailureKeepsLocalFlip(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("u1", fixtures())
	mb := NewMailbox(store, "u1")
	require.NoError(t, mb.Fetch(ctx))

	store.failWrite = true
	err := mb.MarkRead(ctx, "n1")
	require.Error(t, err, "store failure surfaces to the caller")
	assert.Equal(t, 2, mb.UnreadCount(), "local state is not rolled back")

	// Next fetch reconciles with the store, which never saw the write.
	store.failWrite = false
	require.NoError(t, mb.Fetch(ctx))
	assert.Equal(t, 3, mb.UnreadCount())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("u1", fixtures())
	mb := NewMailbox(store, "u1")
	require.NoError(t, mb.Fetch(ctx))

	require.NoError(t, mb.Clear(ctx))
	assert.Empty(t, mb.Items())
	assert.Zero(t, mb.UnreadCount())
	require.NoError(t, mb.Fetch(ctx))
	assert.Empty(t, mb.Items())
}

func TestStagePopupsSchedule(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("u1", fixtures())
	mb := NewMailbox(store, "u1")
	require.NoError(t, mb.Fetch(ctx))

	now := time.Date(2025, time.October, 15, 9, 0, 0, 0, time.UTC)
	popups := mb.StagePopups(now)
	require.Len(t, popups, 3, "only unread entries are staged")

	for i, p := range popups {
		assert.False(t, p.Notification.Read)
		assert.Equal(t, now.Add(time.Duration(i)*PopupStagger), p.ShowAt)
		assert.Equal(t, now.Add(PopupDwell+time.Duration(i)*PopupStagger), p.DismissAt)
	}

	// Staging is a pure projection.
	assert.Equal(t, 3, mb.UnreadCount())
}

func TestStagePopupsCap(t *testing.T) {
	var many []Notification
	for i := 0; i < 9; i++ {
		many = append(many, Notification{ID: string(rune('a' + i)), Type: TypeInfo})
	}
	store := newFakeStore("u1", many)
	mb := NewMailbox(store, "u1")
	require.NoError(t, mb.Fetch(context.Background()))

	popups := mb.StagePopups(time.Now())
	assert.Len(t, popups, MaxPopups)
}

func TestPopupDismissMarksRead(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore("u1", fixtures())
	mb := NewMailbox(store, "u1")
	require.NoError(t, mb.Fetch(ctx))

	popups := mb.StagePopups(time.Now())
	for _, p := range popups {
		require.NoError(t, mb.MarkRead(ctx, p.Notification.ID))
	}
	assert.Zero(t, mb.UnreadCount())
	assert.Equal(t, len(popups), store.markCalls)
}
