package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anime_tracker/catalog"
)

type upsertCall struct {
	userID, entryID string
	entry           Entry
}

type updateCall struct {
	userID, entryID string
	fields          map[string]any
}

type deleteCall struct {
	userID, entryID string
}

type fakeStore struct {
	mu      sync.Mutex
	upserts []upsertCall
	updates []updateCall
	deletes []deleteCall

	upsertErr error
	updateErr error
	deleteErr error
	subErr    error

	subCtx  context.Context
	subUser string
	pushes  chan Snapshot
}

var _ Store = (*fakeStore)(nil)

func (f *fakeStore) Upsert(_ context.Context, userID, entryID string, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts = append(f.upserts, upsertCall{userID, entryID, e})
	return f.upsertErr
}

func (f *fakeStore) Update(_ context.Context, userID, entryID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateCall{userID, entryID, fields})
	return f.updateErr
}

func (f *fakeStore) Delete(_ context.Context, userID, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, deleteCall{userID, entryID})
	return f.deleteErr
}

func (f *fakeStore) Subscribe(ctx context.Context, userID string) (<-chan Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.subCtx = ctx
	f.subUser = userID
	f.pushes = make(chan Snapshot, 8)
	return f.pushes, nil
}

func snapshot(entries ...Entry) Snapshot {
	set := make(map[string]Entry, len(entries))
	for _, e := range entries {
		set[e.ID()] = e
	}
	return Snapshot{Entries: set}
}

func TestApply_ReplacesMirrorWholesale(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)

	sub, err := c.Subscribe("u1")
	require.NoError(t, err)
	require.Equal(t, PhaseSubscribing, c.Phase())

	p1 := snapshot(
		Entry{MalID: 1, Name: "A", Status: StatusWatching},
		Entry{MalID: 2, Name: "B", Status: StatusCompleted},
	)
	require.True(t, c.Apply(sub.Gen, p1))
	require.Equal(t, PhaseSynced, c.Phase())
	require.Len(t, c.Entries(), 2)

	// the next push is not merged in, it replaces everything
	p2 := snapshot(Entry{MalID: 3, Name: "C"})
	require.True(t, c.Apply(sub.Gen, p2))
	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].MalID)
}

func TestApply_ErrorPushKeepsMirror(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)
	sub, err := c.Subscribe("u1")
	require.NoError(t, err)

	require.True(t, c.Apply(sub.Gen, snapshot(Entry{MalID: 1, Name: "A"})))
	require.False(t, c.Apply(sub.Gen, Snapshot{Err: errors.New("permission denied")}))
	assert.Len(t, c.Entries(), 1, "mirror keeps its last-known form")
}

func TestToggle_DoubleToggleRoundTrips(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)
	sub, err := c.Subscribe("u1")
	require.NoError(t, err)
	require.True(t, c.Apply(sub.Gen, snapshot(Entry{MalID: 5, Name: "E", Status: StatusWatching})))

	ctx := context.Background()

	st, err := c.Toggle(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st)

	st, err = c.Toggle(ctx, "5")
	require.NoError(t, err)
	assert.Equal(t, StatusWatching, st)

	// exactly one update per toggle, each carrying the opposite of the prior value
	require.Len(t, store.updates, 2)
	assert.Equal(t, "u1", store.updates[0].userID)
	assert.Equal(t, "5", store.updates[0].entryID)
	assert.Equal(t, string(StatusCompleted), store.updates[0].fields["status"])
	assert.Equal(t, string(StatusWatching), store.updates[1].fields["status"])
	for _, u := range store.updates {
		assert.Contains(t, u.fields, "updatedAt")
	}
}

func TestToggle_MissingStatusCountsAsWatching(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)
	sub, err := c.Subscribe("u1")
	require.NoError(t, err)
	require.True(t, c.Apply(sub.Gen, snapshot(Entry{MalID: 7, Name: "G"})))

	st, err := c.Toggle(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st)
}

func TestToggle_KeepsOptimisticValueOnRemoteFailure(t *testing.T) {
	t.Parallel()
	store := &fakeStore{updateErr: errors.New("store down")}
	c := NewController(store, nil)
	sub, err := c.Subscribe("u1")
	require.NoError(t, err)
	require.True(t, c.Apply(sub.Gen, snapshot(Entry{MalID: 5, Name: "E", Status: StatusWatching})))

	st, err := c.Toggle(context.Background(), "5")
	require.Error(t, err)
	assert.Equal(t, StatusCompleted, st)

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusCompleted, entries[0].Status, "no rollback: drift until the next push")
}

func TestToggle_StampsUpdatedAt(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return at }

	sub, err := c.Subscribe("u1")
	require.NoError(t, err)
	require.True(t, c.Apply(sub.Gen, snapshot(Entry{MalID: 5, Name: "E"})))

	_, err = c.Toggle(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, at, store.updates[0].fields["updatedAt"])
	require.NotNil(t, c.Entries()[0].UpdatedAt)
	assert.Equal(t, at, *c.Entries()[0].UpdatedAt)
}

func TestToggle_UnknownIDIssuesNoCall(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)
	sub, err := c.Subscribe("u1")
	require.NoError(t, err)
	require.True(t, c.Apply(sub.Gen, snapshot()))

	_, err = c.Toggle(context.Background(), "404")
	require.ErrorIs(t, err, ErrNotInList)
	assert.Empty(t, store.updates)
}

func TestAdd_ShapesEntryFromCatalogItem(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)
	_, err := c.Subscribe("u1")
	require.NoError(t, err)

	item := catalog.Anime{MalID: 5114, Name: "FMA:B", ImageURL: "https://cdn.example/5114.jpg", Score: 9.1}
	require.NoError(t, c.Add(context.Background(), item))

	require.Len(t, store.upserts, 1)
	call := store.upserts[0]
	assert.Equal(t, "u1", call.userID)
	assert.Equal(t, "5114", call.entryID)
	assert.Equal(t, Entry{
		MalID:    5114,
		Name:     "FMA:B",
		ImageURL: "https://cdn.example/5114.jpg",
		Score:    9.1,
		Status:   StatusWatching,
	}, call.entry)
}

func TestRemove_AbsentIDStillIssuesDelete(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)
	sub, err := c.Subscribe("u1")
	require.NoError(t, err)
	require.True(t, c.Apply(sub.Gen, snapshot()))

	require.NoError(t, c.Remove(context.Background(), "999"))
	require.Len(t, store.deletes, 1)
	assert.Equal(t, deleteCall{"u1", "999"}, store.deletes[0])
}

func TestMutations_RequireSession(t *testing.T) {
	t.Parallel()
	c := NewController(&fakeStore{}, nil)

	ctx := context.Background()
	assert.ErrorIs(t, c.Add(ctx, catalog.Anime{MalID: 1}), ErrNoSession)
	assert.ErrorIs(t, c.Remove(ctx, "1"), ErrNoSession)
	_, err := c.Toggle(ctx, "1")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSignOut_DiscardsLatePushAndCancelsStream(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)
	sub, err := c.Subscribe("u1")
	require.NoError(t, err)
	require.True(t, c.Apply(sub.Gen, snapshot(Entry{MalID: 1, Name: "A"})))

	c.SignOut()

	// a push that was in flight at teardown must not resurrect the mirror
	late := snapshot(Entry{MalID: 2, Name: "B"})
	assert.False(t, c.Apply(sub.Gen, late))
	assert.Empty(t, c.Entries())
	assert.Equal(t, PhaseSignedOut, c.Phase())

	select {
	case <-store.subCtx.Done():
	default:
		t.Fatal("subscription context should be cancelled on sign-out")
	}
}

func TestSubscribe_SupersedesPreviousGeneration(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)

	first, err := c.Subscribe("u1")
	require.NoError(t, err)
	second, err := c.Subscribe("u2")
	require.NoError(t, err)
	require.Greater(t, second.Gen, first.Gen)

	assert.False(t, c.Apply(first.Gen, snapshot(Entry{MalID: 1, Name: "A"})))
	assert.True(t, c.Apply(second.Gen, snapshot(Entry{MalID: 2, Name: "B"})))
	assert.Equal(t, "u2", c.UserID())
}

func TestSubscribe_Error(t *testing.T) {
	t.Parallel()
	store := &fakeStore{subErr: errors.New("permission denied")}
	c := NewController(store, nil)

	_, err := c.Subscribe("u1")
	require.Error(t, err)
	assert.Equal(t, PhaseSignedOut, c.Phase())
}

func TestEntries_OrderedByTitle(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}
	c := NewController(store, nil)
	sub, err := c.Subscribe("u1")
	require.NoError(t, err)
	require.True(t, c.Apply(sub.Gen, snapshot(
		Entry{MalID: 3, Name: "naruto"},
		Entry{MalID: 1, Name: "Bleach"},
		Entry{MalID: 2, Name: "akira"},
	)))

	var names []string
	for _, e := range c.Entries() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"akira", "Bleach", "naruto"}, names)
}
