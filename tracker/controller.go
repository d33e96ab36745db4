package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"anime_tracker/catalog"
)

var (
	// ErrNoSession means a mutation was attempted while signed out.
	ErrNoSession = errors.New("no active session")

	// ErrNotInList means a toggle was requested for an id the mirror does not hold.
	ErrNotInList = errors.New("entry not in list")
)

// Phase is the controller's position in the session/subscription lifecycle.
type Phase int

const (
	// PhaseSignedOut: no subscription, mirror empty.
	PhaseSignedOut Phase = iota
	// PhaseSubscribing: subscription open, waiting for the first push.
	PhaseSubscribing
	// PhaseSynced: at least one push applied; the mirror is current truth.
	PhaseSynced
)

// Subscription hands the stream of pushes for one opened subscription to the
// event loop. Gen tags every push so that pushes racing a teardown can be
// recognized as stale and discarded.
type Subscription struct {
	Gen    int
	pushes <-chan Snapshot
}

// Next blocks until the store emits a push. ok is false once the stream ends.
func (s Subscription) Next() (Snapshot, bool) {
	snap, ok := <-s.pushes
	return snap, ok
}

// Controller mirrors the signed-in user's saved list. Every applied push
// replaces the whole mirror; the store is the single source of truth and no
// client-side merge is attempted. Status toggles are applied optimistically
// before the remote update is confirmed.
//
// All methods are safe for concurrent use; remote calls are issued without
// holding the lock.
type Controller struct {
	store Store
	log   *zap.Logger
	now   func() time.Time

	mu     sync.Mutex
	phase  Phase
	userID string
	gen    int
	cancel context.CancelFunc
	mirror map[string]Entry
}

func NewController(store Store, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		store:  store,
		log:    log,
		now:    time.Now,
		mirror: make(map[string]Entry),
	}
}

// Subscribe opens a push subscription for the given user, tearing down any
// previous one. The mirror stays empty until the first push arrives.
func (c *Controller) Subscribe(userID string) (Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
	c.gen++

	ctx, cancel := context.WithCancel(context.Background())
	pushes, err := c.store.Subscribe(ctx, userID)
	if err != nil {
		cancel()
		c.log.Error("subscribe failed", zap.String("user", userID), zap.Error(err))
		return Subscription{}, fmt.Errorf("subscribe: %w", err)
	}

	c.userID = userID
	c.cancel = cancel
	c.phase = PhaseSubscribing
	c.log.Info("subscription opened", zap.String("user", userID), zap.Int("gen", c.gen))
	return Subscription{Gen: c.gen, pushes: pushes}, nil
}

// SignOut cancels the subscription and discards the mirror. The remote data is
// untouched. Bumping the generation here is what invalidates a push that was
// already in flight when teardown was requested.
func (c *Controller) SignOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.gen++
}

func (c *Controller) teardownLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.userID = ""
	c.phase = PhaseSignedOut
	c.mirror = make(map[string]Entry)
}

// Apply installs a push into the mirror, replacing it wholesale. Pushes tagged
// with a stale generation are discarded, as are error pushes (the mirror keeps
// its last-known form). Reports whether the mirror changed.
func (c *Controller) Apply(gen int, snap Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		c.log.Debug("stale push discarded", zap.Int("got", gen), zap.Int("want", c.gen))
		return false
	}
	if snap.Err != nil {
		c.log.Error("subscription error", zap.String("user", c.userID), zap.Error(snap.Err))
		return false
	}

	mirror := make(map[string]Entry, len(snap.Entries))
	for id, e := range snap.Entries {
		mirror[id] = e
	}
	c.mirror = mirror
	c.phase = PhaseSynced
	return true
}

// Add saves a catalog result to the user's list with status Watching. An
// existing id is overwritten in place. There is no optimistic insert; the add
// flow runs from the search view, which does not render the list.
func (c *Controller) Add(ctx context.Context, item catalog.Anime) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID == "" {
		return ErrNoSession
	}

	e := FromCatalog(item)
	if err := c.store.Upsert(ctx, userID, e.ID(), e); err != nil {
		c.log.Error("add failed", zap.String("user", userID), zap.String("id", e.ID()), zap.Error(err))
		return fmt.Errorf("add %q: %w", e.Name, err)
	}
	c.log.Info("entry added", zap.String("user", userID), zap.String("id", e.ID()))
	return nil
}

// Toggle flips the entry's status in the mirror immediately and then issues the
// remote update. A failed update is reported but the optimistic value is kept;
// the next authoritative push supersedes it either way. Returns the new status.
func (c *Controller) Toggle(ctx context.Context, id string) (Status, error) {
	c.mu.Lock()
	userID := c.userID
	e, ok := c.mirror[id]
	if userID == "" {
		c.mu.Unlock()
		return "", ErrNoSession
	}
	if !ok {
		c.mu.Unlock()
		return "", fmt.Errorf("toggle %s: %w", id, ErrNotInList)
	}
	now := c.now()
	e.Status = e.Status.orWatching().Next()
	e.UpdatedAt = &now
	c.mirror[id] = e
	c.mu.Unlock()

	fields := map[string]any{
		"status":    string(e.Status),
		"updatedAt": now,
	}
	if err := c.store.Update(ctx, userID, id, fields); err != nil {
		c.log.Error("status update failed, keeping optimistic value",
			zap.String("user", userID), zap.String("id", id), zap.Error(err))
		return e.Status, fmt.Errorf("update %s: %w", id, err)
	}
	return e.Status, nil
}

// Remove deletes the entry remotely. No optimistic removal: the entry stays
// visible until a push drops it. An id absent from the mirror is still sent;
// the store is authoritative.
func (c *Controller) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID == "" {
		return ErrNoSession
	}

	if err := c.store.Delete(ctx, userID, id); err != nil {
		c.log.Error("delete failed", zap.String("user", userID), zap.String("id", id), zap.Error(err))
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

var titleOrder = collate.New(language.English, collate.IgnoreCase)

// Entries returns the mirror ordered by title, ties broken by id, so list
// rendering is stable across pushes.
func (c *Controller) Entries() []Entry {
	c.mu.Lock()
	entries := make([]Entry, 0, len(c.mirror))
	for _, e := range c.mirror {
		entries = append(entries, e)
	}
	c.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if r := titleOrder.CompareString(entries[i].Name, entries[j].Name); r != 0 {
			return r < 0
		}
		return entries[i].MalID < entries[j].MalID
	})
	return entries
}

// Stats folds the current mirror into aggregate counts.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	entries := make([]Entry, 0, len(c.mirror))
	for _, e := range c.mirror {
		entries = append(entries, e)
	}
	c.mu.Unlock()
	return Aggregate(entries)
}

func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}
