package tracker

import "context"

// Snapshot is one push from the remote store: the entire current entry set for
// the subscribed user, or a terminal subscription error. Pushes are never diffs.
type Snapshot struct {
	Entries map[string]Entry
	Err     error
}

// Store is the remote document store holding each user's list under its own
// namespace. Subscribe delivers a Snapshot for every change to the namespace,
// in the order the store emits them, until ctx is cancelled or the stream
// fails; the channel is closed afterwards.
type Store interface {
	Upsert(ctx context.Context, userID, entryID string, e Entry) error
	Update(ctx context.Context, userID, entryID string, fields map[string]any) error
	Delete(ctx context.Context, userID, entryID string) error
	Subscribe(ctx context.Context, userID string) (<-chan Snapshot, error)
}
