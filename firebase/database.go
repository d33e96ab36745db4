package firebase

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"anime_tracker/tracker"
)

// ErrStore wraps every failure coming out of the Realtime Database:
// unreachable host, permission denial, revoked credentials.
var ErrStore = errors.New("list store error")

// Database talks to the Firebase Realtime Database over REST. Each user's list
// lives under users/{uid}/animeList/{entryId}; writes by any device to that
// namespace are pushed to every open subscription.
type Database struct {
	baseURL string
	token   TokenSource
	log     *zap.Logger

	client *http.Client
	// streaming requests stay open for the life of the subscription, so the
	// stream client must not carry a request timeout
	stream *http.Client
}

func NewDatabase(baseURL string, token TokenSource, log *zap.Logger) *Database {
	if log == nil {
		log = zap.NewNop()
	}
	return &Database{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		log:     log,
		client:  &http.Client{Timeout: 15 * time.Second},
		stream:  &http.Client{},
	}
}

func (d *Database) entryURL(userID, entryID string) string {
	return fmt.Sprintf("%s/users/%s/animeList/%s.json?auth=%s", d.baseURL, userID, entryID, d.token())
}

func (d *Database) listURL(userID string) string {
	return fmt.Sprintf("%s/users/%s/animeList.json?auth=%s", d.baseURL, userID, d.token())
}

// Upsert writes the full entry at its id, overwriting any previous document.
func (d *Database) Upsert(ctx context.Context, userID, entryID string, e tracker.Entry) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return d.write(ctx, http.MethodPut, d.entryURL(userID, entryID), body)
}

// Update patches only the given fields of an existing entry.
func (d *Database) Update(ctx context.Context, userID, entryID string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	return d.write(ctx, http.MethodPatch, d.entryURL(userID, entryID), body)
}

// Delete removes the entry document. Deleting an absent id succeeds; the store
// treats it as writing null.
func (d *Database) Delete(ctx context.Context, userID, entryID string) error {
	return d.write(ctx, http.MethodDelete, d.entryURL(userID, entryID), nil)
}

func (d *Database) write(ctx context.Context, method, u string, body []byte) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStore, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: unreachable: %w", ErrStore, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: permission denied", ErrStore)
	default:
		return fmt.Errorf("%w: status %d", ErrStore, resp.StatusCode)
	}
}

// Subscribe opens the store's event stream for the user's namespace and turns
// it into full-set snapshots: the stream itself delivers an initial full put
// followed by per-entry diffs, so the client folds every event into its copy
// of the set and emits the whole set after each one. The channel closes when
// ctx is cancelled or the stream ends; a terminal failure is delivered as one
// snapshot carrying the error first.
func (d *Database) Subscribe(ctx context.Context, userID string) (<-chan tracker.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.listURL(userID), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStore, err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := d.stream.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: unreachable: %w", ErrStore, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: permission denied", ErrStore)
		}
		return nil, fmt.Errorf("%w: status %d", ErrStore, resp.StatusCode)
	}

	out := make(chan tracker.Snapshot, 1)
	go d.consume(ctx, userID, resp.Body, out)
	return out, nil
}

// streamEvent is one server-sent event: "event:" name plus "data:" payload.
type streamEvent struct {
	name string
	data []byte
}

// change is the payload of put/patch events.
type change struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

func (d *Database) consume(ctx context.Context, userID string, body io.ReadCloser, out chan<- tracker.Snapshot) {
	defer close(out)
	defer body.Close()

	emit := func(snap tracker.Snapshot) bool {
		select {
		case out <- snap:
			return true
		case <-ctx.Done():
			return false
		}
	}

	tree := make(map[string]map[string]any)
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var ev streamEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.data = []byte(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "":
			done := d.dispatch(userID, ev, tree, emit)
			ev = streamEvent{}
			if done {
				return
			}
		}
	}

	if err := sc.Err(); err != nil && ctx.Err() == nil {
		d.log.Error("subscription stream broke", zap.String("user", userID), zap.Error(err))
		emit(tracker.Snapshot{Err: fmt.Errorf("%w: stream: %w", ErrStore, err)})
	}
}

// dispatch applies one complete event. Reports true when the stream is over.
func (d *Database) dispatch(userID string, ev streamEvent, tree map[string]map[string]any, emit func(tracker.Snapshot) bool) bool {
	switch ev.name {
	case "put", "patch":
		var ch change
		if err := json.Unmarshal(ev.data, &ch); err != nil {
			d.log.Warn("undecodable stream event", zap.String("user", userID), zap.Error(err))
			return false
		}
		applyChange(tree, ev.name, ch.Path, ch.Data)
		return !emit(tracker.Snapshot{Entries: treeToEntries(tree)})
	case "keep-alive", "":
		return false
	case "cancel":
		emit(tracker.Snapshot{Err: fmt.Errorf("%w: subscription cancelled by server", ErrStore)})
		return true
	case "auth_revoked":
		emit(tracker.Snapshot{Err: fmt.Errorf("%w: credentials revoked", ErrStore)})
		return true
	default:
		d.log.Debug("ignoring stream event", zap.String("event", ev.name))
		return false
	}
}

// applyChange folds a put/patch at the given path into the entry tree. Paths
// are relative to the subscribed namespace: "/" is the whole set, "/{id}" one
// entry, "/{id}/{field}" a single field.
func applyChange(tree map[string]map[string]any, kind, path string, data json.RawMessage) {
	segs := splitPath(path)

	switch len(segs) {
	case 0:
		var set map[string]map[string]any
		_ = json.Unmarshal(data, &set) // null clears the set
		if kind == "put" {
			for id := range tree {
				delete(tree, id)
			}
		}
		for id, fields := range set {
			if fields == nil {
				delete(tree, id)
				continue
			}
			if kind == "patch" && tree[id] != nil {
				for k, v := range fields {
					setField(tree[id], k, v)
				}
				continue
			}
			tree[id] = fields
		}

	case 1:
		id := segs[0]
		var fields map[string]any
		_ = json.Unmarshal(data, &fields)
		if fields == nil {
			if kind == "put" {
				delete(tree, id)
			}
			return
		}
		if kind == "patch" && tree[id] != nil {
			for k, v := range fields {
				setField(tree[id], k, v)
			}
			return
		}
		tree[id] = fields

	default:
		id, field := segs[0], segs[1]
		var v any
		_ = json.Unmarshal(data, &v)
		if tree[id] == nil {
			if v == nil {
				return
			}
			tree[id] = make(map[string]any)
		}
		setField(tree[id], field, v)
	}
}

func setField(fields map[string]any, k string, v any) {
	if v == nil {
		delete(fields, k)
		return
	}
	fields[k] = v
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// treeToEntries converts the raw field tree into typed entries via one JSON
// round trip; the sets involved are a single user's list, so this stays cheap.
func treeToEntries(tree map[string]map[string]any) map[string]tracker.Entry {
	raw, err := json.Marshal(tree)
	if err != nil {
		return map[string]tracker.Entry{}
	}
	entries := make(map[string]tracker.Entry, len(tree))
	if err := json.Unmarshal(raw, &entries); err != nil {
		return map[string]tracker.Entry{}
	}
	return entries
}
