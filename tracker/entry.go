// Package tracker owns the local reflection of a user's saved anime list and
// keeps it reconciled with the remote store.
package tracker

import (
	"strconv"
	"time"

	"anime_tracker/catalog"
)

// Status is the watch state of a saved entry. The zero value is treated as
// Watching everywhere, matching entries written before the field existed.
type Status string

const (
	StatusWatching  Status = "Watching"
	StatusCompleted Status = "Completed"
)

// Next returns the other status; toggling alternates strictly between the two.
func (s Status) Next() Status {
	if s == StatusCompleted {
		return StatusWatching
	}
	return StatusCompleted
}

func (s Status) orWatching() Status {
	if s == StatusCompleted {
		return StatusCompleted
	}
	return StatusWatching
}

// Entry is one saved title in a user's list. Score is copied from the catalog
// at save time and never refreshed. UpdatedAt is stamped on status changes only.
type Entry struct {
	MalID     int       `json:"mal_id"`
	Name      string    `json:"title"`
	ImageURL  string    `json:"imageUrl"`
	Score     float64   `json:"score,omitempty"`
	Status    Status    `json:"status,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// ID is the entry's key inside the user's namespace: the catalog id in
// decimal string form. Writing an existing id overwrites in place.
func (e Entry) ID() string { return strconv.Itoa(e.MalID) }

// FromCatalog shapes a catalog result into a fresh list entry.
func FromCatalog(a catalog.Anime) Entry {
	return Entry{
		MalID:    a.MalID,
		Name:     a.Name,
		ImageURL: a.ImageURL,
		Score:    a.Score,
		Status:   StatusWatching,
	}
}

// ScoreText formats the saved score, N/A when the title was unrated.
func (e Entry) ScoreText() string {
	if e.Score <= 0 {
		return "N/A"
	}
	return strconv.FormatFloat(e.Score, 'f', 2, 64)
}
