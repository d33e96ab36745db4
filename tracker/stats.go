package tracker

// Stats are the aggregate counts shown on the stats view. Derived state only:
// recomputed from the mirror on demand, never stored.
type Stats struct {
	Total     int
	Watching  int
	Completed int
}

// Aggregate counts entries per status. An entry with no status counts as
// Watching, so Total == Watching + Completed always holds.
func Aggregate(entries []Entry) Stats {
	var s Stats
	for _, e := range entries {
		s.Total++
		if e.Status == StatusCompleted {
			s.Completed++
		} else {
			s.Watching++
		}
	}
	return s
}
