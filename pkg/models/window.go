package models

import "time"

// FetchWindow is the unit of work for one ingestion run: a half-open time
// range [Oldest, Latest) on a single channel. It is never persisted.
type FetchWindow struct {
	Channel        Channel
	Oldest         time.Time
	Latest         time.Time
	IncludeThreads bool
}

// Chunks splits the window into day-sized sub-windows so a mid-run failure
// loses at most one day of progress. A window no longer than a day is
// returned as-is.
func (w FetchWindow) Chunks() []FetchWindow {
	const day = 24 * time.Hour

	if !w.Oldest.Before(w.Latest) {
		return nil
	}
	if w.Latest.Sub(w.Oldest) <= day {
		return []FetchWindow{w}
	}

	var chunks []FetchWindow
	for start := w.Oldest; start.Before(w.Latest); start = start.Add(day) {
		end := start.Add(day)
		if end.After(w.Latest) {
			end = w.Latest
		}
		chunk := w
		chunk.Oldest = start
		chunk.Latest = end
		chunks = append(chunks, chunk)
	}
	return chunks
}
