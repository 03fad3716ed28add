package fetch

import (
	"time"
)

// window is one [From, To) query range. Overlap between windows is
// harmless: the merge dedupes by order id.
type window struct {
	From time.Time
	To   time.Time
}

func (w window) span() time.Duration { return w.To.Sub(w.From) }

// dayWindows partitions a trading day into the initial bucket set: 24
// hourly buckets, with the hour containing market open special-cased into a
// pre-open remainder, six 5-minute buckets covering the first half hour of
// trading, and the remainder to the top of that hour. The open minutes get
// fine buckets up front because order density peaks there.
func (f *Fetcher) dayWindows(day time.Time) []window {
	start := f.clock.DayStart(day)
	end := f.clock.DayEnd(day)
	open := f.clock.OpenAt(day)

	var out []window
	for h := start; h.Before(end); h = h.Add(time.Hour) {
		hourEnd := h.Add(time.Hour)
		if open.Before(h) || !open.Before(hourEnd) {
			out = append(out, window{From: h, To: hourEnd})
			continue
		}
		if open.After(h) {
			out = append(out, window{From: h, To: open})
		}
		cursor := open
		for i := 0; i < 6; i++ {
			out = append(out, window{From: cursor, To: cursor.Add(5 * time.Minute)})
			cursor = cursor.Add(5 * time.Minute)
		}
		if cursor.Before(hourEnd) {
			out = append(out, window{From: cursor, To: hourEnd})
		}
	}
	return out
}

// split subdivides a window that returned a full page: anything longer than
// ten minutes becomes 10-minute chunks, anything longer than a minute
// becomes 1-minute chunks. A window already at the 1-minute floor cannot be
// subdivided; the caller surfaces PartialDataError.
func split(w window) ([]window, bool) {
	var step time.Duration
	switch {
	case w.span() > 10*time.Minute:
		step = 10 * time.Minute
	case w.span() > time.Minute:
		step = time.Minute
	default:
		return nil, false
	}
	var out []window
	for cursor := w.From; cursor.Before(w.To); cursor = cursor.Add(step) {
		to := cursor.Add(step)
		if to.After(w.To) {
			to = w.To
		}
		out = append(out, window{From: cursor, To: to})
	}
	return out, true
}
