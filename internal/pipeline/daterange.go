package pipeline

import "time"

type DateRange struct {
	From time.Time
	To   time.Time
}

// Days returns every calendar day from from to to, both inclusive. Times are
// truncated to the UTC day.
func Days(from, to time.Time) []time.Time {
	from, to = truncateDay(from), truncateDay(to)
	if from.After(to) {
		return nil
	}

	var days []time.Time
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		days = append(days, cur)
	}
	return days
}

// SplitDateRange cuts [from, to] into consecutive windows of at most
// chunkDays days.
func SplitDateRange(from, to time.Time, chunkDays int) []DateRange {
	if from.After(to) || chunkDays <= 0 {
		return nil
	}

	var chunks []DateRange
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, chunkDays) {
		end := cur.AddDate(0, 0, chunkDays-1)
		if end.After(to) {
			end = to
		}
		chunks = append(chunks, DateRange{From: cur, To: end})
	}
	return chunks
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
