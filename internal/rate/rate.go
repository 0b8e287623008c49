package rate

import (
	"sort"
	"time"
)

const DateFormat = "2006-01-02"

// Snapshot is the validated content of one fetched payload. Date is zero
// when RawDate is not a YYYY-MM-DD day.
type Snapshot struct {
	Date    time.Time
	RawDate string
	Base    string
	Rates   map[string]float64
}

// Rows flattens the snapshot into storable rows for the given day, ordered by
// target currency.
func (s Snapshot) Rows(day, downloadedAt time.Time) []Row {
	targets := make([]string, 0, len(s.Rates))
	for t := range s.Rates {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	rows := make([]Row, len(targets))
	for i, t := range targets {
		rows[i] = Row{
			Date:         day,
			Base:         s.Base,
			Target:       t,
			Rate:         s.Rates[t],
			DownloadedAt: downloadedAt,
		}
	}
	return rows
}

// Row is one persisted fact, unique on (Date, Base, Target).
type Row struct {
	ID           int64
	Date         time.Time
	Base         string
	Target       string
	Rate         float64
	DownloadedAt time.Time
}

func (r Row) Pair() Pair { return Pair{Date: r.Date, Base: r.Base} }

// Pair identifies the unit of fetch work: one base currency on one day.
type Pair struct {
	Date time.Time
	Base string
}

func (p Pair) Key() string { return p.Date.Format(DateFormat) + ":" + p.Base }
