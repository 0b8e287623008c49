package run

import "time"

type Status string

const (
	StatusRunning     Status = "running"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
	StatusFailed      Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusRunning, StatusCompleted, StatusInterrupted, StatusFailed:
		return true
	}
	return false
}

type Run struct {
	ID            string    `json:"id"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	Bases         []string  `json:"bases"`
	Status        Status    `json:"status"`
	Error         string    `json:"error,omitempty"`
	RowsPersisted int64     `json:"rowsPersisted"`
	MissingDates  int       `json:"missingDates"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Result is what a finished pipeline reports back to its run record.
type Result struct {
	RowsPersisted int64
	MissingDates  int
}
