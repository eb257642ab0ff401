package monitoring

import (
	"encoding/json"
	"sync"
	"time"
)

// A ProgressBar tracks how many commands of a trace have been executed.
type ProgressBar struct {
	mu sync.Mutex

	ID        string
	Name      string
	StartTime time.Time
	Total     uint64
	Finished  uint64
}

// IncrementFinished adds a certain amount to finished commands.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Finished += amount
}

// Progress returns the number of finished commands and the total.
func (b *ProgressBar) Progress() (finished, total uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.Finished, b.Total
}

// MarshalJSON encodes the bar under its lock.
func (b *ProgressBar) MarshalJSON() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return json.Marshal(struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		StartTime time.Time `json:"start_time"`
		Total     uint64    `json:"total"`
		Finished  uint64    `json:"finished"`
	}{b.ID, b.Name, b.StartTime, b.Total, b.Finished})
}
