package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntityActivity = "activity"
	EntityProfile  = "profile"

	OperationRecord           = "record"
	OperationMergePreferences = "merge_preferences"
)

// Default priorities; lower values drain first.
const (
	PriorityProfile  = 2
	PriorityActivity = 4
)

// Item is a write that could not reach Postgres and waits to be replayed.
type Item struct {
	ID        string          `json:"id"`
	Actor     string          `json:"actor"`
	Entity    string          `json:"entity"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize(now time.Time) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = now
	}
}
