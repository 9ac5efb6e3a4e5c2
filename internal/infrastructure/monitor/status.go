package monitor

import "time"

// Status is the last connectivity snapshot. A dependency that is not
// configured is reported as up; the memory driver has no Postgres or Redis.
type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	CacheSize  int       `json:"cache_size"`
	LastCheck  time.Time `json:"last_check"`
}
