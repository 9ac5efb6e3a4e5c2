package usecase

import (
	"context"

	"github.com/fastygo/dashboard/domain"
)

// WriteBuffer parks writes that the primary store rejected so they can be
// replayed once it is reachable again.
type WriteBuffer interface {
	BufferActivity(ctx context.Context, entry *domain.ActivityLog) error
	// BufferPreferences parks only the requested changes; replay merges them
	// into the row as it is then, so columns such as role are never rewritten.
	BufferPreferences(ctx context.Context, changes *domain.PreferenceChanges) error
}
