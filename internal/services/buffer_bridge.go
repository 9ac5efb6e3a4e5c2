package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/internal/infrastructure/buffer"
	"github.com/fastygo/dashboard/usecase"
)

// BufferBridge adapts the processor to the use-case WriteBuffer port.
type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferActivity(ctx context.Context, entry *domain.ActivityLog) error {
	if b.processor == nil || entry == nil {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return b.processor.Park(ctx, buffer.Item{
		Actor:     entry.UserEmail,
		Entity:    buffer.EntityActivity,
		Operation: buffer.OperationRecord,
		Data:      payload,
		Priority:  buffer.PriorityActivity,
		Timestamp: entry.Timestamp,
	})
}

func (b *BufferBridge) BufferPreferences(ctx context.Context, changes *domain.PreferenceChanges) error {
	if b.processor == nil || changes == nil || changes.Email == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(changes)
	if err != nil {
		return err
	}
	return b.processor.Park(ctx, buffer.Item{
		Actor:     changes.Email,
		Entity:    buffer.EntityProfile,
		Operation: buffer.OperationMergePreferences,
		Data:      payload,
		Priority:  buffer.PriorityProfile,
	})
}

var _ usecase.WriteBuffer = (*BufferBridge)(nil)
