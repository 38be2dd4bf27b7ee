package service

import (
	"context"
	"fmt"

	"github.com/vaultra/cardbank/internal/history/domain"
	"github.com/vaultra/cardbank/internal/history/store"
	"github.com/vaultra/cardbank/pkg/idx"
)

// HistoryService is the audit sink. It records whatever it is told and
// owns no business rules.
type HistoryService struct {
	Store store.Events
}

func (s *HistoryService) LogEvent(ctx context.Context, userID, eventType string, meta map[string]any) (domain.Event, error) {
	e := domain.Event{
		ID:        idx.New().String(),
		UserID:    userID,
		EventType: eventType,
		Meta:      meta,
	}
	if err := s.Store.Append(ctx, e); err != nil {
		return domain.Event{}, fmt.Errorf("append event: %w", err)
	}
	return e, nil
}

func (s *HistoryService) UserEvents(ctx context.Context, userID string) ([]domain.Event, error) {
	return s.Store.ListByUser(ctx, userID)
}

func (s *HistoryService) AllEvents(ctx context.Context) ([]domain.Event, error) {
	return s.Store.ListAll(ctx)
}
