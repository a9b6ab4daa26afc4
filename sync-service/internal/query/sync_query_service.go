package query

import (
	"context"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type syncReader interface {
	Status(ctx context.Context, q cqrs.SyncStatusQuery) (*models.SyncStatus, error)
	List(ctx context.Context, q cqrs.SyncItemsQuery) ([]models.SyncItem, error)
}

var itemStatuses = map[string]bool{
	"":                   true,
	models.SyncPending:   true,
	models.SyncSyncing:   true,
	models.SyncCompleted: true,
	models.SyncFailed:    true,
	models.SyncConflict:  true,
}

type SyncQueryService struct {
	items syncReader
}

func NewSyncQueryService(items syncReader) *SyncQueryService {
	return &SyncQueryService{items: items}
}

func (s *SyncQueryService) Status(ctx context.Context, q cqrs.SyncStatusQuery) (*models.SyncStatus, error) {
	if q.DeviceID == "" {
		return nil, apperr.Invalid("deviceId is required")
	}
	return s.items.Status(ctx, q)
}

func (s *SyncQueryService) Items(ctx context.Context, q cqrs.SyncItemsQuery) ([]models.SyncItem, error) {
	if q.DeviceID == "" {
		return nil, apperr.Invalid("deviceId is required")
	}
	if !itemStatuses[q.Status] {
		return nil, apperr.Invalid("unknown sync status %q", q.Status)
	}
	return s.items.List(ctx, q)
}
