package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
)

type stubReader struct {
	lastList cqrs.SyncItemsQuery
}

func (s *stubReader) Status(_ context.Context, q cqrs.SyncStatusQuery) (*models.SyncStatus, error) {
	return &models.SyncStatus{DeviceID: q.DeviceID, Counts: map[string]int{models.SyncPending: 2}}, nil
}

func (s *stubReader) List(_ context.Context, q cqrs.SyncItemsQuery) ([]models.SyncItem, error) {
	s.lastList = q
	return []models.SyncItem{{ID: "itm-1", Status: models.SyncPending}}, nil
}

func TestStatus(t *testing.T) {
	svc := NewSyncQueryService(&stubReader{})

	status, err := svc.Status(context.Background(), cqrs.SyncStatusQuery{DeviceID: "dev-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, status.Counts[models.SyncPending])

	_, err = svc.Status(context.Background(), cqrs.SyncStatusQuery{})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestItems(t *testing.T) {
	reader := &stubReader{}
	svc := NewSyncQueryService(reader)

	items, err := svc.Items(context.Background(), cqrs.SyncItemsQuery{DeviceID: "dev-1", Status: models.SyncFailed})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, models.SyncFailed, reader.lastList.Status)

	_, err = svc.Items(context.Background(), cqrs.SyncItemsQuery{DeviceID: "dev-1", Status: "lost"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = svc.Items(context.Background(), cqrs.SyncItemsQuery{Status: models.SyncFailed})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}
