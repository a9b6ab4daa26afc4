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
	invoice  *models.Invoice
	lastList cqrs.ListInvoicesQuery
	total    int
}

func (s *stubReader) GetByID(_ context.Context, id string) (*models.Invoice, error) {
	if s.invoice == nil || s.invoice.ID != id {
		return nil, apperr.NotFound("invoice")
	}
	return s.invoice, nil
}

func (s *stubReader) List(_ context.Context, q cqrs.ListInvoicesQuery) ([]models.Invoice, int, error) {
	s.lastList = q
	return []models.Invoice{}, s.total, nil
}

func (s *stubReader) StatusTotals(context.Context, string) (map[string]models.InvoiceStatusSummary, error) {
	return nil, nil
}

func TestGetInvoiceHidesOtherOrganizations(t *testing.T) {
	svc := NewInvoiceQueryService(&stubReader{invoice: &models.Invoice{ID: "inv-1", OrganizationID: "org-001"}})

	inv, err := svc.GetInvoice(context.Background(), cqrs.GetInvoiceQuery{InvoiceID: "inv-1", OrganizationID: "org-001"})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", inv.ID)

	_, err = svc.GetInvoice(context.Background(), cqrs.GetInvoiceQuery{InvoiceID: "inv-1", OrganizationID: "org-002"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListInvoicesClampsPaging(t *testing.T) {
	tests := []struct {
		name          string
		page, limit   int
		wantPage      int
		wantLimit     int
		wantTotalPage int
	}{
		{"defaults", 0, 0, 1, DefaultPageLimit, 3},
		{"capped limit", 2, 500, 2, MaxPageLimit, 2},
		{"explicit", 3, 20, 3, 20, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &stubReader{total: 130}
			svc := NewInvoiceQueryService(reader)

			page, err := svc.ListInvoices(context.Background(), cqrs.ListInvoicesQuery{OrganizationID: "org-001", Page: tt.page, Limit: tt.limit})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPage, reader.lastList.Page)
			assert.Equal(t, tt.wantLimit, reader.lastList.Limit)
			assert.Equal(t, tt.wantTotalPage, page.Pagination.TotalPages)
			assert.Equal(t, 130, page.Pagination.Total)
		})
	}
}

func TestBuildStats(t *testing.T) {
	stats := BuildStats(map[string]models.InvoiceStatusSummary{
		models.InvoiceStatusDraft:     {Count: 2, Amount: 300},
		models.InvoiceStatusSent:      {Count: 3, Amount: 1200.5},
		models.InvoiceStatusPaid:      {Count: 4, Amount: 2000},
		models.InvoiceStatusOverdue:   {Count: 1, Amount: 450},
		models.InvoiceStatusCancelled: {Count: 5, Amount: 9999},
	})

	assert.Equal(t, 15, stats.TotalInvoices)
	assert.Equal(t, 3950.5, stats.TotalAmount)
	assert.Equal(t, 2000.0, stats.PaidAmount)
	assert.Equal(t, 450.0, stats.OverdueAmount)
	assert.Equal(t, 1950.5, stats.OutstandingAmount)
	assert.Equal(t, 5, stats.ByStatus[models.InvoiceStatusCancelled].Count)

	empty := BuildStats(nil)
	assert.Zero(t, empty.TotalInvoices)
	assert.Len(t, empty.ByStatus, 5)
}
