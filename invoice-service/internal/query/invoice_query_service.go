package query

import (
	"context"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/apperr"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

type invoiceReader interface {
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	List(ctx context.Context, q cqrs.ListInvoicesQuery) ([]models.Invoice, int, error)
	StatusTotals(ctx context.Context, orgID string) (map[string]models.InvoiceStatusSummary, error)
}

type InvoiceQueryService struct {
	readRepo invoiceReader
}

func NewInvoiceQueryService(readRepo invoiceReader) *InvoiceQueryService {
	return &InvoiceQueryService{readRepo: readRepo}
}

// InvoicePage is one page of a filtered invoice list.
type InvoicePage struct {
	Invoices   []models.Invoice  `json:"invoices"`
	Pagination models.Pagination `json:"pagination"`
}

func (s *InvoiceQueryService) GetInvoice(ctx context.Context, q cqrs.GetInvoiceQuery) (*models.Invoice, error) {
	inv, err := s.readRepo.GetByID(ctx, q.InvoiceID)
	if err != nil {
		return nil, err
	}
	if inv.OrganizationID != q.OrganizationID {
		return nil, apperr.NotFound("invoice")
	}
	return inv, nil
}

func (s *InvoiceQueryService) ListInvoices(ctx context.Context, q cqrs.ListInvoicesQuery) (*InvoicePage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	invoices, total, err := s.readRepo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &InvoicePage{Invoices: invoices, Pagination: models.NewPagination(q.Page, q.Limit, total)}, nil
}

// GetStats summarises the organization's invoices. Cancelled invoices are
// counted per status but excluded from the money totals.
func (s *InvoiceQueryService) GetStats(ctx context.Context, q cqrs.InvoiceStatsQuery) (*models.InvoiceStats, error) {
	byStatus, err := s.readRepo.StatusTotals(ctx, q.OrganizationID)
	if err != nil {
		return nil, err
	}
	return BuildStats(byStatus), nil
}

func BuildStats(byStatus map[string]models.InvoiceStatusSummary) *models.InvoiceStats {
	stats := &models.InvoiceStats{ByStatus: map[string]models.InvoiceStatusSummary{}}
	for _, status := range []string{
		models.InvoiceStatusDraft, models.InvoiceStatusSent, models.InvoiceStatusPaid,
		models.InvoiceStatusOverdue, models.InvoiceStatusCancelled,
	} {
		summary := byStatus[status]
		summary.Amount = utils.RoundMoney(summary.Amount)
		stats.ByStatus[status] = summary
		stats.TotalInvoices += summary.Count
		if status != models.InvoiceStatusCancelled {
			stats.TotalAmount += summary.Amount
		}
	}
	stats.TotalAmount = utils.RoundMoney(stats.TotalAmount)
	stats.PaidAmount = stats.ByStatus[models.InvoiceStatusPaid].Amount
	stats.OverdueAmount = stats.ByStatus[models.InvoiceStatusOverdue].Amount
	stats.OutstandingAmount = utils.RoundMoney(stats.TotalAmount - stats.PaidAmount)
	return stats
}
