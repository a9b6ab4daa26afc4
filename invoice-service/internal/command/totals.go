package command

import (
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/cqrs"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// BuildItems prices each line at quantity × unit price, rounded to cents.
func BuildItems(inputs []cqrs.InvoiceItemInput) []models.InvoiceItem {
	items := make([]models.InvoiceItem, len(inputs))
	for i, in := range inputs {
		items[i] = models.InvoiceItem{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Amount:      utils.RoundMoney(in.Quantity * in.UnitPrice),
		}
	}
	return items
}

// ApplyTotals recomputes subtotal, discount, tax and total from the items and
// the two percentage rates. Tax is charged on the discounted subtotal.
func ApplyTotals(inv *models.Invoice) {
	var subtotal float64
	for _, item := range inv.Items {
		subtotal += item.Amount
	}
	inv.Subtotal = utils.RoundMoney(subtotal)
	inv.DiscountAmount = utils.RoundMoney(inv.Subtotal * inv.DiscountRate / 100)
	inv.TaxAmount = utils.RoundMoney((inv.Subtotal - inv.DiscountAmount) * inv.TaxRate / 100)
	inv.Total = utils.RoundMoney(inv.Subtotal - inv.DiscountAmount + inv.TaxAmount)
}

var transitions = map[string][]string{
	models.InvoiceStatusDraft:   {models.InvoiceStatusSent, models.InvoiceStatusCancelled},
	models.InvoiceStatusSent:    {models.InvoiceStatusPaid, models.InvoiceStatusOverdue, models.InvoiceStatusCancelled},
	models.InvoiceStatusOverdue: {models.InvoiceStatusPaid, models.InvoiceStatusCancelled},
}

// CanTransition reports whether an invoice may move from one status to another.
// Paid and cancelled invoices are final.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
