// Package valuation prices on-hand stock from its receipt cost layers.
package valuation

import (
	"sort"
	"time"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/models"
	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/utils"
)

// Receipt is one inbound cost layer.
type Receipt struct {
	Quantity float64
	UnitCost float64
	At       time.Time
}

type ItemValue struct {
	ItemID      string  `json:"itemId"`
	SKU         string  `json:"sku"`
	Name        string  `json:"name"`
	Method      string  `json:"valuationMethod"`
	Quantity    float64 `json:"quantity"`
	UnitCost    float64 `json:"unitCost"`
	TotalValue  float64 `json:"totalValue"`
	AverageCost float64 `json:"averageCost"`
}

// Value prices onHand units of the item. FIFO treats the units still on hand
// as the newest receipts, LIFO as the oldest. Units not covered by a receipt
// are priced at the item's unit cost.
func Value(item models.InventoryItem, onHand float64, receipts []Receipt) ItemValue {
	v := ItemValue{
		ItemID:   item.ID,
		SKU:      item.SKU,
		Name:     item.Name,
		Method:   item.ValuationMethod,
		Quantity: onHand,
		UnitCost: item.UnitCost,
	}
	if onHand <= 0 {
		return v
	}

	layers := append([]Receipt(nil), receipts...)
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].At.Before(layers[j].At) })

	var total float64
	switch item.ValuationMethod {
	case models.ValuationWeightedAverage:
		var qty, cost float64
		for _, l := range layers {
			qty += l.Quantity
			cost += l.Quantity * l.UnitCost
		}
		avg := item.UnitCost
		if qty > 0 {
			avg = cost / qty
		}
		total = onHand * avg
	default:
		if item.ValuationMethod != models.ValuationLIFO {
			for i, j := 0, len(layers)-1; i < j; i, j = i+1, j-1 {
				layers[i], layers[j] = layers[j], layers[i]
			}
		}
		remaining := onHand
		for _, l := range layers {
			if remaining <= 0 {
				break
			}
			take := l.Quantity
			if take > remaining {
				take = remaining
			}
			total += take * l.UnitCost
			remaining -= take
		}
		total += remaining * item.UnitCost
	}
	v.TotalValue = utils.RoundMoney(total)
	v.AverageCost = utils.RoundMoney(total / onHand)
	return v
}

type Report struct {
	AsOf       time.Time          `json:"asOf"`
	Items      []ItemValue        `json:"items"`
	TotalValue float64            `json:"totalValue"`
	ByMethod   map[string]float64 `json:"byMethod"`
}

// Summarize totals item values, largest first.
func Summarize(asOf time.Time, items []ItemValue) Report {
	r := Report{AsOf: asOf, Items: append([]ItemValue{}, items...), ByMethod: map[string]float64{}}
	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].TotalValue > r.Items[j].TotalValue })
	for _, it := range r.Items {
		r.TotalValue += it.TotalValue
		r.ByMethod[it.Method] = utils.RoundMoney(r.ByMethod[it.Method] + it.TotalValue)
	}
	r.TotalValue = utils.RoundMoney(r.TotalValue)
	return r
}
