// Package receipt turns loosely-typed extracted receipt data into canonical
// items and bill components.
//
// Upstream extraction emits records with several synonymous field names for
// the same concept (mixed Indonesian/English, varying by receipt layout).
// Alias resolution lives entirely in this package: everything downstream of
// it only ever sees canonical typed values.
package receipt

import (
	"fmt"
	"strings"

	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
	"github.com/group-2-odp-bni/be-capstone-project/internal/money"
)

// RawItem is one extracted line-item record, as decoded from JSON.
type RawItem map[string]any

// RawFees are the extracted fee/total fields of a receipt, as decoded from
// JSON. Keys are tried against the alias lists below.
type RawFees map[string]any

// Accepted source keys per concept, tried first-match in order.
var (
	nameAliases     = []string{"nama_item", "name"}
	qtyAliases      = []string{"kuantitas", "quantity", "qty"}
	unitAliases     = []string{"unit_price", "price"}
	lineAliases     = []string{"harga_total", "line_total", "subtotal"}
	taxAliases      = []string{"tax", "pajak"}
	serviceAliases  = []string{"service", "service_charge", "layanan"}
	tipAliases      = []string{"tip", "other"}
	extTotalAliases = []string{"total", "harga_total_struk"}
)

func firstPresent(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func amountOf(m map[string]any, keys []string) int64 {
	v, ok := firstPresent(m, keys)
	if !ok {
		return 0
	}
	return money.ParseAmount(v)
}

// NormalizeItems converts raw extracted line items into canonical items.
//
// Per record (1-indexed): the name defaults to "Item {i}" when missing or
// blank, the quantity defaults to 1 and is clamped to at least 1, and unit
// price / line subtotal are parsed via money.ParseAmount from their alias
// lists. Reconciliation, in order:
//
//  1. unit price <= 0 with a positive line subtotal: unit = subtotal / qty
//     (integer floor)
//  2. line subtotal <= 0: subtotal = qty * unit
//
// Line ids are assigned as L001, L002, ... so that re-normalizing the same
// input order reproduces the same ids. Never fails; malformed fields fall
// back to zero amounts.
func NormalizeItems(rawItems []RawItem) []models.Item {
	items := make([]models.Item, 0, len(rawItems))
	for idx, raw := range rawItems {
		n := idx + 1

		name := ""
		if v, ok := firstPresent(raw, nameAliases); ok {
			if s, ok := v.(string); ok {
				name = strings.TrimSpace(s)
			}
		}
		if name == "" {
			name = fmt.Sprintf("Item %d", n)
		}

		qty := int64(1)
		if v, ok := firstPresent(raw, qtyAliases); ok {
			if q := money.ParseAmount(v); q >= 1 {
				qty = q
			}
		}

		unitPrice := amountOf(raw, unitAliases)
		lineSubtotal := amountOf(raw, lineAliases)

		if unitPrice <= 0 && lineSubtotal > 0 && qty > 0 {
			unitPrice = lineSubtotal / qty
		}
		if lineSubtotal <= 0 {
			lineSubtotal = qty * unitPrice
		}

		items = append(items, models.Item{
			LineID:       fmt.Sprintf("L%03d", n),
			Name:         name,
			Quantity:     qty,
			UnitPrice:    unitPrice,
			LineSubtotal: lineSubtotal,
		})
	}
	return items
}

// ComputeComponents derives the bill's monetary breakdown from normalized
// items and extracted fee fields. The externally stated receipt total wins
// over the computed sum when present and positive, even when the two
// disagree: the receipt is the source of truth and the discrepancy is the
// extraction's problem, not ours. Pure and order-independent over items.
func ComputeComponents(fees RawFees, items []models.Item) models.BillComponents {
	var itemsSubtotal int64
	for i := range items {
		itemsSubtotal += items[i].LineSubtotal
	}

	tax := amountOf(fees, taxAliases)
	service := amountOf(fees, serviceAliases)
	tip := amountOf(fees, tipAliases)
	extTotal := amountOf(fees, extTotalAliases)

	total := itemsSubtotal + tax + service + tip
	if extTotal > 0 {
		total = extTotal
	}

	return models.BillComponents{
		ItemsSubtotal: itemsSubtotal,
		Tax:           tax,
		Service:       service,
		Tip:           tip,
		Total:         total,
	}
}
