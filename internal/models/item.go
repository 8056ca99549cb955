package models

// Item is a normalized receipt line item. Items are produced once by the
// receipt normalizer and never mutated afterwards.
type Item struct {
	// LineID is assigned deterministically as L001, L002, ... in input
	// order, so re-normalizing the same input yields the same ids.
	LineID string `json:"lineId" bson:"line_id"`

	Name string `json:"name" bson:"name"`

	// Quantity is always >= 1.
	Quantity int64 `json:"qty" bson:"qty"`

	// UnitPrice and LineSubtotal are minor units, reconciled against each
	// other at normalization time (see receipt.NormalizeItems).
	UnitPrice    int64 `json:"unitPrice" bson:"unit_price"`
	LineSubtotal int64 `json:"lineSubtotal" bson:"line_subtotal"`
}
