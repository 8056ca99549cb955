package calculator

import (
	"math"

	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
)

// FeeShare is the display breakdown of a member's portion of the bill-level
// fees, shown on their invoice. It is informational: the member's actual
// obligation is the amount that was allocated at bill creation, which
// conserves the bill total exactly, while these per-fee figures are rounded
// independently and may be off by a unit.
type FeeShare struct {
	Tax     int64 `json:"tax"`
	Service int64 `json:"service"`
	Other   int64 `json:"other"`
}

// MemberFeeShare computes a member's proportional slice of tax, service and
// tip based on the ratio of their assigned item subtotal to the bill's items
// subtotal. A zero items subtotal yields a zero share.
func MemberFeeShare(comps models.BillComponents, memberItems []models.Item) FeeShare {
	if comps.ItemsSubtotal <= 0 {
		return FeeShare{}
	}
	var memberSubtotal int64
	for i := range memberItems {
		memberSubtotal += memberItems[i].LineSubtotal
	}
	ratio := float64(memberSubtotal) / float64(comps.ItemsSubtotal)
	return FeeShare{
		Tax:     int64(math.Round(float64(comps.Tax) * ratio)),
		Service: int64(math.Round(float64(comps.Service) * ratio)),
		Other:   int64(math.Round(float64(comps.Tip) * ratio)),
	}
}
