package calculator

import (
	"reflect"
	"testing"

	"github.com/group-2-odp-bni/be-capstone-project/internal/models"
)

func sumShares(shares map[string]int64) int64 {
	var total int64
	for _, v := range shares {
		total += v
	}
	return total
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		weights  []Weight
		validate func(t *testing.T, shares map[string]int64)
	}{
		{
			name:    "empty weights yield empty result",
			amount:  10000,
			weights: nil,
			validate: func(t *testing.T, shares map[string]int64) {
				if len(shares) != 0 {
					t.Errorf("got %d shares, want 0", len(shares))
				}
			},
		},
		{
			name:   "three-way split of 100",
			amount: 100,
			weights: []Weight{
				{"A", 1}, {"B", 1}, {"C", 1},
			},
			validate: func(t *testing.T, shares map[string]int64) {
				got34 := 0
				for _, v := range shares {
					switch v {
					case 34:
						got34++
					case 33:
					default:
						t.Errorf("unexpected share %d", v)
					}
				}
				if got34 != 1 {
					t.Errorf("%d members got 34, want exactly 1", got34)
				}
			},
		},
		{
			name:   "proportional weights",
			amount: 10000,
			weights: []Weight{
				{"A", 3}, {"B", 1},
			},
			validate: func(t *testing.T, shares map[string]int64) {
				if shares["A"] != 7500 || shares["B"] != 2500 {
					t.Errorf("shares = %v, want A=7500 B=2500", shares)
				}
			},
		},
		{
			name:   "zero total weight falls back to equal split",
			amount: 10,
			weights: []Weight{
				{"A", 0}, {"B", 0}, {"C", 0},
			},
			validate: func(t *testing.T, shares map[string]int64) {
				// 10/3 = 3 base, first remainder member in input order gets the extra.
				if shares["A"] != 4 || shares["B"] != 3 || shares["C"] != 3 {
					t.Errorf("shares = %v, want A=4 B=3 C=3", shares)
				}
			},
		},
		{
			name:   "equal split values differ by at most one",
			amount: 100003,
			weights: []Weight{
				{"A", 0}, {"B", 0}, {"C", 0}, {"D", 0}, {"E", 0},
			},
			validate: func(t *testing.T, shares map[string]int64) {
				base := int64(100003 / 5)
				for id, v := range shares {
					if v != base && v != base+1 {
						t.Errorf("share %s = %d, want %d or %d", id, v, base, base+1)
					}
				}
			},
		},
		{
			name:   "zero amount",
			amount: 0,
			weights: []Weight{
				{"A", 2}, {"B", 1},
			},
			validate: func(t *testing.T, shares map[string]int64) {
				for id, v := range shares {
					if v != 0 {
						t.Errorf("share %s = %d, want 0", id, v)
					}
				}
			},
		},
		{
			name:   "fractional tie broken by input order",
			amount: 1,
			weights: []Weight{
				{"first", 1}, {"second", 1},
			},
			validate: func(t *testing.T, shares map[string]int64) {
				if shares["first"] != 1 || shares["second"] != 0 {
					t.Errorf("shares = %v, want the extra unit on the first member", shares)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares := Allocate(tt.amount, tt.weights)
			if len(tt.weights) > 0 && sumShares(shares) != tt.amount {
				t.Errorf("shares sum to %d, want %d", sumShares(shares), tt.amount)
			}
			for id, v := range shares {
				if v < 0 {
					t.Errorf("share %s = %d, negative", id, v)
				}
			}
			tt.validate(t, shares)
		})
	}
}

func TestAllocateConservesTotal(t *testing.T) {
	weights := []Weight{
		{"A", 0.3}, {"B", 0.15}, {"C", 7}, {"D", 1.2}, {"E", 0.001},
	}
	amounts := []int64{1, 7, 99, 100, 12345, 99999, 1000001}
	for _, amount := range amounts {
		shares := Allocate(amount, weights)
		if got := sumShares(shares); got != amount {
			t.Errorf("Allocate(%d) sums to %d", amount, got)
		}
	}
}

func TestAllocateDeterministic(t *testing.T) {
	weights := []Weight{
		{"A", 1}, {"B", 1}, {"C", 1}, {"D", 2},
	}
	first := Allocate(1000003, weights)
	for i := 0; i < 20; i++ {
		if again := Allocate(1000003, weights); !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, again, first)
		}
	}
}

func TestMemberFeeShare(t *testing.T) {
	comps := models.BillComponents{
		ItemsSubtotal: 20000,
		Tax:           2000,
		Service:       1000,
		Tip:           500,
		Total:         23500,
	}
	memberItems := []models.Item{
		{LineID: "L001", LineSubtotal: 5000},
	}

	share := MemberFeeShare(comps, memberItems)
	if share.Tax != 500 {
		t.Errorf("tax share = %d, want 500", share.Tax)
	}
	if share.Service != 250 {
		t.Errorf("service share = %d, want 250", share.Service)
	}
	if share.Other != 125 {
		t.Errorf("other share = %d, want 125", share.Other)
	}

	if got := MemberFeeShare(models.BillComponents{}, memberItems); got != (FeeShare{}) {
		t.Errorf("zero subtotal share = %+v, want zero", got)
	}
}
