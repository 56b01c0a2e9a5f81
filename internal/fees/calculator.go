package fees

import (
	"math"

	"github.com/shopspring/decimal"
)

// CalculateFee computes the platform application fee in minor units for a
// transaction total. The minimum floor is applied before the maximum cap, so
// a configured maximum always wins over a configured minimum.
func CalculateFee(totalMinorUnits int64, cfg Config) int64 {
	if totalMinorUnits <= 0 {
		return 0
	}

	variable := int64(math.Round(float64(totalMinorUnits) * cfg.PercentFee))
	fee := variable + cfg.BaseFee

	if cfg.FeeMinimum != nil && fee < *cfg.FeeMinimum {
		fee = *cfg.FeeMinimum
	}
	if fee > cfg.MaxFee {
		fee = cfg.MaxFee
	}

	return fee
}

// Breakdown is a diagnostic view of every intermediate quantity in the fee
// formula, for audit and logging. It must agree numerically with
// CalculateFee for the same inputs.
type Breakdown struct {
	PercentRate    float64 `json:"percent_rate"`
	PercentAmount  int64   `json:"percent_amount"`
	BaseFee        int64   `json:"base_fee"`
	Subtotal       int64   `json:"subtotal"`
	MinimumApplied bool    `json:"minimum_applied"`
	FeeMinimum     *int64  `json:"fee_minimum,omitempty"`
	MaxFee         int64   `json:"max_fee"`
	FinalFee       int64   `json:"final_fee"`
	Tier           string  `json:"tier"`
}

// GetFeeBreakdown re-derives the fee with all intermediate values exposed.
func GetFeeBreakdown(totalMinorUnits int64, cfg Config) Breakdown {
	b := Breakdown{
		PercentRate: cfg.PercentFee,
		BaseFee:     cfg.BaseFee,
		FeeMinimum:  cfg.FeeMinimum,
		MaxFee:      cfg.MaxFee,
		Tier:        cfg.Tier,
	}
	if totalMinorUnits <= 0 {
		return b
	}

	b.PercentAmount = int64(math.Round(float64(totalMinorUnits) * cfg.PercentFee))
	b.Subtotal = b.PercentAmount + cfg.BaseFee

	fee := b.Subtotal
	if cfg.FeeMinimum != nil && fee < *cfg.FeeMinimum {
		fee = *cfg.FeeMinimum
		b.MinimumApplied = true
	}
	if fee > cfg.MaxFee {
		fee = cfg.MaxFee
	}
	b.FinalFee = fee

	return b
}

// DisplayAmount renders a minor-unit amount as a whole-unit decimal string,
// e.g. 363 -> "3.63".
func DisplayAmount(minorUnits int64) string {
	return decimal.NewFromInt(minorUnits).Div(decimal.NewFromInt(100)).StringFixed(2)
}
