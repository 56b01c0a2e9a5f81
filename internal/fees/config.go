package fees

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/config"
)

const (
	TierStandard = "standard"
	TierCustom   = "custom"
)

// Config is the effective fee configuration for one transaction.
// PercentFee is a decimal fraction (0.033 = 3.3%), money fields are in
// minor currency units.
type Config struct {
	PercentFee float64 `json:"percent_fee"`
	BaseFee    int64   `json:"base_fee"`
	FeeMinimum *int64  `json:"fee_minimum,omitempty"`
	MaxFee     int64   `json:"max_fee"`
	Tier       string  `json:"tier"`
}

// Overrides is a store's fee customization record. Fields are expressed the
// way a store operator writes them: percent as a percentage, money in whole
// currency units. Any nil field keeps the platform default.
type Overrides struct {
	PercentageFee     *float64 `json:"percentage_fee,omitempty"`
	BaseFee           *float64 `json:"base_fee,omitempty"`
	FeeMinimum        *float64 `json:"fee_minimum,omitempty"`
	MaxApplicationFee *float64 `json:"max_application_fee,omitempty"`
}

// Value / Scan let Overrides live in a JSON column.
func (o Overrides) Value() (driver.Value, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (o *Overrides) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return fmt.Errorf("unsupported fee overrides column type %T", src)
	}
}

// DefaultsFromEnv converts the environment fee settings (whole units,
// percent) into a Config in minor units and decimal fraction.
func DefaultsFromEnv(cfg config.Fees) Config {
	return Config{
		PercentFee: cfg.PercentageFee / 100,
		BaseFee:    toMinorUnits(cfg.BaseFee),
		MaxFee:     toMinorUnits(cfg.MaxApplicationFee),
		Tier:       TierStandard,
	}
}

// Resolve applies a store's overrides on top of the platform defaults.
// Each override field is applied only when present and non-negative; a
// missing or invalid field silently keeps the default. This is the tenant
// customization cascade, it never fails a request.
func Resolve(overrides *Overrides, defaults Config) Config {
	resolved := defaults
	if overrides == nil {
		return resolved
	}

	if v := overrides.PercentageFee; v != nil && *v >= 0 {
		resolved.PercentFee = *v / 100
		resolved.Tier = TierCustom
	}
	if v := overrides.BaseFee; v != nil && *v >= 0 {
		resolved.BaseFee = toMinorUnits(*v)
		resolved.Tier = TierCustom
	}
	if v := overrides.FeeMinimum; v != nil && *v >= 0 {
		minimum := toMinorUnits(*v)
		resolved.FeeMinimum = &minimum
		resolved.Tier = TierCustom
	}
	if v := overrides.MaxApplicationFee; v != nil && *v >= 0 {
		resolved.MaxFee = toMinorUnits(*v)
		resolved.Tier = TierCustom
	}

	return resolved
}

// toMinorUnits converts a whole-currency amount to minor units, rounding to
// the nearest integer. decimal avoids float drift on amounts like 0.33.
func toMinorUnits(wholeUnits float64) int64 {
	return decimal.NewFromFloat(wholeUnits).
		Mul(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
