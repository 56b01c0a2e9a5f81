package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cuongnguyenngoc/marketplace-payments/internal/fees"
)

const (
	FeesRetrievalSuccess = "success"
	FeesRetrievalFailed  = "failed"

	ActualFeesSourceLedger       = "balance_transaction"
	ActualFeesSourceChargeLookup = "charge_lookup"
)

// ActualFees is the settled fee record retrieved from the processor's
// ledger, or the degraded charge-lookup fallback when the ledger entry is
// not yet available.
type ActualFees struct {
	FeesMinorUnits   int64     `json:"fees_minor_units"`
	NetMinorUnits    int64     `json:"net_minor_units"`
	AmountMinorUnits int64     `json:"amount_minor_units"`
	RetrievedAt      time.Time `json:"retrieved_at"`
	Source           string    `json:"source"`
}

// OrderExtra is the order's open metadata bag: fee breakdowns, processor
// identifiers, and reconciliation flags. Known sub-records are typed; keys
// written by other consumers are preserved verbatim in Unknown so an
// additive merge never drops them.
type OrderExtra struct {
	FeeInfo                *fees.Info  `json:"fee_info,omitempty"`
	ActualFees             *ActualFees `json:"stripe_actual_fees,omitempty"`
	FeesRetrievalStatus    string      `json:"fees_retrieval_status,omitempty"`
	FeesRetrievalError     string      `json:"fees_retrieval_error,omitempty"`
	FeesRetrievalAt        *time.Time  `json:"fees_retrieval_at,omitempty"`
	InventoryDecremented   bool        `json:"inventory_decremented,omitempty"`
	InventoryDecrementedAt *time.Time  `json:"inventory_decremented_at,omitempty"`
	PaymentIntentID        string      `json:"payment_intent_id,omitempty"`
	SessionID              string      `json:"checkout_session_id,omitempty"`

	Unknown map[string]json.RawMessage `json:"-"`
}

// knownExtraKeys must list every tagged field above so unknown keys can be
// separated out on decode.
var knownExtraKeys = []string{
	"fee_info",
	"stripe_actual_fees",
	"fees_retrieval_status",
	"fees_retrieval_error",
	"fees_retrieval_at",
	"inventory_decremented",
	"inventory_decremented_at",
	"payment_intent_id",
	"checkout_session_id",
}

// extraAlias avoids recursing into the custom codec.
type extraAlias OrderExtra

func (e OrderExtra) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(extraAlias(e))
	if err != nil {
		return nil, err
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range e.Unknown {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}

	return json.Marshal(merged)
}

func (e *OrderExtra) UnmarshalJSON(data []byte) error {
	var alias extraAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownExtraKeys {
		delete(raw, k)
	}
	if len(raw) > 0 {
		alias.Unknown = raw
	}

	*e = OrderExtra(alias)
	return nil
}

func (e OrderExtra) Value() (driver.Value, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (e *OrderExtra) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	default:
		return fmt.Errorf("unsupported extra column type %T", src)
	}
}

// Merge applies the set fields of patch onto e, leaving every other key
// untouched. The inventory flag only ever merges from false to true.
func (e *OrderExtra) Merge(patch *OrderExtra) {
	if patch == nil {
		return
	}

	if patch.FeeInfo != nil {
		e.FeeInfo = patch.FeeInfo
	}
	if patch.ActualFees != nil {
		e.ActualFees = patch.ActualFees
	}
	if patch.FeesRetrievalStatus != "" {
		e.FeesRetrievalStatus = patch.FeesRetrievalStatus
	}
	if patch.FeesRetrievalError != "" {
		e.FeesRetrievalError = patch.FeesRetrievalError
	}
	if patch.FeesRetrievalAt != nil {
		e.FeesRetrievalAt = patch.FeesRetrievalAt
	}
	if patch.InventoryDecremented {
		e.InventoryDecremented = true
	}
	if patch.InventoryDecrementedAt != nil {
		e.InventoryDecrementedAt = patch.InventoryDecrementedAt
	}
	if patch.PaymentIntentID != "" {
		e.PaymentIntentID = patch.PaymentIntentID
	}
	if patch.SessionID != "" {
		e.SessionID = patch.SessionID
	}
	for k, v := range patch.Unknown {
		if e.Unknown == nil {
			e.Unknown = map[string]json.RawMessage{}
		}
		e.Unknown[k] = v
	}
}
