package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type Balances struct {
	KPoint int64
	RKGEN  decimal.Decimal
}

// MarshalJSON emits both balances as JSON numbers.
func (b Balances) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		KPoint int64   `json:"kpoint"`
		RKGEN  float64 `json:"rkgen"`
	}{
		KPoint: b.KPoint,
		RKGEN:  b.RKGEN.InexactFloat64(),
	})
}

// BalanceReport is the response of the balance endpoint.
type BalanceReport struct {
	UserID      string   `json:"user_id"`
	DisplayName string   `json:"display_name"`
	Balances    Balances `json:"balances"`
}
