package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a futures execution.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// ParseSide normalizes the exchange's side value (buy/sell, any casing).
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return SideLong, nil
	case "sell":
		return SideShort, nil
	default:
		return "", fmt.Errorf("unknown trade side %q", s)
	}
}

// TradeRecord is one normalized execution from the trade history endpoint.
// The endpoint reports single fills, so open/close time and entry/exit price
// carry the same execution values.
type TradeRecord struct {
	TradeID     string
	OrderID     string
	Symbol      string
	Side        Side
	OpenTime    int64 // ms since epoch, UTC
	CloseTime   int64 // ms since epoch, UTC
	Quantity    decimal.Decimal
	EntryPrice  decimal.Decimal
	ExitPrice   decimal.Decimal
	RealizedPnl decimal.Decimal
	Fees        decimal.Decimal
}

// ClosedAt returns the execution time as a UTC wall clock.
func (t TradeRecord) ClosedAt() time.Time {
	return time.UnixMilli(t.CloseTime).UTC()
}
