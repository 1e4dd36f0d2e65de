package model

import "strings"

// Watermark marks the boundary of already-exported history. LastTradeID breaks
// ties between fills sharing the same millisecond; empty means time-only state
// written by an older run.
type Watermark struct {
	LastTime    int64  `json:"last_time"`
	LastTradeID string `json:"last_trade_id,omitempty"`
}

// Covers reports whether a record at (closeTime, tradeID) is already exported.
// Records exactly at the boundary count as exported unless their id is greater
// than the stored tie-break id.
func (w Watermark) Covers(closeTime int64, tradeID string) bool {
	if closeTime != w.LastTime {
		return closeTime < w.LastTime
	}
	if w.LastTradeID == "" || tradeID == "" {
		return true
	}
	return CompareTradeIDs(tradeID, w.LastTradeID) <= 0
}

// Advance returns the watermark moved forward to (closeTime, tradeID) when that
// position is later. It never moves backwards.
func (w Watermark) Advance(closeTime int64, tradeID string) Watermark {
	if closeTime > w.LastTime {
		return Watermark{LastTime: closeTime, LastTradeID: tradeID}
	}
	if closeTime == w.LastTime && CompareTradeIDs(tradeID, w.LastTradeID) > 0 {
		return Watermark{LastTime: w.LastTime, LastTradeID: tradeID}
	}
	return w
}

// CompareTradeIDs orders exchange trade ids. Numeric ids compare by magnitude
// regardless of string length; anything else falls back to lexicographic order.
func CompareTradeIDs(a, b string) int {
	if isDigits(a) && isDigits(b) {
		at := strings.TrimLeft(a, "0")
		bt := strings.TrimLeft(b, "0")
		if len(at) != len(bt) {
			if len(at) < len(bt) {
				return -1
			}
			return 1
		}
		return strings.Compare(at, bt)
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
