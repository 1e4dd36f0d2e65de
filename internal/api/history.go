package api

import (
	"fmt"

	"bitunix-tradezella-sync/internal/model"
)

// TradeIterator walks the trade history one page at a time, oldest first.
// It follows the scanner pattern: Next advances, Trade returns the current
// record, Err reports the failure that terminated the walk. The sequence is
// restartable only by calling FetchTrades again.
type TradeIterator struct {
	client *BitunixClient
	since  int64
	skip   int
	page   []model.TradeRecord
	idx    int
	last   bool
	err    error
}

// FetchTrades returns a lazy sequence of history trades executed at or after
// sinceMs. The window intentionally overlaps the boundary; filtering already
// exported records is the caller's concern.
func (c *BitunixClient) FetchTrades(sinceMs int64) *TradeIterator {
	return &TradeIterator{
		client: c,
		since:  sinceMs,
		idx:    -1,
	}
}

// Next advances to the following record, fetching the next page when the
// current one is exhausted. It returns false at the end of history or on
// failure; check Err afterwards.
func (it *TradeIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.idx++
	for it.idx >= len(it.page) {
		if it.last {
			return false
		}
		page, err := it.client.fetchPage(it.since, it.skip)
		if err != nil {
			it.err = fmt.Errorf("history page at skip %d: %w", it.skip, err)
			return false
		}
		it.skip += len(page)
		if len(page) < it.client.pageSize() {
			it.last = true
		}
		it.page = page
		it.idx = 0
	}
	return true
}

// Trade returns the record Next advanced to.
func (it *TradeIterator) Trade() model.TradeRecord {
	return it.page[it.idx]
}

// Err returns the error that terminated iteration, if any.
func (it *TradeIterator) Err() error {
	return it.err
}
