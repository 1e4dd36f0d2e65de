package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"time"

	"bitunix-tradezella-sync/internal/model"
)

// ErrWrite reports an output file failure. Fatal: the engine must not advance
// the watermark past rows it cannot confirm on disk.
var ErrWrite = errors.New("csv write failed")

// header is the TradeZella Generic Template column set. Fixed by the import
// tool; order matters.
var header = []string{
	"Date", "Time", "Symbol", "Buy/Sell", "Quantity", "Price",
	"Spread", "Expiration", "Strike", "Call/Put", "Commission", "Fees",
}

// Exporter appends normalized trades to a TradeZella Generic Template CSV.
// Rows already in the file are never rewritten or reordered.
type Exporter struct {
	Path string
}

func NewExporter(path string) *Exporter {
	return &Exporter{Path: path}
}

// Append writes one row per record in input order, creating the file with a
// header first when it does not exist yet. It returns the number of rows
// confirmed on disk; on error the count is zero and the batch must not be
// considered exported.
func (e *Exporter) Append(records []model.TradeRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	fileExists := false
	if _, err := os.Stat(e.Path); err == nil {
		fileExists = true
	}

	f, err := os.OpenFile(e.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("%w: opening %s: %v", ErrWrite, e.Path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if !fileExists {
		if err := w.Write(header); err != nil {
			return 0, fmt.Errorf("%w: header: %v", ErrWrite, err)
		}
	}

	for _, r := range records {
		if err := w.Write(rowFor(r)); err != nil {
			return 0, fmt.Errorf("%w: trade %s: %v", ErrWrite, r.TradeID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("%w: flushing %s: %v", ErrWrite, e.Path, err)
	}
	if err := f.Sync(); err != nil {
		return 0, fmt.Errorf("%w: syncing %s: %v", ErrWrite, e.Path, err)
	}
	return len(records), nil
}

// rowFor projects a record onto the Generic Template columns. Date and Time
// are UTC, Spread is always Crypto, the options columns stay empty and the
// exchange fee lands in Commission.
func rowFor(r model.TradeRecord) []string {
	closed := r.ClosedAt()
	return []string{
		csvDate(closed),
		closed.Format("15:04:05"),
		r.Symbol,
		buySell(r.Side),
		r.Quantity.String(),
		r.ExitPrice.String(),
		"Crypto",
		"",
		"",
		"",
		r.Fees.String(),
		"",
	}
}

// csvDate renders m/d/yy without zero padding, the date form the import
// tool expects.
func csvDate(t time.Time) string {
	return fmt.Sprintf("%d/%d/%d", int(t.Month()), t.Day(), t.Year()%100)
}

func buySell(s model.Side) string {
	if s == model.SideShort {
		return "SELL"
	}
	return "BUY"
}
