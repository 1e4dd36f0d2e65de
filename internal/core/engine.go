package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bitunix-tradezella-sync/internal/api"
	"bitunix-tradezella-sync/internal/config"
	"bitunix-tradezella-sync/internal/logger"
	"bitunix-tradezella-sync/internal/metrics"
	"bitunix-tradezella-sync/internal/model"
)

// Stage identifies where in the run the engine currently is. Failures carry
// the stage so a broken run can be diagnosed without re-running.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageLoading    Stage = "loading_state"
	StageFetching   Stage = "fetching"
	StageExporting  Stage = "exporting"
	StageCommitting Stage = "committing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// WatermarkStore persists the export boundary between runs.
type WatermarkStore interface {
	Load(fallback model.Watermark) (model.Watermark, error)
	Save(w model.Watermark) error
}

// Appender writes normalized trades to the output.
type Appender interface {
	Append(records []model.TradeRecord) (int, error)
}

// Notifier announces run outcomes.
type Notifier interface {
	SendSyncReport(written, duplicates int64, realizedPnl decimal.Decimal, outputFile string, took time.Duration)
	SendFailureAlert(stage string, err error)
}

// Engine drives one sync run: load the watermark, stream history pages,
// filter already-exported records, append the remainder, commit the new
// watermark. The watermark is committed once, only after every append
// succeeded, so a failed run resumes from the previous boundary.
type Engine struct {
	Cfg      *config.Config
	Client   *api.BitunixClient
	State    WatermarkStore
	Exporter Appender
	Notifier Notifier
	Report   *metrics.RunReport

	start model.Watermark
	stage Stage
}

func NewEngine(cfg *config.Config, client *api.BitunixClient, state WatermarkStore, exporter Appender, notifier Notifier, report *metrics.RunReport, start model.Watermark) *Engine {
	return &Engine{
		Cfg:      cfg,
		Client:   client,
		State:    state,
		Exporter: exporter,
		Notifier: notifier,
		Report:   report,
		start:    start,
		stage:    StageIdle,
	}
}

// Stage returns the stage the engine is in, or ended in.
func (e *Engine) Stage() Stage {
	return e.stage
}

func (e *Engine) Run() error {
	e.enter(StageLoading)
	watermark, err := e.State.Load(e.start)
	if err != nil {
		return e.fail(err)
	}
	logger.Info("Sync starting",
		"last_time", watermark.LastTime,
		"last_trade_id", watermark.LastTradeID,
		"output", e.Cfg.OutputFile,
	)

	e.enter(StageFetching)
	it := e.Client.FetchTrades(watermark.LastTime)

	var (
		next       = watermark
		written    int64
		duplicates int64
		pnl        decimal.Decimal
		batch      = make([]model.TradeRecord, 0, e.batchSize())
		seen       = make(map[string]struct{})
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		e.enter(StageExporting)
		n, err := e.Exporter.Append(batch)
		if err != nil {
			return fmt.Errorf("appending %d trades: %w", len(batch), err)
		}
		e.Report.RowsWritten(n)
		written += int64(n)
		for _, r := range batch {
			next = next.Advance(r.CloseTime, r.TradeID)
			pnl = pnl.Add(r.RealizedPnl)
		}
		batch = batch[:0]
		e.enter(StageFetching)
		return nil
	}

	for it.Next() {
		tr := it.Trade()

		// Dedup against the committed boundary, then against ids already
		// emitted this run (pages can overlap under concurrent fills)
		if watermark.Covers(tr.CloseTime, tr.TradeID) {
			duplicates++
			e.Report.DuplicateSkipped()
			continue
		}
		if tr.TradeID != "" {
			if _, dup := seen[tr.TradeID]; dup {
				duplicates++
				e.Report.DuplicateSkipped()
				continue
			}
			seen[tr.TradeID] = struct{}{}
		}

		batch = append(batch, tr)
		if len(batch) >= e.batchSize() {
			if err := flush(); err != nil {
				return e.fail(err)
			}
		}
	}
	if err := it.Err(); err != nil {
		return e.fail(err)
	}
	if err := flush(); err != nil {
		return e.fail(err)
	}

	e.enter(StageCommitting)
	if written > 0 {
		if err := e.State.Save(next); err != nil {
			return e.fail(fmt.Errorf("committing watermark: %w", err))
		}
		logger.Info("Watermark committed",
			"last_time", next.LastTime,
			"last_trade_id", next.LastTradeID,
		)
	} else {
		logger.Info("No new trades since last export")
	}

	e.enter(StageDone)
	e.Report.LogSummary()
	e.Report.Publish()
	logger.Info("✅ Sync complete",
		"written", written,
		"duplicates", duplicates,
		"realized_pnl", pnl.String(),
		"output", e.Cfg.OutputFile,
	)
	if e.Notifier != nil {
		e.Notifier.SendSyncReport(written, duplicates, pnl, e.Cfg.OutputFile, e.Report.Duration())
	}
	return nil
}

func (e *Engine) enter(s Stage) {
	e.stage = s
	logger.Debug("Engine stage", "stage", string(s))
}

// fail marks the run failed, reports it, and returns the error annotated with
// the stage it happened in.
func (e *Engine) fail(err error) error {
	stage := e.stage
	e.stage = StageFailed
	logger.Error("❌ Sync failed", "stage", string(stage), "error", err)
	e.Report.LogSummary()
	if e.Notifier != nil {
		e.Notifier.SendFailureAlert(string(stage), err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// batchSize bounds how many records accumulate before an append, matching the
// fetch page size so memory stays at one page plus one pending batch.
func (e *Engine) batchSize() int {
	if e.Cfg != nil && e.Cfg.PageSize > 0 {
		return e.Cfg.PageSize
	}
	return api.DefaultPageSize
}
