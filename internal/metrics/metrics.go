package metrics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"bitunix-tradezella-sync/internal/config"
	"bitunix-tradezella-sync/internal/logger"
)

// RunReport accumulates counters for a single sync run. A nil report is valid
// and counts nothing, so optional wiring needs no checks at call sites.
type RunReport struct {
	StartedAt  time.Time
	Pages      int64
	Fetched    int64
	Duplicates int64
	Written    int64
	Retries    int64

	cfg *config.Config
}

// ReportPayload is the JSON body POSTed to the metrics API.
type ReportPayload struct {
	Tool       string `json:"tool"`
	Pages      string `json:"pages"`
	Fetched    string `json:"fetched"`
	Duplicates string `json:"duplicates"`
	Written    string `json:"written"`
	Retries    string `json:"retries"`
	Duration   string `json:"durationSeconds"`
	FinishedAt string `json:"finishedAt"`
}

func NewRunReport(cfg *config.Config) *RunReport {
	return &RunReport{
		StartedAt: time.Now(),
		cfg:       cfg,
	}
}

func (r *RunReport) PageFetched(records int) {
	if r == nil {
		return
	}
	r.Pages++
	r.Fetched += int64(records)
}

func (r *RunReport) DuplicateSkipped() {
	if r == nil {
		return
	}
	r.Duplicates++
}

func (r *RunReport) RowsWritten(n int) {
	if r == nil {
		return
	}
	r.Written += int64(n)
}

func (r *RunReport) RetryAttempt() {
	if r == nil {
		return
	}
	r.Retries++
}

func (r *RunReport) Duration() time.Duration {
	if r == nil {
		return 0
	}
	return time.Since(r.StartedAt)
}

// LogSummary writes the run counters to the log.
func (r *RunReport) LogSummary() {
	if r == nil {
		return
	}
	logger.Info("Sync run metrics",
		"pages", r.Pages,
		"fetched", r.Fetched,
		"duplicates", r.Duplicates,
		"written", r.Written,
		"retries", r.Retries,
		"duration_ms", r.Duration().Milliseconds(),
	)
}

// Publish sends the report to the configured metrics API. Best effort:
// failures are logged and never abort the run.
func (r *RunReport) Publish() {
	if r == nil || r.cfg == nil || r.cfg.MetricsAPIURL == "" {
		return
	}

	payload := ReportPayload{
		Tool:       "bitunix-tradezella-sync",
		Pages:      fmt.Sprintf("%d", r.Pages),
		Fetched:    fmt.Sprintf("%d", r.Fetched),
		Duplicates: fmt.Sprintf("%d", r.Duplicates),
		Written:    fmt.Sprintf("%d", r.Written),
		Retries:    fmt.Sprintf("%d", r.Retries),
		Duration:   fmt.Sprintf("%.3f", r.Duration().Seconds()),
		FinishedAt: time.Now().UTC().Format(time.RFC3339),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal metrics payload", "error", err)
		return
	}

	req, err := http.NewRequest("POST", r.cfg.MetricsAPIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		logger.Error("Failed to create metrics API request", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.MetricsAPIToken)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		logger.Error("Failed to send metrics to API", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		logger.Warn("Metrics API returned non-success status", "status", resp.Status)
	}
}
