package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitunix-tradezella-sync/internal/config"
	"bitunix-tradezella-sync/internal/logger"
)

// TelegramService posts run summaries to a Telegram chat. It stays silent when
// no token/chat id is configured.
type TelegramService struct {
	Cfg *config.Config

	// APIBaseURL overrides the Telegram endpoint, for tests.
	APIBaseURL string
}

func NewTelegramService(cfg *config.Config) *TelegramService {
	return &TelegramService{
		Cfg: cfg,
	}
}

func (s *TelegramService) SendMessage(text string) {
	if s.Cfg.TelegramToken == "" || s.Cfg.TelegramChatID == "" {
		logger.Debug("Telegram credentials not set, skipping message")
		return
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiBase(), s.Cfg.TelegramToken)
	payload := map[string]string{
		"chat_id":    s.Cfg.TelegramChatID,
		"text":       text,
		"parse_mode": "Markdown",
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal Telegram payload", "error", err)
		return
	}

	// Synchronous send: the process exits right after the run summary
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewBuffer(jsonPayload))
	if err != nil {
		logger.Error("Failed to send Telegram message", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Error("Telegram API error", "status", resp.Status)
	}
}

// SendSyncReport announces a completed run.
func (s *TelegramService) SendSyncReport(written, duplicates int64, realizedPnl decimal.Decimal, outputFile string, took time.Duration) {
	now := time.Now().UTC().Format("02/01/2006, 15:04:05")

	msg := fmt.Sprintf(
		"🤖 Bitunix Trade Sync\n"+
			"✅ Status: Complete\n"+
			"📦 New Trades: %d\n"+
			"♻️ Duplicates Skipped: %d\n"+
			"💰 Realized PnL: %s\n"+
			"📄 Output: %s\n"+
			"⏱ Took: %s\n"+
			"📅 Date: %s UTC",
		written,
		duplicates,
		realizedPnl.String(),
		s.escapeMarkdown(outputFile),
		took.Round(time.Millisecond),
		now,
	)
	s.SendMessage(msg)
}

// SendFailureAlert announces an aborted run and the stage it died in.
func (s *TelegramService) SendFailureAlert(stage string, err error) {
	now := time.Now().UTC().Format("02/01/2006, 15:04:05")

	msg := fmt.Sprintf(
		"🤖 Bitunix Trade Sync\n"+
			"❌ Status: Failed\n"+
			"📍 Stage: %s\n"+
			"🛑 Error: %s\n"+
			"📅 Date: %s UTC",
		stage,
		s.escapeMarkdown(err.Error()),
		now,
	)
	s.SendMessage(msg)
}

func (s *TelegramService) apiBase() string {
	if s.APIBaseURL != "" {
		return s.APIBaseURL
	}
	return "https://api.telegram.org"
}

func (s *TelegramService) escapeMarkdown(text string) string {
	// Replace _ with \_ to prevent Markdown parsing errors
	return strings.ReplaceAll(text, "_", "\\_")
}
