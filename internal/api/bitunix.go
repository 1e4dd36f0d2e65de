package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"bitunix-tradezella-sync/internal/logger"
	"bitunix-tradezella-sync/internal/metrics"
	"bitunix-tradezella-sync/internal/model"
)

const (
	BaseURL = "https://fapi.bitunix.com"

	historyTradesEndpoint = "/api/v1/futures/trade/get_history_trades"

	DefaultPageSize = 100
)

var (
	// ErrAuth reports rejected credentials or a rejected signature.
	ErrAuth = errors.New("authentication rejected")

	// ErrMalformedResponse reports an upstream payload that does not match
	// the documented contract.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

type BitunixClient struct {
	APIKey    string
	SecretKey string
	BaseURL   string
	Client    *http.Client
	PageSize  int
	Retry     *RetryPolicy
	Report    *metrics.RunReport
}

func NewBitunixClient(apiKey, secretKey string, retry *RetryPolicy) *BitunixClient {
	return &BitunixClient{
		APIKey:    apiKey,
		SecretKey: secretKey,
		BaseURL:   BaseURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
		PageSize:  DefaultPageSize,
		Retry:     retry,
	}
}

type historyResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type historyData struct {
	TradeList []wireTrade `json:"tradeList"`
}

// wireTrade mirrors one item of data.tradeList. Decimal fields arrive as JSON
// strings or numbers; both decode.
type wireTrade struct {
	TradeID     string          `json:"tradeId"`
	OrderID     string          `json:"orderId"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Qty         decimal.Decimal `json:"qty"`
	Price       decimal.Decimal `json:"price"`
	Fee         decimal.Decimal `json:"fee"`
	RealizedPNL decimal.Decimal `json:"realizedPNL"`
	Ctime       json.Number     `json:"ctime"`
}

// fetchPage retrieves one history page at the given skip offset, retrying
// transient failures under the client's policy.
func (c *BitunixClient) fetchPage(sinceMs int64, skip int) ([]model.TradeRecord, error) {
	params := map[string]string{
		"startTime": strconv.FormatInt(sinceMs, 10),
		"skip":      strconv.Itoa(skip),
		"limit":     strconv.Itoa(c.pageSize()),
	}

	var page []model.TradeRecord
	op := func() error {
		var err error
		page, err = c.requestPage(params)
		return err
	}

	if c.Retry != nil {
		if err := c.Retry.do(op); err != nil {
			return nil, err
		}
		return page, nil
	}
	if err := op(); err != nil {
		return nil, err
	}
	return page, nil
}

func (c *BitunixClient) requestPage(params map[string]string) ([]model.TradeRecord, error) {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	nonce := newNonce()

	sign, err := Sign(c.APIKey, c.SecretKey, nonce, timestamp, params, nil)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	reqURL := fmt.Sprintf("%s%s?%s", c.BaseURL, historyTradesEndpoint, query.Encode())

	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api-key", c.APIKey)
	req.Header.Set("timestamp", timestamp)
	req.Header.Set("nonce", nonce)
	req.Header.Set("sign", sign)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransient, err)
	}

	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var envelope historyResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		logger.Error("Bitunix API returned undecodable body", "body", string(body))
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if envelope.Code != 0 {
		return nil, fmt.Errorf("%w: api code %d: %s", ErrAuth, envelope.Code, envelope.Msg)
	}

	var data historyData
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, fmt.Errorf("%w: decoding tradeList: %v", ErrMalformedResponse, err)
		}
	}

	page := make([]model.TradeRecord, 0, len(data.TradeList))
	for _, w := range data.TradeList {
		tr, err := normalizeTrade(w)
		if err != nil {
			return nil, fmt.Errorf("%w: trade %q: %v", ErrMalformedResponse, w.TradeID, err)
		}
		page = append(page, tr)
	}

	sortPage(page)
	c.Report.PageFetched(len(page))
	return page, nil
}

// classifyStatus maps HTTP status codes onto the error taxonomy: 401/403 are
// auth rejections, 408/429/5xx are transient, anything else non-2xx violates
// the documented contract.
func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrAuth, status, string(body))
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrTransient, status, string(body))
	default:
		return fmt.Errorf("%w: unexpected status %d: %s", ErrMalformedResponse, status, string(body))
	}
}

// normalizeTrade maps a wire item onto the internal record. The endpoint
// reports single fills, so the execution time and price fill both the open
// and close slots.
func normalizeTrade(w wireTrade) (model.TradeRecord, error) {
	side, err := model.ParseSide(w.Side)
	if err != nil {
		return model.TradeRecord{}, err
	}

	var ctime int64
	if w.Ctime != "" {
		ctime, err = w.Ctime.Int64()
		if err != nil {
			return model.TradeRecord{}, fmt.Errorf("bad ctime %q: %w", string(w.Ctime), err)
		}
	}

	return model.TradeRecord{
		TradeID:     w.TradeID,
		OrderID:     w.OrderID,
		Symbol:      w.Symbol,
		Side:        side,
		OpenTime:    ctime,
		CloseTime:   ctime,
		Quantity:    w.Qty,
		EntryPrice:  w.Price,
		ExitPrice:   w.Price,
		RealizedPnl: w.RealizedPNL,
		Fees:        w.Fee,
	}, nil
}

// sortPage orders a page by execution time, trade id breaking ties. The
// upstream does not guarantee intra-page order near concurrent fills.
func sortPage(page []model.TradeRecord) {
	sort.SliceStable(page, func(i, j int) bool {
		if page[i].CloseTime != page[j].CloseTime {
			return page[i].CloseTime < page[j].CloseTime
		}
		return model.CompareTradeIDs(page[i].TradeID, page[j].TradeID) < 0
	})
}

func (c *BitunixClient) pageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return DefaultPageSize
}
