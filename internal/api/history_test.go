package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"bitunix-tradezella-sync/internal/model"
)

const (
	testAPIKey = "test-api-key"
	testSecret = "test-secret-key"
)

func historyTrade(id string, ctime int64, side string) map[string]interface{} {
	return map[string]interface{}{
		"tradeId":     id,
		"orderId":     "o" + id,
		"symbol":      "BTCUSDT",
		"side":        side,
		"qty":         "0.5",
		"price":       "50000",
		"fee":         "0.05",
		"realizedPNL": "12.5",
		"ctime":       ctime,
	}
}

func historyEnvelope(trades ...map[string]interface{}) map[string]interface{} {
	if trades == nil {
		trades = []map[string]interface{}{}
	}
	return map[string]interface{}{
		"code": 0,
		"msg":  "success",
		"data": map[string]interface{}{
			"tradeList": trades,
		},
	}
}

func newTestClient(serverURL string) *BitunixClient {
	c := NewBitunixClient(testAPIKey, testSecret, nil)
	c.BaseURL = serverURL
	return c
}

func collect(t *testing.T, it *TradeIterator) []model.TradeRecord {
	t.Helper()
	var out []model.TradeRecord
	for it.Next() {
		out = append(out, it.Trade())
	}
	require.NoError(t, it.Err())
	return out
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestFetchTrades_Pagination(t *testing.T) {
	pages := map[string][]map[string]interface{}{
		"0": {historyTrade("1", 100, "buy"), historyTrade("2", 200, "sell")},
		"2": {historyTrade("3", 300, "buy"), historyTrade("4", 400, "buy")},
		"4": {historyTrade("5", 500, "sell")},
	}

	var gotSkips, gotLimits, gotStarts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotSkips = append(gotSkips, q.Get("skip"))
		gotLimits = append(gotLimits, q.Get("limit"))
		gotStarts = append(gotStarts, q.Get("startTime"))
		json.NewEncoder(w).Encode(historyEnvelope(pages[q.Get("skip")]...))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.PageSize = 2

	trades := collect(t, client.FetchTrades(1747785600000))

	require.Len(t, trades, 5)
	for i, want := range []string{"1", "2", "3", "4", "5"} {
		require.Equal(t, want, trades[i].TradeID)
	}

	// Short final page ends the walk without an extra request
	require.Equal(t, []string{"0", "2", "4"}, gotSkips)
	require.Equal(t, []string{"2", "2", "2"}, gotLimits)
	require.Equal(t, []string{"1747785600000", "1747785600000", "1747785600000"}, gotStarts)
}

func TestFetchTrades_EmptyHistory(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		json.NewEncoder(w).Encode(historyEnvelope())
	}))
	defer server.Close()

	trades := collect(t, newTestClient(server.URL).FetchTrades(0))

	require.Empty(t, trades)
	require.Equal(t, 1, requests)
}

func TestFetchTrades_SignedRequest(t *testing.T) {
	var (
		gotPath    string
		gotHeaders http.Header
		gotQuery   url.Values
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(historyEnvelope(historyTrade("1", 1747789200000, "buy")))
	}))
	defer server.Close()

	trades := collect(t, newTestClient(server.URL).FetchTrades(1747785600000))
	require.Len(t, trades, 1)

	require.Equal(t, "/api/v1/futures/trade/get_history_trades", gotPath)
	require.Equal(t, testAPIKey, gotHeaders.Get("api-key"))
	require.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	require.NotEmpty(t, gotHeaders.Get("nonce"))

	ts := gotHeaders.Get("timestamp")
	ms, err := strconv.ParseInt(ts, 10, 64)
	require.NoError(t, err)
	require.InDelta(t, time.Now().UnixMilli(), ms, 60_000)

	// The server can reproduce the signature from the request alone
	params := map[string]string{}
	for k := range gotQuery {
		params[k] = gotQuery.Get(k)
	}
	want, err := Sign(testAPIKey, testSecret, gotHeaders.Get("nonce"), ts, params, nil)
	require.NoError(t, err)
	require.Equal(t, want, gotHeaders.Get("sign"))
}

func TestFetchTrades_SortsWithinPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(historyEnvelope(
			historyTrade("30", 300, "buy"),
			historyTrade("10", 100, "sell"),
			historyTrade("21", 200, "buy"),
			historyTrade("20", 200, "buy"),
		))
	}))
	defer server.Close()

	trades := collect(t, newTestClient(server.URL).FetchTrades(0))

	require.Len(t, trades, 4)
	for i, want := range []string{"10", "20", "21", "30"} {
		require.Equal(t, want, trades[i].TradeID)
	}
}

func TestFetchTrades_AuthRejected(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":10003,"msg":"invalid api key"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.Retry = NewRetryPolicy(5, time.Millisecond, time.Millisecond, 2.0)

	it := client.FetchTrades(0)
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), ErrAuth)

	// Auth failures are not retried
	require.Equal(t, 1, requests)
}

func TestFetchTrades_EnvelopeCodeRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"code": 1006,
			"msg":  "signature error",
		})
	}))
	defer server.Close()

	it := newTestClient(server.URL).FetchTrades(0)
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), ErrAuth)
	require.Contains(t, it.Err().Error(), "1006")
	require.Contains(t, it.Err().Error(), "signature error")
}

func TestFetchTrades_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway error</html>"))
	}))
	defer server.Close()

	it := newTestClient(server.URL).FetchTrades(0)
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), ErrMalformedResponse)
}

func TestFetchTrades_UnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	it := newTestClient(server.URL).FetchTrades(0)
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), ErrMalformedResponse)
}

func TestFetchTrades_BadSideValue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(historyEnvelope(historyTrade("77", 100, "hold")))
	}))
	defer server.Close()

	it := newTestClient(server.URL).FetchTrades(0)
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), ErrMalformedResponse)
	require.Contains(t, it.Err().Error(), `"77"`)
}

func TestFetchTrades_TransientRetried(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(historyEnvelope(historyTrade("1", 100, "buy")))
	}))
	defer server.Close()

	retry := NewRetryPolicy(3, time.Millisecond, 2*time.Millisecond, 2.0)
	slept := 0
	retry.sleep = func(time.Duration) { slept++ }

	client := newTestClient(server.URL)
	client.Retry = retry

	trades := collect(t, client.FetchTrades(0))

	require.Len(t, trades, 1)
	require.Equal(t, 2, requests)
	require.Equal(t, 1, slept)
}

func TestFetchTrades_RetriesExhausted(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	retry := NewRetryPolicy(3, time.Millisecond, 2*time.Millisecond, 2.0)
	retry.sleep = func(time.Duration) {}

	client := newTestClient(server.URL)
	client.Retry = retry

	it := client.FetchTrades(0)
	require.False(t, it.Next())
	require.ErrorIs(t, it.Err(), ErrTransient)
	require.Contains(t, it.Err().Error(), "giving up after 3 attempts")
	require.Equal(t, 3, requests)
}

func TestFetchTrades_WireVariants(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ctime quoted, decimals as bare numbers
		w.Write([]byte(`{
			"code": 0,
			"msg": "success",
			"data": {"tradeList": [{
				"tradeId": "900001",
				"orderId": "o-1",
				"symbol": "ETHUSDT",
				"side": "SELL",
				"qty": 1.25,
				"price": 3000.5,
				"fee": 0.12,
				"realizedPNL": -4.75,
				"ctime": "1747789200000"
			}]}
		}`))
	}))
	defer server.Close()

	trades := collect(t, newTestClient(server.URL).FetchTrades(0))

	require.Len(t, trades, 1)
	tr := trades[0]
	require.Equal(t, "900001", tr.TradeID)
	require.Equal(t, "o-1", tr.OrderID)
	require.Equal(t, model.SideShort, tr.Side)
	require.Equal(t, int64(1747789200000), tr.CloseTime)
	require.Equal(t, tr.CloseTime, tr.OpenTime)
	require.True(t, tr.Quantity.Equal(decimalFromString(t, "1.25")))
	require.True(t, tr.ExitPrice.Equal(decimalFromString(t, "3000.5")))
	require.True(t, tr.EntryPrice.Equal(tr.ExitPrice))
	require.True(t, tr.RealizedPnl.Equal(decimalFromString(t, "-4.75")))
	require.True(t, tr.Fees.Equal(decimalFromString(t, "0.12")))
}
