package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/maketruthy/boxscan/internal/domain"
)

const BithumbBaseURL = "https://api.bithumb.com"

// BithumbSource fetches candles and tickers from the Bithumb public REST API.
type BithumbSource struct {
	baseURL string
	client  *http.Client
}

func NewBithumbSource(baseURL string) *BithumbSource {
	if baseURL == "" {
		baseURL = BithumbBaseURL
	}
	return &BithumbSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (b *BithumbSource) Venue() domain.Venue {
	return domain.VenueBithumb
}

// Candles fetches candles for a bare symbol like "ABC" (the venue pairs it
// with KRW) and returns the newest count of them, oldest first. The
// candlestick endpoint has no count parameter; the tail is trimmed locally.
func (b *BithumbSource) Candles(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Candle, error) {
	interval, err := bithumbInterval(tf)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/public/candlestick/%s_KRW/%s", b.baseURL, symbol, interval)

	body, err := b.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// The venue mixes cell types: the timestamp is a number, prices and
	// volume are quoted strings.
	var payload struct {
		Status string              `json:"status"`
		Data   [][]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("bithumb candles decode: %w", err)
	}
	if payload.Status != "0000" {
		return nil, fmt.Errorf("bithumb status %s", payload.Status)
	}

	rows := payload.Data
	if len(rows) > count {
		rows = rows[len(rows)-count:]
	}

	// Row format: [timestamp, open, close, high, low, volume], oldest first.
	candles := make([]domain.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 6 {
			continue
		}
		candles = append(candles, domain.Candle{
			Time:   int64(cellFloat(r[0])) / 1000,
			Open:   cellFloat(r[1]),
			High:   cellFloat(r[3]),
			Low:    cellFloat(r[4]),
			Close:  cellFloat(r[2]),
			Volume: cellFloat(r[5]),
		})
	}
	return candles, nil
}

func bithumbInterval(tf domain.Timeframe) (string, error) {
	switch tf {
	case domain.Timeframe5m:
		return "5m", nil
	case domain.Timeframe30m:
		return "30m", nil
	case domain.Timeframe1h:
		return "1h", nil
	case domain.Timeframe4h:
		return "4h", nil
	case domain.Timeframe1d:
		return "24h", nil
	default:
		return "", fmt.Errorf("unsupported timeframe %q", tf)
	}
}

// Tickers returns 24h trailing quote value per symbol from the ALL_KRW
// ticker endpoint.
func (b *BithumbSource) Tickers(ctx context.Context) (map[string]float64, error) {
	body, err := b.get(ctx, b.baseURL+"/public/ticker/ALL_KRW")
	if err != nil {
		return nil, err
	}

	var payload struct {
		Status string                     `json:"status"`
		Data   map[string]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("bithumb tickers decode: %w", err)
	}
	if payload.Status != "0000" {
		return nil, fmt.Errorf("bithumb status %s", payload.Status)
	}

	out := make(map[string]float64, len(payload.Data))
	for symbol, raw := range payload.Data {
		if symbol == "date" {
			continue
		}
		var t struct {
			AccTradeValue string `json:"acc_trade_value_24H"`
		}
		if err := json.Unmarshal(raw, &t); err != nil {
			continue
		}
		value, err := strconv.ParseFloat(t.AccTradeValue, 64)
		if err != nil {
			continue
		}
		out[symbol] = value
	}
	return out, nil
}

func (b *BithumbSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bithumb request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("bithumb HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// cellFloat parses one candlestick cell, quoted or not.
func cellFloat(raw json.RawMessage) float64 {
	s := strings.Trim(string(raw), `"`)
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
