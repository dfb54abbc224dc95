package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maketruthy/boxscan/internal/domain"
)

const UpbitBaseURL = "https://api.upbit.com"

// UpbitSource fetches candles and tickers from the Upbit public REST API.
type UpbitSource struct {
	baseURL string
	client  *http.Client
}

func NewUpbitSource(baseURL string) *UpbitSource {
	if baseURL == "" {
		baseURL = UpbitBaseURL
	}
	return &UpbitSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (u *UpbitSource) Venue() domain.Venue {
	return domain.VenueUpbit
}

// upbitCandle is one row of the Upbit candle response (newest first).
type upbitCandle struct {
	Timestamp    int64   `json:"timestamp"`
	OpeningPrice float64 `json:"opening_price"`
	HighPrice    float64 `json:"high_price"`
	LowPrice     float64 `json:"low_price"`
	TradePrice   float64 `json:"trade_price"`
	AccVolume    float64 `json:"candle_acc_trade_volume"`
}

// Candles fetches up to count candles for a KRW market code like "KRW-ABC"
// and returns them oldest first.
func (u *UpbitSource) Candles(ctx context.Context, market string, tf domain.Timeframe, count int) ([]domain.Candle, error) {
	path, err := upbitCandlePath(tf)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s%s?market=%s&count=%d", u.baseURL, path, url.QueryEscape(market), count)

	body, err := u.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var rows []upbitCandle
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("upbit candles decode: %w", err)
	}

	// Upbit returns newest first.
	candles := make([]domain.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		candles = append(candles, domain.Candle{
			Time:   r.Timestamp / 1000,
			Open:   r.OpeningPrice,
			High:   r.HighPrice,
			Low:    r.LowPrice,
			Close:  r.TradePrice,
			Volume: r.AccVolume,
		})
	}
	return candles, nil
}

func upbitCandlePath(tf domain.Timeframe) (string, error) {
	switch tf {
	case domain.Timeframe5m:
		return "/v1/candles/minutes/5", nil
	case domain.Timeframe30m:
		return "/v1/candles/minutes/30", nil
	case domain.Timeframe1h:
		return "/v1/candles/minutes/60", nil
	case domain.Timeframe4h:
		return "/v1/candles/minutes/240", nil
	case domain.Timeframe1d:
		return "/v1/candles/days", nil
	default:
		return "", fmt.Errorf("unsupported timeframe %q", tf)
	}
}

// KRWMarkets lists all KRW market codes.
func (u *UpbitSource) KRWMarkets(ctx context.Context) ([]string, error) {
	body, err := u.get(ctx, u.baseURL+"/v1/market/all")
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Market string `json:"market"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("upbit markets decode: %w", err)
	}

	var markets []string
	for _, r := range rows {
		if strings.HasPrefix(r.Market, "KRW-") {
			markets = append(markets, r.Market)
		}
	}
	return markets, nil
}

// Tickers returns 24h trailing quote volume per market code.
func (u *UpbitSource) Tickers(ctx context.Context, markets []string) (map[string]float64, error) {
	body, err := u.get(ctx, u.baseURL+"/v1/ticker?markets="+url.QueryEscape(strings.Join(markets, ",")))
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Market        string  `json:"market"`
		AccTradePrice float64 `json:"acc_trade_price_24h"`
	}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("upbit tickers decode: %w", err)
	}

	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.Market] = r.AccTradePrice
	}
	return out, nil
}

func (u *UpbitSource) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upbit request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("upbit HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
