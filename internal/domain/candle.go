package domain

// Timeframe identifies a candle interval.
type Timeframe string

const (
	Timeframe5m  Timeframe = "5m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// AllTimeframes lists every interval the scanner analyzes, coarse last.
var AllTimeframes = []Timeframe{Timeframe5m, Timeframe30m, Timeframe1h, Timeframe4h, Timeframe1d}

type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Bullish reports whether the candle closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// Midpoint returns (high+low)/2.
func (c Candle) Midpoint() float64 {
	return (c.High + c.Low) / 2
}

// Closes extracts the close series from candles, oldest first.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
