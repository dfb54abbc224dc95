package domain

// Venue identifies a market the scanner pulls data from.
type Venue string

const (
	VenueUpbit   Venue = "upbit"
	VenueBithumb Venue = "bithumb"
)

// MarketTicker is one tradable symbol with its trailing 24h quote volume.
type MarketTicker struct {
	Symbol      string  `json:"symbol"`
	Market      string  `json:"market"` // venue-native code, e.g. "KRW-ABC" on Upbit
	QuoteVolume float64 `json:"quote_volume"`
	Venue       Venue   `json:"venue"`
}
