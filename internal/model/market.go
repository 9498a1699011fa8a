package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// OHLCV represents a single daily candlestick bar as returned by a provider.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Amount float64
}

// DailyBar is the serialized form of a bar with its date normalized to YYYY-MM-DD.
type DailyBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Amount float64 `json:"amount"`
}

// NewDailyBar converts a provider bar to its serialized form.
func NewDailyBar(b OHLCV) DailyBar {
	return DailyBar{
		Date:   b.Time.Format(DateLayout),
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
		Amount: b.Amount,
	}
}

// Adjust selects how a price series accounts for corporate actions.
type Adjust string

const (
	AdjustForward  Adjust = "qfq"  // aligned to the latest price
	AdjustBackward Adjust = "hfq"  // aligned to the listing price
	AdjustNone     Adjust = "none" // raw exchange prices
)

// ParseAdjust parses a user supplied adjustment mode. An empty string yields def.
func ParseAdjust(s string, def Adjust) (Adjust, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "qfq", "forward":
		return AdjustForward, nil
	case "hfq", "backward":
		return AdjustBackward, nil
	case "none", "bfq", "raw":
		return AdjustNone, nil
	default:
		return "", fmt.Errorf("unknown adjust mode %q (want qfq, hfq or none)", s)
	}
}
