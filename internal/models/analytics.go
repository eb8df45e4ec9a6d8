package models

import "time"

type VolumeStats struct {
	Symbol              string    `json:"symbol"`
	AssetType           AssetType `json:"assetType"`
	TimePeriod          string    `json:"timePeriod"`
	StartTime           time.Time `json:"startTime"`
	EndTime             time.Time `json:"endTime"`
	TotalVolume         float64   `json:"totalVolume"`
	AvgVolume           float64   `json:"avgVolume"`
	MaxVolume           float64   `json:"maxVolume"`
	MinVolume           float64   `json:"minVolume"`
	RecordCount         int64     `json:"recordCount"`
	VolumeChangePercent *float64  `json:"volumeChangePercent"` // left nil; callers may enrich across periods
}

type PriceTrends struct {
	Symbol             string    `json:"symbol"`
	AssetType          AssetType `json:"assetType"`
	TimePeriod         string    `json:"timePeriod"`
	StartTime          time.Time `json:"startTime"`
	EndTime            time.Time `json:"endTime"`
	OpenPrice          float64   `json:"openPrice"`
	ClosePrice         float64   `json:"closePrice"`
	HighPrice          float64   `json:"highPrice"`
	LowPrice           float64   `json:"lowPrice"`
	AvgPrice           float64   `json:"avgPrice"`
	PriceChange        float64   `json:"priceChange"`
	PriceChangePercent float64   `json:"priceChangePercent"`
	Volatility         *float64  `json:"volatility,omitempty"`
}

type PriceRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

type VolatilityMetrics struct {
	Symbol        string     `json:"symbol"`
	AssetType     AssetType  `json:"assetType"`
	TimePeriod    string     `json:"timePeriod"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       time.Time  `json:"endTime"`
	Volatility    float64    `json:"volatility"`
	AvgVolatility float64    `json:"avgVolatility"`
	MaxPriceSwing float64    `json:"maxPriceSwing"`
	AvgPriceSwing float64    `json:"avgPriceSwing"`
	PriceRange    PriceRange `json:"priceRange"`
}

type Performance string

const (
	Outperforming   Performance = "outperforming"
	Neutral         Performance = "neutral"
	Underperforming Performance = "underperforming"
)

type SymbolComparison struct {
	Symbol             string      `json:"symbol"`
	AssetType          AssetType   `json:"assetType"`
	PriceChangePercent float64     `json:"priceChangePercent"`
	VolumeTotal        float64     `json:"volumeTotal"`
	AvgVolatility      float64     `json:"avgVolatility"`
	AvgPrice           float64     `json:"avgPrice"`
	Performance        Performance `json:"performance,omitempty"`
}

type ComparisonResult struct {
	Symbols     []string           `json:"symbols"`
	StartTime   time.Time          `json:"startTime"`
	EndTime     time.Time          `json:"endTime"`
	TimePeriod  string             `json:"timePeriod"`
	Comparisons []SymbolComparison `json:"comparisons"`
}

// Clone returns a deep copy so cached results never alias caller-owned slices.
func (c *ComparisonResult) Clone() *ComparisonResult {
	if c == nil {
		return nil
	}
	out := *c
	out.Symbols = append(make([]string, 0, len(c.Symbols)), c.Symbols...)
	out.Comparisons = append(make([]SymbolComparison, 0, len(c.Comparisons)), c.Comparisons...)
	return &out
}
