package models

import (
	"strings"
	"time"
)

type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetForex  AssetType = "forex"
	AssetCrypto AssetType = "crypto"
)

// ParseAssetType returns the asset type for s (case-insensitive).
// ok is false for anything other than stock, forex or crypto.
func ParseAssetType(s string) (AssetType, bool) {
	switch at := AssetType(strings.ToLower(strings.TrimSpace(s))); at {
	case AssetStock, AssetForex, AssetCrypto:
		return at, true
	default:
		return "", false
	}
}

type Symbol struct {
	Code      string    `json:"code"`
	AssetType AssetType `json:"assetType"`
}

// RollupBucket is one pre-aggregated OHLCV window for one symbol.
// BucketStart + Interval is the bucket end.
type RollupBucket struct {
	SymbolCode  string        `json:"symbolCode"`
	AssetType   AssetType     `json:"assetType"`
	BucketStart time.Time     `json:"bucketStart"`
	Interval    time.Duration `json:"interval"`
	FirstOpen   float64       `json:"firstOpen"`
	LastClose   float64       `json:"lastClose"`
	MaxHigh     float64       `json:"maxHigh"`
	MinLow      float64       `json:"minLow"`
	AvgClose    float64       `json:"avgClose"`
	TotalVolume float64       `json:"totalVolume"`
	AvgVolume   float64       `json:"avgVolume"`
	MaxVolume   float64       `json:"maxVolume"`
	MinVolume   float64       `json:"minVolume"`
	Volatility  *float64      `json:"volatility,omitempty"`
	RecordCount int64         `json:"recordCount"`
}

func (b RollupBucket) BucketEnd() time.Time {
	return b.BucketStart.Add(b.Interval)
}

// PriceSwing is the high-low spread of the bucket.
func (b RollupBucket) PriceSwing() float64 {
	return b.MaxHigh - b.MinLow
}
