package domain

// AssetClass buckets a symbol by its volatility behavior. It is used only
// to select synthetic-series parameters, never for routing or validation.
type AssetClass string

const (
	AssetClassFiat        AssetClass = "fiat"
	AssetClassStablecoin  AssetClass = "stablecoin"
	AssetClassMajorCrypto AssetClass = "major-crypto"
	AssetClassAltcoin     AssetClass = "altcoin"
	AssetClassEquity      AssetClass = "equity"
)

// String returns the string representation of AssetClass.
func (c AssetClass) String() string {
	return string(c)
}

// IsValid checks if the asset class is a known value.
func (c AssetClass) IsValid() bool {
	switch c {
	case AssetClassFiat, AssetClassStablecoin, AssetClassMajorCrypto,
		AssetClassAltcoin, AssetClassEquity:
		return true
	}
	return false
}
