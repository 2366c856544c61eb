package domain

// VolatilityProfile holds the per-class parameters driving synthetic series
// generation: daily volatility, drift, and the clamp band around the anchor.
type VolatilityProfile struct {
	Class           AssetClass
	DailyVolatility float64 // σ as a fraction of price
	TrendMagnitude  float64 // daily drift as a fraction of price
	TrendDirection  float64 // +1 drifts upward in chronological order, -1 downward
	ClampLow        float64 // lower bound as a multiple of the anchor price
	ClampHigh       float64 // upper bound as a multiple of the anchor price
}

// Predefined per-class profiles
var (
	ProfileFiat = VolatilityProfile{
		Class:           AssetClassFiat,
		DailyVolatility: 0.003,
		TrendMagnitude:  0.0002,
		TrendDirection:  1,
		ClampLow:        0.90,
		ClampHigh:       1.10,
	}

	ProfileStablecoin = VolatilityProfile{
		Class:           AssetClassStablecoin,
		DailyVolatility: 0.0005,
		TrendMagnitude:  0.00001,
		TrendDirection:  1,
		ClampLow:        0.995,
		ClampHigh:       1.005,
	}

	ProfileMajorCrypto = VolatilityProfile{
		Class:           AssetClassMajorCrypto,
		DailyVolatility: 0.03,
		TrendMagnitude:  0.004,
		TrendDirection:  1,
		ClampLow:        0.50,
		ClampHigh:       1.80,
	}

	ProfileAltcoin = VolatilityProfile{
		Class:           AssetClassAltcoin,
		DailyVolatility: 0.05,
		TrendMagnitude:  0.006,
		TrendDirection:  1,
		ClampLow:        0.50,
		ClampHigh:       1.80,
	}

	ProfileEquity = VolatilityProfile{
		Class:           AssetClassEquity,
		DailyVolatility: 0.02,
		TrendMagnitude:  0.001,
		TrendDirection:  1,
		ClampLow:        0.70,
		ClampHigh:       1.40,
	}
)

// ProfileFor returns the volatility profile for an asset class. Unknown
// classes get the altcoin profile, the widest band, so synthetic output
// stays plausible for unrecognized tickers.
func ProfileFor(class AssetClass) VolatilityProfile {
	switch class {
	case AssetClassFiat:
		return ProfileFiat
	case AssetClassStablecoin:
		return ProfileStablecoin
	case AssetClassMajorCrypto:
		return ProfileMajorCrypto
	case AssetClassAltcoin:
		return ProfileAltcoin
	case AssetClassEquity:
		return ProfileEquity
	}
	return ProfileAltcoin
}
