package domain

// PricePoint is one daily price observation.
// Prices are strictly positive once past the resolver.
type PricePoint struct {
	TimestampMs int64   // UTC midnight of the calendar day, in milliseconds
	Price       float64 // price at this point, > 0
}

// PriceSeries is an ordered run of daily points for a single symbol:
// exactly one point per calendar day, strictly increasing timestamps.
type PriceSeries []PricePoint

// Last returns the final point of the series and true, or false when empty.
func (s PriceSeries) Last() (PricePoint, bool) {
	if len(s) == 0 {
		return PricePoint{}, false
	}
	return s[len(s)-1], true
}

// LiveRate is a current price observation. Ephemeral, never persisted.
type LiveRate struct {
	Symbol string  // ticker
	Price  float64 // current price, > 0
	AsOfMs int64   // observation time in milliseconds
}

// RateUpdate is the inbound push payload fanned out to hub subscribers.
type RateUpdate struct {
	Symbol      string  // ticker
	Price       float64 // current price
	Change24h   float64 // percent change over 24h
	TimestampMs int64   // upstream observation time (ms)
}

// RateSource tags where a recorded history point came from.
type RateSource string

const (
	RateSourceProvider  RateSource = "provider"
	RateSourceGapfill   RateSource = "gapfill"
	RateSourceSynthetic RateSource = "synthetic"
)

// String returns the string representation of RateSource.
func (s RateSource) String() string {
	return string(s)
}

// IsValid checks if the rate source is a known value.
func (s RateSource) IsValid() bool {
	return s == RateSourceProvider || s == RateSourceGapfill || s == RateSourceSynthetic
}

// RatePoint is one provenance-tagged price row.
// Corresponds to the rate_history table in ClickHouse.
type RatePoint struct {
	Symbol      string     // ticker
	TimestampMs int64      // UTC midnight of the calendar day (ms)
	Price       float64    // resolved price
	Source      RateSource // provider | gapfill | synthetic
}
