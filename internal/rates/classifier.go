package rates

import (
	"context"
	"strings"
	"sync"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/marketdata"
)

// CatalogSource fetches the provider's asset catalog.
type CatalogSource interface {
	Catalog(ctx context.Context) (map[string]marketdata.CatalogEntry, error)
}

// defaultClasses seeds the classifier with the commonly traded symbols so
// classification works without a catalog round-trip.
var defaultClasses = map[string]domain.AssetClass{
	"USD": domain.AssetClassFiat,
	"EUR": domain.AssetClassFiat,
	"GBP": domain.AssetClassFiat,
	"JPY": domain.AssetClassFiat,
	"CHF": domain.AssetClassFiat,
	"CAD": domain.AssetClassFiat,
	"AUD": domain.AssetClassFiat,

	"USDT": domain.AssetClassStablecoin,
	"USDC": domain.AssetClassStablecoin,
	"DAI":  domain.AssetClassStablecoin,
	"BUSD": domain.AssetClassStablecoin,

	"BTC": domain.AssetClassMajorCrypto,
	"ETH": domain.AssetClassMajorCrypto,

	"SOL":   domain.AssetClassAltcoin,
	"ADA":   domain.AssetClassAltcoin,
	"DOT":   domain.AssetClassAltcoin,
	"DOGE":  domain.AssetClassAltcoin,
	"XRP":   domain.AssetClassAltcoin,
	"LTC":   domain.AssetClassAltcoin,
	"BNB":   domain.AssetClassAltcoin,
	"MATIC": domain.AssetClassAltcoin,
	"LINK":  domain.AssetClassAltcoin,

	"AAPL":  domain.AssetClassEquity,
	"MSFT":  domain.AssetClassEquity,
	"GOOGL": domain.AssetClassEquity,
	"AMZN":  domain.AssetClassEquity,
	"TSLA":  domain.AssetClassEquity,
	"NVDA":  domain.AssetClassEquity,
	"SPY":   domain.AssetClassEquity,
}

// Classifier maps symbols to asset classes. Unknown symbols classify as
// altcoin, the widest volatility band, so synthetic series for unrecognized
// tickers stay plausible.
type Classifier struct {
	mu      sync.RWMutex
	classes map[string]domain.AssetClass
}

// NewClassifier creates a classifier seeded with the static table.
func NewClassifier() *Classifier {
	classes := make(map[string]domain.AssetClass, len(defaultClasses))
	for symbol, class := range defaultClasses {
		classes[symbol] = class
	}
	return &Classifier{classes: classes}
}

// ClassFor returns the asset class for a symbol.
func (c *Classifier) ClassFor(symbol string) domain.AssetClass {
	key := strings.ToUpper(strings.TrimSpace(symbol))

	c.mu.RLock()
	defer c.mu.RUnlock()

	if class, ok := c.classes[key]; ok {
		return class
	}
	return domain.AssetClassAltcoin
}

// RefreshFromCatalog merges catalog entries with a recognized class over the
// static table. A catalog failure leaves the current table untouched.
func (c *Classifier) RefreshFromCatalog(ctx context.Context, source CatalogSource) error {
	entries, err := source.Catalog(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for symbol, entry := range entries {
		class := domain.AssetClass(entry.Class)
		if !class.IsValid() {
			continue
		}
		c.classes[strings.ToUpper(strings.TrimSpace(symbol))] = class
	}
	return nil
}
