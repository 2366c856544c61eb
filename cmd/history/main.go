// Package main resolves daily price history for one or more symbols and
// prints it as a table or CSV, optionally recording the result to the
// rate history store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/V0rtexyz/FinDash/internal/domain"
	"github.com/V0rtexyz/FinDash/internal/marketdata"
	"github.com/V0rtexyz/FinDash/internal/rates"
	"github.com/V0rtexyz/FinDash/internal/storage"
	chstore "github.com/V0rtexyz/FinDash/internal/storage/clickhouse"
	"github.com/V0rtexyz/FinDash/internal/storage/migrations"
)

func main() {
	// Parse flags
	symbols := flag.String("symbols", "", "Comma-separated symbols to resolve (required)")
	startDate := flag.String("start", "", "Range start date (YYYY-MM-DD)")
	endDate := flag.String("end", "", "Range end date (YYYY-MM-DD, default today)")
	days := flag.Int("days", 7, "Trailing days when -start is not given")
	format := flag.String("format", "table", "Output format: table or csv")
	record := flag.Bool("record", false, "Record resolved series to the rate history store")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (required with -record)")
	providerURL := flag.String("provider-url", os.Getenv("PROVIDER_BASE_URL"), "Market data provider base URL")
	providerKey := flag.String("provider-key", os.Getenv("PROVIDER_API_KEY"), "Market data provider API key")
	verbose := flag.Bool("v", false, "Verbose diagnostics on stderr")

	flag.Parse()

	// Diagnostics go to stderr so stdout stays clean for the data.
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().Level(zerolog.WarnLevel)
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	}

	// Validate flags
	list := splitSymbols(*symbols)
	if len(list) == 0 {
		logger.Fatal().Msg("--symbols is required")
	}
	if *format != "table" && *format != "csv" {
		logger.Fatal().Str("format", *format).Msg("format must be table or csv")
	}
	if *providerURL == "" {
		logger.Fatal().Msg("--provider-url is required")
	}
	if *record && *clickhouseDSN == "" {
		logger.Fatal().Msg("--clickhouse-dsn is required with --record")
	}
	if *days < 1 {
		logger.Fatal().Msg("--days must be at least 1")
	}

	// Resolve the range: explicit bounds win over the trailing window.
	end := time.Now().UTC()
	if *endDate != "" {
		ms, err := rates.ParseDate(*endDate)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid --end date")
		}
		end = time.UnixMilli(ms).UTC()
	}

	start := end.AddDate(0, 0, -(*days - 1))
	if *startDate != "" {
		ms, err := rates.ParseDate(*startDate)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid --start date")
		}
		start = time.UnixMilli(ms).UTC()
	}

	if start.After(end) {
		logger.Fatal().Msg("start date is after end date")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn().Msg("interrupted, shutting down")
		cancel()
	}()

	client := marketdata.NewClient(*providerURL,
		marketdata.WithAPIKey(*providerKey),
		marketdata.WithLogger(logger),
	)

	classifier := rates.NewClassifier()
	refreshCtx, cancelRefresh := context.WithTimeout(ctx, 10*time.Second)
	if err := classifier.RefreshFromCatalog(refreshCtx, client); err != nil {
		logger.Warn().Err(err).Msg("asset catalog unavailable, using seeded classes")
	}
	cancelRefresh()

	var history storage.RateHistoryStore
	if *record {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect to clickhouse")
		}
		defer conn.Close()
		history = chstore.NewRateHistoryStore(conn)
	}

	resolver := rates.NewResolver(rates.ResolverOptions{
		Source:     client,
		Live:       rates.NewLiveRateProvider(client, logger),
		Classifier: classifier,
		Generator:  rates.NewGenerator(nil),
		History:    history,
		Logger:     logger,
	})

	if *format == "csv" {
		fmt.Println("symbol,date,price")
	}

	for _, symbol := range list {
		series, err := resolver.Resolve(ctx, symbol, start, end)
		if err != nil {
			logger.Fatal().Err(err).Str("symbol", symbol).Msg("resolve failed")
		}

		switch *format {
		case "csv":
			printCSV(symbol, series)
		default:
			printTable(symbol, series)
		}
	}
}

// splitSymbols parses the comma-separated symbol flag, uppercased and
// deduplicated in order.
func splitSymbols(raw string) []string {
	seen := make(map[string]bool)
	var list []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" || seen[part] {
			continue
		}
		seen[part] = true
		list = append(list, part)
	}
	return list
}

// printTable writes one aligned block per symbol.
func printTable(symbol string, series domain.PriceSeries) {
	fmt.Println()
	fmt.Printf("=== %s (%d days) ===\n", symbol, len(series))
	fmt.Printf("%-12s  %14s\n", "Date", "Price")
	for _, point := range series {
		fmt.Printf("%-12s  %14s\n", rates.FormatDate(point.TimestampMs), formatPrice(point.Price))
	}
}

// printCSV writes symbol,date,price rows.
func printCSV(symbol string, series domain.PriceSeries) {
	for _, point := range series {
		fmt.Printf("%s,%s,%s\n", symbol, rates.FormatDate(point.TimestampMs), strconv.FormatFloat(point.Price, 'f', -1, 64))
	}
}

// formatPrice keeps sub-unit prices at four decimals, everything else at two.
func formatPrice(price float64) string {
	if price < 1 {
		return strconv.FormatFloat(price, 'f', 4, 64)
	}
	return strconv.FormatFloat(price, 'f', 2, 64)
}
