// Command hindsight runs backtests from the terminal: replay a CSV candle
// file or a stored symbol through a strategy, import and fetch candle data,
// and browse saved runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"hindsight/internal/backtest"
	"hindsight/internal/candle"
	"hindsight/internal/config"
	"hindsight/internal/domain"
	"hindsight/internal/fetch"
	"hindsight/internal/report"
	"hindsight/internal/store"
	"hindsight/internal/strategy"
	"hindsight/internal/strategy/builtins"
	"hindsight/internal/util"
)

const version = "0.1.0"

const defaultConfigFile = "config/hindsight.yaml"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hindsight <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  backtest    Run a strategy over candle data\n")
		fmt.Fprintf(os.Stderr, "  strategies  List built-in strategies\n")
		fmt.Fprintf(os.Stderr, "  import      Import a CSV candle file into the candle store\n")
		fmt.Fprintf(os.Stderr, "  fetch       Fetch daily candles from Alpaca into the candle store\n")
		fmt.Fprintf(os.Stderr, "  runs        List saved backtest runs\n")
		fmt.Fprintf(os.Stderr, "  version     Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "backtest":
		cmdBacktest(os.Args[2:])
	case "strategies":
		cmdStrategies()
	case "import":
		cmdImport(os.Args[2:])
	case "fetch":
		cmdFetch(os.Args[2:])
	case "runs":
		cmdRuns(os.Args[2:])
	case "version":
		fmt.Printf("hindsight %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(2)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// loadConfig resolves the config file from the flag, the HINDSIGHT_CONFIG
// environment variable, or the default path when it exists.
func loadConfig(path string) *config.Config {
	if path == "" {
		path = os.Getenv("HINDSIGHT_CONFIG")
	}
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatal("loading config: %v", err)
	}
	return cfg
}

func newRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	if err := builtins.Register(r); err != nil {
		fatal("registering strategies: %v", err)
	}
	return r
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("replaying candles"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func cmdBacktest(args []string) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to YAML config")
	dataPath := fs.String("data", "", "path to a CSV candle file")
	symbol := fs.String("symbol", "", "symbol to load from the candle store")
	from := fs.String("from", "", "start date YYYY-MM-DD, with --symbol")
	to := fs.String("to", "", "end date YYYY-MM-DD inclusive, with --symbol")
	strategyArg := fs.String("strategy", "", "strategy name or YAML spec file, see 'hindsight strategies'")
	paramsJSON := fs.String("params", "", "strategy parameters as a JSON object, overrides spec file params")
	initialBalance := fs.Float64("initial-balance", 0, "starting cash (default from config)")
	commissionRate := fs.Float64("commission-rate", 0, "commission per fill, e.g. 0.001 (default from config)")
	slippageRate := fs.Float64("slippage-rate", 0, "adverse slippage per fill (default from config)")
	minLot := fs.Float64("min-lot", 0, "smallest buyable quantity (default from config)")
	annualization := fs.Float64("annualization", 0, "Sharpe annualization factor (default from config)")
	strict := fs.Bool("strict", false, "treat strategy evaluation errors as fatal")
	seed := fs.Int64("seed", 0, "seed for the strategy RNG")
	save := fs.Bool("save", false, "persist the run to the run store")
	output := fs.String("output", "-", "JSON report destination, - for stdout")
	quiet := fs.Bool("quiet", false, "suppress the progress bar and text summary")
	_ = fs.Parse(args)

	if *strategyArg == "" {
		fatal("--strategy is required")
	}
	if (*dataPath == "") == (*symbol == "") {
		fatal("exactly one of --data or --symbol is required")
	}

	cfg := loadConfig(*cfgPath)
	logger := util.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	// Flags override config only when set explicitly.
	btCfg := backtest.Config{
		InitialBalance: cfg.Backtest.InitialBalance,
		CommissionRate: cfg.Backtest.CommissionRate,
		SlippageRate:   cfg.Backtest.SlippageRate,
		MinLot:         cfg.Backtest.MinLot,
		Annualization:  cfg.Backtest.Annualization,
		Strict:         cfg.Backtest.Strict,
		Seed:           cfg.Backtest.Seed,
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "initial-balance":
			btCfg.InitialBalance = *initialBalance
		case "commission-rate":
			btCfg.CommissionRate = *commissionRate
		case "slippage-rate":
			btCfg.SlippageRate = *slippageRate
		case "min-lot":
			btCfg.MinLot = *minLot
		case "annualization":
			btCfg.Annualization = *annualization
		case "strict":
			btCfg.Strict = *strict
		case "seed":
			btCfg.Seed = *seed
		}
	})

	strat, fileParams := resolveStrategy(newRegistry(), *strategyArg)
	if len(fileParams) > 0 {
		btCfg.Params = fileParams
	}
	if *paramsJSON != "" {
		var params map[string]any
		if err := json.Unmarshal([]byte(*paramsJSON), &params); err != nil {
			fatal("parsing --params: %v", err)
		}
		if btCfg.Params == nil {
			btCfg.Params = params
		} else {
			for k, v := range params {
				btCfg.Params[k] = v
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	candles := loadCandles(ctx, cfg, *dataPath, *symbol, *from, *to)

	opts := []backtest.Option{backtest.WithLogger(logger)}
	if !*quiet {
		bar := newProgressBar(len(candles))
		opts = append(opts, backtest.WithProgress(func(done, _ int) {
			_ = bar.Set(done)
		}))
	}

	result, err := backtest.New(opts...).Run(ctx, candles, strat, btCfg)
	if !*quiet {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		fatal("backtest failed: %v", err)
	}

	if *save {
		runStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			fatal("opening run store: %v", err)
		}
		defer runStore.Close()

		rec := &store.RunRecord{
			Strategy:       strat.Name(),
			Symbol:         strings.ToUpper(*symbol),
			Status:         result.Status,
			InitialBalance: result.InitialBalance,
			FinalEquity:    result.FinalEquity,
			Candles:        result.Candles,
			Metrics:        result.Metrics,
			Diagnostics:    len(result.Diagnostics),
			Trades:         result.Trades,
		}
		if err := runStore.SaveRun(ctx, rec); err != nil {
			fatal("saving run: %v", err)
		}
		fmt.Fprintf(os.Stderr, "saved run %s\n", rec.ID)
	}

	payload := report.FromResult(result)
	if *output == "-" {
		if err := payload.WriteJSON(os.Stdout); err != nil {
			fatal("writing report: %v", err)
		}
	} else {
		f, err := os.Create(*output)
		if err != nil {
			fatal("creating %s: %v", *output, err)
		}
		if err := payload.WriteJSON(f); err != nil {
			f.Close()
			fatal("writing report: %v", err)
		}
		if err := f.Close(); err != nil {
			fatal("closing %s: %v", *output, err)
		}
	}

	if !*quiet {
		payload.WriteText(os.Stderr)
	}
}

// loadCandles reads the candle series from the CSV file or the candle store.
func loadCandles(ctx context.Context, cfg *config.Config, dataPath, symbol, from, to string) []domain.Candle {
	if dataPath != "" {
		candles, err := candle.ReadFile(dataPath)
		if err != nil {
			fatal("reading candles: %v", err)
		}
		return candles
	}

	fromTime := time.Time{}
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			fatal("parsing --from %q: %v", from, err)
		}
		fromTime = t
	}
	toTime := time.Now().UTC()
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			fatal("parsing --to %q: %v", to, err)
		}
		toTime = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	candles, err := pstore.ReadCandles(ctx, symbol, fromTime, toTime)
	if err != nil {
		fatal("reading candles for %s: %v", symbol, err)
	}
	if len(candles) == 0 {
		fatal("no candles for %s in range, import or fetch data first", strings.ToUpper(symbol))
	}
	return candles
}

// strategySpec is the YAML form of a strategy spec file.
type strategySpec struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
}

// resolveStrategy interprets the --strategy value: a registered name, or the
// path of a YAML spec file carrying {name, params}.
func resolveStrategy(reg *strategy.Registry, value string) (strategy.Strategy, map[string]any) {
	if strat, ok := reg.Get(value); ok {
		return strat, nil
	}

	data, err := os.ReadFile(value)
	if err != nil {
		fatal("unknown strategy %q, see 'hindsight strategies'", value)
	}
	var spec strategySpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		fatal("parsing strategy spec %s: %v", value, err)
	}
	if spec.Name == "" {
		fatal("strategy spec %s: name is required", value)
	}
	strat, ok := reg.Get(spec.Name)
	if !ok {
		fatal("unknown strategy %q in %s, see 'hindsight strategies'", spec.Name, value)
	}
	return strat, spec.Params
}

func cmdStrategies() {
	for _, name := range newRegistry().List() {
		fmt.Println(name)
	}
}

func cmdImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to YAML config")
	dataPath := fs.String("data", "", "path to a CSV candle file")
	symbol := fs.String("symbol", "", "symbol to store the candles under")
	_ = fs.Parse(args)

	if *dataPath == "" || *symbol == "" {
		fatal("--data and --symbol are required")
	}

	cfg := loadConfig(*cfgPath)

	candles, err := candle.ReadFile(*dataPath)
	if err != nil {
		fatal("reading candles: %v", err)
	}
	if err := candle.Validate(candles); err != nil {
		fatal("validating candles: %v", err)
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir)
	if err := pstore.WriteCandles(context.Background(), *symbol, candles); err != nil {
		fatal("writing candles: %v", err)
	}
	fmt.Printf("imported %d candles as %s\n", len(candles), strings.ToUpper(*symbol))
}

func cmdFetch(args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to YAML config")
	symbols := fs.String("symbols", "", "comma-separated symbols, e.g. AAPL,MSFT")
	start := fs.String("start", "", "start date YYYY-MM-DD (default from config)")
	end := fs.String("end", "", "end date YYYY-MM-DD (default today)")
	_ = fs.Parse(args)

	if *symbols == "" {
		fatal("--symbols is required")
	}

	cfg := loadConfig(*cfgPath)
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		fatal("Alpaca credentials missing: set alpaca.api_key/api_secret or APCA_API_KEY_ID/APCA_API_SECRET_KEY")
	}

	startDate := cfg.Fetch.StartDate
	if *start != "" {
		startDate = *start
	}
	startTime, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		fatal("parsing start date %q: %v", startDate, err)
	}
	endTime := time.Now().UTC()
	if *end != "" {
		endTime, err = time.Parse("2006-01-02", *end)
		if err != nil {
			fatal("parsing end date %q: %v", *end, err)
		}
	}

	var list []string
	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			list = append(list, s)
		}
	}

	logger := util.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	fetcher := fetch.New(fetch.Config{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		BatchSize:       cfg.Fetch.BatchSize,
		RateLimitPerMin: cfg.Fetch.RateLimitPerMin,
	}, store.NewParquetStore(cfg.Storage.DataDir), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	written, err := fetcher.Fetch(ctx, list, startTime, endTime)
	if err != nil {
		fatal("fetch failed: %v", err)
	}

	total := 0
	for _, sym := range list {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if n, ok := written[sym]; ok {
			fmt.Printf("%-8s %d candles\n", sym, n)
			total += n
		} else {
			fmt.Printf("%-8s no data\n", sym)
		}
	}
	fmt.Printf("fetched %d candles for %d symbols\n", total, len(written))
}

func cmdRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to YAML config")
	limit := fs.Int("limit", 0, "maximum runs to list, 0 for the store default")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)

	runStore, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		fatal("opening run store: %v", err)
	}
	defer runStore.Close()

	runs, err := runStore.ListRuns(context.Background(), *limit)
	if err != nil {
		fatal("listing runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("no saved runs")
		return
	}

	fmt.Printf("%-36s  %-14s  %-10s  %-19s  %12s  %8s\n",
		"ID", "STRATEGY", "STATUS", "CREATED", "FINAL", "ROI")
	for _, r := range runs {
		fmt.Printf("%-36s  %-14s  %-10s  %-19s  %12.2f  %7.2f%%\n",
			r.ID, r.Strategy, string(r.Status),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.FinalEquity, r.Metrics.ROI*100)
	}
}
